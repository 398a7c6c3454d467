package settings

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "local.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestMergeOverridesExtendDefaults(t *testing.T) {
	t.Parallel()

	defaults := Static("app.defaults", Namespace{"DEBUG": false, "ALLOWED": []int{1, 2}})
	path := writeConfig(t, "DEBUG: true\nALLOWED: !expr ALLOWED + [3]\n")

	got, err := Merge(defaults, File(path), false)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	want := Namespace{"DEBUG": true, "ALLOWED": []any{1, 2, 3}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Merge() = %#v, want %#v", got, want)
	}
}

func TestMergeWithoutDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "FOO: bar\n")

	got, err := Merge(nil, File(path), true)
	if err != nil {
		t.Fatalf("Merge(allowExtras=true) error = %v", err)
	}
	if !reflect.DeepEqual(got, Namespace{"FOO": "bar"}) {
		t.Fatalf("Merge(allowExtras=true) = %#v", got)
	}

	_, err = Merge(nil, File(path), false)
	if !errors.Is(err, ErrExtraSetting) {
		t.Fatalf("Merge(allowExtras=false) error = %v, want ErrExtraSetting", err)
	}
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Merge(allowExtras=false) error type = %T", err)
	}
	if cfgErr.Setting != "FOO" || cfgErr.Line != 1 || cfgErr.Source != path {
		t.Fatalf("ConfigurationError = %+v", cfgErr)
	}
	if !strings.Contains(err.Error(), "FOO") || !strings.Contains(err.Error(), "extra settings are not allowed") {
		t.Fatalf("error message = %q", err.Error())
	}
}

func TestMergeDefaultsAreNeverFiltered(t *testing.T) {
	t.Parallel()

	defaults := Static("defaults", Namespace{"ONLY_DEFAULT": 1, "lower_case": "ok"})
	path := writeConfig(t, "")

	got, err := Merge(defaults, File(path), false)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if !reflect.DeepEqual(got, Namespace{"ONLY_DEFAULT": 1, "lower_case": "ok"}) {
		t.Fatalf("Merge() = %#v", got)
	}
}

func TestMergeSkipsReservedNames(t *testing.T) {
	t.Parallel()

	defaults := Static("defaults", Namespace{"_internal": 1, "NAME": "x"})
	path := writeConfig(t, "_suffix: -worker\nNAME: !expr NAME + _suffix\nORIGIN: !expr _file\n")

	got, err := Merge(defaults, File(path), true)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	want := Namespace{"NAME": "x-worker", "ORIGIN": path}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Merge() = %#v, want %#v", got, want)
	}

	// Reserved helpers never count as extras.
	if _, err := Merge(defaults, File(path), false); !errors.Is(err, ErrExtraSetting) {
		t.Fatalf("Merge(allowExtras=false) error = %v, want ErrExtraSetting for ORIGIN", err)
	}
}

func TestMergeDoesNotMutateDefaults(t *testing.T) {
	t.Parallel()

	apps := []any{"core"}
	defaults := Static("defaults", Namespace{"APPS": apps})
	path := writeConfig(t, "APPS: !extend [reports]\n")

	got, err := Merge(defaults, File(path), false)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if !reflect.DeepEqual(got["APPS"], []any{"core", "reports"}) {
		t.Fatalf("APPS = %#v", got["APPS"])
	}
	if len(apps) != 1 || apps[0] != "core" {
		t.Fatalf("defaults mutated: %#v", apps)
	}
}

func TestMergeTags(t *testing.T) {
	t.Parallel()

	defaults := Static("defaults", Namespace{
		"DATABASE": map[string]any{"HOST": "localhost", "PORT": 5432},
		"APPS":     []string{"core"},
		"OPTIONS":  map[string]any{"a": 1},
		"TIMEOUT":  10,
	})
	path := writeConfig(t, `
DATABASE: !expr 'DATABASE + {"HOST": "db.internal"}'
REPLICA: !ref DATABASE
APPS: !extend [reports, billing]
OPTIONS: !extend {b: 2}
TIMEOUT: !extend 5
NESTED:
  hosts: [a, !expr 'DATABASE["HOST"]']
RELEASED: 2024-01-02
`)

	got, err := Merge(defaults, File(path), true)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	want := Namespace{
		"DATABASE": map[string]any{"HOST": "db.internal", "PORT": 5432},
		"REPLICA":  map[string]any{"HOST": "db.internal", "PORT": 5432},
		"APPS":     []any{"core", "reports", "billing"},
		"OPTIONS":  map[string]any{"a": 1, "b": 2},
		"TIMEOUT":  15,
		"NESTED":   map[string]any{"hosts": []any{"a", "db.internal"}},
		"RELEASED": "2024-01-02",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Merge() = %#v, want %#v", got, want)
	}
}

func TestMergeFileErrors(t *testing.T) {
	t.Parallel()

	defaults := Static("defaults", Namespace{"ALLOWED": []any{1}, "FLAG": true, "MAXED": math.MaxInt})

	cases := []struct {
		name    string
		content string
		line    int
		snippet string
	}{
		{"syntax", "A: [1, 2\n", 0, "yaml"},
		{"top level list", "- 1\n- 2\n", 1, "top level must be a mapping"},
		{"invalid name", "FLAG: true\nnot-valid: 1\n", 2, "identifier"},
		{"duplicate", "FLAG: true\nFLAG: false\n", 2, "more than once"},
		{"unknown tag", "FLAG: !env HOME\n", 1, "unknown tag !env"},
		{"bad expr", "ALLOWED: !expr ALLOWED +\n", 1, "!expr"},
		{"undefined name", "ALLOWED: !expr MISSING + [1]\n", 1, `"MISSING" is not defined`},
		{"type error", "ALLOWED: !expr ALLOWED + 1\n", 1, "unsupported operand types"},
		{"extend nothing", "NEW: !extend [1]\n", 1, "no value to extend"},
		{"extend type", "FLAG: !extend [1]\n", 1, "unsupported operand types"},
		{"nested extend", "ALLOWED: [!extend [1]]\n", 1, "only allowed on top-level"},
		{"ref missing", "FLAG: !ref NOPE\n", 1, `"NOPE" is not defined`},
		{"merge key", "FLAG:\n  <<: {a: 1}\n", 2, "merge keys"},
		{"int overflow", "MAXED: !expr MAXED + 1\n", 1, "integer overflow"},
		{"int underflow", "MAXED: !expr -MAXED - 2\n", 1, "integer overflow"},
		{"extend overflow", "MAXED: !extend 1\n", 1, "integer overflow"},
		{"float overflow", "FLAG: !expr 1e308 + 1e308\n", 1, "float overflow"},
		{"nested duplicate", "FLAG:\n  host: a\n  host: b\n", 3, "more than once"},
		{"nan", "FLAG: .nan\n", 1, "non-finite float"},
		{"inf in list", "ALLOWED:\n  - 1\n  - -.inf\n", 3, "non-finite float"},
		{"self alias", "FLAG: &loop [1, *loop]\n", 1, "contains itself"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			_, err := Merge(defaults, File(path), true)
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Merge() error = %v, want *ConfigurationError", err)
			}
			if cfgErr.Source != path {
				t.Fatalf("Source = %q, want %q", cfgErr.Source, path)
			}
			if tc.line > 0 && cfgErr.Line != tc.line {
				t.Fatalf("Line = %d, want %d (%v)", cfgErr.Line, tc.line, err)
			}
			if !strings.Contains(err.Error(), tc.snippet) {
				t.Fatalf("error = %q, want it to contain %q", err.Error(), tc.snippet)
			}
		})
	}
}

func TestMergeExpandsAliases(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "BASE: &base {host: a, port: 1}\nREPLICA: *base\nHOSTS: [*base, *base]\n")
	got, err := Merge(nil, File(path), true)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	base := map[string]any{"host": "a", "port": 1}
	want := Namespace{"BASE": base, "REPLICA": base, "HOSTS": []any{base, base}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Merge() = %#v, want %#v", got, want)
	}
}

// aliasLadder builds a small document whose alias expansion grows by a
// factor of nine per level.
func aliasLadder(levels int) string {
	var b strings.Builder
	b.WriteString("l0: &l0 [1, 1, 1, 1, 1, 1, 1, 1, 1]\n")
	for i := 1; i <= levels; i++ {
		ref := fmt.Sprintf("*l%d", i-1)
		fmt.Fprintf(&b, "l%d: &l%d [%s]\n", i, i, strings.TrimSuffix(strings.Repeat(ref+", ", 9), ", "))
	}
	return b.String()
}

func TestExcessiveAliasingIsRejected(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, aliasLadder(8))

	for name, run := range map[string]func() error{
		"Validate": func() error { return Validate(File(path)) },
		"Merge": func() error {
			_, err := Merge(nil, File(path), true)
			return err
		},
	} {
		err := run()
		var cfgErr *ConfigurationError
		if !errors.As(err, &cfgErr) || !strings.Contains(err.Error(), "excessive aliasing") {
			t.Fatalf("%s() error = %v, want excessive aliasing", name, err)
		}
	}

	// A short ladder stays within the ratio.
	small := writeConfig(t, aliasLadder(1))
	if _, err := Merge(nil, File(small), true); err != nil {
		t.Fatalf("Merge(small ladder) error = %v", err)
	}
}

func TestMergeMissingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing.yaml")
	_, err := Merge(nil, File(path), true)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Merge() error = %v, want os.ErrNotExist", err)
	}
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Merge() error type = %T", err)
	}
}

func TestMergeUnsupportedDefault(t *testing.T) {
	t.Parallel()

	defaults := Static("defaults", Namespace{"HANDLER": func() {}})
	_, err := Merge(defaults, Static("overrides", nil), true)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Setting != "HANDLER" || cfgErr.Source != "defaults" {
		t.Fatalf("Merge() error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	ok := writeConfig(t, "ALLOWED: !expr ALLOWED + [3]\nAPPS: !extend [x]\n")
	if err := Validate(File(ok)); err != nil {
		t.Fatalf("Validate() error = %v, want references left unresolved", err)
	}

	bad := writeConfig(t, "ALLOWED: !expr ALLOWED +\n")
	if err := Validate(File(bad)); err == nil {
		t.Fatalf("Validate() expected syntax error")
	}

	if err := Validate(File(filepath.Join(t.TempDir(), "nope.yaml"))); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Validate(missing) error = %v", err)
	}

	if err := Validate(nil); err == nil {
		t.Fatalf("Validate(nil) expected error")
	}
	if err := Validate(Static("s", Namespace{"A": 1})); err != nil {
		t.Fatalf("Validate(static) error = %v", err)
	}
}

func TestConfigurationErrorFormat(t *testing.T) {
	t.Parallel()

	err := &ConfigurationError{Source: "local.yaml", Setting: "FOO", Line: 3, Column: 1, Err: ErrExtraSetting}
	want := "configuration error: local.yaml:3:1: FOO: extra settings are not allowed"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
	if got := (&ConfigurationError{Err: errors.New("boom")}).Error(); got != "configuration error: boom" {
		t.Fatalf("Error() = %q", got)
	}
	if AsConfigurationError("x", nil) != nil {
		t.Fatalf("AsConfigurationError(nil) != nil")
	}
	wrapped := AsConfigurationError("outer", err)
	if wrapped != error(err) {
		t.Fatalf("AsConfigurationError() rewrapped an existing ConfigurationError")
	}
}
