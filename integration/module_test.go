package integration

import (
	"reflect"
	"testing"
	"time"

	"github.com/quailyquaily/logan/settings"
)

func TestModuleAccessorsReturnCopies(t *testing.T) {
	t.Parallel()

	m := newModule("app.settings", "local.yaml", settings.Namespace{
		"APPS":  []any{"core"},
		"_hide": 1,
	})
	if m.Len() != 1 || !reflect.DeepEqual(m.Names(), []string{"APPS"}) {
		t.Fatalf("Names() = %v, want [APPS]", m.Names())
	}

	apps := m.Get("APPS").([]any)
	apps[0] = "changed"
	all := m.Settings()
	all["APPS"] = "replaced"

	if got := m.Get("APPS"); !reflect.DeepEqual(got, []any{"core"}) {
		t.Fatalf("module mutated through accessor: %#v", got)
	}
	if _, ok := m.Lookup("MISSING"); ok {
		t.Fatalf("Lookup(MISSING) ok = true")
	}
	if got := m.String(); got != `<settings module "app.settings" from "local.yaml">` {
		t.Fatalf("String() = %q", got)
	}
}

func TestModuleDecode(t *testing.T) {
	t.Parallel()

	m := newModule("app.settings", "", settings.Namespace{
		"DEBUG":   true,
		"ALLOWED": []any{1, 2, 3},
		"TIMEOUT": "1m30s",
		"DATABASE": map[string]any{
			"HOST": "db.internal",
			"PORT": 5432,
		},
	})

	var cfg struct {
		Debug    bool          `mapstructure:"debug"`
		Allowed  []int         `mapstructure:"allowed"`
		Timeout  time.Duration `mapstructure:"timeout"`
		Database struct {
			Host string `mapstructure:"host"`
			Port int    `mapstructure:"port"`
		} `mapstructure:"database"`
	}
	if err := m.Decode(&cfg); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !cfg.Debug || !reflect.DeepEqual(cfg.Allowed, []int{1, 2, 3}) || cfg.Timeout != 90*time.Second {
		t.Fatalf("Decode() = %+v", cfg)
	}
	if cfg.Database.Host != "db.internal" || cfg.Database.Port != 5432 {
		t.Fatalf("Decode() database = %+v", cfg.Database)
	}

	v := m.Viper()
	if v.GetDuration("timeout") != 90*time.Second {
		t.Fatalf("Viper().GetDuration(timeout) = %v", v.GetDuration("timeout"))
	}
	if v.GetString("database.host") != "db.internal" {
		t.Fatalf("Viper().GetString(database.host) = %q", v.GetString("database.host"))
	}
}

func TestModuleFingerprint(t *testing.T) {
	t.Parallel()

	a := newModule("a", "", settings.Namespace{"X": 1, "Y": map[string]any{"b": 2, "a": 1}})
	b := newModule("b", "other.yaml", settings.Namespace{"Y": map[string]any{"a": 1, "b": 2}, "X": 1})
	c := newModule("c", "", settings.Namespace{"X": 2, "Y": map[string]any{"a": 1, "b": 2}})

	fa, err := a.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	fb, _ := b.Fingerprint()
	fc, _ := c.Fingerprint()
	if fa != fb {
		t.Fatalf("equal settings fingerprints differ: %s vs %s", fa, fb)
	}
	if fa == fc {
		t.Fatalf("different settings share fingerprint %s", fa)
	}
	if len(fa) != 64 {
		t.Fatalf("Fingerprint() length = %d, want 64", len(fa))
	}
}
