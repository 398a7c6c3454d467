package settings

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrExtraSetting is wrapped when an override introduces a name the
	// defaults do not define while extras are disallowed.
	ErrExtraSetting = errors.New("extra settings are not allowed")
	// ErrDuplicateSetting is wrapped when a file binds a name twice.
	ErrDuplicateSetting = errors.New("setting is bound more than once")
	// ErrInvalidName is wrapped when a file binds a key that is not an identifier.
	ErrInvalidName = errors.New("setting name must be an identifier")
)

// ConfigurationError is the single error kind returned while loading
// settings. It keeps the failing source, the setting involved and the
// position when known, and wraps the original cause.
type ConfigurationError struct {
	Source  string
	Setting string
	Line    int
	Column  int
	Err     error
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if e.Source != "" {
		b.WriteString(": ")
		b.WriteString(e.Source)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
			if e.Column > 0 {
				fmt.Fprintf(&b, ":%d", e.Column)
			}
		}
	}
	if e.Setting != "" {
		b.WriteString(": ")
		b.WriteString(e.Setting)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// AsConfigurationError returns err unchanged when it already is (or wraps)
// a *ConfigurationError, and otherwise wraps it with source as context.
func AsConfigurationError(source string, err error) error {
	if err == nil {
		return nil
	}
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return err
	}
	return &ConfigurationError{Source: source, Err: err}
}

var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

// yamlErrorLine extracts the line number from a yaml.v3 syntax error.
func yamlErrorLine(err error) int {
	m := yamlLinePattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}
