package integration

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"github.com/quailyquaily/logan/internal/settingsexpr"
	"github.com/quailyquaily/logan/settings"
	"github.com/spf13/viper"
)

// Module is a merged settings namespace resolvable by name. It is immutable:
// every accessor hands out copies.
type Module struct {
	name     string
	file     string
	settings settings.Namespace
}

func newModule(name, file string, ns settings.Namespace) *Module {
	clean := make(settings.Namespace, len(ns))
	for k, v := range ns {
		if settings.IsReserved(k) {
			continue
		}
		clean[k] = v
	}
	return &Module{name: name, file: file, settings: clean.Clone()}
}

// Name is the name the module is registered under.
func (m *Module) Name() string { return m.name }

// File is the override file the module was built from, exactly as passed to
// Install. Modules created by Register have no file.
func (m *Module) File() string { return m.file }

// Lookup returns a copy of one setting.
func (m *Module) Lookup(name string) (any, bool) {
	v, ok := m.settings[name]
	if !ok {
		return nil, false
	}
	cp, err := settingsexpr.Normalize(v)
	if err != nil {
		return v, true
	}
	return cp, true
}

// Get is Lookup without the presence flag.
func (m *Module) Get(name string) any {
	v, _ := m.Lookup(name)
	return v
}

func (m *Module) Names() []string { return m.settings.Names() }

func (m *Module) Len() int { return len(m.settings) }

// Settings returns a copy of every setting.
func (m *Module) Settings() settings.Namespace { return m.settings.Clone() }

// Viper returns a new viper instance holding the settings, for typed access
// (GetDuration, GetStringSlice, ...). Viper keys are case-insensitive.
func (m *Module) Viper() *viper.Viper {
	v := viper.New()
	for name, value := range m.settings.Clone() {
		v.Set(name, value)
	}
	return v
}

// Decode unmarshals the settings into out (a pointer to a struct or map)
// using viper's mapstructure decoding.
func (m *Module) Decode(out any) error {
	if err := m.Viper().Unmarshal(out); err != nil {
		return fmt.Errorf("decode %s: %w", m.name, err)
	}
	return nil
}

// Fingerprint is the hex SHA-256 of the settings in RFC 8785 canonical JSON.
// Equal settings always have equal fingerprints.
func (m *Module) Fingerprint() (string, error) {
	raw, err := json.Marshal(m.settings)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", m.name, err)
	}
	canonical, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", m.name, err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func (m *Module) String() string {
	if m.file == "" {
		return fmt.Sprintf("<settings module %q>", m.name)
	}
	return fmt.Sprintf("<settings module %q from %q>", m.name, m.file)
}
