package settings

import (
	"fmt"
	"strings"

	"github.com/quailyquaily/logan/internal/settingsexpr"
)

// Source produces bindings. scope holds what is already bound when the
// source is applied; sources must only read it.
type Source interface {
	String() string
	Bindings(scope Namespace) ([]Binding, error)
}

// StaticSource is a set of already-bound values, e.g. an application's
// defaults declared in Go.
type StaticSource struct {
	name string
	ns   Namespace
}

// Static wraps ns as a Source. Values are converted to the settings data
// model when the source is applied.
func Static(name string, ns Namespace) *StaticSource {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "static"
	}
	return &StaticSource{name: name, ns: ns}
}

func (s *StaticSource) String() string { return s.name }

// Bindings returns the values in name order. scope is ignored.
func (s *StaticSource) Bindings(Namespace) ([]Binding, error) {
	out := make([]Binding, 0, len(s.ns))
	for _, name := range s.ns.Names() {
		v, err := settingsexpr.Normalize(s.ns[name])
		if err != nil {
			return nil, &ConfigurationError{Source: s.name, Setting: name, Err: fmt.Errorf("unsupported value: %w", err)}
		}
		out = append(out, Binding{Name: name, Value: v})
	}
	return out, nil
}

var _ Source = (*StaticSource)(nil)
