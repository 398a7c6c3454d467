package settings

import (
	"regexp"
	"sort"
	"strings"

	"github.com/quailyquaily/logan/internal/settingsexpr"
)

const (
	// ReservedPrefix marks bindings that are never treated as settings.
	ReservedPrefix = "_"
	// FileBinding is bound to the override file's path while it is evaluated.
	FileBinding = ReservedPrefix + "file"
)

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsReserved reports whether name carries the reserved prefix.
func IsReserved(name string) bool {
	return strings.HasPrefix(name, ReservedPrefix)
}

// ValidName reports whether name is an identifier a file may bind.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Namespace maps setting names to values in the settings data model
// (nil, bool, int, float64, string, []any, map[string]any).
type Namespace map[string]any

// Lookup implements settingsexpr.Scope.
func (ns Namespace) Lookup(name string) (any, bool) {
	v, ok := ns[name]
	return v, ok
}

// Names returns the bound names in sorted order.
func (ns Namespace) Names() []string {
	out := make([]string, 0, len(ns))
	for name := range ns {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy.
func (ns Namespace) Clone() Namespace {
	if ns == nil {
		return nil
	}
	out := make(Namespace, len(ns))
	for name, v := range ns {
		if cp, err := settingsexpr.Normalize(v); err == nil {
			out[name] = cp
		} else {
			out[name] = v
		}
	}
	return out
}

// Binding is one name bound by a Source, with its position when the
// source is a file.
type Binding struct {
	Name   string
	Value  any
	Line   int
	Column int
}
