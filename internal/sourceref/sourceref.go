package sourceref

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind is the protocol of a defaults reference.
type Kind string

const (
	KindNone   Kind = ""
	KindFile   Kind = "file"
	KindModule Kind = "module"
)

// Protocol names are alphanumeric only (letters/digits).
var protocolPattern = regexp.MustCompile(`^[a-z][a-z0-9]*$`)

// Module names are dotted identifiers, e.g. "app.defaults".
var modulePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_\-]*(\.[A-Za-z_][A-Za-z0-9_\-]*)*$`)

// Ref points at a defaults source: a file on disk or a module already
// resolvable through a registry.
type Ref struct {
	Kind   Kind
	Target string
}

func (r Ref) String() string {
	if r.Kind == KindNone {
		return ""
	}
	return string(r.Kind) + ":" + r.Target
}

// IsZero reports whether the reference names nothing.
func (r Ref) IsZero() bool { return r.Kind == KindNone }

// Parse parses "file:<path>", "module:<name>" or a bare module name.
// Empty input returns a zero Ref.
func Parse(raw string) (Ref, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Ref{}, nil
	}
	if idx := strings.IndexByte(raw, ':'); idx > 0 {
		protocol := strings.ToLower(strings.TrimSpace(raw[:idx]))
		target := strings.TrimSpace(raw[idx+1:])
		if protocolPattern.MatchString(protocol) && len(protocol) > 1 {
			switch Kind(protocol) {
			case KindFile:
				if target == "" {
					return Ref{}, fmt.Errorf("invalid defaults reference %q: empty path", raw)
				}
				return Ref{Kind: KindFile, Target: target}, nil
			case KindModule:
				if !modulePattern.MatchString(target) {
					return Ref{}, fmt.Errorf("invalid defaults reference %q: bad module name", raw)
				}
				return Ref{Kind: KindModule, Target: target}, nil
			default:
				return Ref{}, fmt.Errorf("invalid defaults reference %q: unknown kind %q", raw, protocol)
			}
		}
	}
	if !modulePattern.MatchString(raw) {
		return Ref{}, fmt.Errorf("invalid defaults reference %q: use file:<path> or a module name", raw)
	}
	return Ref{Kind: KindModule, Target: raw}, nil
}
