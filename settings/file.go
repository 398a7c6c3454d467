package settings

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/quailyquaily/logan/internal/settingsexpr"
	"gopkg.in/yaml.v3"
)

const (
	tagExpr   = "!expr"
	tagExtend = "!extend"
	tagRef    = "!ref"
)

// FileSource is an override file. It is read each time it is applied.
type FileSource struct {
	path string
}

// File returns the Source for the override file at path.
func File(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) String() string { return f.path }

// Path returns the path exactly as given to File.
func (f *FileSource) Path() string { return f.path }

// Check verifies the file without evaluating it: it must be readable, parse
// as YAML, have a mapping of identifiers at the top level, use only known
// tags, and every !expr must parse. Names referenced by expressions are not
// resolved.
func (f *FileSource) Check() error {
	_, err := f.load()
	return err
}

// Bindings evaluates the file in document order. A binding sees scope, the
// file's own earlier bindings, and FileBinding.
func (f *FileSource) Bindings(scope Namespace) ([]Binding, error) {
	root, err := f.load()
	if err != nil || root == nil {
		return nil, err
	}

	local := make(Namespace, len(root.Content)/2)
	lookup := settingsexpr.ScopeFunc(func(name string) (any, bool) {
		if v, ok := local[name]; ok {
			return v, true
		}
		if name == FileBinding {
			return f.path, true
		}
		return scope.Lookup(name)
	})

	out := make([]Binding, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		v, err := evalNode(key.Value, val, lookup)
		if err != nil {
			return nil, f.errorAt(val, key.Value, err)
		}
		local[key.Value] = v
		out = append(out, Binding{Name: key.Value, Value: v, Line: key.Line, Column: key.Column})
	}
	return out, nil
}

// load reads and structurally checks the file. A nil node means the file
// binds nothing.
func (f *FileSource) load() (*yaml.Node, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, &ConfigurationError{Source: f.path, Err: err}
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigurationError{Source: f.path, Line: yamlErrorLine(err), Err: err}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.ShortTag() == "!!null" {
		return nil, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, f.errorAt(root, "", errors.New("top level must be a mapping of setting names to values"))
	}

	seen := make(map[string]int, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		if key.Kind != yaml.ScalarNode || !ValidName(key.Value) {
			return nil, f.errorAt(key, key.Value, ErrInvalidName)
		}
		if line, dup := seen[key.Value]; dup {
			return nil, f.errorAt(key, key.Value, fmt.Errorf("%w (first bound at line %d)", ErrDuplicateSetting, line))
		}
		seen[key.Value] = key.Line
		if err := checkNode(val, true); err != nil {
			return nil, f.errorAt(val, key.Value, err)
		}
	}
	if err := checkAliases(root); err != nil {
		return nil, f.errorAt(root, "", err)
	}
	return root, nil
}

func (f *FileSource) errorAt(n *yaml.Node, setting string, err error) error {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return err
	}
	var nodeErr *nodeError
	if errors.As(err, &nodeErr) {
		n, err = nodeErr.node, nodeErr.err
	}
	return &ConfigurationError{Source: f.path, Setting: setting, Line: n.Line, Column: n.Column, Err: err}
}

func checkNode(n *yaml.Node, topLevel bool) error {
	switch n.Tag {
	case tagExpr:
		if n.Kind != yaml.ScalarNode {
			return fmt.Errorf("%s needs a string expression", tagExpr)
		}
		if _, err := settingsexpr.Parse(n.Value); err != nil {
			return fmt.Errorf("%s %q: %w", tagExpr, n.Value, err)
		}
		return nil
	case tagRef:
		if n.Kind != yaml.ScalarNode || !ValidName(n.Value) {
			return fmt.Errorf("%s needs a setting name", tagRef)
		}
		return nil
	case tagExtend:
		if !topLevel {
			return fmt.Errorf("%s is only allowed on top-level settings", tagExtend)
		}
		return checkChildren(n)
	}
	if strings.HasPrefix(n.Tag, "!") && !strings.HasPrefix(n.Tag, "!!") {
		return fmt.Errorf("unknown tag %s", n.Tag)
	}
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!float" {
		var v float64
		if err := n.Decode(&v); err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
			return &nodeError{node: n, err: fmt.Errorf("non-finite float %s is not supported", n.Value)}
		}
	}
	return checkChildren(n)
}

func checkChildren(n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode:
		for _, item := range n.Content {
			if err := checkNode(item, false); err != nil {
				return err
			}
		}
	case yaml.MappingNode:
		seen := make(map[string]int, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind != yaml.ScalarNode {
				return errors.New("map keys must be scalars")
			}
			if key.ShortTag() == "!!merge" {
				return errors.New("merge keys are not supported")
			}
			if line, dup := seen[key.Value]; dup {
				return &nodeError{node: key, err: fmt.Errorf("key %q: %w (first bound at line %d)", key.Value, ErrDuplicateSetting, line)}
			}
			seen[key.Value] = key.Line
			if err := checkNode(n.Content[i+1], false); err != nil {
				return err
			}
		}
	}
	return nil
}

// nodeError pins a check failure to a node below the top-level value.
type nodeError struct {
	node *yaml.Node
	err  error
}

func (e *nodeError) Error() string { return e.err.Error() }

func (e *nodeError) Unwrap() error { return e.err }

// Alias expansion limits, as applied by yaml.v3's decoder.
const (
	aliasRatioRangeLow  = 400000
	aliasRatioRangeHigh = 4000000
	maxExpandedNodes    = 1 << 30
)

func allowedAliasRatio(decodeCount int) float64 {
	switch {
	case decodeCount <= aliasRatioRangeLow:
		return 0.99
	case decodeCount >= aliasRatioRangeHigh:
		return 0.10
	}
	return 0.99 - 0.89*(float64(decodeCount-aliasRatioRangeLow)/float64(aliasRatioRangeHigh-aliasRatioRangeLow))
}

// checkAliases rejects anchors whose value contains an alias to themselves
// and documents whose alias expansion is out of proportion to their size.
// Both would stall evalNode.
func checkAliases(root *yaml.Node) error {
	sizes := map[*yaml.Node]int{}
	active := map[*yaml.Node]bool{}
	expanded, err := expandedSize(root, sizes, active)
	if err != nil {
		return err
	}
	aliased := expanded - plainSize(root)
	if aliased > 100 && expanded > 1000 && float64(aliased)/float64(expanded) > allowedAliasRatio(expanded) {
		return errors.New("document contains excessive aliasing")
	}
	return nil
}

// expandedSize counts the nodes evalNode visits below n, following aliases.
func expandedSize(n *yaml.Node, sizes map[*yaml.Node]int, active map[*yaml.Node]bool) (int, error) {
	if s, ok := sizes[n]; ok {
		return s, nil
	}
	if active[n] {
		return 0, fmt.Errorf("anchor %q value contains itself", n.Anchor)
	}
	active[n] = true
	defer delete(active, n)

	total := 1
	if n.Kind == yaml.AliasNode {
		s, err := expandedSize(n.Alias, sizes, active)
		if err != nil {
			return 0, err
		}
		total = s
	} else {
		for _, child := range n.Content {
			s, err := expandedSize(child, sizes, active)
			if err != nil {
				return 0, err
			}
			total += s
			if total > maxExpandedNodes {
				total = maxExpandedNodes
			}
		}
	}
	sizes[n] = total
	return total, nil
}

func plainSize(n *yaml.Node) int {
	total := 1
	for _, child := range n.Content {
		total += plainSize(child)
	}
	return total
}

// evalNode evaluates a checked node. name is the top-level setting being
// bound and is what !extend extends.
func evalNode(name string, n *yaml.Node, scope settingsexpr.Scope) (any, error) {
	switch n.Tag {
	case tagExpr:
		return settingsexpr.Eval(n.Value, scope)
	case tagRef:
		v, ok := scope.Lookup(n.Value)
		if !ok {
			return nil, fmt.Errorf("%s: name %q is not defined", tagRef, n.Value)
		}
		return settingsexpr.Normalize(v)
	case tagExtend:
		cur, ok := scope.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%s: %s has no value to extend", tagExtend, name)
		}
		base, err := settingsexpr.Normalize(cur)
		if err != nil {
			return nil, err
		}
		plain := *n
		plain.Tag = ""
		more, err := evalNode("", &plain, scope)
		if err != nil {
			return nil, err
		}
		out, err := settingsexpr.Add(base, more)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tagExtend, err)
		}
		return out, nil
	}

	switch n.Kind {
	case yaml.AliasNode:
		return evalNode("", n.Alias, scope)
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := evalNode("", item, scope)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := evalNode("", n.Content[i+1], scope)
			if err != nil {
				return nil, err
			}
			out[n.Content[i].Value] = v
		}
		return out, nil
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!timestamp", "!!binary":
			return n.Value, nil
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return settingsexpr.Normalize(v)
	}
	return nil, fmt.Errorf("unsupported YAML node kind %d", n.Kind)
}

var _ Source = (*FileSource)(nil)
