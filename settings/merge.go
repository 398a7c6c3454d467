package settings

import (
	"errors"
)

// Merge applies defaults and then overrides to an empty Namespace.
//
// defaults may be nil. Its non-reserved bindings are copied as they are;
// defaults are never filtered by allowExtras. overrides is evaluated with the
// defaults in scope, and each non-reserved binding it produces replaces a
// default of the same name. A binding with no matching default is added when
// allowExtras is true and fails the merge with ErrExtraSetting otherwise.
//
// Every failure is a *ConfigurationError.
func Merge(defaults, overrides Source, allowExtras bool) (Namespace, error) {
	result := Namespace{}

	if defaults != nil {
		bindings, err := defaults.Bindings(Namespace{})
		if err != nil {
			return nil, AsConfigurationError(defaults.String(), err)
		}
		for _, b := range bindings {
			if IsReserved(b.Name) {
				continue
			}
			result[b.Name] = b.Value
		}
	}

	if overrides == nil {
		return nil, &ConfigurationError{Err: errors.New("no override source")}
	}
	bindings, err := overrides.Bindings(result)
	if err != nil {
		return nil, AsConfigurationError(overrides.String(), err)
	}
	for _, b := range bindings {
		if IsReserved(b.Name) {
			continue
		}
		if _, isDefault := result[b.Name]; !isDefault && !allowExtras {
			return nil, &ConfigurationError{
				Source:  overrides.String(),
				Setting: b.Name,
				Line:    b.Line,
				Column:  b.Column,
				Err:     ErrExtraSetting,
			}
		}
		result[b.Name] = b.Value
	}
	return result, nil
}

// Validate checks src without needing any defaults. File sources are checked
// structurally (see FileSource.Check); other sources are evaluated against an
// empty scope.
func Validate(src Source) error {
	if src == nil {
		return &ConfigurationError{Err: errors.New("no override source")}
	}
	if c, ok := src.(interface{ Check() error }); ok {
		return AsConfigurationError(src.String(), c.Check())
	}
	_, err := src.Bindings(Namespace{})
	return AsConfigurationError(src.String(), err)
}
