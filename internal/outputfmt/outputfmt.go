package outputfmt

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml or yml. Empty input returns fallback.
func ParseFormat(raw string, fallback Format) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return fallback, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown output format %q (want json or yaml)", raw)
}

// FormatSettings renders settings with keys sorted. The result has no
// trailing newline.
func FormatSettings(settings map[string]any, format Format) (string, error) {
	if settings == nil {
		settings = map[string]any{}
	}
	switch format {
	case FormatJSON:
		b, err := json.MarshalIndent(settings, "", "  ")
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	case FormatYAML:
		if len(settings) == 0 {
			return "{}", nil
		}
		b, err := yaml.Marshal(settings)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	return "", fmt.Errorf("unknown output format %q", format)
}
