package integration

import (
	"strings"

	"github.com/quailyquaily/logan/settings"
)

// InstallConfig controls one installation.
type InstallConfig struct {
	// Name the settings module is resolved by.
	Name string
	// ConfigPath is the override file. It becomes the module's File()
	// verbatim.
	ConfigPath string
	// DefaultSettings references the defaults: "file:<path>",
	// "module:<name>", or a bare module name resolved through the registry.
	// Empty means no defaults.
	DefaultSettings string
	// Defaults, when set, is used instead of DefaultSettings.
	Defaults settings.Source
	// AllowExtras accepts override names the defaults do not define.
	AllowExtras bool
	// Callback runs once with the freshly synthesized module, before the
	// first Resolve returns. An error fails that Resolve.
	Callback func(*Module) error
	// Replace swaps an existing installation of Name and drops its cached
	// module. Without it, installing a name twice is a no-op.
	Replace bool
}

func DefaultInstallConfig() InstallConfig {
	return InstallConfig{
		AllowExtras: true,
	}
}

func normalizeInstallConfig(cfg InstallConfig) InstallConfig {
	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.DefaultSettings = strings.TrimSpace(cfg.DefaultSettings)
	return cfg
}
