package configutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/quailyquaily/logan/integration"
	"github.com/quailyquaily/logan/internal/logutil"
	"github.com/quailyquaily/logan/internal/sourceref"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ModuleName is the name the CLI installs the checked file under.
const ModuleName = "logan.settings"

// FlagOrViperString returns the flag value when it was set on the command
// line, else the viper value for key.
func FlagOrViperString(cmd *cobra.Command, flag, key string) string {
	if cmd != nil {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			return f.Value.String()
		}
	}
	return viper.GetString(key)
}

func FlagOrViperBool(cmd *cobra.Command, flag, key string) bool {
	if cmd != nil {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			v, err := cmd.Flags().GetBool(flag)
			if err == nil {
				return v
			}
		}
	}
	return viper.GetBool(key)
}

// AddSettingsFlags registers --defaults and --allow-extras.
func AddSettingsFlags(cmd *cobra.Command) {
	cmd.Flags().String("defaults", "", "Defaults YAML file (optionally written file:<path>)")
	cmd.Flags().Bool("allow-extras", false, "Accept settings the defaults do not define")
}

// DefaultsRef turns a --defaults value into a file reference. The CLI has no
// registry to resolve module names against, so only files are accepted.
func DefaultsRef(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if strings.HasPrefix(raw, string(sourceref.KindModule)+":") {
		return "", fmt.Errorf("defaults %q: module references need a host registry; pass a YAML file", raw)
	}
	path := strings.TrimSpace(strings.TrimPrefix(raw, string(sourceref.KindFile)+":"))
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("defaults file not found: %s", path)
		}
		return "", fmt.Errorf("defaults file %s: %w", path, err)
	}
	return string(sourceref.KindFile) + ":" + path, nil
}

// LoggerFromCmd builds the logger from the global viper, writing to the
// command's stderr.
func LoggerFromCmd(cmd *cobra.Command) (*slog.Logger, error) {
	return logutil.LoggerFromViper(viper.GetViper(), cmd.ErrOrStderr())
}

// LoadModule merges configPath over the defaults named by the command's
// flags.
func LoadModule(cmd *cobra.Command, configPath string) (*integration.Module, error) {
	logger, err := LoggerFromCmd(cmd)
	if err != nil {
		return nil, err
	}
	cfg := integration.DefaultInstallConfig()
	cfg.Name = ModuleName
	cfg.ConfigPath = configPath
	if strings.TrimSpace(configPath) == "" {
		return nil, errors.New("missing config file argument")
	}
	defaults, err := DefaultsRef(FlagOrViperString(cmd, "defaults", "settings.defaults"))
	if err != nil {
		return nil, err
	}
	cfg.DefaultSettings = defaults
	cfg.AllowExtras = FlagOrViperBool(cmd, "allow-extras", "settings.allow_extras")
	return integration.Load(cfg, logger)
}
