package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/quailyquaily/logan/integration"
	"github.com/quailyquaily/logan/settings"
)

// AppConfig is how the embedded app consumes its settings.
type AppConfig struct {
	Debug   bool          `mapstructure:"debug"`
	Allowed []int         `mapstructure:"allowed"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func main() {
	var (
		configPath = flag.String("config", "local.yaml", "Override file for the embedded app.")
		strict     = flag.Bool("strict", false, "Reject settings the app does not define.")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	reg := integration.NewRegistry(logger)

	// The app ships its defaults as a module of its own.
	if _, err := reg.Register("app.defaults", settings.Namespace{
		"DEBUG":   false,
		"ALLOWED": []int{1, 2},
		"TIMEOUT": 30 * time.Second,
	}); err != nil {
		fail(err)
	}

	var app AppConfig
	cfg := integration.DefaultInstallConfig()
	cfg.Name = "app.settings"
	cfg.ConfigPath = strings.TrimSpace(*configPath)
	cfg.DefaultSettings = "app.defaults"
	cfg.AllowExtras = !*strict
	cfg.Callback = func(m *integration.Module) error {
		return m.Decode(&app)
	}
	if err := reg.Install(cfg); err != nil {
		fail(err)
	}

	mod, err := reg.Resolve("app.settings")
	if err != nil {
		fail(err)
	}
	fp, err := mod.Fingerprint()
	if err != nil {
		fail(err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]any{
		"module":      mod.Name(),
		"file":        mod.File(),
		"fingerprint": fp,
		"settings":    mod.Settings(),
		"app": map[string]any{
			"debug":   app.Debug,
			"allowed": app.Allowed,
			"timeout": app.Timeout.String(),
		},
	})
}

func fail(err error) {
	_, _ = fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
