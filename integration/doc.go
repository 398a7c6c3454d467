// Package integration makes an embedded application's settings resolvable
// by name inside a host program.
//
// The host creates a Registry and installs a configuration file under a
// name. Install only validates the file; merging defaults and overrides
// happens the first time the name is resolved:
//
//	reg := integration.NewRegistry(logger)
//	if _, err := reg.Register("app.defaults", appDefaults); err != nil { ... }
//
//	cfg := integration.DefaultInstallConfig()
//	cfg.Name = "app.settings"
//	cfg.ConfigPath = "/etc/app/local.yaml"
//	cfg.DefaultSettings = "app.defaults"
//	if err := reg.Install(cfg); err != nil { ... }
//
//	mod, err := reg.Resolve("app.settings")
//
// A name is synthesized once; later resolutions return the same *Module
// until Forget evicts it.
package integration
