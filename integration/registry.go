package integration

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/quailyquaily/logan/internal/sourceref"
	"github.com/quailyquaily/logan/settings"
)

// ErrModuleNotFound is returned by Resolve for a name that has neither a
// module nor an installation.
var ErrModuleNotFound = errors.New("settings module not found")

// Registry resolves settings modules by name. Installed names are built
// lazily on first Resolve. It is safe for concurrent use.
type Registry struct {
	log *slog.Logger

	mu      sync.RWMutex
	modules map[string]*Module
	hooks   map[string]*hook
}

// hook is one installation. mu serializes the first build of its module.
type hook struct {
	id  string
	cfg InstallConfig
	ref sourceref.Ref
	mu  sync.Mutex
}

func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:     log,
		modules: make(map[string]*Module),
		hooks:   make(map[string]*hook),
	}
}

// Register adds a module built from ns directly, e.g. an application's
// defaults declared in Go. Reserved names are dropped.
func (r *Registry) Register(name string, ns settings.Namespace) (*Module, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("register: name is required")
	}
	bindings, err := settings.Static(name, ns).Bindings(nil)
	if err != nil {
		return nil, err
	}
	clean := make(settings.Namespace, len(bindings))
	for _, b := range bindings {
		clean[b.Name] = b.Value
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modules[name]; ok {
		return nil, fmt.Errorf("register: module %q already exists", name)
	}
	if _, ok := r.hooks[name]; ok {
		return nil, fmt.Errorf("register: %q is installed from a configuration file", name)
	}
	m := newModule(name, "", clean)
	r.modules[name] = m
	return m, nil
}

// Install validates cfg.ConfigPath and arranges for cfg.Name to be built from
// it on first Resolve. Installing a name that is already installed is a no-op
// unless cfg.Replace is set. Validation failures are *settings.ConfigurationError.
func (r *Registry) Install(cfg InstallConfig) error {
	cfg = normalizeInstallConfig(cfg)
	if cfg.Name == "" {
		return errors.New("install: name is required")
	}
	if strings.TrimSpace(cfg.ConfigPath) == "" {
		return fmt.Errorf("install %s: config path is required", cfg.Name)
	}

	if !cfg.Replace && r.Installed(cfg.Name) {
		r.log.Debug("settings_install_skipped", "name", cfg.Name, "reason", "already_installed")
		return nil
	}

	var ref sourceref.Ref
	if cfg.Defaults == nil {
		parsed, err := sourceref.Parse(cfg.DefaultSettings)
		if err != nil {
			return &settings.ConfigurationError{Source: cfg.DefaultSettings, Err: err}
		}
		if parsed.Kind == sourceref.KindModule && parsed.Target == cfg.Name {
			return &settings.ConfigurationError{Source: cfg.DefaultSettings, Err: fmt.Errorf("%s cannot be its own defaults", cfg.Name)}
		}
		ref = parsed
	}
	if err := settings.Validate(settings.File(cfg.ConfigPath)); err != nil {
		return err
	}

	h := &hook{id: uuid.NewString(), cfg: cfg, ref: ref}

	r.mu.Lock()
	if cycle := r.defaultsCycle(cfg.Name, ref); cycle != "" {
		r.mu.Unlock()
		return &settings.ConfigurationError{Source: cfg.DefaultSettings, Err: fmt.Errorf("cyclic defaults: %s", cycle)}
	}
	_, replaced := r.hooks[cfg.Name]
	if !replaced {
		if _, registered := r.modules[cfg.Name]; registered && !cfg.Replace {
			r.mu.Unlock()
			return fmt.Errorf("install: module %q already exists", cfg.Name)
		}
	}
	if replaced && !cfg.Replace {
		// Lost a race with a concurrent Install of the same name.
		r.mu.Unlock()
		r.log.Debug("settings_install_skipped", "name", cfg.Name, "reason", "already_installed")
		return nil
	}
	r.hooks[cfg.Name] = h
	delete(r.modules, cfg.Name)
	r.mu.Unlock()

	r.log.Info("settings_install",
		"hook_id", h.id,
		"name", cfg.Name,
		"config_path", cfg.ConfigPath,
		"defaults", defaultsLabel(cfg, ref),
		"allow_extras", cfg.AllowExtras,
		"replaced", replaced,
	)
	return nil
}

// Resolve returns the module registered or installed under name, building
// it on first use.
func (r *Registry) Resolve(name string) (*Module, error) {
	return r.resolve(strings.TrimSpace(name), nil)
}

func (r *Registry) resolve(name string, chain []string) (*Module, error) {
	for _, seen := range chain {
		if seen == name {
			return nil, &settings.ConfigurationError{
				Setting: name,
				Err:     fmt.Errorf("cyclic defaults: %s -> %s", strings.Join(chain, " -> "), name),
			}
		}
	}

	r.mu.RLock()
	m, ok := r.modules[name]
	h := r.hooks[name]
	r.mu.RUnlock()
	if ok {
		return m, nil
	}
	if h == nil {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}
	return r.load(h, append(chain, name))
}

func (r *Registry) load(h *hook, chain []string) (*Module, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r.mu.RLock()
	m, ok := r.modules[h.cfg.Name]
	r.mu.RUnlock()
	if ok {
		return m, nil
	}

	defaults, err := r.defaultsSource(h, chain)
	if err != nil {
		r.log.Warn("settings_load_error", "hook_id", h.id, "name", h.cfg.Name, "error", err.Error())
		return nil, settings.AsConfigurationError(h.ref.String(), err)
	}
	ns, err := settings.Merge(defaults, settings.File(h.cfg.ConfigPath), h.cfg.AllowExtras)
	if err != nil {
		r.log.Warn("settings_load_error", "hook_id", h.id, "name", h.cfg.Name, "error", err.Error())
		return nil, err
	}
	m, err = r.synthesize(h, ns)
	if errors.Is(err, errHookReplaced) {
		r.log.Debug("settings_build_discarded", "hook_id", h.id, "name", h.cfg.Name, "reason", "hook_replaced")
		return r.resolve(h.cfg.Name, chain[:len(chain)-1])
	}
	return m, err
}

func (r *Registry) defaultsSource(h *hook, chain []string) (settings.Source, error) {
	if h.cfg.Defaults != nil {
		return h.cfg.Defaults, nil
	}
	switch h.ref.Kind {
	case sourceref.KindFile:
		return settings.File(h.ref.Target), nil
	case sourceref.KindModule:
		m, err := r.resolve(h.ref.Target, chain)
		if err != nil {
			return nil, fmt.Errorf("defaults %s: %w", h.ref.Target, err)
		}
		return settings.Static(m.Name(), m.settings), nil
	}
	return nil, nil
}

// errHookReplaced reports a build finished by a hook that Install has since
// replaced.
var errHookReplaced = errors.New("hook replaced during build")

// synthesize stores the module built by h unless one exists, then runs the
// callback with it. The module is visible to Resolve while the callback runs.
func (r *Registry) synthesize(h *hook, ns settings.Namespace) (*Module, error) {
	name, file, callback := h.cfg.Name, h.cfg.ConfigPath, h.cfg.Callback

	r.mu.Lock()
	if r.hooks[name] != h {
		r.mu.Unlock()
		return nil, errHookReplaced
	}
	if m, ok := r.modules[name]; ok {
		r.mu.Unlock()
		return m, nil
	}
	m := newModule(name, file, ns)
	r.modules[name] = m
	r.mu.Unlock()

	r.log.Info("settings_module_synthesized", "name", name, "file", file, "settings", m.Len())

	if callback != nil {
		if err := callback(m); err != nil {
			r.mu.Lock()
			if r.modules[name] == m {
				delete(r.modules, name)
			}
			r.mu.Unlock()
			r.log.Warn("settings_callback_error", "name", name, "error", err.Error())
			return nil, &settings.ConfigurationError{Source: file, Err: fmt.Errorf("callback: %w", err)}
		}
	}
	return m, nil
}

// Installed reports whether name has an installation.
func (r *Registry) Installed(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.hooks[strings.TrimSpace(name)]
	return ok
}

// Forget drops the cached module for name. An installed name is rebuilt on
// the next Resolve; a registered one is gone.
func (r *Registry) Forget(name string) bool {
	name = strings.TrimSpace(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.modules[name]
	delete(r.modules, name)
	return ok
}

// Names returns every resolvable name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	seen := make(map[string]struct{}, len(r.modules)+len(r.hooks))
	for name := range r.modules {
		seen[name] = struct{}{}
	}
	for name := range r.hooks {
		seen[name] = struct{}{}
	}
	r.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// defaultsCycle follows module references from ref through the installed
// hooks and returns the chain when it leads back to name. Callers hold r.mu.
func (r *Registry) defaultsCycle(name string, ref sourceref.Ref) string {
	chain := []string{name}
	seen := map[string]bool{name: true}
	for ref.Kind == sourceref.KindModule {
		chain = append(chain, ref.Target)
		if ref.Target == name {
			return strings.Join(chain, " -> ")
		}
		if seen[ref.Target] {
			return ""
		}
		seen[ref.Target] = true
		next, ok := r.hooks[ref.Target]
		if !ok || next.cfg.Defaults != nil {
			return ""
		}
		ref = next.ref
	}
	return ""
}

func defaultsLabel(cfg InstallConfig, ref sourceref.Ref) string {
	if cfg.Defaults != nil {
		return cfg.Defaults.String()
	}
	return ref.String()
}

// Load installs cfg into a fresh registry and resolves it. It suits one-shot
// callers that have no other modules to share.
func Load(cfg InstallConfig, log *slog.Logger) (*Module, error) {
	reg := NewRegistry(log)
	if err := reg.Install(cfg); err != nil {
		return nil, err
	}
	return reg.Resolve(cfg.Name)
}
