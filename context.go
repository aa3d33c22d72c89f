package bionic

import (
	"sync"

	"github.com/binarycraft007/bionic-translation/internal/config"
	"github.com/binarycraft007/bionic-translation/internal/elfconst"
	"github.com/binarycraft007/bionic-translation/internal/gdb"
	"github.com/binarycraft007/bionic-translation/internal/hardening"
	"github.com/binarycraft007/bionic-translation/internal/module"
	"github.com/binarycraft007/bionic-translation/internal/pathresolve"
	"github.com/binarycraft007/bionic-translation/internal/registry"
	"github.com/binarycraft007/bionic-translation/internal/reloc"
)

// Context is one loader instance: its configuration, its module
// registry, its debugger-visible list, and the single lock every public
// operation is serialized through (spec.md §5's "global lock").
type Context struct {
	mu sync.Mutex

	cfg      *config.Config
	resolver *pathresolve.Resolver
	registry *registry.Registry
	debug    *gdb.List

	constructed []*module.Module
	mainExe     *module.Module
	preloads    []*module.Module

	hardened bool
	lastErr  string

	stubCreate map[elfconst.Arch]reloc.StubCreate
}

// NewContext reads configuration from the environment (spec.md §4.9,
// "Configuration at API-init time") and returns a ready-to-use loader
// instance. Each Context is independent; most programs need only one.
func NewContext() (*Context, error) {
	cfg := config.Load()

	reg := registry.New()
	for _, hook := range registry.DefaultOnLinkedHooks() {
		reg.OnLinkedHook(hook)
	}

	return &Context{
		cfg:        cfg,
		resolver:   pathresolve.New(cfg),
		registry:   reg,
		debug:      gdb.New(),
		stubCreate: make(map[elfconst.Arch]reloc.StubCreate),
	}, nil
}

// Config exposes the loaded configuration, primarily so embedders can
// consult LocaleOverrideEnabled from their own shim implementations
// (SPEC_FULL.md §C.7).
func (c *Context) Config() *config.Config { return c.cfg }

// AddSearchPath adds a fallback directory to the name resolver's search
// list (apkenv_add_sopath).
func (c *Context) AddSearchPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolver.AddFallback(path)
}

func (c *Context) ensureHardened() {
	if c.hardened {
		return
	}
	c.hardened = true
	if err := hardening.NullifyClosedStdio(); err != nil {
		// Best-effort: hardening failing outright is not a reason to
		// refuse a load that has already succeeded.
		_ = err
	}
}
