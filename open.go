package bionic

import (
	"errors"
	"fmt"
	"os"

	"github.com/binarycraft007/bionic-translation/internal/dynsec"
	"github.com/binarycraft007/bionic-translation/internal/elfconst"
	"github.com/binarycraft007/bionic-translation/internal/elfreader"
	"github.com/binarycraft007/bionic-translation/internal/hostsym"
	"github.com/binarycraft007/bionic-translation/internal/libdl"
	"github.com/binarycraft007/bionic-translation/internal/lifecycle"
	"github.com/binarycraft007/bionic-translation/internal/module"
	"github.com/binarycraft007/bionic-translation/internal/pathio"
	"github.com/binarycraft007/bionic-translation/internal/reloc"
	"github.com/binarycraft007/bionic-translation/internal/segment"
	"github.com/binarycraft007/bionic-translation/internal/shim"
)

// Open loads name (a DT_NEEDED-style or dlopen-style request), mapping,
// relocating, registering, and constructing it and every not-yet-loaded
// dependency in the order spec.md §5 prescribes: map, relocate,
// RELRO-protect, register, notify-debugger, run constructors. flags is
// accepted for API compatibility; this loader does not distinguish
// RTLD_NOW from RTLD_LAZY (relocation is always eager).
func (c *Context) Open(name string, flags int) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, err := c.linkModule(name)
	if err != nil {
		return Handle{}, c.fail("%v", err)
	}

	var order []*module.Module
	lifecycle.CallConstructors(m, true, &order)
	c.constructed = append(c.constructed, order...)

	if c.mainExe == nil {
		c.mainExe = m
		m.SetFlag(module.FlagExe)
	}

	c.ensureHardened()
	return Handle{mod: m}, nil
}

// linkModule maps, relocates, RELRO-protects, registers and
// debugger-notifies name and every dependency it needs, recursively,
// bottom-up, without running any constructor (Open does that once the
// whole graph is linked). An already-registered module is reused and
// retained rather than reloaded.
//
// The module record is reserved in the registry, flagged IN_PROGRESS,
// before any DT_NEEDED dependency is recursed into (mirrors
// apkenv_alloc_info linking a soinfo into apkenv_solist immediately on
// allocation). That makes an in-progress module visible to Lookup, so a
// dependency cycle (A needs B, B needs A) is reported as a recursive
// DT_NEEDED cycle instead of recursing into linkModule forever. A name
// that cannot be located at all binds its NeededModule slot to the
// libdl-stub sentinel rather than failing the whole load; any other
// failure latches the reserved record FLAG_ERROR and leaves it resident
// so a later attempt to open it fails fast instead of silently retrying.
func (c *Context) linkModule(name string) (*module.Module, error) {
	normalized := c.resolver.Normalize(name)

	if m, ok := c.registry.Lookup(normalized); ok {
		if m.HasFlag(module.FlagInProgress) {
			return nil, errCycle(normalized)
		}
		if m.HasFlag(module.FlagError) {
			return nil, errPreviouslyFailed(normalized)
		}
		c.registry.Retain(m)
		return m, nil
	}

	path, ok := c.resolver.Locate(normalized, pathio.Exists)
	if !ok {
		return nil, errNotFound(normalized)
	}

	ef, err := elfreader.Open(path)
	if err != nil {
		return nil, err
	}
	defer ef.Close()

	m := &module.Module{
		Name:  normalized,
		Path:  path,
		Arch:  ef.Header.Arch,
		Phdr:  ef.Phdrs,
		Phnum: len(ef.Phdrs),
	}
	m.SetFlag(module.FlagInProgress)
	if err := c.registry.Reserve(m); err != nil {
		return nil, err
	}

	img, err := segment.Map(ef.Fd(), ef.Phdrs, ef.PrelinkBase)
	if err != nil {
		c.registry.Remove(m)
		return nil, err
	}
	m.Base, m.Size, m.WriteProtect, m.GNURelro = img.Base, img.Size, img.WriteProtect, img.Relro

	fileData, err := os.ReadFile(path)
	if err != nil {
		segment.Unmap(img)
		c.registry.Remove(m)
		return nil, err
	}

	dynOff, ok := ef.DynamicOffset()
	if !ok {
		segment.Unmap(img)
		c.registry.Remove(m)
		return nil, errNoDynamic(normalized)
	}
	if err := dynsec.Parse(m, dynsec.Image{Data: fileData, Base: m.Base, Arch: m.Arch}, dynOff); err != nil {
		segment.Unmap(img)
		c.registry.Remove(m)
		return nil, err
	}

	m.NeededModule = make([]*module.Module, len(m.Needed))
	for i, dep := range m.Needed {
		depM, err := c.linkModule(dep)
		if err != nil {
			if !isNotFound(err) {
				segment.Unmap(img)
				c.failLink(m)
				return nil, err
			}
			depM = libdl.Stub()
		}
		m.NeededModule[i] = depM
	}

	if err := c.relocate(m); err != nil {
		segment.Unmap(img)
		c.failLink(m)
		return nil, err
	}

	if err := segment.ProtectReadOnly(img); err != nil {
		segment.Unmap(img)
		c.failLink(m)
		return nil, err
	}
	if err := segment.ProtectRelro(img); err != nil {
		segment.Unmap(img)
		c.failLink(m)
		return nil, err
	}

	m.ClearFlag(module.FlagInProgress)
	m.SetFlag(module.FlagLinked)
	c.registry.Finalize(m)
	c.debug.Add(m)
	c.registry.Retain(m)

	return m, nil
}

// failLink latches a reserved-but-broken module ERROR and drops its
// IN_PROGRESS marker. The record stays in the registry so a second
// attempt to open it fails fast (errPreviouslyFailed) instead of
// re-running a relocation that is known to fail.
func (c *Context) failLink(m *module.Module) {
	m.ClearFlag(module.FlagInProgress)
	m.SetFlag(module.FlagError)
}

func (c *Context) relocate(m *module.Module) error {
	env := reloc.Env{
		Preloads:      c.preloads,
		MainExe:       c.mainExe,
		HostLookup:    hostsym.Lookup,
		GLLookup:      shim.GLLookup,
		WrapperCreate: shim.NewWrapperCreate(m.Arch),
		StubCreate:    c.stubCreateFor(m.Arch),
		DieAtRuntime:  c.cfg.DieAtRuntime,
	}
	return reloc.Apply(m, env)
}

// stubCreateFor lazily builds and caches one reloc.StubCreate hook per
// guest architecture: every die-at-runtime trampoline for a given
// architecture is built the same way, so there is no reason to rebuild
// the hook on every relocation pass.
func (c *Context) stubCreateFor(arch elfconst.Arch) reloc.StubCreate {
	if sc, ok := c.stubCreate[arch]; ok {
		return sc
	}
	sc := reloc.NewStubCreate(arch)
	c.stubCreate[arch] = sc
	return sc
}

// notFoundError marks a name that could not be located in the search
// path at all, the one failure mode a DT_NEEDED dependency recovers
// from by binding to the libdl stub instead of failing the whole load.
type notFoundError struct{ name string }

func (e *notFoundError) Error() string {
	return fmt.Sprintf("bionic: cannot locate %q in the configured search path", e.name)
}

func errNotFound(name string) error {
	return &notFoundError{name: name}
}

func isNotFound(err error) bool {
	var e *notFoundError
	return errors.As(err, &e)
}

func errCycle(name string) error {
	return fmt.Errorf("bionic: %q: recursive DT_NEEDED cycle", name)
}

func errPreviouslyFailed(name string) error {
	return fmt.Errorf("bionic: %q failed to load previously", name)
}

func errNoDynamic(name string) error {
	return fmt.Errorf("bionic: %q has no PT_DYNAMIC segment", name)
}
