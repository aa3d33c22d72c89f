package bionic

import (
	"github.com/binarycraft007/bionic-translation/internal/elfconst"
	"github.com/binarycraft007/bionic-translation/internal/hostsym"
	"github.com/binarycraft007/bionic-translation/internal/module"
	"github.com/binarycraft007/bionic-translation/internal/shim"
	"github.com/binarycraft007/bionic-translation/internal/symbol"
)

// Lookup resolves name against h following spec.md §4.9's search order:
// a host handle tries "bionic_"+name then name in the host; RTLD_DEFAULT
// searches the full registry in the same priority; a guest handle
// searches only that module's own symbol table. Every returned function
// address passes through the shim wrapper-create hook before being
// handed back.
func (c *Context) Lookup(h Handle, name string) (uintptr, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch h.special {
	case handleHost:
		return c.lookupHost(name)
	case handleDefault, handleNext:
		// RTLD_NEXT would properly search only the modules following the
		// caller's own module (identified by return address); without a
		// return-address argument this falls back to the same registry
		// search RTLD_DEFAULT uses.
		return c.lookupDefault(name)
	default:
		return c.lookupGuest(h.mod, name)
	}
}

func (c *Context) lookupHost(name string) (uintptr, error) {
	if addr, isFunc, ok := shim.Lookup(name); ok {
		return c.wrap(elfconst.ArchUnknown, name, addr, isFunc), nil
	}
	if addr, isFunc, ok := hostsym.Lookup(name); ok {
		return c.wrap(elfconst.ArchUnknown, name, addr, isFunc), nil
	}
	return 0, c.fail("bionic: host symbol %q not found", name)
}

func (c *Context) lookupDefault(name string) (uintptr, error) {
	if addr, err := c.lookupHost(name); err == nil {
		return addr, nil
	}
	if res, ok := symbol.LookupGlobal(c.registry.All(), name); ok {
		return c.wrap(res.Module.Arch, name, res.Address(), true), nil
	}
	return 0, c.fail("bionic: symbol %q not found in registry", name)
}

func (c *Context) lookupGuest(m *module.Module, name string) (uintptr, error) {
	if m == nil {
		return 0, c.fail("bionic: lookup against a nil guest handle")
	}
	sym, ok := symbol.LookupLocal(m, symbol.NewQuery(name))
	if !ok {
		return 0, c.fail("bionic: symbol %q not found in %s", name, m.Name)
	}
	return c.wrap(m.Arch, name, m.Rebase(sym.Value), true), nil
}

// wrap passes a resolved function address through the shim
// wrapper-create hook (identity on every architecture but ARM, where it
// preserves the Thumb bit); non-function symbols pass through untouched.
func (c *Context) wrap(arch elfconst.Arch, name string, addr uintptr, isFunc bool) uintptr {
	if !isFunc {
		return addr
	}
	return shim.NewWrapperCreate(arch)(name, addr)
}
