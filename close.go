package bionic

import (
	"github.com/binarycraft007/bionic-translation/internal/libdl"
	"github.com/binarycraft007/bionic-translation/internal/lifecycle"
	"github.com/binarycraft007/bionic-translation/internal/module"
	"github.com/binarycraft007/bionic-translation/internal/segment"
)

// Close decrements h's reference count; on reaching zero it runs
// destructors, restores RELRO to read-write, clears the module's
// DT_NEEDED payload, recursively releases its dependencies, removes it
// from the registry and debugger list, and unmaps its reservation
// (spec.md §4.7, §4.9).
func (c *Context) Close(h Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h.special != handleGuest || h.mod == nil {
		return nil
	}
	return c.releaseModule(h.mod)
}

func (c *Context) releaseModule(m *module.Module) error {
	// The libdl-stub sentinel is a process-wide synthetic singleton, never
	// itself mapped or registered: a DT_NEEDED slot that fell back to it
	// is never retained, and it must never be unmapped or removed as if
	// it were a real dependent module.
	if m == libdl.Stub() {
		return nil
	}
	if !c.registry.Release(m) {
		return nil
	}

	c.runDestructorsFor(m)

	img := &segment.Image{Base: m.Base, Size: m.Size, Relro: m.GNURelro}
	if err := segment.UnprotectRelro(img); err != nil {
		return err
	}

	deps := m.NeededModule
	m.NeededModule = nil

	c.debug.Delete(m)
	c.registry.Remove(m)

	if err := segment.Unmap(img); err != nil {
		return err
	}

	for _, dep := range deps {
		if dep == nil {
			continue
		}
		if err := c.releaseModule(dep); err != nil {
			return err
		}
	}
	return nil
}

// runDestructorsFor runs just m's own fini array/function, in the
// reverse-of-construction order CallDestructors implements, then drops
// m from the recorded construction order.
func (c *Context) runDestructorsFor(m *module.Module) {
	lifecycle.CallDestructors([]*module.Module{m})

	kept := c.constructed[:0]
	for _, cm := range c.constructed {
		if cm != m {
			kept = append(kept, cm)
		}
	}
	c.constructed = kept
}
