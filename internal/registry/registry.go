// Package registry is C6: it owns every loaded Module for the lifetime
// of the process, keyed by name, refcounted, and linked for reverse
// address lookup and dl_iterate_phdr-style enumeration (spec.md §4.7).
package registry

import (
	"fmt"
	"sync"

	"github.com/binarycraft007/bionic-translation/internal/hostsym"
	"github.com/binarycraft007/bionic-translation/internal/logging"
	"github.com/binarycraft007/bionic-translation/internal/module"
)

// OnLinked is invoked once per newly linked module, after relocation
// but before constructors run, so hookups like the libstdc++ demangler
// lookup (grounded on apkenv's sonames_cxa_demangle wiring) can run
// against a module guaranteed to have a resolved symbol table.
type OnLinked func(m *module.Module)

// Registry is the process-wide table of loaded modules. All methods are
// safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	byName  map[string]*module.Module
	head    *module.Module // registry list head, threaded via Module.Next
	onLinked []OnLinked
}

func New() *Registry {
	return &Registry{byName: make(map[string]*module.Module)}
}

// OnLinkedHook registers a callback Link invokes for every newly added
// module.
func (r *Registry) OnLinkedHook(fn OnLinked) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onLinked = append(r.onLinked, fn)
}

// Lookup returns the module registered under name, if any.
func (r *Registry) Lookup(name string) (*module.Module, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byName[name]
	return m, ok
}

// Add registers a newly loaded module, rejecting a duplicate name, and
// immediately finalizes it. Equivalent to Reserve followed by Finalize;
// kept for callers (and tests) that load a module in one uninterrupted
// step with no dependency graph to recurse into first.
func (r *Registry) Add(m *module.Module) error {
	if err := r.Reserve(m); err != nil {
		return err
	}
	r.Finalize(m)
	return nil
}

// Reserve threads m onto the registry's list under its name, rejecting
// a duplicate, but runs no OnLinked hooks and does not log. This makes
// m visible to Lookup before its dependencies are recursed into, so a
// DT_NEEDED cycle back to m can be detected instead of re-entering
// linkModule forever (mirrors apkenv_alloc_info linking the soinfo into
// apkenv_solist before walking its dependencies).
func (r *Registry) Reserve(m *module.Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[m.Name]; exists {
		return fmt.Errorf("registry: module %q already loaded", m.Name)
	}
	m.Next = r.head
	r.head = m
	r.byName[m.Name] = m
	return nil
}

// Finalize runs the OnLinked hooks and logs the link, once a module
// reserved via Reserve has finished relocating successfully.
func (r *Registry) Finalize(m *module.Module) {
	r.mu.Lock()
	hooks := append([]OnLinked(nil), r.onLinked...)
	r.mu.Unlock()

	for _, hook := range hooks {
		hook(m)
	}
	logging.Infof("registry: linked %s at base=%#x", m.Name, m.Base)
}

// Remove drops a module from the registry. The caller is responsible
// for having already run destructors and unmapped its segments.
func (r *Registry) Remove(m *module.Module) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byName, m.Name)
	if r.head == m {
		r.head = m.Next
		return
	}
	for cur := r.head; cur != nil; cur = cur.Next {
		if cur.Next == m {
			cur.Next = m.Next
			return
		}
	}
}

// Retain increments a module's reference count; Release decrements it
// and reports whether it dropped to zero (the caller should then
// destruct and unmap).
func (r *Registry) Retain(m *module.Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.Refcount++
}

func (r *Registry) Release(m *module.Module) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.Refcount--
	return m.Refcount <= 0
}

// All returns every currently registered module, most-recently-added
// first (registry list order).
func (r *Registry) All() []*module.Module {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*module.Module
	for cur := r.head; cur != nil; cur = cur.Next {
		out = append(out, cur)
	}
	return out
}

// FindByAddress returns the module whose mapped extent contains addr,
// the reverse lookup dladdr(3) and dl_iterate_phdr depend on.
func (r *Registry) FindByAddress(addr uintptr) (*module.Module, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for cur := r.head; cur != nil; cur = cur.Next {
		if addr >= cur.Base && addr < cur.Base+cur.Size {
			return cur, true
		}
	}
	return nil, false
}

// IteratePhdr walks every registered module, invoking fn with its load
// base and program header table until fn returns false or the list is
// exhausted, mirroring dl_iterate_phdr's callback contract.
func (r *Registry) IteratePhdr(fn func(m *module.Module) bool) {
	for _, m := range r.All() {
		if !fn(m) {
			return
		}
	}
}

// DefaultOnLinkedHooks wires the standard post-link hookups this loader
// performs: resolving the host libstdc++ demangler for any module that
// references __cxa_demangle but does not itself define it, the same
// accommodation apkenv makes for NDK objects compiled against bionic's
// bundled demangler stub.
func DefaultOnLinkedHooks() []OnLinked {
	return []OnLinked{demanglerHook}
}

func demanglerHook(m *module.Module) {
	for i := 0; i < m.SymCount; i++ {
		sym := m.Symbol(i)
		if m.SymbolName(sym) != "__cxa_demangle" {
			continue
		}
		if module.IsGloballyVisible(sym) {
			return // module defines it itself
		}
		if _, _, ok := hostsym.Lookup("__cxa_demangle"); ok {
			logging.Tracef("registry: %s resolves __cxa_demangle against host libstdc++", m.Name)
		}
		return
	}
}
