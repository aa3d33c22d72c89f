package bionic

import (
	"github.com/binarycraft007/bionic-translation/internal/module"
	"github.com/binarycraft007/bionic-translation/internal/symbol"
)

// AddrInfo is dladdr(3)'s result shape: the module an address falls
// within, and the best-matching symbol, if any (spec.md §4.9's
// "addr_info(address) → module and optional symbol").
type AddrInfo struct {
	Module *module.Module
	Sym    Symbol
	HasSym bool
}

// Symbol is the subset of an ELF symbol entry dladdr-style callers care
// about: a resolved name and address, not the raw on-wire fields.
type Symbol struct {
	Name  string
	Addr  uintptr
	Size  uint64
}

// AddrInfo finds the module that maps addr and, within it, the closest
// preceding symbol whose size covers addr.
func (c *Context) AddrInfo(addr uintptr) (AddrInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.registry.FindByAddress(addr)
	if !ok {
		return AddrInfo{}, false
	}

	info := AddrInfo{Module: m}
	if sym, ok := symbol.AddrToSymbol(m, addr); ok {
		info.Sym = Symbol{Name: m.SymbolName(sym), Addr: m.Rebase(sym.Value), Size: sym.Size}
		info.HasSym = true
	}
	return info, true
}
