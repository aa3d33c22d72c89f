// Package symbol implements the SysV and GNU hash lookup algorithms and
// the module-local/global lookup orders built on top of them (spec.md
// §4.4).
package symbol

import (
	"github.com/binarycraft007/bionic-translation/internal/elfconst"
	"github.com/binarycraft007/bionic-translation/internal/module"
)

// Query is a symbol-name lookup in progress: the name plus its two
// hashes, computed at most once each no matter how many modules are
// consulted to satisfy the lookup.
type Query struct {
	Name string

	sysv     uint32
	haveSysV bool
	gnu      uint32
	haveGNU  bool
}

// NewQuery builds an empty, unhashed descriptor for name.
func NewQuery(name string) *Query {
	return &Query{Name: name}
}

func (q *Query) sysvHash() uint32 {
	if !q.haveSysV {
		q.sysv = SysVHash(q.Name)
		q.haveSysV = true
	}
	return q.sysv
}

func (q *Query) gnuHash() uint32 {
	if !q.haveGNU {
		q.gnu = GNUHash(q.Name)
		q.haveGNU = true
	}
	return q.gnu
}

// SysVHash is the classical bionic/glibc string hash: h = (h<<4)+c,
// folding the top nibble back in via XOR.
func SysVHash(name string) uint32 {
	var h uint32
	for i := 0; i < len(name); i++ {
		h = (h << 4) + uint32(name[i])
		g := h & 0xf0000000
		h ^= g
		h ^= g >> 24
	}
	return h
}

// GNUHash is the djb2 variant the GNU hash style uses: h = 5381, then
// h = h*33 + c per byte.
func GNUHash(name string) uint32 {
	h := uint32(5381)
	for i := 0; i < len(name); i++ {
		h = h*33 + uint32(name[i])
	}
	return h
}

// LookupSysV walks m's DT_HASH bucket/chain using q's SysV hash,
// returning the first globally visible symbol named q.Name.
func LookupSysV(m *module.Module, q *Query) (elfconst.Sym64, bool) {
	h := m.SysV
	if h == nil || h.NBucket == 0 {
		return elfconst.Sym64{}, false
	}

	n := h.Buckets[q.sysvHash()%h.NBucket]
	for n != 0 {
		sym := m.Symbol(int(n))
		if m.SymbolName(sym) == q.Name && module.IsGloballyVisible(sym) {
			return sym, true
		}
		n = h.Chain[n]
	}
	return elfconst.Sym64{}, false
}

// LookupGNU walks m's DT_GNU_HASH tables using q's GNU hash, rejecting
// via the bloom filter before ever touching the bucket/chain arrays.
func LookupGNU(m *module.Module, q *Query) (elfconst.Sym64, bool) {
	h := m.GNU
	if h == nil || h.NBucket == 0 || len(h.Bloom) == 0 {
		return elfconst.Sym64{}, false
	}

	hash := q.gnuHash()
	wordBits := uint32(m.Arch.WordSize() * 8)
	w := h.Bloom[(hash/wordBits)%h.MaskWords]
	mask := (uint64(1) << (hash % wordBits)) | (uint64(1) << ((hash >> h.Shift) % wordBits))
	if w&mask != mask {
		return elfconst.Sym64{}, false
	}

	bucket := h.Buckets[hash%h.NBucket]
	if bucket < h.SymBase {
		return elfconst.Sym64{}, false
	}

	for i := bucket; ; i++ {
		chainVal := h.Chain[i-h.SymBase]
		sym := m.Symbol(int(i))
		if (chainVal^hash)>>1 == 0 {
			if m.SymbolName(sym) == q.Name && module.IsGloballyVisible(sym) {
				return sym, true
			}
		}
		if chainVal&1 != 0 {
			// Low bit set marks the last entry of the chain.
			break
		}
	}
	return elfconst.Sym64{}, false
}

// LookupLocal resolves a name within a single module, preferring GNU
// hash over SysV when both are present (spec.md §4.4: "Module-local
// selection uses whichever hash is present, preferring GNU").
func LookupLocal(m *module.Module, q *Query) (elfconst.Sym64, bool) {
	if m.HasFlag(module.FlagGNUHash) && m.GNU != nil {
		return LookupGNU(m, q)
	}
	return LookupSysV(m, q)
}

// Resolved pairs a found symbol with the module that defines it so
// callers can rebase st_value against the right load base.
type Resolved struct {
	Module *module.Module
	Sym    elfconst.Sym64
}

// Address is the symbol's rebased runtime address.
func (r Resolved) Address() uintptr {
	return r.Module.Rebase(r.Sym.Value)
}

// LookupFromModule implements the four-step lookup order a relocating
// module M consults (spec.md §4.4): M itself, the preload list, each
// DT_NEEDED dependency of M in order, then the main executable.
func LookupFromModule(m *module.Module, preloads []*module.Module, mainExe *module.Module, name string) (Resolved, bool) {
	q := NewQuery(name)

	if sym, ok := LookupLocal(m, q); ok {
		return Resolved{Module: m, Sym: sym}, true
	}
	for _, p := range preloads {
		if sym, ok := LookupLocal(p, q); ok {
			return Resolved{Module: p, Sym: sym}, true
		}
	}
	for _, dep := range m.NeededModule {
		if dep == nil || dep.HasFlag(module.FlagError) {
			continue
		}
		if sym, ok := LookupLocal(dep, q); ok {
			return Resolved{Module: dep, Sym: sym}, true
		}
	}
	if mainExe != nil {
		if sym, ok := LookupLocal(mainExe, q); ok {
			return Resolved{Module: mainExe, Sym: sym}, true
		}
	}
	return Resolved{}, false
}

// LookupGlobal implements the RTLD_DEFAULT-style search: walk the
// registry in insertion order, skipping ERROR modules, returning the
// first match.
func LookupGlobal(modules []*module.Module, name string) (Resolved, bool) {
	q := NewQuery(name)
	for _, m := range modules {
		if m == nil || m.HasFlag(module.FlagError) {
			continue
		}
		if sym, ok := LookupLocal(m, q); ok {
			return Resolved{Module: m, Sym: sym}, true
		}
	}
	return Resolved{}, false
}

// AddrToSymbol scans every symbol of a single module and returns the
// first whose rebased [st_value, st_value+st_size) interval contains
// addr.
func AddrToSymbol(m *module.Module, addr uintptr) (elfconst.Sym64, bool) {
	for i := 0; i < m.SymCount; i++ {
		sym := m.Symbol(i)
		if sym.Value == 0 {
			continue
		}
		start := m.Rebase(sym.Value)
		end := start + uintptr(sym.Size)
		if sym.Size == 0 {
			end = start + 1
		}
		if addr >= start && addr < end {
			return sym, true
		}
	}
	return elfconst.Sym64{}, false
}
