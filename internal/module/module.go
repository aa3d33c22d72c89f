// Package module defines the module record every other loader component
// operates on: one instance per loaded guest shared object, plus the
// small supporting value types (state flags, hash-table parameters,
// relocation tables) the dynamic-section parser fills in.
package module

import "github.com/binarycraft007/bionic-translation/internal/elfconst"

// Flag is a bit in a Module's state flag set.
type Flag uint32

const (
	FlagLinked Flag = 1 << iota
	FlagError
	FlagExe
	FlagLinker
	FlagGNUHash
	// FlagInProgress marks a module record that has been reserved in the
	// registry but has not yet finished relocating: distinct from both
	// LINKED and ERROR so a DT_NEEDED edge back into it can be told apart
	// from a genuine failure and reported as a dependency cycle.
	FlagInProgress
)

// GNUHash holds the header fields the GNU-hash algorithm needs, parsed
// out of DT_GNU_HASH (spec.md §4.3).
type GNUHash struct {
	NBucket    uint32
	SymBase    uint32
	MaskWords  uint32 // power of two, word count of the bloom filter
	Shift      uint32
	Bloom      []uint64
	Buckets    []uint32
	Chain      []uint32 // amended chain, indexed from SymBase
}

// SysVHash holds the classic DT_HASH bucket/chain tables.
type SysVHash struct {
	NBucket uint32
	NChain  uint32
	Buckets []uint32
	Chain   []uint32
}

// RelArray is a parsed REL or RELA table: Entries holds Rel64-shaped
// entries uniformly (Rel32/Rela32 are widened on ingest by C3 so the
// rest of the loader never branches on word size again).
type RelArray struct {
	Entries []elfconst.Rela64
	IsRela  bool
}

// AddrRange is an inclusive-exclusive virtual address extent, already
// rebased by the owning module's load base where applicable.
type AddrRange struct {
	Start uintptr
	End   uintptr
}

func (r AddrRange) Contains(addr uintptr) bool {
	return addr >= r.Start && addr < r.End
}

func (r AddrRange) Len() uintptr {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// DebugNode is the embedded debugger-link node threading a Module onto
// the GDB-visible module list (internal/gdb).
type DebugNode struct {
	Prev, Next *Module
}

// Module is the central record every component reads and mutates:
// identity, mapping extents, the dynamic-section extracts, state flags,
// and the two link structures (registry "next" pointer, debugger node).
type Module struct {
	Name string // basename, e.g. "libc_bio.so.0"
	Path string // full path last opened from

	Arch elfconst.Arch
	Base uintptr // load base
	Size uintptr // total reservation size

	Phdr  []elfconst.Phdr64 // normalized to 64-bit regardless of Arch
	Phnum int

	// Dynamic-section extracts (populated by internal/dynsec).
	StrtabOff uint64 // file-relative offset of the string table, rebased to Base+off by callers
	Strtab    []byte
	Symtab    []byte // raw Sym64-shaped entries, widened from Sym32 on ingest
	SymCount  int

	SysV *SysVHash
	GNU  *GNUHash

	PLTRel    RelArray
	NonPLTRel RelArray
	RELR      []uint64
	RELREnt   int // word size in bytes RELR entries decode against

	Init      uintptr
	Fini      uintptr
	InitArray []uintptr
	FiniArray []uintptr
	PreinitArray []uintptr

	PLTGOT uintptr

	GNURelro AddrRange

	// WriteProtect is the union of read-only PT_LOAD extents temporarily
	// made writable during relocation and restored afterward.
	WriteProtect AddrRange

	// Needed is recorded positionally: Needed[i] is the name requested
	// by the i-th DT_NEEDED entry, before its dynamic-segment payload
	// word is overwritten to point at the resolved *Module.
	Needed       []string
	NeededModule []*Module

	Flags    Flag
	Refcount int

	// ConstructorsCalled is the per-module latch described in spec.md
	// §4.6: set before recursing into dependencies so a dlopen from
	// inside a constructor cannot recurse forever.
	ConstructorsCalled bool

	// Next threads the module onto the registry's singly-linked list.
	Next *Module

	Debug DebugNode
}

func (m *Module) HasFlag(f Flag) bool  { return m.Flags&f != 0 }
func (m *Module) SetFlag(f Flag)       { m.Flags |= f }
func (m *Module) ClearFlag(f Flag)     { m.Flags &^= f }

// Rebase adds the module's load base to a virtual address read directly
// out of the dynamic section.
func (m *Module) Rebase(vaddr uint64) uintptr {
	return m.Base + uintptr(vaddr)
}

// Symbol returns the Sym64-shaped entry at index i, already widened to
// 64-bit regardless of the module's source architecture.
func (m *Module) Symbol(i int) elfconst.Sym64 {
	const sz = 24 // sizeof(Elf64_Sym)
	off := i * sz
	b := m.Symtab[off : off+sz]
	return elfconst.Sym64{
		Name:  leUint32(b[0:4]),
		Info:  b[4],
		Other: b[5],
		Shndx: leUint16(b[6:8]),
		Value: leUint64(b[8:16]),
		Size:  leUint64(b[16:24]),
	}
}

// SymbolName resolves a Sym64's Name field against the module's string
// table.
func (m *Module) SymbolName(sym elfconst.Sym64) string {
	return cstring(m.Strtab, int(sym.Name))
}

func cstring(b []byte, off int) string {
	if off >= len(b) {
		return ""
	}
	end := off
	for end < len(b) && b[end] != 0 {
		end++
	}
	return string(b[off:end])
}

func leUint16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func leUint64(b []byte) uint64 {
	return uint64(leUint32(b[0:4])) | uint64(leUint32(b[4:8]))<<32
}

// IsGloballyVisible reports whether a symbol entry is eligible to
// satisfy a lookup: STB_GLOBAL or STB_WEAK binding and a defined
// section index (spec.md §4.4).
func IsGloballyVisible(sym elfconst.Sym64) bool {
	bind := elfconst.StBind(sym.Info)
	if bind != elfconst.STB_GLOBAL && bind != elfconst.STB_WEAK {
		return false
	}
	return sym.Shndx != elfconst.SHN_UNDEF
}
