package reloc

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/binarycraft007/bionic-translation/internal/elfconst"
	"github.com/binarycraft007/bionic-translation/internal/module"
)

// memAt returns a byte slice over the module's whole mapped reservation,
// so relocation targets (file-relative offsets rebased by Base) can be
// read and patched with encoding/binary.
func memAt(base, size uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(base)), int(size))
}

func readWord(mem []byte, off uintptr, wordSize int) uint64 {
	if wordSize == 8 {
		return binary.LittleEndian.Uint64(mem[off : off+8])
	}
	return uint64(binary.LittleEndian.Uint32(mem[off : off+4]))
}

func writeWord(mem []byte, off uintptr, wordSize int, v uint64) {
	if wordSize == 8 {
		binary.LittleEndian.PutUint64(mem[off:off+8], v)
	} else {
		binary.LittleEndian.PutUint32(mem[off:off+4], uint32(v))
	}
}

// Apply relocates module m in place: PLT relocations first, then
// non-PLT, then RELR (spec.md §4.5's fixed ordering).
func Apply(m *module.Module, env Env) error {
	mem := memAt(m.Base, m.Size)

	if err := applyTable(m, env, mem, m.PLTRel); err != nil {
		return fmt.Errorf("reloc: PLT relocations: %w", err)
	}
	if err := applyTable(m, env, mem, m.NonPLTRel); err != nil {
		return fmt.Errorf("reloc: non-PLT relocations: %w", err)
	}
	if err := applyRELR(m, mem); err != nil {
		return fmt.Errorf("reloc: RELR relocations: %w", err)
	}
	return nil
}

func applyTable(m *module.Module, env Env, mem []byte, table module.RelArray) error {
	for i, rel := range table.Entries {
		symIdx := elfconst.R_INFO_SYM(rel.Info)
		kind := elfconst.R_INFO_TYPE(rel.Info)

		var res resolution
		var name string
		if symIdx != 0 {
			sym := m.Symbol(int(symIdx))
			name = m.SymbolName(sym)
			isWeak := elfconst.StBind(sym.Info) == elfconst.STB_WEAK
			var err error
			res, err = resolveSymbol(m, env, sym, name, isWeak)
			if err != nil {
				return fmt.Errorf("entry %d (%s): %w", i, name, err)
			}
		}

		target := uintptr(rel.Offset) // already file-relative; rebased below per-arch via m.Base
		if err := applyOne(m, mem, target, kind, res, rel.Addend, table.IsRela); err != nil {
			return fmt.Errorf("entry %d (%s): %w", i, name, err)
		}
	}
	return nil
}

// applyOne dispatches to the architecture-specific relocation switch.
func applyOne(m *module.Module, mem []byte, vaddr uintptr, kind uint32, res resolution, addend int64, isRela bool) error {
	switch m.Arch {
	case elfconst.ArchARM:
		return applyARM(m, mem, vaddr, kind, res)
	case elfconst.ArchARM64:
		return applyARM64(m, mem, vaddr, kind, res, addend)
	case elfconst.Arch386:
		return apply386(m, mem, vaddr, kind, res)
	case elfconst.ArchX86_64:
		return applyAMD64(m, mem, vaddr, kind, res, addend)
	default:
		return fmt.Errorf("unsupported architecture %s", m.Arch)
	}
}
