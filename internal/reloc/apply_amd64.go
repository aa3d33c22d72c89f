package reloc

import (
	"encoding/binary"
	"fmt"

	"github.com/binarycraft007/bionic-translation/internal/elfconst"
	"github.com/binarycraft007/bionic-translation/internal/module"
)

// applyAMD64 implements the RELA relocation kinds for x86_64 (grounded
// on linker.c's __x86_64__ branch).
func applyAMD64(m *module.Module, mem []byte, vaddr uintptr, kind uint32, res resolution, addend int64) error {
	reloc := vaddr

	symAddr := int64(res.addr)
	if !res.resolved {
		switch kind {
		case elfconst.R_X86_64_JUMP_SLOT, elfconst.R_X86_64_GLOB_DAT,
			elfconst.R_X86_64_32, elfconst.R_X86_64_64, elfconst.R_X86_64_RELATIVE:
			symAddr = 0
		case elfconst.R_X86_64_PC32:
			symAddr = int64(reloc)
		default:
			return fmt.Errorf("unknown weak reloc type %d", kind)
		}
	}

	write64 := func(v int64) { binary.LittleEndian.PutUint64(mem[reloc:reloc+8], uint64(v)) }

	switch kind {
	case elfconst.R_X86_64_JUMP_SLOT, elfconst.R_X86_64_GLOB_DAT:
		write64(symAddr + addend)
	case elfconst.R_X86_64_RELATIVE:
		if res.resolved {
			return fmt.Errorf("odd RELATIVE form: symbol resolved for a RELATIVE relocation")
		}
		write64(int64(m.Base) + addend)
	case elfconst.R_X86_64_32, elfconst.R_X86_64_64:
		write64(symAddr + addend)
	case elfconst.R_X86_64_PC32:
		write64(symAddr + addend - int64(reloc))
	default:
		return fmt.Errorf("unknown reloc type %d", kind)
	}
	return nil
}
