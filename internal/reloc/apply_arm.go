package reloc

import (
	"encoding/binary"
	"fmt"

	"github.com/binarycraft007/bionic-translation/internal/elfconst"
	"github.com/binarycraft007/bionic-translation/internal/module"
)

// applyARM implements the REL relocation kinds for 32-bit ARM
// (spec.md §4.5, grounded on linker.c's __arm__ branch of
// apkenv_reloc_library).
func applyARM(m *module.Module, mem []byte, vaddr uintptr, kind uint32, res resolution) error {
	reloc := vaddr
	cur := uint32(binary.LittleEndian.Uint32(mem[reloc : reloc+4]))

	symAddr := res.addr
	if !res.resolved {
		switch kind {
		case elfconst.R_ARM_JUMP_SLOT, elfconst.R_ARM_GLOB_DAT, elfconst.R_ARM_ABS32, elfconst.R_ARM_RELATIVE:
			symAddr = 0
		default:
			return fmt.Errorf("unknown weak reloc type %d", kind)
		}
	}

	switch kind {
	case elfconst.R_ARM_JUMP_SLOT, elfconst.R_ARM_GLOB_DAT:
		binary.LittleEndian.PutUint32(mem[reloc:reloc+4], uint32(symAddr))
	case elfconst.R_ARM_ABS32:
		binary.LittleEndian.PutUint32(mem[reloc:reloc+4], cur+uint32(symAddr))
	case elfconst.R_ARM_REL32:
		binary.LittleEndian.PutUint32(mem[reloc:reloc+4], cur+uint32(symAddr)-uint32(reloc))
	case elfconst.R_ARM_RELATIVE:
		if res.resolved {
			return fmt.Errorf("odd RELATIVE form: symbol resolved for a RELATIVE relocation")
		}
		binary.LittleEndian.PutUint32(mem[reloc:reloc+4], cur+uint32(m.Base))
	case elfconst.R_ARM_COPY:
		return fmt.Errorf("R_ARM_COPY relocations are not supported (shared-object-only loader)")
	default:
		return fmt.Errorf("unknown reloc type %d", kind)
	}
	return nil
}
