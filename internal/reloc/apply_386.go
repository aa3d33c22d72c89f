package reloc

import (
	"encoding/binary"
	"fmt"

	"github.com/binarycraft007/bionic-translation/internal/elfconst"
	"github.com/binarycraft007/bionic-translation/internal/module"
)

// apply386 implements the REL relocation kinds for i386 (grounded on
// linker.c's __i386__ branch).
func apply386(m *module.Module, mem []byte, vaddr uintptr, kind uint32, res resolution) error {
	reloc := vaddr
	cur := binary.LittleEndian.Uint32(mem[reloc : reloc+4])

	symAddr := uint32(res.addr)
	if !res.resolved {
		switch kind {
		case elfconst.R_386_JMP_SLOT, elfconst.R_386_GLOB_DAT, elfconst.R_386_32, elfconst.R_386_RELATIVE:
			symAddr = 0
		case elfconst.R_386_PC32:
			symAddr = uint32(reloc)
		default:
			return fmt.Errorf("unknown weak reloc type %d", kind)
		}
	}

	switch kind {
	case elfconst.R_386_JMP_SLOT, elfconst.R_386_GLOB_DAT:
		binary.LittleEndian.PutUint32(mem[reloc:reloc+4], symAddr)
	case elfconst.R_386_RELATIVE:
		if res.resolved {
			return fmt.Errorf("odd RELATIVE form: symbol resolved for a RELATIVE relocation")
		}
		binary.LittleEndian.PutUint32(mem[reloc:reloc+4], cur+uint32(m.Base))
	case elfconst.R_386_32:
		binary.LittleEndian.PutUint32(mem[reloc:reloc+4], cur+symAddr)
	case elfconst.R_386_PC32:
		binary.LittleEndian.PutUint32(mem[reloc:reloc+4], cur+symAddr-uint32(reloc))
	default:
		return fmt.Errorf("unknown reloc type %d", kind)
	}
	return nil
}
