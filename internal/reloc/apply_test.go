package reloc

import (
	"encoding/binary"
	"testing"

	"github.com/binarycraft007/bionic-translation/internal/elfconst"
	"github.com/binarycraft007/bionic-translation/internal/module"
)

func TestApplyAMD64RelativeAddsBase(t *testing.T) {
	mem := make([]byte, 16)
	m := &module.Module{Base: 0x7f0000000000, Arch: elfconst.ArchX86_64}

	if err := applyAMD64(m, mem, 0, elfconst.R_X86_64_RELATIVE, resolution{resolved: false}, 0x10); err != nil {
		t.Fatalf("applyAMD64: %v", err)
	}
	got := binary.LittleEndian.Uint64(mem[0:8])
	want := uint64(m.Base) + 0x10
	if got != want {
		t.Errorf("RELATIVE wrote %#x, want %#x", got, want)
	}
}

func TestApplyAMD64JumpSlotUsesResolvedAddress(t *testing.T) {
	mem := make([]byte, 8)
	m := &module.Module{Arch: elfconst.ArchX86_64}

	if err := applyAMD64(m, mem, 0, elfconst.R_X86_64_JUMP_SLOT, resolution{addr: 0x1234, resolved: true}, 0); err != nil {
		t.Fatalf("applyAMD64: %v", err)
	}
	if got := binary.LittleEndian.Uint64(mem[0:8]); got != 0x1234 {
		t.Errorf("JUMP_SLOT wrote %#x, want 0x1234", got)
	}
}

func TestApplyAMD64RelativeRejectsResolvedSymbol(t *testing.T) {
	mem := make([]byte, 8)
	m := &module.Module{Arch: elfconst.ArchX86_64}
	if err := applyAMD64(m, mem, 0, elfconst.R_X86_64_RELATIVE, resolution{addr: 1, resolved: true}, 0); err == nil {
		t.Fatal("RELATIVE with a resolved symbol should be rejected")
	}
}

func TestApplyARM64ABS32RangeCheck(t *testing.T) {
	mem := make([]byte, 8)
	m := &module.Module{Arch: elfconst.ArchARM64}
	huge := resolution{addr: 1 << 40, resolved: true}
	if err := applyARM64(m, mem, 0, elfconst.R_AARCH64_ABS32, huge, 0); err == nil {
		t.Fatal("ABS32 should reject a value that does not fit in 32 bits")
	}
}

func TestApplyARM64GlobDat(t *testing.T) {
	mem := make([]byte, 8)
	m := &module.Module{Arch: elfconst.ArchARM64}
	if err := applyARM64(m, mem, 0, elfconst.R_AARCH64_GLOB_DAT, resolution{addr: 0x9999, resolved: true}, 0); err != nil {
		t.Fatalf("applyARM64: %v", err)
	}
	if got := binary.LittleEndian.Uint64(mem[0:8]); got != 0x9999 {
		t.Errorf("GLOB_DAT wrote %#x, want 0x9999", got)
	}
}

func TestApplyARM64CopyUnsupported(t *testing.T) {
	mem := make([]byte, 8)
	m := &module.Module{Arch: elfconst.ArchARM64}
	if err := applyARM64(m, mem, 0, elfconst.R_AARCH64_COPY, resolution{}, 0); err == nil {
		t.Fatal("R_AARCH64_COPY should be rejected (shared-object-only loader)")
	}
}

func TestApplyARMRelativeAddsToExistingWord(t *testing.T) {
	mem := make([]byte, 4)
	binary.LittleEndian.PutUint32(mem, 0x100)
	m := &module.Module{Base: 0x400000, Arch: elfconst.ArchARM}

	if err := applyARM(m, mem, 0, elfconst.R_ARM_RELATIVE, resolution{resolved: false}); err != nil {
		t.Fatalf("applyARM: %v", err)
	}
	if got := binary.LittleEndian.Uint32(mem); got != 0x100+uint32(m.Base) {
		t.Errorf("R_ARM_RELATIVE wrote %#x, want %#x", got, 0x100+uint32(m.Base))
	}
}

func TestApply386PC32SubtractsRelocAddress(t *testing.T) {
	mem := make([]byte, 8)
	m := &module.Module{Arch: elfconst.Arch386}
	if err := apply386(m, mem, 4, elfconst.R_386_PC32, resolution{addr: 0x2000, resolved: true}); err != nil {
		t.Fatalf("apply386: %v", err)
	}
	got := binary.LittleEndian.Uint32(mem[4:8])
	want := uint32(0x2000) - uint32(4)
	if got != want {
		t.Errorf("R_386_PC32 wrote %#x, want %#x", got, want)
	}
}

func TestApplyRELRDecodesBitmapEntries(t *testing.T) {
	mem := make([]byte, 64)
	m := &module.Module{
		Base: 0x1000,
		Arch: elfconst.ArchX86_64,
		// Even entry at offset 0 marks the base for the following bitmap.
		// Bit 1 and bit 3 set: words at base+1*8 and base+3*8 also get
		// relocated.
		RELR: []uint64{0, (1 << 1) | (1 << 3) | 1},
	}

	if err := applyRELR(m, mem); err != nil {
		t.Fatalf("applyRELR: %v", err)
	}

	if got := binary.LittleEndian.Uint64(mem[0:8]); got != uint64(m.Base) {
		t.Errorf("word at offset 0 = %#x, want base %#x", got, m.Base)
	}
	if got := binary.LittleEndian.Uint64(mem[8*1 : 8*1+8]); got != uint64(m.Base) {
		t.Errorf("word at offset 8 = %#x, want base %#x", got, m.Base)
	}
	if got := binary.LittleEndian.Uint64(mem[8*3 : 8*3+8]); got != uint64(m.Base) {
		t.Errorf("word at offset 24 = %#x, want base %#x", got, m.Base)
	}
	// Bit 2 (offset 16) was never set and must be untouched.
	if got := binary.LittleEndian.Uint64(mem[8*2 : 8*2+8]); got != 0 {
		t.Errorf("word at offset 16 should be untouched, got %#x", got)
	}
}

func TestApplyRELRNoopOnEmptyTable(t *testing.T) {
	m := &module.Module{Arch: elfconst.ArchX86_64}
	if err := applyRELR(m, nil); err != nil {
		t.Fatalf("applyRELR on empty table should be a no-op, got %v", err)
	}
}
