package elfreader

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/binarycraft007/bionic-translation/internal/elfconst"
)

// buildMinimalSO writes a syntactically valid little-endian ELF64
// ET_DYN object with a single PT_LOAD segment, optionally appending a
// prelink trailer.
func buildMinimalSO(t *testing.T, prelinkBase uint64) string {
	t.Helper()

	const phoff = 64
	buf := make([]byte, phoff+56)

	copy(buf[0:4], []byte{elfconst.ELFMAG0, elfconst.ELFMAG1, elfconst.ELFMAG2, elfconst.ELFMAG3})
	buf[elfconst.EI_CLASS] = elfconst.ELFCLASS64
	buf[elfconst.EI_DATA] = elfconst.ELFDATA2LSB

	le := binary.LittleEndian
	le.PutUint16(buf[16:18], elfconst.ET_DYN)
	le.PutUint16(buf[18:20], elfconst.EM_X86_64)
	le.PutUint64(buf[32:40], phoff) // e_phoff
	le.PutUint16(buf[54:56], 56)    // e_phentsize
	le.PutUint16(buf[56:58], 1)     // e_phnum

	ph := buf[phoff:]
	le.PutUint32(ph[0:4], elfconst.PT_LOAD)
	le.PutUint32(ph[4:8], elfconst.PF_R|elfconst.PF_X)
	le.PutUint64(ph[16:24], 0x1000) // p_vaddr
	le.PutUint64(ph[32:40], 0x1000) // p_filesz
	le.PutUint64(ph[40:48], 0x1000) // p_memsz

	if prelinkBase != 0 {
		trailer := make([]byte, elfconst.PrelinkTrailerSize)
		le.PutUint64(trailer[:8], prelinkBase)
		copy(trailer[8:], []byte(elfconst.PrelinkTag))
		buf = append(buf, trailer...)
	}

	path := filepath.Join(t.TempDir(), "libtest.so")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestOpenParsesHeaderAndProgramHeaders(t *testing.T) {
	path := buildMinimalSO(t, 0)
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if f.Header.Arch != elfconst.ArchX86_64 {
		t.Fatalf("arch = %v, want x86_64", f.Header.Arch)
	}
	if !f.Header.Is64 {
		t.Fatal("expected 64-bit object")
	}
	if len(f.Phdrs) != 1 || f.Phdrs[0].Type != elfconst.PT_LOAD {
		t.Fatalf("phdrs = %+v, want one PT_LOAD", f.Phdrs)
	}
	if f.PrelinkBase != 0 {
		t.Fatalf("PrelinkBase = %#x, want 0 (no trailer)", f.PrelinkBase)
	}
}

func TestOpenDetectsPrelinkTrailer(t *testing.T) {
	path := buildMinimalSO(t, 0x40000000)
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if f.PrelinkBase != 0x40000000 {
		t.Fatalf("PrelinkBase = %#x, want 0x40000000", f.PrelinkBase)
	}
}

func TestOpenRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.so")
	if err := os.WriteFile(path, make([]byte, 64), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("expected error for non-ELF file")
	}
}

func TestDynamicOffsetFindsPTDynamic(t *testing.T) {
	path := buildMinimalSO(t, 0)
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if _, ok := f.DynamicOffset(); ok {
		t.Fatal("fixture has no PT_DYNAMIC, expected ok=false")
	}
}
