package shim

import (
	"testing"

	"github.com/binarycraft007/bionic-translation/internal/elfconst"
)

func TestGLLookupRejectsNonGLNames(t *testing.T) {
	if _, ok := GLLookup("malloc"); ok {
		t.Fatal("GLLookup should reject a non-gl-prefixed name outright")
	}
}

func TestNewWrapperCreateIsIdentityOffARM(t *testing.T) {
	wrap := NewWrapperCreate(elfconst.ArchX86_64)
	if got := wrap("write", 0x4000); got != 0x4000 {
		t.Fatalf("wrap() = %#x, want identity 0x4000", got)
	}
}

func TestNewWrapperCreatePreservesThumbBitOnARM(t *testing.T) {
	wrap := NewWrapperCreate(elfconst.ArchARM)
	if got := wrap("write", 0x4001); got != 0x4001 {
		t.Fatalf("wrap() = %#x, want thumb bit preserved (0x4001)", got)
	}
}
