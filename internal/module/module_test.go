package module

import (
	"testing"

	"github.com/binarycraft007/bionic-translation/internal/elfconst"
)

func TestAddrRangeContainsAndLen(t *testing.T) {
	r := AddrRange{Start: 0x1000, End: 0x2000}
	if !r.Contains(0x1000) {
		t.Error("Contains should include Start")
	}
	if r.Contains(0x2000) {
		t.Error("Contains should exclude End")
	}
	if r.Len() != 0x1000 {
		t.Errorf("Len = %#x, want 0x1000", r.Len())
	}

	empty := AddrRange{Start: 0x2000, End: 0x1000}
	if empty.Len() != 0 {
		t.Errorf("Len of an inverted range should be 0, got %#x", empty.Len())
	}
}

func TestFlagHelpers(t *testing.T) {
	m := &Module{}
	if m.HasFlag(FlagExe) {
		t.Fatal("fresh module should not have FlagExe set")
	}
	m.SetFlag(FlagExe)
	if !m.HasFlag(FlagExe) {
		t.Fatal("SetFlag did not take effect")
	}
	m.ClearFlag(FlagExe)
	if m.HasFlag(FlagExe) {
		t.Fatal("ClearFlag did not take effect")
	}
}

func TestRebase(t *testing.T) {
	m := &Module{Base: 0x7f0000000000}
	if got := m.Rebase(0x1234); got != 0x7f0000001234 {
		t.Errorf("Rebase = %#x, want 0x7f0000001234", got)
	}
}

func encodeSym(name uint32, info, other uint8, shndx uint16, value, size uint64) []byte {
	b := make([]byte, 24)
	putLE32(b[0:4], name)
	b[4] = info
	b[5] = other
	putLE16(b[6:8], shndx)
	putLE64(b[8:16], value)
	putLE64(b[16:24], size)
	return b
}

func putLE16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
func putLE64(b []byte, v uint64) {
	putLE32(b[0:4], uint32(v))
	putLE32(b[4:8], uint32(v>>32))
}

func TestSymbolAndSymbolName(t *testing.T) {
	strtab := []byte("\x00foo\x00bar\x00")
	symtab := append(
		encodeSym(1, 0x12, 0, 1, 0x400, 8),
		encodeSym(5, 0x22, 0, elfconst.SHN_UNDEF, 0, 0)...,
	)
	m := &Module{Strtab: strtab, Symtab: symtab}

	s0 := m.Symbol(0)
	if s0.Value != 0x400 || s0.Size != 8 {
		t.Fatalf("Symbol(0) = %+v, unexpected fields", s0)
	}
	if name := m.SymbolName(s0); name != "foo" {
		t.Errorf("SymbolName(0) = %q, want foo", name)
	}

	s1 := m.Symbol(1)
	if name := m.SymbolName(s1); name != "bar" {
		t.Errorf("SymbolName(1) = %q, want bar", name)
	}
}

func TestIsGloballyVisible(t *testing.T) {
	cases := []struct {
		name string
		sym  elfconst.Sym64
		want bool
	}{
		{"global defined", elfconst.Sym64{Info: elfconst.STB_GLOBAL << 4, Shndx: 1}, true},
		{"weak defined", elfconst.Sym64{Info: elfconst.STB_WEAK << 4, Shndx: 1}, true},
		{"local defined", elfconst.Sym64{Info: elfconst.STB_LOCAL << 4, Shndx: 1}, false},
		{"global undefined", elfconst.Sym64{Info: elfconst.STB_GLOBAL << 4, Shndx: elfconst.SHN_UNDEF}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := IsGloballyVisible(c.sym); got != c.want {
				t.Errorf("IsGloballyVisible(%+v) = %v, want %v", c.sym, got, c.want)
			}
		})
	}
}
