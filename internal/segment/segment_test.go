package segment

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/binarycraft007/bionic-translation/internal/elfconst"
	"github.com/binarycraft007/bionic-translation/internal/module"
)

func TestPageStartAndPageEnd(t *testing.T) {
	if got := pageStart(0x1234); got != 0x1000 {
		t.Errorf("pageStart(0x1234) = %#x, want 0x1000", got)
	}
	if got := pageEnd(0x1234); got != 0x2000 {
		t.Errorf("pageEnd(0x1234) = %#x, want 0x2000", got)
	}
	if got := pageStart(0x1000); got != 0x1000 {
		t.Errorf("pageStart of an already-aligned address should be a no-op, got %#x", got)
	}
	if got := pageEnd(0x1000); got != 0x1000 {
		t.Errorf("pageEnd of an already-aligned address should be a no-op, got %#x", got)
	}
}

func TestExtentsSpansAllLoadSegments(t *testing.T) {
	phdrs := []elfconst.Phdr64{
		{Type: elfconst.PT_LOAD, Vaddr: 0x1000, Memsz: 0x100},
		{Type: elfconst.PT_LOAD, Vaddr: 0x3000, Memsz: 0x2000},
		{Type: elfconst.PT_DYNAMIC, Vaddr: 0x500, Memsz: 0x10},
	}
	minV, maxV, err := Extents(phdrs)
	if err != nil {
		t.Fatalf("Extents: %v", err)
	}
	if minV != 0x1000 {
		t.Errorf("minVaddr = %#x, want 0x1000", minV)
	}
	if maxV != pageEnd(0x5000) {
		t.Errorf("maxVaddr = %#x, want %#x", maxV, pageEnd(0x5000))
	}
}

func TestExtentsRejectsNoLoadSegments(t *testing.T) {
	phdrs := []elfconst.Phdr64{{Type: elfconst.PT_DYNAMIC}}
	if _, _, err := Extents(phdrs); err == nil {
		t.Fatal("Extents should fail when there is no PT_LOAD entry")
	}
}

func TestPermToProt(t *testing.T) {
	cases := []struct {
		flags uint32
		want  int
	}{
		{elfconst.PF_R, unix.PROT_READ},
		{elfconst.PF_R | elfconst.PF_W, unix.PROT_READ | unix.PROT_WRITE},
		{elfconst.PF_R | elfconst.PF_X, unix.PROT_READ | unix.PROT_EXEC},
		{0, 0},
	}
	for _, c := range cases {
		if got := permToProt(c.flags); got != c.want {
			t.Errorf("permToProt(%#x) = %#x, want %#x", c.flags, got, c.want)
		}
	}
}

func TestExtendRange(t *testing.T) {
	var r module.AddrRange
	extendRange(&r, 0x2000, 0x3000)
	if r.Start != 0x2000 || r.End != 0x3000 {
		t.Fatalf("first extendRange call should adopt the given range, got %+v", r)
	}
	extendRange(&r, 0x1000, 0x2500)
	if r.Start != 0x1000 || r.End != 0x3000 {
		t.Fatalf("extendRange should grow to the union, got %+v", r)
	}
	extendRange(&r, 0x2800, 0x2900)
	if r.Start != 0x1000 || r.End != 0x3000 {
		t.Fatalf("extendRange should not shrink when given a subrange, got %+v", r)
	}
}
