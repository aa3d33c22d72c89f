package reloc

import (
	"github.com/binarycraft007/bionic-translation/internal/module"
)

// applyRELR decodes and applies the compact RELR encoding (spec.md
// §4.5): alternating even-encoded offsets and odd-encoded bitmaps
// describing runs of relative relocations at one machine word each.
func applyRELR(m *module.Module, mem []byte) error {
	if len(m.RELR) == 0 {
		return nil
	}

	wordSize := m.RELREnt
	if wordSize == 0 {
		wordSize = m.Arch.WordSize()
	}
	wordBits := uint(wordSize * 8)

	var base uint64
	for _, entry := range m.RELR {
		if entry&1 == 0 {
			// Even entry: apply at offset `entry`, then the next
			// consecutive word becomes the new base for any following
			// bitmap entries.
			applyRelative(mem, uintptr(entry), m.Base, wordSize)
			base = entry + uint64(wordSize)
			continue
		}

		// Odd entry: a bitmap over the (wordBits-1) words starting at
		// base. Bit i (1-indexed from the low end) set means apply at
		// base + i*wordSize.
		bitmap := entry
		for i := uint(1); i < wordBits; i++ {
			if bitmap&(1<<i) != 0 {
				off := base + uint64(i)*uint64(wordSize)
				applyRelative(mem, uintptr(off), m.Base, wordSize)
			}
		}
		base += uint64(wordBits-1) * uint64(wordSize)
	}
	return nil
}

func applyRelative(mem []byte, off uintptr, base uintptr, wordSize int) {
	cur := readWord(mem, off, wordSize)
	writeWord(mem, off, wordSize, cur+uint64(base))
}
