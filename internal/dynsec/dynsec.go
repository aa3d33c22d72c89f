// Package dynsec walks a module's PT_DYNAMIC entries and fills in the
// dynamic-section extracts of a module.Module: hash tables, relocation
// tables, init/fini arrays, RELRO extent, and DT_NEEDED names (spec.md
// §4.3).
package dynsec

import (
	"encoding/binary"
	"fmt"

	"github.com/binarycraft007/bionic-translation/internal/elfconst"
	"github.com/binarycraft007/bionic-translation/internal/module"
)

// Image is the minimal view dynsec needs of a mapped module: raw file
// bytes (for table contents that live inside PT_LOAD-backed pages) plus
// the load base used to rebase every vaddr-typed tag.
type Image struct {
	Data []byte // the whole file, as read by internal/elfreader
	Base uintptr
	Arch elfconst.Arch
}

// Parse walks the dynamic entries starting at the given file offset
// until DT_NULL, populating m's dynamic-section extracts.
func Parse(m *module.Module, img Image, dynOff uint64) error {
	entries, err := readDynEntries(img, dynOff)
	if err != nil {
		return err
	}

	var (
		strtabOff, strtabSz uint64
		symtabOff           uint64
		hashOff, gnuHashOff uint64
		relOff, relSz, relEnt             uint64
		relaOff, relaSz, relaEnt          uint64
		pltrelOff, pltrelSz               uint64
		pltrelType                        uint64
		relrOff, relrSz, relrEnt          uint64
		needed                            []uint64
	)

	for _, e := range entries {
		switch e.Tag {
		case elfconst.DT_STRTAB:
			strtabOff = e.Val
		case elfconst.DT_STRSZ:
			strtabSz = e.Val
		case elfconst.DT_SYMTAB:
			symtabOff = e.Val
		case elfconst.DT_HASH:
			hashOff = e.Val
		case elfconst.DT_GNU_HASH:
			gnuHashOff = e.Val
		case elfconst.DT_REL:
			relOff = e.Val
		case elfconst.DT_RELSZ:
			relSz = e.Val
		case elfconst.DT_RELENT:
			relEnt = e.Val
		case elfconst.DT_RELA:
			relaOff = e.Val
		case elfconst.DT_RELASZ:
			relaSz = e.Val
		case elfconst.DT_RELAENT:
			relaEnt = e.Val
		case elfconst.DT_JMPREL:
			pltrelOff = e.Val
		case elfconst.DT_PLTRELSZ:
			pltrelSz = e.Val
		case elfconst.DT_PLTREL:
			pltrelType = e.Val
		case elfconst.DT_RELR, elfconst.DT_ANDROID_RELR:
			relrOff = e.Val
		case elfconst.DT_RELRSZ, elfconst.DT_ANDROID_RELRSZ:
			relrSz = e.Val
		case elfconst.DT_RELRENT, elfconst.DT_ANDROID_RELRENT:
			relrEnt = e.Val
		case elfconst.DT_INIT:
			m.Init = m.Rebase(e.Val)
		case elfconst.DT_FINI:
			m.Fini = m.Rebase(e.Val)
		case elfconst.DT_INIT_ARRAY:
			m.InitArray = readArray(img, e.Val, arrayCountTag(entries, elfconst.DT_INIT_ARRAYSZ), m.Base)
		case elfconst.DT_FINI_ARRAY:
			m.FiniArray = readArray(img, e.Val, arrayCountTag(entries, elfconst.DT_FINI_ARRAYSZ), m.Base)
		case elfconst.DT_PREINIT_ARRAY:
			m.PreinitArray = readArray(img, e.Val, arrayCountTag(entries, elfconst.DT_PREINIT_ARRAYSZ), m.Base)
		case elfconst.DT_PLTGOT:
			m.PLTGOT = m.Rebase(e.Val)
		case elfconst.DT_NEEDED:
			needed = append(needed, e.Val)
		}
	}

	if strtabOff != 0 {
		end := strtabOff + strtabSz
		if end > uint64(len(img.Data)) {
			return fmt.Errorf("dynsec: string table extends past end of file")
		}
		m.Strtab = img.Data[strtabOff:end]
	}

	if symtabOff != 0 {
		m.Symtab, m.SymCount = readSymtab(img, symtabOff)
	}

	if hashOff != 0 {
		sysv, err := readSysVHash(img, hashOff)
		if err != nil {
			return err
		}
		m.SysV = sysv
	}
	if gnuHashOff != 0 {
		gnu, err := readGNUHash(img, gnuHashOff, m.SymCount)
		if err != nil {
			return err
		}
		m.GNU = gnu
		m.SetFlag(module.FlagGNUHash)
	}

	if pltrelOff != 0 {
		wantRela := img.Arch.UsesRela()
		gotRela := pltrelType == elfconst.DT_RELA
		if wantRela != gotRela {
			return fmt.Errorf("dynsec: PLT relocation type mismatch for %s (DT_PLTREL=%d)", img.Arch, pltrelType)
		}
		arr, err := readRelArray(img, pltrelOff, pltrelSz, gotRela)
		if err != nil {
			return err
		}
		m.PLTRel = arr
	}

	if relaOff != 0 {
		arr, err := readRelArray(img, relaOff, relaSz, true)
		if err != nil {
			return err
		}
		m.NonPLTRel = arr
	} else if relOff != 0 {
		arr, err := readRelArray(img, relOff, relSz, false)
		if err != nil {
			return err
		}
		m.NonPLTRel = arr
	}
	_ = relEnt
	_ = relaEnt

	if relrOff != 0 && relrSz > 0 {
		wordSize := uint64(8)
		if relrEnt != 0 {
			wordSize = relrEnt
		}
		count := relrSz / wordSize
		m.RELR = make([]uint64, 0, count)
		for i := uint64(0); i < count; i++ {
			off := relrOff + i*wordSize
			if wordSize == 8 {
				m.RELR = append(m.RELR, binary.LittleEndian.Uint64(img.Data[off:off+8]))
			} else {
				m.RELR = append(m.RELR, uint64(binary.LittleEndian.Uint32(img.Data[off:off+4])))
			}
		}
		m.RELREnt = int(wordSize)
	}

	m.Needed = make([]string, len(needed))
	m.NeededModule = make([]*module.Module, len(needed))
	for i, nameOff := range needed {
		m.Needed[i] = cstringAt(m.Strtab, int(nameOff))
	}

	// GNU_RELRO is a program-header concept (PT_GNU_RELRO), not a
	// dynamic tag; internal/segment.Map fills m's RELRO extent in from
	// the program header table directly.

	return nil
}

func arrayCountTag(entries []elfconst.Dyn64, szTag uint64) int {
	for _, e := range entries {
		if e.Tag == szTag {
			return int(e.Val) / 8
		}
	}
	return 0
}

func readArray(img Image, vaddr uint64, count int, base uintptr) []uintptr {
	out := make([]uintptr, 0, count)
	for i := 0; i < count; i++ {
		off := vaddr + uint64(i*8)
		if off+8 > uint64(len(img.Data)) {
			break
		}
		v := binary.LittleEndian.Uint64(img.Data[off : off+8])
		out = append(out, base+uintptr(v))
	}
	return out
}

func readDynEntries(img Image, dynOff uint64) ([]elfconst.Dyn64, error) {
	var entries []elfconst.Dyn64
	is64 := img.Arch.Is64()
	entSize := uint64(16)
	if !is64 {
		entSize = 8
	}

	for off := dynOff; ; off += entSize {
		if off+entSize > uint64(len(img.Data)) {
			return nil, fmt.Errorf("dynsec: dynamic section runs past end of file")
		}
		var tag, val uint64
		if is64 {
			tag = binary.LittleEndian.Uint64(img.Data[off : off+8])
			val = binary.LittleEndian.Uint64(img.Data[off+8 : off+16])
		} else {
			tag = uint64(binary.LittleEndian.Uint32(img.Data[off : off+4]))
			val = uint64(binary.LittleEndian.Uint32(img.Data[off+4 : off+8]))
		}
		if tag == elfconst.DT_NULL {
			break
		}
		entries = append(entries, elfconst.Dyn64{Tag: tag, Val: val})
	}
	return entries, nil
}

func symEntSize(a elfconst.Arch) uint64 {
	if a.Is64() {
		return 24
	}
	return 16
}

// readSymtab copies the dynamic symbol table into Sym64-shaped entries,
// widening Sym32 records on ingest so downstream code never branches on
// word size again. Since DT_SYMTAB carries no explicit count, the table
// is read up to the string table or hash table that follows it in file
// order, matching how the reference loader infers nchain from DT_HASH.
func readSymtab(img Image, symOff uint64) ([]byte, int) {
	entSize := symEntSize(img.Arch)
	maxCount := (uint64(len(img.Data)) - symOff) / entSize
	out := make([]byte, 0, maxCount*24)
	count := 0
	for i := uint64(0); i < maxCount; i++ {
		off := symOff + i*entSize
		var name, value, size uint32
		var value64, size64 uint64
		var info, other byte
		var shndx uint16
		if img.Arch.Is64() {
			name = binary.LittleEndian.Uint32(img.Data[off : off+4])
			info = img.Data[off+4]
			other = img.Data[off+5]
			shndx = binary.LittleEndian.Uint16(img.Data[off+6 : off+8])
			value64 = binary.LittleEndian.Uint64(img.Data[off+8 : off+16])
			size64 = binary.LittleEndian.Uint64(img.Data[off+16 : off+24])
		} else {
			name = binary.LittleEndian.Uint32(img.Data[off : off+4])
			value = binary.LittleEndian.Uint32(img.Data[off+4 : off+8])
			size = binary.LittleEndian.Uint32(img.Data[off+8 : off+12])
			info = img.Data[off+12]
			other = img.Data[off+13]
			shndx = binary.LittleEndian.Uint16(img.Data[off+14 : off+16])
			value64 = uint64(value)
			size64 = uint64(size)
		}
		rec := make([]byte, 24)
		binary.LittleEndian.PutUint32(rec[0:4], name)
		rec[4] = info
		rec[5] = other
		binary.LittleEndian.PutUint16(rec[6:8], shndx)
		binary.LittleEndian.PutUint64(rec[8:16], value64)
		binary.LittleEndian.PutUint64(rec[16:24], size64)
		out = append(out, rec...)
		count++
	}
	return out, count
}

func readSysVHash(img Image, off uint64) (*module.SysVHash, error) {
	if off+8 > uint64(len(img.Data)) {
		return nil, fmt.Errorf("dynsec: DT_HASH header past end of file")
	}
	nbucket := binary.LittleEndian.Uint32(img.Data[off : off+4])
	nchain := binary.LittleEndian.Uint32(img.Data[off+4 : off+8])

	cursor := off + 8
	buckets := make([]uint32, nbucket)
	for i := range buckets {
		buckets[i] = binary.LittleEndian.Uint32(img.Data[cursor : cursor+4])
		cursor += 4
	}
	chain := make([]uint32, nchain)
	for i := range chain {
		chain[i] = binary.LittleEndian.Uint32(img.Data[cursor : cursor+4])
		cursor += 4
	}
	return &module.SysVHash{NBucket: nbucket, NChain: nchain, Buckets: buckets, Chain: chain}, nil
}

func readGNUHash(img Image, off uint64, symCount int) (*module.GNUHash, error) {
	if off+16 > uint64(len(img.Data)) {
		return nil, fmt.Errorf("dynsec: DT_GNU_HASH header past end of file")
	}
	nbucket := binary.LittleEndian.Uint32(img.Data[off : off+4])
	symBase := binary.LittleEndian.Uint32(img.Data[off+4 : off+8])
	maskWords := binary.LittleEndian.Uint32(img.Data[off+8 : off+12])
	shift := binary.LittleEndian.Uint32(img.Data[off+12 : off+16])

	if maskWords == 0 || maskWords&(maskWords-1) != 0 {
		return nil, fmt.Errorf("dynsec: DT_GNU_HASH maskwords %d is not a power of two", maskWords)
	}

	// gnu_bloom_filter entries are ElfW(Addr)-sized: 4 bytes on a 32-bit
	// guest, 8 on a 64-bit one. Reading them at the wrong width misaligns
	// every cursor position that follows (buckets, chain).
	wordSize := img.Arch.WordSize()
	cursor := off + 16
	bloom := make([]uint64, maskWords)
	for i := range bloom {
		if wordSize == 8 {
			bloom[i] = binary.LittleEndian.Uint64(img.Data[cursor : cursor+8])
		} else {
			bloom[i] = uint64(binary.LittleEndian.Uint32(img.Data[cursor : cursor+4]))
		}
		cursor += uint64(wordSize)
	}
	buckets := make([]uint32, nbucket)
	for i := range buckets {
		buckets[i] = binary.LittleEndian.Uint32(img.Data[cursor : cursor+4])
		cursor += 4
	}

	chainCount := 0
	if symCount > int(symBase) {
		chainCount = symCount - int(symBase)
	}
	chain := make([]uint32, chainCount)
	for i := range chain {
		chain[i] = binary.LittleEndian.Uint32(img.Data[cursor : cursor+4])
		cursor += 4
	}

	return &module.GNUHash{
		NBucket:   nbucket,
		SymBase:   symBase,
		MaskWords: maskWords,
		Shift:     shift,
		Bloom:     bloom,
		Buckets:   buckets,
		Chain:     chain,
	}, nil
}

func readRelArray(img Image, off, size uint64, isRela bool) (module.RelArray, error) {
	entSize := uint64(16)
	if isRela {
		entSize = 24
	}
	if !img.Arch.Is64() {
		entSize = 8
		if isRela {
			entSize = 12
		}
	}
	count := size / entSize
	entries := make([]elfconst.Rela64, 0, count)
	for i := uint64(0); i < count; i++ {
		eoff := off + i*entSize
		var offset uint64
		var infoSym, infoType uint32
		var addend int64

		if img.Arch.Is64() {
			offset = binary.LittleEndian.Uint64(img.Data[eoff : eoff+8])
			info := binary.LittleEndian.Uint64(img.Data[eoff+8 : eoff+16])
			infoSym = elfconst.R_INFO_SYM(info)
			infoType = elfconst.R_INFO_TYPE(info)
			if isRela {
				addend = int64(binary.LittleEndian.Uint64(img.Data[eoff+16 : eoff+24]))
			}
		} else {
			offset = uint64(binary.LittleEndian.Uint32(img.Data[eoff : eoff+4]))
			info := binary.LittleEndian.Uint32(img.Data[eoff+4 : eoff+8])
			infoSym = elfconst.R_INFO_SYM32(info)
			infoType = elfconst.R_INFO_TYPE32(info)
			if isRela {
				addend = int64(int32(binary.LittleEndian.Uint32(img.Data[eoff+8 : eoff+12])))
			}
		}

		entries = append(entries, elfconst.Rela64{
			Offset: offset,
			Info:   uint64(infoSym)<<32 | uint64(infoType),
			Addend: addend,
		})
	}
	return module.RelArray{Entries: entries, IsRela: isRela}, nil
}

func cstringAt(b []byte, off int) string {
	if off >= len(b) {
		return ""
	}
	end := off
	for end < len(b) && b[end] != 0 {
		end++
	}
	return string(b[off:end])
}
