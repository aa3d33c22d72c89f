// Package elfreader is C1: it reads a guest ELF32/ELF64 shared object
// off disk into the arch-neutral shapes (elfconst.Phdr64 and friends)
// the rest of the loader consumes, and detects the prelink trailer
// apkenv-lineage loaders honor (spec.md §4.1, §6).
package elfreader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/binarycraft007/bionic-translation/internal/elfconst"
)

// Header is the subset of ELF identification this loader consults.
type Header struct {
	Arch      elfconst.Arch
	Is64      bool
	Type      uint16
	Entry     uint64
	Phoff     uint64
	Phentsize uint16
	Phnum     uint16
}

// File is a guest shared object opened for loading: its validated
// header, program headers widened to Phdr64, and (if present) the
// prelinked base address recovered from the trailer.
type File struct {
	f           *os.File
	Path        string
	Header      Header
	Phdrs       []elfconst.Phdr64
	PrelinkBase uintptr
}

// Open validates the ELF magic and class/data encoding, reads the
// program header table, and probes for a prelink trailer.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("elfreader: %w", err)
	}

	file := &File{f: f, Path: path}
	if err := file.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	if err := file.readPhdrs(); err != nil {
		f.Close()
		return nil, err
	}
	file.probePrelink()
	return file, nil
}

func (file *File) Close() error { return file.f.Close() }

// Fd exposes the underlying descriptor for internal/segment.Map, which
// mmaps PT_LOAD segments straight from it.
func (file *File) Fd() int { return int(file.f.Fd()) }

func (file *File) readHeader() error {
	var ident [16]byte
	if _, err := file.f.ReadAt(ident[:], 0); err != nil {
		return fmt.Errorf("elfreader: reading e_ident: %w", err)
	}
	if ident[elfconst.EI_MAG0] != elfconst.ELFMAG0 ||
		ident[elfconst.EI_MAG1] != elfconst.ELFMAG1 ||
		ident[elfconst.EI_MAG2] != elfconst.ELFMAG2 ||
		ident[elfconst.EI_MAG3] != elfconst.ELFMAG3 {
		return fmt.Errorf("elfreader: %s: not an ELF object", file.Path)
	}
	if ident[elfconst.EI_DATA] != elfconst.ELFDATA2LSB {
		return fmt.Errorf("elfreader: %s: only little-endian objects are supported", file.Path)
	}

	switch ident[elfconst.EI_CLASS] {
	case elfconst.ELFCLASS64:
		var eh elfconst.Ehdr64
		if err := file.readStruct(0, &eh); err != nil {
			return err
		}
		file.Header = Header{
			Arch: elfconst.ArchFromMachine(eh.Machine), Is64: true,
			Type: eh.Type, Entry: eh.Entry, Phoff: eh.Phoff,
			Phentsize: eh.Phentsize, Phnum: eh.Phnum,
		}
	case elfconst.ELFCLASS32:
		var eh elfconst.Ehdr32
		if err := file.readStruct(0, &eh); err != nil {
			return err
		}
		file.Header = Header{
			Arch: elfconst.ArchFromMachine(eh.Machine), Is64: false,
			Type: eh.Type, Entry: uint64(eh.Entry), Phoff: uint64(eh.Phoff),
			Phentsize: eh.Phentsize, Phnum: eh.Phnum,
		}
	default:
		return fmt.Errorf("elfreader: %s: unrecognized EI_CLASS", file.Path)
	}

	if file.Header.Arch == elfconst.ArchUnknown {
		return fmt.Errorf("elfreader: %s: unsupported e_machine", file.Path)
	}
	if file.Header.Type != elfconst.ET_DYN {
		return fmt.Errorf("elfreader: %s: only ET_DYN shared objects are supported", file.Path)
	}
	return nil
}

func (file *File) readPhdrs() error {
	phdrs := make([]elfconst.Phdr64, 0, file.Header.Phnum)
	for i := uint16(0); i < file.Header.Phnum; i++ {
		off := file.Header.Phoff + uint64(i)*uint64(file.Header.Phentsize)
		if file.Header.Is64 {
			var p elfconst.Phdr64
			if err := file.readStruct(int64(off), &p); err != nil {
				return err
			}
			phdrs = append(phdrs, p)
		} else {
			var p elfconst.Phdr32
			if err := file.readStruct(int64(off), &p); err != nil {
				return err
			}
			phdrs = append(phdrs, elfconst.Phdr64{
				Type: p.Type, Flags: p.Flags, Offset: uint64(p.Offset),
				Vaddr: uint64(p.Vaddr), Paddr: uint64(p.Paddr),
				Filesz: uint64(p.Filesz), Memsz: uint64(p.Memsz), Align: uint64(p.Align),
			})
		}
	}
	file.Phdrs = phdrs
	return nil
}

// probePrelink checks the trailing PrelinkTrailerSize bytes of the
// object for the "PRE " tag apkenv_is_prelinked looks for; if present,
// the preceding 8 bytes are the little-endian base address the image
// was prelinked to load at.
func (file *File) probePrelink() {
	info, err := file.f.Stat()
	if err != nil || info.Size() < elfconst.PrelinkTrailerSize {
		return
	}
	trailer := make([]byte, elfconst.PrelinkTrailerSize)
	off := info.Size() - elfconst.PrelinkTrailerSize
	if _, err := file.f.ReadAt(trailer, off); err != nil {
		return
	}
	if !bytes.Equal(trailer[8:], []byte(elfconst.PrelinkTag)) {
		return
	}
	file.PrelinkBase = uintptr(binary.LittleEndian.Uint64(trailer[:8]))
}

func (file *File) readStruct(off int64, v any) error {
	sr := io.NewSectionReader(file.f, off, 1<<20)
	if err := binary.Read(sr, binary.LittleEndian, v); err != nil {
		return fmt.Errorf("elfreader: %s: %w", file.Path, err)
	}
	return nil
}

// DynamicOffset returns the file offset of the PT_DYNAMIC segment, for
// internal/dynsec.Parse to read from.
func (file *File) DynamicOffset() (uint64, bool) {
	for _, p := range file.Phdrs {
		if p.Type == elfconst.PT_DYNAMIC {
			return p.Offset, true
		}
	}
	return 0, false
}
