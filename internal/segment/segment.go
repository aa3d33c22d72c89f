// Package segment maps a guest ELF object's PT_LOAD segments into the
// host address space, tracking the reservation, the write-protect
// window used during relocation, and the GNU_RELRO extent (spec.md
// §4.2). It is the only package in the loader that calls mmap/mprotect
// directly.
package segment

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/binarycraft007/bionic-translation/internal/elfconst"
	"github.com/binarycraft007/bionic-translation/internal/logging"
	"github.com/binarycraft007/bionic-translation/internal/module"
)

const pageSize = 4096

func pageStart(v uintptr) uintptr { return v &^ (pageSize - 1) }
func pageEnd(v uintptr) uintptr   { return (v + pageSize - 1) &^ (pageSize - 1) }

// ptrSlice reassembles the []byte mmap/mprotect/munmap expect, given a
// previously mapped address and length.
func ptrSlice(addr, length uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(length))
}

// mmapAt wraps the raw mmap(2) syscall directly: golang.org/x/sys/unix's
// Mmap helper has no way to pass an address hint, and MAP_FIXED over an
// existing reservation is exactly what every PT_LOAD mapping needs here.
func mmapAt(addr uintptr, length int, prot, flags, fd int, offset int64) (uintptr, error) {
	ret, _, errno := unix.Syscall6(unix.SYS_MMAP, addr, uintptr(length), uintptr(prot), uintptr(flags), uintptr(fd), uintptr(offset))
	if errno != 0 {
		return 0, errno
	}
	return ret, nil
}

// Extents computes the [min_vaddr, max_vaddr) page-rounded range across
// every PT_LOAD entry, whose length is the module's reservation size.
func Extents(phdrs []elfconst.Phdr64) (minVaddr, maxVaddr uintptr, err error) {
	haveLoad := false
	minVaddr = ^uintptr(0)
	for _, p := range phdrs {
		if p.Type != elfconst.PT_LOAD {
			continue
		}
		haveLoad = true
		start := pageStart(uintptr(p.Vaddr))
		end := pageEnd(uintptr(p.Vaddr + p.Memsz))
		if start < minVaddr {
			minVaddr = start
		}
		if end > maxVaddr {
			maxVaddr = end
		}
	}
	if !haveLoad {
		return 0, 0, fmt.Errorf("segment: no PT_LOAD entries")
	}
	return minVaddr, maxVaddr, nil
}

// reserve establishes the anonymous mapping backing a module's whole
// address range. When fixed is true the mapping is attempted at hint
// and loading fails outright if the kernel cannot honor it exactly — a
// prelinked image is never silently relocated.
func reserve(hint uintptr, size uintptr, fixed bool) (uintptr, error) {
	flags := unix.MAP_PRIVATE | unix.MAP_ANON
	if fixed {
		flags |= unix.MAP_FIXED
	}
	base, err := mmapAt(hint, int(size), unix.PROT_NONE, flags, -1, 0)
	if err != nil {
		return 0, fmt.Errorf("segment: mmap reservation: %w", err)
	}
	if fixed && base != hint {
		unix.Munmap(ptrSlice(base, size))
		return 0, fmt.Errorf("segment: prelinked base %#x unavailable (got %#x)", hint, base)
	}
	return base, nil
}

// Mapped is one mapped PT_LOAD extent, tracked so Unmap can release the
// whole reservation and so write-protect restoration knows which ranges
// were originally read-only.
type Mapped struct {
	Start    uintptr
	Len      uintptr
	Prot     int
	ReadOnly bool
}

// Image is everything Map produced for one module: the reservation base
// and size, every mapped PT_LOAD extent, the union write-protect window,
// and (if present) the GNU_RELRO extent.
type Image struct {
	Base         uintptr
	Size         uintptr
	Segments     []Mapped
	WriteProtect module.AddrRange
	Relro        module.AddrRange
}

// Map reserves the module's address range and maps every PT_LOAD entry
// from fd at (base + vaddr), rounded down to a page, using MAP_FIXED
// over the reservation. Segments are mapped writable regardless of
// their declared permissions so the relocation engine can patch them;
// the caller restores original permissions via ProtectReadOnly after
// relocating.
func Map(fd int, phdrs []elfconst.Phdr64, prelinkBase uintptr) (*Image, error) {
	minV, maxV, err := Extents(phdrs)
	if err != nil {
		return nil, err
	}
	size := maxV - minV

	base, err := reserve(prelinkBase, size, prelinkBase != 0)
	if err != nil {
		return nil, err
	}

	img := &Image{Base: base, Size: size}
	var mappedTotal uintptr

	for _, p := range phdrs {
		if p.Type != elfconst.PT_LOAD {
			continue
		}

		segStart := base + uintptr(p.Vaddr) - minV
		pageOff := segStart - pageStart(segStart)
		mapStart := segStart - pageOff
		fileStart := p.Offset - uint64(pageOff)
		filesz := p.Filesz + uint64(pageOff)

		prot := permToProt(p.Flags)
		hostProt := unix.PROT_READ | unix.PROT_WRITE
		if prot&unix.PROT_EXEC != 0 {
			hostProt |= unix.PROT_EXEC
		}

		mapLen := pageEnd(uintptr(filesz))
		if _, err := mmapAt(mapStart, int(mapLen), hostProt, unix.MAP_PRIVATE|unix.MAP_FIXED, fd, int64(fileStart)); err != nil {
			unmapAll(img)
			return nil, fmt.Errorf("segment: mmap PT_LOAD: %w", err)
		}
		mappedTotal += mapLen

		if p.Memsz > p.Filesz {
			bssStart := pageEnd(segStart + uintptr(p.Filesz))
			bssEnd := pageEnd(mapStart + uintptr(p.Memsz) + pageOff)
			bssLen := bssEnd - bssStart
			if bssLen > 0 {
				if _, err := mmapAt(bssStart, int(bssLen), hostProt, unix.MAP_PRIVATE|unix.MAP_FIXED|unix.MAP_ANONYMOUS, -1, 0); err != nil {
					unmapAll(img)
					return nil, fmt.Errorf("segment: mmap bss extension: %w", err)
				}
				mappedTotal += bssLen
			}
		}

		readOnly := prot&unix.PROT_WRITE == 0
		seg := Mapped{Start: mapStart, Len: mapLen, Prot: prot, ReadOnly: readOnly}
		img.Segments = append(img.Segments, seg)

		if readOnly {
			extendRange(&img.WriteProtect, mapStart, mapStart+mapLen)
		}
	}

	if mappedTotal > size {
		unmapAll(img)
		return nil, fmt.Errorf("segment: mapped %d bytes exceeds reservation of %d", mappedTotal, size)
	}

	// PT_GNU_RELRO is its own program header, distinct from the PT_LOAD
	// entry whose pages it overlaps, so it is found in a second pass.
	for _, p := range phdrs {
		if p.Type != elfconst.PT_GNU_RELRO {
			continue
		}
		start := base + uintptr(p.Vaddr) - minV
		end := start + uintptr(p.Memsz)
		img.Relro = module.AddrRange{Start: pageStart(start), End: pageEnd(end)}
	}

	logging.Tracef("segment: mapped module at base=%#x size=%#x segments=%d", base, size, len(img.Segments))
	return img, nil
}

func permToProt(flags uint32) int {
	prot := 0
	if flags&elfconst.PF_R != 0 {
		prot |= unix.PROT_READ
	}
	if flags&elfconst.PF_W != 0 {
		prot |= unix.PROT_WRITE
	}
	if flags&elfconst.PF_X != 0 {
		prot |= unix.PROT_EXEC
	}
	return prot
}

func extendRange(r *module.AddrRange, start, end uintptr) {
	if r.Start == 0 && r.End == 0 {
		r.Start, r.End = start, end
		return
	}
	if start < r.Start {
		r.Start = start
	}
	if end > r.End {
		r.End = end
	}
}

// ProtectReadOnly restores the original read-only permissions on every
// segment the loader temporarily made writable for relocation.
func ProtectReadOnly(img *Image) error {
	for _, seg := range img.Segments {
		if !seg.ReadOnly {
			continue
		}
		if err := unix.Mprotect(ptrSlice(seg.Start, seg.Len), unix.PROT_READ); err != nil {
			return fmt.Errorf("segment: restoring read-only protection: %w", err)
		}
	}
	return nil
}

// ProtectRelro makes the GNU_RELRO extent read-only; called after RELRO
// relocations complete, strictly after ProtectReadOnly.
func ProtectRelro(img *Image) error {
	if img.Relro.Len() == 0 {
		return nil
	}
	if err := unix.Mprotect(ptrSlice(img.Relro.Start, img.Relro.Len()), unix.PROT_READ); err != nil {
		return fmt.Errorf("segment: protecting GNU_RELRO: %w", err)
	}
	return nil
}

// UnprotectRelro restores RELRO to read-write, done on unload before the
// overwritten DT_NEEDED payload can be cleared.
func UnprotectRelro(img *Image) error {
	if img.Relro.Len() == 0 {
		return nil
	}
	return unix.Mprotect(ptrSlice(img.Relro.Start, img.Relro.Len()), unix.PROT_READ|unix.PROT_WRITE)
}

// Unmap releases the entire reservation.
func Unmap(img *Image) error {
	return unmapAll(img)
}

func unmapAll(img *Image) error {
	return unix.Munmap(ptrSlice(img.Base, img.Size))
}
