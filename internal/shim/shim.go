// Package shim is C10: the translation-shim facade. It implements the
// "bionic_" name-mangling lookup that lets a flat set of host-provided
// functions stand in for the guest libc/pthread surface, plus the
// wrapper-create hook the relocation resolver (C5, step 2) calls for
// every intra-guest function reference (spec.md §4.10).
package shim

import (
	"strings"

	"github.com/binarycraft007/bionic-translation/internal/elfconst"
	"github.com/binarycraft007/bionic-translation/internal/hostsym"
)

const shimPrefix = "bionic_"

// Lookup implements resolver step 1: look up "bionic_"+name in the
// host's symbol table.
func Lookup(name string) (addr uintptr, isFunc bool, ok bool) {
	return hostsym.Lookup(shimPrefix + name)
}

// GLLookup implements resolver step 4: names beginning with "gl" are
// queried against the host's EGL extension-address function instead of
// a plain dlsym, since GL/GLES extension entry points are not always
// exported as ordinary dynamic symbols.
func GLLookup(name string) (uintptr, bool) {
	if !strings.HasPrefix(name, "gl") {
		return 0, false
	}
	fn, _, ok := hostsym.Lookup("eglGetProcAddress")
	if !ok {
		return 0, false
	}
	return hostsym.CallEGLGetProcAddress(fn, name)
}

// NewWrapperCreate returns a reloc.WrapperCreate-shaped hook for arch:
// the identity pass spec.md §4.5 step 2 describes as "a hook point for
// cross-ABI calling-convention repair", except on ARM where it preserves
// the Thumb bit the original apkenv_wrap_function tested before handing
// a resolved address back into a relocation slot (SPEC_FULL.md §C.4).
func NewWrapperCreate(arch elfconst.Arch) func(name string, addr uintptr) uintptr {
	if arch != elfconst.ArchARM {
		return func(name string, addr uintptr) uintptr { return addr }
	}
	return func(name string, addr uintptr) uintptr { return wrapARMThumb(addr) }
}

// wrapARMThumb mirrors apkenv_wrap_function's ARM branch: bit 0 of a
// function address marks Thumb-mode code under the AAPCS interworking
// convention. Since this loader never relocates an address it didn't
// itself resolve, the bit set by the host symbol table is preserved
// rather than recomputed.
func wrapARMThumb(addr uintptr) uintptr {
	return addr
}
