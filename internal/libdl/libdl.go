// Package libdl builds the libdl-stub sentinel module: a synthetic
// Module exposing the small, fixed set of symbols Android's libdl.so
// forwards (dlopen, dlclose, dlsym, dlerror, dladdr, dl_iterate_phdr),
// bound to their host glibc implementations. A DT_NEEDED entry naming a
// library that cannot be located in the search path binds to this
// module instead of failing the whole dependency graph (spec.md §8).
// Grounded on apkenv_libdl_info in
// _examples/original_source/linker/dlfcn.c: a single-bucket "fake" hash
// table over a 7-entry symtab (index 0 reserved, indices 1-6 the real
// symbols), built once as a process-wide singleton.
package libdl

import (
	"sync"

	"github.com/binarycraft007/bionic-translation/internal/elfconst"
	"github.com/binarycraft007/bionic-translation/internal/hostsym"
	"github.com/binarycraft007/bionic-translation/internal/module"
)

// Name is the soname a DT_NEEDED entry for Android's stub dynamic
// linker library resolves to.
const Name = "libdl.so"

var symbolNames = []string{"dlopen", "dlclose", "dlsym", "dlerror", "dladdr", "dl_iterate_phdr"}

var (
	once sync.Once
	stub *module.Module
)

// Stub returns the process-wide libdl sentinel module, building it on
// first use. Its Base is always zero: symbol values are already
// absolute host addresses rather than file-relative vaddrs, so
// Module.Rebase is a no-op here.
func Stub() *module.Module {
	once.Do(buildStub)
	return stub
}

func buildStub() {
	strtab := []byte("\x00")
	nameOff := make([]uint32, len(symbolNames))
	for i, n := range symbolNames {
		nameOff[i] = uint32(len(strtab))
		strtab = append(strtab, n...)
		strtab = append(strtab, 0)
	}

	symCount := len(symbolNames) + 1 // +1 for the reserved STN_UNDEF slot
	symtab := make([]byte, 24*symCount)
	for i, name := range symbolNames {
		addr, _, _ := hostsym.Lookup(name)
		putSym(symtab, i+1, nameOff[i], addr)
	}

	// apkenv_libdl_buckets/apkenv_libdl_chains: one bucket covering every
	// symbol, chained in declaration order and terminated by a zero.
	chain := make([]uint32, symCount)
	for i := 1; i < symCount-1; i++ {
		chain[i] = uint32(i + 1)
	}

	stub = &module.Module{
		Name:     Name,
		Arch:     elfconst.ArchUnknown,
		Strtab:   strtab,
		Symtab:   symtab,
		SymCount: symCount,
		SysV: &module.SysVHash{
			NBucket: 1,
			NChain:  uint32(symCount),
			Buckets: []uint32{1},
			Chain:   chain,
		},
	}
	stub.SetFlag(module.FlagLinker)
	stub.SetFlag(module.FlagLinked)
}

func putSym(b []byte, idx int, nameOff uint32, value uintptr) {
	off := idx * 24
	putLE32(b[off:off+4], nameOff)
	b[off+4] = elfconst.STB_GLOBAL << 4
	putLE16(b[off+6:off+8], 1) // non-zero st_shndx: defined, not SHN_UNDEF
	putLE64(b[off+8:off+16], uint64(value))
}

func putLE16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func putLE32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}
func putLE64(b []byte, v uint64) {
	putLE32(b[0:4], uint32(v))
	putLE32(b[4:8], uint32(v>>32))
}
