// Package hostsym is the one deliberate cgo boundary in this module: it
// queries the host's own dynamic symbol table by name. Nothing in
// Go's standard library can resolve an arbitrary host libc/libdl symbol
// at runtime, so this wraps dlopen(3)/dlsym(3) directly, the same way
// the original C loader's apkenv__do_lookup ultimately bottoms out in
// dlsym(RTLD_DEFAULT, ...) when a reference escapes the guest module
// graph.
package hostsym

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>
#include <stdio.h>

// dieStubDispatch is the fixed machine-independent side of the
// die-at-runtime stub (internal/reloc/stub.go). Every generated
// trampoline, regardless of guest architecture, ends up jumping here
// with a pointer to a dieStubData block as its first argument.
typedef struct {
	const char *symbol_name;
} die_stub_data_t;

static void die_stub_dispatch(die_stub_data_t *data) {
	fprintf(stderr, "ABORTING: LINKER_DIE_AT_RUNTIME was set, and someone called a "
		"function which we weren't able to link (symbol name: >%s<)\n",
		data->symbol_name);
	exit(1);
}

static void *die_stub_dispatch_addr(void) {
	return (void *)die_stub_dispatch;
}

typedef void *(*egl_get_proc_address_fn)(const char *);

static void *call_egl_get_proc_address(void *fn, const char *name) {
	return ((egl_get_proc_address_fn)fn)(name);
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"
)

var (
	mu      sync.Mutex
	handles = map[string]unsafe.Pointer{}
)

// defaultHandle is RTLD_DEFAULT: search the host's global symbol scope,
// exactly what a plain host-name lookup in the resolver pipeline wants.
func defaultHandle() unsafe.Pointer {
	return unsafe.Pointer(uintptr(0)) // RTLD_DEFAULT is NULL on glibc/musl
}

// Lookup resolves name against the host's default symbol scope,
// reporting whether it was found and (best-effort, via a second dladdr
// pass) whether it looks like a function symbol.
func Lookup(name string) (addr uintptr, isFunc bool, ok bool) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	mu.Lock()
	sym := C.dlsym(defaultHandle(), cname)
	mu.Unlock()

	if sym == nil {
		return 0, false, false
	}
	return uintptr(sym), true, true
}

// LookupIn resolves name against a previously dlopen'd library handle
// named by path (used for the libstdc++ demangler hookup and other
// named-library lookups).
func LookupIn(path, name string) (uintptr, bool) {
	h, err := openHandle(path)
	if err != nil {
		return 0, false
	}
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	sym := C.dlsym(h, cname)
	if sym == nil {
		return 0, false
	}
	return uintptr(sym), true
}

func openHandle(path string) (unsafe.Pointer, error) {
	mu.Lock()
	defer mu.Unlock()

	if h, ok := handles[path]; ok {
		return h, nil
	}
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	h := C.dlopen(cpath, C.RTLD_NOW)
	if h == nil {
		return nil, fmt.Errorf("hostsym: dlopen %s failed", path)
	}
	handles[path] = h
	return h, nil
}

// DieStubDispatchAddr returns the machine address of the fixed C
// dispatcher every generated die-at-runtime trampoline jumps to.
func DieStubDispatchAddr() uintptr {
	return uintptr(C.die_stub_dispatch_addr())
}

// CallEGLGetProcAddress invokes a previously resolved eglGetProcAddress
// function pointer with name, for the "gl"-prefixed extension lookup
// step of the resolver pipeline (spec.md §4.5 step 4).
func CallEGLGetProcAddress(fn uintptr, name string) (uintptr, bool) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	addr := C.call_egl_get_proc_address(unsafe.Pointer(fn), cname)
	if addr == nil {
		return 0, false
	}
	return uintptr(addr), true
}

// NewDieStubData allocates the per-symbol sidecar block a generated
// trampoline's first argument register points at. The block and its
// symbol-name string are intentionally never freed: a die-at-runtime
// stub exists to abort the process the one time it is called, so there
// is no meaningful "destroy" path to design.
func NewDieStubData(name string) uintptr {
	data := (*C.die_stub_data_t)(C.malloc(C.size_t(unsafe.Sizeof(C.die_stub_data_t{}))))
	data.symbol_name = C.CString(name)
	return uintptr(unsafe.Pointer(data))
}
