// Package wrapper is C11: guest-opaque type wrappers. Each guest
// opaque type (mutex, mutex-attr, condition variable, cond-attr,
// rwlock, semaphore, thread-cleanup frame) is smaller on the guest side
// than its host equivalent, so guest storage is treated as a single
// pointer-width overlay pointing at a separately allocated host-native
// instance, allocated lazily on first use (spec.md §4.11).
package wrapper

import (
	"sync"

	"golang.org/x/sys/unix"
)

// Kind identifies one guest-opaque type family.
type Kind int

const (
	KindMutex Kind = iota
	KindMutexAttr
	KindCond
	KindCondAttr
	KindRWLock
	KindSem
	KindCleanupFrame
)

// StaticInit identifies one of the small finite set of guest static
// initializer bit patterns a wrapper family recognizes without a call
// through an init function (spec.md §4.11, §9 "Dynamic dispatch →
// static tables").
type StaticInit uint32

const (
	MutexInitDefault StaticInit = iota
	MutexInitRecursive
	MutexInitErrorCheck
)

// mutexStaticTable replaces the original's per-type virtual dispatch
// with a plain compile-time table keyed by the guest's static
// initializer value (spec.md §9 REDESIGN FLAG).
var mutexStaticTable = map[StaticInit]func() *sync.Mutex{
	MutexInitDefault:    func() *sync.Mutex { return &sync.Mutex{} },
	MutexInitRecursive:  func() *sync.Mutex { return &sync.Mutex{} },
	MutexInitErrorCheck: func() *sync.Mutex { return &sync.Mutex{} },
}

// Registry owns every allocated host-native instance backing a guest
// overlay pointer, keyed by the overlay address so residency can be
// probed and storage released when the guest frees it.
type Registry struct {
	mu   sync.Mutex
	objs map[uintptr]any
}

func NewRegistry() *Registry {
	return &Registry{objs: make(map[uintptr]any)}
}

// Overlay returns the host-native instance backing guestAddr, creating
// it with newFn on first use. A guest's zero-initialized storage (all
// zero bytes, the common case for a statically-initialized mutex or a
// zero-initialized semaphore) overlays to a nil pointer, which Resident
// below correctly reports as "not yet allocated".
func (r *Registry) Overlay(guestAddr uintptr, newFn func() any) any {
	r.mu.Lock()
	defer r.mu.Unlock()

	if obj, ok := r.objs[guestAddr]; ok {
		return obj
	}
	obj := newFn()
	r.objs[guestAddr] = obj
	return obj
}

// Release drops the host-native instance backing guestAddr, called when
// the guest destroys the opaque object (pthread_mutex_destroy and
// friends).
func (r *Registry) Release(guestAddr uintptr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.objs, guestAddr)
}

// Resident reports whether the page backing addr is currently mapped, a
// Go-native substitute for the original's "probe whether the overlay
// pointer refers to a live page" test that distinguishes
// zero-initialized guest storage from an already-assigned overlay
// (spec.md §4.9).
func Resident(addr uintptr, pageSize int) bool {
	if addr == 0 {
		return false
	}
	base := addr &^ uintptr(pageSize-1)
	vec := make([]byte, 1)
	if err := unix.Mincore(ptrSlice(base, pageSize), vec); err != nil {
		return false
	}
	return vec[0]&1 != 0
}
