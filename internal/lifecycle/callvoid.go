package lifecycle

import "unsafe"

// callVoid invokes a guest function taking no arguments and returning
// nothing, at the given already-rebased address. DT_INIT/DT_FINI and
// the two array forms all share this signature under the Itanium C++
// ABI and its bionic equivalent.
func callVoid(addr uintptr) {
	fn := *(*func())(unsafe.Pointer(&addr))
	fn()
}
