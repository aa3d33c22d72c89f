// Package bionic implements an in-process secondary dynamic loader: it
// loads guest ELF shared objects (ARM, AArch64, i386, x86_64) into the
// host process's own address space and resolves their symbol references
// through a layered lookup that favors host-provided translation shims
// over host libc symbols of the same name.
//
// The five public operations — Open, Close, Lookup, AddrInfo, and
// LastError — are all serialized through a single Context-wide lock,
// mirroring the original loader's single global mutex (spec.md §5).
// Everything else (ELF parsing, segment mapping, relocation, the
// constructor/destructor ordering, the debugger-visible module list)
// lives under internal/ and is reached only through a Context.
package bionic
