package bionic

import "github.com/binarycraft007/bionic-translation/internal/module"

type handleKind int

const (
	handleGuest handleKind = iota
	handleDefault
	handleNext
	handleHost
)

// Handle is an opaque loader handle: a guest module, or one of the
// special RTLD_DEFAULT/RTLD_NEXT/host-loader handles spec.md §4.9's
// lookup() describes.
type Handle struct {
	special handleKind
	mod     *module.Module
}

// RTLDDefault searches the full registry in Lookup's priority order,
// equivalent to RTLD_DEFAULT.
var RTLDDefault = Handle{special: handleDefault}

// RTLDNext searches the modules following the caller's own module in
// registry order, equivalent to RTLD_NEXT. Since this loader has no way
// to recover "the caller" without a return-address argument, callers
// wanting RTLD_NEXT semantics should instead Open the specific
// dependency they mean to search past.
var RTLDNext = Handle{special: handleNext}

// HostHandle represents the host loader itself: a Lookup against it
// tries "bionic_"+name, then name, against the host's own symbol table.
var HostHandle = Handle{special: handleHost}
