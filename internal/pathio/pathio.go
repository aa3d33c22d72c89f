// Package pathio is the small file-existence/open layer
// internal/pathresolve's disk search calls through, kept as its own
// package so the syscall boundary (SPEC_FULL.md §B) is exercised
// directly rather than via os's higher-level wrappers everywhere.
package pathio

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Exists reports whether path names a regular file, the predicate
// internal/pathresolve.Locate searches with.
func Exists(path string) bool {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false
	}
	return st.Mode&unix.S_IFMT == unix.S_IFREG
}

// OpenReadOnly opens path for reading, returning the raw descriptor
// internal/segment.Map mmaps PT_LOAD segments from.
func OpenReadOnly(path string) (int, error) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return -1, fmt.Errorf("pathio: open %s: %w", path, err)
	}
	return fd, nil
}

// Size returns the current size of an open descriptor, used to bound
// section reads and to locate a prelink trailer from the tail of a file.
func Size(fd int) (int64, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return 0, fmt.Errorf("pathio: fstat: %w", err)
	}
	return st.Size, nil
}

// Close releases fd, ignoring EBADF (already closed).
func Close(fd int) {
	unix.Close(fd)
}
