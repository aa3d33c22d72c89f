// Package hardening is the setuid stdio-fd hardening step
// (SPEC_FULL.md §C.3, grounded on apkenv_program_is_setuid and
// apkenv_nullify_closed_stdio): if the process is running setuid, any
// of fds 0/1/2 that arrived already closed are redirected to /dev/null
// so a later open() by guest code cannot unknowingly hijack a standard
// stream a privileged caller closed on purpose.
package hardening

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/binarycraft007/bionic-translation/internal/logging"
)

// IsSetuid reports whether the real and effective user or group IDs of
// the current process differ.
func IsSetuid() bool {
	return unix.Getuid() != unix.Geteuid() || unix.Getgid() != unix.Getegid()
}

// NullifyClosedStdio is a no-op unless IsSetuid reports true; when it
// does, every one of fds 0/1/2 not already pointing at an open
// description is reopened against /dev/null.
func NullifyClosedStdio() error {
	if !IsSetuid() {
		return nil
	}
	for _, fd := range []int{0, 1, 2} {
		if fdOpen(fd) {
			continue
		}
		if err := redirectToDevNull(fd); err != nil {
			return err
		}
		logging.Warnf("hardening: redirected closed fd %d to /dev/null (setuid process)", fd)
	}
	return nil
}

func fdOpen(fd int) bool {
	_, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	return err == nil
}

func redirectToDevNull(fd int) error {
	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer devnull.Close()

	if int(devnull.Fd()) == fd {
		return nil
	}
	return unix.Dup2(int(devnull.Fd()), fd)
}
