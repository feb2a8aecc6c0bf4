//go:build unix

package vmem

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// Only Linux guarantees MADV_DONTNEED on private anonymous memory reads back as zero.
const zeroOnCommit = runtime.GOOS != "linux"

func sysPageSize() int {
	return unix.Getpagesize()
}

func sysReserve(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
}

func sysCommit(b []byte) error {
	if err := unix.Mprotect(b, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return err
	}
	if zeroOnCommit {
		clear(b)
	}
	return nil
}

func sysDecommit(b []byte) error {
	if err := unix.Madvise(b, unix.MADV_DONTNEED); err != nil {
		return err
	}
	return unix.Mprotect(b, unix.PROT_NONE)
}

func sysRelease(b []byte) error {
	return unix.Munmap(b)
}
