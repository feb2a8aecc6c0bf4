//go:build windows

package vmem

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

func sysPageSize() int {
	return windows.Getpagesize()
}

func sysReserve(size int) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func sysCommit(b []byte) error {
	addr := uintptr(unsafe.Pointer(&b[0]))
	_, err := windows.VirtualAlloc(addr, uintptr(len(b)), windows.MEM_COMMIT, windows.PAGE_READWRITE)
	return err
}

func sysDecommit(b []byte) error {
	addr := uintptr(unsafe.Pointer(&b[0]))
	return windows.VirtualFree(addr, uintptr(len(b)), windows.MEM_DECOMMIT)
}

func sysRelease(b []byte) error {
	addr := uintptr(unsafe.Pointer(&b[0]))
	return windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
}
