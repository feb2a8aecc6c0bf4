//go:build !unix && !windows

package vmem

// Without paging primitives the reservation is ordinary heap memory.
func sysPageSize() int {
	return 4096
}

func sysReserve(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func sysCommit(b []byte) error {
	clear(b)
	return nil
}

func sysDecommit(b []byte) error {
	clear(b)
	return nil
}

func sysRelease([]byte) error {
	return nil
}
