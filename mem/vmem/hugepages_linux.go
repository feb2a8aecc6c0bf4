//go:build linux

package vmem

import "golang.org/x/sys/unix"

func sysHugePages(b []byte) error {
	err := unix.Madvise(b, unix.MADV_HUGEPAGE)
	if err == unix.EINVAL {
		// Kernel built without transparent huge pages.
		return nil
	}
	return err
}
