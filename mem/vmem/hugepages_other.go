//go:build !linux

package vmem

func sysHugePages([]byte) error {
	return nil
}
