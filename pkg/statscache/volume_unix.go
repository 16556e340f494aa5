//go:build linux || darwin || freebsd

package statscache

import (
	"golang.org/x/sys/unix"
)

// Usage returns the size of the filesystem holding path. Used counts blocks in
// use, Free counts blocks available to unprivileged users.
func (statfsVolume) Usage(path string) (Usage, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Usage{}, err
	}

	bsize := uint64(stat.Bsize) //nolint:gosec,unconvert // block size is positive and its type varies by platform
	return Usage{
		Total: stat.Blocks * bsize,
		Used:  (stat.Blocks - stat.Bfree) * bsize,
		Free:  stat.Bavail * bsize,
	}, nil
}
