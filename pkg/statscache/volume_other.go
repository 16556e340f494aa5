//go:build !linux && !darwin && !freebsd

package statscache

import "errors"

// Usage is not available on this platform.
func (statfsVolume) Usage(string) (Usage, error) {
	return Usage{}, errors.ErrUnsupported
}
