//go:build !linux && !darwin

package tuner

import "runtime"

// Detect falls back to a fixed memory size on platforms without a probe.
func Detect() (SystemResources, error) {
	return SystemResources{
		CPUCores:     runtime.NumCPU(),
		TotalRAM:     defaultTotalRAM,
		AvailableRAM: defaultTotalRAM / 2,
	}, nil
}
