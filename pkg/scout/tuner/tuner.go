// Package tuner detects host resources and derives starting points for
// the concurrency pool and memory limits from them.
package tuner

// SystemResources contains detected system resources.
type SystemResources struct {
	// CPUCores is the number of logical CPU cores available.
	CPUCores int

	// TotalRAM is the total physical RAM in bytes.
	TotalRAM int64

	// AvailableRAM is the free RAM in bytes. May be an estimate.
	AvailableRAM int64
}

// TotalRAMMB returns TotalRAM in mebibytes.
func (r SystemResources) TotalRAMMB() float64 {
	return float64(r.TotalRAM) / (1024 * 1024)
}
