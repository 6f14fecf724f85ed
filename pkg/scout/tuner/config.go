package tuner

// defaultTotalRAM is assumed when detection fails.
const defaultTotalRAM = 8 * 1024 * 1024 * 1024

// Limits applied by Calculate.
const (
	maxWorkers = 64

	// memoryFraction and emergencyFraction cap the soft and emergency
	// memory limits as a share of physical RAM.
	memoryFraction    = 0.25
	emergencyFraction = 0.5

	minMemoryLimitMB = 256
)

// OptimalConfig is the tuned starting point for the admission controller.
type OptimalConfig struct {
	// MaxWorkers is the ceiling for the concurrency pool.
	MaxWorkers int

	// InitialWorkers is the number of permits available at start.
	InitialWorkers int

	// MemoryLimitMB is the soft memory limit.
	MemoryLimitMB float64

	// EmergencyMemoryLimitMB is the hard memory limit.
	EmergencyMemoryLimitMB float64
}

// Calculate derives pool size and memory limits from the host.
//
//   - MaxWorkers: NumCPU, at least 2, at most 64
//   - InitialWorkers: half of MaxWorkers, at least 1
//   - memory limits: a quarter and a half of physical RAM
func Calculate(resources SystemResources) OptimalConfig {
	workers := min(max(resources.CPUCores, 2), maxWorkers)

	totalMB := resources.TotalRAMMB()
	if totalMB <= 0 {
		totalMB = float64(defaultTotalRAM) / (1024 * 1024)
	}

	return OptimalConfig{
		MaxWorkers:             workers,
		InitialWorkers:         max(workers/2, 1),
		MemoryLimitMB:          max(totalMB*memoryFraction, minMemoryLimitMB),
		EmergencyMemoryLimitMB: max(totalMB*emergencyFraction, 2*minMemoryLimitMB),
	}
}

// CalculateWithOverrides applies configured values on top of Calculate.
// A positive workerOverride fixes MaxWorkers (capped at 64) and keeps
// InitialWorkers within it. Positive memory overrides are taken as given.
func CalculateWithOverrides(resources SystemResources, workerOverride int, memoryMB, emergencyMB float64) OptimalConfig {
	cfg := Calculate(resources)

	if workerOverride > 0 {
		cfg.MaxWorkers = min(workerOverride, maxWorkers)
		cfg.InitialWorkers = min(cfg.InitialWorkers, cfg.MaxWorkers)
	}
	if memoryMB > 0 {
		cfg.MemoryLimitMB = memoryMB
	}
	if emergencyMB > 0 {
		cfg.EmergencyMemoryLimitMB = emergencyMB
	}

	return cfg
}
