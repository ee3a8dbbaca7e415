package kernel

// Config holds the constants a real target would otherwise bake in at
// compile time: stack page size, heap pages, quantum, pool geometry,
// signal word width and reserved-bit count. The host build loads these
// from a YAML profile via the config package; on an 8-bit target they
// would be literal compile-time constants instead.
type Config struct {
	PageSize        uintptr `yaml:"pageSize"`
	HeapPages       int     `yaml:"heapPages"`
	QuantumTicks    uint32  `yaml:"quantumTicks"`
	PoolThreads     int     `yaml:"poolThreads"`
	PoolStackBytes  uintptr `yaml:"poolStackBytes"`
	IdleStackBytes  uintptr `yaml:"idleStackBytes"`
	SignalWidth     int     `yaml:"signalWidth"`
	ReservedSignals int     `yaml:"reservedSignals"`
}

// DefaultConfig returns plausible constants for a small 8-bit target: a
// 32-byte page, 16KiB of heap, a 15ms quantum, four 128-byte pool
// threads, and a 16-bit signal word with four bits reserved for
// SIG_TIMEOUT/SIG_START/SIG_STOP/SIG_TERM.
func DefaultConfig() Config {
	return Config{
		PageSize:        32,
		HeapPages:       512,
		QuantumTicks:    15,
		PoolThreads:     4,
		PoolStackBytes:  128,
		IdleStackBytes:  64,
		SignalWidth:     16,
		ReservedSignals: reservedSignalCount,
	}
}
