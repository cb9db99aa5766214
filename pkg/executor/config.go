package executor

import "time"

// BackpressurePolicy selects what happens to a chunk arriving at a full
// per-node queue.
type BackpressurePolicy string

const (
	BackpressureDrop   BackpressurePolicy = "drop"
	BackpressureReject BackpressurePolicy = "reject"
	BackpressureBlock  BackpressurePolicy = "block"
)

// StreamConfig configures one streaming session with recognized options.
type StreamConfig struct {
	QueueCapacity int
	Backpressure  BackpressurePolicy
	IdleTimeout   time.Duration
	BatchTimeout  time.Duration
	SkipSequenceGaps bool
}

// DefaultStreamConfig picks conservative defaults: small bounded queues,
// short batch windows.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		QueueCapacity: 64,
		Backpressure:  BackpressureReject,
		IdleTimeout:   30 * time.Second,
		BatchTimeout:  200 * time.Millisecond,
	}
}
