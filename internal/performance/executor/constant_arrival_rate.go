package executor

import "github.com/wesleyorama2/tradeload/internal/performance/rate"

// ConstantArrivalRate starts iterations at a fixed rate, regardless of how
// long each one takes (open model).
//
// Workers are drawn from a pool that starts at PreAllocatedVUs and grows on
// demand up to MaxVUs. An iteration that finds the pool saturated is
// dropped and counted in dropped_iterations, so the observed rate can fall
// below the target but never exceed it.
//
// Use cases:
//   - Testing system behavior under constant load
//   - SLA validation (e.g., the reader must sustain 100 reads/s)
//   - Capacity testing with predictable arrival patterns
type ConstantArrivalRate struct {
	arrivalExecutor
}

// NewConstantArrivalRate creates a new constant arrival rate executor.
func NewConstantArrivalRate() *ConstantArrivalRate {
	return &ConstantArrivalRate{arrivalExecutor{
		base: base{kind: TypeConstantArrivalRate},
		schedule: func(c *Config) (*rate.Schedule, error) {
			return rate.NewConstant(c.Rate, c.timeUnit(), c.Duration)
		},
		timeline: func(c *Config) *Timeline {
			return NewTimeline(c.Rate, []Stage{{Duration: c.Duration, Target: c.Rate}})
		},
	}}
}

// Ensure ConstantArrivalRate implements Executor
var _ Executor = (*ConstantArrivalRate)(nil)
