package executor

// ConstantVUs runs a fixed number of workers for a specified duration.
//
// Each worker executes iterations back to back (with optional pacing) until
// the duration expires. This is a closed model: a slower system under test
// means fewer iterations.
//
// Use cases:
//   - Basic load testing
//   - Determining max throughput for N concurrent users
//   - Simple soak testing
type ConstantVUs struct {
	vuExecutor
}

// NewConstantVUs creates a new constant VUs executor.
func NewConstantVUs() *ConstantVUs {
	return &ConstantVUs{vuExecutor{
		base: base{kind: TypeConstantVUs},
		timeline: func(c *Config) *Timeline {
			return NewTimeline(float64(c.VUs), []Stage{{Duration: c.Duration, Target: float64(c.VUs)}})
		},
	}}
}

// Ensure ConstantVUs implements Executor
var _ Executor = (*ConstantVUs)(nil)
