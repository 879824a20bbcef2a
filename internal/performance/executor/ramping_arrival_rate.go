package executor

import "github.com/wesleyorama2/tradeload/internal/performance/rate"

// RampingArrivalRate ramps the iteration rate up and down according to
// stages. It behaves like ConstantArrivalRate except that the rate follows
// the stage timeline, starting from StartRate.
//
// Example stages:
//
//	startRate: 10
//	timeUnit: 1s
//	stages:
//	  - duration: 1m
//	    target: 100    # 10 -> 100 iterations/s over 1 minute
//	  - duration: 5m
//	    target: 100    # hold
//	  - duration: 1m
//	    target: 0      # ramp down
type RampingArrivalRate struct {
	arrivalExecutor
}

// NewRampingArrivalRate creates a new ramping arrival rate executor.
func NewRampingArrivalRate() *RampingArrivalRate {
	return &RampingArrivalRate{arrivalExecutor{
		base: base{kind: TypeRampingArrivalRate},
		schedule: func(c *Config) (*rate.Schedule, error) {
			segments := make([]rate.Segment, len(c.Stages))
			for i, s := range c.Stages {
				segments[i] = rate.Segment{Duration: s.Duration, Target: s.Target}
			}
			return rate.NewRamping(c.StartRate, c.timeUnit(), segments)
		},
		timeline: func(c *Config) *Timeline {
			return NewTimeline(c.StartRate, c.Stages)
		},
	}}
}

// Ensure RampingArrivalRate implements Executor
var _ Executor = (*RampingArrivalRate)(nil)
