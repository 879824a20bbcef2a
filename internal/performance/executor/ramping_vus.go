package executor

// RampingVUs ramps the worker count up and down according to stages.
//
// The target is linearly interpolated between stages and re-sampled every
// reconcile tick, so the live count never strays more than one worker from
// the profile. When the target falls, the newest workers are asked to stop
// and get GracefulRampDown to finish their iteration before they are
// force-stopped.
//
// Example stages:
//
//	startVUs: 0
//	stages:
//	  - duration: 30s
//	    target: 10     # Ramp from 0 to 10 workers over 30s
//	  - duration: 2m
//	    target: 10     # Stay at 10 workers for 2 minutes
//	  - duration: 30s
//	    target: 0      # Ramp down to 0 workers over 30s
type RampingVUs struct {
	vuExecutor
}

// NewRampingVUs creates a new ramping VUs executor.
func NewRampingVUs() *RampingVUs {
	return &RampingVUs{vuExecutor{
		base: base{kind: TypeRampingVUs},
		timeline: func(c *Config) *Timeline {
			return NewTimeline(float64(c.StartVUs), c.Stages)
		},
	}}
}

// Ensure RampingVUs implements Executor
var _ Executor = (*RampingVUs)(nil)
