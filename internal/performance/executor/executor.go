// Package executor provides the load generation strategies of a scenario.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/wesleyorama2/tradeload/internal/performance"
)

// Type identifies the type of executor.
type Type string

const (
	// TypeConstantVUs runs a fixed number of workers for a duration.
	TypeConstantVUs Type = "constant-vus"

	// TypeRampingVUs ramps the worker count up and down according to stages.
	TypeRampingVUs Type = "ramping-vus"

	// TypeConstantArrivalRate starts iterations at a fixed rate.
	TypeConstantArrivalRate Type = "constant-arrival-rate"

	// TypeRampingArrivalRate ramps the iteration rate up and down according to stages.
	TypeRampingArrivalRate Type = "ramping-arrival-rate"
)

// Grace windows used by configuration files that do not set one. A Config
// takes its grace windows as given: zero force-stops immediately.
const (
	DefaultGracefulStop     = 30 * time.Second
	DefaultGracefulRampDown = 30 * time.Second
)

// DefaultTimeUnit applies when Config.TimeUnit is zero.
const DefaultTimeUnit = time.Second

// Executor defines the interface for load generation strategies.
//
// Executors control HOW load is generated: either by holding a population
// of workers (closed model) or by starting iterations on a schedule (open
// model). Every worker they use comes from the scenario's Scheduler.
type Executor interface {
	// Type returns the executor type.
	Type() Type

	// Init validates and stores the configuration. Called once before Run().
	Init(ctx context.Context, config *Config) error

	// Run drives the scenario and blocks until every worker has stopped.
	// Cancelling ctx ends the scenario early with the usual graceful stop.
	Run(ctx context.Context, scheduler *performance.Scheduler) error

	// GetProgress returns current progress (0.0 to 1.0).
	GetProgress() float64

	// GetActiveVUs returns the number of live or busy workers.
	GetActiveVUs() int

	// GetStats returns executor statistics.
	GetStats() *Stats

	// Stop ends a running scenario early.
	Stop(ctx context.Context) error
}

// Config contains configuration for an executor.
type Config struct {
	// Name is the name of the scenario
	Name string `json:"name" yaml:"name"`

	// Type is the executor type
	Type Type `json:"type" yaml:"type"`

	// VU-based executors
	VUs      int           `json:"vus,omitempty" yaml:"vus,omitempty"`
	StartVUs int           `json:"startVUs,omitempty" yaml:"startVUs,omitempty"`
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Arrival-rate executors. Rates are iterations per TimeUnit.
	Rate            float64       `json:"rate,omitempty" yaml:"rate,omitempty"`
	StartRate       float64       `json:"startRate,omitempty" yaml:"startRate,omitempty"`
	TimeUnit        time.Duration `json:"timeUnit,omitempty" yaml:"timeUnit,omitempty"`
	PreAllocatedVUs int           `json:"preAllocatedVUs,omitempty" yaml:"preAllocatedVUs,omitempty"`
	MaxVUs          int           `json:"maxVUs,omitempty" yaml:"maxVUs,omitempty"`

	// Stages (for ramping executors)
	Stages []Stage `json:"stages,omitempty" yaml:"stages,omitempty"`

	// StartTime delays the scenario relative to the start of the test
	StartTime time.Duration `json:"startTime,omitempty" yaml:"startTime,omitempty"`

	// GracefulStop bounds how long in-flight iterations may run after the scenario ends
	GracefulStop time.Duration `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`

	// GracefulRampDown bounds how long a worker removed by a falling target may finish its iteration
	GracefulRampDown time.Duration `json:"gracefulRampDown,omitempty" yaml:"gracefulRampDown,omitempty"`

	// Pacing between iterations of VU-based executors
	Pacing *performance.Pacing `json:"pacing,omitempty" yaml:"pacing,omitempty"`
}

// Stage defines a stage in ramping executors.
type Stage struct {
	// Duration of this stage
	Duration time.Duration `json:"duration" yaml:"duration"`

	// Target worker count (ramping-vus) or rate (ramping-arrival-rate) reached at stage end
	Target float64 `json:"target" yaml:"target"`

	// Optional name for this stage (for reporting)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Stats contains real-time executor statistics.
type Stats struct {
	// Timing
	StartTime     time.Time     `json:"startTime"`
	CurrentTime   time.Time     `json:"currentTime"`
	Elapsed       time.Duration `json:"elapsed"`
	TotalDuration time.Duration `json:"totalDuration"`

	// VU stats
	ActiveVUs   int `json:"activeVUs"`
	DrainingVUs int `json:"drainingVUs"`
	TargetVUs   int `json:"targetVUs"`
	MaxVUs      int `json:"maxVUs,omitempty"`

	// Iteration stats
	Iterations int64 `json:"iterations"`
	Dropped    int64 `json:"dropped"`

	// Stage info (for ramping executors)
	CurrentStage     int    `json:"currentStage"`
	CurrentStageName string `json:"currentStageName"`
	TotalStages      int    `json:"totalStages"`

	// Rate info (for arrival-rate executors), in iterations per second
	CurrentRate float64 `json:"currentRate"`
	TargetRate  float64 `json:"targetRate"`
}

// Validate validates the executor configuration.
func (c *Config) Validate() error {
	if c.Type == "" {
		return &ValidationError{Field: "type", Message: "executor type is required"}
	}

	for _, d := range []struct {
		field string
		value time.Duration
	}{
		{"duration", c.Duration},
		{"startTime", c.StartTime},
		{"gracefulStop", c.GracefulStop},
		{"gracefulRampDown", c.GracefulRampDown},
		{"timeUnit", c.TimeUnit},
	} {
		if d.value < 0 {
			return &ValidationError{Field: d.field, Message: "must be >= 0"}
		}
	}
	for i, stage := range c.Stages {
		if stage.Duration < 0 {
			return &ValidationError{Field: fmt.Sprintf("stages[%d].duration", i), Message: "must be >= 0"}
		}
		if stage.Target < 0 {
			return &ValidationError{Field: fmt.Sprintf("stages[%d].target", i), Message: "must be >= 0"}
		}
	}
	if c.Pacing != nil {
		if err := c.Pacing.Validate(); err != nil {
			return &ValidationError{Field: "pacing", Message: err.Error()}
		}
	}

	switch c.Type {
	case TypeConstantVUs:
		if c.VUs <= 0 {
			return &ValidationError{Field: "vus", Message: "vus must be > 0"}
		}
		if c.Duration <= 0 {
			return &ValidationError{Field: "duration", Message: "duration must be > 0"}
		}

	case TypeRampingVUs:
		if len(c.Stages) == 0 {
			return &ValidationError{Field: "stages", Message: "at least one stage is required"}
		}
		if c.StartVUs < 0 {
			return &ValidationError{Field: "startVUs", Message: "startVUs must be >= 0"}
		}

	case TypeConstantArrivalRate:
		if c.Rate <= 0 {
			return &ValidationError{Field: "rate", Message: "rate must be > 0"}
		}
		if c.Duration <= 0 {
			return &ValidationError{Field: "duration", Message: "duration must be > 0"}
		}
		return c.validatePool()

	case TypeRampingArrivalRate:
		if len(c.Stages) == 0 {
			return &ValidationError{Field: "stages", Message: "at least one stage is required"}
		}
		if c.StartRate < 0 {
			return &ValidationError{Field: "startRate", Message: "startRate must be >= 0"}
		}
		return c.validatePool()

	default:
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown executor type: %s (supported: %s)", c.Type, supportedList())}
	}

	return nil
}

func (c *Config) validatePool() error {
	if c.PreAllocatedVUs < 0 {
		return &ValidationError{Field: "preAllocatedVUs", Message: "preAllocatedVUs must be >= 0"}
	}
	if c.MaxVUs <= 0 && c.PreAllocatedVUs <= 0 {
		return &ValidationError{Field: "maxVUs", Message: "maxVUs or preAllocatedVUs must be > 0"}
	}
	if c.MaxVUs > 0 && c.PreAllocatedVUs > c.MaxVUs {
		return &ValidationError{Field: "preAllocatedVUs", Message: "preAllocatedVUs must be <= maxVUs"}
	}
	return nil
}

// TotalDuration calculates the scheduled duration of the scenario, excluding
// StartTime and graceful stop windows.
func (c *Config) TotalDuration() time.Duration {
	switch c.Type {
	case TypeConstantVUs, TypeConstantArrivalRate:
		return c.Duration

	case TypeRampingVUs, TypeRampingArrivalRate:
		var total time.Duration
		for _, stage := range c.Stages {
			total += stage.Duration
		}
		return total

	default:
		return 0
	}
}

// MaxDuration is the longest the scenario can take from its start time,
// including the graceful stop window.
func (c *Config) MaxDuration() time.Duration {
	return c.StartTime + c.TotalDuration() + c.GracefulStop
}

// PoolSize returns the upper bound on workers an arrival-rate scenario may use.
func (c *Config) PoolSize() int {
	if c.MaxVUs > 0 {
		return c.MaxVUs
	}
	return c.PreAllocatedVUs
}

func (c *Config) timeUnit() time.Duration {
	if c.TimeUnit > 0 {
		return c.TimeUnit
	}
	return DefaultTimeUnit
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation error on field '" + e.Field + "': " + e.Message
}
