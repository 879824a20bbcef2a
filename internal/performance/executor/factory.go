package executor

import (
	"context"
	"fmt"
	"strings"
)

// NewExecutor creates a new executor of the specified type.
//
// Supported types:
//   - "constant-vus" - Fixed number of workers for a duration
//   - "ramping-vus" - Worker count ramps up/down according to stages
//   - "constant-arrival-rate" - Fixed iteration rate (open model)
//   - "ramping-arrival-rate" - Iteration rate ramps up/down
//
// Returns an uninitialized executor. Call Init() before Run().
func NewExecutor(executorType Type) (Executor, error) {
	switch executorType {
	case TypeConstantVUs:
		return NewConstantVUs(), nil
	case TypeRampingVUs:
		return NewRampingVUs(), nil
	case TypeConstantArrivalRate:
		return NewConstantArrivalRate(), nil
	case TypeRampingArrivalRate:
		return NewRampingArrivalRate(), nil
	default:
		return nil, fmt.Errorf("unknown executor type: %s (supported: %s)", executorType, supportedList())
	}
}

// CreateAndInitExecutor creates and initializes an executor with the given config.
func CreateAndInitExecutor(ctx context.Context, cfg *Config) (Executor, error) {
	exec, err := NewExecutor(cfg.Type)
	if err != nil {
		return nil, err
	}

	if err := exec.Init(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize executor: %w", err)
	}

	return exec, nil
}

// IsValidExecutorType returns true if the type is a valid executor type.
func IsValidExecutorType(executorType string) bool {
	switch Type(executorType) {
	case TypeConstantVUs, TypeRampingVUs, TypeConstantArrivalRate, TypeRampingArrivalRate:
		return true
	default:
		return false
	}
}

// GetSupportedExecutors returns a list of all supported executor types.
func GetSupportedExecutors() []Type {
	return []Type{
		TypeConstantVUs,
		TypeRampingVUs,
		TypeConstantArrivalRate,
		TypeRampingArrivalRate,
	}
}

func supportedList() string {
	names := make([]string, 0, 4)
	for _, t := range GetSupportedExecutors() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

// CalculateMaxVUs returns the maximum number of workers the scenario might use.
//
// For VU-based executors, this is the VU count or the max stage target.
// For arrival-rate executors, this is the pool size.
func CalculateMaxVUs(cfg *Config) int {
	switch cfg.Type {
	case TypeConstantVUs:
		return cfg.VUs
	case TypeRampingVUs:
		maxVUs := float64(cfg.StartVUs)
		for _, stage := range cfg.Stages {
			if stage.Target > maxVUs {
				maxVUs = stage.Target
			}
		}
		return int(maxVUs + 0.5)
	case TypeConstantArrivalRate, TypeRampingArrivalRate:
		return cfg.PoolSize()
	default:
		return cfg.VUs
	}
}
