package config

import (
	"fmt"
	"time"

	"github.com/wesleyorama2/tradeload/internal/performance"
	"github.com/wesleyorama2/tradeload/internal/performance/executor"
)

// ExecutorConfig converts a ScenarioConfig to an executor.Config.
//
// Duration strings are parsed here; a malformed one is returned as a
// *ValidationError naming the field. The result is not validated.
func (sc *ScenarioConfig) ExecutorConfig(name string) (*executor.Config, error) {
	cfg := &executor.Config{
		Name:            name,
		Type:            executor.Type(sc.Executor),
		VUs:             sc.VUs,
		StartVUs:        sc.StartVUs,
		Rate:            sc.Rate,
		StartRate:       sc.StartRate,
		PreAllocatedVUs: sc.PreAllocatedVUs,
		MaxVUs:          sc.MaxVUs,
	}

	var err error
	parse := func(dst *time.Duration, field, value string) {
		if err != nil {
			return
		}
		d, perr := ParseDurationString(value)
		if perr != nil {
			err = &ValidationError{Field: field, Message: perr.Error()}
			return
		}
		*dst = d
	}

	parse(&cfg.Duration, "duration", sc.Duration)
	parse(&cfg.TimeUnit, "timeUnit", sc.TimeUnit)
	parse(&cfg.StartTime, "startTime", sc.StartTime)
	parse(&cfg.GracefulStop, "gracefulStop", sc.GracefulStop)
	parse(&cfg.GracefulRampDown, "gracefulRampDown", sc.GracefulRampDown)

	for i, stage := range sc.Stages {
		st := executor.Stage{Target: stage.Target, Name: stage.Name}
		parse(&st.Duration, fmt.Sprintf("stages[%d].duration", i), stage.Duration)
		cfg.Stages = append(cfg.Stages, st)
	}

	if sc.Pacing != nil {
		p := &performance.Pacing{Type: performance.PacingType(sc.Pacing.Type)}
		parse(&p.Duration, "pacing.duration", sc.Pacing.Duration)
		parse(&p.Min, "pacing.min", sc.Pacing.Min)
		parse(&p.Max, "pacing.max", sc.Pacing.Max)
		cfg.Pacing = p
	}

	if err != nil {
		return nil, err
	}
	return cfg, nil
}
