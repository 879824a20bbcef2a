package executor

import "time"

// Timeline is a piecewise-linear profile over a scenario's local clock.
//
// Each stage moves linearly from the previous stage's target (or the
// initial value for the first stage) to its own target. A stage of zero
// duration jumps immediately; past the last stage the final target holds.
type Timeline struct {
	start  float64
	stages []Stage
}

// NewTimeline creates a timeline starting at start.
func NewTimeline(start float64, stages []Stage) *Timeline {
	return &Timeline{start: start, stages: stages}
}

// Duration returns the total length of all stages.
func (t *Timeline) Duration() time.Duration {
	var total time.Duration
	for _, s := range t.stages {
		total += s.Duration
	}
	return total
}

// ValueAt returns the interpolated target at elapsed.
func (t *Timeline) ValueAt(elapsed time.Duration) float64 {
	v, _ := t.at(elapsed)
	return v
}

// StageAt returns the index of the stage active at elapsed. Past the end
// it returns len(stages).
func (t *Timeline) StageAt(elapsed time.Duration) int {
	_, i := t.at(elapsed)
	return i
}

func (t *Timeline) at(elapsed time.Duration) (float64, int) {
	if elapsed < 0 {
		elapsed = 0
	}

	prev := t.start
	var stageStart time.Duration
	for i, stage := range t.stages {
		stageEnd := stageStart + stage.Duration
		if elapsed < stageEnd {
			progress := float64(elapsed-stageStart) / float64(stage.Duration)
			return prev + (stage.Target-prev)*progress, i
		}
		prev = stage.Target
		stageStart = stageEnd
	}
	return prev, len(t.stages)
}
