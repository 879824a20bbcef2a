package executor

import (
	"testing"
	"time"
)

func TestTimeline_ValueAt(t *testing.T) {
	tl := NewTimeline(0, []Stage{
		{Duration: 10 * time.Second, Target: 10},
		{Duration: 10 * time.Second, Target: 10},
		{Duration: 5 * time.Second, Target: 0},
	})

	tests := []struct {
		elapsed time.Duration
		want    float64
	}{
		{-time.Second, 0},
		{0, 0},
		{5 * time.Second, 5},
		{10 * time.Second, 10},
		{15 * time.Second, 10},
		{22500 * time.Millisecond, 5},
		{25 * time.Second, 0},
		{time.Hour, 0},
	}

	for _, tt := range tests {
		if got := tl.ValueAt(tt.elapsed); got != tt.want {
			t.Errorf("ValueAt(%v) = %v, want %v", tt.elapsed, got, tt.want)
		}
	}
}

func TestTimeline_StartValue(t *testing.T) {
	tl := NewTimeline(20, []Stage{{Duration: 10 * time.Second, Target: 0}})

	if got := tl.ValueAt(0); got != 20 {
		t.Errorf("ValueAt(0) = %v, want 20", got)
	}
	if got := tl.ValueAt(5 * time.Second); got != 10 {
		t.Errorf("ValueAt(5s) = %v, want 10", got)
	}
}

func TestTimeline_ZeroDurationStageJumps(t *testing.T) {
	tl := NewTimeline(0, []Stage{
		{Duration: 10 * time.Second, Target: 10},
		{Duration: 0, Target: 50},
		{Duration: 10 * time.Second, Target: 50},
	})

	if got := tl.ValueAt(9 * time.Second); got != 9 {
		t.Errorf("ValueAt(9s) = %v, want 9", got)
	}
	if got := tl.ValueAt(10 * time.Second); got != 50 {
		t.Errorf("ValueAt(10s) = %v, want 50 (zero-duration stage jumps)", got)
	}
	if got := tl.StageAt(10 * time.Second); got != 2 {
		t.Errorf("StageAt(10s) = %d, want 2", got)
	}
}

func TestTimeline_StageAt(t *testing.T) {
	tl := NewTimeline(0, []Stage{
		{Duration: time.Second, Target: 1},
		{Duration: time.Second, Target: 2},
	})

	tests := []struct {
		elapsed time.Duration
		want    int
	}{
		{0, 0},
		{999 * time.Millisecond, 0},
		{time.Second, 1},
		{2 * time.Second, 2},
	}
	for _, tt := range tests {
		if got := tl.StageAt(tt.elapsed); got != tt.want {
			t.Errorf("StageAt(%v) = %d, want %d", tt.elapsed, got, tt.want)
		}
	}
	if tl.Duration() != 2*time.Second {
		t.Errorf("Duration() = %v, want 2s", tl.Duration())
	}
}
