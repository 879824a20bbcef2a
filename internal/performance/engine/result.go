package engine

import (
	"time"

	"github.com/wesleyorama2/tradeload/internal/performance/metrics"
	"github.com/wesleyorama2/tradeload/internal/performance/threshold"
)

// TestResult contains the results of a complete run.
type TestResult struct {
	Name       string                     `json:"name"`
	StartTime  time.Time                  `json:"startTime"`
	EndTime    time.Time                  `json:"endTime"`
	Duration   time.Duration              `json:"duration"`
	Scenarios  map[string]*ScenarioResult `json:"scenarios"`
	Metrics    []MetricSummary            `json:"metrics"`
	Thresholds *threshold.Report          `json:"thresholds,omitempty"`
	Passed     bool                       `json:"passed"`

	// Aborted is set when the run context was cancelled before every
	// scenario finished on its own.
	Aborted bool   `json:"aborted"`
	Error   string `json:"error,omitempty"`
}

// ScenarioResult contains the results of a single scenario.
type ScenarioResult struct {
	Name       string        `json:"name"`
	Executor   string        `json:"executor"`
	StartTime  time.Time     `json:"startTime"`
	Duration   time.Duration `json:"duration"`
	Iterations int64         `json:"iterations"`
	Dropped    int64         `json:"droppedIterations"`
	MaxVUs     int           `json:"maxVUs"`
	Skipped    bool          `json:"skipped,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// MetricSummary is the end-of-run aggregate of one metric.
type MetricSummary struct {
	Name  string  `json:"name"`
	Kind  string  `json:"kind"`
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`

	// Trend only.
	Med float64 `json:"med,omitempty"`
	P90 float64 `json:"p90,omitempty"`
	P95 float64 `json:"p95,omitempty"`
	P99 float64 `json:"p99,omitempty"`

	// Rate only: fraction of true samples.
	Rate float64 `json:"rate,omitempty"`
}

// Summarize aggregates every metric of sink that has at least one sample,
// ordered by name.
func Summarize(sink *metrics.Sink) []MetricSummary {
	var out []MetricSummary
	for _, name := range sink.Names() {
		snap, err := sink.Snapshot(name, nil)
		if err != nil {
			// Registered but never recorded.
			continue
		}

		s := MetricSummary{
			Name:  snap.Name,
			Kind:  snap.Kind.String(),
			Count: snap.Count,
			Sum:   snap.Sum,
			Min:   snap.Min,
			Max:   snap.Max,
			Avg:   snap.Avg,
		}
		switch snap.Kind {
		case metrics.KindTrend:
			s.Med, _ = snap.Percentile(50)
			s.P90, _ = snap.Percentile(90)
			s.P95, _ = snap.Percentile(95)
			s.P99, _ = snap.Percentile(99)
		case metrics.KindRate:
			s.Rate = snap.Rate()
		}
		out = append(out, s)
	}
	return out
}
