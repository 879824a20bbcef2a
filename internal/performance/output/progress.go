package output

import (
	"strings"
	"time"

	"github.com/wesleyorama2/tradeload/internal/performance"
	"github.com/wesleyorama2/tradeload/internal/performance/engine"
	"github.com/wesleyorama2/tradeload/internal/performance/metrics"
)

// Source is the live view of a run; *engine.Engine implements it.
type Source interface {
	Status() []engine.ScenarioStatus
	Elapsed() time.Duration
	MaxDuration() time.Duration
	Sink() *metrics.Sink
}

// Progress is one snapshot of a running test, aggregated over scenarios.
type Progress struct {
	Fraction float64
	Elapsed  time.Duration
	Total    time.Duration

	ActiveVUs  int
	Iterations int64
	Dropped    int64

	// Requests and FailRate cover every instrumented transporter.
	Requests int64
	FailRate float64

	// IterationP95 is approximate, in milliseconds.
	IterationP95 float64
}

// ProgressFrom builds a snapshot from src. Metric aggregates come from the
// sink's live histograms, so they are cheap and approximate.
func ProgressFrom(src Source) Progress {
	p := Progress{
		Elapsed: src.Elapsed(),
		Total:   src.MaxDuration(),
	}
	if p.Total > 0 {
		p.Fraction = float64(p.Elapsed) / float64(p.Total)
		if p.Fraction > 1 {
			p.Fraction = 1
		}
	}

	for _, s := range src.Status() {
		if s.Stats == nil {
			continue
		}
		p.ActiveVUs += s.Stats.ActiveVUs
		p.Iterations += s.Stats.Iterations
		p.Dropped += s.Stats.Dropped
	}

	var failed, outcomes float64
	for _, ls := range src.Sink().Live().All() {
		switch {
		case strings.HasSuffix(ls.Name, "_reqs"):
			p.Requests += int64(ls.Sum)
		case strings.HasSuffix(ls.Name, "_req_failed"):
			failed += ls.Sum
			outcomes += float64(ls.Count)
		case ls.Name == performance.MetricIterationDuration:
			p.IterationP95 = ls.P95
		}
	}
	if outcomes > 0 {
		p.FailRate = failed / outcomes
	}
	return p
}
