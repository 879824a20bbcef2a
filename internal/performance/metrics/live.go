package metrics

import (
	"sort"
	"sync"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram bounds in microseconds: 1µs to 1 hour, 3 significant figures.
const (
	histogramMin     = 1
	histogramMax     = 3600000000
	histogramSigFigs = 3
)

// Live keeps approximate running aggregates per metric name, ignoring tags.
//
// Trend values feed HDR histograms, so percentiles are O(1) and safe to
// query once per second while workers are recording. Final results never
// come from here; they are computed from the exact samples in the Sink.
//
// The series map is only write-locked when a metric is seen for the first
// time; each series has its own lock, so workers recording different
// metrics do not contend.
type Live struct {
	mu     sync.RWMutex
	series map[string]*liveSeries
}

type liveSeries struct {
	mu    sync.Mutex
	kind  Kind
	count int64
	sum   float64
	hist  *hdrhistogram.Histogram
}

// LiveStats is an approximate aggregate of one metric.
type LiveStats struct {
	Name  string  `json:"name"`
	Kind  Kind    `json:"-"`
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`

	// Trend only, in the metric's unit (milliseconds for durations).
	Mean float64 `json:"mean,omitempty"`
	P50  float64 `json:"p50,omitempty"`
	P90  float64 `json:"p90,omitempty"`
	P95  float64 `json:"p95,omitempty"`
	P99  float64 `json:"p99,omitempty"`
	Max  float64 `json:"max,omitempty"`
}

// Rate returns the live fraction of true samples for a Rate metric.
func (ls LiveStats) Rate() float64 {
	if ls.Count == 0 {
		return 0
	}
	return ls.Sum / float64(ls.Count)
}

// NewLive creates an empty live view.
func NewLive() *Live {
	return &Live{series: make(map[string]*liveSeries)}
}

func (l *Live) observe(name string, kind Kind, value float64) {
	s := l.lookup(name, kind)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	s.sum += value
	if s.hist != nil {
		us := int64(value * 1000)
		if us < histogramMin {
			us = histogramMin
		}
		if us > histogramMax {
			us = histogramMax
		}
		_ = s.hist.RecordValue(us)
	}
}

// lookup returns the series for name, creating it on first use.
func (l *Live) lookup(name string, kind Kind) *liveSeries {
	l.mu.RLock()
	s, ok := l.series[name]
	l.mu.RUnlock()
	if ok {
		return s
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.series[name]; ok {
		return s
	}
	s = &liveSeries{kind: kind}
	if kind == KindTrend {
		s.hist = hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs)
	}
	l.series[name] = s
	return s
}

// Stats returns the live aggregate for name.
func (l *Live) Stats(name string) (LiveStats, bool) {
	l.mu.RLock()
	s, ok := l.series[name]
	l.mu.RUnlock()

	if !ok {
		return LiveStats{}, false
	}
	return s.stats(name), true
}

// All returns the live aggregates of every metric, sorted by name.
func (l *Live) All() []LiveStats {
	l.mu.RLock()
	names := make([]string, 0, len(l.series))
	series := make([]*liveSeries, 0, len(l.series))
	for name, s := range l.series {
		names = append(names, name)
		series = append(series, s)
	}
	l.mu.RUnlock()

	out := make([]LiveStats, 0, len(series))
	for i, s := range series {
		out = append(out, s.stats(names[i]))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *liveSeries) stats(name string) LiveStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	ls := LiveStats{Name: name, Kind: s.kind, Count: s.count, Sum: s.sum}
	if s.hist == nil || s.hist.TotalCount() == 0 {
		return ls
	}

	ls.Mean = s.sum / float64(s.count)
	ls.P50 = float64(s.hist.ValueAtQuantile(50)) / 1000
	ls.P90 = float64(s.hist.ValueAtQuantile(90)) / 1000
	ls.P95 = float64(s.hist.ValueAtQuantile(95)) / 1000
	ls.P99 = float64(s.hist.ValueAtQuantile(99)) / 1000
	ls.Max = float64(s.hist.Max()) / 1000
	return ls
}
