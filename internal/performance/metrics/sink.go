// Package metrics provides the shared metric sink for load tests.
package metrics

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Kind identifies how a metric's samples are aggregated.
type Kind int

const (
	// KindCounter accumulates a sum.
	KindCounter Kind = iota + 1
	// KindRate tracks the fraction of true samples.
	KindRate
	// KindTrend keeps every sample for distribution statistics.
	KindTrend
)

func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindRate:
		return "rate"
	case KindTrend:
		return "trend"
	default:
		return "unknown"
	}
}

var (
	// ErrNoSamples is returned when an aggregate is requested over zero samples.
	ErrNoSamples = errors.New("metric has no samples")

	// ErrUnknownMetric is returned for queries on a name that was never registered.
	ErrUnknownMetric = errors.New("unknown metric")

	// ErrFrozen is returned when recording into a sink that has been frozen.
	ErrFrozen = errors.New("metric sink is frozen")
)

// KindMismatchError is returned when a metric name is used with two different kinds.
type KindMismatchError struct {
	Name       string
	Registered Kind
	Requested  Kind
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("metric %q is a %s, not a %s", e.Name, e.Registered, e.Requested)
}

// Tags is a set of key/value labels attached to a sample.
type Tags map[string]string

// Matches reports whether every entry in filter is present in t.
func (t Tags) Matches(filter Tags) bool {
	for k, v := range filter {
		if t[k] != v {
			return false
		}
	}
	return true
}

// Sample is a single recorded value.
type Sample struct {
	Value float64
	Tags  Tags
}

// Metric is a named series of samples of a single kind.
type Metric struct {
	Name string
	Kind Kind

	mu      sync.Mutex
	samples []Sample
}

// Len returns the number of recorded samples.
func (m *Metric) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.samples)
}

// values returns a copy of the sample values matching filter.
func (m *Metric) values(filter Tags) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]float64, 0, len(m.samples))
	for _, s := range m.samples {
		if s.Tags.Matches(filter) {
			out = append(out, s.Value)
		}
	}
	return out
}

// Snapshot is an aggregate view of a metric's samples.
type Snapshot struct {
	Name  string  `json:"name"`
	Kind  Kind    `json:"-"`
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`

	// Values holds the filtered sample values in ascending order.
	// Only populated for trends.
	Values []float64 `json:"-"`
}

// Percentile returns the p-th percentile of a Trend snapshot.
func (s Snapshot) Percentile(p float64) (float64, error) {
	if len(s.Values) == 0 {
		return 0, ErrNoSamples
	}
	return percentileSorted(s.Values, p)
}

// Rate returns trues/total for a Rate snapshot.
func (s Snapshot) Rate() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

// Sink collects samples from every worker of a test run.
//
// Writes are safe for concurrent use and never lose samples. Queries copy
// the samples they aggregate, so they never disturb stored data and can be
// repeated with identical results.
type Sink struct {
	mu      sync.RWMutex
	metrics map[string]*Metric
	frozen  atomic.Bool
	live    *Live
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{
		metrics: make(map[string]*Metric),
		live:    NewLive(),
	}
}

// Register declares a metric. Registering an existing name with the same
// kind returns the existing metric.
func (s *Sink) Register(name string, kind Kind) (*Metric, error) {
	if name == "" {
		return nil, errors.New("metric name is required")
	}
	if kind < KindCounter || kind > KindTrend {
		return nil, fmt.Errorf("metric %q: invalid kind %d", name, kind)
	}

	s.mu.RLock()
	m, ok := s.metrics[name]
	s.mu.RUnlock()
	if !ok {
		s.mu.Lock()
		if m, ok = s.metrics[name]; !ok {
			m = &Metric{Name: name, Kind: kind}
			s.metrics[name] = m
		}
		s.mu.Unlock()
	}

	if m.Kind != kind {
		return nil, &KindMismatchError{Name: name, Registered: m.Kind, Requested: kind}
	}
	return m, nil
}

// Record appends a sample, registering the metric on first use.
// Rate samples must be 0 or 1.
func (s *Sink) Record(name string, kind Kind, value float64, tags Tags) error {
	if s.frozen.Load() {
		return ErrFrozen
	}
	m, err := s.Register(name, kind)
	if err != nil {
		return err
	}
	if kind == KindRate && value != 0 && value != 1 {
		return fmt.Errorf("metric %q: rate sample must be 0 or 1, got %v", name, value)
	}

	sample := Sample{Value: value, Tags: maps.Clone(tags)}
	m.mu.Lock()
	m.samples = append(m.samples, sample)
	m.mu.Unlock()

	s.live.observe(name, kind, value)
	return nil
}

// Add records a Counter increment.
func (s *Sink) Add(name string, delta float64, tags Tags) error {
	return s.Record(name, KindCounter, delta, tags)
}

// Mark records a Rate sample.
func (s *Sink) Mark(name string, ok bool, tags Tags) error {
	v := 0.0
	if ok {
		v = 1
	}
	return s.Record(name, KindRate, v, tags)
}

// Observe records a duration into a Trend, in milliseconds.
func (s *Sink) Observe(name string, d time.Duration, tags Tags) error {
	return s.Record(name, KindTrend, float64(d)/float64(time.Millisecond), tags)
}

// Freeze rejects further writes. Used once all scenarios have finished.
func (s *Sink) Freeze() {
	s.frozen.Store(true)
}

// Lookup returns a registered metric.
func (s *Sink) Lookup(name string) (*Metric, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.metrics[name]
	return m, ok
}

// Names returns the registered metric names in sorted order.
func (s *Sink) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.metrics))
	for name := range s.metrics {
		names = append(names, name)
	}
	s.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Live returns the approximate, low-cost view used for progress output.
func (s *Sink) Live() *Live {
	return s.live
}

// Snapshot aggregates the samples of name whose tags match filter.
func (s *Sink) Snapshot(name string, filter Tags) (Snapshot, error) {
	m, ok := s.Lookup(name)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}

	values := m.values(filter)
	snap := Snapshot{Name: name, Kind: m.Kind, Count: len(values)}
	if len(values) == 0 {
		return snap, fmt.Errorf("%s: %w", name, ErrNoSamples)
	}

	snap.Min, snap.Max = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		snap.Sum += v
		snap.Min = math.Min(snap.Min, v)
		snap.Max = math.Max(snap.Max, v)
	}
	snap.Avg = snap.Sum / float64(len(values))

	if m.Kind == KindTrend {
		sort.Float64s(values)
		snap.Values = values
	}
	return snap, nil
}

// Percentile returns the p-th percentile (0..100) of a Trend.
func (s *Sink) Percentile(name string, p float64, filter Tags) (float64, error) {
	snap, err := s.Snapshot(name, filter)
	if err != nil {
		return 0, err
	}
	if snap.Kind != KindTrend {
		return 0, &KindMismatchError{Name: name, Registered: snap.Kind, Requested: KindTrend}
	}
	return snap.Percentile(p)
}

// Rate returns the fraction of true samples of a Rate metric.
func (s *Sink) Rate(name string, filter Tags) (float64, error) {
	snap, err := s.Snapshot(name, filter)
	if err != nil {
		return 0, err
	}
	if snap.Kind != KindRate {
		return 0, &KindMismatchError{Name: name, Registered: snap.Kind, Requested: KindRate}
	}
	return snap.Rate(), nil
}

// percentileSorted interpolates linearly between the closest ranks of an
// ascending slice.
func percentileSorted(sorted []float64, p float64) (float64, error) {
	if p < 0 || p > 100 || math.IsNaN(p) {
		return 0, fmt.Errorf("percentile %v out of range [0, 100]", p)
	}
	if len(sorted) == 1 {
		return sorted[0], nil
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo], nil
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac, nil
}
