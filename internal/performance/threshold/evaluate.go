package threshold

import (
	"errors"
	"fmt"
	"time"

	"github.com/wesleyorama2/tradeload/internal/performance/metrics"
)

// ErrIncompatible is returned when an aggregator does not apply to the
// metric's kind, e.g. p(95) on a Rate.
var ErrIncompatible = errors.New("aggregator not supported for metric kind")

// ConfigError marks a threshold that could not be evaluated because it is
// misconfigured: unknown metric, no samples, or a kind/aggregator mismatch.
type ConfigError struct {
	Selector   string
	Expression string
	Err        error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("threshold %s %s: %v", e.Selector, e.Expression, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one expression.
type Result struct {
	Selector   string   `json:"selector"`
	Metric     string   `json:"metric"`
	Expression string   `json:"expression"`
	Operator   Operator `json:"operator"`
	Observed   float64  `json:"observed"`
	Required   float64  `json:"required"`
	Passed     bool     `json:"passed"`

	// Err is set when the expression could not be evaluated; such a result
	// never passes.
	Err error `json:"-"`
}

// Report is the outcome of all thresholds.
type Report struct {
	Results      []Result `json:"results"`
	Passed       bool     `json:"passed"`
	Failed       int      `json:"failed"`
	ConfigErrors int      `json:"configErrors"`
}

// Errors returns the configuration errors of the report.
func (r *Report) Errors() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

// Evaluate judges every threshold against sink. runDuration is the length
// of the run, used by count-per-second rates on counters. The sink should
// be frozen.
func Evaluate(sink *metrics.Sink, thresholds []*Threshold, runDuration time.Duration) *Report {
	report := &Report{Passed: true}
	for _, th := range thresholds {
		for _, expr := range th.Expressions {
			res := evaluate(sink, th.Selector, expr, runDuration)
			switch {
			case res.Err != nil:
				report.ConfigErrors++
				report.Passed = false
			case !res.Passed:
				report.Failed++
				report.Passed = false
			}
			report.Results = append(report.Results, res)
		}
	}
	return report
}

func evaluate(sink *metrics.Sink, sel Selector, expr Expression, runDuration time.Duration) Result {
	res := Result{
		Selector:   sel.Source,
		Metric:     sel.Metric,
		Expression: expr.Source,
		Operator:   expr.Operator,
		Required:   expr.Value,
	}

	observed, err := Aggregate(sink, sel, expr, runDuration)
	if err != nil {
		res.Err = &ConfigError{Selector: sel.Source, Expression: expr.Source, Err: err}
		return res
	}
	res.Observed = observed
	res.Passed = expr.Operator.Compare(observed, expr.Value)
	return res
}

// Aggregate computes the value an expression compares against.
func Aggregate(sink *metrics.Sink, sel Selector, expr Expression, runDuration time.Duration) (float64, error) {
	snap, err := sink.Snapshot(sel.Metric, sel.Tags)
	if err != nil {
		return 0, err
	}

	switch snap.Kind {
	case metrics.KindTrend:
		switch expr.Aggregator {
		case AggAvg, AggValue:
			return snap.Avg, nil
		case AggMin:
			return snap.Min, nil
		case AggMax:
			return snap.Max, nil
		case AggMed:
			return snap.Percentile(50)
		case AggPercentile:
			return snap.Percentile(expr.Percentile)
		case AggCount:
			return float64(snap.Count), nil
		}

	case metrics.KindRate:
		if expr.Aggregator == AggRate {
			return snap.Rate(), nil
		}

	case metrics.KindCounter:
		switch expr.Aggregator {
		case AggCount:
			return snap.Sum, nil
		case AggRate:
			if runDuration <= 0 {
				return 0, errors.New("counter rate needs a positive run duration")
			}
			return snap.Sum / runDuration.Seconds(), nil
		}
	}

	return 0, fmt.Errorf("%w: %s on %s", ErrIncompatible, expr.Label(), snap.Kind)
}
