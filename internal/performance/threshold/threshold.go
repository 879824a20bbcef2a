// Package threshold parses threshold declarations and judges them against
// the final state of a metric sink.
//
// A threshold binds a selector, a metric name with an optional tag filter
// such as
//
//	http_req_duration{operation:db_read,scenario:reads}
//
// to one or more expressions of the form <aggregator><op><number>:
//
//	p(95)<500   avg<=200   rate>0.9   count<100
package threshold

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/wesleyorama2/tradeload/internal/performance/metrics"
)

// Aggregator reduces a metric's samples to one number.
type Aggregator string

const (
	AggAvg        Aggregator = "avg"
	AggMin        Aggregator = "min"
	AggMax        Aggregator = "max"
	AggMed        Aggregator = "med"
	AggValue      Aggregator = "value"
	AggCount      Aggregator = "count"
	AggRate       Aggregator = "rate"
	AggPercentile Aggregator = "p"
)

// Operator compares the aggregate with the required value.
type Operator string

const (
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
)

// Compare reports whether observed op required holds.
func (o Operator) Compare(observed, required float64) bool {
	switch o {
	case OpLess:
		return observed < required
	case OpLessEqual:
		return observed <= required
	case OpGreater:
		return observed > required
	case OpGreaterEqual:
		return observed >= required
	case OpEqual:
		return observed == required
	case OpNotEqual:
		return observed != required
	default:
		return false
	}
}

// ErrSyntax is wrapped by every parse error.
var ErrSyntax = errors.New("invalid threshold")

// Expression is one parsed comparison.
type Expression struct {
	Source     string     `json:"source"`
	Aggregator Aggregator `json:"aggregator"`
	Percentile float64    `json:"percentile,omitempty"`
	Operator   Operator   `json:"operator"`
	Value      float64    `json:"value"`
}

// Label renders the aggregator as written, e.g. "p(95)".
func (e Expression) Label() string {
	if e.Aggregator == AggPercentile {
		return "p(" + strconv.FormatFloat(e.Percentile, 'f', -1, 64) + ")"
	}
	return string(e.Aggregator)
}

// Selector names a metric and an optional tag filter.
type Selector struct {
	Source string       `json:"source"`
	Metric string       `json:"metric"`
	Tags   metrics.Tags `json:"tags,omitempty"`
}

// Threshold is a selector with its expressions.
type Threshold struct {
	Selector    Selector     `json:"selector"`
	Expressions []Expression `json:"expressions"`
}

var (
	selectorRe   = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_.\-]*)\s*(?:\{(.*)\})?\s*$`)
	expressionRe = regexp.MustCompile(`^\s*(avg|min|max|med|value|count|rate|p\(\s*([0-9]+(?:\.[0-9]+)?)\s*\))\s*(<=|>=|==|!=|<|>)\s*([-+]?[0-9]*\.?[0-9]+(?:[eE][-+]?[0-9]+)?)\s*$`)
)

// ParseSelector parses "name" or "name{tag:value,...}".
func ParseSelector(s string) (Selector, error) {
	m := selectorRe.FindStringSubmatch(s)
	if m == nil {
		return Selector{}, fmt.Errorf("%w selector %q", ErrSyntax, s)
	}

	sel := Selector{Source: strings.TrimSpace(s), Metric: m[1]}
	body := strings.TrimSpace(m[2])
	if body == "" {
		if strings.Contains(s, "{") {
			return Selector{}, fmt.Errorf("%w selector %q: empty tag filter", ErrSyntax, s)
		}
		return sel, nil
	}

	sel.Tags = metrics.Tags{}
	for _, pair := range strings.Split(body, ",") {
		key, value, ok := strings.Cut(pair, ":")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			return Selector{}, fmt.Errorf("%w selector %q: tag %q is not key:value", ErrSyntax, s, strings.TrimSpace(pair))
		}
		if _, dup := sel.Tags[key]; dup {
			return Selector{}, fmt.Errorf("%w selector %q: duplicate tag %q", ErrSyntax, s, key)
		}
		sel.Tags[key] = value
	}
	return sel, nil
}

// ParseExpression parses "<aggregator><op><number>".
func ParseExpression(s string) (Expression, error) {
	m := expressionRe.FindStringSubmatch(s)
	if m == nil {
		return Expression{}, fmt.Errorf("%w expression %q", ErrSyntax, s)
	}

	expr := Expression{
		Source:     strings.TrimSpace(s),
		Aggregator: Aggregator(m[1]),
		Operator:   Operator(m[3]),
	}
	if m[2] != "" {
		p, err := strconv.ParseFloat(m[2], 64)
		if err != nil || p < 0 || p > 100 {
			return Expression{}, fmt.Errorf("%w expression %q: percentile must be within [0, 100]", ErrSyntax, s)
		}
		expr.Aggregator = AggPercentile
		expr.Percentile = p
	}

	v, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return Expression{}, fmt.Errorf("%w expression %q: %v", ErrSyntax, s, err)
	}
	expr.Value = v
	return expr, nil
}

// Parse builds a threshold from a selector and its expressions.
func Parse(selector string, expressions []string) (*Threshold, error) {
	sel, err := ParseSelector(selector)
	if err != nil {
		return nil, err
	}
	if len(expressions) == 0 {
		return nil, fmt.Errorf("%w selector %q: no expressions", ErrSyntax, selector)
	}

	th := &Threshold{Selector: sel}
	for _, e := range expressions {
		expr, err := ParseExpression(e)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sel.Source, err)
		}
		th.Expressions = append(th.Expressions, expr)
	}
	return th, nil
}

// ParseAll parses a selector-to-expressions mapping, ordered by selector.
// All syntax errors are reported together.
func ParseAll(defs map[string][]string) ([]*Threshold, error) {
	selectors := make([]string, 0, len(defs))
	for s := range defs {
		selectors = append(selectors, s)
	}
	sort.Strings(selectors)

	var (
		out  []*Threshold
		errs []error
	)
	for _, s := range selectors {
		th, err := Parse(s, defs[s])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, th)
	}
	return out, errors.Join(errs...)
}
