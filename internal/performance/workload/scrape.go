package workload

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/wesleyorama2/tradeload/internal/performance"
	"github.com/wesleyorama2/tradeload/internal/performance/config"
	"github.com/wesleyorama2/tradeload/internal/performance/engine"
	"github.com/wesleyorama2/tradeload/internal/performance/metrics"
	"github.com/wesleyorama2/tradeload/internal/performance/transport"
)

// DefaultScrapePath is the Spring actuator Prometheus endpoint of the
// consumer services.
const DefaultScrapePath = "/actuator/prometheus"

// scrapeMetrics reads a Prometheus text endpoint and records every sample
// of the selected families as a Trend named after the family, tagged with
// the sample's labels.
func (b *Builder) scrapeMetrics(sc *config.ScenarioConfig) engine.ExecFunc {
	op := sc.Operation
	target := sc.Target
	path := sc.Path
	if path == "" {
		path = DefaultScrapePath
	}
	var families map[string]bool
	if len(sc.Families) > 0 {
		families = make(map[string]bool, len(sc.Families))
		for _, f := range sc.Families {
			families[f] = true
		}
	}

	return func(ctx context.Context, it *performance.Iteration, data any) error {
		res, err := resourcesFrom(data)
		if err != nil {
			return err
		}
		t, err := res.Target(target)
		if err != nil {
			return err
		}

		tags := operationTags(it.Tags, op)
		out := t.Execute(ctx, transport.Request{
			Operation: op,
			Method:    http.MethodGet,
			Path:      path,
			Headers:   map[string]string{"Accept": "text/plain"},
			Tags:      it.Tags,
		})
		recordOperation(b.sink, op, out, tags)
		if !out.Success {
			return fmt.Errorf("%s: %w", op, out.Err)
		}

		parsed, err := ParseFamilies(out.Body)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		for name, mf := range parsed {
			if families != nil && !families[name] {
				continue
			}
			if err := b.recordFamily(mf, it.Tags); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}
		return nil
	}
}

// ParseFamilies parses the Prometheus text exposition format.
func ParseFamilies(body []byte) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse metrics: %w", err)
	}
	return families, nil
}

func (b *Builder) recordFamily(mf *dto.MetricFamily, base metrics.Tags) error {
	for _, m := range mf.GetMetric() {
		value, ok := sampleValue(mf.GetType(), m)
		if !ok {
			continue
		}
		tags := make(metrics.Tags, len(base)+len(m.GetLabel()))
		for k, v := range base {
			tags[k] = v
		}
		for _, lp := range m.GetLabel() {
			tags[lp.GetName()] = lp.GetValue()
		}
		if err := b.sink.Record(mf.GetName(), metrics.KindTrend, value, tags); err != nil {
			return err
		}
	}
	return nil
}

// sampleValue returns the single value of counter, gauge and untyped
// samples. Summaries and histograms are skipped.
func sampleValue(t dto.MetricType, m *dto.Metric) (float64, bool) {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue(), true
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue(), true
	case dto.MetricType_UNTYPED:
		return m.GetUntyped().GetValue(), true
	default:
		return 0, false
	}
}
