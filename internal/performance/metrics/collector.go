package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tradeload"

// Collector exposes a Sink's live view to Prometheus.
//
// Counters become counters, rates become gauges holding the current ratio,
// and trends become summaries with p50/p90/p95/p99 objectives. Metric
// names are discovered at scrape time, so the collector is unchecked.
type Collector struct {
	sink *Sink
}

// NewCollector wraps sink as a prometheus.Collector.
func NewCollector(sink *Sink) *Collector {
	return &Collector{sink: sink}
}

// Describe sends no descriptors.
func (c *Collector) Describe(chan<- *prometheus.Desc) {}

// Collect emits one Prometheus metric per sink metric.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, ls := range c.sink.Live().All() {
		name := prometheus.BuildFQName(namespace, "", sanitizeName(ls.Name))

		switch ls.Kind {
		case KindCounter:
			desc := prometheus.NewDesc(name+"_total", "Counter "+ls.Name, nil, nil)
			ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, ls.Sum)
		case KindRate:
			desc := prometheus.NewDesc(name+"_ratio", "Rate "+ls.Name, nil, nil)
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, ls.Rate())
		case KindTrend:
			desc := prometheus.NewDesc(name, "Trend "+ls.Name, nil, nil)
			ch <- prometheus.MustNewConstSummary(desc, uint64(ls.Count), ls.Sum, map[float64]float64{
				0.5:  ls.P50,
				0.9:  ls.P90,
				0.95: ls.P95,
				0.99: ls.P99,
			})
		}
	}
}

// sanitizeName maps a sink metric name onto the Prometheus name charset.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

var _ prometheus.Collector = (*Collector)(nil)
