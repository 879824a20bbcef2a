package transport

import (
	"context"
	"maps"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wesleyorama2/tradeload/internal/performance/metrics"
)

// Byte counters shared by every protocol.
const (
	MetricDataSent     = "data_sent"
	MetricDataReceived = "data_received"
)

// Instrumented records request metrics for every outcome of the wrapped
// transporter:
//
//	<prefix>_reqs          counter
//	<prefix>_req_duration  trend (ms)
//	<prefix>_req_failed    rate
//	data_sent              counter (bytes of request bodies)
//	data_received          counter (bytes of response bodies)
//
// Metrics carry the request's tags plus "operation" and, when known, "status".
type Instrumented struct {
	next   Transporter
	sink   *metrics.Sink
	prefix string

	logger    *zap.Logger
	sometimes *rate.Sometimes
}

// Instrument wraps next. A nil logger disables failure logging.
func Instrument(next Transporter, sink *metrics.Sink, prefix string, logger *zap.Logger) *Instrumented {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instrumented{
		next:      next,
		sink:      sink,
		prefix:    prefix,
		logger:    logger.With(zap.String("component", "transport"), zap.String("protocol", prefix)),
		sometimes: &rate.Sometimes{Interval: time.Second},
	}
}

// Execute runs the request and records its metrics.
func (i *Instrumented) Execute(ctx context.Context, req Request) Outcome {
	out := Safe(ctx, i.next, req)

	tags := maps.Clone(req.Tags)
	if tags == nil {
		tags = metrics.Tags{}
	}
	if req.Operation != "" {
		tags["operation"] = req.Operation
	}
	if out.Status != 0 {
		tags["status"] = strconv.Itoa(out.Status)
	}

	_ = i.sink.Add(i.prefix+"_reqs", 1, tags)
	_ = i.sink.Observe(i.prefix+"_req_duration", out.Duration, tags)
	_ = i.sink.Mark(i.prefix+"_req_failed", !out.Success, tags)
	if n := len(req.Body); n > 0 {
		_ = i.sink.Add(MetricDataSent, float64(n), tags)
	}
	if n := len(out.Body); n > 0 {
		_ = i.sink.Add(MetricDataReceived, float64(n), tags)
	}

	if !out.Success && out.ErrorKind != ErrorKindCancelled {
		i.sometimes.Do(func() {
			i.logger.Warn("request failed",
				zap.String("operation", req.Operation),
				zap.String("kind", string(out.ErrorKind)),
				zap.Int("status", out.Status),
				zap.Error(out.Err))
		})
	}
	return out
}

// Close closes the wrapped transporter.
func (i *Instrumented) Close() error {
	return i.next.Close()
}

var _ Transporter = (*Instrumented)(nil)
