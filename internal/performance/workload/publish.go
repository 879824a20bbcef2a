package workload

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wesleyorama2/tradeload/internal/performance"
	"github.com/wesleyorama2/tradeload/internal/performance/config"
	"github.com/wesleyorama2/tradeload/internal/performance/engine"
	"github.com/wesleyorama2/tradeload/internal/performance/payload"
	"github.com/wesleyorama2/tradeload/internal/performance/transport"
)

// DefaultPublishPath is where publish_trade POSTs to HTTP targets.
const DefaultPublishPath = "/api/trades"

// publishTrade generates one trade per iteration and hands it to the
// target, keyed by trade ID.
//
// For MQTT targets a configured path replaces the topic; Kafka and Redis
// ignore it.
func (b *Builder) publishTrade(sc *config.ScenarioConfig, targetType string, gen *payload.TradeGenerator) engine.ExecFunc {
	op := sc.Operation
	target := sc.Target
	encode := encoder(sc.Encoding)

	method := ""
	path := sc.Path
	if targetType == config.TargetHTTP {
		method = http.MethodPost
		if path == "" {
			path = DefaultPublishPath
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

		trade := gen.Generate(it.Rand, time.Now())
		body, err := encode(trade)
		if err != nil {
			return fmt.Errorf("%s: encode trade: %w", op, err)
		}

		tags := operationTags(it.Tags, op)
		out := t.Execute(ctx, transport.Request{
			Operation: op,
			Method:    method,
			Path:      path,
			Key:       []byte(trade.TradeID),
			Body:      body,
			Tags:      it.Tags,
		})
		recordOperation(b.sink, op, out, tags)

		if !out.Success {
			return fmt.Errorf("%s %s: %w", op, trade.TradeID, out.Err)
		}
		_ = b.sink.Add(MetricTradesPublished, 1, tags)
		return nil
	}
}

// encoder returns the body encoding for name; anything but base64 is JSON.
func encoder(name string) func(payload.Trade) ([]byte, error) {
	if name == config.EncodingBase64 {
		return func(t payload.Trade) ([]byte, error) {
			raw, err := json.Marshal(t)
			if err != nil {
				return nil, err
			}
			out := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
			base64.StdEncoding.Encode(out, raw)
			return out, nil
		}
	}
	return func(t payload.Trade) ([]byte, error) {
		return json.Marshal(t)
	}
}
