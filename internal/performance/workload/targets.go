package workload

import (
	"context"
	"fmt"

	"github.com/wesleyorama2/tradeload/internal/performance/config"
	"github.com/wesleyorama2/tradeload/internal/performance/transport"
)

// OpenTarget creates the transporter for one configured target. Broker
// clients connect here, so it must run during setup.
func OpenTarget(ctx context.Context, name string, tc *config.TargetConfig) (transport.Transporter, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	timeout := tc.Timeout.GetDuration(0)

	switch tc.Type {
	case config.TargetHTTP:
		success := transport.Status2xx
		if len(tc.SuccessStatus) > 0 {
			success = transport.StatusIn(fmt.Sprintf("status in %v", tc.SuccessStatus), tc.SuccessStatus...)
		}
		return transport.NewHTTP(transport.HTTPConfig{
			BaseURL:            tc.BaseURL,
			Timeout:            timeout,
			MaxConnsPerHost:    tc.MaxConnsPerHost,
			InsecureSkipVerify: tc.InsecureSkipVerify,
			Headers:            tc.Headers,
			Success:            success,
		})

	case config.TargetKafka:
		return transport.NewKafka(transport.KafkaConfig{
			Brokers:      tc.Brokers,
			Topic:        tc.Topic,
			RequiredAcks: tc.RequiredAcks,
			WriteTimeout: timeout,
		})

	case config.TargetRedis:
		return transport.NewRedis(transport.RedisConfig{
			Addr:        tc.Addr,
			Stream:      tc.Stream,
			PoolSize:    tc.PoolSize,
			MaxLen:      tc.MaxLen,
			DialTimeout: timeout,
		})

	case config.TargetMQTT:
		return transport.NewMQTT(transport.MQTTConfig{
			Broker:         tc.Broker,
			ClientID:       tc.ClientID,
			Topic:          tc.Topic,
			QoS:            byte(tc.QoS),
			Retain:         tc.Retain,
			Username:       tc.Username,
			Password:       tc.Password,
			ConnectTimeout: timeout,
			PublishTimeout: timeout,
		})

	default:
		return nil, fmt.Errorf("unknown target type: %s", tc.Type)
	}
}
