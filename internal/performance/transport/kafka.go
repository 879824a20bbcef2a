package transport

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures a Kafka topic target.
type KafkaConfig struct {
	Brokers []string
	Topic   string

	// BatchTimeout bounds how long the writer waits to fill a batch.
	// Load tests publish one message per iteration, so it defaults low.
	BatchTimeout time.Duration

	// RequiredAcks is 1 (leader, the default) or -1 (all replicas).
	RequiredAcks int

	WriteTimeout time.Duration
}

// Kafka publishes request bodies as messages keyed by Request.Key.
type Kafka struct {
	writer *kafka.Writer
}

// NewKafka creates a Kafka transporter. Connections are opened lazily.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	if cfg.RequiredAcks == 0 {
		cfg.RequiredAcks = int(kafka.RequireOne)
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: cfg.BatchTimeout,
			RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
			WriteTimeout: cfg.WriteTimeout,
		},
	}, nil
}

// Execute writes one message and waits for the configured acks.
func (k *Kafka) Execute(ctx context.Context, req Request) Outcome {
	msg := kafka.Message{Key: req.Key, Value: req.Body}
	for name, value := range req.Headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: name, Value: []byte(value)})
	}

	start := time.Now()
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return failure(ctx, start, err)
	}
	return Outcome{
		Success:  true,
		Duration: time.Since(start),
		Bytes:    int64(len(req.Body)),
	}
}

// Close flushes pending messages and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}

var _ Transporter = (*Kafka)(nil)
