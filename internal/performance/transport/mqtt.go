package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig configures an MQTT topic target.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
	Retain   bool
	Username string
	Password string

	ConnectTimeout time.Duration

	// PublishTimeout bounds the wait for a publish to complete, including
	// the broker ack at QoS 1 and 2.
	PublishTimeout time.Duration
}

// DefaultMQTTTimeout applies to connects and publishes when not configured.
const DefaultMQTTTimeout = 10 * time.Second

// publisher is the part of mqtt.Client used after connecting.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes request bodies to a topic over one shared connection.
type MQTT struct {
	cfg    MQTTConfig
	client publisher
}

// NewMQTT connects to cfg.Broker.
func NewMQTT(cfg MQTTConfig) (*MQTT, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("mqtt: topic is required")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("mqtt: invalid qos %d", cfg.QoS)
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("tradeload-%d", time.Now().UnixNano())
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = DefaultMQTTTimeout
	}
	if cfg.PublishTimeout == 0 {
		cfg.PublishTimeout = DefaultMQTTTimeout
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetOrderMatters(false).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetCleanSession(true).
		SetKeepAlive(60 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.Broker, err)
	}

	return &MQTT{cfg: cfg, client: client}, nil
}

// Execute publishes one message. With QoS 0 the outcome is known once the
// packet is written; with QoS 1 or 2 it waits for the broker's ack. A
// publish that does not complete within PublishTimeout, for instance while
// the client is reconnecting, fails as a timeout.
func (m *MQTT) Execute(ctx context.Context, req Request) Outcome {
	topic := m.cfg.Topic
	if req.Path != "" {
		topic = req.Path
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.PublishTimeout)
	defer cancel()

	start := time.Now()
	token := m.client.Publish(topic, m.cfg.QoS, m.cfg.Retain, req.Body)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return failure(ctx, start, fmt.Errorf("mqtt: publish to %s: %w", topic, ctx.Err()))
	}
	if err := token.Error(); err != nil {
		return failure(ctx, start, err)
	}
	return Outcome{
		Success:  true,
		Duration: time.Since(start),
		Bytes:    int64(len(req.Body)),
	}
}

// Close disconnects after letting in-flight work settle.
func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}

var _ Transporter = (*MQTT)(nil)
