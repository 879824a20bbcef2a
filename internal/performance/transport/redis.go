package transport

import (
	"context"
	"errors"
	"time"

	"github.com/mediocregopher/radix/v3"
)

// RedisConfig configures a Redis stream target.
type RedisConfig struct {
	Addr     string
	Stream   string
	PoolSize int

	// MaxLen approximately trims the stream on every XADD when > 0.
	MaxLen int64

	DialTimeout time.Duration
}

// Redis appends request bodies to a stream with XADD.
type Redis struct {
	cfg  RedisConfig
	pool *radix.Pool
}

// NewRedis dials a connection pool to cfg.Addr.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis: addr is required")
	}
	if cfg.Stream == "" {
		return nil, errors.New("redis: stream is required")
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 10
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	connFunc := func(network, addr string) (radix.Conn, error) {
		return radix.Dial(network, addr, radix.DialTimeout(cfg.DialTimeout))
	}
	pool, err := radix.NewPool("tcp", cfg.Addr, cfg.PoolSize, radix.PoolConnFunc(connFunc))
	if err != nil {
		return nil, err
	}

	return &Redis{cfg: cfg, pool: pool}, nil
}

// Execute appends one entry with fields tradeId and payload.
func (r *Redis) Execute(ctx context.Context, req Request) Outcome {
	args := make([]interface{}, 0, 8)
	if r.cfg.MaxLen > 0 {
		args = append(args, "MAXLEN", "~", r.cfg.MaxLen)
	}
	args = append(args, "*", "tradeId", req.Key, "payload", req.Body)

	var id string
	start := time.Now()
	err := runWithContext(ctx, func() error {
		return r.pool.Do(radix.FlatCmd(&id, "XADD", r.cfg.Stream, args...))
	})
	if err != nil {
		return failure(ctx, start, err)
	}
	return Outcome{
		Success:  true,
		Duration: time.Since(start),
		Bytes:    int64(len(req.Body)),
	}
}

// Close closes the pool.
func (r *Redis) Close() error {
	return r.pool.Close()
}

var _ Transporter = (*Redis)(nil)
