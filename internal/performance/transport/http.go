package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPConfig configures an HTTP target.
type HTTPConfig struct {
	// BaseURL is prefixed to every request path.
	BaseURL string

	// Timeout for a single request.
	Timeout time.Duration

	// MaxIdleConns controls the maximum number of idle connections.
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle connections per host.
	MaxIdleConnsPerHost int

	// MaxConnsPerHost limits the total connections per host.
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept alive.
	IdleConnTimeout time.Duration

	DisableKeepAlives  bool
	DisableCompression bool
	InsecureSkipVerify bool

	// Headers are sent with every request; request headers override them.
	Headers map[string]string

	// Success decides which statuses count as success. Defaults to Status2xx.
	Success SuccessPredicate

	// MaxBodyBytes caps how much of a response body is kept on the outcome.
	MaxBodyBytes int64
}

// DefaultHTTPConfig returns defaults suited to load generation.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:             30 * time.Second,
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		Success:             Status2xx,
		MaxBodyBytes:        1 << 20,
	}
}

// HTTP executes requests over one shared, pooled client.
type HTTP struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTP creates an HTTP transporter.
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	def := DefaultHTTPConfig()
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = def.MaxIdleConns
	}
	if cfg.MaxIdleConnsPerHost == 0 {
		cfg.MaxIdleConnsPerHost = def.MaxIdleConnsPerHost
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = def.IdleConnTimeout
	}
	if cfg.Success.Match == nil {
		cfg.Success = def.Success
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.BaseURL != "" && !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return nil, fmt.Errorf("base URL %q must start with http:// or https://", cfg.BaseURL)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		DisableKeepAlives:   cfg.DisableKeepAlives,
		DisableCompression:  cfg.DisableCompression,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for test environments
	}

	return &HTTP{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
	}, nil
}

// Success returns the predicate this target uses.
func (h *HTTP) Success() SuccessPredicate {
	return h.cfg.Success
}

// Execute sends req and reads the full response body.
func (h *HTTP) Execute(ctx context.Context, req Request) Outcome {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, method, h.cfg.BaseURL+req.Path, body)
	if err != nil {
		return failure(ctx, start, fmt.Errorf("failed to build request: %w", err))
	}
	for k, v := range h.cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return failure(ctx, start, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.cfg.MaxBodyBytes))
	if err == nil {
		// Drain anything past the cap so the connection can be reused.
		_, err = io.Copy(io.Discard, resp.Body)
	}
	duration := time.Since(start)

	out := Outcome{
		Duration: duration,
		Status:   resp.StatusCode,
		Bytes:    int64(len(data)),
		Body:     data,
	}
	if err != nil {
		out.ErrorKind = classify(ctx, err)
		out.Err = fmt.Errorf("failed to read response body: %w", err)
		return out
	}

	if !h.cfg.Success.Match(resp.StatusCode) {
		out.ErrorKind = ErrorKindStatus
		out.Err = &StatusError{Status: resp.StatusCode, Predicate: h.cfg.Success.Name}
		return out
	}

	out.Success = true
	return out
}

// Close releases idle connections.
func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

// StatusError reports a status rejected by the success predicate.
type StatusError struct {
	Status    int
	Predicate string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d does not satisfy %q", e.Status, e.Predicate)
}

var _ Transporter = (*HTTP)(nil)
