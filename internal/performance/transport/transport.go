// Package transport sends single requests to systems under test and
// reports timed outcomes.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wesleyorama2/tradeload/internal/performance/metrics"
)

// ErrorKind classifies a failed outcome.
type ErrorKind string

const (
	ErrorKindNone      ErrorKind = ""
	ErrorKindTransport ErrorKind = "transport"
	ErrorKindTimeout   ErrorKind = "timeout"
	ErrorKindCancelled ErrorKind = "cancelled"
	ErrorKindStatus    ErrorKind = "status"
)

// Request is one logical operation against a target.
type Request struct {
	// Operation names the request in metric tags (e.g. "db_read").
	Operation string

	// HTTP fields.
	Method string
	Path   string

	// Key is the message key for brokers; Body is the payload for every protocol.
	Key  []byte
	Body []byte

	// Headers are HTTP headers or broker message headers.
	Headers map[string]string

	// Tags are added to every metric recorded for this request.
	Tags metrics.Tags
}

// Outcome is the result of executing a Request.
// Duration covers only the request itself.
type Outcome struct {
	Success   bool
	Duration  time.Duration
	ErrorKind ErrorKind
	Err       error
	Status    int
	Bytes     int64
	Body      []byte
}

// Transporter executes requests against one target.
//
// Execute never panics and never returns an error: every failure is
// reported through the Outcome. Implementations must be safe for
// concurrent use by many workers.
type Transporter interface {
	Execute(ctx context.Context, req Request) Outcome
	Close() error
}

// SuccessPredicate decides whether a response status counts as success.
// The name appears in logs and summaries so the rule is never implicit.
type SuccessPredicate struct {
	Name  string
	Match func(status int) bool
}

// StatusIn succeeds when the status is one of codes.
func StatusIn(name string, codes ...int) SuccessPredicate {
	set := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return SuccessPredicate{
		Name: name,
		Match: func(status int) bool {
			_, ok := set[status]
			return ok
		},
	}
}

// Status2xx succeeds on any 2xx status.
var Status2xx = SuccessPredicate{
	Name:  "2xx",
	Match: func(status int) bool { return status >= 200 && status < 300 },
}

// classify maps a request error onto an ErrorKind.
func classify(ctx context.Context, err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTimeout
	case errors.Is(err, context.Canceled), ctx.Err() != nil:
		return ErrorKindCancelled
	default:
		var te interface{ Timeout() bool }
		if errors.As(err, &te) && te.Timeout() {
			return ErrorKindTimeout
		}
		return ErrorKindTransport
	}
}

// failure builds a failed outcome for err.
func failure(ctx context.Context, start time.Time, err error) Outcome {
	return Outcome{
		Duration:  time.Since(start),
		ErrorKind: classify(ctx, err),
		Err:       err,
	}
}

// Safe runs t.Execute and turns a panic into a transport failure.
func Safe(ctx context.Context, t Transporter, req Request) (out Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{
				Duration:  time.Since(start),
				ErrorKind: ErrorKindTransport,
				Err:       fmt.Errorf("transport panic: %v", r),
			}
		}
	}()
	return t.Execute(ctx, req)
}

// runWithContext runs fn in its own goroutine so that a blocking client
// call without context support still returns when ctx is cancelled.
func runWithContext(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("transport panic: %v", r)
			}
		}()
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Func adapts an ordinary function to a Transporter.
type Func func(ctx context.Context, req Request) Outcome

// Execute calls f.
func (f Func) Execute(ctx context.Context, req Request) Outcome {
	return f(ctx, req)
}

// Close does nothing.
func (f Func) Close() error {
	return nil
}
