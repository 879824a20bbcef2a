// Package rate computes the start times of arrival-rate iterations.
package rate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Segment is one piece of a piecewise-linear rate profile: over Duration the
// rate moves linearly from the previous segment's target to Target.
type Segment struct {
	Duration time.Duration

	// Target is the rate at the end of the segment, in iterations per TimeUnit.
	Target float64
}

// Schedule maps an iteration index to the offset, from the start of the
// scenario, at which that iteration must begin.
//
// # Algorithm
//
// Let N(t) be the cumulative number of iterations the rate profile asks for
// by time t (the integral of the rate). Iteration k, counting from 0, starts
// at the smallest t with N(t) = k. Within a segment of length D whose rate
// goes from r0 to r1, N grows as a*t^2 + b*t with a = (r1-r0)/(2D) and
// b = r0, so the offset inside the segment is the positive root
//
//	t = 2c / (b + sqrt(b^2 + 4ac))
//
// where c is the part of k not consumed by earlier segments. This form is
// stable when a is zero or negative.
//
// Because each start time is computed from the profile alone, a slow system
// never shifts later iterations: an iteration that cannot start on time is
// the caller's to drop, never to postpone.
//
// # Thread Safety
//
// A Schedule is immutable and safe for concurrent use.
type Schedule struct {
	segments []segment
	total    float64
	duration time.Duration
}

type segment struct {
	offset float64 // seconds from scenario start
	length float64 // seconds
	r0, r1 float64 // iterations per second
	count  float64 // iterations requested in this segment
}

// ErrInvalidRate is returned for a negative or non-finite rate.
var ErrInvalidRate = errors.New("rate must be a finite number >= 0")

func perSecond(r float64, unit time.Duration) (float64, error) {
	if r < 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, fmt.Errorf("%w, got %v", ErrInvalidRate, r)
	}
	if unit <= 0 {
		unit = time.Second
	}
	return r / unit.Seconds(), nil
}

// NewConstant creates a schedule that starts rate iterations per unit for duration.
func NewConstant(rate float64, unit, duration time.Duration) (*Schedule, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("%w and > 0 for a constant profile, got %v", ErrInvalidRate, rate)
	}
	return NewRamping(rate, unit, []Segment{{Duration: duration, Target: rate}})
}

// NewRamping creates a schedule that starts at startRate and follows segments.
// Rates are expressed per unit; a zero unit means per second.
func NewRamping(startRate float64, unit time.Duration, segments []Segment) (*Schedule, error) {
	if len(segments) == 0 {
		return nil, errors.New("at least one segment is required")
	}

	prev, err := perSecond(startRate, unit)
	if err != nil {
		return nil, fmt.Errorf("start rate: %w", err)
	}

	s := &Schedule{segments: make([]segment, 0, len(segments))}
	var offset float64
	for i, seg := range segments {
		if seg.Duration < 0 {
			return nil, fmt.Errorf("segment %d: duration must be >= 0", i)
		}
		target, err := perSecond(seg.Target, unit)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}

		length := seg.Duration.Seconds()
		count := (prev + target) / 2 * length
		s.segments = append(s.segments, segment{
			offset: offset,
			length: length,
			r0:     prev,
			r1:     target,
			count:  count,
		})

		s.total += count
		s.duration += seg.Duration
		offset += length
		prev = target
	}
	return s, nil
}

// Duration returns the total length of the profile.
func (s *Schedule) Duration() time.Duration {
	return s.duration
}

// Count returns the number of iterations the profile requests over its whole
// duration, which may be fractional.
func (s *Schedule) Count() float64 {
	return s.total
}

// At returns the offset at which iteration k starts. It returns false when k
// falls beyond the end of the profile.
func (s *Schedule) At(k int64) (time.Duration, bool) {
	if k < 0 {
		return 0, false
	}

	c := float64(k)
	for _, seg := range s.segments {
		if c < seg.count {
			return seconds(seg.offset + seg.solve(c)), true
		}
		c -= seg.count
	}
	return 0, false
}

// solve returns the offset within the segment at which the cumulative count
// reaches c, for 0 <= c < count.
func (seg segment) solve(c float64) float64 {
	if c <= 0 {
		return 0
	}

	a := (seg.r1 - seg.r0) / (2 * seg.length)
	b := seg.r0
	if a == 0 {
		return c / b
	}

	disc := b*b + 4*a*c
	if disc < 0 {
		disc = 0
	}
	t := 2 * c / (b + math.Sqrt(disc))
	return math.Min(t, seg.length)
}

// RateAt returns the instantaneous rate, in iterations per second, at offset t.
func (s *Schedule) RateAt(t time.Duration) float64 {
	x := t.Seconds()
	if x < 0 || len(s.segments) == 0 {
		return 0
	}
	for _, seg := range s.segments {
		if x < seg.offset+seg.length {
			if seg.length == 0 {
				return seg.r1
			}
			frac := (x - seg.offset) / seg.length
			return seg.r0 + (seg.r1-seg.r0)*frac
		}
	}
	return 0
}

// Wait blocks until iteration k is due, measured from start. It returns
// false if the profile has no iteration k or ctx is done first.
func (s *Schedule) Wait(ctx context.Context, start time.Time, k int64) bool {
	at, ok := s.At(k)
	if !ok {
		return false
	}

	delay := time.Until(start.Add(at))
	if delay <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func seconds(x float64) time.Duration {
	return time.Duration(math.Round(x * float64(time.Second)))
}
