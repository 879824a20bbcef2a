// Package performance runs scenario workers: the goroutines that execute
// iterations and record their metrics.
package performance

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/tradeload/internal/performance/metrics"
)

// Built-in metrics recorded for every iteration.
const (
	MetricIterations            = "iterations"
	MetricIterationDuration     = "iteration_duration"
	MetricIterationErrors       = "iteration_errors"
	MetricInterruptedIterations = "interrupted_iterations"
	MetricDroppedIterations     = "dropped_iterations"
)

// ErrWorkerStopped is returned when an iteration is requested from a worker
// that is stopping or stopped.
var ErrWorkerStopped = errors.New("worker is stopping or stopped")

// WorkerState represents the lifecycle state of a Worker.
type WorkerState int32

const (
	// WorkerIdle indicates the worker exists but has not started.
	WorkerIdle WorkerState = iota
	// WorkerRunning indicates the worker accepts iterations.
	WorkerRunning
	// WorkerStopping indicates a stop was requested; the in-flight iteration may finish.
	WorkerStopping
	// WorkerStopped indicates the worker has fully stopped.
	WorkerStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerRunning:
		return "running"
	case WorkerStopping:
		return "stopping"
	case WorkerStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Iteration is what an IterationFunc sees of its worker.
type Iteration struct {
	Scenario string
	WorkerID int

	// Number is the worker-local iteration counter, starting at 1.
	Number int64

	// Rand is owned by the worker; it must not be shared across goroutines.
	Rand *rand.Rand

	// Tags identify the scenario in recorded metrics. Do not mutate.
	Tags metrics.Tags
}

// IterationFunc is one unit of work. Returned errors are recorded and
// never stop the worker.
type IterationFunc func(ctx context.Context, it *Iteration) error

// Worker is a single concurrent actor executing iterations.
//
// Stopping is cooperative: RequestStop is observed at iteration boundaries
// and during pacing, never in the middle of an iteration. ForceStop cancels
// the iteration context so that an in-flight request returns promptly with
// a failed, timed outcome.
type Worker struct {
	ID int

	sched *Scheduler
	rng   *rand.Rand

	state     atomic.Int32
	iteration atomic.Int64

	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
	doneOnce sync.Once

	hardCtx    context.Context
	hardCancel context.CancelFunc
}

func newWorker(id int, sched *Scheduler, seed int64) *Worker {
	hardCtx, hardCancel := context.WithCancel(sched.baseCtx)
	return &Worker{
		ID:         id,
		sched:      sched,
		rng:        rand.New(rand.NewSource(seed)),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		hardCtx:    hardCtx,
		hardCancel: hardCancel,
	}
}

// State returns the current worker state.
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// Iterations returns the number of iterations started by this worker.
func (w *Worker) Iterations() int64 {
	return w.iteration.Load()
}

// Live reports whether the worker counts toward the scenario's concurrency.
func (w *Worker) Live() bool {
	s := w.State()
	return s == WorkerIdle || s == WorkerRunning
}

// Start moves an idle worker to running.
func (w *Worker) Start() bool {
	return w.state.CompareAndSwap(int32(WorkerIdle), int32(WorkerRunning))
}

// RunIteration executes one iteration and records its metrics.
func (w *Worker) RunIteration() error {
	switch w.State() {
	case WorkerStopping, WorkerStopped:
		return ErrWorkerStopped
	case WorkerIdle:
		w.Start()
	}

	cfg := &w.sched.cfg
	it := &Iteration{
		Scenario: cfg.Scenario,
		WorkerID: w.ID,
		Number:   w.iteration.Add(1),
		Rand:     w.rng,
		Tags:     w.sched.tags,
	}

	start := time.Now()
	err := w.call(it)
	elapsed := time.Since(start)

	sink := cfg.Sink
	if w.hardCtx.Err() != nil {
		_ = sink.Add(MetricInterruptedIterations, 1, w.sched.tags)
	} else {
		_ = sink.Add(MetricIterations, 1, w.sched.tags)
	}
	_ = sink.Observe(MetricIterationDuration, elapsed, w.sched.tags)

	if err != nil {
		_ = sink.Add(MetricIterationErrors, 1, w.sched.tags)
		w.sched.sometimes.Do(func() {
			w.sched.logger.Warn("iteration failed",
				zap.Int("worker", w.ID),
				zap.Int64("iteration", it.Number),
				zap.Error(err))
		})
	}
	return err
}

// call runs the iteration function, converting a panic into an error.
func (w *Worker) call(it *Iteration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("iteration panic: %v", r)
		}
	}()
	return w.sched.cfg.Exec(w.hardCtx, it)
}

// Loop runs iterations back to back, with pacing, until a stop is requested.
func (w *Worker) Loop() {
	defer w.MarkStopped()
	w.Start()

	pacing := w.sched.cfg.Pacing
	for {
		if !w.Live() || w.hardCtx.Err() != nil {
			return
		}

		_ = w.RunIteration()

		wait := pacing.Next(w.rng)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-w.stopCh:
			timer.Stop()
			return
		case <-w.hardCtx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// RequestStop asks the worker to stop after its current iteration.
func (w *Worker) RequestStop() {
	if w.state.CompareAndSwap(int32(WorkerRunning), int32(WorkerStopping)) ||
		w.state.CompareAndSwap(int32(WorkerIdle), int32(WorkerStopping)) {
		w.stopOnce.Do(func() { close(w.stopCh) })
	}
}

// ForceStop cancels the in-flight iteration.
func (w *Worker) ForceStop() {
	w.RequestStop()
	w.hardCancel()
}

// Done returns a channel closed once the worker has stopped.
func (w *Worker) Done() <-chan struct{} {
	return w.doneCh
}

// MarkStopped marks the worker as fully stopped, releases its context and
// removes it from its scheduler.
func (w *Worker) MarkStopped() {
	w.state.Store(int32(WorkerStopped))
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.doneOnce.Do(func() {
		close(w.doneCh)
		w.sched.retire(w)
	})
	w.hardCancel()
}
