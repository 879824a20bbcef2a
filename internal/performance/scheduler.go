package performance

import (
	"context"
	"errors"
	"maps"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wesleyorama2/tradeload/internal/performance/metrics"
)

// SchedulerConfig describes the workers of one scenario.
type SchedulerConfig struct {
	// Scenario names the scenario; it is added to every metric as tag "scenario".
	Scenario string

	// Exec is the iteration function every worker runs.
	Exec IterationFunc

	// Sink receives the built-in iteration metrics.
	Sink *metrics.Sink

	// Tags are extra tags for every metric of this scenario.
	Tags metrics.Tags

	// Pacing between iterations of looping workers.
	Pacing Pacing

	// Seed for the per-worker random sources. Zero picks a time-based seed.
	Seed int64

	Logger *zap.Logger
}

// Scheduler manages the lifecycle of the workers of one scenario.
//
// It provides:
//   - Worker spawning, each with its own seeded random source
//   - Live-count tracking (stopping workers do not count)
//   - Graceful shutdown with a force-stop after the grace window
type Scheduler struct {
	cfg       SchedulerConfig
	tags      metrics.Tags
	logger    *zap.Logger
	sometimes *rate.Sometimes

	// Iteration contexts derive from baseCtx, which is never cancelled by
	// the scenario clock; only ForceStop cancels them.
	baseCtx context.Context

	// workers holds the workers that have not stopped yet. Stopped workers
	// are removed and their iterations added to retired.
	workers map[int]*Worker
	retired int64
	mu      sync.RWMutex
	seeds   *rand.Rand
	nextID  atomic.Int32

	wg sync.WaitGroup
}

// NewScheduler creates a scheduler for cfg.
func NewScheduler(ctx context.Context, cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Exec == nil {
		return nil, errors.New("scheduler: iteration function is required")
	}
	if cfg.Sink == nil {
		return nil, errors.New("scheduler: metric sink is required")
	}
	if err := cfg.Pacing.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	tags := maps.Clone(cfg.Tags)
	if tags == nil {
		tags = metrics.Tags{}
	}
	if cfg.Scenario != "" {
		tags["scenario"] = cfg.Scenario
	}

	return &Scheduler{
		cfg:       cfg,
		tags:      tags,
		logger:    cfg.Logger.With(zap.String("scenario", cfg.Scenario)),
		sometimes: &rate.Sometimes{Interval: time.Second},
		baseCtx:   context.WithoutCancel(ctx),
		workers:   make(map[int]*Worker),
		seeds:     rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Scenario returns the scenario name.
func (s *Scheduler) Scenario() string {
	return s.cfg.Scenario
}

// Tags returns the tags attached to this scenario's metrics.
func (s *Scheduler) Tags() metrics.Tags {
	return s.tags
}

// Sink returns the metric sink.
func (s *Scheduler) Sink() *metrics.Sink {
	return s.cfg.Sink
}

// Logger returns the scenario logger.
func (s *Scheduler) Logger() *zap.Logger {
	return s.logger
}

// SpawnWorker creates and registers a new idle worker.
//
// The caller is responsible for running it, through Go or directly with
// Worker.RunIteration.
func (s *Scheduler) SpawnWorker() *Worker {
	id := int(s.nextID.Add(1))

	s.mu.Lock()
	w := newWorker(id, s, s.seeds.Int63())
	s.workers[id] = w
	s.mu.Unlock()

	return w
}

// Go runs fn in a goroutine tracked by Wait.
func (s *Scheduler) Go(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// StartLoop spawns a worker and runs it in a loop until stopped.
func (s *Scheduler) StartLoop() *Worker {
	w := s.SpawnWorker()
	w.Start()
	s.Go(w.Loop)
	return w
}

// Workers returns the live workers ordered by ID.
func (s *Scheduler) Workers() []*Worker {
	s.mu.RLock()
	out := make([]*Worker, 0, len(s.workers))
	for _, w := range s.workers {
		if w.Live() {
			out = append(out, w)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LiveCount returns the number of workers that are neither stopping nor stopped.
func (s *Scheduler) LiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, w := range s.workers {
		if w.Live() {
			count++
		}
	}
	return count
}

// DrainingCount returns the number of workers finishing an iteration after a stop request.
func (s *Scheduler) DrainingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, w := range s.workers {
		if w.State() == WorkerStopping {
			count++
		}
	}
	return count
}

// Iterations returns the number of iterations started by all workers,
// including those that have since stopped.
func (s *Scheduler) Iterations() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.retired
	for _, w := range s.workers {
		total += w.Iterations()
	}
	return total
}

// retire removes a stopped worker.
func (s *Scheduler) retire(w *Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workers[w.ID]; ok {
		delete(s.workers, w.ID)
		s.retired += w.Iterations()
	}
}

// snapshot returns the current workers; callers may block on them without
// holding the lock.
func (s *Scheduler) snapshot() []*Worker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Worker, 0, len(s.workers))
	for _, w := range s.workers {
		out = append(out, w)
	}
	return out
}

// Scale spawns looping workers or stops the newest ones until the live count
// equals target. A stopped worker is force-stopped if it has not finished
// within grace.
func (s *Scheduler) Scale(target int, grace time.Duration) int {
	live := s.Workers()

	switch {
	case target > len(live):
		for i := len(live); i < target; i++ {
			s.StartLoop()
		}
	case target < len(live):
		for i := len(live) - 1; i >= target; i-- {
			s.stopWithGrace(live[i], grace)
		}
	}
	return s.LiveCount()
}

func (s *Scheduler) stopWithGrace(w *Worker, grace time.Duration) {
	w.RequestStop()
	if grace <= 0 {
		w.ForceStop()
		return
	}
	go func() {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-w.Done():
		case <-timer.C:
			w.ForceStop()
		}
	}()
}

// StopAll requests every worker to stop after its current iteration.
func (s *Scheduler) StopAll() {
	for _, w := range s.snapshot() {
		w.RequestStop()
	}
}

// ForceStopAll cancels every in-flight iteration.
func (s *Scheduler) ForceStopAll() {
	for _, w := range s.snapshot() {
		w.ForceStop()
	}
}

// Wait waits for all tracked goroutines with a timeout.
// Returns true if they all finished in time.
func (s *Scheduler) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// forceStopWait bounds how long Shutdown waits after a force-stop.
const forceStopWait = 5 * time.Second

// Shutdown stops all workers gracefully: in-flight iterations get grace to
// finish, then they are force-stopped. A zero grace force-stops at once.
// Returns true if the grace window was enough.
func (s *Scheduler) Shutdown(grace time.Duration) bool {
	s.StopAll()
	if grace > 0 && s.Wait(grace) {
		s.markAllStopped()
		return true
	}

	s.logger.Info("grace period expired, force-stopping workers",
		zap.Duration("grace", grace),
		zap.Int("draining", s.DrainingCount()))
	s.ForceStopAll()
	if !s.Wait(forceStopWait) {
		s.logger.Warn("workers did not exit after force-stop")
	}
	s.markAllStopped()
	return false
}

func (s *Scheduler) markAllStopped() {
	for _, w := range s.snapshot() {
		w.MarkStopped()
	}
}
