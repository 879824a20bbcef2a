package executor

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/tradeload/internal/performance"
	"github.com/wesleyorama2/tradeload/internal/performance/rate"
)

// arrivalExecutor is the open-model core shared by constant-arrival-rate and
// ramping-arrival-rate.
//
// A rate.Schedule gives the exact start offset of every iteration. The
// dispatcher sleeps until each offset and hands the iteration to an idle
// worker, spawning new workers up to the pool size. If every worker is busy
// and the pool is full the iteration is dropped and counted; the schedule
// itself never slips.
type arrivalExecutor struct {
	base
	schedule func(*Config) (*rate.Schedule, error)
	timeline func(*Config) *Timeline

	idle       chan *performance.Worker
	spawned    atomic.Int32
	busy       atomic.Int32
	dispatched atomic.Int64
	dropped    atomic.Int64
	rate       atomic.Uint64 // float64 bits, iterations per second
}

// Run starts the executor and blocks until completion.
func (e *arrivalExecutor) Run(ctx context.Context, scheduler *performance.Scheduler) error {
	if e.config == nil {
		return fmt.Errorf("%s: Init must be called before Run", e.kind)
	}
	sched, err := e.schedule(e.config)
	if err != nil {
		return &ValidationError{Field: "stages", Message: err.Error()}
	}

	runCtx, cancel, err := e.begin(ctx, scheduler)
	if err != nil {
		return err
	}
	defer cancel()
	defer e.end()

	pool := e.config.PoolSize()
	e.idle = make(chan *performance.Worker, pool)
	for i := 0; i < e.config.PreAllocatedVUs; i++ {
		e.spawned.Add(1)
		e.idle <- scheduler.SpawnWorker()
	}

	tl := e.timeline(e.config)
	reconcileDone := make(chan struct{})
	go func() {
		defer close(reconcileDone)
		e.reconcile(runCtx, reconcileInterval, func(elapsed time.Duration) {
			e.rate.Store(math.Float64bits(sched.RateAt(elapsed)))
			e.target.Store(int64(e.busy.Load()))
			e.currentStage.Store(int32(tl.StageAt(elapsed)))
		})
	}()

	start := e.startedAt()
	for k := int64(0); sched.Wait(runCtx, start, k); k++ {
		e.dispatch(scheduler, pool)
	}
	<-runCtx.Done()
	<-reconcileDone

	e.rate.Store(0)
	grace := e.config.GracefulStop
	if !scheduler.Shutdown(grace) {
		scheduler.Logger().Info("scenario ended with force-stopped iterations",
			zap.String("executor", string(e.kind)),
			zap.Duration("grace", grace))
	}
	if dropped := e.dropped.Load(); dropped > 0 {
		scheduler.Logger().Warn("iterations dropped: worker pool saturated",
			zap.Int64("dropped", dropped),
			zap.Int("maxVUs", pool))
	}
	return nil
}

func (e *arrivalExecutor) startedAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startTime
}

// dispatch starts one scheduled iteration, or drops it when the pool is saturated.
func (e *arrivalExecutor) dispatch(scheduler *performance.Scheduler, pool int) {
	w := e.acquire(scheduler, pool)
	if w == nil {
		e.dropped.Add(1)
		_ = scheduler.Sink().Add(performance.MetricDroppedIterations, 1, scheduler.Tags())
		return
	}

	e.dispatched.Add(1)
	e.busy.Add(1)
	scheduler.Go(func() {
		defer func() {
			e.busy.Add(-1)
			e.idle <- w
		}()
		_ = w.RunIteration()
	})
}

// acquire never blocks: an idle worker, a newly spawned one, or nil.
func (e *arrivalExecutor) acquire(scheduler *performance.Scheduler, pool int) *performance.Worker {
	select {
	case w := <-e.idle:
		return w
	default:
	}

	if int(e.spawned.Load()) >= pool {
		return nil
	}
	e.spawned.Add(1)
	return scheduler.SpawnWorker()
}

// GetActiveVUs returns the number of workers running an iteration.
func (e *arrivalExecutor) GetActiveVUs() int {
	return int(e.busy.Load())
}

// GetStats returns executor statistics.
func (e *arrivalExecutor) GetStats() *Stats {
	s := e.stats()
	s.ActiveVUs = int(e.busy.Load())
	s.MaxVUs = e.config.PoolSize()
	s.Iterations = e.dispatched.Load()
	s.Dropped = e.dropped.Load()
	s.CurrentRate = math.Float64frombits(e.rate.Load())
	s.TargetRate = s.CurrentRate
	return s
}

