package executor

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/tradeload/internal/performance"
)

// vuExecutor is the closed-model core shared by constant-vus and
// ramping-vus: on every reconcile tick the live worker count is moved to
// the rounded timeline target.
type vuExecutor struct {
	base
	timeline func(*Config) *Timeline
}

// Run starts the executor and blocks until completion.
func (e *vuExecutor) Run(ctx context.Context, scheduler *performance.Scheduler) error {
	runCtx, cancel, err := e.begin(ctx, scheduler)
	if err != nil {
		return err
	}
	defer cancel()
	defer e.end()

	tl := e.timeline(e.config)
	rampDown := e.config.GracefulRampDown

	e.reconcile(runCtx, reconcileInterval, func(elapsed time.Duration) {
		target := int(math.Round(tl.ValueAt(elapsed)))
		e.target.Store(int64(target))
		e.currentStage.Store(int32(tl.StageAt(elapsed)))
		scheduler.Scale(target, rampDown)
	})

	// Scenario over: remaining workers get the graceful stop window only.
	e.target.Store(0)
	grace := e.config.GracefulStop
	if !scheduler.Shutdown(grace) {
		scheduler.Logger().Info("scenario ended with force-stopped iterations",
			zap.String("executor", string(e.kind)),
			zap.Duration("gracefulStop", grace))
	}
	return nil
}

// GetActiveVUs returns current live worker count.
func (e *vuExecutor) GetActiveVUs() int {
	e.mu.Lock()
	sched := e.scheduler
	e.mu.Unlock()
	if sched == nil {
		return 0
	}
	return sched.LiveCount()
}

// GetStats returns executor statistics.
func (e *vuExecutor) GetStats() *Stats {
	return e.stats()
}
