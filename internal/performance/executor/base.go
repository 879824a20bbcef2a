package executor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/tradeload/internal/performance"
)

// reconcileInterval is the tick at which executors re-sample their timeline.
const reconcileInterval = 100 * time.Millisecond

// base holds the state every executor kind shares: configuration, the
// scenario clock and the cancellation of the current run.
type base struct {
	kind   Type
	config *Config

	startTime    time.Time
	running      atomic.Bool
	target       atomic.Int64
	currentStage atomic.Int32

	mu         sync.Mutex
	cancelFunc context.CancelFunc
	scheduler  *performance.Scheduler
}

func (b *base) Type() Type {
	return b.kind
}

// Init initializes the executor with configuration.
func (b *base) Init(ctx context.Context, config *Config) error {
	if config.Type != b.kind {
		return fmt.Errorf("invalid config type: expected %s, got %s", b.kind, config.Type)
	}
	if err := config.Validate(); err != nil {
		return err
	}
	b.config = config
	return nil
}

// begin starts the scenario clock and returns the run context, which ends
// after the scheduled duration or when ctx or Stop cancels it.
func (b *base) begin(ctx context.Context, scheduler *performance.Scheduler) (context.Context, context.CancelFunc, error) {
	if b.config == nil {
		return nil, nil, fmt.Errorf("%s: Init must be called before Run", b.kind)
	}

	runCtx, cancel := context.WithTimeout(ctx, b.config.TotalDuration())

	b.mu.Lock()
	b.startTime = time.Now()
	b.cancelFunc = cancel
	b.scheduler = scheduler
	b.mu.Unlock()

	b.running.Store(true)
	return runCtx, cancel, nil
}

func (b *base) end() {
	b.running.Store(false)
}

func (b *base) elapsed() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.startTime.IsZero() {
		return 0
	}
	return time.Since(b.startTime)
}

// reconcile calls tick with the scenario's elapsed time immediately and
// then every interval until ctx is done.
func (b *base) reconcile(ctx context.Context, interval time.Duration, tick func(elapsed time.Duration)) {
	tick(b.elapsed())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(b.elapsed())
		}
	}
}

// GetProgress returns current progress (0.0 to 1.0).
func (b *base) GetProgress() float64 {
	if !b.running.Load() {
		b.mu.Lock()
		started := !b.startTime.IsZero()
		b.mu.Unlock()
		if started {
			return 1.0
		}
		return 0.0
	}

	total := b.config.TotalDuration()
	if total == 0 {
		return 1.0
	}
	return math.Min(float64(b.elapsed())/float64(total), 1.0)
}

// Stop ends a running scenario early; in-flight iterations still get the
// graceful stop window.
func (b *base) Stop(ctx context.Context) error {
	b.mu.Lock()
	cancel := b.cancelFunc
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// stats fills the fields every executor reports.
func (b *base) stats() *Stats {
	b.mu.Lock()
	start := b.startTime
	sched := b.scheduler
	b.mu.Unlock()

	s := &Stats{
		StartTime:     start,
		CurrentTime:   time.Now(),
		TotalDuration: b.config.TotalDuration(),
		TargetVUs:     int(b.target.Load()),
		CurrentStage:  int(b.currentStage.Load()),
		TotalStages:   len(b.config.Stages),
	}
	if !start.IsZero() {
		s.Elapsed = time.Since(start)
	}
	if s.CurrentStage < len(b.config.Stages) {
		s.CurrentStageName = b.config.Stages[s.CurrentStage].Name
	}
	if sched != nil {
		s.ActiveVUs = sched.LiveCount()
		s.DrainingVUs = sched.DrainingCount()
		s.Iterations = sched.Iterations()
	}
	return s
}
