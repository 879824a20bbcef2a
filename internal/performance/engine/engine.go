// Package engine provides the orchestrator of a test run.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wesleyorama2/tradeload/internal/performance"
	"github.com/wesleyorama2/tradeload/internal/performance/executor"
	"github.com/wesleyorama2/tradeload/internal/performance/metrics"
	"github.com/wesleyorama2/tradeload/internal/performance/threshold"
)

var (
	// ErrConfiguration wraps every error detected before any scenario starts.
	ErrConfiguration = errors.New("configuration error")

	// ErrSetup wraps a failing setup hook.
	ErrSetup = errors.New("setup failed")

	// ErrTeardown wraps a failing teardown hook.
	ErrTeardown = errors.New("teardown failed")

	// ErrAlreadyRunning is returned by Run while a run is in progress.
	ErrAlreadyRunning = errors.New("engine is already running")

	// ErrAlreadyRan is returned by Run once a run has finished. An Engine
	// runs its plan once; build a new one to run again.
	ErrAlreadyRan = errors.New("engine has already run")
)

// ExecFunc is a scenario's iteration function. data is the value returned
// by the setup hook and must be treated as read-only.
type ExecFunc func(ctx context.Context, it *performance.Iteration, data any) error

// SetupFunc runs once before any scenario starts.
type SetupFunc func(ctx context.Context) (any, error)

// TeardownFunc runs once after every scenario has stopped.
type TeardownFunc func(ctx context.Context, data any) error

// Scenario binds an executor configuration to its iteration function.
type Scenario struct {
	Config *executor.Config
	Exec   ExecFunc

	// Tags are added to every metric the scenario records.
	Tags metrics.Tags
}

// Plan is everything a run needs.
type Plan struct {
	Name       string
	Scenarios  []Scenario
	Thresholds []*threshold.Threshold
	Setup      SetupFunc
	Teardown   TeardownFunc

	// Seed makes worker random sources reproducible. Zero picks a random seed.
	Seed int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSink records into sink instead of a fresh one.
func WithSink(sink *metrics.Sink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// Engine is the orchestrator of one test run.
//
// It coordinates:
//   - The setup hook, whose result is shared read-only with every iteration
//   - Concurrent scenario execution, each honouring its start time
//   - The teardown hook
//   - Threshold evaluation against the frozen metric sink
//
// Example usage:
//
//	eng, _ := engine.New(plan, engine.WithLogger(logger))
//	result, err := eng.Run(ctx)
//	fmt.Printf("Test passed: %v\n", result.Passed)
type Engine struct {
	plan   Plan
	sink   *metrics.Sink
	logger *zap.Logger

	runners []*runner

	mu        sync.Mutex
	running   bool
	ran       bool
	startTime time.Time
}

type runner struct {
	scenario Scenario
	executor executor.Executor

	mu      sync.Mutex
	started bool
	result  *ScenarioResult
}

// New validates plan and prepares its executors. Every problem is reported
// in one error wrapping ErrConfiguration.
func New(plan Plan, opts ...Option) (*Engine, error) {
	e := &Engine{plan: plan}
	for _, opt := range opts {
		opt(e)
	}
	if e.sink == nil {
		e.sink = metrics.NewSink()
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.logger = e.logger.With(zap.String("component", "engine"))

	var errs []error
	if len(plan.Scenarios) == 0 {
		errs = append(errs, errors.New("at least one scenario is required"))
	}

	seen := make(map[string]bool)
	for i, sc := range plan.Scenarios {
		if sc.Config == nil {
			errs = append(errs, fmt.Errorf("scenario %d: missing executor configuration", i))
			continue
		}
		name := sc.Config.Name
		switch {
		case name == "":
			errs = append(errs, fmt.Errorf("scenario %d: name is required", i))
		case seen[name]:
			errs = append(errs, fmt.Errorf("scenario %s: duplicate name", name))
		}
		seen[name] = true

		if sc.Exec == nil {
			errs = append(errs, fmt.Errorf("scenario %s: iteration function is required", name))
		}

		exec, err := executor.CreateAndInitExecutor(context.Background(), sc.Config)
		if err != nil {
			errs = append(errs, fmt.Errorf("scenario %s: %w", name, err))
			continue
		}
		e.runners = append(e.runners, &runner{scenario: sc, executor: exec})
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, errors.Join(errs...))
	}
	return e, nil
}

// Sink returns the metric sink the run records into.
func (e *Engine) Sink() *metrics.Sink {
	return e.sink
}

// Run executes setup, all scenarios, teardown and threshold evaluation.
//
// Cancelling ctx aborts the run: scenarios stop with their graceful stop
// window, teardown still runs, and the result is marked Aborted.
// A setup or teardown failure returns an error wrapping ErrSetup or
// ErrTeardown along with the partial result.
func (e *Engine) Run(ctx context.Context) (*TestResult, error) {
	e.mu.Lock()
	switch {
	case e.running:
		e.mu.Unlock()
		return nil, ErrAlreadyRunning
	case e.ran:
		e.mu.Unlock()
		return nil, ErrAlreadyRan
	}
	e.running = true
	e.startTime = time.Now()
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.ran = true
		e.mu.Unlock()
	}()

	result := &TestResult{
		Name:      e.plan.Name,
		StartTime: e.startTime,
		Scenarios: make(map[string]*ScenarioResult),
	}
	finish := func(err error) (*TestResult, error) {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
		if err != nil {
			result.Error = err.Error()
			result.Passed = false
		}
		return result, err
	}

	var data any
	if e.plan.Setup != nil {
		e.logger.Info("running setup")
		d, err := e.plan.Setup(ctx)
		if err != nil {
			return finish(fmt.Errorf("%w: %w", ErrSetup, err))
		}
		data = d
	}

	scenariosStart := time.Now()
	e.runScenarios(ctx, data)
	runDuration := time.Since(scenariosStart)

	for _, r := range e.runners {
		res := r.snapshot()
		result.Scenarios[res.Name] = res
	}
	result.Aborted = ctx.Err() != nil

	e.sink.Freeze()

	if e.plan.Teardown != nil {
		e.logger.Info("running teardown")
		if err := e.plan.Teardown(context.WithoutCancel(ctx), data); err != nil {
			result.Metrics = Summarize(e.sink)
			return finish(fmt.Errorf("%w: %w", ErrTeardown, err))
		}
	}

	result.Metrics = Summarize(e.sink)
	result.Thresholds = threshold.Evaluate(e.sink, e.plan.Thresholds, runDuration)
	result.Passed = result.Thresholds.Passed

	e.logger.Info("run finished",
		zap.Duration("duration", time.Since(e.startTime)),
		zap.Bool("passed", result.Passed),
		zap.Bool("aborted", result.Aborted))
	return finish(nil)
}

// runScenarios runs every scenario concurrently and waits for all of them.
// A failing scenario never stops the others.
func (e *Engine) runScenarios(ctx context.Context, data any) {
	var g errgroup.Group
	for i, r := range e.runners {
		seed := e.plan.Seed
		if seed != 0 {
			seed += int64(i)
		}
		g.Go(func() error {
			if err := e.runScenario(ctx, r, data, seed); err != nil {
				e.logger.Error("scenario failed",
					zap.String("scenario", r.scenario.Config.Name),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) runScenario(ctx context.Context, r *runner, data any, seed int64) error {
	cfg := r.scenario.Config
	logger := e.logger.With(zap.String("scenario", cfg.Name))

	r.mu.Lock()
	r.result = &ScenarioResult{Name: cfg.Name, Executor: string(cfg.Type)}
	r.mu.Unlock()

	if cfg.StartTime > 0 {
		timer := time.NewTimer(cfg.StartTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.finish(nil, time.Time{}, nil, true)
			logger.Info("scenario skipped: run aborted before its start time")
			return nil
		case <-timer.C:
		}
	}
	if ctx.Err() != nil {
		r.finish(nil, time.Time{}, nil, true)
		return nil
	}

	exec := r.scenario.Exec
	sched, err := performance.NewScheduler(ctx, performance.SchedulerConfig{
		Scenario: cfg.Name,
		Exec: func(ctx context.Context, it *performance.Iteration) error {
			return exec(ctx, it, data)
		},
		Sink:   e.sink,
		Tags:   r.scenario.Tags,
		Pacing: pacingOf(cfg),
		Seed:   seed,
		Logger: e.logger,
	})
	if err != nil {
		r.finish(nil, time.Time{}, err, false)
		return err
	}

	r.mu.Lock()
	r.started = true
	r.mu.Unlock()

	logger.Info("scenario started", zap.String("executor", string(cfg.Type)))
	started := time.Now()
	err = r.executor.Run(ctx, sched)
	r.finish(r.executor.GetStats(), started, err, false)
	logger.Info("scenario finished",
		zap.Duration("duration", time.Since(started)),
		zap.Int64("iterations", sched.Iterations()))
	return err
}

func pacingOf(cfg *executor.Config) performance.Pacing {
	if cfg.Pacing == nil {
		return performance.Pacing{}
	}
	return *cfg.Pacing
}

func (r *runner) finish(stats *executor.Stats, started time.Time, err error, skipped bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := r.result
	res.Skipped = skipped
	if err != nil {
		res.Error = err.Error()
	}
	if stats != nil {
		res.StartTime = started
		res.Duration = time.Since(started)
		res.Iterations = stats.Iterations
		res.Dropped = stats.Dropped
		res.MaxVUs = executor.CalculateMaxVUs(r.scenario.Config)
	}
}

func (r *runner) snapshot() *ScenarioResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result == nil {
		return &ScenarioResult{Name: r.scenario.Config.Name, Executor: string(r.scenario.Config.Type), Skipped: true}
	}
	res := *r.result
	return &res
}

// ScenarioStatus is a live view of one scenario.
type ScenarioStatus struct {
	Name     string
	Type     executor.Type
	Started  bool
	Progress float64
	Stats    *executor.Stats
}

// Status returns a live view of every scenario, ordered by name.
func (e *Engine) Status() []ScenarioStatus {
	out := make([]ScenarioStatus, 0, len(e.runners))
	for _, r := range e.runners {
		r.mu.Lock()
		started := r.started
		r.mu.Unlock()

		st := ScenarioStatus{
			Name:    r.scenario.Config.Name,
			Type:    r.scenario.Config.Type,
			Started: started,
		}
		if started {
			st.Progress = r.executor.GetProgress()
			st.Stats = r.executor.GetStats()
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Elapsed returns the time since Run started.
func (e *Engine) Elapsed() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.startTime.IsZero() {
		return 0
	}
	return time.Since(e.startTime)
}

// MaxDuration is the longest the scenarios of the plan can take, start
// times and graceful stops included.
func (e *Engine) MaxDuration() time.Duration {
	var longest time.Duration
	for _, r := range e.runners {
		if d := r.scenario.Config.MaxDuration(); d > longest {
			longest = d
		}
	}
	return longest
}
