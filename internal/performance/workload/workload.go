// Package workload turns a loaded configuration into an engine plan: the
// built-in iteration functions, the setup hook that opens targets and
// builds the trade-ID pool, and the teardown hook that closes them.
package workload

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/tradeload/internal/performance/config"
	"github.com/wesleyorama2/tradeload/internal/performance/engine"
	"github.com/wesleyorama2/tradeload/internal/performance/metrics"
	"github.com/wesleyorama2/tradeload/internal/performance/payload"
	"github.com/wesleyorama2/tradeload/internal/performance/transport"
)

// Metric names recorded by the workloads, besides the per-operation
// <op>_requests, <op>_duration and <op>_success.
const (
	MetricChecks          = "checks"
	MetricTradesPublished = "trades_published"
)

// ErrNoResources is returned by an iteration that runs without the value
// produced by Setup.
var ErrNoResources = errors.New("workload: setup data missing")

// Resources is what Setup produces. It is shared by every iteration; only
// the trade-ID pool changes after Setup returns, and it is swapped
// atomically.
type Resources struct {
	ids atomic.Pointer[payload.IDPool]

	// Targets holds the instrumented transporters by target name.
	Targets map[string]transport.Transporter

	Started time.Time

	// stopRefresh ends the trade-ID refresher, if one is running.
	stopRefresh func()
}

// IDs returns the current trade-ID pool, or nil when no scenario reads trades.
func (r *Resources) IDs() *payload.IDPool {
	return r.ids.Load()
}

// SetIDs replaces the trade-ID pool.
func (r *Resources) SetIDs(pool *payload.IDPool) {
	r.ids.Store(pool)
}

// Target returns the transporter opened for name.
func (r *Resources) Target(name string) (transport.Transporter, error) {
	t, ok := r.Targets[name]
	if !ok {
		return nil, fmt.Errorf("workload: target %s is not open", name)
	}
	return t, nil
}

func resourcesFrom(data any) (*Resources, error) {
	res, ok := data.(*Resources)
	if !ok || res == nil {
		return nil, ErrNoResources
	}
	return res, nil
}

// Builder assembles plans. The zero value is not usable; see NewBuilder.
type Builder struct {
	sink   *metrics.Sink
	logger *zap.Logger

	// open creates the raw transporter of a target; replaced in tests.
	open func(ctx context.Context, name string, tc *config.TargetConfig) (transport.Transporter, error)

	// loadIDs builds a trade-ID pool; replaced in tests.
	loadIDs func(ctx context.Context, ids *config.TradeIDsConfig, seed int64) (*payload.IDPool, error)
}

// NewBuilder creates a Builder whose workloads record into sink.
// The same sink must be handed to the engine with engine.WithSink.
func NewBuilder(sink *metrics.Sink, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		sink:    sink,
		logger:  logger.With(zap.String("component", "workload")),
		open:    OpenTarget,
		loadIDs: LoadTradeIDs,
	}
}

// Build converts cfg into a plan. cfg must already be defaulted and valid.
func (b *Builder) Build(cfg *config.TestConfig) (engine.Plan, error) {
	thresholds, err := cfg.ParseThresholds()
	if err != nil {
		return engine.Plan{}, err
	}

	genCfg := payload.DefaultGeneratorConfig()
	if cfg.Settings.Generator != nil {
		genCfg = *cfg.Settings.Generator
	}
	gen, err := payload.NewTradeGenerator(genCfg)
	if err != nil {
		return engine.Plan{}, fmt.Errorf("trade generator: %w", err)
	}

	plan := engine.Plan{
		Name:       cfg.Name,
		Thresholds: thresholds,
		Seed:       cfg.Settings.Seed,
	}

	used := make(map[string]bool)
	needIDs := false

	names := make([]string, 0, len(cfg.Scenarios))
	for name := range cfg.Scenarios {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sc := cfg.Scenarios[name]
		ec, err := sc.ExecutorConfig(name)
		if err != nil {
			return engine.Plan{}, fmt.Errorf("scenario %s: %w", name, err)
		}
		tc := cfg.Targets[sc.Target]
		if tc == nil {
			return engine.Plan{}, fmt.Errorf("scenario %s: unknown target %s", name, sc.Target)
		}

		var exec engine.ExecFunc
		switch sc.Exec {
		case config.ExecReadTrade:
			exec = b.readTrade(sc)
			needIDs = true
		case config.ExecPublishTrade:
			exec = b.publishTrade(sc, tc.Type, gen)
		case config.ExecScrapeMetrics:
			exec = b.scrapeMetrics(sc)
		default:
			return engine.Plan{}, fmt.Errorf("scenario %s: unknown iteration function %s", name, sc.Exec)
		}
		used[sc.Target] = true

		plan.Scenarios = append(plan.Scenarios, engine.Scenario{
			Config: ec,
			Exec:   exec,
			Tags:   maps.Clone(sc.Tags),
		})
	}

	targets := make(map[string]*config.TargetConfig, len(used))
	for name := range used {
		targets[name] = cfg.Targets[name]
	}

	plan.Setup = b.setup(cfg, targets, needIDs)
	plan.Teardown = b.teardown(time.Duration(cfg.Settings.TeardownTimeout))
	return plan, nil
}

// setup opens every used target, checks health endpoints and builds the
// trade-ID pool.
func (b *Builder) setup(cfg *config.TestConfig, targets map[string]*config.TargetConfig, needIDs bool) engine.SetupFunc {
	timeout := time.Duration(cfg.Settings.SetupTimeout)
	ids := cfg.TradeIDs
	seed := cfg.Settings.Seed

	return func(ctx context.Context) (any, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		res := &Resources{
			Targets: make(map[string]transport.Transporter, len(targets)),
			Started: time.Now(),
		}

		for _, name := range sortedNames(targets) {
			tc := targets[name]
			raw, err := b.open(ctx, name, tc)
			if err != nil {
				closeAll(res.Targets)
				return nil, fmt.Errorf("target %s: %w", name, err)
			}
			if tc.Type == config.TargetHTTP && tc.HealthPath != "" {
				b.checkHealth(ctx, name, raw, tc.HealthPath)
			}
			res.Targets[name] = transport.Instrument(raw, b.sink, tc.Type, b.logger)
		}

		if needIDs {
			pool, err := b.loadIDs(ctx, ids, seed)
			if err != nil {
				closeAll(res.Targets)
				return nil, err
			}
			res.SetIDs(pool)
			b.logger.Info("trade ID pool ready",
				zap.String("source", ids.Source),
				zap.Int("ids", pool.Len()))

			if interval := time.Duration(ids.RefreshInterval); interval > 0 && ids.Source == config.IDSourcePostgres {
				res.stopRefresh = b.startRefresh(res, ids, interval)
			}
		}

		return res, nil
	}
}

// checkHealth logs the health status of an HTTP target. It never fails setup.
func (b *Builder) checkHealth(ctx context.Context, name string, t transport.Transporter, path string) {
	out := transport.Safe(ctx, t, transport.Request{Operation: "health", Path: path})
	if out.Err != nil && out.Status == 0 {
		b.logger.Warn("health check failed", zap.String("target", name), zap.Error(out.Err))
		return
	}
	b.logger.Info("health check",
		zap.String("target", name),
		zap.Int("status", out.Status),
		zap.Duration("duration", out.Duration))
}

func (b *Builder) teardown(timeout time.Duration) engine.TeardownFunc {
	return func(ctx context.Context, data any) error {
		res, err := resourcesFrom(data)
		if err != nil {
			return err
		}
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		if res.stopRefresh != nil {
			res.stopRefresh()
		}

		done := make(chan error, 1)
		go func() { done <- closeAll(res.Targets) }()

		select {
		case err = <-done:
		case <-ctx.Done():
			err = fmt.Errorf("closing targets: %w", ctx.Err())
		}

		b.logger.Info("run finished",
			zap.Time("started", res.Started),
			zap.Duration("span", time.Since(res.Started)))
		return err
	}
}

func closeAll(targets map[string]transport.Transporter) error {
	var errs []error
	for _, name := range sortedNames(targets) {
		if err := targets[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// operationTags returns a copy of tags with the operation tag set.
func operationTags(tags metrics.Tags, op string) metrics.Tags {
	out := make(metrics.Tags, len(tags)+1)
	maps.Copy(out, tags)
	out["operation"] = op
	return out
}

// recordOperation records the per-operation custom metrics of one request.
func recordOperation(sink *metrics.Sink, op string, out transport.Outcome, tags metrics.Tags) {
	_ = sink.Add(op+"_requests", 1, tags)
	_ = sink.Observe(op+"_duration", out.Duration, tags)
	_ = sink.Mark(op+"_success", out.Success, tags)
}

// check records one named boolean into the checks rate.
func check(sink *metrics.Sink, name string, ok bool, tags metrics.Tags) bool {
	t := maps.Clone(tags)
	t["check"] = name
	_ = sink.Mark(MetricChecks, ok, t)
	return ok
}
