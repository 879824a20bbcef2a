package executor_test

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wesleyorama2/tradeload/internal/performance"
	"github.com/wesleyorama2/tradeload/internal/performance/executor"
	"github.com/wesleyorama2/tradeload/internal/performance/metrics"
	"github.com/wesleyorama2/tradeload/internal/performance/transport"
)

func TestConstantVUs_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	// Every call succeeds with a synthetic latency of 50ms.
	fake := transport.Func(func(ctx context.Context, req transport.Request) transport.Outcome {
		start := time.Now()
		select {
		case <-ctx.Done():
			return transport.Outcome{Duration: time.Since(start), ErrorKind: transport.ErrorKindCancelled, Err: ctx.Err()}
		case <-time.After(50 * time.Millisecond):
		}
		return transport.Outcome{Success: true, Duration: time.Since(start), Status: 200}
	})

	sink := metrics.NewSink()
	tr := transport.Instrument(fake, sink, "fake", nil)
	sched, err := performance.NewScheduler(context.Background(), performance.SchedulerConfig{
		Scenario: "e2e",
		Sink:     sink,
		Exec: func(ctx context.Context, it *performance.Iteration) error {
			tr.Execute(ctx, transport.Request{Operation: "op", Tags: it.Tags})
			return nil
		},
	})
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	e := executor.NewConstantVUs()
	if err := e.Init(context.Background(), &executor.Config{
		Type:         executor.TypeConstantVUs,
		VUs:          10,
		Duration:     500 * time.Millisecond,
		GracefulStop: time.Second,
	}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if err := e.Run(context.Background(), sched); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// 10 workers * (500ms / 50ms) = 100 requests, minus scheduling slack.
	reqs := counterSum(sink, "fake_reqs")
	if reqs < 80 || reqs > 110 {
		t.Errorf("fake_reqs = %v, want ~100", reqs)
	}
	failed, err := sink.Rate("fake_req_failed", nil)
	if err != nil {
		t.Fatalf("Rate(fake_req_failed) error = %v", err)
	}
	if failed != 0 {
		t.Errorf("fake_req_failed = %v, want 0", failed)
	}
	if iters := counterSum(sink, performance.MetricIterations); iters != reqs {
		t.Errorf("iterations = %v, want %v (one request per iteration)", iters, reqs)
	}

	if e.GetProgress() != 1.0 {
		t.Errorf("GetProgress() after Run = %v, want 1", e.GetProgress())
	}
	if e.GetActiveVUs() != 0 {
		t.Errorf("GetActiveVUs() after Run = %d, want 0", e.GetActiveVUs())
	}
}

func TestConstantVUs_HoldsExactCount(t *testing.T) {
	var mu sync.Mutex
	workers := map[int]bool{}
	sched, _ := newScheduler(t, "hold", func(ctx context.Context, it *performance.Iteration) error {
		mu.Lock()
		workers[it.WorkerID] = true
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		return nil
	})

	e := executor.NewConstantVUs()
	_ = e.Init(context.Background(), &executor.Config{Type: executor.TypeConstantVUs, VUs: 4, Duration: 300 * time.Millisecond})

	done := make(chan struct{})
	go func() {
		_ = e.Run(context.Background(), sched)
		close(done)
	}()

	time.Sleep(150 * time.Millisecond)
	if got := e.GetActiveVUs(); got != 4 {
		t.Errorf("GetActiveVUs() mid-run = %d, want 4", got)
	}
	stats := e.GetStats()
	if stats.TargetVUs != 4 {
		t.Errorf("Stats.TargetVUs = %d, want 4", stats.TargetVUs)
	}
	<-done

	if len(workers) != 4 {
		t.Errorf("distinct workers = %d, want 4", len(workers))
	}
}

func TestRampingVUs_TracksTarget(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	sched, _ := newScheduler(t, "ramp", sleepIteration(5*time.Millisecond))
	stages := []executor.Stage{
		{Duration: time.Second, Target: 5},
		{Duration: time.Second, Target: 0},
	}
	tl := executor.NewTimeline(0, stages)

	e := executor.NewRampingVUs()
	if err := e.Init(context.Background(), &executor.Config{
		Type:             executor.TypeRampingVUs,
		Stages:           stages,
		GracefulRampDown: time.Second,
	}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		_ = e.Run(context.Background(), sched)
		close(done)
	}()

	var samples, maxDiff int
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-done:
			break loop
		case <-ticker.C:
			stats := e.GetStats()
			if stats.Elapsed <= 0 || stats.Elapsed >= tl.Duration() {
				continue
			}
			want := tl.ValueAt(stats.Elapsed)
			diff := int(math.Abs(float64(sched.LiveCount()) - want))
			if diff > maxDiff {
				maxDiff = diff
			}
			samples++
		}
	}

	if samples < 10 {
		t.Fatalf("only %d samples taken", samples)
	}
	if maxDiff > 1 {
		t.Errorf("live worker count strayed %d from the interpolated target", maxDiff)
	}
	if sched.LiveCount() != 0 {
		t.Errorf("LiveCount() after Run = %d, want 0", sched.LiveCount())
	}
}

func TestRampingVUs_GracefulRampDown(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	// Iterations never finish on their own, so every worker removed by the
	// ramp-down is eventually force-stopped. Record when that happens.
	var (
		mu         sync.Mutex
		cancelled  []time.Time
		inFlight   atomic.Int32
		runStarted time.Time
	)
	sched, sink := newScheduler(t, "rampdown", func(ctx context.Context, it *performance.Iteration) error {
		inFlight.Add(1)
		defer inFlight.Add(-1)
		<-ctx.Done()
		mu.Lock()
		cancelled = append(cancelled, time.Now())
		mu.Unlock()
		return ctx.Err()
	})

	const (
		hold  = 300 * time.Millisecond
		grace = 400 * time.Millisecond
	)
	e := executor.NewRampingVUs()
	if err := e.Init(context.Background(), &executor.Config{
		Type:     executor.TypeRampingVUs,
		StartVUs: 5,
		Stages: []executor.Stage{
			{Duration: hold, Target: 5},
			{Duration: 0, Target: 0},
			{Duration: time.Second, Target: 0},
		},
		GracefulRampDown: grace,
		GracefulStop:     time.Second,
	}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	runStarted = time.Now()
	if err := e.Run(context.Background(), sched); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(cancelled) != 5 {
		t.Fatalf("force-stopped iterations = %d, want 5", len(cancelled))
	}
	// Workers are signalled no earlier than the end of the hold stage.
	for _, at := range cancelled {
		if at.Sub(runStarted) < hold+grace {
			t.Errorf("worker force-stopped %v after start, before hold+grace (%v)", at.Sub(runStarted), hold+grace)
		}
	}

	if inFlight.Load() != 0 {
		t.Errorf("%d iterations still in flight after Run", inFlight.Load())
	}
	interrupted := counterSum(sink, performance.MetricInterruptedIterations)
	if interrupted != 5 {
		t.Errorf("interrupted_iterations = %v, want 5 (one outcome per in-flight iteration)", interrupted)
	}
	if counterSum(sink, performance.MetricIterations) != 0 {
		t.Error("force-stopped iterations must not also count as completed")
	}
}

func TestRampingVUs_RampDownLetsIterationsFinish(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	sched, sink := newScheduler(t, "finish", sleepIteration(150*time.Millisecond))
	e := executor.NewRampingVUs()
	_ = e.Init(context.Background(), &executor.Config{
		Type:     executor.TypeRampingVUs,
		StartVUs: 5,
		Stages: []executor.Stage{
			{Duration: 200 * time.Millisecond, Target: 5},
			{Duration: 0, Target: 0},
			{Duration: 400 * time.Millisecond, Target: 0},
		},
		GracefulRampDown: time.Second,
		GracefulStop:     time.Second,
	})

	if err := e.Run(context.Background(), sched); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := counterSum(sink, performance.MetricInterruptedIterations); got != 0 {
		t.Errorf("interrupted_iterations = %v, want 0 within the grace window", got)
	}
	if got := counterSum(sink, performance.MetricIterations); got < 5 {
		t.Errorf("iterations = %v, want >= 5", got)
	}
}

func TestRampingVUs_ZeroGraceForceStopsPromptly(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	// The only iteration blocks until cancelled; with no ramp-down grace the
	// drop from 1 to 0 workers must cancel it right away.
	cancelledAt := make(chan time.Time, 1)
	sched, sink := newScheduler(t, "zero-grace", func(ctx context.Context, it *performance.Iteration) error {
		<-ctx.Done()
		select {
		case cancelledAt <- time.Now():
		default:
		}
		return ctx.Err()
	})

	const hold = 200 * time.Millisecond
	e := executor.NewRampingVUs()
	if err := e.Init(context.Background(), &executor.Config{
		Type:     executor.TypeRampingVUs,
		StartVUs: 1,
		Stages: []executor.Stage{
			{Duration: hold, Target: 1},
			{Duration: 0, Target: 0},
			{Duration: 3 * time.Second, Target: 0},
		},
		GracefulRampDown: 0,
		GracefulStop:     time.Second,
	}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	start := time.Now()
	done := make(chan struct{})
	go func() {
		_ = e.Run(context.Background(), sched)
		close(done)
	}()

	select {
	case at := <-cancelledAt:
		if since := at.Sub(start); since > hold+500*time.Millisecond {
			t.Errorf("in-flight iteration cancelled %v after start, want soon after %v", since, hold)
		}
	case <-time.After(2500 * time.Millisecond):
		t.Fatal("in-flight iteration was not force-stopped by a zero ramp-down grace")
	}
	<-done

	if got := counterSum(sink, performance.MetricInterruptedIterations); got != 1 {
		t.Errorf("interrupted_iterations = %v, want 1", got)
	}
}

func TestConstantVUs_StopEndsEarly(t *testing.T) {
	sched, _ := newScheduler(t, "stop", sleepIteration(5*time.Millisecond))
	e := executor.NewConstantVUs()
	_ = e.Init(context.Background(), &executor.Config{Type: executor.TypeConstantVUs, VUs: 2, Duration: time.Hour})

	done := make(chan struct{})
	go func() {
		_ = e.Run(context.Background(), sched)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	_ = e.Stop(context.Background())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after Stop()")
	}
}
