package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesleyorama2/tradeload/internal/performance/config"
	"github.com/wesleyorama2/tradeload/internal/performance/engine"
	"github.com/wesleyorama2/tradeload/internal/performance/metrics"
	"github.com/wesleyorama2/tradeload/internal/performance/output"
	"github.com/wesleyorama2/tradeload/internal/performance/workload"
)

// runOptions are the flags of the run command.
type runOptions struct {
	configFile  string
	metricsAddr string
	jsonPath    string
	quiet       bool
	verbose     bool
	noColor     bool

	// progressInterval is how often live progress is refreshed.
	progressInterval time.Duration
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a load test from a configuration file",
		Long: `Run every scenario of a configuration file concurrently, then evaluate
its thresholds.

  tradeload run -c ingest.yaml
  tradeload run -c reads.yaml --metrics-addr :9090 --json result.json

Exit codes: 0 passed, 99 thresholds failed, 104 configuration error,
105 aborted, 107 setup or teardown failure.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := runOptions{progressInterval: time.Second}
			opts.configFile, _ = cmd.Flags().GetString("config")
			opts.metricsAddr, _ = cmd.Flags().GetString("metrics-addr")
			opts.jsonPath, _ = cmd.Flags().GetString("json")
			opts.quiet, _ = cmd.Flags().GetBool("quiet")
			opts.verbose, _ = cmd.Flags().GetBool("verbose")
			opts.noColor, _ = cmd.Flags().GetBool("no-color")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runTest(ctx, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringP("config", "c", "", "Configuration file (YAML or JSON)")
	cmd.Flags().String("metrics-addr", "", "Serve live metrics in Prometheus format on this address")
	cmd.Flags().String("json", "", "Write the result as JSON to this file (- for stdout)")
	cmd.Flags().BoolP("quiet", "q", false, "Print only the final verdict")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

// runTest loads, runs and reports one test. The returned error carries the
// exit code.
func runTest(ctx context.Context, opts runOptions, w io.Writer) error {
	console := output.NewConsole(output.Config{Writer: w, Quiet: opts.quiet, NoColor: opts.noColor})

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		console.PrintError(err)
		return reported(ExitConfigError, err)
	}

	logger, err := newLogger(opts.verbose, cfg.Settings.LogLevel)
	if err != nil {
		console.PrintError(err)
		return reported(ExitConfigError, err)
	}
	defer func() { _ = logger.Sync() }()

	sink := metrics.NewSink()
	plan, err := workload.NewBuilder(sink, logger).Build(cfg)
	if err != nil {
		console.PrintError(err)
		return reported(ExitConfigError, err)
	}
	eng, err := engine.New(plan, engine.WithSink(sink), engine.WithLogger(logger))
	if err != nil {
		console.PrintError(err)
		return reported(ExitConfigError, err)
	}

	addr := opts.metricsAddr
	if addr == "" {
		addr = cfg.Settings.MetricsAddr
	}
	stopServer := func() {}
	if addr != "" {
		stopServer, err = serveMetrics(addr, sink, logger)
		if err != nil {
			console.PrintError(err)
			return reported(ExitSetupFailed, err)
		}
	}
	defer stopServer()

	console.PrintHeader(cfg.Name, eng.Status(), eng.MaxDuration())

	watchCtx, stopWatch := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		console.Watch(watchCtx, eng, opts.progressInterval)
	}()

	result, runErr := eng.Run(ctx)
	stopWatch()
	wg.Wait()

	if result != nil {
		console.PrintSummary(result)
		if opts.jsonPath != "" {
			if err := writeResult(opts.jsonPath, result, w); err != nil {
				logger.Error("failed to write result", zap.String("path", opts.jsonPath), zap.Error(err))
			}
		}
	}

	code := resultCode(result, runErr)
	if code == ExitOK {
		return nil
	}
	if runErr == nil {
		runErr = fmt.Errorf("run finished with exit code %d", code)
	}
	return reported(code, runErr)
}

// resultCode maps the outcome of a run to its exit code.
func resultCode(result *engine.TestResult, err error) int {
	switch {
	case errors.Is(err, engine.ErrConfiguration):
		return ExitConfigError
	case errors.Is(err, engine.ErrSetup), errors.Is(err, engine.ErrTeardown):
		return ExitSetupFailed
	case err != nil || result == nil:
		return ExitError
	case result.Aborted:
		return ExitAborted
	case result.Thresholds != nil && result.Thresholds.ConfigErrors > 0:
		return ExitConfigError
	case !result.Passed:
		return ExitThresholdsFailed
	default:
		return ExitOK
	}
}

// serveMetrics starts the Prometheus endpoint and returns a function that
// stops it.
func serveMetrics(addr string, sink *metrics.Sink, logger *zap.Logger) (func(), error) {
	srv, err := metrics.NewServer(addr, sink, logger)
	if err != nil {
		return nil, fmt.Errorf("metrics server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ctx); err != nil {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}, nil
}

func writeResult(path string, result *engine.TestResult, stdout io.Writer) error {
	if path == "-" {
		return output.WriteJSON(stdout, result)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create result file: %w", err)
	}
	if err := output.WriteJSON(f, result); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
