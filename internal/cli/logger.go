package cli

import (
	"fmt"

	"go.uber.org/zap"
)

// newLogger builds the process logger. Verbose runs get human-readable
// development output at debug level; otherwise JSON at level goes to stderr.
func newLogger(verbose bool, level string) (*zap.Logger, error) {
	if verbose {
		cfg := zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stderr"}
		return cfg.Build()
	}

	if level == "" {
		level = "info"
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.Sampling = nil
	return cfg.Build()
}
