package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/tradeload/internal/performance/config"
	"github.com/wesleyorama2/tradeload/internal/performance/engine"
	"github.com/wesleyorama2/tradeload/internal/performance/metrics"
	"github.com/wesleyorama2/tradeload/internal/performance/output"
	"github.com/wesleyorama2/tradeload/internal/performance/workload"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration file without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile, _ := cmd.Flags().GetString("config")
			noColor, _ := cmd.Flags().GetBool("no-color")
			return validateConfig(configFile, noColor, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringP("config", "c", "", "Configuration file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

// validateConfig loads the file and prepares every scenario executor, so
// schedule problems are caught as well as document problems. No target is
// contacted.
func validateConfig(path string, noColor bool, w io.Writer) error {
	console := output.NewConsole(output.Config{Writer: w, NoColor: noColor})

	cfg, err := config.Load(path)
	if err != nil {
		console.PrintError(err)
		return reported(ExitConfigError, err)
	}

	plan, err := workload.NewBuilder(metrics.NewSink(), nil).Build(cfg)
	if err != nil {
		console.PrintError(err)
		return reported(ExitConfigError, err)
	}
	eng, err := engine.New(plan)
	if err != nil {
		console.PrintError(err)
		return reported(ExitConfigError, err)
	}

	name := cfg.Name
	if name == "" {
		name = path
	}
	fmt.Fprintf(w, "%s: configuration is valid\n", name)
	for _, s := range eng.Status() {
		fmt.Fprintf(w, "  %-24s %s\n", s.Name, s.Type)
	}
	fmt.Fprintf(w, "  %-24s %s\n", "max duration", eng.MaxDuration())
	return nil
}
