package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/tradeload/internal/performance/config"
	"github.com/wesleyorama2/tradeload/internal/performance/payload"
)

// generateOptions are the flags of the generate command.
type generateOptions struct {
	count      int
	seed       int64
	pretty     bool
	configFile string
}

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print sample trades",
		Long: `Print generated trades as JSON, one per line.

  tradeload generate -n 5 --seed 1
  tradeload generate -n 1 --pretty -c ingest.yaml   # use the file's generator settings`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts generateOptions
			opts.count, _ = cmd.Flags().GetInt("count")
			opts.seed, _ = cmd.Flags().GetInt64("seed")
			opts.pretty, _ = cmd.Flags().GetBool("pretty")
			opts.configFile, _ = cmd.Flags().GetString("config")
			return generateTrades(opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntP("count", "n", 1, "Number of trades")
	cmd.Flags().Int64("seed", 0, "Random seed (0 picks one)")
	cmd.Flags().Bool("pretty", false, "Indent the JSON output")
	cmd.Flags().StringP("config", "c", "", "Take generator settings from this configuration file")
	return cmd
}

func generateTrades(opts generateOptions, w io.Writer) error {
	if opts.count < 1 {
		return withCode(ExitConfigError, fmt.Errorf("count must be > 0, got %d", opts.count))
	}

	genCfg := payload.DefaultGeneratorConfig()
	if opts.configFile != "" {
		cfg, err := config.Load(opts.configFile)
		if err != nil {
			return withCode(ExitConfigError, err)
		}
		if cfg.Settings.Generator != nil {
			genCfg = *cfg.Settings.Generator
		}
	}
	gen, err := payload.NewTradeGenerator(genCfg)
	if err != nil {
		return withCode(ExitConfigError, err)
	}

	seed := opts.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	enc := json.NewEncoder(w)
	if opts.pretty {
		enc.SetIndent("", "  ")
	}
	for i := 0; i < opts.count; i++ {
		if err := enc.Encode(gen.Generate(rng, time.Now())); err != nil {
			return fmt.Errorf("failed to write trade: %w", err)
		}
	}
	return nil
}
