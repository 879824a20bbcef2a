package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// Exit codes returned by Execute.
const (
	ExitOK               = 0
	ExitError            = 1
	ExitThresholdsFailed = 99
	ExitConfigError      = 104
	ExitAborted          = 105
	ExitSetupFailed      = 107
)

// exitError carries the process exit code of a failed command.
type exitError struct {
	code int
	err  error

	// reported errors have already been printed by the command.
	reported bool
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit code %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

func reported(code int, err error) error {
	return &exitError{code: code, err: err, reported: true}
}

// exitCode maps an error returned by a command to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitError
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tradeload",
		Short:   "Load generator for trade ingestion and trade reader services",
		Version: version,
		Long: `tradeload drives trade services with declarative load scenarios.

It publishes synthetic trades to Kafka, Redis streams, MQTT or HTTP,
reads them back through the reader services, and evaluates pass/fail
thresholds over the collected metrics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			// If no subcommand is provided, print help
			cmd.Help()
		},
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output with development logging")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newGenerateCmd())
	return cmd
}

// Execute runs the command line and returns the process exit code.
// This is called by main.main().
func Execute() int {
	return execute(NewRootCmd(), os.Args[1:])
}

func execute(cmd *cobra.Command, args []string) int {
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		return ExitOK
	}

	var ee *exitError
	if !errors.As(err, &ee) || !ee.reported {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	}
	return exitCode(err)
}
