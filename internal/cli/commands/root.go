// Package commands implements C10, the Command Orchestrator: one cobra
// subcommand per CLI surface (match, sync, convert, detect-encoding,
// config, cache, generate-completion), wiring C1-C9 using a configuration
// Snapshot, grounded on the teacher's internal/cli/commands root.go
// RunWithExit/exitOnError idiom generalized to SubX's exit-code contract.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/subx-cli/subx/internal/config"
	"github.com/subx-cli/subx/internal/core"
)

// RootCmd is the base command when subx is invoked without a subcommand.
var RootCmd = &cobra.Command{
	Use:   "subx <command>",
	Short: "Match, sync, and convert subtitle files",
	Long: `subx associates subtitle files with their matching video files using
an AI matcher, synchronizes subtitle timing against detected speech, and
converts between subtitle formats.

Example:
  subx match ./downloads --copy
  subx sync -v movie.mkv -s movie.srt
  subx convert ./subs --format vtt`,
}

func init() {
	RootCmd.PersistentFlags().Bool("verbose", false, "print per-task diagnostics")
	RootCmd.PersistentFlags().Bool("json-logs", false, "emit structured JSON logs instead of console output")
	RootCmd.SilenceUsage = true
	RootCmd.SilenceErrors = true
}

// Run executes the command tree and maps the returned error to an exit
// code per spec.md §6, exiting the process.
func Run() {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	RootCmd.SetContext(ctx)
	if err := RootCmd.Execute(); err != nil {
		printErr(err)
		os.Exit(exitCodeFor(err))
	}
	if ctx.Err() != nil {
		os.Exit(130)
	}
}

// exitCodeFor maps an error to spec.md §6's exit-code contract: 0 success
// (handled by the caller not invoking this at all), 1 task failure, 2
// usage/configuration error, 3 an ErrAbortAllTasks error, 130
// cancellation. A corrupt cache entry is read as a cache miss
// (cache.Store.Get), so cache corruption has no exit code of its own.
func exitCodeFor(err error) int {
	if err == context.Canceled {
		return 130
	}
	var taskErr *core.TaskError
	if te, ok := err.(*core.TaskError); ok {
		taskErr = te
	}
	if taskErr != nil {
		return taskErr.Kind.ExitCode()
	}
	return 2 // cobra usage errors (bad flags, unknown command)
}

// newLogger builds the root zerolog.Logger from the --verbose/--json-logs
// persistent flags, matching the teacher's NewRootHandler construction.
func newLogger(cmd *cobra.Command) zerolog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonLogs, _ := cmd.Flags().GetBool("json-logs")
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return core.NewRootHandler(level, jsonLogs, nil).Logger
}

// loadSnapshot merges the given flag overlay (built by each subcommand
// from its own cobra.Command flags) into a configuration Snapshot.
func loadSnapshot(overlay map[string]interface{}) (*config.Snapshot, error) {
	var flags *viper.Viper
	if len(overlay) > 0 {
		flags = viper.New()
		for k, v := range overlay {
			flags.Set(k, v)
		}
	}
	return config.Load(flags)
}

// printErr writes a user-facing error line without a stack trace, per
// spec §7's "no stack traces in normal output" rule.
func printErr(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}
