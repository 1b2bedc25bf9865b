package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/haldane/snapvet/internal/dispatch"
	"github.com/haldane/snapvet/internal/replay"
	"github.com/haldane/snapvet/internal/report"
	"github.com/haldane/snapvet/internal/snapshot"
	"github.com/haldane/snapvet/internal/store"
)

// ReplayOptions holds flags shared by the four mode commands.
type ReplayOptions struct {
	*RootOptions
	Engine  string
	Jobs    int
	Serial  bool
	Config  string
	History string
	Timeout time.Duration

	// StampVersion overrides the build version used to restamp baselines
	// in write mode.
	StampVersion string

	// EngineOverride allows tests to inject an in-process engine.
	// If nil, a ProcessEngine for the configured binary is used.
	EngineOverride replay.Engine
}

// newReplayCommand builds one mode subcommand; the four modes share every
// flag except write's --stamp-version.
func newReplayCommand(opts *ReplayOptions, mode replay.Mode, short, long string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           fmt.Sprintf("%s <corpus-dir>", mode),
		Short:         short,
		Long:          long,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, mode, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Engine, "engine", "", "replay engine binary (overrides config)")
	cmd.Flags().IntVar(&opts.Jobs, "jobs", 0, "worker pool capacity (default 4)")
	cmd.Flags().BoolVar(&opts.Serial, "serial", false, "run jobs inline with no parallelism")
	cmd.Flags().StringVar(&opts.Config, "config", "", "config file (default <corpus-dir>/"+ConfigFileName+")")
	cmd.Flags().StringVar(&opts.History, "history", "", "record the run in this SQLite history database")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-job engine timeout (0 disables)")

	return cmd
}

func runReplay(opts *ReplayOptions, mode replay.Mode, corpusDir string, cmd *cobra.Command) error {
	if info, err := os.Stat(corpusDir); err != nil || !info.IsDir() {
		return commandError(cmd, opts.Format, "E_COMMAND",
			NewExitError(ExitCommandError, fmt.Sprintf("corpus directory not found: %s", corpusDir)))
	}

	cfg, err := loadEffectiveConfig(opts, corpusDir)
	if err != nil {
		return commandError(cmd, opts.Format, "E_COMMAND",
			WrapExitError(ExitCommandError, "failed to load config", err))
	}

	engine := opts.EngineOverride
	if engine == nil {
		if cfg.Engine == "" {
			return commandError(cmd, opts.Format, "E_COMMAND",
				NewExitError(ExitCommandError,
					"no replay engine configured (use --engine or "+ConfigFileName+")"))
		}
		engine = &replay.ProcessEngine{Binary: cfg.Engine, Timeout: cfg.Timeout}
	}

	var history *store.Store
	if cfg.History != "" {
		history, err = store.Open(cfg.History)
		if err != nil {
			return commandError(cmd, opts.Format, "E_COMMAND",
				WrapExitError(ExitCommandError, "failed to open history database", err))
		}
		defer history.Close()
	}

	stampVersion := opts.StampVersion
	if stampVersion == "" {
		stampVersion = Version
	}

	dispatcher := &dispatch.Dispatcher{
		Root:              corpusDir,
		Engine:            engine,
		Capacity:          cfg.Jobs,
		Serial:            opts.Serial,
		BuildVersion:      stampVersion,
		ExpandDiagnostics: opts.Verbose,
		History:           history,
	}

	run, err := dispatcher.Run(cmd.Context(), mode)
	if err != nil {
		if snapshot.IsPrecondition(err) {
			return commandError(cmd, opts.Format, "E_PRECONDITION",
				WrapExitError(ExitCommandError, "write-mode precondition violated", err))
		}
		return commandError(cmd, opts.Format, "E_COMMAND",
			WrapExitError(ExitCommandError, "replay run failed", err))
	}

	if opts.Format == "json" {
		return outputRunJSON(cmd, run)
	}
	return outputRunText(cmd, run, opts.Verbose)
}

// commandError reports a command-level failure (exit code 2). JSON consumers
// get a structured {"status": "error"} envelope on stdout so they never have
// to parse stderr; the ExitError still carries the exit code to main. Replay
// failures (exit code 1) are not command errors and keep the canonical run
// report as their JSON output.
func commandError(cmd *cobra.Command, format, code string, exitErr *ExitError) error {
	if format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		_ = encoder.Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: exitErr.Error()},
		})
	}
	return exitErr
}

// loadEffectiveConfig merges the config file with command-line flags; flags
// win wherever both are set.
func loadEffectiveConfig(opts *ReplayOptions, corpusDir string) (Config, error) {
	var cfg Config
	var err error
	if opts.Config != "" {
		cfg, err = LoadConfig(opts.Config)
	} else {
		cfg, err = LoadCorpusConfig(corpusDir)
	}
	if err != nil {
		return Config{}, err
	}

	if opts.Engine != "" {
		cfg.Engine = opts.Engine
	}
	if opts.Jobs > 0 {
		cfg.Jobs = opts.Jobs
	}
	if opts.History != "" {
		cfg.History = opts.History
	}
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}
	return cfg, nil
}

// outputRunJSON emits the canonical run report, byte-stable for identical
// runs.
func outputRunJSON(cmd *cobra.Command, run *report.Run) error {
	data, err := run.CanonicalJSON()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to serialize report", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	if failed := run.Failed(); failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d replay job(s) failed", failed))
	}
	return nil
}

func outputRunText(cmd *cobra.Command, run *report.Run, verbose bool) error {
	w := cmd.OutOrStdout()
	run.RenderText(w, verbose)

	if failed := run.Failed(); failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d replay job(s) failed", failed))
	}
	fmt.Fprintln(w, "✓ All replay jobs passed")
	return nil
}
