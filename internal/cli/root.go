// Package cli implements the blackout command line
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/raaihank/blackout/internal/config"
	"github.com/raaihank/blackout/internal/logger"
	"github.com/spf13/cobra"
)

// Build information, set with -ldflags
var (
	Version   = "0.1.0"
	Commit    = "dev"
	BuildDate = "unknown"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitRuntimeError = 1
	ExitUsageError   = 2
)

// runtimeError marks a failure that happened after the arguments and
// configuration were accepted
type runtimeError struct{ err error }

func (e *runtimeError) Error() string { return e.err.Error() }
func (e *runtimeError) Unwrap() error { return e.err }

func failed(err error) error {
	if err == nil {
		return nil
	}
	return &runtimeError{err: err}
}

// app carries the global flags and what PersistentPreRunE builds from them
type app struct {
	configPath string
	logLevel   string
	outDir     string

	cfg    *config.Config
	log    *logger.Logger
	stdout io.Writer
	stderr io.Writer
}

// Run executes the command line in args and returns the process exit code
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if a.log != nil {
		_ = a.log.Sync()
	}
	if err == nil {
		return ExitSuccess
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	var rt *runtimeError
	if errors.As(err, &rt) {
		return ExitRuntimeError
	}
	return ExitUsageError
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "blackout",
		Short:         "Redact PII from documents and datasets",
		Long:          "Blackout extracts text from scans and documents, blacks out labelled values and well-known PII patterns, and writes redacted copies.",
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return a.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Path to configuration file")
	flags.StringVar(&a.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	flags.StringVarP(&a.outDir, "out-dir", "o", "", "Directory for output files (default: next to each input)")

	root.AddCommand(
		a.serveCmd(),
		a.processCmd(),
		a.redactCmd(),
		a.batchCmd(),
		a.catalogCmd(),
		a.cacheCmd(),
		a.jobsCmd(),
		a.versionCmd(),
		a.healthCheckCmd(),
	)
	return root
}

// setup loads configuration and applies flag overrides. Errors here are
// usage errors.
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.outDir != "" {
		cfg.Export.OutputDir = a.outDir
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}
	log, err := logger.New(loggerConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.cfg = cfg
	a.log = log
	return nil
}
