// Package cmd implements the gosheets command line.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gosheets/internal/config"
	"github.com/3leaps/gosheets/internal/observability"
)

var (
	cfgFile  string
	verbose  bool
	logLevel string

	// appConfig is loaded by the root command before any subcommand runs.
	appConfig *config.Config
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "unknown",
	BuildDate: "unknown",
}

var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Browse AWS Batch jobs and dbm key-value stores as sheets",
	Long: `gosheets loads tabular views ("sheets") from record sources.

Sources:
  aws://batch                   All AWS Batch jobs in the region
  aws://batch/queues/<glob>     Jobs in queues whose name matches <glob>
  dbm://<path> or <path>        A key-value database

Examples:
  gosheets open aws://batch --output table
  gosheets open aws://batch/queues/prod-* --sort status,name
  gosheets open dbm:///var/lib/app.db --encoding latin1
  gosheets serve --port 8080`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $XDG_CONFIG_HOME/gosheets/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

// SetVersionInfo records build metadata injected by ldflags.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	observability.CLILogger.Error(err.Error())
	return ExitCode(err)
}

func initConfig(cmd *cobra.Command, _ []string) error {
	observability.InitCLILogger(config.AppName, verbose)

	cfg, err := config.LoadFile(cmd.Context(), cfgFile)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	appConfig = cfg

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	if !verbose {
		if err := observability.SetLevel(config.AppName, level); err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid log level", err)
		}
	}

	observability.CLILogger.Debug("Configuration loaded",
		zap.String("config_file", cfgFile),
		zap.String("log_level", level))
	return nil
}

// exitCodeGeneric is used for failures that carry no specific code.
const exitCodeGeneric = 1

// ExitError is an error that carries a process exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s (exit code %d)", e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %v (exit code %d)", e.Message, e.Err, e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return &ExitError{Code: code, Message: message, Err: err}
}

// ExitCode extracts the exit code from err. Errors without one map to 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return exitCodeGeneric
}
