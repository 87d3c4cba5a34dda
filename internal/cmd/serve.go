package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gosheets/internal/config"
	"github.com/3leaps/gosheets/internal/observability"
	"github.com/3leaps/gosheets/internal/server"
	"github.com/3leaps/gosheets/internal/server/handlers"
	"github.com/3leaps/gosheets/internal/source"
	"github.com/3leaps/gosheets/pkg/jobs"
	"github.com/3leaps/gosheets/pkg/kvstore"
	"github.com/3leaps/gosheets/pkg/provider/batch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve sheets over HTTP",
	Long: `Start a read-only HTTP server that loads sheets on request.

Key-value sources are opened read-only and must already exist. With
--dbm-root (or server.dbm_root) they are confined to that directory, and
relative dbm:// paths resolve against it.

Endpoints:
  GET /v1/sheets?source=<url>[&sort=a,b][&reverse=true][&encoding=name]
  GET /health, /health/live, /health/ready, /health/startup
  GET /version

Examples:
  gosheets serve
  gosheets serve --host 0.0.0.0 --port 9000
  gosheets serve --dbm-root /var/lib/gosheets`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveHost    string
	servePort    int
	serveDBMRoot string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default from config)")
	serveCmd.Flags().StringVar(&serveDBMRoot, "dbm-root", "", "Directory key-value sources must live under (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := appConfig
	if cfg == nil {
		return exitError(foundry.ExitInvalidArgument, "Configuration not loaded", errors.New("missing config"))
	}

	host := cfg.Server.Host
	if cmd.Flags().Changed("host") {
		host = serveHost
	}
	port := cfg.Server.Port
	if cmd.Flags().Changed("port") {
		port = servePort
	}
	if cmd.Flags().Changed("dbm-root") {
		c := *cfg
		c.Server.DBMRoot = serveDBMRoot
		cfg = &c
	}

	handlers.SetVersionInfo(versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
	health := handlers.InitHealthManager(versionInfo.Version)
	health.RegisterChecker("encoding", encodingHealthChecker{label: cfg.DBM.Encoding})
	health.RegisterChecker("batch_config", batchConfigHealthChecker{cfg: batchConfig(cfg)})

	srv := server.New(host, port,
		server.WithLogger(observability.CLILogger),
		server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout),
		server.WithSheetOpener(sheetOpener(cfg)),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return exitError(foundry.ExitExternalServiceUnavailable, "Server failed", err)
		}
		return nil
	case <-ctx.Done():
	}

	observability.CLILogger.Info("Shutting down server",
		zap.Duration("timeout", cfg.Server.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Server shutdown failed", err)
	}
	return <-errCh
}

// sheetOpener resolves requests against the loaded configuration. A request
// encoding replaces the configured one. Key-value databases are never
// created from a request.
func sheetOpener(cfg *config.Config) handlers.SheetOpener {
	return func(ctx context.Context, req handlers.SheetRequest) (*source.Result, error) {
		encoding := cfg.DBM.Encoding
		if req.Encoding != "" {
			encoding = req.Encoding
		}
		return source.Open(ctx, req.Source, source.Options{
			Batch:         batchConfig(cfg),
			Jobs:          jobsConfig(cfg),
			Encoding:      encoding,
			ExistingOnly:  true,
			KeyValueRoot:  cfg.Server.DBMRoot,
			Ordering:      req.Ordering,
			Logger:        observability.CLILogger,
			NewJobService: newJobService,
		})
	}
}

func batchConfig(cfg *config.Config) batch.Config {
	return batch.Config{
		Region:   cfg.Batch.Region,
		Profile:  cfg.Batch.Profile,
		Endpoint: cfg.Batch.Endpoint,
		PageSize: cfg.Batch.PageSize,
	}
}

func jobsConfig(cfg *config.Config) jobs.Config {
	jc := jobs.DefaultConfig()
	if cfg.Batch.Concurrency > 0 {
		jc.Concurrency = cfg.Batch.Concurrency
	}
	jc.RateLimit = cfg.Batch.RateLimit
	if cfg.Batch.PageSize > 0 {
		jc.PageSize = cfg.Batch.PageSize
	}
	return jc
}

// encodingHealthChecker fails when the configured encoding is unknown.
type encodingHealthChecker struct {
	label string
}

func (c encodingHealthChecker) CheckHealth(context.Context) error {
	if _, err := kvstore.NewDecoder(c.label); err != nil {
		return fmt.Errorf("dbm encoding: %w", err)
	}
	return nil
}

// batchConfigHealthChecker fails when the Batch client settings are inconsistent.
type batchConfigHealthChecker struct {
	cfg batch.Config
}

func (c batchConfigHealthChecker) CheckHealth(context.Context) error {
	return c.cfg.Validate()
}
