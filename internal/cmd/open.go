package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gosheets/internal/config"
	"github.com/3leaps/gosheets/internal/observability"
	"github.com/3leaps/gosheets/internal/server/handlers"
	"github.com/3leaps/gosheets/internal/source"
	"github.com/3leaps/gosheets/pkg/jobs"
	"github.com/3leaps/gosheets/pkg/kvstore"
	"github.com/3leaps/gosheets/pkg/output"
	"github.com/3leaps/gosheets/pkg/provider"
)

var openCmd = &cobra.Command{
	Use:   "open <source>",
	Short: "Load a source and print it as a sheet",
	Long: `Load a record source into a sheet and print it.

JSONL output (the default) emits one columns record, one row record per
row and a closing summary record. Load failures are emitted as error
records before the command exits non-zero.

Examples:
  gosheets open aws://batch
  gosheets open aws://batch/queues/prod-* --output table --sort status,name
  gosheets open aws://batch --concurrency 16 --rate-limit 10
  gosheets open dbm://./cache.db --encoding shift_jis --output yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runOpen,
}

var (
	openOutput      string
	openSort        string
	openReverse     bool
	openEncoding    string
	openConcurrency int
	openRateLimit   float64
	openPageSize    int
	openRegion      string
	openProfile     string
	openEndpoint    string
)

// newJobService builds the Batch client for jobs sources.
var newJobService source.JobServiceFactory = source.NewBatchService

func init() {
	rootCmd.AddCommand(openCmd)

	openCmd.Flags().StringVarP(&openOutput, "output", "o", "jsonl", "Output format (jsonl, table, yaml)")
	openCmd.Flags().StringVarP(&openSort, "sort", "s", "", "Comma-separated columns to order by")
	openCmd.Flags().BoolVar(&openReverse, "reverse", false, "Reverse the --sort ordering")
	openCmd.Flags().StringVarP(&openEncoding, "encoding", "e", "", "Text encoding for key-value databases (default utf-8)")
	openCmd.Flags().IntVar(&openConcurrency, "concurrency", 0, "Concurrent queue/status loads")
	openCmd.Flags().Float64Var(&openRateLimit, "rate-limit", 0, "Max Batch API requests per second (0 = unlimited)")
	openCmd.Flags().IntVar(&openPageSize, "page-size", 0, "ListJobs page size (max 100)")
	openCmd.Flags().StringVarP(&openRegion, "region", "r", "", "AWS region")
	openCmd.Flags().StringVarP(&openProfile, "profile", "p", "", "AWS profile")
	openCmd.Flags().StringVar(&openEndpoint, "endpoint", "", "Custom Batch endpoint")
}

func runOpen(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(openOutput)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid output format", err)
	}

	src, err := source.Parse(args[0])
	if err != nil {
		observability.CLILogger.Error("Unsupported source", zap.String("source", args[0]), zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Unsupported source", err)
	}

	opts := openOptions(cmd, appConfig)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	observability.CLILogger.Debug("Opening source",
		zap.String("source", src.Raw),
		zap.String("kind", string(src.Kind)),
		zap.String("queue_pattern", src.QueuePattern))

	out := cmd.OutOrStdout()
	res, err := source.Open(ctx, src, opts)
	if err != nil {
		if format == output.FormatJSONL {
			w := output.NewJSONLWriter(out, uuid.NewString(), src.Raw)
			if werr := writeOpenErrors(context.WithoutCancel(ctx), w, err); werr != nil {
				observability.CLILogger.Warn("Failed to write error records", zap.Error(werr))
			}
		}
		return openExitError(ctx, err)
	}

	observability.CLILogger.Debug("Source loaded",
		zap.Int("rows", res.Summary.Rows),
		zap.Duration("duration", res.Summary.Duration))

	if err := render(ctx, out, format, src, res); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
	}
	return nil
}

// openOptions merges configuration with flags the user set explicitly.
func openOptions(cmd *cobra.Command, cfg *config.Config) source.Options {
	if cfg == nil {
		cfg = &config.Config{}
	}

	batchCfg := batchConfig(cfg)
	jobsCfg := jobsConfig(cfg)
	encoding := cfg.DBM.Encoding

	flags := cmd.Flags()
	if flags.Changed("region") {
		batchCfg.Region = openRegion
	}
	if flags.Changed("profile") {
		batchCfg.Profile = openProfile
	}
	if flags.Changed("endpoint") {
		batchCfg.Endpoint = openEndpoint
	}
	if flags.Changed("concurrency") {
		jobsCfg.Concurrency = openConcurrency
	}
	if flags.Changed("rate-limit") {
		jobsCfg.RateLimit = openRateLimit
	}
	if flags.Changed("page-size") {
		jobsCfg.PageSize = openPageSize
		batchCfg.PageSize = openPageSize
	}
	if flags.Changed("encoding") {
		encoding = openEncoding
	}

	return source.Options{
		Batch:         batchCfg,
		Jobs:          jobsCfg,
		Encoding:      encoding,
		Ordering:      handlers.ParseOrdering(openSort, openReverse),
		Logger:        observability.CLILogger,
		NewJobService: newJobService,
	}
}

func render(ctx context.Context, w io.Writer, format output.Format, src source.Source, res *source.Result) error {
	switch format {
	case output.FormatTable:
		return output.RenderTable(w, res.Table)
	case output.FormatYAML:
		return output.RenderYAML(w, res.Table)
	default:
		jw := output.NewJSONLWriter(w, uuid.NewString(), src.Raw)
		if err := output.WriteSheet(ctx, jw, res.Table); err != nil {
			return err
		}
		summary := res.Summary
		if err := jw.WriteSummary(ctx, &summary); err != nil {
			return err
		}
		return jw.Close()
	}
}

// writeOpenErrors emits one error record per failed bucket, or a single
// record for any other failure.
func writeOpenErrors(ctx context.Context, w output.Writer, err error) error {
	var loadErr *jobs.LoadError
	if errors.As(err, &loadErr) {
		for _, f := range loadErr.Failures {
			rec := &output.ErrorRecord{
				Code:    f.Code(),
				Message: f.Err.Error(),
				Queue:   f.Queue,
				Status:  string(f.Status),
			}
			if werr := w.WriteError(ctx, rec); werr != nil {
				return werr
			}
		}
		return w.Close()
	}

	rec := &output.ErrorRecord{Code: errorCode(err), Message: err.Error()}
	if werr := w.WriteError(ctx, rec); werr != nil {
		return werr
	}
	return w.Close()
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return output.ErrCodeCancelled
	case source.IsInvalidRequest(err):
		return output.ErrCodeInvalidArgument
	case errors.Is(err, kvstore.ErrDatabaseLocked):
		return output.ErrCodeLocked
	default:
		return provider.Classify(err)
	}
}

func openExitError(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return exitError(foundry.ExitSignalInt, "Interrupted", err)
	case source.IsInvalidRequest(err):
		return exitError(foundry.ExitInvalidArgument, "Invalid request", err)
	default:
		observability.CLILogger.Error("Failed to load source", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to load source", err)
	}
}
