package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/3leaps/gosheets/pkg/jobs"
	"github.com/3leaps/gosheets/pkg/kvstore"
	"github.com/3leaps/gosheets/pkg/output"
	"github.com/3leaps/gosheets/pkg/provider"
	"github.com/3leaps/gosheets/pkg/provider/batch"
	"github.com/3leaps/gosheets/pkg/sheet"
)

// JobServiceFactory builds an authenticated job service.
type JobServiceFactory func(ctx context.Context, cfg batch.Config) (provider.JobService, error)

// Options configures Open.
type Options struct {
	// Batch configures the AWS Batch client for jobs sources.
	Batch batch.Config

	// Jobs configures the job loader. QueuePattern is taken from the source.
	Jobs jobs.Config

	// Encoding decodes key-value databases. Empty selects utf-8.
	Encoding string

	// ExistingOnly opens key-value databases read-only and fails with
	// kvstore.ErrDatabaseNotFound instead of creating them.
	ExistingOnly bool

	// KeyValueRoot, when set, confines key-value paths to this directory.
	// Relative paths are resolved against it.
	KeyValueRoot string

	// Ordering replaces the sheet's default ordering when set.
	Ordering []sheet.SortKey

	Logger *zap.Logger

	// Now is the clock used for derived runtime values.
	Now func() time.Time

	// NewJobService overrides the Batch client constructor. It is only
	// called when a jobs source is opened.
	NewJobService JobServiceFactory
}

// Result is a loaded sheet.
type Result struct {
	Table   *sheet.Table
	Summary output.SummaryRecord
}

// NewBatchService is the default JobServiceFactory.
func NewBatchService(ctx context.Context, cfg batch.Config) (provider.JobService, error) {
	return batch.New(ctx, cfg)
}

// Open loads src into a sheet and snapshots it.
func Open(ctx context.Context, src Source, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewJobService == nil {
		opts.NewJobService = NewBatchService
	}

	switch src.Kind {
	case KindJobs:
		return openJobs(ctx, src, opts)
	case KindKeyValue:
		return openKeyValue(ctx, src, opts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedResource, src.Raw)
	}
}

func openJobs(ctx context.Context, src Source, opts Options) (res *Result, err error) {
	sh := jobs.NewSheet(src.Raw, opts.Now)
	if len(opts.Ordering) > 0 {
		if err := sh.OrderBy(opts.Ordering...); err != nil {
			return nil, err
		}
	}

	cfg := opts.Jobs
	cfg.QueuePattern = src.QueuePattern

	// Validate the loader config before constructing a client.
	if _, err := jobs.NewLoader(nil, cfg); err != nil {
		return nil, err
	}

	svc, err := opts.NewJobService(ctx, opts.Batch)
	if err != nil {
		return nil, err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(svc))

	loader, err := jobs.NewLoader(svc, cfg)
	if err != nil {
		return nil, err
	}
	loader.WithLogger(opts.Logger)

	var summary jobs.Summary
	err = sh.Reload(ctx, func(ctx context.Context) ([]jobs.Job, error) {
		r, err := loader.Load(ctx)
		if err != nil {
			return nil, err
		}
		summary = r.Summary
		return r.Jobs, nil
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Table: sh.Snapshot(),
		Summary: output.SummaryRecord{
			Sheet:         jobs.SheetName,
			Rows:          sh.Len(),
			Queues:        summary.Queues,
			Buckets:       summary.Buckets,
			Pages:         summary.Pages,
			Duplicates:    summary.Duplicates,
			Duration:      summary.Duration,
			DurationHuman: summary.Duration.Round(time.Millisecond).String(),
		},
	}, nil
}

func openKeyValue(ctx context.Context, src Source, opts Options) (res *Result, err error) {
	// Resolve the encoding first so a bad label never creates a database.
	dec, err := kvstore.NewDecoder(opts.Encoding)
	if err != nil {
		return nil, err
	}

	path, err := confine(src.Path, opts.KeyValueRoot)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(path)
	sh := kvstore.NewSheet(name, src.Raw)
	if len(opts.Ordering) > 0 {
		if err := sh.OrderBy(opts.Ordering...); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	openStore := kvstore.Open
	if opts.ExistingOnly {
		openStore = kvstore.OpenExisting
	}
	store, err := openStore(path)
	if err != nil {
		return nil, err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(store))

	if err := sh.Reload(ctx, kvstore.SheetLoad(store, dec)); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	opts.Logger.Debug("Loaded key-value database",
		zap.String("path", path),
		zap.String("encoding", dec.Name()),
		zap.Int("rows", sh.Len()))

	return &Result{
		Table: sh.Snapshot(),
		Summary: output.SummaryRecord{
			Sheet:         name,
			Rows:          sh.Len(),
			Encoding:      dec.Name(),
			Duration:      elapsed,
			DurationHuman: elapsed.Round(time.Millisecond).String(),
		},
	}, nil
}

// confine resolves path inside root. An empty root leaves path unchanged.
func confine(path, root string) (string, error) {
	if root == "" {
		return path, nil
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	absRoot = resolveSymlinks(absRoot)

	if !filepath.IsAbs(path) {
		path = filepath.Join(absRoot, path)
	}
	full := resolveSymlinks(filepath.Clean(path))

	rel, err := filepath.Rel(absRoot, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return full, nil
}

// resolveSymlinks resolves path, or its parent directory when path itself
// does not exist.
func resolveSymlinks(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(path)); err == nil {
		return filepath.Join(dir, filepath.Base(path))
	}
	return path
}

// IsInvalidRequest reports whether err was caused by the request itself
// (unsupported source, unknown column, bad encoding or queue pattern,
// a path outside the allowed root, invalid client settings) rather than by the record source.
func IsInvalidRequest(err error) bool {
	var cfgErr *batch.ConfigError
	return errors.Is(err, ErrUnsupportedResource) ||
		errors.Is(err, sheet.ErrUnknownColumn) ||
		errors.Is(err, kvstore.ErrUnknownEncoding) ||
		errors.Is(err, jobs.ErrInvalidQueuePattern) ||
		errors.Is(err, ErrOutsideRoot) ||
		errors.As(err, &cfgErr)
}
