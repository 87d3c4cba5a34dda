package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/3leaps/gosheets/pkg/provider"
	"github.com/3leaps/gosheets/pkg/sheet"
)

// Config configures loader behavior.
type Config struct {
	// Concurrency is the number of (queue, status) tasks that run at once.
	// Default: 8
	Concurrency int

	// RateLimit is the maximum requests per second across all tasks.
	// Zero means unlimited (provider handles its own throttling).
	// Default: 0
	RateLimit float64

	// PageSize is the ListJobs page size. It is capped at
	// provider.MaxDescribeJobs so each page hydrates in one call.
	// Default: 100
	PageSize int

	// QueuePattern restricts loading to queues whose name matches this
	// doublestar glob. Empty loads every queue.
	QueuePattern string
}

// DefaultConfig returns the default loader configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency: 8,
		RateLimit:   0,
		PageSize:    provider.DefaultPageSize,
	}
}

// ErrInvalidQueuePattern indicates QueuePattern is not a valid glob.
var ErrInvalidQueuePattern = errors.New("invalid queue pattern")

// Summary contains aggregate statistics from a completed load.
type Summary struct {
	Queues     []string
	Buckets    int
	Pages      int64
	Jobs       int
	Duplicates int
	Duration   time.Duration
}

// Result is the outcome of a successful load.
type Result struct {
	Jobs    []Job
	Summary Summary
}

// Loader loads every job across every queue and status.
//
// A Loader may be reused; each Load is independent.
type Loader struct {
	svc     provider.JobService
	config  Config
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewLoader creates a loader over an authenticated job service.
func NewLoader(svc provider.JobService, cfg Config) (*Loader, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.PageSize <= 0 || cfg.PageSize > provider.MaxDescribeJobs {
		cfg.PageSize = provider.MaxDescribeJobs
	}
	if cfg.QueuePattern != "" && !doublestar.ValidatePattern(cfg.QueuePattern) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidQueuePattern, cfg.QueuePattern)
	}

	l := &Loader{
		svc:    svc,
		config: cfg,
		logger: zap.NewNop(),
	}
	if cfg.RateLimit > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return l, nil
}

// WithLogger sets the logger used for load progress.
// Returns the loader for method chaining.
func (l *Loader) WithLogger(logger *zap.Logger) *Loader {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// SheetLoad adapts the loader to sheet.Sheet.Reload.
func (l *Loader) SheetLoad() sheet.LoadFunc[Job] {
	return func(ctx context.Context) ([]Job, error) {
		res, err := l.Load(ctx)
		if err != nil {
			return nil, err
		}
		return res.Jobs, nil
	}
}

// Load fetches the complete job set.
//
// Load blocks until every (queue, status) task has finished. If any task
// fails the remaining tasks are cancelled and a *LoadError naming every
// failed bucket is returned; no partial result is returned. An empty job
// set with a nil error means the service reported no jobs.
func (l *Loader) Load(ctx context.Context) (*Result, error) {
	start := time.Now()

	queues, err := l.listQueues(ctx)
	if err != nil {
		return nil, fmt.Errorf("list job queues: %w", err)
	}

	buckets := len(queues) * len(Statuses)
	l.logger.Debug("Loading jobs",
		zap.Int("queues", len(queues)),
		zap.Int("buckets", buckets),
		zap.Int("concurrency", l.config.Concurrency))

	var (
		col      collector
		pages    atomic.Int64
		failMu   sync.Mutex
		failures []BucketFailure
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.config.Concurrency)

	for _, queue := range queues {
		for _, status := range Statuses {
			g.Go(func() error {
				err := l.loadBucket(gctx, queue, status, &col, &pages)
				if err == nil {
					return nil
				}
				// Tasks cancelled because another task failed are not failures.
				if gctx.Err() != nil && isCancellation(err) {
					return err
				}
				failMu.Lock()
				failures = append(failures, BucketFailure{Queue: queue, Status: status, Err: err})
				failMu.Unlock()
				return err
			})
		}
	}

	waitErr := g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(failures) > 0 {
		sort.Slice(failures, func(i, j int) bool {
			if failures[i].Queue != failures[j].Queue {
				return failures[i].Queue < failures[j].Queue
			}
			return failures[i].Status.rank() < failures[j].Status.rank()
		})
		return nil, &LoadError{Buckets: buckets, Failures: failures}
	}
	if waitErr != nil {
		return nil, waitErr
	}

	jobs, dupes := col.merge()
	summary := Summary{
		Queues:     queues,
		Buckets:    buckets,
		Pages:      pages.Load(),
		Jobs:       len(jobs),
		Duplicates: dupes,
		Duration:   time.Since(start),
	}

	l.logger.Info("Loaded jobs",
		zap.Int("queues", len(queues)),
		zap.Int("buckets", buckets),
		zap.Int64("pages", summary.Pages),
		zap.Int("jobs", summary.Jobs),
		zap.Int("duplicates", dupes),
		zap.Duration("duration", summary.Duration))

	return &Result{Jobs: jobs, Summary: summary}, nil
}

// listQueues returns the sorted, filtered queue names.
func (l *Loader) listQueues(ctx context.Context) ([]string, error) {
	var queues []string
	var token string

	for {
		if err := l.wait(ctx); err != nil {
			return nil, err
		}

		page, err := l.svc.ListQueues(ctx, provider.ListOptions{ContinuationToken: token})
		if err != nil {
			return nil, err
		}

		for _, q := range page.Queues {
			if l.config.QueuePattern != "" {
				ok, err := doublestar.Match(l.config.QueuePattern, q)
				if err != nil {
					return nil, fmt.Errorf("%w: %v", ErrInvalidQueuePattern, err)
				}
				if !ok {
					continue
				}
			}
			queues = append(queues, q)
		}

		if page.ContinuationToken == "" {
			break
		}
		token = page.ContinuationToken
	}

	if l.config.QueuePattern != "" && len(queues) == 0 {
		return nil, fmt.Errorf("%w: no job queue matches %q", provider.ErrNotFound, l.config.QueuePattern)
	}

	sort.Strings(queues)
	return queues, nil
}

// loadBucket pages through one (queue, status) pair, hydrating each page.
func (l *Loader) loadBucket(ctx context.Context, queue string, status Status, col *collector, pages *atomic.Int64) error {
	var token string

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.wait(ctx); err != nil {
			return err
		}

		page, err := l.svc.ListJobs(ctx, provider.ListJobsOptions{
			ListOptions: provider.ListOptions{
				ContinuationToken: token,
				MaxResults:        l.config.PageSize,
			},
			Queue:  queue,
			Status: string(status),
		})
		if err != nil {
			return err
		}
		pages.Add(1)

		if len(page.JobIDs) > 0 {
			if err := l.wait(ctx); err != nil {
				return err
			}
			records, err := l.svc.DescribeJobs(ctx, page.JobIDs)
			if err != nil {
				return err
			}

			batch := make([]Job, 0, len(records))
			for _, rec := range records {
				batch = append(batch, FromRecord(rec))
			}
			col.append(batch)
		}

		if page.ContinuationToken == "" {
			return nil
		}
		token = page.ContinuationToken
	}
}

// wait blocks until the rate limiter allows a request.
// Returns immediately if rate limiting is disabled.
func (l *Loader) wait(ctx context.Context) error {
	if l.limiter == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// collector is the shared, append-only result of all load tasks.
type collector struct {
	mu   sync.Mutex
	jobs []Job
}

func (c *collector) append(batch []Job) {
	c.mu.Lock()
	c.jobs = append(c.jobs, batch...)
	c.mu.Unlock()
}

// merge deduplicates by job id. A job that changed status while the load
// was running is listed under both buckets; the later lifecycle stage wins.
// The merged set is ordered by id so that equal loads compare equal.
func (c *collector) merge() ([]Job, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byID := make(map[string]Job, len(c.jobs))
	dupes := 0
	for _, j := range c.jobs {
		if prev, ok := byID[j.ID]; ok {
			dupes++
			if j.Status.rank() <= prev.Status.rank() {
				continue
			}
		}
		byID[j.ID] = j
	}

	out := make([]Job, 0, len(byID))
	for _, j := range byID {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, dupes
}
