package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/batch"
	"github.com/aws/aws-sdk-go-v2/service/batch/types"
	"github.com/aws/smithy-go"

	"github.com/3leaps/gosheets/pkg/provider"
)

// API is the subset of the AWS Batch client used by Provider.
//
// *batch.Client satisfies it; tests substitute a fake.
type API interface {
	DescribeJobQueues(ctx context.Context, params *batch.DescribeJobQueuesInput, optFns ...func(*batch.Options)) (*batch.DescribeJobQueuesOutput, error)
	ListJobs(ctx context.Context, params *batch.ListJobsInput, optFns ...func(*batch.Options)) (*batch.ListJobsOutput, error)
	DescribeJobs(ctx context.Context, params *batch.DescribeJobsInput, optFns ...func(*batch.Options)) (*batch.DescribeJobsOutput, error)
}

// Provider implements provider.JobService for AWS Batch.
type Provider struct {
	client   API
	pageSize int
}

var _ provider.JobService = (*Provider)(nil)

// New creates a new AWS Batch provider with the given configuration.
//
// The provider uses AWS SDK v2's default credential chain unless explicit
// credentials are provided in the config.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, &provider.ProviderError{
			Op:       "New",
			Provider: provider.ProviderBatch,
			Err:      err,
		}
	}

	var opts []func(*batch.Options)
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *batch.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return NewWithClient(batch.NewFromConfig(awsCfg, opts...), cfg), nil
}

// NewWithClient wraps an existing API client.
func NewWithClient(client API, cfg Config) *Provider {
	return &Provider{
		client:   client,
		pageSize: clampPageSize(cfg.PageSize),
	}
}

// loadAWSConfig builds the AWS configuration with appropriate credentials.
func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		staticCreds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		opts = append(opts, config.WithCredentialsProvider(staticCreds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}

	awsCfg.Region = resolveRegion(cfg.Endpoint, awsCfg.Region)
	return awsCfg, nil
}

// ListQueues returns a page of job queue names.
func (p *Provider) ListQueues(ctx context.Context, opts provider.ListOptions) (*provider.QueuePage, error) {
	input := &batch.DescribeJobQueuesInput{
		MaxResults: aws.Int32(int32(p.limit(opts.MaxResults))),
	}
	if opts.ContinuationToken != "" {
		input.NextToken = aws.String(opts.ContinuationToken)
	}

	out, err := p.client.DescribeJobQueues(ctx, input)
	if err != nil {
		return nil, wrapError("DescribeJobQueues", "", "", err)
	}

	page := &provider.QueuePage{
		Queues:            make([]string, 0, len(out.JobQueues)),
		ContinuationToken: aws.ToString(out.NextToken),
	}
	for _, q := range out.JobQueues {
		page.Queues = append(page.Queues, aws.ToString(q.JobQueueName))
	}
	return page, nil
}

// ListJobs returns a page of job ids for one (queue, status) pair.
func (p *Provider) ListJobs(ctx context.Context, opts provider.ListJobsOptions) (*provider.JobPage, error) {
	input := &batch.ListJobsInput{
		JobQueue:   aws.String(opts.Queue),
		JobStatus:  types.JobStatus(opts.Status),
		MaxResults: aws.Int32(int32(p.limit(opts.MaxResults))),
	}
	if opts.ContinuationToken != "" {
		input.NextToken = aws.String(opts.ContinuationToken)
	}

	out, err := p.client.ListJobs(ctx, input)
	if err != nil {
		return nil, wrapError("ListJobs", opts.Queue, opts.Status, err)
	}

	page := &provider.JobPage{
		JobIDs:            make([]string, 0, len(out.JobSummaryList)),
		ContinuationToken: aws.ToString(out.NextToken),
	}
	for _, s := range out.JobSummaryList {
		page.JobIDs = append(page.JobIDs, aws.ToString(s.JobId))
	}
	return page, nil
}

// DescribeJobs hydrates job ids into full records.
func (p *Provider) DescribeJobs(ctx context.Context, ids []string) ([]provider.JobRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > provider.MaxDescribeJobs {
		return nil, &provider.ProviderError{
			Op:       "DescribeJobs",
			Provider: provider.ProviderBatch,
			Err:      fmt.Errorf("%w: %d > %d", provider.ErrTooManyIDs, len(ids), provider.MaxDescribeJobs),
		}
	}

	out, err := p.client.DescribeJobs(ctx, &batch.DescribeJobsInput{Jobs: ids})
	if err != nil {
		return nil, wrapError("DescribeJobs", "", "", err)
	}

	records := make([]provider.JobRecord, 0, len(out.Jobs))
	for _, j := range out.Jobs {
		records = append(records, toRecord(j))
	}
	return records, nil
}

// Close releases any resources held by the provider.
// The Batch client doesn't require explicit cleanup.
func (p *Provider) Close() error {
	return nil
}

func (p *Provider) limit(requested int) int {
	if requested <= 0 {
		return p.pageSize
	}
	return clampPageSize(requested)
}

// toRecord converts an SDK job detail into a provider record.
func toRecord(j types.JobDetail) provider.JobRecord {
	rec := provider.JobRecord{
		JobID:         aws.ToString(j.JobId),
		JobName:       aws.ToString(j.JobName),
		JobQueue:      aws.ToString(j.JobQueue),
		Status:        string(j.Status),
		StatusReason:  j.StatusReason,
		JobDefinition: aws.ToString(j.JobDefinition),
		CreatedAt:     j.CreatedAt,
		StartedAt:     j.StartedAt,
		StoppedAt:     j.StoppedAt,
	}

	if c := j.Container; c != nil {
		rec.Container = &provider.ContainerRecord{
			Image:    aws.ToString(c.Image),
			Command:  c.Command,
			Vcpus:    c.Vcpus,
			MemoryMi: c.Memory,
			ExitCode: c.ExitCode,
			Reason:   c.Reason,
		}
		if len(c.ResourceRequirements) > 0 {
			rec.Container.ResourceRequirements = make(map[string]string, len(c.ResourceRequirements))
			for _, r := range c.ResourceRequirements {
				rec.Container.ResourceRequirements[string(r.Type)] = aws.ToString(r.Value)
			}
		}
	}

	return rec
}

// wrapError converts Batch errors to provider errors with appropriate sentinel errors.
func wrapError(op, queue, status string, err error) error {
	wrapped := &provider.ProviderError{
		Op:       op,
		Provider: provider.ProviderBatch,
		Queue:    queue,
		Status:   status,
		Err:      err,
	}

	// Leave cancellation untouched so callers can tell an abort from a failure.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return wrapped
	}

	var serverErr *types.ServerException
	if errors.As(err, &serverErr) {
		wrapped.Err = fmt.Errorf("%w: %s", provider.ErrProviderUnavailable, serverErr.ErrorMessage())
		return wrapped
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		var sentinel error
		switch apiErr.ErrorCode() {
		case "AccessDeniedException", "AccessDenied":
			sentinel = provider.ErrAccessDenied
		case "UnrecognizedClientException", "InvalidSignatureException", "ExpiredTokenException", "InvalidClientTokenId":
			sentinel = provider.ErrInvalidCredentials
		case "ThrottlingException", "TooManyRequestsException", "RequestLimitExceeded":
			sentinel = provider.ErrThrottled
		case "ServiceUnavailable", "ServiceUnavailableException", "InternalFailure":
			sentinel = provider.ErrProviderUnavailable
		case "ClientException":
			msg := strings.ToLower(apiErr.ErrorMessage())
			if strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist") {
				sentinel = provider.ErrNotFound
			} else if strings.Contains(msg, "not authorized") || strings.Contains(msg, "permission") {
				sentinel = provider.ErrAccessDenied
			}
		}
		if sentinel != nil {
			wrapped.Err = fmt.Errorf("%w: %s", sentinel, apiErr.ErrorMessage())
		}
		return wrapped
	}

	// Transport failures (DNS, refused connections) never reach the service.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"), strings.Contains(msg, "503"):
		wrapped.Err = fmt.Errorf("%w: %v", provider.ErrProviderUnavailable, err)
	case strings.Contains(msg, "403"):
		wrapped.Err = fmt.Errorf("%w: %v", provider.ErrAccessDenied, err)
	}
	return wrapped
}

// clampPageSize applies defaults and limits to page sizes.
func clampPageSize(requested int) int {
	if requested <= 0 {
		return DefaultPageSize
	}
	if requested > MaxPageSize {
		return MaxPageSize
	}
	return requested
}

// resolveRegion applies the us-east-1 fallback for AWS endpoints only.
func resolveRegion(endpoint, sdkRegion string) string {
	if sdkRegion != "" {
		return sdkRegion
	}
	if endpoint == "" {
		return DefaultAWSRegion
	}
	return ""
}
