// Package provider defines abstractions for job services that back the
// jobs sheet.
//
// Providers implement a minimal surface area focused on listing queues,
// listing job summaries and hydrating job ids into full records.
// Authentication uses SDK default credential chains - providers should not
// implement custom auth logic.
package provider

import (
	"context"
)

// MaxDescribeJobs is the largest number of ids a single DescribeJobs call
// accepts. Job listings are paged at this size so that every page can be
// hydrated with exactly one call.
const MaxDescribeJobs = 100

// DefaultPageSize is the page size used for job listings.
const DefaultPageSize = MaxDescribeJobs

// JobService abstracts a paginated job-queue service.
//
// Implementations should:
//   - Use SDK default credential chains
//   - Support pagination via continuation tokens
//   - Be safe for concurrent use
type JobService interface {
	// ListQueues returns a page of job queue names.
	ListQueues(ctx context.Context, opts ListOptions) (*QueuePage, error)

	// ListJobs returns a page of job ids for one (queue, status) pair.
	ListJobs(ctx context.Context, opts ListJobsOptions) (*JobPage, error)

	// DescribeJobs hydrates up to MaxDescribeJobs ids into full records.
	DescribeJobs(ctx context.Context, ids []string) ([]JobRecord, error)

	// Close releases any resources held by the provider.
	Close() error
}

// ListOptions configures a paginated call.
type ListOptions struct {
	// ContinuationToken resumes listing from a previous page.
	// Empty string starts from the beginning.
	ContinuationToken string

	// MaxResults limits the number of items returned per page.
	// Zero uses the provider default.
	MaxResults int
}

// ListJobsOptions configures a ListJobs call.
type ListJobsOptions struct {
	ListOptions

	// Queue is the job queue name or ARN.
	Queue string

	// Status is the job status bucket (e.g. "RUNNING").
	Status string
}

// QueuePage is one page of queue names.
type QueuePage struct {
	Queues            []string
	ContinuationToken string
}

// JobPage is one page of job ids.
type JobPage struct {
	JobIDs            []string
	ContinuationToken string
}

// JobRecord is a raw job record as returned by the service.
//
// Nullable fields are pointers; nil means the service did not report a value.
type JobRecord struct {
	JobID         string
	JobName       string
	JobQueue      string // queue ARN
	Status        string
	StatusReason  *string
	JobDefinition string // job definition ARN

	// Timestamps are milliseconds since the Unix epoch.
	CreatedAt *int64
	StartedAt *int64
	StoppedAt *int64

	Container *ContainerRecord
}

// ContainerRecord describes the container a job ran in.
type ContainerRecord struct {
	Image    string
	Command  []string
	Vcpus    *int32
	MemoryMi *int32
	ExitCode *int32
	Reason   *string

	// ResourceRequirements maps requirement type (VCPU, MEMORY, GPU) to its
	// value as reported by the service. Newer job definitions report
	// cpu/memory here instead of Vcpus/MemoryMi.
	ResourceRequirements map[string]string
}

// ProviderType identifies a job service provider.
type ProviderType string

const (
	// ProviderBatch represents AWS Batch.
	ProviderBatch ProviderType = "batch"
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	return string(p)
}
