package provider

import (
	"errors"
	"fmt"

	"github.com/3leaps/gosheets/pkg/output"
)

// Sentinel errors for provider operations.
var (
	// ErrNotFound indicates the requested queue or job does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied indicates insufficient permissions.
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrProviderUnavailable indicates the provider service is unavailable.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrThrottled indicates the request was rate limited by the provider.
	ErrThrottled = errors.New("request throttled")

	// ErrTooManyIDs indicates a DescribeJobs call exceeded MaxDescribeJobs.
	ErrTooManyIDs = errors.New("too many job ids")
)

// ProviderError wraps provider-specific errors with context.
type ProviderError struct {
	// Op is the operation that failed (e.g., "ListJobs", "DescribeJobs").
	Op string

	// Provider is the provider type (e.g., "batch").
	Provider ProviderType

	// Queue is the job queue, if applicable.
	Queue string

	// Status is the job status bucket, if applicable.
	Status string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("%s %s: %s/%s: %v", e.Provider, e.Op, e.Queue, e.Status, e.Err)
	}
	if e.Queue != "" {
		return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.Queue, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error indicates a queue or job was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAccessDenied returns true if the error indicates insufficient permissions.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsInvalidCredentials returns true if the error indicates authentication failed.
func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

// IsProviderUnavailable returns true if the error indicates the provider service is unavailable.
func IsProviderUnavailable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}

// IsThrottled returns true if the error indicates the request was rate limited.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

// Classify returns a stable machine-readable code for err.
//
// Codes are the output.ErrCode* values used in JSONL error records.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case IsAccessDenied(err):
		return output.ErrCodeAccessDenied
	case IsInvalidCredentials(err):
		return output.ErrCodeInvalidCredentials
	case IsNotFound(err):
		return output.ErrCodeNotFound
	case IsThrottled(err):
		return output.ErrCodeThrottled
	case IsProviderUnavailable(err):
		return output.ErrCodeUnavailable
	default:
		return output.ErrCodeInternal
	}
}
