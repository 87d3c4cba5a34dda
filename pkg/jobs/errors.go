package jobs

import (
	"fmt"
	"strings"

	"github.com/3leaps/gosheets/pkg/provider"
)

// BucketFailure records a failed (queue, status) load task.
type BucketFailure struct {
	Queue  string
	Status Status
	Err    error
}

// Code classifies the failure (e.g. "ACCESS_DENIED").
func (f BucketFailure) Code() string {
	return provider.Classify(f.Err)
}

// LoadError reports a reload that was aborted because one or more
// (queue, status) tasks failed. No rows from an aborted reload are kept.
type LoadError struct {
	// Buckets is the number of (queue, status) tasks the reload planned.
	Buckets int

	// Failures lists every task that failed, ordered by queue then status.
	Failures []BucketFailure
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "load jobs: %d of %d queue/status buckets failed", len(e.Failures), e.Buckets)
	for i, f := range e.Failures {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s/%s: %v", f.Queue, f.Status, f.Err)
	}
	return b.String()
}

// Unwrap exposes every underlying failure to errors.Is/As.
func (e *LoadError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}
