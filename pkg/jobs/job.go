// Package jobs loads AWS Batch style jobs into a sheet.
//
// A load enumerates every job queue, fans out one task per (queue, status)
// pair, hydrates each listed page with a single describe call and merges the
// results. Job values are immutable snapshots; derived fields are computed
// on read.
package jobs

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/3leaps/gosheets/pkg/provider"
)

// Status is a job status bucket.
type Status string

const (
	StatusSubmitted Status = "SUBMITTED"
	StatusPending   Status = "PENDING"
	StatusRunnable  Status = "RUNNABLE"
	StatusStarting  Status = "STARTING"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// Statuses lists every status bucket in lifecycle order.
var Statuses = []Status{
	StatusSubmitted,
	StatusPending,
	StatusRunnable,
	StatusStarting,
	StatusRunning,
	StatusSucceeded,
	StatusFailed,
}

// rank orders statuses by lifecycle stage; unknown statuses rank lowest.
func (s Status) rank() int {
	for i, st := range Statuses {
		if st == s {
			return i
		}
	}
	return -1
}

// containerExitedReason is the boilerplate reason the service reports for
// every job whose main container exited.
const containerExitedReason = "Essential container in task exited"

// Job is one job row.
type Job struct {
	ID         string
	Name       string
	Queue      string
	Status     Status
	Created    *time.Time
	Started    *time.Time
	Stopped    *time.Time
	Image      string
	Cmd        string
	Definition string
	CPUs       *int
	MemoryMiB  *int

	reason          *string
	containerReason *string
	exitCode        *int32
}

// FromRecord maps a raw job record onto a Job.
func FromRecord(rec provider.JobRecord) Job {
	j := Job{
		ID:         rec.JobID,
		Name:       rec.JobName,
		Queue:      ARNName(rec.JobQueue),
		Status:     Status(rec.Status),
		Created:    timestamp(rec.CreatedAt),
		Started:    timestamp(rec.StartedAt),
		Stopped:    timestamp(rec.StoppedAt),
		Definition: ARNName(rec.JobDefinition),
		reason:     rec.StatusReason,
	}

	if c := rec.Container; c != nil {
		j.Image = c.Image
		j.Cmd = strings.Join(c.Command, " ")
		j.CPUs = intPtr(c.Vcpus)
		j.MemoryMiB = intPtr(c.MemoryMi)
		if j.CPUs == nil {
			j.CPUs = requirement(c.ResourceRequirements, "VCPU")
		}
		if j.MemoryMiB == nil {
			j.MemoryMiB = requirement(c.ResourceRequirements, "MEMORY")
		}
		j.containerReason = c.Reason
		j.exitCode = c.ExitCode
	}

	return j
}

// StatusReason explains the job's status.
//
// The service's generic container-exit reason is replaced by "exited <code>"
// (or "exited" without a code). When both a job reason and a container
// reason are present they are combined as "<container reason>, <reason>".
func (j Job) StatusReason() string {
	var reason string
	if j.reason != nil {
		reason = *j.reason
	}
	var containerReason string
	if j.containerReason != nil {
		containerReason = *j.containerReason
	}

	if reason == containerExitedReason {
		if j.exitCode != nil {
			reason = "exited " + strconv.Itoa(int(*j.exitCode))
		} else {
			reason = "exited"
		}
	}

	if reason != "" && containerReason != "" {
		return containerReason + ", " + reason
	}
	if reason != "" {
		return reason
	}
	return containerReason
}

// Runtime reports how long the job has run as of now.
//
// ok is false if the job has not started. A stopped job's runtime is fixed;
// a running job's runtime grows with now (truncated to whole seconds).
func (j Job) Runtime(now time.Time) (d time.Duration, ok bool) {
	if j.Started == nil {
		return 0, false
	}
	end := now.Truncate(time.Second)
	if j.Stopped != nil {
		end = *j.Stopped
	}
	return end.Sub(*j.Started), true
}

// timestamp converts epoch milliseconds to a second-precision UTC time.
func timestamp(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	sec := *ms / 1000
	if *ms < 0 && *ms%1000 != 0 {
		sec--
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func intPtr(v *int32) *int {
	if v == nil {
		return nil
	}
	i := int(*v)
	return &i
}

// requirement parses a numeric resource requirement. Fractional vCPU values
// (Fargate) round up so that a share of a CPU never reports as zero.
func requirement(reqs map[string]string, key string) *int {
	raw, ok := reqs[key]
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil
	}
	i := int(math.Ceil(f))
	return &i
}
