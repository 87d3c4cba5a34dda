package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/gosheets/pkg/provider"
)

func strp(s string) *string { return &s }
func i32p(i int32) *int32   { return &i }
func i64p(i int64) *int64   { return &i }

func TestARNName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"arn:aws:batch:us-east-1:123456789012:job-queue/my-queue", "my-queue"},
		{"arn:aws:batch:us-east-1:123456789012:job-definition/my-job:3", "my-job:3"},
		{"arn:aws:batch:us-east-1:123456789012:job/a/b", "a/b"},
		{"job-queue/my-queue", "my-queue"},
		{"my-queue", "my-queue"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ARNName(tt.in))
		})
	}
}

func TestFromRecord(t *testing.T) {
	rec := provider.JobRecord{
		JobID:         "8a1f",
		JobName:       "nightly-report",
		JobQueue:      "arn:aws:batch:us-east-1:123456789012:job-queue/high",
		Status:        "SUCCEEDED",
		JobDefinition: "arn:aws:batch:us-east-1:123456789012:job-definition/report:7",
		CreatedAt:     i64p(1_600_000_000_123),
		StartedAt:     i64p(1_600_000_060_999),
		StoppedAt:     i64p(1_600_000_180_000),
		Container: &provider.ContainerRecord{
			Image:    "registry/report:latest",
			Command:  []string{"python", "-m", "report", "--day", "today"},
			Vcpus:    i32p(4),
			MemoryMi: i32p(8192),
		},
	}

	j := FromRecord(rec)

	assert.Equal(t, "8a1f", j.ID)
	assert.Equal(t, "nightly-report", j.Name)
	assert.Equal(t, "high", j.Queue)
	assert.Equal(t, StatusSucceeded, j.Status)
	assert.Equal(t, "report:7", j.Definition)
	assert.Equal(t, "registry/report:latest", j.Image)
	assert.Equal(t, "python -m report --day today", j.Cmd)
	require.NotNil(t, j.CPUs)
	assert.Equal(t, 4, *j.CPUs)
	require.NotNil(t, j.MemoryMiB)
	assert.Equal(t, 8192, *j.MemoryMiB)

	require.NotNil(t, j.Created)
	assert.Equal(t, time.Unix(1_600_000_000, 0).UTC(), *j.Created, "milliseconds truncate to seconds")
	assert.Equal(t, time.Unix(1_600_000_060, 0).UTC(), *j.Started)
	assert.Equal(t, time.Unix(1_600_000_180, 0).UTC(), *j.Stopped)
}

func TestFromRecord_SparseRecord(t *testing.T) {
	j := FromRecord(provider.JobRecord{JobID: "x", JobQueue: "q", Status: "SUBMITTED"})

	assert.Nil(t, j.Created)
	assert.Nil(t, j.Started)
	assert.Nil(t, j.Stopped)
	assert.Nil(t, j.CPUs)
	assert.Nil(t, j.MemoryMiB)
	assert.Empty(t, j.Cmd)
	assert.Empty(t, j.StatusReason())
}

func TestFromRecord_ResourceRequirementsFallback(t *testing.T) {
	j := FromRecord(provider.JobRecord{
		JobID: "x",
		Container: &provider.ContainerRecord{
			ResourceRequirements: map[string]string{"VCPU": "0.25", "MEMORY": "512"},
		},
	})

	require.NotNil(t, j.CPUs)
	assert.Equal(t, 1, *j.CPUs)
	require.NotNil(t, j.MemoryMiB)
	assert.Equal(t, 512, *j.MemoryMiB)
}

func TestStatusReason(t *testing.T) {
	tests := []struct {
		name            string
		reason          *string
		containerReason *string
		exitCode        *int32
		want            string
	}{
		{
			name:     "boilerplate with exit code",
			reason:   strp("Essential container in task exited"),
			exitCode: i32p(137),
			want:     "exited 137",
		},
		{
			name:   "boilerplate without exit code",
			reason: strp("Essential container in task exited"),
			want:   "exited",
		},
		{
			name:            "container reason only",
			containerReason: strp("OutOfMemoryError"),
			want:            "OutOfMemoryError",
		},
		{
			name:            "both present",
			reason:          strp("Job attempt duration exceeded timeout"),
			containerReason: strp("CannotPullContainerError"),
			want:            "CannotPullContainerError, Job attempt duration exceeded timeout",
		},
		{
			name:            "boilerplate combined with container reason",
			reason:          strp("Essential container in task exited"),
			containerReason: strp("OutOfMemoryError: Container killed due to memory usage"),
			exitCode:        i32p(137),
			want:            "OutOfMemoryError: Container killed due to memory usage, exited 137",
		},
		{
			name:   "reason only",
			reason: strp("Dependent job failed"),
			want:   "Dependent job failed",
		},
		{
			name: "neither",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := provider.JobRecord{StatusReason: tt.reason}
			if tt.containerReason != nil || tt.exitCode != nil {
				rec.Container = &provider.ContainerRecord{Reason: tt.containerReason, ExitCode: tt.exitCode}
			}
			assert.Equal(t, tt.want, FromRecord(rec).StatusReason())
		})
	}
}

func TestRuntime(t *testing.T) {
	start := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	stop := start.Add(90 * time.Second)

	t.Run("not started", func(t *testing.T) {
		_, ok := Job{}.Runtime(start)
		assert.False(t, ok)
	})

	t.Run("running grows with now", func(t *testing.T) {
		j := Job{Started: &start}

		d1, ok := j.Runtime(start.Add(10*time.Second + 400*time.Millisecond))
		require.True(t, ok)
		assert.Equal(t, 10*time.Second, d1)

		d2, ok := j.Runtime(start.Add(25 * time.Second))
		require.True(t, ok)
		assert.Equal(t, 25*time.Second, d2)
	})

	t.Run("stopped is fixed", func(t *testing.T) {
		j := Job{Started: &start, Stopped: &stop}

		d1, _ := j.Runtime(start.Add(time.Hour))
		d2, _ := j.Runtime(start.Add(48 * time.Hour))
		assert.Equal(t, 90*time.Second, d1)
		assert.Equal(t, d1, d2)
	})
}

func TestColumns_RuntimeRecomputedOnRead(t *testing.T) {
	start := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	now := start.Add(5 * time.Second)
	clock := func() time.Time { return now }

	cols := Columns(clock)
	var runtimeCol, secondsCol func(Job) any
	for _, c := range cols {
		switch c.Name {
		case "runtime":
			runtimeCol = c.Value
		case "runtime_seconds":
			secondsCol = c.Value
		}
	}
	require.NotNil(t, runtimeCol)
	require.NotNil(t, secondsCol)

	j := Job{Started: &start}
	assert.Equal(t, 5*time.Second, runtimeCol(j))
	assert.Equal(t, int64(5), secondsCol(j))

	now = start.Add(65 * time.Second)
	assert.Equal(t, 65*time.Second, runtimeCol(j))
	assert.Equal(t, int64(65), secondsCol(j))

	assert.Nil(t, runtimeCol(Job{}))
	assert.Nil(t, secondsCol(Job{}))
}

func TestColumns_Names(t *testing.T) {
	var got []string
	for _, c := range Columns(nil) {
		got = append(got, c.Name)
	}
	assert.Equal(t, []string{
		"id", "name", "queue", "status", "status_reason",
		"created", "started", "stopped", "runtime", "runtime_seconds",
		"image", "cmd", "definition", "cpus", "memory_mib",
	}, got)
}
