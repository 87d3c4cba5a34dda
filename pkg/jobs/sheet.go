package jobs

import (
	"time"

	"github.com/3leaps/gosheets/pkg/sheet"
)

// SheetName is the name of the jobs sheet.
const SheetName = "aws-batch-jobs"

// DefaultOrder sorts the most recently created (then started) jobs first.
var DefaultOrder = []sheet.SortKey{
	{Column: "created", Reverse: true},
	{Column: "started", Reverse: true},
}

// Columns returns the jobs sheet columns.
//
// now is consulted every time a runtime cell is read; nil means time.Now.
func Columns(now func() time.Time) []sheet.Column[Job] {
	if now == nil {
		now = time.Now
	}

	runtime := func(j Job) (time.Duration, bool) { return j.Runtime(now()) }

	return []sheet.Column[Job]{
		{Name: "id", Type: sheet.TypeString, Value: func(j Job) any { return j.ID }},
		{Name: "name", Type: sheet.TypeString, Value: func(j Job) any { return j.Name }},
		{Name: "queue", Type: sheet.TypeString, Value: func(j Job) any { return j.Queue }},
		{Name: "status", Type: sheet.TypeString, Value: func(j Job) any { return string(j.Status) }},
		{Name: "status_reason", Type: sheet.TypeString, Value: func(j Job) any { return j.StatusReason() }},
		{Name: "created", Type: sheet.TypeDate, Value: func(j Job) any { return timeValue(j.Created) }},
		{Name: "started", Type: sheet.TypeDate, Value: func(j Job) any { return timeValue(j.Started) }},
		{Name: "stopped", Type: sheet.TypeDate, Value: func(j Job) any { return timeValue(j.Stopped) }},
		{Name: "runtime", Type: sheet.TypeDuration, Value: func(j Job) any {
			if d, ok := runtime(j); ok {
				return d
			}
			return nil
		}},
		{Name: "runtime_seconds", Type: sheet.TypeInt, Value: func(j Job) any {
			if d, ok := runtime(j); ok {
				return int64(d / time.Second)
			}
			return nil
		}},
		{Name: "image", Type: sheet.TypeString, Value: func(j Job) any { return j.Image }},
		{Name: "cmd", Type: sheet.TypeString, Value: func(j Job) any { return j.Cmd }},
		{Name: "definition", Type: sheet.TypeString, Value: func(j Job) any { return j.Definition }},
		{Name: "cpus", Type: sheet.TypeInt, Value: func(j Job) any { return intValue(j.CPUs) }},
		{Name: "memory_mib", Type: sheet.TypeInt, Value: func(j Job) any { return intValue(j.MemoryMiB) }},
	}
}

// NewSheet creates an empty jobs sheet ordered by DefaultOrder.
func NewSheet(source string, now func() time.Time) *sheet.Sheet[Job] {
	return sheet.New(SheetName, source, Columns(now), DefaultOrder...)
}

func timeValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func intValue(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}
