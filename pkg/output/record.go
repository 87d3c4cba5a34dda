// Package output renders sheets as JSONL records, aligned text tables or
// YAML documents.
//
// JSONL output is structured as typed record envelopes: one columns record,
// one row record per row, error records for failures and a final summary.
// Each line is a self-contained JSON object that can be parsed
// independently.
package output

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/3leaps/gosheets/pkg/sheet"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: gosheets.<type>.v<version>
const (
	// TypeColumns identifies the column metadata record emitted first.
	TypeColumns = "gosheets.columns.v1"

	// TypeRow identifies row records.
	TypeRow = "gosheets.row.v1"

	// TypeError identifies error records.
	TypeError = "gosheets.error.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "gosheets.summary.v1"
)

// Record is the envelope for all JSONL output.
//
// Each line of JSONL output contains a Record with a type-specific
// payload in the Data field. The type field determines how to
// interpret the Data payload.
type Record struct {
	// Type identifies the record type (e.g., "gosheets.row.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// JobID is the correlation ID for this open.
	JobID string `json:"job_id"`

	// Source is the resource the sheet was opened from
	// (e.g., "aws://batch", "dbm:///var/lib/app.db").
	Source string `json:"source"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// ColumnsRecord is the data payload describing a sheet's columns.
type ColumnsRecord struct {
	Sheet   string             `json:"sheet"`
	Columns []sheet.ColumnInfo `json:"columns"`
}

// RowRecord is the data payload for one row.
//
// Values are keyed by column name; absent cells are null. Dates are
// RFC3339 strings and durations are h:mm:ss strings.
type RowRecord struct {
	Index  int            `json:"index"`
	Values map[string]any `json:"values"`
}

// ErrorRecord is the data payload for errors.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Queue and Status identify the failed job bucket, if applicable.
	Queue  string `json:"queue,omitempty"`
	Status string `json:"status,omitempty"`

	// Details contains additional error context.
	Details any `json:"details,omitempty"`
}

// Error codes for ErrorRecord.
const (
	ErrCodeInvalidArgument    = "INVALID_ARGUMENT"
	ErrCodeAccessDenied       = "ACCESS_DENIED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeThrottled          = "THROTTLED"
	ErrCodeUnavailable        = "PROVIDER_UNAVAILABLE"
	ErrCodeLocked             = "LOCKED"
	ErrCodeCancelled          = "CANCELLED"
	ErrCodeInternal           = "INTERNAL"
)

// SummaryRecord is the data payload for final summaries.
type SummaryRecord struct {
	Sheet string `json:"sheet"`

	// Rows is the number of rows emitted.
	Rows int `json:"rows"`

	// Queues, Buckets, Pages and Duplicates are only set for job sheets.
	Queues     []string `json:"queues,omitempty"`
	Buckets    int      `json:"buckets,omitempty"`
	Pages      int64    `json:"pages,omitempty"`
	Duplicates int      `json:"duplicates,omitempty"`

	// Encoding is only set for key-value sheets.
	Encoding string `json:"encoding,omitempty"`

	// Duration is the total load duration.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`

	// Errors is the count of errors encountered.
	Errors int `json:"errors"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
