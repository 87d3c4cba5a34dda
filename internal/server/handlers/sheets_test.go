package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/3leaps/gosheets/internal/errors"
	"github.com/3leaps/gosheets/internal/source"
	"github.com/3leaps/gosheets/pkg/jobs"
	"github.com/3leaps/gosheets/pkg/kvstore"
	"github.com/3leaps/gosheets/pkg/output"
	"github.com/3leaps/gosheets/pkg/provider"
	"github.com/3leaps/gosheets/pkg/sheet"
)

func serveSheets(t *testing.T, open SheetOpener, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	NewSheetsHandler(open).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.HTTPErrorBody {
	t.Helper()
	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func TestSheetsHandler_OK(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var got SheetRequest
	open := func(_ context.Context, req SheetRequest) (*source.Result, error) {
		got = req
		return &source.Result{
			Table: &sheet.Table{
				Name:   jobs.SheetName,
				Source: req.Source.Raw,
				Columns: []sheet.ColumnInfo{
					{Name: "id", Type: sheet.TypeString},
					{Name: "created", Type: sheet.TypeDate},
					{Name: "runtime", Type: sheet.TypeDuration},
				},
				Rows: [][]any{{"job-1", created, 95 * time.Second}},
			},
			Summary: output.SummaryRecord{Sheet: jobs.SheetName, Rows: 1},
		}, nil
	}

	rec := serveSheets(t, open, "/v1/sheets?source=aws://batch/queues/prod-*&sort=created,id&reverse=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	assert.Equal(t, source.KindJobs, got.Source.Kind)
	assert.Equal(t, "prod-*", got.Source.QueuePattern)
	assert.Equal(t, []sheet.SortKey{{Column: "created", Reverse: true}, {Column: "id", Reverse: true}}, got.Ordering)

	var body SheetResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, jobs.SheetName, body.Name)
	require.Len(t, body.Rows, 1)
	assert.Equal(t, "2024-05-01T10:00:00Z", body.Rows[0]["created"])
	assert.Equal(t, "0:01:35", body.Rows[0]["runtime"])
	assert.Equal(t, 1, body.Summary.Rows)
}

func TestSheetsHandler_BadRequests(t *testing.T) {
	open := func(context.Context, SheetRequest) (*source.Result, error) {
		t.Fatal("opener must not be called for a bad request")
		return nil, nil
	}

	tests := []struct {
		name   string
		target string
	}{
		{"missing source", "/v1/sheets"},
		{"unsupported aws resource", "/v1/sheets?source=aws://s3/bucket"},
		{"unsupported scheme", "/v1/sheets?source=ftp://host/file"},
		{"bad reverse", "/v1/sheets?source=aws://batch&reverse=maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveSheets(t, open, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "INVALID_ARGUMENT", decodeError(t, rec).Code)
		})
	}
}

func TestSheetsHandler_OpenErrors(t *testing.T) {
	denied := &provider.ProviderError{Op: "ListJobs", Provider: provider.ProviderBatch, Queue: "high", Status: "RUNNING", Err: provider.ErrAccessDenied}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unknown column", fmt.Errorf("%w: %q", sheet.ErrUnknownColumn, "colour"), http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"unknown encoding", kvstore.ErrUnknownEncoding, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"queue pattern", jobs.ErrInvalidQueuePattern, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"outside root", fmt.Errorf("%w: /etc/app.db", source.ErrOutsideRoot), http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"missing database", fmt.Errorf("%w: /tmp/none.db", kvstore.ErrDatabaseNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"locked database", fmt.Errorf("%w: /tmp/busy.db", kvstore.ErrDatabaseLocked), http.StatusConflict, "CONFLICT"},
		{"provider error", fmt.Errorf("list job queues: %w", denied), http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"cancelled", context.Canceled, 499, "CANCELLED"},
		{"other", assert.AnError, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			open := func(context.Context, SheetRequest) (*source.Result, error) { return nil, tt.err }

			rec := serveSheets(t, open, "/v1/sheets?source=aws://batch")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestSheetsHandler_LoadErrorDetails(t *testing.T) {
	loadErr := &jobs.LoadError{
		Buckets: 14,
		Failures: []jobs.BucketFailure{
			{Queue: "high", Status: jobs.StatusRunning, Err: provider.ErrThrottled},
		},
	}
	open := func(context.Context, SheetRequest) (*source.Result, error) { return nil, loadErr }

	rec := serveSheets(t, open, "/v1/sheets?source=aws://batch")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	body := decodeError(t, rec)
	assert.Equal(t, "UPSTREAM_ERROR", body.Code)
	assert.Equal(t, "THROTTLED", body.Details["class"])
	assert.Equal(t, float64(14), body.Details["buckets"])

	failed, ok := body.Details["failed"].([]any)
	require.True(t, ok)
	require.Len(t, failed, 1)
	first := failed[0].(map[string]any)
	assert.Equal(t, "high", first["queue"])
	assert.Equal(t, "RUNNING", first["status"])
	assert.Equal(t, "THROTTLED", first["code"])
}

func TestParseOrdering(t *testing.T) {
	assert.Nil(t, ParseOrdering("", false))
	assert.Equal(t, []sheet.SortKey{{Column: "key"}}, ParseOrdering(" key ,", false))
	assert.Equal(t, []sheet.SortKey{{Column: "a", Reverse: true}, {Column: "b", Reverse: true}}, ParseOrdering("a,b", true))
}
