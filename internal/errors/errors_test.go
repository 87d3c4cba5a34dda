package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/gosheets/pkg/provider"
)

func TestRespondWithError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "invalid argument",
			err:        NewInvalidArgument("unsupported source", fmt.Errorf("aws://s3")),
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidArgument,
			wantMsg:    "unsupported source: aws://s3",
		},
		{
			name:       "wrapped app error",
			err:        fmt.Errorf("outer: %w", NewExternalServiceError("batch unreachable")),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   CodeServiceUnavailable,
			wantMsg:    "batch unreachable",
		},
		{
			name:       "not found",
			err:        NewNotFound("database not found", fmt.Errorf("/tmp/none.db")),
			wantStatus: http.StatusNotFound,
			wantCode:   CodeNotFound,
			wantMsg:    "database not found: /tmp/none.db",
		},
		{
			name:       "conflict",
			err:        NewConflict("database is locked", nil),
			wantStatus: http.StatusConflict,
			wantCode:   CodeConflict,
			wantMsg:    "database is locked",
		},
		{
			name:       "plain error hides message",
			err:        assert.AnError,
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeInternal,
			wantMsg:    "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/sheets", nil)
			req.Header.Set(RequestIDHeader, "req-1")
			rec := httptest.NewRecorder()

			RespondWithError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body HTTPErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.Equal(t, tt.wantMsg, body.Error.Message)
			assert.Equal(t, "req-1", body.Error.RequestID)
		})
	}
}

func TestNewUpstreamError_Classifies(t *testing.T) {
	cause := &provider.ProviderError{Op: "ListJobs", Provider: provider.ProviderBatch, Err: provider.ErrAccessDenied}

	err := NewUpstreamError("load failed", cause)

	assert.Equal(t, http.StatusBadGateway, err.Status)
	assert.Equal(t, "ACCESS_DENIED", err.Details["class"])
	assert.ErrorIs(t, err, provider.ErrAccessDenied)
}

func TestWrapInternal(t *testing.T) {
	err := WrapInternal(context.Background(), assert.AnError, "boom")
	assert.Equal(t, CodeInternal, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = WrapInternal(ctx, ctx.Err(), "stopped")
	assert.Equal(t, CodeCancelled, err.Code)
}

func TestAppError_WithDetails(t *testing.T) {
	err := NewInvalidArgument("bad", nil).WithDetails(map[string]any{"field": "source"})
	err.WithDetails(map[string]any{"value": "x"})

	assert.Equal(t, map[string]any{"field": "source", "value": "x"}, err.Details)
	assert.Equal(t, "bad", err.Error())
}
