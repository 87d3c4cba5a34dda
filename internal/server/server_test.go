package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/3leaps/gosheets/internal/errors"
	"github.com/3leaps/gosheets/internal/server/handlers"
	"github.com/3leaps/gosheets/internal/source"
	"github.com/3leaps/gosheets/pkg/sheet"
)

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New("127.0.0.1", 0)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)
}

func TestServer_Port(t *testing.T) {
	tests := []struct {
		name string
		port int
		addr string
	}{
		{"default port", 8080, "127.0.0.1:8080"},
		{"custom port", 9000, "127.0.0.1:9000"},
		{"zero port", 0, "127.0.0.1:0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New("127.0.0.1", tt.port)
			assert.Equal(t, tt.port, srv.Port())
			assert.Equal(t, tt.addr, srv.Addr())
		})
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv := New("127.0.0.1", 0)

	req := httptest.NewRequest(http.MethodPost, "/version", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "METHOD_NOT_ALLOWED", body.Error.Code)
}

func TestServer_RoutesRegistered(t *testing.T) {
	handlers.InitHealthManager("test")

	srv := New("127.0.0.1", 0)

	endpoints := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/health/live", http.StatusOK},
		{"GET", "/health/ready", http.StatusOK},
		{"GET", "/health/startup", http.StatusOK},
		{"GET", "/version", http.StatusOK},
		// No opener configured.
		{"GET", "/v1/sheets?source=aws://batch", http.StatusServiceUnavailable},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			rec := httptest.NewRecorder()

			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, ep.want, rec.Code, "endpoint %s %s should return %d", ep.method, ep.path, ep.want)
		})
	}
}

func TestServer_Sheets(t *testing.T) {
	var got handlers.SheetRequest
	open := func(_ context.Context, req handlers.SheetRequest) (*source.Result, error) {
		got = req
		return &source.Result{Table: &sheet.Table{
			Name:    "app.db",
			Source:  req.Source.Raw,
			Columns: []sheet.ColumnInfo{{Name: "key", Type: sheet.TypeString}, {Name: "value", Type: sheet.TypeString}},
			Rows:    [][]any{{"a", "1"}},
		}}, nil
	}

	srv := New("127.0.0.1", 0, WithSheetOpener(open))

	req := httptest.NewRequest(http.MethodGet, "/v1/sheets?source=dbm:///tmp/app.db&encoding=latin1", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/tmp/app.db", got.Source.Path)
	assert.Equal(t, "latin1", got.Encoding)

	var body handlers.SheetResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "app.db", body.Name)
	assert.Equal(t, []map[string]any{{"key": "a", "value": "1"}}, body.Rows)
}

func TestServer_Shutdown(t *testing.T) {
	srv := New("127.0.0.1", 0)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	// Shutdown before or after ListenAndServe begins both end Start cleanly.
	require.NoError(t, srv.Shutdown(context.Background()))
	assert.NoError(t, <-errCh)
}
