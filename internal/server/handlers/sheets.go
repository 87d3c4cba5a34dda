package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/3leaps/gosheets/internal/errors"
	"github.com/3leaps/gosheets/internal/source"
	"github.com/3leaps/gosheets/pkg/jobs"
	"github.com/3leaps/gosheets/pkg/kvstore"
	"github.com/3leaps/gosheets/pkg/output"
	"github.com/3leaps/gosheets/pkg/provider"
	"github.com/3leaps/gosheets/pkg/sheet"
)

// SheetRequest is a parsed GET /v1/sheets query.
type SheetRequest struct {
	Source   source.Source
	Ordering []sheet.SortKey
	Encoding string
}

// SheetOpener loads the sheet a request names.
type SheetOpener func(ctx context.Context, req SheetRequest) (*source.Result, error)

// SheetResponse is the body of GET /v1/sheets.
type SheetResponse struct {
	Name    string               `json:"name"`
	Source  string               `json:"source"`
	Columns []sheet.ColumnInfo   `json:"columns"`
	Rows    []map[string]any     `json:"rows"`
	Summary output.SummaryRecord `json:"summary"`
}

// SheetsHandler serves GET /v1/sheets?source=<url>[&sort=a,b][&reverse=true][&encoding=name].
type SheetsHandler struct {
	open SheetOpener
}

// NewSheetsHandler creates a handler backed by open.
func NewSheetsHandler(open SheetOpener) *SheetsHandler {
	return &SheetsHandler{open: open}
}

func (h *SheetsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.open == nil {
		respondWithError(w, r, apperrors.NewExternalServiceError("sheet loading is not configured"))
		return
	}

	req, err := parseSheetRequest(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	res, err := h.open(r.Context(), req)
	if err != nil {
		respondWithError(w, r, classifyOpenError(r.Context(), err))
		return
	}

	rows := make([]map[string]any, len(res.Table.Rows))
	for i, cells := range res.Table.Rows {
		rows[i] = output.RowValues(res.Table.Columns, cells)
	}
	writeJSON(w, http.StatusOK, SheetResponse{
		Name:    res.Table.Name,
		Source:  res.Table.Source,
		Columns: res.Table.Columns,
		Rows:    rows,
		Summary: res.Summary,
	})
}

func parseSheetRequest(r *http.Request) (SheetRequest, error) {
	q := r.URL.Query()

	raw := q.Get("source")
	if raw == "" {
		return SheetRequest{}, apperrors.NewInvalidArgument("missing source parameter", nil)
	}
	src, err := source.Parse(raw)
	if err != nil {
		return SheetRequest{}, apperrors.NewInvalidArgument("unsupported source", err).
			WithDetails(map[string]any{"source": raw})
	}

	reverse := false
	if v := q.Get("reverse"); v != "" {
		reverse, err = strconv.ParseBool(v)
		if err != nil {
			return SheetRequest{}, apperrors.NewInvalidArgument("invalid reverse parameter", err)
		}
	}

	return SheetRequest{
		Source:   src,
		Ordering: ParseOrdering(q.Get("sort"), reverse),
		Encoding: q.Get("encoding"),
	}, nil
}

// ParseOrdering turns "a,b" into sort keys; reverse applies to every key.
func ParseOrdering(spec string, reverse bool) []sheet.SortKey {
	var keys []sheet.SortKey
	for _, name := range strings.Split(spec, ",") {
		if name = strings.TrimSpace(name); name != "" {
			keys = append(keys, sheet.SortKey{Column: name, Reverse: reverse})
		}
	}
	return keys
}

// classifyOpenError maps a load failure onto an HTTP error.
func classifyOpenError(ctx context.Context, err error) error {
	var loadErr *jobs.LoadError
	switch {
	case source.IsInvalidRequest(err):
		return apperrors.NewInvalidArgument("invalid request", err)
	case errors.Is(err, kvstore.ErrDatabaseNotFound):
		return apperrors.NewNotFound("database not found", err)
	case errors.Is(err, kvstore.ErrDatabaseLocked):
		return apperrors.NewConflict("database is locked", err)
	case errors.As(err, &loadErr):
		failed := make([]map[string]any, len(loadErr.Failures))
		for i, f := range loadErr.Failures {
			failed[i] = map[string]any{
				"queue":   f.Queue,
				"status":  string(f.Status),
				"code":    f.Code(),
				"message": f.Err.Error(),
			}
		}
		return apperrors.NewUpstreamError("load failed", err).
			WithDetails(map[string]any{"buckets": loadErr.Buckets, "failed": failed})
	case provider.Classify(err) != output.ErrCodeInternal:
		return apperrors.NewUpstreamError("load failed", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperrors.WrapInternal(ctx, err, "load cancelled")
	default:
		return apperrors.WrapInternal(ctx, err, "load failed")
	}
}
