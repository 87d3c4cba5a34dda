// Package errors defines the application error type shared by the CLI and
// the HTTP surface, plus the JSON error envelope written by handlers.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/3leaps/gosheets/pkg/provider"
)

// Error codes used in HTTP error envelopes.
const (
	CodeInvalidArgument    = "INVALID_ARGUMENT"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeConflict           = "CONFLICT"
	CodeUpstream           = "UPSTREAM_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeCancelled          = "CANCELLED"
	CodeInternal           = "INTERNAL_ERROR"
)

// AppError carries an HTTP status and a machine-readable code alongside the
// underlying cause.
type AppError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error { return e.Err }

// WithDetails returns e with details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// NewInvalidArgument reports bad caller input.
func NewInvalidArgument(message string, err error) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: CodeInvalidArgument, Message: message, Err: err}
}

// NewNotFound reports a named resource that does not exist.
func NewNotFound(message string, err error) *AppError {
	return &AppError{Status: http.StatusNotFound, Code: CodeNotFound, Message: message, Err: err}
}

// NewConflict reports a resource held by another user.
func NewConflict(message string, err error) *AppError {
	return &AppError{Status: http.StatusConflict, Code: CodeConflict, Message: message, Err: err}
}

// NewExternalServiceError reports an unreachable dependency.
func NewExternalServiceError(message string) *AppError {
	return &AppError{Status: http.StatusServiceUnavailable, Code: CodeServiceUnavailable, Message: message}
}

// NewUpstreamError reports a failure returned by a record source.
func NewUpstreamError(message string, err error) *AppError {
	e := &AppError{Status: http.StatusBadGateway, Code: CodeUpstream, Message: message, Err: err}
	if class := provider.Classify(err); class != "" {
		e.WithDetails(map[string]any{"class": class})
	}
	return e
}

// WrapInternal wraps an unexpected failure. Cancellation is reported as
// CANCELLED rather than INTERNAL_ERROR.
func WrapInternal(ctx context.Context, err error, message string) *AppError {
	if (ctx != nil && ctx.Err() != nil) || stderrors.Is(err, context.Canceled) {
		return &AppError{Status: 499, Code: CodeCancelled, Message: message, Err: err}
	}
	return &AppError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: message, Err: err}
}

// HTTPErrorBody is the payload of an error envelope.
type HTTPErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// HTTPErrorResponse is the JSON error envelope: {"error": {...}}.
type HTTPErrorResponse struct {
	Error HTTPErrorBody `json:"error"`
}

// RequestIDHeader carries the correlation ID for a request.
const RequestIDHeader = "X-Request-ID"

// WriteError writes an error envelope with the given status.
func WriteError(w http.ResponseWriter, status int, body HTTPErrorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{Error: body})
}

// RespondWithError writes err as an error envelope. Errors that are not an
// *AppError become 500 INTERNAL_ERROR with a generic message.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	body := HTTPErrorBody{Code: CodeInternal, Message: "internal error"}
	status := http.StatusInternalServerError

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		status = appErr.Status
		body.Code = appErr.Code
		body.Message = appErr.Error()
		body.Details = appErr.Details
	}
	if r != nil {
		body.RequestID = r.Header.Get(RequestIDHeader)
	}
	WriteError(w, status, body)
}
