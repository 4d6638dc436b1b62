package web

// errors.go turns handler errors into responses.
//
// The technical error is logged with the request id; the client receives
// the core.MapError message, action and code. HTMX requests get an HTML
// alert fragment, everything else JSON.

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rtrvrtg/contact-form-connect/internal/connector"
	"github.com/rtrvrtg/contact-form-connect/internal/core"
	"github.com/rtrvrtg/contact-form-connect/internal/flatten"
	"github.com/rtrvrtg/contact-form-connect/internal/logging"
	"github.com/rtrvrtg/contact-form-connect/internal/web/templates"
)

var (
	errInvalidSubmission = errors.New("invalid submission")
	errInvalidStatus     = errors.New("invalid status")
)

// ErrorResponse is the JSON body of an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`

	// Fields lists per-field problems of a rejected submission.
	Fields []core.ValidationError `json:"fields,omitempty"`
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	var invalid core.ValidationErrors
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrNotRetryable):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyDeliveries):
		return http.StatusServiceUnavailable
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrEmptySubmission),
		errors.Is(err, errInvalidSubmission),
		errors.Is(err, errInvalidStatus),
		errors.Is(err, flatten.ErrEmptyDocument),
		errors.Is(err, connector.ErrMissingSetting),
		errors.Is(err, connector.ErrUnknownService):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the mapped user message with the status
// statusFor picks.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	}
	if status >= 500 {
		logger.Error("request error", args...)
	} else {
		logger.Warn("request error", args...)
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
		return
	}

	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	var invalid core.ValidationErrors
	if errors.As(err, &invalid) {
		resp.Fields = invalid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func unknownService(name string) error {
	return fmt.Errorf("%w: %q", connector.ErrUnknownService, name)
}
