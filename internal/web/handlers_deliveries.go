package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/rtrvrtg/contact-form-connect/internal/connector"
	"github.com/rtrvrtg/contact-form-connect/internal/core"
	"github.com/rtrvrtg/contact-form-connect/internal/flatten"
	"github.com/rtrvrtg/contact-form-connect/internal/logging"
	"github.com/rtrvrtg/contact-form-connect/internal/sheet"
)

const (
	defaultDeliveryLimit = 50
	maxDeliveryLimit     = 500
)

// SubmitResponse is the body of an accepted submission.
type SubmitResponse struct {
	Message    connector.Message `json:"message"`
	Deliveries []string          `json:"deliveries"`
}

// handleSubmit accepts a JSON, YAML or url-encoded submission for a form and
// queues its deliveries. The canonical page URL may be passed as ?url=.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formID")

	payload, err := s.decodeSubmission(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	msg, deliveries, err := s.service.Submit(ctx, formID, payload, r.URL.Query().Get("url"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ids := make([]string, len(deliveries))
	for i, d := range deliveries {
		ids[i] = d.ID
	}
	writeJSON(w, http.StatusAccepted, SubmitResponse{Message: msg, Deliveries: ids})
}

func (s *Server) decodeSubmission(w http.ResponseWriter, r *http.Request) (any, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	body, err := s.readBody(w, r)
	if err != nil {
		return nil, err
	}

	if mediaType == "application/x-www-form-urlencoded" {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidSubmission, err)
		}
		return formValues(values), nil
	}

	payload, err := flatten.Decode(body)
	if err != nil {
		if errors.Is(err, flatten.ErrEmptyDocument) {
			return nil, core.ErrEmptySubmission
		}
		return nil, fmt.Errorf("%w: %v", errInvalidSubmission, err)
	}
	return payload, nil
}

// formValues turns url-encoded fields into an object with keys in sorted
// order. Repeated fields become lists.
func formValues(values url.Values) flatten.Object {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	obj := make(flatten.Object, 0, len(keys))
	for _, k := range keys {
		vs := values[k]
		if len(vs) == 1 {
			obj = append(obj, flatten.Member{Key: k, Value: vs[0]})
			continue
		}
		list := make([]any, len(vs))
		for i, v := range vs {
			list[i] = v
		}
		obj = append(obj, flatten.Member{Key: k, Value: list})
	}
	return obj
}

func (s *Server) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	status := core.DeliveryStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		s.respondError(w, r, fmt.Errorf("%w: %q", errInvalidStatus, status))
		return
	}
	limit := parseIntParam(r, "limit", defaultDeliveryLimit)
	if limit > maxDeliveryLimit {
		limit = maxDeliveryLimit
	}

	ds, err := s.service.Store().ListDeliveries(r.Context(), status, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if ds == nil {
		ds = []core.Delivery{}
	}
	writeJSON(w, http.StatusOK, ds)
}

func (s *Server) handleGetDelivery(w http.ResponseWriter, r *http.Request) {
	d, err := s.service.Store().GetDelivery(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleRetryDelivery(w http.ResponseWriter, r *http.Request) {
	d, err := s.service.Retry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("delivery requeued", "delivery_id", d.ID)
	writeJSON(w, http.StatusOK, d)
}

// ReconcileRequest is the body of POST /api/reconcile. Submission is any
// JSON value; it is flattened the way form submissions are.
type ReconcileRequest struct {
	Sheet      string          `json:"sheet"`
	Table      sheet.Table     `json:"table"`
	Submission json.RawMessage `json:"submission"`
}

// handleReconcile previews the writes a spreadsheet connector would make
// for a submission against a table, without touching any sheet.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	payload, err := flatten.Decode(req.Submission)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", errInvalidSubmission, err))
		return
	}
	rec := s.service.Flatten(connector.Form{}, payload)

	table := make(sheet.Table, len(req.Table))
	for i, row := range req.Table {
		table[i] = sheet.RightTrim(row)
	}
	writeJSON(w, http.StatusOK, s.service.Preview(req.Sheet, table, rec))
}
