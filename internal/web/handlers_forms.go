package web

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rtrvrtg/contact-form-connect/internal/connector"
	"github.com/rtrvrtg/contact-form-connect/internal/core"
)

// FormRequest is the body of PUT /api/forms/{formID}.
type FormRequest struct {
	Label  string                `json:"label"`
	Fields []connector.FormField `json:"fields"`
}

// BindingRequest is the body of PUT /api/forms/{formID}/connectors/{connectorID}.
// Enabled defaults to true.
type BindingRequest struct {
	Settings connector.Settings `json:"settings"`
	Enabled  *bool              `json:"enabled"`
}

func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	form, err := s.service.Store().GetForm(r.Context(), chi.URLParam(r, "formID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

func (s *Server) handleSaveForm(w http.ResponseWriter, r *http.Request) {
	var req FormRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	form := connector.Form{
		ID:     chi.URLParam(r, "formID"),
		Label:  req.Label,
		Fields: req.Fields,
	}
	if form.Label == "" {
		form.Label = form.ID
	}
	for _, f := range form.Fields {
		if f.Name == "" {
			s.respondError(w, r, fmt.Errorf("%w: form field without a name", errInvalidSubmission))
			return
		}
		switch f.Type {
		case connector.FieldText, connector.FieldEmail, connector.FieldNumber:
		default:
			s.respondError(w, r, fmt.Errorf("%w: field %s has unknown type %q", errInvalidSubmission, f.Name, f.Type))
			return
		}
	}

	if err := s.service.Store().SaveForm(r.Context(), form); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

func (s *Server) handleListBindings(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formID")
	if _, err := s.service.Store().GetForm(r.Context(), formID); err != nil {
		s.respondError(w, r, err)
		return
	}

	bindings, err := s.service.Store().ListBindings(r.Context(), formID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if bindings == nil {
		bindings = []core.Binding{}
	}
	writeJSON(w, http.StatusOK, bindings)
}

// handleSaveBinding attaches a connector to a form. The settings must fill
// every required input of the connector's settings form.
func (s *Server) handleSaveBinding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	formID := chi.URLParam(r, "formID")
	connectorID := chi.URLParam(r, "connectorID")

	var req BindingRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	if _, err := s.service.Store().GetForm(ctx, formID); err != nil {
		s.respondError(w, r, err)
		return
	}
	entity, err := s.service.Store().GetConnector(ctx, connectorID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	fields, err := connector.SettingsForm(entity.ServiceName, req.Settings)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	for _, f := range fields {
		if f.Required && req.Settings[f.Key] == "" {
			s.respondError(w, r, fmt.Errorf("%w: %s", connector.ErrMissingSetting, f.Key))
			return
		}
	}

	b := core.Binding{
		FormID:      formID,
		ConnectorID: connectorID,
		Settings:    req.Settings,
		Enabled:     req.Enabled == nil || *req.Enabled,
	}
	if b.Settings == nil {
		b.Settings = connector.Settings{}
	}
	if err := s.service.Store().SaveBinding(ctx, b); err != nil {
		s.respondError(w, r, err)
		return
	}

	saved, err := s.service.Store().GetBinding(ctx, formID, connectorID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteBinding(w http.ResponseWriter, r *http.Request) {
	err := s.service.Store().DeleteBinding(r.Context(), chi.URLParam(r, "formID"), chi.URLParam(r, "connectorID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
