package web

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/rtrvrtg/contact-form-connect/internal/connector"
	"github.com/rtrvrtg/contact-form-connect/internal/core"
	"github.com/rtrvrtg/contact-form-connect/internal/store"
	"github.com/rtrvrtg/contact-form-connect/internal/web/templates"
)

// ConnectorView is a connector as the API returns it. The password is never
// sent back.
type ConnectorView struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	ServiceName string `json:"serviceName"`
	Endpoint    string `json:"endpoint,omitempty"`
	Username    string `json:"username,omitempty"`
	HasPassword bool   `json:"hasPassword"`
}

func toConnectorView(e connector.Entity) ConnectorView {
	return ConnectorView{
		ID:          e.ID,
		Label:       e.Label,
		ServiceName: e.ServiceName,
		Endpoint:    e.Endpoint,
		Username:    e.Username,
		HasPassword: e.Password != "",
	}
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Deliveries core.LimiterStatus `json:"deliveries"`
	Services   []string           `json:"services"`
	Queue      map[string]int     `json:"queue"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.service.Store().(store.Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			s.respondError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusScanLimit bounds how many deliveries a status request counts.
const statusScanLimit = 1000

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ds, err := s.service.Store().ListDeliveries(r.Context(), "", statusScanLimit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	queue := map[string]int{}
	for _, d := range ds {
		queue[string(d.Status)]++
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Deliveries: s.service.Limiter().Status(),
		Services:   connector.Services(),
		Queue:      queue,
	})
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, connector.Services())
}

// handleSettingsForm returns the settings inputs of a service, filled from
// the query string.
func (s *Server) handleSettingsForm(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")

	current := connector.Settings{}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			current[k] = v[0]
		}
	}

	fields, err := connector.SettingsForm(service, current)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		templates.SettingsForm(service, fields).Render(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusOK, fields)
}

func (s *Server) handleListConnectors(w http.ResponseWriter, r *http.Request) {
	entities, err := s.service.Store().ListConnectors(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	views := make([]ConnectorView, len(entities))
	for i, e := range entities {
		views[i] = toConnectorView(e)
	}
	sort.SliceStable(views, func(i, j int) bool { return views[i].Label < views[j].Label })
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetConnector(w http.ResponseWriter, r *http.Request) {
	e, err := s.service.Store().GetConnector(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toConnectorView(e))
}

func (s *Server) handleCreateConnector(w http.ResponseWriter, r *http.Request) {
	var e connector.Entity
	if err := s.decodeJSON(w, r, &e); err != nil {
		s.respondError(w, r, err)
		return
	}
	e.ID = ""
	s.saveConnector(w, r, e, http.StatusCreated)
}

// handleUpdateConnector replaces a connector. An empty password keeps the
// stored one.
func (s *Server) handleUpdateConnector(w http.ResponseWriter, r *http.Request) {
	existing, err := s.service.Store().GetConnector(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var e connector.Entity
	if err := s.decodeJSON(w, r, &e); err != nil {
		s.respondError(w, r, err)
		return
	}
	e.ID = existing.ID
	if e.Password == "" {
		e.Password = existing.Password
	}
	s.saveConnector(w, r, e, http.StatusOK)
}

func (s *Server) saveConnector(w http.ResponseWriter, r *http.Request, e connector.Entity, status int) {
	if _, ok := connector.Lookup(e.ServiceName); !ok {
		s.respondError(w, r, unknownService(e.ServiceName))
		return
	}
	if e.Label == "" {
		e.Label = e.ServiceName
	}

	saved, err := s.service.Store().SaveConnector(r.Context(), e)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, status, toConnectorView(saved))
}

func (s *Server) handleDeleteConnector(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Store().DeleteConnector(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
