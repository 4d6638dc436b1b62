package jira

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rtrvrtg/contact-form-connect/internal/connector"
	"github.com/rtrvrtg/contact-form-connect/internal/sheet"
	"github.com/rtrvrtg/contact-form-connect/internal/transport"
)

func testMessage() (connector.Form, connector.Message) {
	form := connector.Form{ID: "feedback", Label: "Website feedback"}
	msg := connector.Message{
		ID:  "m-1",
		URL: "https://example.com/contact/feedback/1",
		Record: sheet.NewRecord(
			sheet.Field{Name: "Your name", Value: "Ada"},
			sheet.Field{Name: "Subject", Value: "Broken link"},
		),
	}
	return form, msg
}

func TestSummary(t *testing.T) {
	form, msg := testMessage()

	tests := []struct {
		template string
		want     string
	}{
		{"[form:label]: [message:Subject]", "Website feedback: Broken link"},
		{"[message:id] from [message:Your name]", "m-1 from Ada"},
		{"[form:id] [message:url]", "feedback https://example.com/contact/feedback/1"},
		{"[site:name] [message:missing] hello", "hello"},
		{"no tokens", "no tokens"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			if got := Summary(tt.template, form, msg); got != tt.want {
				t.Errorf("Summary(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}

func TestDescription(t *testing.T) {
	_, msg := testMessage()

	want := "Your name: Ada\nSubject: Broken link\n\nhttps://example.com/contact/feedback/1"
	if got := Description(msg); got != want {
		t.Errorf("Description() = %q, want %q", got, want)
	}

	msg.URL = ""
	want = "Your name: Ada\nSubject: Broken link"
	if got := Description(msg); got != want {
		t.Errorf("Description() without URL = %q, want %q", got, want)
	}
}

func TestSend(t *testing.T) {
	var got createIssueRequest
	var user, pass string
	var path string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		user, pass, _ = r.BasicAuth()
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"10001","key":"WEB-7","self":"x"}`))
	}))
	defer srv.Close()

	var events []connector.Event
	env := connector.Env{
		Observer: connector.ObserverFunc(func(e connector.Event) { events = append(events, e) }),
		HTTP:     transport.Config{RateLimit: 100},
	}
	entity := connector.Entity{ServiceName: Service, Endpoint: srv.URL, Username: "bot", Password: "token"}
	settings := connector.Settings{
		"project_key":   "WEB",
		"issue_summary": "[form:label]: [message:Subject]",
		"task_type":     "10002",
	}

	c, err := connector.New(entity, settings, env)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	form, msg := testMessage()
	if err := c.Send(context.Background(), form, settings, msg); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if path != issuePath {
		t.Errorf("path = %q, want %q", path, issuePath)
	}
	if user != "bot" || pass != "token" {
		t.Errorf("basic auth = %q/%q", user, pass)
	}
	if got.Fields.Project.Key != "WEB" || got.Fields.IssueType.ID != "10002" {
		t.Errorf("fields = %+v", got.Fields)
	}
	if got.Fields.Summary != "Website feedback: Broken link" {
		t.Errorf("summary = %q", got.Fields.Summary)
	}
	if got.Fields.Description != Description(msg) {
		t.Errorf("description = %q", got.Fields.Description)
	}

	var created *Issue
	for _, e := range events {
		if e.Type == connector.EventIssueCreated {
			issue := e.Data.(Issue)
			created = &issue
		}
	}
	if created == nil || created.Key != "WEB-7" {
		t.Errorf("issue_created event = %+v", created)
	}
}

func TestSend_MissingSettings(t *testing.T) {
	entity := connector.Entity{ServiceName: Service, Endpoint: "http://127.0.0.1:1"}
	c, err := connector.New(entity, nil, connector.Env{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	form, msg := testMessage()
	for _, settings := range []connector.Settings{
		{"task_type": "1"},
		{"project_key": "WEB"},
	} {
		if err := c.Send(context.Background(), form, settings, msg); !errors.Is(err, connector.ErrMissingSetting) {
			t.Errorf("Send(%v) error = %v, want ErrMissingSetting", settings, err)
		}
	}
}

func TestInit_RequiresEndpoint(t *testing.T) {
	_, err := connector.New(connector.Entity{ServiceName: Service}, nil, connector.Env{})
	if !errors.Is(err, connector.ErrMissingSetting) {
		t.Errorf("New() error = %v, want ErrMissingSetting", err)
	}
}

func TestSend_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorMessages":["project does not exist"]}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c, err := connector.New(connector.Entity{ServiceName: Service, Endpoint: srv.URL}, nil, connector.Env{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	form, msg := testMessage()
	err = c.Send(context.Background(), form, connector.Settings{"project_key": "X", "task_type": "1"}, msg)

	var httpErr *transport.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusBadRequest {
		t.Errorf("Send() error = %v, want HTTP 400", err)
	}
}
