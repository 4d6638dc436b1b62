// Package jira delivers each message as a new Jira issue.
package jira

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rtrvrtg/contact-form-connect/internal/connector"
	"github.com/rtrvrtg/contact-form-connect/internal/transport"
)

// Service is the registered service name.
const Service = "jira"

const issuePath = "/rest/api/2/issue"

func init() {
	connector.Register(Service, New)
}

// Connector creates one issue per message.
type Connector struct {
	entity connector.Entity
	env    connector.Env
	events connector.Emitter
	client *transport.Client
}

// New builds an uninitialised Jira connector.
func New(entity connector.Entity, env connector.Env) connector.Connector {
	return &Connector{
		entity: entity,
		env:    env,
		events: env.Emitter(Service),
	}
}

// SettingsForm implements connector.Connector.
func (c *Connector) SettingsForm(current connector.Settings) []connector.SettingField {
	return connector.FillForm([]connector.SettingField{
		{
			Key:         "project_key",
			Title:       "Project Key",
			Description: "Enter the key of the JIRA project to save this issue to.",
			Required:    true,
		},
		{
			Key:         "issue_summary",
			Title:       "Issue Summary",
			Description: "Specify the summary of the issue. Tokens allowed: [form:id], [form:label], [message:id], [message:url], [message:<column>].",
		},
		{
			Key:         "task_type",
			Title:       "Task Type ID",
			Description: "Specify the internal ID of the type of task to create.",
			Required:    true,
		},
	}, current)
}

// Init implements connector.Connector.
func (c *Connector) Init(settings connector.Settings) error {
	if c.entity.Endpoint == "" {
		return fmt.Errorf("%w: endpoint", connector.ErrMissingSetting)
	}

	cfg := c.env.HTTP
	cfg.BaseURL = c.entity.Endpoint
	cfg.Auth = transport.BasicAuth{Username: c.entity.Username, Password: c.entity.Password}
	c.client = transport.New(cfg)
	return nil
}

type createIssueRequest struct {
	Fields issueFields `json:"fields"`
}

type issueFields struct {
	Project     keyRef `json:"project"`
	Summary     string `json:"summary"`
	IssueType   idRef  `json:"issuetype"`
	Description string `json:"description"`
}

type keyRef struct {
	Key string `json:"key"`
}

type idRef struct {
	ID string `json:"id"`
}

// Issue is the created issue as returned by Jira.
type Issue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// Send implements connector.Connector.
func (c *Connector) Send(ctx context.Context, form connector.Form, settings connector.Settings, msg connector.Message) error {
	project, err := settings.Require("project_key")
	if err != nil {
		return err
	}
	taskType, err := settings.Require("task_type")
	if err != nil {
		return err
	}

	c.events.Emit(connector.EventSendStart, msg.ID, map[string]any{"project": project})

	payload := createIssueRequest{
		Fields: issueFields{
			Project:     keyRef{Key: project},
			Summary:     Summary(settings.Get("issue_summary", ""), form, msg),
			IssueType:   idRef{ID: taskType},
			Description: Description(msg),
		},
	}

	resp, err := c.client.Post(ctx, issuePath, nil, payload)
	if err != nil {
		return fmt.Errorf("create issue in %s: %w", project, err)
	}

	var issue Issue
	if err := resp.JSON(&issue); err != nil {
		return fmt.Errorf("decode created issue: %w", err)
	}

	c.events.Emit(connector.EventIssueCreated, msg.ID, issue)
	c.events.Emit(connector.EventSendDone, msg.ID, nil)
	return nil
}

var tokenPattern = regexp.MustCompile(`\[([a-z_]+):([^\[\]]+)\]`)

// Summary replaces tokens in template. Tokens with no value are removed.
func Summary(template string, form connector.Form, msg connector.Message) string {
	out := tokenPattern.ReplaceAllStringFunc(template, func(token string) string {
		m := tokenPattern.FindStringSubmatch(token)
		kind, name := m[1], m[2]

		switch kind {
		case "form":
			switch name {
			case "id":
				return form.ID
			case "label":
				return form.Label
			}
		case "message":
			switch name {
			case "id":
				return msg.ID
			case "url":
				return msg.URL
			}
			if v, ok := msg.Record.Get(name); ok {
				return v
			}
		}
		return ""
	})
	return strings.TrimSpace(out)
}

// Description renders the message as "name: value" lines followed by its
// URL when known.
func Description(msg connector.Message) string {
	var b strings.Builder
	for i, f := range msg.Record {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.Value)
	}
	if msg.URL != "" {
		b.WriteString("\n\n")
		b.WriteString(msg.URL)
	}
	return b.String()
}
