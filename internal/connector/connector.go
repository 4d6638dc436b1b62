// Package connector defines delivery targets for contact form submissions.
//
// A connector is a stored [Entity] (service name, endpoint and credentials)
// plus per-form [Settings]. Each service registers a [Factory] at init time;
// import internal/connector/all to register every built-in service.
//
//	conn, err := connector.New(entity, settings, connector.Env{Observer: obs})
//	if err != nil {
//	    return err
//	}
//	return conn.Send(ctx, form, settings, msg)
package connector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rtrvrtg/contact-form-connect/internal/sheet"
)

// ErrMissingSetting is returned when a required setting is empty.
var ErrMissingSetting = errors.New("missing required setting")

// Entity is a stored connector: which service to deliver to and how to reach it.
type Entity struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	ServiceName string `json:"serviceName"`
	Endpoint    string `json:"endpoint,omitempty"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
}

// Settings holds the per-form configuration of a connector.
type Settings map[string]string

// Get returns the value for key, or def when it is empty.
func (s Settings) Get(key, def string) string {
	if v := s[key]; v != "" {
		return v
	}
	return def
}

// Require returns the value for key or an error wrapping ErrMissingSetting.
func (s Settings) Require(key string) (string, error) {
	v := s[key]
	if v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingSetting, key)
	}
	return v, nil
}

// SettingField describes one input of a connector's settings form.
type SettingField struct {
	Key          string `json:"key"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Required     bool   `json:"required,omitempty"`
	DefaultValue string `json:"defaultValue,omitempty"`
	Value        string `json:"value,omitempty"`
}

// FieldType restricts the values a form field accepts.
type FieldType string

const (
	FieldText   FieldType = ""
	FieldEmail  FieldType = "email"
	FieldNumber FieldType = "number"
)

// FormField is a field of a contact form and its human readable label.
type FormField struct {
	Name     string    `json:"name"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type,omitempty"`
	Required bool      `json:"required,omitempty"`
}

// Column is the record name the field is delivered under.
func (f FormField) Column() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// Form is a contact form that submissions belong to.
type Form struct {
	ID     string      `json:"id"`
	Label  string      `json:"label"`
	Fields []FormField `json:"fields"`
}

// Labels maps field names to labels for fields that have one.
func (f Form) Labels() map[string]string {
	labels := make(map[string]string, len(f.Fields))
	for _, field := range f.Fields {
		if field.Label != "" {
			labels[field.Name] = field.Label
		}
	}
	return labels
}

// Message is one flattened submission.
type Message struct {
	ID        string       `json:"id"`
	FormID    string       `json:"formId"`
	URL       string       `json:"url,omitempty"`
	Record    sheet.Record `json:"record"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Connector delivers messages to one external service.
type Connector interface {
	// SettingsForm describes the per-form settings this service accepts,
	// filled with the current values where given.
	SettingsForm(current Settings) []SettingField

	// Init prepares the connector for the given settings.
	Init(settings Settings) error

	// Send delivers one message.
	Send(ctx context.Context, form Form, settings Settings, msg Message) error
}

// FillForm copies current values into fields, falling back to defaults.
func FillForm(fields []SettingField, current Settings) []SettingField {
	out := make([]SettingField, len(fields))
	for i, f := range fields {
		f.Value = current.Get(f.Key, f.DefaultValue)
		out[i] = f
	}
	return out
}
