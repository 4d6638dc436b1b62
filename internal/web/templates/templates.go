// Package templates renders the HTML fragments the server returns to HTMX
// requests.
package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/rtrvrtg/contact-form-connect/internal/connector"
)

// ErrorAlert renders a dismissible error box with the user message, the
// suggested action and the support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		html := `<div class="alert alert-error" role="alert" data-code="` + templ.EscapeString(code) + `">` +
			`<p class="alert-message">` + templ.EscapeString(message) + `</p>`
		if action != "" {
			html += `<p class="alert-action">` + templ.EscapeString(action) + `</p>`
		}
		html += `<p class="alert-code">Code: ` + templ.EscapeString(code) + `</p>` +
			`<button type="button" class="alert-close" onclick="this.parentElement.remove()">Dismiss</button>` +
			`</div>`
		_, err := io.WriteString(w, html)
		return err
	})
}

// SettingsForm renders the inputs of a connector's per-form settings. Input
// names are "settings[<key>]".
func SettingsForm(service string, fields []connector.SettingField) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<fieldset class="connector-settings" data-service="`+templ.EscapeString(service)+`">`); err != nil {
			return err
		}
		for _, f := range fields {
			if err := settingInput(f).Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</fieldset>`)
		return err
	})
}

func settingInput(f connector.SettingField) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		id := "setting-" + f.Key
		value := f.Value
		if value == "" {
			value = f.DefaultValue
		}

		html := `<div class="field">` +
			`<label for="` + templ.EscapeString(id) + `">` + templ.EscapeString(f.Title) + `</label>` +
			`<input type="text" id="` + templ.EscapeString(id) + `" name="settings[` + templ.EscapeString(f.Key) + `]"` +
			` value="` + templ.EscapeString(value) + `"`
		if f.Required {
			html += ` required`
		}
		html += `>`
		if f.Description != "" {
			html += `<small>` + templ.EscapeString(f.Description) + `</small>`
		}
		html += `</div>`
		_, err := io.WriteString(w, html)
		return err
	})
}
