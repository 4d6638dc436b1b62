package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rtrvrtg/contact-form-connect/internal/connector"
)

func TestErrorAlert(t *testing.T) {
	var buf bytes.Buffer
	if err := ErrorAlert(`Form <b>missing</b>`, "Check the form id", "REQ001").Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{`data-code="REQ001"`, "Form &lt;b&gt;missing&lt;/b&gt;", "Check the form id", "Code: REQ001"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
	if strings.Contains(out, "<b>") {
		t.Errorf("message not escaped: %s", out)
	}
}

func TestErrorAlert_NoAction(t *testing.T) {
	var buf bytes.Buffer
	if err := ErrorAlert("Busy", "", "DLV001").Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(buf.String(), "alert-action") {
		t.Errorf("empty action rendered: %s", buf.String())
	}
}

func TestSettingsForm(t *testing.T) {
	fields := []connector.SettingField{
		{Key: "doc_id", Title: "Document ID", Required: true, Value: `a"b`},
		{Key: "app_name", Title: "Application Name", Description: "Sent as User-Agent", DefaultValue: "contact-form-connect"},
	}

	var buf bytes.Buffer
	if err := SettingsForm("google_spreadsheet", fields).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		`data-service="google_spreadsheet"`,
		`name="settings[doc_id]"`,
		`value="a&#34;b"`,
		`required`,
		`value="contact-form-connect"`,
		`<small>Sent as User-Agent</small>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}
