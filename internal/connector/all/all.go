// Package all registers every built-in connector service.
package all

import (
	_ "github.com/rtrvrtg/contact-form-connect/internal/connector/gsheets"
	_ "github.com/rtrvrtg/contact-form-connect/internal/connector/jira"
	_ "github.com/rtrvrtg/contact-form-connect/internal/connector/xlsx"
)
