// Package gsheets keeps a Google Sheets worksheet in step with submitted
// messages: each message becomes a row, and new fields become new columns.
//
// The connector talks to the Sheets v4 REST API with a pre-issued access
// token taken from the entity's password.
package gsheets

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/rtrvrtg/contact-form-connect/internal/connector"
	"github.com/rtrvrtg/contact-form-connect/internal/sheet"
	"github.com/rtrvrtg/contact-form-connect/internal/transport"
)

// Service is the registered service name.
const Service = "google_spreadsheet"

// DefaultBaseURL is the spreadsheets collection of the Sheets v4 API.
const DefaultBaseURL = "https://sheets.googleapis.com/v4/spreadsheets"

// DefaultAppName is sent as the User-Agent when app_name is not set.
const DefaultAppName = "contact-form-connect"

func init() {
	connector.Register(Service, New)
}

// Worksheet locks serialise the read-reconcile-write cycle per sheet across
// connectors, so concurrent deliveries never write over each other's header.
var locks sync.Map

func lockFor(baseURL, docID, sheetID string) *sync.Mutex {
	mu, _ := locks.LoadOrStore(baseURL+"\x00"+docID+"\x00"+sheetID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Connector reconciles one worksheet per form.
type Connector struct {
	entity  connector.Entity
	env     connector.Env
	events  connector.Emitter
	client  *transport.Client
	baseURL string
}

// New builds an uninitialised Sheets connector.
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
			Key:         "doc_id",
			Title:       "Document ID",
			Description: "Enter the ID of the Google Spreadsheet to add to. You can find it in the URL.",
			Required:    true,
		},
		{
			Key:          "app_name",
			Title:        "App Name",
			Description:  "Enter the Google app name.",
			DefaultValue: DefaultAppName,
		},
		{
			Key:         "sheet_id",
			Title:       "Sheet ID",
			Description: "Select the ID of the sheet to save to.",
			Required:    true,
		},
	}, current)
}

// Init implements connector.Connector.
func (c *Connector) Init(settings connector.Settings) error {
	cfg := c.env.HTTP
	cfg.BaseURL = c.entity.Endpoint
	if cfg.BaseURL == "" {
		cfg.BaseURL = c.env.SheetsBaseURL
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.Auth = transport.BearerToken{Token: c.entity.Password}
	cfg.UserAgent = settings.Get("app_name", DefaultAppName)
	c.client = transport.New(cfg)
	c.baseURL = cfg.BaseURL
	return nil
}

type valueRange struct {
	Range          string  `json:"range,omitempty"`
	MajorDimension string  `json:"majorDimension,omitempty"`
	Values         [][]any `json:"values"`
}

// Send implements connector.Connector.
func (c *Connector) Send(ctx context.Context, form connector.Form, settings connector.Settings, msg connector.Message) error {
	docID, err := settings.Require("doc_id")
	if err != nil {
		return err
	}
	sheetID, err := settings.Require("sheet_id")
	if err != nil {
		return err
	}

	mu := lockFor(c.baseURL, docID, sheetID)
	mu.Lock()
	defer mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	c.events.Emit(connector.EventSendStart, msg.ID, map[string]any{"doc_id": docID, "sheet_id": sheetID})

	table, err := c.fetch(ctx, docID, sheetID)
	if err != nil {
		return err
	}
	c.events.Emit(connector.EventTableFetched, msg.ID, table)

	trace := sheet.ReconcileTrace(table, msg.Record)
	c.events.Emit(connector.EventFieldMap, msg.ID, trace.FieldMap)
	c.events.Emit(connector.EventMerged, msg.ID, trace.Merged)
	c.events.Emit(connector.EventRows, msg.ID, trace.Rows)
	c.events.Emit(connector.EventChanges, msg.ID, map[string]int{
		"inserts": len(trace.Changes.Inserts),
		"updates": len(trace.Changes.Updates),
	})

	var errs []error
	for _, i := range trace.Changes.UpdateIndexes() {
		row := padRow(trace.Changes.Updates[i], len(table[i]))
		if err := c.updateRow(ctx, docID, sheetID, i, row); err != nil {
			c.events.Emit(connector.EventWriteFailed, msg.ID, map[string]any{"row": i, "error": err.Error()})
			errs = append(errs, fmt.Errorf("update row %d: %w", i, err))
			continue
		}
		c.events.Emit(connector.EventRowUpdated, msg.ID, map[string]any{"row": i, "values": row})
	}
	for _, row := range trace.Changes.Inserts {
		if err := c.appendRow(ctx, docID, sheetID, row); err != nil {
			c.events.Emit(connector.EventWriteFailed, msg.ID, map[string]any{"values": row, "error": err.Error()})
			errs = append(errs, fmt.Errorf("append row: %w", err))
			continue
		}
		c.events.Emit(connector.EventRowInserted, msg.ID, row)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%d of %d row writes failed: %w",
			len(errs), len(trace.Changes.Updates)+len(trace.Changes.Inserts), errs[0])
	}

	c.events.Emit(connector.EventSendDone, msg.ID, nil)
	return nil
}

func (c *Connector) fetch(ctx context.Context, docID, sheetID string) (sheet.Table, error) {
	resp, err := c.client.Get(ctx, valuesPath(docID, sheetID), nil)
	if err != nil {
		var httpErr *transport.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsAuth() {
			return nil, fmt.Errorf("fetch sheet %s: access token rejected: %w", sheetID, err)
		}
		return nil, fmt.Errorf("fetch sheet %s: %w", sheetID, err)
	}

	var vr valueRange
	if err := resp.JSON(&vr); err != nil {
		return nil, fmt.Errorf("decode sheet %s: %w", sheetID, err)
	}

	table := make(sheet.Table, len(vr.Values))
	for i, cells := range vr.Values {
		row := make(sheet.Row, len(cells))
		for j, v := range cells {
			row[j] = cellString(v)
		}
		table[i] = row
	}
	return table, nil
}

func (c *Connector) updateRow(ctx context.Context, docID, sheetID string, index int, row sheet.Row) error {
	rng := sheet.RowRange(sheetID, index, len(row))
	body := valueRange{Range: rng, MajorDimension: "ROWS", Values: [][]any{cells(row)}}
	_, err := c.client.Put(ctx, valuesPath(docID, rng), url.Values{"valueInputOption": {"RAW"}}, body)
	return err
}

func (c *Connector) appendRow(ctx context.Context, docID, sheetID string, row sheet.Row) error {
	body := valueRange{MajorDimension: "ROWS", Values: [][]any{cells(row)}}
	query := url.Values{
		"valueInputOption": {"RAW"},
		"insertDataOption": {"INSERT_ROWS"},
	}
	_, err := c.client.Post(ctx, valuesPath(docID, sheetID)+":append", query, body)
	return err
}

func valuesPath(docID, rng string) string {
	return url.PathEscape(docID) + "/values/" + url.PathEscape(rng)
}

// padRow extends row with empty cells up to width so a shortened row
// overwrites the cells it no longer covers.
func padRow(row sheet.Row, width int) sheet.Row {
	if len(row) >= width {
		return row
	}
	out := make(sheet.Row, width)
	copy(out, row)
	return out
}

func cells(row sheet.Row) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
