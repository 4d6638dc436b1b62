// Package xlsx keeps a worksheet of a local Excel workbook in step with
// submitted messages, the same way the Sheets connector does remotely.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/rtrvrtg/contact-form-connect/internal/connector"
	"github.com/rtrvrtg/contact-form-connect/internal/sheet"
)

// Service is the registered service name.
const Service = "xlsx"

// DefaultSheet is used when the sheet setting is empty.
const DefaultSheet = "Sheet1"

func init() {
	connector.Register(Service, New)
}

// workbook locks serialise writers per file across connectors.
var locks sync.Map

func lockFor(path string) *sync.Mutex {
	mu, _ := locks.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Connector reconciles a worksheet of a workbook on disk.
type Connector struct {
	entity connector.Entity
	events connector.Emitter
}

// New builds an uninitialised workbook connector.
func New(entity connector.Entity, env connector.Env) connector.Connector {
	return &Connector{
		entity: entity,
		events: env.Emitter(Service),
	}
}

// SettingsForm implements connector.Connector.
func (c *Connector) SettingsForm(current connector.Settings) []connector.SettingField {
	return connector.FillForm([]connector.SettingField{
		{
			Key:         "path",
			Title:       "Workbook Path",
			Description: "Filesystem path of the .xlsx file. It is created if missing.",
			Required:    true,
		},
		{
			Key:          "sheet",
			Title:        "Sheet Name",
			Description:  "Worksheet to write to.",
			DefaultValue: DefaultSheet,
		},
	}, current)
}

// Init implements connector.Connector.
func (c *Connector) Init(settings connector.Settings) error {
	return nil
}

// Send implements connector.Connector.
func (c *Connector) Send(ctx context.Context, form connector.Form, settings connector.Settings, msg connector.Message) error {
	path, err := settings.Require("path")
	if err != nil {
		return err
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	sheetName := settings.Get("sheet", DefaultSheet)

	if err := ctx.Err(); err != nil {
		return err
	}

	mu := lockFor(path)
	mu.Lock()
	defer mu.Unlock()

	c.events.Emit(connector.EventSendStart, msg.ID, map[string]any{"path": path, "sheet": sheetName})

	f, err := openWorkbook(path, sheetName)
	if err != nil {
		return err
	}
	defer f.Close()

	table, err := readTable(f, sheetName)
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

	for _, i := range trace.Changes.UpdateIndexes() {
		row := trace.Changes.Updates[i]
		if err := writeRow(f, sheetName, i, row, len(table[i])); err != nil {
			return fmt.Errorf("update row %d: %w", i, err)
		}
		c.events.Emit(connector.EventRowUpdated, msg.ID, map[string]any{"row": i, "values": row})
	}
	for k, row := range trace.Changes.Inserts {
		if err := writeRow(f, sheetName, len(table)+k, row, 0); err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
		c.events.Emit(connector.EventRowInserted, msg.ID, row)
	}

	if trace.Changes.Empty() {
		c.events.Emit(connector.EventSendDone, msg.ID, nil)
		return nil
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}

	c.events.Emit(connector.EventSendDone, msg.ID, nil)
	return nil
}

// openWorkbook opens path, creating the file and the sheet as needed.
func openWorkbook(path, sheetName string) (*excelize.File, error) {
	f, err := excelize.OpenFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		f = excelize.NewFile()
		if sheetName != DefaultSheet {
			if err := f.SetSheetName(DefaultSheet, sheetName); err != nil {
				f.Close()
				return nil, fmt.Errorf("name sheet %s: %w", sheetName, err)
			}
		}
		return f, nil
	case err != nil:
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}

	idx, err := f.GetSheetIndex(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("find sheet %s: %w", sheetName, err)
	}
	if idx == -1 {
		if _, err := f.NewSheet(sheetName); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %s: %w", sheetName, err)
		}
	}
	return f, nil
}

// readTable reads the sheet the way the Sheets API reports values: trailing
// empty cells of a row and trailing empty rows are not returned.
func readTable(f *excelize.File, sheetName string) (sheet.Table, error) {
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheetName, err)
	}
	table := make(sheet.Table, len(rows))
	last := 0
	for i, r := range rows {
		table[i] = sheet.RightTrim(sheet.Row(r))
		if len(table[i]) > 0 {
			last = i + 1
		}
	}
	return table[:last], nil
}

// writeRow writes row at rowIndex and blanks any of the first width cells
// the row no longer covers.
func writeRow(f *excelize.File, sheetName string, rowIndex int, row sheet.Row, width int) error {
	if len(row) > 0 {
		values := make([]any, len(row))
		for i, v := range row {
			values[i] = v
		}
		if err := f.SetSheetRow(sheetName, sheet.CellName(0, rowIndex), &values); err != nil {
			return err
		}
	}
	for col := len(row); col < width; col++ {
		if err := f.SetCellStr(sheetName, sheet.CellName(col, rowIndex), ""); err != nil {
			return err
		}
	}
	return nil
}
