// Package sheet reconciles a spreadsheet's current contents with one new record.
//
// Given the rows of a sheet (row 0 is the header) and a record keyed by column
// name, [Reconcile] computes the cell-range updates and row appends needed to
// bring the sheet up to date. New column names are appended to the header;
// existing header positions never move.
//
// Everything in this package is a pure function of its arguments. Callers that
// want diagnostics use [ReconcileTrace] and report the intermediate values
// themselves.
//
// # Column addressing
//
// Updates are written back as ranges such as "Sheet1!A3:D3". [ColumnToLetter]
// converts a zero-based column index into spreadsheet letters:
//
//	ColumnToLetter(0)   // "A"
//	ColumnToLetter(26)  // "AA"
//	ColumnToLetter(701) // "ZZ"
package sheet
