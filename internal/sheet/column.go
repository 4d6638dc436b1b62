package sheet

import (
	"fmt"
	"strconv"
)

// ColumnToLetter converts a zero-based column index to spreadsheet letters
// using bijective base-26: 0 is "A", 25 is "Z", 26 is "AA", 701 is "ZZ".
// It panics if index is negative.
func ColumnToLetter(index int) string {
	if index < 0 {
		panic(fmt.Sprintf("sheet: negative column index %d", index))
	}

	var buf [16]byte
	pos := len(buf)
	for n := index + 1; n > 0; {
		rem := (n - 1) % 26
		pos--
		buf[pos] = byte('A' + rem)
		n = (n - rem - 1) / 26
	}
	return string(buf[pos:])
}

// CellName returns the A1-style name of a cell. Both col and rowIndex are
// zero-based; the row is rendered 1-based.
func CellName(col, rowIndex int) string {
	return ColumnToLetter(col) + strconv.Itoa(rowIndex+1)
}

// RowRange returns the range covering the first width cells of a row, such as
// "Sheet1!A3:D3". An empty sheet name omits the "Sheet!" prefix. A width below
// one addresses the first cell only.
func RowRange(sheetName string, rowIndex, width int) string {
	last := width - 1
	if last < 0 {
		last = 0
	}
	r := CellName(0, rowIndex) + ":" + CellName(last, rowIndex)
	if sheetName == "" {
		return r
	}
	return sheetName + "!" + r
}
