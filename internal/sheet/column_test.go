package sheet

import "testing"

func TestColumnToLetter(t *testing.T) {
	tests := []struct {
		index int
		want  string
	}{
		{0, "A"},
		{1, "B"},
		{25, "Z"},
		{26, "AA"},
		{27, "AB"},
		{51, "AZ"},
		{52, "BA"},
		{701, "ZZ"},
		{702, "AAA"},
		{16383, "XFD"},
	}

	for _, tt := range tests {
		if got := ColumnToLetter(tt.index); got != tt.want {
			t.Errorf("ColumnToLetter(%d) = %q, want %q", tt.index, got, tt.want)
		}
	}
}

func TestColumnToLetter_Sequence(t *testing.T) {
	// Each letter string is the successor of the previous one in the
	// conventional A..Z, AA..ZZ, AAA.. ordering.
	prev := ColumnToLetter(0)
	for i := 1; i < 20000; i++ {
		got := ColumnToLetter(i)
		if want := nextLetters(prev); got != want {
			t.Fatalf("ColumnToLetter(%d) = %q, want %q", i, got, want)
		}
		prev = got
	}
}

func nextLetters(s string) string {
	b := []byte(s)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 'Z' {
			b[i]++
			return string(b)
		}
		b[i] = 'A'
	}
	return "A" + string(b)
}

func TestColumnToLetter_NegativePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("ColumnToLetter(-1) did not panic")
		}
	}()
	ColumnToLetter(-1)
}

func TestRowRange(t *testing.T) {
	tests := []struct {
		name     string
		sheet    string
		rowIndex int
		width    int
		want     string
	}{
		{"header row", "Sheet1", 0, 3, "Sheet1!A1:C1"},
		{"data row", "Responses", 4, 28, "Responses!A5:AB5"},
		{"no sheet name", "", 1, 2, "A2:B2"},
		{"zero width", "S", 2, 0, "S!A3:A3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RowRange(tt.sheet, tt.rowIndex, tt.width); got != tt.want {
				t.Errorf("RowRange() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCellName(t *testing.T) {
	if got := CellName(2, 3); got != "C4" {
		t.Errorf("CellName(2, 3) = %q, want %q", got, "C4")
	}
}
