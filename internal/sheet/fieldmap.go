package sheet

// BuildFieldMap converts a raw table into one record per data row, keyed by the
// header names in row 0.
//
// Every record carries every header name; cells that are missing or empty are
// stored as "". Cells positioned beyond the end of the header have no name and
// are dropped. An empty table yields an empty field map.
func BuildFieldMap(table Table) FieldMap {
	if len(table) == 0 {
		return FieldMap{}
	}

	header := table[0]
	fm := make(FieldMap, 0, len(table)-1)
	for _, row := range table[1:] {
		rec := make(Record, 0, len(header))
		for i, name := range header {
			value := ""
			if i < len(row) && row[i] != "" {
				value = row[i]
			}
			rec = rec.Set(name, value)
		}
		fm = append(fm, rec)
	}
	return fm
}

// FieldMapToRows converts a field map back into positional rows, header first.
//
// The header is the name sequence of the record with the most fields; the first
// such record wins a tie. Names that only appear in shorter records are not
// merged in, so this is only faithful while headers grow monotonically across
// the field map, which holds for field maps produced by Reconcile.
func FieldMapToRows(fm FieldMap) Table {
	var header Row
	rows := make(Table, 0, len(fm)+1)
	rows = append(rows, nil)
	for _, rec := range fm {
		if len(rec) > len(header) {
			header = rec.Names()
		}
		rows = append(rows, rec.Values())
	}
	if header == nil {
		header = Row{}
	}
	rows[0] = header
	return rows
}
