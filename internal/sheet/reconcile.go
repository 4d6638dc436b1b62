package sheet

// Trace holds every intermediate value of one reconciliation.
type Trace struct {
	FieldMap FieldMap  // field map of the original table
	Merged   FieldMap  // FieldMap plus the merged record
	Rows     Table     // Merged converted back to positional rows
	Changes  ChangeSet // Diff of the original table against Rows
}

// Reconcile computes the inserts and updates that add rec to the table.
func Reconcile(original Table, rec Record) ChangeSet {
	return ReconcileTrace(original, rec).Changes
}

// ReconcileTrace is Reconcile, returning the intermediate values as well.
func ReconcileTrace(original Table, rec Record) Trace {
	fm := BuildFieldMap(original)
	merged := MergeRecord(original, fm, rec)
	rows := FieldMapToRows(merged)
	return Trace{
		FieldMap: fm,
		Merged:   merged,
		Rows:     rows,
		Changes:  Diff(original, rows),
	}
}

// MergeRecord appends rec to the field map built from original.
//
// When original has a header row, the merged row follows that header with any
// names new to it appended in rec order; names missing from rec, or empty in
// it, become "". A header-only table is treated the same way, so its header is
// extended rather than replaced. Keying the choice on an empty field map
// instead would append rec verbatim under the existing header and could
// reorder it; extending keeps the stored header a prefix of the new one.
// When original has no rows at all the record is appended verbatim and
// its names become the header. fm is not modified.
func MergeRecord(original Table, fm FieldMap, rec Record) FieldMap {
	merged := make(FieldMap, len(fm), len(fm)+1)
	copy(merged, fm)

	if len(original) == 0 {
		return append(merged, append(Record(nil), rec...))
	}

	headers := append(Row(nil), original[0]...)
	known := make(map[string]bool, len(headers))
	for _, h := range headers {
		known[h] = true
	}
	for _, name := range rec.Names() {
		if !known[name] {
			headers = append(headers, name)
			known[name] = true
		}
	}

	added := make(Record, 0, len(headers))
	for _, h := range headers {
		value, _ := rec.Get(h)
		added = added.Set(h, value)
	}
	return append(merged, added)
}

// Diff compares the stored rows with the desired rows.
//
// Rows of desired beyond len(old) become inserts. Every row that exists in old
// is right-trimmed in desired and compared with the stored row; any difference,
// including length, records the trimmed row as an update at that index.
func Diff(old, desired Table) ChangeSet {
	changes := ChangeSet{
		Inserts: []Row{},
		Updates: map[int]Row{},
	}

	for i := len(old); i < len(desired); i++ {
		changes.Inserts = append(changes.Inserts, append(Row(nil), desired[i]...))
	}

	for i := 0; i < len(old) && i < len(desired); i++ {
		trimmed := RightTrim(desired[i])
		if !equalRows(trimmed, old[i]) {
			changes.Updates[i] = trimmed
		}
	}

	return changes
}

// RightTrim returns a copy of row without its trailing empty cells.
func RightTrim(row Row) Row {
	end := len(row)
	for end > 0 && row[end-1] == "" {
		end--
	}
	return append(Row{}, row[:end]...)
}

func equalRows(a, b Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Apply returns the table that results from writing changes to table: each
// update replaces its row, then inserts are appended. table is not modified.
func Apply(table Table, changes ChangeSet) Table {
	out := make(Table, len(table), len(table)+len(changes.Inserts))
	for i, row := range table {
		if updated, ok := changes.Updates[i]; ok {
			out[i] = append(Row(nil), updated...)
			continue
		}
		out[i] = append(Row(nil), row...)
	}
	for _, row := range changes.Inserts {
		out = append(out, append(Row(nil), row...))
	}
	return out
}
