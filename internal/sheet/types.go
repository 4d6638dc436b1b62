package sheet

import "sort"

// Row is an ordered sequence of cell values.
type Row []string

// Table is an ordered sequence of rows. Row 0 is the header.
type Table []Row

// Field is a single named cell value.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Record maps column names to values while keeping insertion order.
// Names are unique; use Set or NewRecord to preserve that.
type Record []Field

// NewRecord builds a record from fields. A repeated name keeps the position
// of its first occurrence and the value of its last.
func NewRecord(fields ...Field) Record {
	r := make(Record, 0, len(fields))
	for _, f := range fields {
		r = r.Set(f.Name, f.Value)
	}
	return r
}

// Set returns r with name set to value.
func (r Record) Set(name, value string) Record {
	for i := range r {
		if r[i].Name == name {
			r[i].Value = value
			return r
		}
	}
	return append(r, Field{Name: name, Value: value})
}

// Get returns the value stored under name.
func (r Record) Get(name string) (string, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Has reports whether name is present.
func (r Record) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns the column names in order.
func (r Record) Names() []string {
	names := make([]string, len(r))
	for i, f := range r {
		names[i] = f.Name
	}
	return names
}

// Values returns the values in order.
func (r Record) Values() Row {
	values := make(Row, len(r))
	for i, f := range r {
		values[i] = f.Value
	}
	return values
}

// FieldMap is a column-name keyed view of a table's data rows.
type FieldMap []Record

// ChangeSet holds the writes needed to bring a sheet up to date.
//
// Inserts are appended after the original last row, in order. Updates are keyed
// by zero-based row index within the original table (the header is index 0).
type ChangeSet struct {
	Inserts []Row       `json:"inserts"`
	Updates map[int]Row `json:"updates"`
}

// Empty reports whether there is nothing to write.
func (c ChangeSet) Empty() bool {
	return len(c.Inserts) == 0 && len(c.Updates) == 0
}

// UpdateIndexes returns the updated row indexes in ascending order.
func (c ChangeSet) UpdateIndexes() []int {
	idx := make([]int, 0, len(c.Updates))
	for i := range c.Updates {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}
