package sheet

import (
	"reflect"
	"testing"
)

func TestBuildFieldMap(t *testing.T) {
	tests := []struct {
		name  string
		table Table
		want  FieldMap
	}{
		{
			name:  "empty table",
			table: Table{},
			want:  FieldMap{},
		},
		{
			name:  "header only",
			table: Table{{"a", "b"}},
			want:  FieldMap{},
		},
		{
			name:  "full rows",
			table: Table{{"bar", "foo"}, {"a", "b"}, {"c", "d"}},
			want: FieldMap{
				rec("bar", "a", "foo", "b"),
				rec("bar", "c", "foo", "d"),
			},
		},
		{
			name:  "short rows fill with empty",
			table: Table{{"a", "b", "c"}, {"1"}, {}},
			want: FieldMap{
				rec("a", "1", "b", "", "c", ""),
				rec("a", "", "b", "", "c", ""),
			},
		},
		{
			name:  "cells past the header are dropped",
			table: Table{{"a"}, {"1", "2", "3"}},
			want:  FieldMap{rec("a", "1")},
		},
		{
			name:  "names are literal",
			table: Table{{" Name ", "name"}, {"x", "y"}},
			want:  FieldMap{rec(" Name ", "x", "name", "y")},
		},
		{
			name:  "duplicate header keeps first position and last value",
			table: Table{{"k", "other", "k"}, {"1", "2", "3"}},
			want:  FieldMap{rec("k", "3", "other", "2")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildFieldMap(tt.table)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("BuildFieldMap() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildFieldMap_EveryRowHasEveryHeader(t *testing.T) {
	table := Table{{"a", "b", "c", "d"}, {"1"}, {"1", "2"}, {"1", "2", "3", "4", "5"}}

	for i, r := range BuildFieldMap(table) {
		if got := r.Names(); !reflect.DeepEqual(got, []string{"a", "b", "c", "d"}) {
			t.Errorf("row %d names = %v", i, got)
		}
	}
}

func TestFieldMapToRows(t *testing.T) {
	tests := []struct {
		name string
		fm   FieldMap
		want Table
	}{
		{
			name: "empty",
			fm:   FieldMap{},
			want: Table{{}},
		},
		{
			name: "uniform rows",
			fm:   FieldMap{rec("a", "1", "b", "2"), rec("a", "3", "b", "4")},
			want: Table{{"a", "b"}, {"1", "2"}, {"3", "4"}},
		},
		{
			name: "longest record wins the header",
			fm:   FieldMap{rec("a", "1"), rec("a", "2", "b", "3"), rec("c", "4")},
			want: Table{{"a", "b"}, {"1"}, {"2", "3"}, {"4"}},
		},
		{
			name: "first record wins a tie",
			fm:   FieldMap{rec("a", "1", "b", "2"), rec("x", "3", "y", "4")},
			want: Table{{"a", "b"}, {"1", "2"}, {"3", "4"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FieldMapToRows(tt.fm)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FieldMapToRows() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewRecord_DuplicateNames(t *testing.T) {
	r := NewRecord(
		Field{Name: "a", Value: "1"},
		Field{Name: "b", Value: "2"},
		Field{Name: "a", Value: "3"},
	)

	if got := r.Names(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Names() = %v", got)
	}
	if v, _ := r.Get("a"); v != "3" {
		t.Errorf("Get(a) = %q, want %q", v, "3")
	}
	if r.Has("c") {
		t.Error("Has(c) = true, want false")
	}
}
