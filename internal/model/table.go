package model

import "slices"

// Table is a decoded dataset ready for the spreadsheet. Every row has
// len(Columns) cells; missing values are nil.
type Table struct {
	Columns []string
	Rows    [][]any
}

// NewTable builds a table from records, collecting columns in first-seen
// order.
func NewTable(records []Record) *Table {
	t := &Table{}
	index := map[string]int{}
	for _, r := range records {
		for _, k := range r.Keys {
			if _, ok := index[k]; !ok {
				index[k] = len(t.Columns)
				t.Columns = append(t.Columns, k)
			}
		}
	}
	for _, r := range records {
		row := make([]any, len(t.Columns))
		for i, k := range r.Keys {
			row[index[k]] = r.Values[i]
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Len is the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	return slices.Index(t.Columns, name)
}

// Prepend inserts a constant column at position 0.
func (t *Table) Prepend(name string, value any) {
	t.Columns = slices.Insert(t.Columns, 0, name)
	for i, row := range t.Rows {
		t.Rows[i] = slices.Insert(row, 0, value)
	}
}

// Drop removes the named columns. Unknown names are ignored.
func (t *Table) Drop(names ...string) {
	for _, name := range names {
		i := t.Index(name)
		if i < 0 {
			continue
		}
		t.Columns = slices.Delete(t.Columns, i, i+1)
		for r, row := range t.Rows {
			t.Rows[r] = slices.Delete(row, i, i+1)
		}
	}
}

// Record is one ordered row before tabulation.
type Record struct {
	Keys   []string
	Values []any
}

// Set appends or overwrites key.
func (r *Record) Set(key string, value any) {
	if i := slices.Index(r.Keys, key); i >= 0 {
		r.Values[i] = value
		return
	}
	r.Keys = append(r.Keys, key)
	r.Values = append(r.Values, value)
}

// Clone copies the record so the result can be extended independently.
func (r Record) Clone() Record {
	return Record{Keys: slices.Clone(r.Keys), Values: slices.Clone(r.Values)}
}
