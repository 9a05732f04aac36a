package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTableUnionsColumns(t *testing.T) {
	var a, b Record
	a.Set("id", "1")
	a.Set("name", "srv01")
	b.Set("id", "2")
	b.Set("os", "linux")

	tbl := NewTable([]Record{a, b})
	assert.Equal(t, []string{"id", "name", "os"}, tbl.Columns)
	assert.Equal(t, [][]any{{"1", "srv01", nil}, {"2", nil, "linux"}}, tbl.Rows)
}

func TestTablePrependAndDrop(t *testing.T) {
	tbl := &Table{
		Columns: []string{"a", "b", "c"},
		Rows:    [][]any{{1, 2, 3}, {4, 5, 6}},
	}

	tbl.Drop("b", "missing")
	tbl.Prepend("ano_mes_ref", "01/09/2026")

	assert.Equal(t, []string{"ano_mes_ref", "a", "c"}, tbl.Columns)
	assert.Equal(t, [][]any{{"01/09/2026", 1, 3}, {"01/09/2026", 4, 6}}, tbl.Rows)
	assert.Equal(t, 2, tbl.Len())
}

func TestRecordSetOverwrites(t *testing.T) {
	var r Record
	r.Set("k", 1)
	r.Set("k", 2)
	assert.Equal(t, []string{"k"}, r.Keys)
	assert.Equal(t, []any{2}, r.Values)

	c := r.Clone()
	c.Set("x", 3)
	assert.Len(t, r.Keys, 1)
}
