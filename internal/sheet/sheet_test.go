package sheet

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/model"
)

func TestFileName(t *testing.T) {
	ref := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "acme_base_dados_01_09_2026.xlsx", FileName("acme", ref))
}

func TestCreateAndAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")
	wb, err := Create(path, []string{"Compliance SWP", "Indices"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Compliance SWP", "Indices"}, wb.Sheets())

	n, err := wb.Append("Indices", &model.Table{
		Columns: []string{"ano_mes_ref", "risk"},
		Rows:    [][]any{{"01/09/2026", 41.5}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = wb.Append("Indices", &model.Table{
		Columns: []string{"risk", "attack", "ano_mes_ref"},
		Rows:    [][]any{{40.25, int64(3), "01/10/2026"}},
	})
	require.NoError(t, err)
	require.NoError(t, wb.Save())
	require.NoError(t, wb.Close())

	wb, err = Open(path)
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.Rows("Indices")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"ano_mes_ref", "risk", "attack"},
		{"01/09/2026", "41.5"},
		{"01/10/2026", "40.25", "3"},
	}, rows)

	empty, err := wb.Rows("Compliance SWP")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAppendCreatesMissingSheet(t *testing.T) {
	wb, err := Create(filepath.Join(t.TempDir(), "book.xlsx"), []string{"A"})
	require.NoError(t, err)
	defer wb.Close()

	_, err = wb.Append("B", &model.Table{Columns: []string{"x"}, Rows: [][]any{{"1"}}})
	require.NoError(t, err)
	assert.Contains(t, wb.Sheets(), "B")
}

func TestAppendRowLimit(t *testing.T) {
	wb, err := Create(filepath.Join(t.TempDir(), "book.xlsx"), []string{"A"})
	require.NoError(t, err)
	defer wb.Close()
	wb.maxRows = 3

	_, err = wb.Append("A", &model.Table{Columns: []string{"x"}, Rows: [][]any{{"1"}, {"2"}}})
	require.NoError(t, err)

	_, err = wb.Append("A", &model.Table{Columns: []string{"x"}, Rows: [][]any{{"3"}}})
	assert.ErrorIs(t, err, ErrRowLimit)

	rows, err := wb.Rows("A")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
