// Package sheet appends tables to an xlsx workbook.
package sheet

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/model"
)

// ErrRowLimit is returned when an append would pass the format's row
// ceiling. Nothing is written in that case.
var ErrRowLimit = errors.New("sheet: row limit exceeded")

// FileName is the workbook name for a client and reference month.
func FileName(client string, ref time.Time) string {
	return fmt.Sprintf("%s_base_dados_%s.xlsx", client, ref.Format("02_01_2006"))
}

type Workbook struct {
	f       *excelize.File
	path    string
	maxRows int
}

// Create writes a new workbook at path holding the given empty sheets.
func Create(path string, sheets []string) (*Workbook, error) {
	if len(sheets) == 0 {
		return nil, errors.New("sheet: at least one sheet is required")
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheets[0]); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("sheet: rename default sheet: %w", err)
	}
	for _, name := range sheets[1:] {
		if _, err := f.NewSheet(name); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("sheet: create %q: %w", name, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("sheet: save %s: %w", path, err)
	}
	return &Workbook{f: f, path: path, maxRows: excelize.TotalRows}, nil
}

// Open loads an existing workbook.
func Open(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("sheet: open %s: %w", path, err)
	}
	return &Workbook{f: f, path: path, maxRows: excelize.TotalRows}, nil
}

func (w *Workbook) Path() string { return w.path }

// Sheets lists sheet names in workbook order.
func (w *Workbook) Sheets() []string { return w.f.GetSheetList() }

// Append writes t below the last used row of sheet, creating the sheet
// if needed. The header row is written only to an empty sheet; on a
// non-empty sheet cells are aligned to the existing header and unknown
// columns extend it. It returns the number of data rows written.
func (w *Workbook) Append(sheet string, t *model.Table) (int, error) {
	idx, err := w.f.GetSheetIndex(sheet)
	if err != nil {
		return 0, fmt.Errorf("sheet: %q: %w", sheet, err)
	}
	if idx < 0 {
		if _, err := w.f.NewSheet(sheet); err != nil {
			return 0, fmt.Errorf("sheet: create %q: %w", sheet, err)
		}
	}

	rows, err := w.f.GetRows(sheet)
	if err != nil {
		return 0, fmt.Errorf("sheet: read %q: %w", sheet, err)
	}

	used := len(rows)
	var header []string
	if used > 0 {
		header = rows[0]
	}

	needed := t.Len()
	if used == 0 {
		needed++
	}
	if used+needed > w.maxRows {
		return 0, fmt.Errorf("%w: %q has %d rows, cannot add %d (limit %d)", ErrRowLimit, sheet, used, needed, w.maxRows)
	}

	positions := make([]int, len(t.Columns))
	grew := used == 0
	for i, c := range t.Columns {
		p := slices.Index(header, c)
		if p < 0 {
			header = append(header, c)
			p = len(header) - 1
			grew = true
		}
		positions[i] = p
	}
	if grew {
		if err := w.writeRow(sheet, 1, toAny(header)); err != nil {
			return 0, err
		}
		if used == 0 {
			used = 1
		}
	}

	for i, src := range t.Rows {
		row := make([]any, len(header))
		for c, v := range src {
			row[positions[c]] = v
		}
		if err := w.writeRow(sheet, used+i+1, row); err != nil {
			return i, err
		}
	}
	return t.Len(), nil
}

func (w *Workbook) writeRow(sheet string, n int, row []any) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return fmt.Errorf("sheet: row %d: %w", n, err)
	}
	if err := w.f.SetSheetRow(sheet, cell, &row); err != nil {
		return fmt.Errorf("sheet: write %q row %d: %w", sheet, n, err)
	}
	return nil
}

// Rows returns the used cells of sheet as text.
func (w *Workbook) Rows(sheet string) ([][]string, error) {
	return w.f.GetRows(sheet)
}

// Save flushes the workbook to its path.
func (w *Workbook) Save() error {
	if err := w.f.Save(); err != nil {
		return fmt.Errorf("sheet: save %s: %w", w.path, err)
	}
	return nil
}

func (w *Workbook) Close() error { return w.f.Close() }

func toAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
