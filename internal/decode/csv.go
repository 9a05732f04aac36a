package decode

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/model"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV parses a CSV document with a header row. A column whose
// non-empty cells all parse as numbers is typed as int64 or float64;
// empty cells become nil.
func ReadCSV(data []byte) (*model.Table, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1

	lines, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode: read csv: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrEmpty
	}

	t := &model.Table{Columns: lines[0]}
	width := len(t.Columns)
	for _, line := range lines[1:] {
		row := make([]any, width)
		for i := 0; i < width && i < len(line); i++ {
			if line[i] != "" {
				row[i] = line[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}

	for c := 0; c < width; c++ {
		typeColumn(t, c)
	}
	return t, nil
}

func typeColumn(t *model.Table, c int) {
	integral := true
	for _, row := range t.Rows {
		s, ok := row[c].(string)
		if !ok {
			continue
		}
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			continue
		}
		integral = false
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return
		}
	}

	for _, row := range t.Rows {
		s, ok := row[c].(string)
		if !ok {
			continue
		}
		if integral {
			row[c], _ = strconv.ParseInt(s, 10, 64)
		} else {
			row[c], _ = strconv.ParseFloat(s, 64)
		}
	}
}

// Float reads a numeric cell.
func Float(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
