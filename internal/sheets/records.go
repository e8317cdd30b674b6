package sheets

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrDuplicateHeader = errors.New("duplicate header")

// Record is one data row keyed by the header row.
type Record struct {
	// Row is the 1-based sheet row number (the header is row 1).
	Row    int
	Values map[string]string
}

// Get returns the cell under header key, or "" when the column is absent.
func (r Record) Get(key string) string {
	if r.Values == nil {
		return ""
	}
	return r.Values[key]
}

// RecordsFromRows converts a value range whose first row is the header into
// records. Rows with no non-blank cell are skipped and short rows are padded
// with "". Columns with a blank header are ignored.
func RecordsFromRows(rows [][]any) ([]Record, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	header := make([]string, len(rows[0]))
	seen := make(map[string]int, len(rows[0]))
	for i, v := range rows[0] {
		h := cellString(v)
		header[i] = h
		if h == "" {
			continue
		}
		if prev, ok := seen[h]; ok {
			return nil, fmt.Errorf("%w %q in columns %d and %d", ErrDuplicateHeader, h, prev+1, i+1)
		}
		seen[h] = i
	}

	out := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		values := make(map[string]string, len(seen))
		for col, h := range header {
			if h == "" {
				continue
			}
			if col < len(row) {
				values[h] = cellString(row[col])
			} else {
				values[h] = ""
			}
		}
		out = append(out, Record{Row: i + 2, Values: values})
	}
	return out, nil
}

func blankRow(row []any) bool {
	for _, v := range row {
		if strings.TrimSpace(cellString(v)) != "" {
			return false
		}
	}
	return true
}

// cellString renders an unformatted cell value. Numbers come back from the
// API as float64; integral values render without a fraction or exponent.
func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprint(x)
	}
}
