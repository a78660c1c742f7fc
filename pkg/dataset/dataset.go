// Package dataset provides the backend-agnostic tabular form that all
// database extractions are normalized into, and the registry contract for
// handing normalized tables to downstream analysis.
//
// Every cell is text or null. The uniform typing is intentional: datasets of
// mixed provenance (file upload vs. warehouse extraction) stay comparable
// downstream without per-backend type coercion leaking into the rest of the
// system.
package dataset

import (
	"fmt"
	"strconv"
	"time"

	"github.com/quartzdata/quartz/pkg/errors"
)

// Dataset is a named, normalized table. Rows are aligned to Columns by
// position; each cell is a string or nil.
type Dataset struct {
	Name    string
	Columns []string
	Rows    [][]*string
}

// NumRows returns the row count.
func (d *Dataset) NumRows() int { return len(d.Rows) }

// NumColumns returns the column count.
func (d *Dataset) NumColumns() int { return len(d.Columns) }

// FromRows normalizes backend-native rows into a Dataset. Every row must
// match the column arity.
func FromRows(name string, columns []string, rows [][]interface{}) (*Dataset, error) {
	cols := make([]string, len(columns))
	copy(cols, columns)

	normalized := make([][]*string, 0, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, errors.Newf(errors.ErrorTypeData,
				"row %d has %d values, expected %d", i, len(row), len(columns))
		}
		cells := make([]*string, len(row))
		for j, v := range row {
			cells[j] = formatValue(v)
		}
		normalized = append(normalized, cells)
	}

	return &Dataset{Name: name, Columns: cols, Rows: normalized}, nil
}

// formatValue renders a backend-native value as text, or nil for SQL NULL.
func formatValue(v interface{}) *string {
	if v == nil {
		return nil
	}
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case []byte:
		s = string(val)
	case time.Time:
		s = val.Format(time.RFC3339)
	case bool:
		s = strconv.FormatBool(val)
	case int64:
		s = strconv.FormatInt(val, 10)
	case float64:
		s = strconv.FormatFloat(val, 'g', -1, 64)
	case *string:
		if val == nil {
			return nil
		}
		s = *val
	default:
		s = fmt.Sprintf("%v", val)
	}
	return &s
}
