package base

import (
	"database/sql"

	"github.com/quartzdata/quartz/pkg/db/core"
	"github.com/quartzdata/quartz/pkg/errors"
)

// ScanRows drains a database/sql result set into a QueryResult, preserving
// column order and row arity.
func ScanRows(rows *sql.Rows) (*core.QueryResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read result columns")
	}

	result := &core.QueryResult{Columns: columns}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to scan result row")
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "result iteration failed")
	}
	return result, nil
}
