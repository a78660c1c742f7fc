package base

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name", "region"}).
			AddRow(int64(1), "alpha", "us-east").
			AddRow(int64(2), "beta", nil))

	rows, err := db.QueryContext(context.Background(), "SELECT id, name, region FROM t")
	require.NoError(t, err)
	defer rows.Close()

	result, err := ScanRows(rows)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "region"}, result.Columns)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, int64(1), result.Rows[0][0])
	assert.Equal(t, "alpha", result.Rows[0][1])
	assert.Nil(t, result.Rows[1][2])
}

func TestScanRowsEmptyResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rows, err := db.QueryContext(context.Background(), "SELECT id FROM t")
	require.NoError(t, err)
	defer rows.Close()

	result, err := ScanRows(rows)
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, result.Columns)
	assert.Empty(t, result.Rows)
}
