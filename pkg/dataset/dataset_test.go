package dataset

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quartzdata/quartz/pkg/errors"
)

func cell(row []*string, i int) string {
	if row[i] == nil {
		return "<nil>"
	}
	return *row[i]
}

func TestFromRowsNormalizesToText(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	rows := [][]interface{}{
		{int64(42), "alpha", 3.14, true, ts, []byte("blob"), nil},
	}
	ds, err := FromRows("orders", []string{"a", "b", "c", "d", "e", "f", "g"}, rows)
	require.NoError(t, err)

	require.Len(t, ds.Rows, 1)
	row := ds.Rows[0]
	assert.Equal(t, "42", cell(row, 0))
	assert.Equal(t, "alpha", cell(row, 1))
	assert.Equal(t, "3.14", cell(row, 2))
	assert.Equal(t, "true", cell(row, 3))
	assert.Equal(t, "2025-03-14T09:26:53Z", cell(row, 4))
	assert.Equal(t, "blob", cell(row, 5))
	assert.Nil(t, row[6])
}

func TestFromRowsEmptyTableKeepsColumns(t *testing.T) {
	ds, err := FromRows("empty", []string{"id", "name"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, ds.Columns)
	assert.Equal(t, 0, ds.NumRows())
	assert.Equal(t, 2, ds.NumColumns())
}

func TestFromRowsArityMismatch(t *testing.T) {
	_, err := FromRows("bad", []string{"a", "b"}, [][]interface{}{
		{int64(1), "x"},
		{int64(2)},
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestMemoryRegistryRecordsSource(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	ds1, err := FromRows("orders", []string{"id"}, [][]interface{}{{int64(1)}})
	require.NoError(t, err)
	ds2, err := FromRows("upload", []string{"id"}, nil)
	require.NoError(t, err)

	require.NoError(t, reg.RegisterDataset(ctx, ds1, SourceDatabase))
	require.NoError(t, reg.RegisterDataset(ctx, ds2, SourceFile))

	regs := reg.Registrations()
	require.Len(t, regs, 2)
	assert.Equal(t, SourceDatabase, regs[0].Source)
	assert.Equal(t, SourceFile, regs[1].Source)

	got, ok := reg.Get("orders")
	require.True(t, ok)
	assert.Equal(t, 1, got.NumRows())

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestMemoryRegistryReRegistrationWins(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	old, err := FromRows("orders", []string{"id"}, nil)
	require.NoError(t, err)
	fresh, err := FromRows("orders", []string{"id"}, [][]interface{}{{int64(1)}, {int64(2)}})
	require.NoError(t, err)

	require.NoError(t, reg.RegisterDataset(ctx, old, SourceDatabase))
	require.NoError(t, reg.RegisterDataset(ctx, fresh, SourceDatabase))

	got, ok := reg.Get("orders")
	require.True(t, ok)
	assert.Equal(t, 2, got.NumRows())
}
