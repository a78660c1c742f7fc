package base

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quartzdata/quartz/pkg/errors"
)

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad conn", driver.ErrBadConn, true},
		{"conn done", sql.ErrConnDone, true},
		{"eof", io.EOF, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"connection reset", syscall.ECONNRESET, true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"broken pipe", syscall.EPIPE, true},
		{"wrapped", fmt.Errorf("exec: %w", driver.ErrBadConn), true},
		{"net error", &net.OpError{Op: "dial", Err: syscall.ETIMEDOUT}, true},
		{"sql rejection", fmt.Errorf("syntax error near SELECT"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConnectionError(tt.err))
		})
	}
}

func TestWrapQueryErrorClassification(t *testing.T) {
	const query = "SELECT * FROM missing_table"

	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, WrapQueryError(query, nil))
	})

	t.Run("sql rejection becomes query error with statement", func(t *testing.T) {
		err := WrapQueryError(query, fmt.Errorf("object MISSING_TABLE does not exist"))
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeQuery))
		assert.False(t, errors.IsTransient(err))

		text, ok := errors.QueryText(err)
		require.True(t, ok)
		assert.Equal(t, query, text)
	})

	t.Run("connection failure is transient", func(t *testing.T) {
		err := WrapQueryError(query, io.EOF)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
		assert.True(t, errors.IsTransient(err))
	})

	t.Run("deadline becomes timeout", func(t *testing.T) {
		err := WrapQueryError(query, context.DeadlineExceeded)
		assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
		assert.True(t, errors.IsTransient(err))
	})

	t.Run("already typed errors pass through", func(t *testing.T) {
		orig := errors.New(errors.ErrorTypeData, "row arity mismatch")
		assert.Same(t, error(orig), WrapQueryError(query, orig))
	})
}

func TestWrapConnectionError(t *testing.T) {
	assert.NoError(t, WrapConnectionError(nil, "connect"))

	err := WrapConnectionError(io.EOF, "failed to connect")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))

	typed := errors.New(errors.ErrorTypeConfig, "bad dsn")
	assert.Same(t, error(typed), WrapConnectionError(typed, "connect"))
}
