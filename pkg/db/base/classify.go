package base

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"syscall"

	qerrors "github.com/quartzdata/quartz/pkg/errors"
)

// IsConnectionError reports whether err is a connection-level failure: a
// dropped socket, a dead pooled session, or a momentarily unreachable host.
// These are the failures worth retrying; backend SQL rejections are not.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// WrapQueryError classifies an error from a query-execute-and-fetch step.
// Connection-level failures become transient errors eligible for retry;
// anything else is treated as the backend rejecting the SQL and is wrapped
// with the offending query text.
func WrapQueryError(query string, err error) error {
	if err == nil {
		return nil
	}
	var typed *qerrors.Error
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return qerrors.Wrap(err, qerrors.ErrorTypeTimeout, "query timed out")
	}
	if IsConnectionError(err) {
		return qerrors.Wrap(err, qerrors.ErrorTypeConnection, "connection failure during query")
	}
	return qerrors.NewQueryError(query, err)
}

// WrapConnectionError types a connection-establishment failure.
func WrapConnectionError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var typed *qerrors.Error
	if errors.As(err, &typed) {
		return err
	}
	return qerrors.Wrap(err, qerrors.ErrorTypeConnection, msg)
}
