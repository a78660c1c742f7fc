// Package testutil provides shared testing helpers.
package testutil

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}
