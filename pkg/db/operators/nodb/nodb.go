// Package nodb implements the null operator used when no external database is
// configured. Every operation succeeds with empty results, so callers never
// need a nil check on the operator.
package nodb

import (
	"context"

	"github.com/quartzdata/quartz/pkg/db/core"
)

const systemPrompt = `No external database is connected.
Work only with datasets already registered in the analysis session.`

// Operator is the no-database stand-in.
type Operator struct{}

// New returns the null operator. It cannot fail.
func New() *Operator { return &Operator{} }

// Name returns the backend tag.
func (o *Operator) Name() string { return "no_database" }

// ExecuteQuery returns an empty result.
func (o *Operator) ExecuteQuery(ctx context.Context, query string, opts ...core.QueryOption) (*core.QueryResult, error) {
	return &core.QueryResult{Columns: []string{}, Rows: [][]interface{}{}}, nil
}

// GetTables returns no tables.
func (o *Operator) GetTables(ctx context.Context, opts ...core.QueryOption) ([]string, error) {
	return []string{}, nil
}

// GetData loads nothing.
func (o *Operator) GetData(ctx context.Context, sampleSize int, tables ...string) ([]string, error) {
	return []string{}, nil
}

// SystemPrompt tells downstream consumers there is no warehouse to query.
func (o *Operator) SystemPrompt() core.SystemPrompt {
	return core.SystemPrompt{Role: "system", Content: systemPrompt}
}

// Close is a no-op.
func (o *Operator) Close() error { return nil }
