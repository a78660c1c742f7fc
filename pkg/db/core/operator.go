// Package core defines the uniform contract that every warehouse backend
// operator implements.
package core

import (
	"context"
	"time"
)

// QueryResult is a backend-agnostic query result: an ordered column name
// sequence and rows aligned to it by position. Row arity always equals the
// column count.
type QueryResult struct {
	Columns []string
	Rows    [][]interface{}
}

// SystemPrompt is backend-specific grounding context for the downstream
// language-model layer.
type SystemPrompt struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QueryOptions carries per-call execution options.
type QueryOptions struct {
	// Timeout bounds the query at the backend level. Zero means the
	// operator's default.
	Timeout time.Duration
}

// QueryOption mutates QueryOptions.
type QueryOption func(*QueryOptions)

// WithTimeout overrides the operator's default query timeout.
func WithTimeout(d time.Duration) QueryOption {
	return func(o *QueryOptions) { o.Timeout = d }
}

// ApplyOptions resolves options against a default timeout.
func ApplyOptions(defaultTimeout time.Duration, opts []QueryOption) QueryOptions {
	o := QueryOptions{Timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return o
}

// Operator is the per-backend implementation of the uniform query/discovery/
// extraction contract. Implementations own their connection lifecycle; every
// acquisition is scoped and released on all exit paths.
type Operator interface {
	// Name returns the backend tag (snowflake, bigquery, sap, sqlserver,
	// no_database).
	Name() string

	// ExecuteQuery runs one SQL statement with a backend-native timeout and
	// returns the result. Backend SQL rejections surface as query-typed
	// errors carrying the statement text; they are never retried.
	ExecuteQuery(ctx context.Context, query string, opts ...QueryOption) (*QueryResult, error)

	// GetTables lists base tables and views visible under the configured
	// schema, ordered by object type then name. Connectivity failures
	// degrade to an empty list; table listing is advisory.
	GetTables(ctx context.Context, opts ...QueryOption) ([]string, error)

	// GetData samples at most sampleSize rows from each named table,
	// normalizes each to an all-text dataset, and registers it as
	// database-sourced. Per-table failures shrink the returned name list
	// rather than aborting the batch. Results are memoized per distinct
	// table-name tuple for the operator's lifetime.
	GetData(ctx context.Context, sampleSize int, tables ...string) ([]string, error)

	// SystemPrompt renders the backend's grounding context. Pure data
	// transformation, no I/O.
	SystemPrompt() SystemPrompt

	// Close releases pooled or cached backend resources.
	Close() error
}
