// Package snowflake implements the warehouse operator for Snowflake.
package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/quartzdata/quartz/pkg/config"
	"github.com/quartzdata/quartz/pkg/credentials"
	"github.com/quartzdata/quartz/pkg/dataset"
	"github.com/quartzdata/quartz/pkg/db/base"
	"github.com/quartzdata/quartz/pkg/db/core"
	"github.com/quartzdata/quartz/pkg/errors"
	"github.com/quartzdata/quartz/pkg/logger"
)

const systemPromptTemplate = `You are assisting with analysis of a Snowflake data warehouse.
Queries run against warehouse %s, database %s, schema %s.
Use Snowflake SQL syntax. Quote mixed-case identifiers with double quotes.
Row sampling uses the SAMPLE (n ROWS) clause.`

// fetchCacheSize bounds the per-operator extraction memo.
const fetchCacheSize = 8

// Operator executes queries and discovery against Snowflake. Each scoped
// connection is a dedicated session so the statement timeout can be applied
// session-level.
type Operator struct {
	creds      *credentials.Snowflake
	db         *sql.DB
	timeout    time.Duration
	sampleSize int
	retry      *base.RetryPolicy
	registry   dataset.Registry
	cache      *base.FetchCache
	logger     *zap.Logger
}

// New constructs a Snowflake operator. It fails with a config error when the
// credential set is incomplete; no connection is attempted here.
func New(creds *credentials.Snowflake, settings *config.Settings, registry dataset.Registry) (*Operator, error) {
	if !creds.IsConfigured() {
		return nil, errors.New(errors.ErrorTypeConfig, "snowflake credentials not properly configured")
	}

	cfg := gosnowflake.Config{
		Account:   creds.Account,
		User:      creds.User,
		Database:  creds.Database,
		Schema:    creds.Schema,
		Warehouse: creds.Warehouse,
		Role:      creds.Role,
	}

	// Key file authentication wins over password when both are present. An
	// unreadable or unparseable key file falls back to password auth when a
	// password exists; the deployment keeps working on the weaker method.
	key, err := creds.PrivateKey()
	if err != nil {
		if creds.Password == "" {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load snowflake private key")
		}
		logger.Warn("failed to load snowflake private key, falling back to password auth",
			zap.Error(err))
		key = nil
	}
	switch {
	case key != nil:
		cfg.PrivateKey = key
		cfg.Authenticator = gosnowflake.AuthTypeJwt
	case creds.Password != "":
		cfg.Password = creds.Password
	default:
		return nil, errors.New(errors.ErrorTypeConfig,
			"neither private key nor password authentication configured")
	}

	dsn, err := gosnowflake.DSN(&cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to build snowflake DSN")
	}
	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to open snowflake driver")
	}

	return &Operator{
		creds:      creds,
		db:         db,
		timeout:    settings.QueryTimeout,
		sampleSize: settings.SampleSize,
		retry:      base.NewRetryPolicy(settings.Retry),
		registry:   registry,
		cache:      base.NewFetchCache(fetchCacheSize),
		logger:     logger.With(zap.String("operator", "snowflake")),
	}, nil
}

// Name returns the backend tag.
func (o *Operator) Name() string { return "snowflake" }

// withConn runs fn against a fresh session, releasing it on every exit path.
// Session creation is retried on transient failures.
func (o *Operator) withConn(ctx context.Context, fn func(*sql.Conn) error) error {
	var conn *sql.Conn
	err := o.retry.Execute(ctx, func() error {
		c, err := o.db.Conn(ctx)
		if err != nil {
			return base.WrapConnectionError(err, "failed to connect to snowflake")
		}
		conn = c
		return nil
	})
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(conn)
}

// setStatementTimeout applies the per-query timeout at session level.
func (o *Operator) setStatementTimeout(ctx context.Context, conn *sql.Conn, timeout time.Duration) error {
	stmt := fmt.Sprintf("ALTER SESSION SET STATEMENT_TIMEOUT_IN_SECONDS = %d", int(timeout.Seconds()))
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return base.WrapConnectionError(err, "failed to set statement timeout")
	}
	return nil
}

// ExecuteQuery runs one statement and returns the result. Snowflake SQL
// rejections surface as query errors carrying the statement text.
func (o *Operator) ExecuteQuery(ctx context.Context, query string, opts ...core.QueryOption) (*core.QueryResult, error) {
	qo := core.ApplyOptions(o.timeout, opts)

	var result *core.QueryResult
	err := o.withConn(ctx, func(conn *sql.Conn) error {
		if err := o.setStatementTimeout(ctx, conn, qo.Timeout); err != nil {
			return err
		}
		return o.retry.Execute(ctx, func() error {
			rows, err := conn.QueryContext(ctx, query)
			if err != nil {
				return base.WrapQueryError(query, err)
			}
			defer rows.Close()
			r, err := base.ScanRows(rows)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetTables lists base tables and views in the configured schema, ordered by
// object type then name. Failures degrade to an empty list.
func (o *Operator) GetTables(ctx context.Context, opts ...core.QueryOption) ([]string, error) {
	qo := core.ApplyOptions(o.timeout, opts)

	listSQL := fmt.Sprintf(`
		SELECT table_name, table_type
		FROM %s.INFORMATION_SCHEMA.TABLES
		WHERE table_schema = ?
		AND table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY table_type, table_name`, o.creds.Database)

	var tables []string
	err := o.withConn(ctx, func(conn *sql.Conn) error {
		if err := o.setStatementTimeout(ctx, conn, qo.Timeout); err != nil {
			return err
		}
		rows, err := conn.QueryContext(ctx, listSQL, o.creds.Schema)
		if err != nil {
			return base.WrapConnectionError(err, "failed to list tables")
		}
		defer rows.Close()
		for rows.Next() {
			var name, objType string
			if err := rows.Scan(&name, &objType); err != nil {
				return errors.Wrap(err, errors.ErrorTypeData, "failed to scan table row")
			}
			tables = append(tables, name)
		}
		return rows.Err()
	})
	if err != nil {
		o.logger.Error("failed to fetch tables", zap.Error(err))
		return []string{}, nil
	}

	o.logger.Info("listed schema objects",
		zap.String("database", o.creds.Database),
		zap.String("schema", o.creds.Schema),
		zap.Int("count", len(tables)))
	return tables, nil
}

// GetData samples the named tables, registers each as an all-text dataset,
// and returns the names that loaded. Results are memoized per table tuple.
func (o *Operator) GetData(ctx context.Context, sampleSize int, tables ...string) ([]string, error) {
	if sampleSize <= 0 {
		sampleSize = o.sampleSize
	}
	names, err := o.cache.Do(tables, func() ([]string, error) {
		return o.fetchTables(ctx, sampleSize, tables)
	})
	if err != nil {
		o.logger.Error("failed to fetch snowflake data", zap.Error(err))
		return []string{}, nil
	}
	return names, nil
}

func (o *Operator) fetchTables(ctx context.Context, sampleSize int, tables []string) ([]string, error) {
	var loaded []string
	err := o.withConn(ctx, func(conn *sql.Conn) error {
		if err := o.setStatementTimeout(ctx, conn, o.timeout); err != nil {
			return err
		}
		for _, table := range tables {
			ds, err := o.sampleTable(ctx, conn, table, sampleSize)
			if err != nil {
				// One table's failure must not abort the batch.
				o.logger.Error("failed to load table",
					zap.String("table", table), zap.Error(err))
				continue
			}
			if err := o.registry.RegisterDataset(ctx, ds, dataset.SourceDatabase); err != nil {
				o.logger.Error("failed to register dataset",
					zap.String("table", table), zap.Error(err))
				continue
			}
			o.logger.Info("loaded table",
				zap.String("table", table),
				zap.Int("rows", ds.NumRows()),
				zap.Int("columns", ds.NumColumns()))
			loaded = append(loaded, table)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if loaded == nil {
		loaded = []string{}
	}
	return loaded, nil
}

func (o *Operator) sampleTable(ctx context.Context, conn *sql.Conn, table string, sampleSize int) (*dataset.Dataset, error) {
	qualified := fmt.Sprintf(`%s.%s."%s"`, o.creds.Database, o.creds.Schema, table)
	query := fmt.Sprintf("SELECT * FROM %s SAMPLE (%d ROWS)", qualified, sampleSize)

	var result *core.QueryResult
	err := o.retry.Execute(ctx, func() error {
		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			return base.WrapQueryError(query, err)
		}
		defer rows.Close()
		r, err := base.ScanRows(rows)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dataset.FromRows(table, result.Columns, result.Rows)
}

// SystemPrompt renders grounding context with the configured identifiers.
func (o *Operator) SystemPrompt() core.SystemPrompt {
	return core.SystemPrompt{
		Role: "system",
		Content: fmt.Sprintf(systemPromptTemplate,
			o.creds.Warehouse, o.creds.Database, o.creds.Schema),
	}
}

// Close releases the driver handle.
func (o *Operator) Close() error {
	return o.db.Close()
}
