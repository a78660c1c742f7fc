// Package sqlserver implements the operator for Microsoft SQL Server and
// Azure SQL. Unlike the warehouse backends it keeps a small pool of live
// connections, since SQL Server session setup is comparatively expensive.
package sqlserver

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"time"

	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/quartzdata/quartz/pkg/config"
	"github.com/quartzdata/quartz/pkg/credentials"
	"github.com/quartzdata/quartz/pkg/dataset"
	"github.com/quartzdata/quartz/pkg/db/base"
	"github.com/quartzdata/quartz/pkg/db/core"
	"github.com/quartzdata/quartz/pkg/errors"
	"github.com/quartzdata/quartz/pkg/logger"
)

const systemPromptTemplate = `You are assisting with analysis of a Microsoft SQL Server database.
Queries run against database %s, schema %s.
Use T-SQL syntax. Quote identifiers with square brackets.
Row sampling uses a TOP n clause.`

const fetchCacheSize = 8

// Operator executes queries and discovery against SQL Server through a
// bounded, liveness-probed connection pool.
type Operator struct {
	creds      *credentials.SQLServer
	db         *sql.DB
	pool       *base.ConnPool
	timeout    time.Duration
	sampleSize int
	retry      *base.RetryPolicy
	registry   dataset.Registry
	cache      *base.FetchCache
	logger     *zap.Logger
}

// New constructs a SQL Server operator or fails with a config error when the
// credential set is incomplete.
func New(creds *credentials.SQLServer, settings *config.Settings, registry dataset.Registry) (*Operator, error) {
	if !creds.IsConfigured() {
		return nil, errors.New(errors.ErrorTypeConfig,
			"sql server credentials not properly configured")
	}

	query := url.Values{}
	query.Set("database", creds.Database)
	query.Set("encrypt", strconv.FormatBool(creds.Encrypt))
	query.Set("TrustServerCertificate", strconv.FormatBool(creds.TrustServerCertificate))
	query.Set("dial timeout", strconv.Itoa(int(creds.ConnectionTimeout.Seconds())))

	dsn := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(creds.User, creds.Password),
		Host:     creds.Host + ":" + strconv.Itoa(creds.Port),
		RawQuery: query.Encode(),
	}

	db, err := sql.Open("sqlserver", dsn.String())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to open sqlserver driver")
	}
	return newWithDB(creds, settings, registry, db), nil
}

// newWithDB finishes construction from an opened handle. Split out so tests
// can substitute a mocked driver.
func newWithDB(creds *credentials.SQLServer, settings *config.Settings, registry dataset.Registry, db *sql.DB) *Operator {
	log := logger.With(zap.String("operator", "sql_server"))
	return &Operator{
		creds:      creds,
		db:         db,
		pool:       base.NewConnPool(db, settings.PoolSize, log),
		timeout:    settings.QueryTimeout,
		sampleSize: settings.SampleSize,
		retry:      base.NewRetryPolicy(settings.Retry),
		registry:   registry,
		cache:      base.NewFetchCache(fetchCacheSize),
		logger:     log,
	}
}

// Name returns the backend tag.
func (o *Operator) Name() string { return "sql_server" }

// withConn borrows a pooled connection for the duration of fn. Acquisition is
// retried on transient failures; the connection always goes back through the
// pool's health check.
func (o *Operator) withConn(ctx context.Context, fn func(*sql.Conn) error) error {
	var conn *sql.Conn
	err := o.retry.Execute(ctx, func() error {
		c, err := o.pool.Acquire(ctx)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return err
	}
	defer o.pool.Release(ctx, conn)
	return fn(conn)
}

// ExecuteQuery runs one T-SQL statement under a context deadline.
func (o *Operator) ExecuteQuery(ctx context.Context, query string, opts ...core.QueryOption) (*core.QueryResult, error) {
	qo := core.ApplyOptions(o.timeout, opts)
	ctx, cancel := context.WithTimeout(ctx, qo.Timeout)
	defer cancel()

	var result *core.QueryResult
	err := o.withConn(ctx, func(conn *sql.Conn) error {
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
// name. Failures degrade to an empty list.
func (o *Operator) GetTables(ctx context.Context, opts ...core.QueryOption) ([]string, error) {
	qo := core.ApplyOptions(o.timeout, opts)
	ctx, cancel := context.WithTimeout(ctx, qo.Timeout)
	defer cancel()

	const listSQL = `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1
		AND TABLE_TYPE IN ('BASE TABLE', 'VIEW')
		ORDER BY TABLE_NAME`

	var tables []string
	err := o.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, listSQL, o.creds.Schema)
		if err != nil {
			return base.WrapConnectionError(err, "failed to list tables")
		}
		defer rows.Close()
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
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
		zap.String("schema", o.creds.Schema),
		zap.Int("count", len(tables)))
	return tables, nil
}

// GetData samples the named tables into registered datasets. Results are
// memoized per table tuple.
func (o *Operator) GetData(ctx context.Context, sampleSize int, tables ...string) ([]string, error) {
	if sampleSize <= 0 {
		sampleSize = o.sampleSize
	}
	names, err := o.cache.Do(tables, func() ([]string, error) {
		return o.fetchTables(ctx, sampleSize, tables)
	})
	if err != nil {
		o.logger.Error("failed to fetch sql server data", zap.Error(err))
		return []string{}, nil
	}
	return names, nil
}

func (o *Operator) fetchTables(ctx context.Context, sampleSize int, tables []string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	loaded := []string{}
	err := o.withConn(ctx, func(conn *sql.Conn) error {
		for _, table := range tables {
			ds, err := o.sampleTable(ctx, conn, table, sampleSize)
			if err != nil {
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
	return loaded, nil
}

func (o *Operator) sampleTable(ctx context.Context, conn *sql.Conn, table string, sampleSize int) (*dataset.Dataset, error) {
	qualified := fmt.Sprintf("[%s].[%s].[%s]", o.creds.Database, o.creds.Schema, table)
	query := fmt.Sprintf("SELECT TOP %d * FROM %s", sampleSize, qualified)

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

// SystemPrompt renders grounding context with the database and schema.
func (o *Operator) SystemPrompt() core.SystemPrompt {
	return core.SystemPrompt{
		Role: "system",
		Content: fmt.Sprintf(systemPromptTemplate,
			o.creds.Database, o.creds.Schema),
	}
}

// Close drains the pool and releases the driver handle.
func (o *Operator) Close() error {
	return o.pool.Close()
}
