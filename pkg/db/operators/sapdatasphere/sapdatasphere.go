// Package sapdatasphere implements the operator for SAP Datasphere, which
// speaks the HANA SQL dialect over the hdb wire protocol.
package sapdatasphere

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"time"

	_ "github.com/SAP/go-hdb/driver"
	"go.uber.org/zap"

	"github.com/quartzdata/quartz/pkg/config"
	"github.com/quartzdata/quartz/pkg/credentials"
	"github.com/quartzdata/quartz/pkg/dataset"
	"github.com/quartzdata/quartz/pkg/db/base"
	"github.com/quartzdata/quartz/pkg/db/core"
	"github.com/quartzdata/quartz/pkg/errors"
	"github.com/quartzdata/quartz/pkg/logger"
)

const systemPromptTemplate = `You are assisting with analysis of an SAP Datasphere tenant.
Queries run against schema %s using the HANA SQL dialect.
Quote identifiers with double quotes; they are case sensitive.
Row sampling uses a LIMIT clause.`

const fetchCacheSize = 8

// Operator executes queries and discovery against SAP Datasphere.
type Operator struct {
	creds      *credentials.SAPDatasphere
	db         *sql.DB
	timeout    time.Duration
	sampleSize int
	retry      *base.RetryPolicy
	registry   dataset.Registry
	cache      *base.FetchCache
	logger     *zap.Logger
}

// New constructs a Datasphere operator or fails with a config error when the
// credential set is incomplete.
func New(creds *credentials.SAPDatasphere, settings *config.Settings, registry dataset.Registry) (*Operator, error) {
	if !creds.IsConfigured() {
		return nil, errors.New(errors.ErrorTypeConfig,
			"sap datasphere credentials not properly configured")
	}

	dsn := &url.URL{
		Scheme:   "hdb",
		User:     url.UserPassword(creds.User, creds.Password),
		Host:     creds.Host + ":" + strconv.Itoa(creds.Port),
		RawQuery: url.Values{"TLSServerName": {creds.Host}}.Encode(),
	}

	db, err := sql.Open("hdb", dsn.String())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to open hdb driver")
	}

	return &Operator{
		creds:      creds,
		db:         db,
		timeout:    settings.QueryTimeout,
		sampleSize: settings.SampleSize,
		retry:      base.NewRetryPolicy(settings.Retry),
		registry:   registry,
		cache:      base.NewFetchCache(fetchCacheSize),
		logger:     logger.With(zap.String("operator", "sap_datasphere")),
	}, nil
}

// Name returns the backend tag.
func (o *Operator) Name() string { return "sap_datasphere" }

func (o *Operator) withConn(ctx context.Context, fn func(*sql.Conn) error) error {
	var conn *sql.Conn
	err := o.retry.Execute(ctx, func() error {
		c, err := o.db.Conn(ctx)
		if err != nil {
			return base.WrapConnectionError(err, "failed to connect to sap datasphere")
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

// ExecuteQuery runs one HANA SQL statement under a context deadline.
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

// GetTables lists tables then views in the configured schema, each group
// name-ordered. Failures degrade to an empty list.
func (o *Operator) GetTables(ctx context.Context, opts ...core.QueryOption) ([]string, error) {
	qo := core.ApplyOptions(o.timeout, opts)
	ctx, cancel := context.WithTimeout(ctx, qo.Timeout)
	defer cancel()

	var objects []string
	err := o.withConn(ctx, func(conn *sql.Conn) error {
		tables, err := o.listObjects(ctx, conn,
			"SELECT TABLE_NAME FROM SYS.TABLES WHERE SCHEMA_NAME = ? ORDER BY TABLE_NAME")
		if err != nil {
			return err
		}
		views, err := o.listObjects(ctx, conn,
			"SELECT VIEW_NAME FROM SYS.VIEWS WHERE SCHEMA_NAME = ? ORDER BY VIEW_NAME")
		if err != nil {
			return err
		}
		objects = append(tables, views...)
		o.logger.Info("listed schema objects",
			zap.String("schema", o.creds.Schema),
			zap.Int("tables", len(tables)),
			zap.Int("views", len(views)))
		return nil
	})
	if err != nil {
		o.logger.Error("failed to fetch tables", zap.Error(err))
		return []string{}, nil
	}
	return objects, nil
}

func (o *Operator) listObjects(ctx context.Context, conn *sql.Conn, query string) ([]string, error) {
	rows, err := conn.QueryContext(ctx, query, o.creds.Schema)
	if err != nil {
		return nil, base.WrapConnectionError(err, "failed to list schema objects")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to scan object name")
		}
		names = append(names, name)
	}
	return names, rows.Err()
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
		o.logger.Error("failed to fetch sap datasphere data", zap.Error(err))
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
	query := fmt.Sprintf(`SELECT * FROM "%s"."%s" LIMIT %d`, o.creds.Schema, table, sampleSize)

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

// SystemPrompt renders grounding context with the configured schema.
func (o *Operator) SystemPrompt() core.SystemPrompt {
	return core.SystemPrompt{
		Role:    "system",
		Content: fmt.Sprintf(systemPromptTemplate, o.creds.Schema),
	}
}

// Close releases the driver handle.
func (o *Operator) Close() error {
	return o.db.Close()
}
