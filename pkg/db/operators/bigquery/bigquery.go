// Package bigquery implements the warehouse operator for Google BigQuery.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/quartzdata/quartz/pkg/config"
	"github.com/quartzdata/quartz/pkg/credentials"
	"github.com/quartzdata/quartz/pkg/dataset"
	"github.com/quartzdata/quartz/pkg/db/base"
	"github.com/quartzdata/quartz/pkg/db/core"
	"github.com/quartzdata/quartz/pkg/errors"
	"github.com/quartzdata/quartz/pkg/logger"
)

const systemPromptTemplate = `You are assisting with analysis of a Google BigQuery project.
Queries run against project %s, dataset %s.
Use GoogleSQL syntax. Qualify tables as ` + "`project.dataset.table`" + ` with backticks.
Row sampling uses a LIMIT clause.`

const fetchCacheSize = 8

// Operator executes queries and discovery against BigQuery. Clients are
// short-lived: one per operation, mirroring how per-request auth tokens are
// scoped.
type Operator struct {
	creds      *credentials.BigQuery
	projectID  string
	timeout    time.Duration
	sampleSize int
	retry      *base.RetryPolicy
	registry   dataset.Registry
	cache      *base.FetchCache
	logger     *zap.Logger
}

// New constructs a BigQuery operator. The project identifier comes from the
// service account key itself.
func New(creds *credentials.BigQuery, settings *config.Settings, registry dataset.Registry) (*Operator, error) {
	if !creds.IsConfigured() {
		return nil, errors.New(errors.ErrorTypeConfig, "bigquery credentials not properly configured")
	}
	projectID, err := creds.ProjectID()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig,
			"service account key does not identify a project")
	}

	return &Operator{
		creds:      creds,
		projectID:  projectID,
		timeout:    settings.QueryTimeout,
		sampleSize: settings.SampleSize,
		retry:      base.NewRetryPolicy(settings.Retry),
		registry:   registry,
		cache:      base.NewFetchCache(fetchCacheSize),
		logger:     logger.With(zap.String("operator", "bigquery")),
	}, nil
}

// Name returns the backend tag.
func (o *Operator) Name() string { return "bigquery" }

func (o *Operator) newClient(ctx context.Context) (*bigquery.Client, error) {
	client, err := bigquery.NewClient(ctx, o.projectID,
		option.WithCredentialsJSON(o.creds.ServiceAccountKey))
	if err != nil {
		return nil, base.WrapConnectionError(err, "failed to create bigquery client")
	}
	return client, nil
}

// runQuery executes one statement and drains the row iterator into a result.
func (o *Operator) runQuery(ctx context.Context, client *bigquery.Client, query string) (*core.QueryResult, error) {
	var result *core.QueryResult
	err := o.retry.Execute(ctx, func() error {
		it, err := client.Query(query).Read(ctx)
		if err != nil {
			return base.WrapQueryError(query, err)
		}
		r, err := drainIterator(it)
		if err != nil {
			return base.WrapQueryError(query, err)
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func drainIterator(it *bigquery.RowIterator) (*core.QueryResult, error) {
	var rows [][]interface{}
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		vals := make([]interface{}, len(row))
		for i, v := range row {
			vals[i] = v
		}
		rows = append(rows, vals)
	}

	columns := make([]string, 0, len(it.Schema))
	for _, field := range it.Schema {
		columns = append(columns, field.Name)
	}
	return &core.QueryResult{Columns: columns, Rows: rows}, nil
}

// ExecuteQuery runs one GoogleSQL statement.
func (o *Operator) ExecuteQuery(ctx context.Context, query string, opts ...core.QueryOption) (*core.QueryResult, error) {
	qo := core.ApplyOptions(o.timeout, opts)
	ctx, cancel := context.WithTimeout(ctx, qo.Timeout)
	defer cancel()

	client, err := o.newClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	return o.runQuery(ctx, client, query)
}

// GetTables lists tables in the configured dataset. Failures degrade to an
// empty list.
func (o *Operator) GetTables(ctx context.Context, opts ...core.QueryOption) ([]string, error) {
	qo := core.ApplyOptions(o.timeout, opts)
	ctx, cancel := context.WithTimeout(ctx, qo.Timeout)
	defer cancel()

	client, err := o.newClient(ctx)
	if err != nil {
		o.logger.Error("failed to fetch tables", zap.Error(err))
		return []string{}, nil
	}
	defer client.Close()

	var tables []string
	it := client.Dataset(o.creds.Dataset).Tables(ctx)
	for {
		t, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			o.logger.Error("failed to fetch tables", zap.Error(err))
			return []string{}, nil
		}
		tables = append(tables, t.TableID)
	}

	o.logger.Info("listed dataset tables",
		zap.String("project", o.projectID),
		zap.String("dataset", o.creds.Dataset),
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
		o.logger.Error("failed to fetch bigquery data", zap.Error(err))
		return []string{}, nil
	}
	return names, nil
}

func (o *Operator) fetchTables(ctx context.Context, sampleSize int, tables []string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	client, err := o.newClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	loaded := []string{}
	for _, table := range tables {
		qualified := fmt.Sprintf("%s.%s.%s", o.projectID, o.creds.Dataset, table)
		query := fmt.Sprintf("SELECT * FROM `%s` LIMIT %d", qualified, sampleSize)

		result, err := o.runQuery(ctx, client, query)
		if err != nil {
			o.logger.Error("failed to load table",
				zap.String("table", qualified), zap.Error(err))
			continue
		}
		ds, err := dataset.FromRows(table, result.Columns, result.Rows)
		if err != nil {
			o.logger.Error("failed to normalize table",
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
	return loaded, nil
}

// SystemPrompt renders grounding context with the project and dataset.
func (o *Operator) SystemPrompt() core.SystemPrompt {
	return core.SystemPrompt{
		Role:    "system",
		Content: fmt.Sprintf(systemPromptTemplate, o.projectID, o.creds.Dataset),
	}
}

// Close is a no-op; clients are scoped per operation.
func (o *Operator) Close() error { return nil }
