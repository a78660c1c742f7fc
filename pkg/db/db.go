// Package db selects and constructs the database operator for an analysis
// session. Selection follows the deployed infrastructure descriptor; a
// backend whose credentials turn out to be unusable degrades to the null
// operator rather than failing startup.
package db

import (
	"go.uber.org/zap"

	"github.com/quartzdata/quartz/pkg/config"
	"github.com/quartzdata/quartz/pkg/credentials"
	"github.com/quartzdata/quartz/pkg/dataset"
	"github.com/quartzdata/quartz/pkg/db/core"
	"github.com/quartzdata/quartz/pkg/db/operators/bigquery"
	"github.com/quartzdata/quartz/pkg/db/operators/nodb"
	"github.com/quartzdata/quartz/pkg/db/operators/sapdatasphere"
	"github.com/quartzdata/quartz/pkg/db/operators/snowflake"
	"github.com/quartzdata/quartz/pkg/db/operators/sqlserver"
	"github.com/quartzdata/quartz/pkg/logger"
)

// New builds the operator named by the infrastructure descriptor, resolving
// credentials from the environment. Misconfigured or unknown backends fall
// back to the null operator; the returned operator is never nil and the error
// is always nil today, kept in the signature for construction failures that
// should stop startup rather than degrade.
func New(infra *config.AppInfra, settings *config.Settings, registry dataset.Registry) (core.Operator, error) {
	log := logger.Get()

	switch infra.Database {
	case config.DatabaseSnowflake:
		op, err := snowflake.New(credentials.ResolveSnowflake(), settings, registry)
		if err != nil {
			return fallback(log, "snowflake", err), nil
		}
		return op, nil

	case config.DatabaseBigQuery:
		op, err := bigquery.New(credentials.ResolveBigQuery(), settings, registry)
		if err != nil {
			return fallback(log, "bigquery", err), nil
		}
		return op, nil

	case config.DatabaseSAP:
		op, err := sapdatasphere.New(credentials.ResolveSAPDatasphere(), settings, registry)
		if err != nil {
			return fallback(log, "sap datasphere", err), nil
		}
		return op, nil

	case config.DatabaseSQLServer:
		op, err := sqlserver.New(credentials.ResolveSQLServer(), settings, registry)
		if err != nil {
			return fallback(log, "sql server", err), nil
		}
		return op, nil

	case config.DatabaseNone:
		return nodb.New(), nil

	default:
		log.Warn("unknown database backend, using no database",
			zap.String("database", string(infra.Database)))
		return nodb.New(), nil
	}
}

// Open loads the infrastructure descriptor and builds the operator in one
// step. Descriptor loading failures are fatal: without it we cannot know
// which backend the deployment intended.
func Open(settings *config.Settings, registry dataset.Registry) (core.Operator, error) {
	infra, err := config.LoadAppInfra()
	if err != nil {
		return nil, err
	}
	return New(infra, settings, registry)
}

func fallback(log *zap.Logger, backend string, err error) core.Operator {
	log.Warn("credentials not properly configured, falling back to no database",
		zap.String("backend", backend),
		zap.Error(err))
	return nodb.New()
}
