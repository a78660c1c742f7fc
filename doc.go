// Package quartz provides unified database access for analytics sessions.
//
// A deployment targets exactly one backend - Snowflake, Google BigQuery,
// SAP Datasphere, Microsoft SQL Server, or none at all - and Quartz exposes
// it through a single operator contract: execute a SQL statement, list the
// tables visible in the configured schema, and extract sampled table data as
// normalized all-text datasets.
//
// # Architecture
//
// The operator contract lives in pkg/db/core. Backend implementations under
// pkg/db/operators share mechanics from pkg/db/base:
//
//   - a retry policy with bounded exponential backoff, applied only to
//     failures classified transient (connection drops, timeouts)
//   - a bounded, liveness-probed connection pool for SQL Server
//   - per-operator memoization of table extraction keyed on the exact
//     table tuple
//
// Backend selection follows the deployment's app_infra.json record
// (pkg/config); credentials resolve from the environment and injected
// secret payloads (pkg/credentials). A selected backend whose credentials
// are incomplete degrades to the null operator rather than failing startup,
// so the surrounding application keeps working with uploaded files only.
//
// # Quick Start
//
//	settings := config.DefaultSettings()
//	registry := dataset.NewMemoryRegistry()
//	op, err := db.Open(settings, registry)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer op.Close()
//
//	tables, _ := op.GetTables(ctx)
//	loaded, _ := op.GetData(ctx, 5000, tables...)
package quartz
