// Package config provides deployment and runtime configuration for Quartz.
package config

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
)

// Database identifies which warehouse backend a deployment targets.
type Database string

const (
	DatabaseSnowflake Database = "snowflake"
	DatabaseBigQuery  Database = "bigquery"
	DatabaseSAP       Database = "sap"
	DatabaseSQLServer Database = "sqlserver"
	DatabaseNone      Database = "no_database"
)

// AppInfra is the deployment-produced infrastructure selection record.
type AppInfra struct {
	LLM      string   `json:"llm"`
	Database Database `json:"database"`
}

// appInfraPaths are the candidate locations for the deployment record,
// tried in order.
var appInfraPaths = []string{
	"app_infra.json",
	"frontend/app_infra.json",
	"app_backend/app_infra.json",
}

// Validate checks the selected database tag.
func (a *AppInfra) Validate() error {
	switch a.Database {
	case DatabaseSnowflake, DatabaseBigQuery, DatabaseSAP, DatabaseSQLServer, DatabaseNone:
		return nil
	case "":
		return fmt.Errorf("database selection is empty")
	default:
		return fmt.Errorf("unknown database selection %q", a.Database)
	}
}

// LoadAppInfra reads the infrastructure selection from the first candidate
// location that exists and parses. It fails with a descriptive error when
// none do; database selection is deployment-produced and there is no safe
// default to fall back to.
func LoadAppInfra() (*AppInfra, error) {
	var lastErr error
	for _, path := range appInfraPaths {
		infra, err := readAppInfra(path)
		if err != nil {
			lastErr = err
			continue
		}
		return infra, nil
	}
	return nil, fmt.Errorf(
		"failed to read app_infra.json from any of %v: verify the deployment produced it "+
			"and that the working directory is the application root: %w",
		appInfraPaths, lastErr)
}

func readAppInfra(path string) (*AppInfra, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: candidate paths are fixed
	if err != nil {
		return nil, err
	}
	var infra AppInfra
	if err := json.Unmarshal(data, &infra); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := infra.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &infra, nil
}
