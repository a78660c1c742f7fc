package credentials

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
)

// dbCredentialPayload is the shared secret payload carrying the database
// username and password for deployments that provision one credential object.
const dbCredentialPayload = "MLOPS_RUNTIME_PARAM_db_credential"

// Snowflake holds Snowflake connection credentials. Authentication is either
// a PKCS#8 private key file or a password; at least one must be present for
// the set to be configured.
type Snowflake struct {
	User      string
	Password  string
	Account   string
	Database  string
	Warehouse string
	Schema    string
	Role      string
	KeyPath   string
}

// ResolveSnowflake builds a Snowflake credential set from the environment.
func ResolveSnowflake() *Snowflake {
	return &Snowflake{
		User: resolveString(
			fromEnv("SNOWFLAKE_USER"),
			fromEnv("MLOPS_RUNTIME_PARAM_SNOWFLAKE_USER"),
			fromPayload(dbCredentialPayload, "payload", "username"),
		),
		Password: resolveString(
			fromEnv("SNOWFLAKE_PASSWORD"),
			fromPayload(dbCredentialPayload, "payload", "password"),
		),
		Account:   resolveString(fromEnv("SNOWFLAKE_ACCOUNT"), fromEnv("MLOPS_RUNTIME_PARAM_SNOWFLAKE_ACCOUNT")),
		Database:  resolveString(fromEnv("SNOWFLAKE_DATABASE"), fromEnv("MLOPS_RUNTIME_PARAM_SNOWFLAKE_DATABASE")),
		Warehouse: resolveString(fromEnv("SNOWFLAKE_WAREHOUSE"), fromEnv("MLOPS_RUNTIME_PARAM_SNOWFLAKE_WAREHOUSE")),
		Schema:    resolveString(fromEnv("SNOWFLAKE_SCHEMA"), fromEnv("MLOPS_RUNTIME_PARAM_SNOWFLAKE_SCHEMA")),
		Role:      resolveString(fromEnv("SNOWFLAKE_ROLE"), fromEnv("MLOPS_RUNTIME_PARAM_SNOWFLAKE_ROLE")),
		KeyPath:   resolveString(fromEnv("SNOWFLAKE_KEY_PATH"), fromEnv("MLOPS_RUNTIME_PARAM_SNOWFLAKE_KEY_PATH")),
	}
}

// IsConfigured reports whether all mandatory fields are present and at least
// one authentication method (key file or password) is available.
func (c *Snowflake) IsConfigured() bool {
	hasBasic := c.User != "" && c.Account != "" && c.Warehouse != "" &&
		c.Database != "" && c.Schema != "" && c.Role != ""
	if !hasBasic {
		return false
	}
	return c.KeyPath != "" || c.Password != ""
}

// PrivateKey loads and parses the PKCS#8 private key file, if configured.
// Returns (nil, nil) when no key path is set so callers can fall back to
// password authentication.
func (c *Snowflake) PrivateKey() (*rsa.PrivateKey, error) {
	if c.KeyPath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.KeyPath) //nolint:gosec // G304: path is deployment supplied
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", c.KeyPath, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("key file %s is not PEM encoded", c.KeyPath)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is %T, expected RSA", key)
	}
	return rsaKey, nil
}

// BigQuery holds BigQuery connection credentials. The service account key is
// kept as raw JSON and handed to the client library verbatim.
type BigQuery struct {
	ServiceAccountKey []byte
	Region            string
	Dataset           string
}

// ResolveBigQuery builds a BigQuery credential set from the environment.
func ResolveBigQuery() *BigQuery {
	return &BigQuery{
		ServiceAccountKey: resolveJSON(
			fromEnv("GOOGLE_SERVICE_ACCOUNT_BQ"),
			fromPayload("MLOPS_RUNTIME_PARAM_GOOGLE_SERVICE_ACCOUNT_BQ", "payload", "gcpKey"),
		),
		Region:  resolveString(fromEnv("GOOGLE_REGION_BQ")),
		Dataset: resolveString(fromEnv("GOOGLE_DB_SCHEMA_BQ"), fromEnv("MLOPS_RUNTIME_PARAM_GOOGLE_DB_SCHEMA_BQ")),
	}
}

// IsConfigured reports whether a key and target dataset are present.
func (c *BigQuery) IsConfigured() bool {
	return len(c.ServiceAccountKey) > 0 && c.Dataset != ""
}

// ProjectID extracts the GCP project from the service account key.
func (c *BigQuery) ProjectID() (string, error) {
	var key struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(c.ServiceAccountKey, &key); err != nil {
		return "", fmt.Errorf("failed to parse service account key: %w", err)
	}
	if key.ProjectID == "" {
		return "", fmt.Errorf("service account key has no project_id")
	}
	return key.ProjectID, nil
}

// SAPDatasphere holds SAP Datasphere (HANA) connection credentials.
type SAPDatasphere struct {
	Host     string
	Port     int
	User     string
	Password string
	Schema   string
}

// ResolveSAPDatasphere builds a SAP Datasphere credential set from the
// environment.
func ResolveSAPDatasphere() *SAPDatasphere {
	return &SAPDatasphere{
		Host: resolveString(fromEnv("SAP_DATASPHERE_HOST"), fromEnv("MLOPS_RUNTIME_PARAM_SAP_DATASPHERE_HOST")),
		Port: resolveInt(443, fromEnv("SAP_DATASPHERE_PORT"), fromEnv("MLOPS_RUNTIME_PARAM_SAP_DATASPHERE_PORT")),
		User: resolveString(
			fromEnv("SAP_DATASPHERE_USER"),
			fromPayload(dbCredentialPayload, "payload", "username"),
		),
		Password: resolveString(
			fromEnv("SAP_DATASPHERE_PASSWORD"),
			fromPayload(dbCredentialPayload, "payload", "password"),
		),
		Schema: resolveString(fromEnv("SAP_DATASPHERE_SCHEMA"), fromEnv("MLOPS_RUNTIME_PARAM_SAP_DATASPHERE_SCHEMA")),
	}
}

// IsConfigured reports whether all mandatory connection fields are present.
func (c *SAPDatasphere) IsConfigured() bool {
	return c.Host != "" && c.Port > 0 && c.User != "" && c.Password != ""
}

// SQLServer holds SQL Server connection credentials.
type SQLServer struct {
	Host                   string
	Port                   int
	User                   string
	Password               string
	Database               string
	Schema                 string
	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      time.Duration
}

// ResolveSQLServer builds a SQL Server credential set from the environment.
func ResolveSQLServer() *SQLServer {
	return &SQLServer{
		Host: resolveString(fromEnv("AZURE_SQL_HOST"), fromEnv("MLOPS_RUNTIME_PARAM_AZURE_SQL_HOST")),
		Port: resolveInt(1433, fromEnv("AZURE_SQL_PORT"), fromEnv("MLOPS_RUNTIME_PARAM_AZURE_SQL_PORT")),
		User: resolveString(
			fromEnv("AZURE_SQL_USER"),
			fromPayload(dbCredentialPayload, "payload", "username"),
		),
		Password: resolveString(
			fromEnv("AZURE_SQL_PASSWORD"),
			fromPayload(dbCredentialPayload, "payload", "password"),
		),
		Database: resolveString(fromEnv("AZURE_SQL_DATABASE"), fromEnv("MLOPS_RUNTIME_PARAM_AZURE_SQL_DATABASE")),
		Schema:   resolveString(fromEnv("AZURE_SQL_SCHEMA"), fromEnv("MLOPS_RUNTIME_PARAM_AZURE_SQL_SCHEMA")),
		Encrypt:  resolveBool(true, fromEnv("AZURE_SQL_ENCRYPT"), fromEnv("MLOPS_RUNTIME_PARAM_AZURE_SQL_ENCRYPT")),
		TrustServerCertificate: resolveBool(false,
			fromEnv("AZURE_SQL_TRUST_CERT"), fromEnv("MLOPS_RUNTIME_PARAM_AZURE_SQL_TRUST_CERT")),
		ConnectionTimeout: resolveDuration(30*time.Second,
			fromEnv("AZURE_SQL_CONN_TIMEOUT"), fromEnv("MLOPS_RUNTIME_PARAM_AZURE_SQL_CONN_TIMEOUT")),
	}
}

// IsConfigured reports whether all mandatory fields are present and the
// schema name passes validation.
func (c *SQLServer) IsConfigured() bool {
	if c.Host == "" || c.Port <= 0 || c.Port > 65535 || c.User == "" ||
		c.Password == "" || c.Database == "" || c.Schema == "" {
		return false
	}
	return validSchemaName(c.Schema)
}

// validSchemaName allows only alphanumerics, underscores, and dots; the
// schema name is interpolated into INFORMATION_SCHEMA queries.
func validSchemaName(name string) bool {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '.':
		default:
			return false
		}
	}
	return name != ""
}

// NoDatabase is the credential set for deployments without a warehouse.
type NoDatabase struct{}

// IsConfigured always succeeds; absence of a database is a valid deployment.
func (NoDatabase) IsConfigured() bool { return true }
