package credentials

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable a resolver might read so tests are
// insensitive to the host environment.
func clearEnv(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		t.Setenv(name, "")
	}
}

var snowflakeEnv = []string{
	"SNOWFLAKE_USER", "MLOPS_RUNTIME_PARAM_SNOWFLAKE_USER",
	"SNOWFLAKE_PASSWORD", "SNOWFLAKE_ACCOUNT", "MLOPS_RUNTIME_PARAM_SNOWFLAKE_ACCOUNT",
	"SNOWFLAKE_DATABASE", "MLOPS_RUNTIME_PARAM_SNOWFLAKE_DATABASE",
	"SNOWFLAKE_WAREHOUSE", "MLOPS_RUNTIME_PARAM_SNOWFLAKE_WAREHOUSE",
	"SNOWFLAKE_SCHEMA", "MLOPS_RUNTIME_PARAM_SNOWFLAKE_SCHEMA",
	"SNOWFLAKE_ROLE", "MLOPS_RUNTIME_PARAM_SNOWFLAKE_ROLE",
	"SNOWFLAKE_KEY_PATH", "MLOPS_RUNTIME_PARAM_SNOWFLAKE_KEY_PATH",
	dbCredentialPayload,
}

func TestResolveSnowflakeFromEnv(t *testing.T) {
	clearEnv(t, snowflakeEnv...)
	t.Setenv("SNOWFLAKE_USER", "analyst")
	t.Setenv("SNOWFLAKE_PASSWORD", "hunter2")
	t.Setenv("SNOWFLAKE_ACCOUNT", "org-acct")
	t.Setenv("SNOWFLAKE_DATABASE", "ANALYTICS")
	t.Setenv("SNOWFLAKE_WAREHOUSE", "COMPUTE_WH")
	t.Setenv("SNOWFLAKE_SCHEMA", "PUBLIC")
	t.Setenv("SNOWFLAKE_ROLE", "ANALYST")

	c := ResolveSnowflake()
	assert.Equal(t, "analyst", c.User)
	assert.Equal(t, "org-acct", c.Account)
	assert.Equal(t, "ANALYTICS", c.Database)
	assert.True(t, c.IsConfigured())
}

func TestResolveSnowflakePayloadFallback(t *testing.T) {
	clearEnv(t, snowflakeEnv...)
	t.Setenv(dbCredentialPayload,
		`{"payload": {"username": "payload-user", "password": "payload-pass"}}`)

	c := ResolveSnowflake()
	assert.Equal(t, "payload-user", c.User)
	assert.Equal(t, "payload-pass", c.Password)
}

func TestResolveSnowflakeEnvWinsOverPayload(t *testing.T) {
	clearEnv(t, snowflakeEnv...)
	t.Setenv("SNOWFLAKE_USER", "env-user")
	t.Setenv(dbCredentialPayload, `{"payload": {"username": "payload-user"}}`)

	c := ResolveSnowflake()
	assert.Equal(t, "env-user", c.User)
}

func TestSnowflakeIsConfigured(t *testing.T) {
	base := Snowflake{
		User: "u", Account: "a", Warehouse: "w",
		Database: "d", Schema: "s", Role: "r",
	}

	none := base
	assert.False(t, none.IsConfigured(), "needs an auth method")

	withPassword := base
	withPassword.Password = "p"
	assert.True(t, withPassword.IsConfigured())

	withKey := base
	withKey.KeyPath = "/tmp/key.p8"
	assert.True(t, withKey.IsConfigured())

	missingRole := withPassword
	missingRole.Role = ""
	assert.False(t, missingRole.IsConfigured())
}

func TestSnowflakePrivateKey(t *testing.T) {
	t.Run("no key path", func(t *testing.T) {
		c := &Snowflake{}
		key, err := c.PrivateKey()
		require.NoError(t, err)
		assert.Nil(t, key)
	})

	t.Run("round trip", func(t *testing.T) {
		rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		der, err := x509.MarshalPKCS8PrivateKey(rsaKey)
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "key.p8")
		require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(
			&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0o600))

		c := &Snowflake{KeyPath: path}
		parsed, err := c.PrivateKey()
		require.NoError(t, err)
		assert.True(t, rsaKey.Equal(parsed))
	})

	t.Run("not pem", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "key.p8")
		require.NoError(t, os.WriteFile(path, []byte("not a key"), 0o600))

		c := &Snowflake{KeyPath: path}
		_, err := c.PrivateKey()
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		c := &Snowflake{KeyPath: filepath.Join(t.TempDir(), "absent.p8")}
		_, err := c.PrivateKey()
		assert.Error(t, err)
	})
}

var bigqueryEnv = []string{
	"GOOGLE_SERVICE_ACCOUNT_BQ", "MLOPS_RUNTIME_PARAM_GOOGLE_SERVICE_ACCOUNT_BQ",
	"GOOGLE_REGION_BQ", "GOOGLE_DB_SCHEMA_BQ", "MLOPS_RUNTIME_PARAM_GOOGLE_DB_SCHEMA_BQ",
}

func TestResolveBigQueryFromEnv(t *testing.T) {
	clearEnv(t, bigqueryEnv...)
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_BQ", `{"project_id": "acme-analytics"}`)
	t.Setenv("GOOGLE_DB_SCHEMA_BQ", "sales")

	c := ResolveBigQuery()
	require.True(t, c.IsConfigured())

	project, err := c.ProjectID()
	require.NoError(t, err)
	assert.Equal(t, "acme-analytics", project)
	assert.Equal(t, "sales", c.Dataset)
}

func TestResolveBigQueryPayloadKey(t *testing.T) {
	clearEnv(t, bigqueryEnv...)
	t.Setenv("MLOPS_RUNTIME_PARAM_GOOGLE_SERVICE_ACCOUNT_BQ",
		`{"payload": {"gcpKey": {"project_id": "payload-project"}}}`)
	t.Setenv("GOOGLE_DB_SCHEMA_BQ", "sales")

	c := ResolveBigQuery()
	require.True(t, c.IsConfigured())

	project, err := c.ProjectID()
	require.NoError(t, err)
	assert.Equal(t, "payload-project", project)
}

func TestBigQueryNotConfigured(t *testing.T) {
	clearEnv(t, bigqueryEnv...)

	c := ResolveBigQuery()
	assert.False(t, c.IsConfigured())
}

func TestBigQueryProjectIDErrors(t *testing.T) {
	c := &BigQuery{ServiceAccountKey: []byte("not json")}
	_, err := c.ProjectID()
	assert.Error(t, err)

	c = &BigQuery{ServiceAccountKey: []byte(`{"type": "service_account"}`)}
	_, err = c.ProjectID()
	assert.Error(t, err)
}

var sapEnv = []string{
	"SAP_DATASPHERE_HOST", "MLOPS_RUNTIME_PARAM_SAP_DATASPHERE_HOST",
	"SAP_DATASPHERE_PORT", "MLOPS_RUNTIME_PARAM_SAP_DATASPHERE_PORT",
	"SAP_DATASPHERE_USER", "SAP_DATASPHERE_PASSWORD",
	"SAP_DATASPHERE_SCHEMA", "MLOPS_RUNTIME_PARAM_SAP_DATASPHERE_SCHEMA",
	dbCredentialPayload,
}

func TestResolveSAPDatasphere(t *testing.T) {
	clearEnv(t, sapEnv...)
	t.Setenv("SAP_DATASPHERE_HOST", "tenant.hana.ondemand.com")
	t.Setenv("SAP_DATASPHERE_USER", "analyst")
	t.Setenv("SAP_DATASPHERE_PASSWORD", "secret")
	t.Setenv("SAP_DATASPHERE_SCHEMA", "SALES")

	c := ResolveSAPDatasphere()
	assert.Equal(t, 443, c.Port, "default port")
	assert.True(t, c.IsConfigured())

	t.Setenv("SAP_DATASPHERE_PORT", "30015")
	c = ResolveSAPDatasphere()
	assert.Equal(t, 30015, c.Port)
}

func TestSAPDatasphereNotConfigured(t *testing.T) {
	clearEnv(t, sapEnv...)

	c := ResolveSAPDatasphere()
	assert.False(t, c.IsConfigured())
}

var sqlserverEnv = []string{
	"AZURE_SQL_HOST", "MLOPS_RUNTIME_PARAM_AZURE_SQL_HOST",
	"AZURE_SQL_PORT", "MLOPS_RUNTIME_PARAM_AZURE_SQL_PORT",
	"AZURE_SQL_USER", "AZURE_SQL_PASSWORD",
	"AZURE_SQL_DATABASE", "MLOPS_RUNTIME_PARAM_AZURE_SQL_DATABASE",
	"AZURE_SQL_SCHEMA", "MLOPS_RUNTIME_PARAM_AZURE_SQL_SCHEMA",
	"AZURE_SQL_ENCRYPT", "MLOPS_RUNTIME_PARAM_AZURE_SQL_ENCRYPT",
	"AZURE_SQL_TRUST_CERT", "MLOPS_RUNTIME_PARAM_AZURE_SQL_TRUST_CERT",
	"AZURE_SQL_CONN_TIMEOUT", "MLOPS_RUNTIME_PARAM_AZURE_SQL_CONN_TIMEOUT",
	dbCredentialPayload,
}

func setSQLServerEnv(t *testing.T) {
	t.Helper()
	clearEnv(t, sqlserverEnv...)
	t.Setenv("AZURE_SQL_HOST", "db.example.com")
	t.Setenv("AZURE_SQL_USER", "analyst")
	t.Setenv("AZURE_SQL_PASSWORD", "secret")
	t.Setenv("AZURE_SQL_DATABASE", "analytics")
	t.Setenv("AZURE_SQL_SCHEMA", "dbo")
}

func TestResolveSQLServerDefaults(t *testing.T) {
	setSQLServerEnv(t)

	c := ResolveSQLServer()
	assert.Equal(t, 1433, c.Port)
	assert.True(t, c.Encrypt)
	assert.False(t, c.TrustServerCertificate)
	assert.Equal(t, 30*time.Second, c.ConnectionTimeout)
	assert.True(t, c.IsConfigured())
}

func TestResolveSQLServerOverrides(t *testing.T) {
	setSQLServerEnv(t)
	t.Setenv("AZURE_SQL_PORT", "14330")
	t.Setenv("AZURE_SQL_ENCRYPT", "false")
	t.Setenv("AZURE_SQL_TRUST_CERT", "true")
	t.Setenv("AZURE_SQL_CONN_TIMEOUT", "10")

	c := ResolveSQLServer()
	assert.Equal(t, 14330, c.Port)
	assert.False(t, c.Encrypt)
	assert.True(t, c.TrustServerCertificate)
	assert.Equal(t, 10*time.Second, c.ConnectionTimeout)
}

func TestSQLServerSchemaValidation(t *testing.T) {
	setSQLServerEnv(t)

	valid := ResolveSQLServer()
	require.True(t, valid.IsConfigured())

	// A schema name carrying SQL metacharacters disqualifies the set
	// instead of reaching an interpolated query.
	t.Setenv("AZURE_SQL_SCHEMA", "dbo'; DROP TABLE users; --")
	injected := ResolveSQLServer()
	assert.False(t, injected.IsConfigured())

	t.Setenv("AZURE_SQL_SCHEMA", "history.v2_data")
	dotted := ResolveSQLServer()
	assert.True(t, dotted.IsConfigured())
}

func TestNoDatabaseAlwaysConfigured(t *testing.T) {
	assert.True(t, NoDatabase{}.IsConfigured())
}
