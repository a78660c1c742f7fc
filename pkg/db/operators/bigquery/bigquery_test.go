package bigquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quartzdata/quartz/pkg/config"
	"github.com/quartzdata/quartz/pkg/credentials"
	"github.com/quartzdata/quartz/pkg/dataset"
	"github.com/quartzdata/quartz/pkg/errors"
)

func testCreds() *credentials.BigQuery {
	return &credentials.BigQuery{
		ServiceAccountKey: []byte(`{"type": "service_account", "project_id": "acme-analytics"}`),
		Dataset:           "sales",
	}
}

func TestNewRequiresConfiguredCredentials(t *testing.T) {
	_, err := New(&credentials.BigQuery{}, config.DefaultSettings(), dataset.NewMemoryRegistry())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestNewRejectsKeyWithoutProject(t *testing.T) {
	creds := testCreds()
	creds.ServiceAccountKey = []byte(`{"type": "service_account"}`)

	_, err := New(creds, config.DefaultSettings(), dataset.NewMemoryRegistry())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestNewExtractsProjectFromKey(t *testing.T) {
	op, err := New(testCreds(), config.DefaultSettings(), dataset.NewMemoryRegistry())
	require.NoError(t, err)
	defer op.Close()

	assert.Equal(t, "bigquery", op.Name())
	assert.Equal(t, "acme-analytics", op.projectID)
}

func TestSystemPromptNamesProjectAndDataset(t *testing.T) {
	op, err := New(testCreds(), config.DefaultSettings(), dataset.NewMemoryRegistry())
	require.NoError(t, err)
	defer op.Close()

	prompt := op.SystemPrompt()
	assert.Equal(t, "system", prompt.Role)
	assert.Contains(t, prompt.Content, "acme-analytics")
	assert.Contains(t, prompt.Content, "sales")
}
