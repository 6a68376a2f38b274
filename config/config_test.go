package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
region: eu-west-1
table_name: ses-events
queue_name: mail-events
listen_addr: ":9090"
log_level: debug
skip_schema_validation: true
credentials:
  broker_role_arn: arn:aws:iam::999988887777:role/broker
  identity_endpoint: https://cognito-idp.eu-west-1.amazonaws.com
  ttl: 30m
cache:
  endpoint: https://api.cache.example.momentohq.com
  name: creds
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, "ses-events", cfg.TableName)
	assert.Equal(t, "mail-events", cfg.QueueName)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.SkipSchemaValidation)
	assert.Equal(t, "arn:aws:iam::999988887777:role/broker", cfg.Credentials.BrokerRoleARN)
	assert.Equal(t, Duration(30*time.Minute), cfg.Credentials.TTL)
	assert.Equal(t, "creds", cfg.Cache.Name)
}

func TestLoad_Defaults(t *testing.T) {
	minimal := `
table_name: ses-events
queue_name: mail-events
credentials:
  broker_role_arn: arn:aws:iam::999988887777:role/broker
  identity_endpoint: https://cognito-idp.us-east-1.amazonaws.com
`

	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)

	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, Duration(time.Hour), cfg.Credentials.TTL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MAILTRACK_TABLE_NAME", "override-table")
	t.Setenv("MAILTRACK_CREDENTIAL_TTL", "45m")
	t.Setenv("MOMENTO_API_KEY", "secret-key")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "override-table", cfg.TableName)
	assert.Equal(t, Duration(45*time.Minute), cfg.Credentials.TTL)
	assert.Equal(t, "secret-key", cfg.Cache.APIKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "table_name: [unclosed"))
	assert.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing table", `
queue_name: mail-events
credentials:
  broker_role_arn: arn:aws:iam::999988887777:role/broker
  identity_endpoint: https://cognito-idp.us-east-1.amazonaws.com
`},
		{"missing queue", `
table_name: ses-events
credentials:
  broker_role_arn: arn:aws:iam::999988887777:role/broker
  identity_endpoint: https://cognito-idp.us-east-1.amazonaws.com
`},
		{"missing broker role", `
table_name: ses-events
queue_name: mail-events
credentials:
  identity_endpoint: https://cognito-idp.us-east-1.amazonaws.com
`},
		{"cache endpoint without name", `
table_name: ses-events
queue_name: mail-events
credentials:
  broker_role_arn: arn:aws:iam::999988887777:role/broker
  identity_endpoint: https://cognito-idp.us-east-1.amazonaws.com
cache:
  endpoint: https://api.cache.example.momentohq.com
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			assert.Error(t, err)
		})
	}
}
