package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
host: loomspace.example.com
serverAddr: ":8088"
auth:
  accessTokenSecret: access-secret
  refreshTokenSecret: refresh-secret
  accessTokenExpiryHour: 2
  refreshTokenExpiryHour: 336
postgres:
  host: db.internal
  port: "5432"
  dbname: loomspace
  user: loom
  password: hunter2
  sslmode: disable
  TimeZone: UTC
storage:
  rootDir: /var/lib/loomspace/objects
enrichment:
  baseURL: http://enrich.internal:9000
  token: enrich-token
  timeoutSeconds: 15
cron:
  invitationSweep: "@hourly"
`

func TestReadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	var cfg Config
	require.NoError(t, readConfig(path, &cfg))

	assert.Equal(t, ":8088", cfg.ServerAddr)
	assert.Equal(t, "access-secret", cfg.Auth.AccessTokenSecret)
	assert.Equal(t, 2, cfg.Auth.AccessTokenExpiryHour)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, "loomspace", cfg.Postgres.DBName)
	assert.Equal(t, "/var/lib/loomspace/objects", cfg.Storage.RootDir)
	assert.Equal(t, "http://enrich.internal:9000", cfg.Enrichment.BaseURL)
	assert.Equal(t, 15, cfg.Enrichment.Timeout)
	assert.Equal(t, "@hourly", cfg.Cron.InvitationSweep)

	// Optional sections default to zero values.
	assert.Empty(t, cfg.Postgres.ReplicaHost)
	assert.Empty(t, cfg.SMTP.Host)
}

func TestReadConfigMissingFile(t *testing.T) {
	var cfg Config
	assert.Error(t, readConfig(filepath.Join(t.TempDir(), "nope.yaml"), &cfg))
}

func TestReadConfigRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth: [not a map"), 0o600))

	var cfg Config
	assert.Error(t, readConfig(path, &cfg))
}
