package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"APP_PORT", "LOG_LEVEL", "DEFAULT_TIMEZONE", "DATE_TIME_FORMAT",
	"DB_DRIVER", "DB_DSN", "DB_MAX_OPEN_CONNS", "DB_CONN_MAX_LIFETIME",
	"SOURCE_WORKERS", "SOURCE_MAX_RETRIES", "DEFINITIONS_DIR", "QUERIES_FILE",
	"ELASTICSEARCH_URL", "GCP_PROJECT_ID",
}

// isolateEnv unsets keys for the duration of the test and restores them afterwards.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadEnvConfig(t *testing.T) {
	isolateEnv(t)
	path := writeEnv(t, `
APP_PORT=9090
DEFAULT_TIMEZONE=America/New_York
DATE_TIME_FORMAT=2006-01-02
DB_DRIVER=sqlite3
DB_DSN=file::memory:
DB_MAX_OPEN_CONNS=3
DB_CONN_MAX_LIFETIME=30s
SOURCE_WORKERS=8
DEFINITIONS_DIR=/var/lib/chartdata
QUERIES_FILE=queries.yaml
ELASTICSEARCH_URL=http://localhost:9200
`)
	t.Setenv("APP_PORT", "7070")

	require.NoError(t, LoadEnvConfig(path))

	cfg := DefaultEnvConfig
	assert.Equal(t, "7070", cfg.APP_PORT)
	assert.Equal(t, "2006-01-02", cfg.DATE_TIME_FORMAT)
	assert.Equal(t, "sqlite3", cfg.DB_DRIVER)
	assert.Equal(t, 3, cfg.DB_MAX_OPEN_CONNS)
	assert.Equal(t, 5, cfg.DB_MAX_IDLE_CONNS)
	assert.Equal(t, 30*time.Second, cfg.DB_CONN_MAX_LIFETIME)
	assert.Equal(t, 8, cfg.SOURCE_WORKERS)
	assert.Equal(t, 2, cfg.SOURCE_MAX_RETRIES)
	assert.Equal(t, "/var/lib/chartdata", cfg.DEFINITIONS_DIR)
	assert.Equal(t, "queries.yaml", cfg.QUERIES_FILE)
	assert.Equal(t, "http://localhost:9200", cfg.ELASTICSEARCH_URL)
	assert.Empty(t, cfg.GCP_PROJECT_ID)
	assert.Equal(t, "America/New_York", cfg.Location().String())
}

func TestLoadEnvConfigMissingFile(t *testing.T) {
	isolateEnv(t)
	require.NoError(t, LoadEnvConfig(filepath.Join(t.TempDir(), ".env")))
	assert.Equal(t, "8080", DefaultEnvConfig.APP_PORT)
	assert.Equal(t, time.Local, DefaultEnvConfig.Location())
}

func TestLoadEnvConfigInvalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"DB_MAX_OPEN_CONNS", "many"},
		{"DB_CONN_MAX_LIFETIME", "forever"},
		{"DEFAULT_TIMEZONE", "Murica"},
		{"SOURCE_WORKERS", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			isolateEnv(t)
			t.Setenv(tt.key, tt.value)
			assert.Error(t, LoadEnvConfig(filepath.Join(t.TempDir(), ".env")))
		})
	}
}
