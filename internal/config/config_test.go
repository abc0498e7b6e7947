package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
port: "8080"
database:
  driver: sqlite
  url: file.db
whisp:
  api_key: from-yaml
  timeout: 5m
rate_limit:
  rps: 2
  burst: 4
cors_origins:
  - https://portal.example.org
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("WHISP_API_KEY", "from-env")
	t.Setenv("STRICT_CSV_POLYGONS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file.db", cfg.Database.URL)
	assert.Equal(t, "eudr", cfg.Database.Schema)
	assert.Equal(t, "from-env", cfg.Whisp.APIKey)
	assert.Equal(t, 5*time.Minute, cfg.Whisp.RequestTimeout())
	assert.Equal(t, 2.0, cfg.RateLimit.RPS)
	assert.Equal(t, []string{"https://portal.example.org"}, cfg.CORSOrigins)
	assert.True(t, cfg.StrictCSVPolygons)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := defaults()
	assert.ErrorIs(t, cfg.Validate(), ErrMissingDatabaseURL)

	cfg.Database.URL = "postgres://localhost/eudr"
	assert.ErrorIs(t, cfg.Validate(), ErrMissingWhispKey)

	cfg.Whisp.APIKey = "k"
	assert.NoError(t, cfg.Validate())

	cfg.Database.Driver = "mysql"
	assert.ErrorIs(t, cfg.Validate(), ErrUnknownDriver)
}

func TestWhispRequestTimeoutDefault(t *testing.T) {
	assert.Equal(t, 20*time.Minute, Whisp{Timeout: "garbage"}.RequestTimeout())
}
