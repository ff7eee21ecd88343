package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "nats:\n  url: nats://localhost:4222\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, 50.0, cfg.Counting.MaxDistance)
	assert.Equal(t, 20, cfg.Counting.MaxAge)
	assert.Equal(t, 1, cfg.Counting.SnapshotInterval())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	entry, exit := cfg.Counting.Lines()
	assert.Equal(t, 240, entry)
	assert.Equal(t, 480, exit)
}

func TestLoadExplicitLines(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
counting:
  max_distance: 35.5
  max_age: 8
  frame_height: 1080
  entry_line_y: 0
  exit_line_y: 900
  snapshot_every: 0
`))
	require.NoError(t, err)

	entry, exit := cfg.Counting.Lines()
	assert.Equal(t, 0, entry, "an explicit zero line is kept")
	assert.Equal(t, 900, exit)
	assert.Equal(t, 35.5, cfg.Counting.MaxDistance)
	assert.Equal(t, 8, cfg.Counting.MaxAge)
	assert.Zero(t, cfg.Counting.SnapshotInterval())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FF_SERVER_PORT", "9090")
	t.Setenv("FF_MAX_DISTANCE", "75")
	t.Setenv("FF_ENTRY_LINE_Y", "120")
	t.Setenv("FF_DB_HOST", "db.internal")
	t.Setenv("FF_MAX_AGE", "not-a-number")

	cfg, err := Load(writeConfig(t, "server:\n  port: 1234\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 75.0, cfg.Counting.MaxDistance)
	assert.Equal(t, 20, cfg.Counting.MaxAge)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	entry, exit := cfg.Counting.Lines()
	assert.Equal(t, 120, entry)
	assert.Equal(t, 480, exit)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	_, err = Load(writeConfig(t, "server: [not, a, map"))
	assert.ErrorContains(t, err, "parse config")
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 5433, Name: "ff", User: "u", Password: "p"}
	assert.Equal(t, "postgres://u:p@h:5433/ff?sslmode=disable", d.DSN())
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "footfall", cfg.MinIO.Bucket)
	assert.Equal(t, 8082, cfg.Worker.MetricsPort)
}
