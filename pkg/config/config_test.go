package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/streakline/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Enrollment.PollAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Enrollment.PollInterval)
	assert.Equal(t, "09:00", cfg.Enrollment.DefaultTime)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "streakline.yaml", `
dataDir: /tmp/streakline
timezone: UTC
api:
  addr: 0.0.0.0:9090
log:
  level: debug
  json: true
  file: /tmp/streakline.log
  maxSizeMB: 10
enrollment:
  pollAttempts: 5
  pollInterval: 50ms
  visibilityDelay: 120ms
  defaultTime: "7:30 AM"
reconcile:
  interval: 1m
`)
	cfg, err := Load(path, writeFile(t, ".env", ""))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/streakline", cfg.DataDir)
	assert.Equal(t, "0.0.0.0:9090", cfg.API.Addr)
	assert.Equal(t, 20.0, cfg.API.RateLimit, "unset fields keep defaults")
	assert.Equal(t, 5, cfg.Enrollment.PollAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Enrollment.PollInterval)
	assert.Equal(t, 120*time.Millisecond, cfg.Enrollment.VisibilityDelay)
	assert.Equal(t, time.Minute, cfg.Reconcile.Interval)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	lc := cfg.LogConfig()
	assert.Equal(t, log.DebugLevel, lc.Level)
	assert.True(t, lc.JSONOutput)
	require.NotNil(t, lc.File)
	assert.Equal(t, 10, lc.File.MaxSizeMB)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeFile(t, "bad.yaml", "dataDir: x\nnope: true\n")
	_, err := Load(path, writeFile(t, ".env", ""))
	assert.Error(t, err)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeFile(t, "empty.yaml", ""), writeFile(t, ".env", ""))
	require.NoError(t, err)
	assert.Equal(t, Default().API.Addr, cfg.API.Addr)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STREAKLINE_DATA_DIR", "/data")
	t.Setenv("STREAKLINE_POLL_ATTEMPTS", "3")
	t.Setenv("STREAKLINE_VISIBILITY_DELAY", "1s")
	t.Setenv("STREAKLINE_LOG_JSON", "true")

	path := writeFile(t, "streakline.yaml", "dataDir: /from-file\n")
	cfg, err := Load(path, writeFile(t, ".env", ""))
	require.NoError(t, err)

	assert.Equal(t, "/data", cfg.DataDir)
	assert.Equal(t, 3, cfg.Enrollment.PollAttempts)
	assert.Equal(t, time.Second, cfg.Enrollment.VisibilityDelay)
	assert.True(t, cfg.Log.JSON)
}

func TestEnvFile(t *testing.T) {
	// t.Setenv registers cleanup so the variable set by godotenv is removed
	t.Setenv("STREAKLINE_API_ADDR", "")
	require.NoError(t, os.Unsetenv("STREAKLINE_API_ADDR"))

	env := writeFile(t, ".env", "STREAKLINE_API_ADDR=10.0.0.1:7000\n")
	cfg, err := Load("", env)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:7000", cfg.API.Addr)
}

func TestInvalidEnvValue(t *testing.T) {
	t.Setenv("STREAKLINE_POLL_INTERVAL", "soon")
	_, err := Load("", writeFile(t, ".env", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STREAKLINE_POLL_INTERVAL")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no data dir", func(c *Config) { c.DataDir = "" }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"zero attempts", func(c *Config) { c.Enrollment.PollAttempts = 0 }},
		{"zero interval", func(c *Config) { c.Enrollment.PollInterval = 0 }},
		{"negative delay", func(c *Config) { c.Enrollment.VisibilityDelay = -time.Second }},
		{"bad default time", func(c *Config) { c.Enrollment.DefaultTime = "noon" }},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
		{"zero reconcile interval", func(c *Config) { c.Reconcile.Interval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
