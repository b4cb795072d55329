package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "data/neko.db", cfg.DBPath)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, "giveaways", cfg.ArchiveDir)
	assert.Equal(t, "text", cfg.ArchiveFormat)
	assert.Equal(t, "localhost:8080", cfg.HTTPAddr)
	assert.Empty(t, cfg.APIKeys)
	assert.Equal(t, 5*time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, time.Minute, cfg.RefreshInterval)
	assert.Equal(t, "status.yaml", cfg.StatusFile)
	assert.Equal(t, time.Minute, cfg.StatusInterval)
	assert.False(t, cfg.StrictDurations)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Production())
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"NEKO_ENV":                "production",
		"NEKO_DATABASE_URL":       "postgres://neko@localhost/neko",
		"NEKO_ARCHIVE_FORMAT":     "json",
		"NEKO_API_KEYS":           "alpha,beta",
		"NEKO_RECONCILE_INTERVAL": "30s",
		"NEKO_REFRESH_INTERVAL":   "0s",
		"NEKO_STRICT_DURATIONS":   "true",
		"NEKO_LOG_LEVEL":          "debug",
	})
	require.NoError(t, err)

	assert.True(t, cfg.Production())
	assert.Equal(t, "postgres://neko@localhost/neko", cfg.DatabaseURL)
	assert.Equal(t, "json", cfg.ArchiveFormat)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.APIKeys)
	assert.Equal(t, 30*time.Second, cfg.ReconcileInterval)
	assert.Zero(t, cfg.RefreshInterval, "zero disables refreshing")
	assert.True(t, cfg.StrictDurations)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		want string
	}{
		{"archive format", map[string]string{"NEKO_ARCHIVE_FORMAT": "xml"}, "NEKO_ARCHIVE_FORMAT"},
		{"log level", map[string]string{"NEKO_LOG_LEVEL": "loud"}, "NEKO_LOG_LEVEL"},
		{"reconcile interval", map[string]string{"NEKO_RECONCILE_INTERVAL": "0s"}, "NEKO_RECONCILE_INTERVAL"},
		{"bad duration", map[string]string{"NEKO_STATUS_INTERVAL": "often"}, "parse env"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.vars)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestValidate_RequiresStore(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	cfg.DBPath = ""
	assert.ErrorContains(t, cfg.Validate(), "NEKO_DB_PATH")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("info", EnvProduction, &buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("engine starting", "events", 2)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line), "production logs are JSON")
	assert.Equal(t, "engine starting", line["msg"])
	assert.EqualValues(t, 2, line["events"])

	buf.Reset()
	logger, err = NewLogger("debug", "development", &buf)
	require.NoError(t, err)
	logger.Debug("visible")
	assert.Contains(t, buf.String(), "msg=visible")
}
