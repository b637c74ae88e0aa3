package config

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv(t *testing.T) {
	t.Setenv("FOCUSDECK_API_KEY", "secret")
	t.Setenv("FOCUSDECK_HTTP_PORT", "4000")
	t.Setenv("FOCUSDECK_JOURNAL_TYPE", "s3")
	t.Setenv("FOCUSDECK_JOURNAL_S3_BUCKET", "focusdeck-events")

	env, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, "secret", env.APIKey)
	assert.Equal(t, "4000", env.HTTPPort)
	assert.Equal(t, "local", env.Env)
	assert.Equal(t, ".focusdeck/focusdeck.db", env.DBEnv.Path)
	assert.Equal(t, "s3", env.JournalEnv.Type)
	assert.Equal(t, "focusdeck-events", env.JournalEnv.S3Bucket)
}

func TestLoadEnvRequiresAPIKey(t *testing.T) {
	// Setenv registers the restore; the variable must be absent, not empty.
	t.Setenv("FOCUSDECK_API_KEY", "x")
	os.Unsetenv("FOCUSDECK_API_KEY")

	_, err := LoadEnv()
	assert.Error(t, err)
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, (&BaseEnv{LogLevel: "debug"}).SlogLevel())
	assert.Equal(t, slog.LevelInfo, (&BaseEnv{LogLevel: "info"}).SlogLevel())
	assert.Equal(t, slog.LevelWarn, (&BaseEnv{LogLevel: "warn"}).SlogLevel())
	assert.Equal(t, slog.LevelError, (&BaseEnv{LogLevel: "error"}).SlogLevel())
	// Unknown values fall back to debug.
	assert.Equal(t, slog.LevelDebug, (&BaseEnv{LogLevel: "loud"}).SlogLevel())
}
