package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, name := range []string{
		"SURVEY_DB_DRIVER", "SURVEY_DB_URL", "SURVEY_DEBUG", "SURVEY_WORKERS",
		"SURVEY_QUEUE_SIZE", "SURVEY_UPLOAD_RETRIES", "SURVEY_RETRY_DELAY",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, DefaultDBUrl, cfg.DBUrl)
	assert.False(t, cfg.Debug)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, DefaultQueueSize, cfg.QueueSize)
	assert.Equal(t, DefaultUploadRetries, cfg.UploadRetries)
	assert.Equal(t, DefaultRetryDelay, cfg.RetryDelay)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("SURVEY_DB_URL", "postgres://user@localhost/surveys")
	t.Setenv("SURVEY_DEBUG", "true")
	t.Setenv("SURVEY_WORKERS", "8")
	t.Setenv("SURVEY_RETRY_DELAY", "2s")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 2*time.Second, cfg.RetryDelay)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv does not override variables that are already set.
	os.Unsetenv("SURVEY_DB_URL")
	os.Unsetenv("SURVEY_QUEUE_SIZE")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SURVEY_DB_URL=/tmp/file.sqlite\nSURVEY_QUEUE_SIZE=3\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("SURVEY_DB_URL")
		os.Unsetenv("SURVEY_QUEUE_SIZE")
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/file.sqlite", cfg.DBUrl)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, 3, cfg.QueueSize)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	for name, value := range map[string]string{
		"SURVEY_WORKERS":     "many",
		"SURVEY_DEBUG":       "sometimes",
		"SURVEY_RETRY_DELAY": "soon",
	} {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(name, value)
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.ErrorContains(t, err, name)
		})
	}
}

func TestFlagsOverride(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-db-driver", "postgres", "-db-url", "host=db user=s", "-workers", "2", "-debug"}))

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "host=db user=s", cfg.DBUrl)
	assert.Equal(t, 2, cfg.Workers)
	assert.True(t, cfg.Debug)
}

func TestValidate(t *testing.T) {
	valid := Config{DBDriver: "sqlite3", DBUrl: "x.sqlite", Workers: 1, QueueSize: 0, UploadRetries: 1}
	assert.NoError(t, valid.Validate())

	bad := Config{DBDriver: "mysql", Workers: 0, QueueSize: -1, UploadRetries: 0, RetryDelay: -time.Second}
	err := bad.Validate()
	require.Error(t, err)
	for _, msg := range []string{"mysql", "missing database URL", "workers", "queue size", "upload retries", "retry delay"} {
		assert.ErrorContains(t, err, msg)
	}
}

func TestDetectDriver(t *testing.T) {
	assert.Equal(t, "postgres", DetectDriver("postgresql://localhost/db"))
	assert.Equal(t, "postgres", DetectDriver("host=localhost dbname=s"))
	assert.Equal(t, "sqlite3", DetectDriver("surveys.sqlite"))
	assert.Equal(t, "sqlite3", DetectDriver(":memory:"))
}
