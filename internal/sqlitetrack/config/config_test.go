package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/nsqlite/sqlitetrack/internal/sqlitec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := parse([]string{})
		require.NoError(t, err)

		assert.Equal(t, ":memory:", cfg.Database)
		assert.False(t, cfg.ReadOnly)
		assert.Equal(t, 5*time.Second, cfg.BusyTimeout)
		assert.Equal(t, 64, cfg.StatementCacheSize)
		assert.Equal(t, 100, cfg.BackupPagesPerStep)
		assert.Equal(t, 3, cfg.BackupMaxRetries)
		assert.Equal(t, 100*time.Millisecond, cfg.BackupSleep)
		assert.Equal(t, "warn", cfg.LogLevel)
	})

	t.Run("Flags", func(t *testing.T) {
		cfg, err := parse([]string{
			"app.db", "--read-only", "--busy-timeout", "2s",
			"--statement-cache-size", "0", "--backup-pages-per-step=-1",
			"--log-level", "debug",
		})
		require.NoError(t, err)

		assert.Equal(t, "app.db", cfg.Database)
		assert.True(t, cfg.ReadOnly)
		assert.Equal(t, 2*time.Second, cfg.BusyTimeout)
		assert.Equal(t, 0, cfg.StatementCacheSize)
		assert.Equal(t, -1, cfg.BackupPagesPerStep)
		assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	})

	t.Run("Env", func(t *testing.T) {
		t.Setenv("SQLITETRACK_STATEMENT_CACHE_SIZE", "8")
		t.Setenv("SQLITETRACK_BACKUP_MAX_RETRIES", "10")

		cfg, err := parse([]string{})
		require.NoError(t, err)
		assert.Equal(t, 8, cfg.StatementCacheSize)
		assert.Equal(t, 10, cfg.BackupMaxRetries)
	})

	t.Run("Invalid", func(t *testing.T) {
		invalid := [][]string{
			{"--log-level", "verbose"},
			{"--statement-cache-size=-1"},
			{"--backup-max-retries=-2"},
			{"--backup-pages-per-step", "0"},
			{"--busy-timeout=-1s"},
			{" "},
		}
		for _, args := range invalid {
			_, err := parse(args)
			assert.Error(t, err, args)
		}
	})
}

func TestOpenFlags(t *testing.T) {
	assert.Equal(t, sqlitec.DefaultOpenFlags, Config{}.OpenFlags())
	assert.Equal(t, sqlitec.OpenReadOnly, Config{ReadOnly: true}.OpenFlags())
}

func TestRetryPolicy(t *testing.T) {
	cfg := Config{BackupPagesPerStep: 5, BackupMaxRetries: 2, BackupSleep: time.Second}
	policy := cfg.RetryPolicy()

	assert.Equal(t, 5, policy.PagesPerStep)
	assert.Equal(t, 2, policy.MaxRetries)
	assert.Equal(t, time.Second, policy.Sleep)
	assert.Nil(t, policy.OnBusy)
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelError, Config{LogLevel: "error"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, Config{LogLevel: "INFO"}.SlogLevel())
	assert.Equal(t, slog.LevelWarn, Config{LogLevel: "nope"}.SlogLevel())
}
