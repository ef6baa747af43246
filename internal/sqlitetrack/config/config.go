package config

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/joho/godotenv"
	"github.com/nsqlite/sqlitetrack/internal/sqlitec"
	"github.com/nsqlite/sqlitetrack/internal/trackdb"
	"github.com/nsqlite/sqlitetrack/internal/version"
)

// Config represents the configuration for the sqlitetrack shell.
type Config struct {
	Database           string        `arg:"positional" help:"Path of the SQLite database file to open" default:":memory:"`
	ReadOnly           bool          `arg:"--read-only,env:SQLITETRACK_READ_ONLY" help:"Open the database in read-only mode" default:"false"`
	BusyTimeout        time.Duration `arg:"--busy-timeout,env:SQLITETRACK_BUSY_TIMEOUT" help:"How long to wait on a locked database before failing. Valid time units are ns, us (or µs), ms, s, m, h" default:"5s"`
	StatementCacheSize int           `arg:"--statement-cache-size,env:SQLITETRACK_STATEMENT_CACHE_SIZE" help:"Number of prepared statements kept for reuse, 0 disables the cache" default:"64"`
	BackupPagesPerStep int           `arg:"--backup-pages-per-step,env:SQLITETRACK_BACKUP_PAGES_PER_STEP" help:"Pages copied per step by .backup and .restore" default:"100"`
	BackupMaxRetries   int           `arg:"--backup-max-retries,env:SQLITETRACK_BACKUP_MAX_RETRIES" help:"Busy steps tolerated by .backup and .restore before giving up" default:"3"`
	BackupSleep        time.Duration `arg:"--backup-sleep,env:SQLITETRACK_BACKUP_SLEEP" help:"Pause after a busy step of .backup and .restore" default:"100ms"`
	LogLevel           string        `arg:"--log-level,env:SQLITETRACK_LOG_LEVEL" help:"Minimum level of the logs written to stderr (debug, info, warn, error)" default:"warn"`
}

func (Config) Version() string {
	return fmt.Sprintf("%s\n", version.ShellVersion(sqlitec.DefaultEngine().LibVersion()))
}

// MustParse parses and validates the configuration from the command
// line arguments. It returns a Config struct or exits the program
// with an error.
func MustParse(args []string) Config {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	cfg := Config{}

	parser, err := arg.NewParser(
		arg.Config{},
		&cfg,
	)
	if err != nil {
		log.Fatal(err)
	}
	parser.MustParse(args[1:])

	if err := cfg.validate(); err != nil {
		log.Fatal(err)
	}

	return cfg
}

// parse is the non exiting version of MustParse without the .env file.
func parse(args []string) (Config, error) {
	cfg := Config{}

	parser, err := arg.NewParser(arg.Config{}, &cfg)
	if err != nil {
		return cfg, err
	}
	if err := parser.Parse(args); err != nil {
		return cfg, err
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if err := validateDatabase(c.Database); err != nil {
		return err
	}
	if err := validateNonNegative("statement cache size", c.StatementCacheSize); err != nil {
		return err
	}
	if err := validateNonNegative("backup max retries", c.BackupMaxRetries); err != nil {
		return err
	}
	if c.BackupPagesPerStep == 0 {
		return errors.New("invalid backup pages per step, use a negative value to copy everything at once")
	}
	if c.BusyTimeout < 0 || c.BackupSleep < 0 {
		return errors.New("invalid duration, durations can not be negative")
	}
	return validateLogLevel(c.LogLevel)
}

// validateDatabase validates the database path.
func validateDatabase(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("invalid database, the path can not be empty")
	}
	return nil
}

// validateNonNegative validates that value is zero or greater.
func validateNonNegative(name string, value int) error {
	if value < 0 {
		return fmt.Errorf("invalid %s, must be zero or greater", name)
	}
	return nil
}

// validateLogLevel validates if level is a valid log level.
func validateLogLevel(level string) error {
	valid := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(valid, strings.ToLower(level)) {
		return fmt.Errorf(
			"invalid log level, valid values are %s", strings.Join(valid, ", "),
		)
	}
	return nil
}

// OpenFlags returns the flags the database is opened with.
func (c Config) OpenFlags() sqlitec.OpenFlags {
	if c.ReadOnly {
		return sqlitec.OpenReadOnly
	}
	return sqlitec.DefaultOpenFlags
}

// RetryPolicy returns the policy used by .backup and .restore.
func (c Config) RetryPolicy() trackdb.RetryPolicy {
	return trackdb.RetryPolicy{
		PagesPerStep: c.BackupPagesPerStep,
		MaxRetries:   c.BackupMaxRetries,
		Sleep:        c.BackupSleep,
	}
}

// SlogLevel returns the log level as a slog.Level.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelWarn
	}
	return level
}
