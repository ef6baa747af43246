package trackdb

import (
	"errors"
	"fmt"
	"time"

	"github.com/nsqlite/sqlitetrack/internal/log"
	"github.com/nsqlite/sqlitetrack/internal/sqlitec"
)

// ProgressObserver is notified after every copied increment of a backup
// or restore.
type ProgressObserver interface {
	Progress(remaining, total int)
}

// ProgressFunc adapts a function to ProgressObserver.
type ProgressFunc func(remaining, total int)

func (f ProgressFunc) Progress(remaining, total int) {
	f(remaining, total)
}

// BusyHandler decides whether a busy backup or restore step is retried.
// retry is the 1-based number of the retry about to happen.
type BusyHandler interface {
	OnBusy(retry int) bool
}

// BusyFunc adapts a function to BusyHandler.
type BusyFunc func(retry int) bool

func (f BusyFunc) OnBusy(retry int) bool {
	return f(retry)
}

// RetryPolicy bounds how a backup or restore copies pages and waits on a
// busy database.
type RetryPolicy struct {
	// PagesPerStep is the number of pages copied per step. A negative
	// value copies the whole database in one step, zero means the default.
	PagesPerStep int
	// MaxRetries is how many busy steps are retried over the whole copy
	// before giving up.
	MaxRetries int
	// Sleep is the fixed wait before each retry.
	Sleep time.Duration
	// OnBusy, when set, is asked before every retry and stops the copy by
	// returning false.
	OnBusy BusyHandler
}

// Default backup settings.
const (
	DefaultBackupPagesPerStep = 100
	DefaultBackupMaxRetries   = 3
	DefaultBackupSleep        = 100 * time.Millisecond
)

// DefaultRetryPolicy returns the policy used when none is given.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		PagesPerStep: DefaultBackupPagesPerStep,
		MaxRetries:   DefaultBackupMaxRetries,
		Sleep:        DefaultBackupSleep,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.PagesPerStep == 0 {
		p.PagesPerStep = DefaultBackupPagesPerStep
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.Sleep < 0 {
		p.Sleep = 0
	}
	return p
}

// MainSchema is the schema name of the database a Conn was opened on.
const MainSchema = "main"

// Backup copies the main database into the file at target, replacing its
// content. progress may be nil.
func (c *Conn) Backup(target string, progress ProgressObserver, policy RetryPolicy) error {
	return c.BackupDatabase(MainSchema, target, progress, policy)
}

// BackupDatabase copies the database attached as schema into the file at
// target. An empty schema is the main database.
func (c *Conn) BackupDatabase(
	schema, target string, progress ProgressObserver, policy RetryPolicy,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpenLocked(); err != nil {
		return err
	}
	if schema == "" {
		schema = MainSchema
	}

	dst, rc := c.engine.Open([]byte(target), sqlitec.DefaultOpenFlags, sqlitec.DSNOptions{})
	if rc != sqlitec.SQLITE_OK {
		msg := c.engine.ErrMsg(dst)
		if dst != sqlitec.NilHandle {
			c.engine.Close(dst)
		}
		return newOpenError(rc, msg, target)
	}
	defer c.engine.Close(dst)

	err := c.copyLocked(dst, MainSchema, c.db, schema, progress, policy)
	if err != nil {
		return fmt.Errorf("failed to back up %s to %s: %w", schema, target, err)
	}

	c.logger.DebugNs(log.NsTrackDB, "database backed up", log.KV{
		"id":     c.id,
		"schema": schema,
		"target": target,
	})
	return nil
}

// Restore replaces the main database with the content of the file at
// source. progress may be nil.
func (c *Conn) Restore(source string, progress ProgressObserver, policy RetryPolicy) error {
	return c.RestoreDatabase(MainSchema, source, progress, policy)
}

// RestoreDatabase replaces the database attached as schema with the
// content of the file at source. An empty schema is the main database.
func (c *Conn) RestoreDatabase(
	schema, source string, progress ProgressObserver, policy RetryPolicy,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpenLocked(); err != nil {
		return err
	}
	if schema == "" {
		schema = MainSchema
	}

	src, rc := c.engine.Open([]byte(source), sqlitec.OpenReadOnly, sqlitec.DSNOptions{})
	if rc != sqlitec.SQLITE_OK {
		msg := c.engine.ErrMsg(src)
		if src != sqlitec.NilHandle {
			c.engine.Close(src)
		}
		return newOpenError(rc, msg, source)
	}
	defer c.engine.Close(src)

	err := c.copyLocked(c.db, schema, src, MainSchema, progress, policy)
	if err != nil {
		return fmt.Errorf("failed to restore %s from %s: %w", schema, source, err)
	}

	c.logger.DebugNs(log.NsTrackDB, "database restored", log.KV{
		"id":     c.id,
		"schema": schema,
		"source": source,
	})
	return nil
}

// copyLocked copies the srcName database of src into the dstName
// database of dst, step by step.
func (c *Conn) copyLocked(
	dst sqlitec.Handle, dstName string,
	src sqlitec.Handle, srcName string,
	progress ProgressObserver, policy RetryPolicy,
) (err error) {
	policy = policy.withDefaults()
	e := c.engine

	backup, rc := e.BackupInit(dst, dstName, src, srcName)
	if rc != sqlitec.SQLITE_OK {
		return newError(rc, e.ErrMsg(dst), "")
	}
	defer func() {
		if rc := e.BackupFinish(backup); rc != sqlitec.SQLITE_OK && err == nil {
			err = newError(rc, e.ErrMsg(dst), "")
		}
	}()

	generation := c.interrupts.Load()
	retries := 0
	for {
		if c.interrupts.Load() != generation {
			return newInterruptError()
		}

		rc := e.BackupStep(backup, policy.PagesPerStep)
		switch sqlitec.PrimaryCode(rc) {
		case sqlitec.SQLITE_OK, sqlitec.SQLITE_DONE:
			if progress != nil {
				progress.Progress(e.BackupRemaining(backup), e.BackupPageCount(backup))
			}
			if rc == sqlitec.SQLITE_DONE {
				return nil
			}

		case sqlitec.SQLITE_BUSY, sqlitec.SQLITE_LOCKED:
			last := newError(rc, e.ErrMsg(dst), "")
			if retries >= policy.MaxRetries {
				return &RetryError{Retries: retries, Last: last}
			}
			retries++
			if policy.OnBusy != nil && !policy.OnBusy.OnBusy(retries) {
				return fmt.Errorf("stopped by busy handler at retry %d: %w", retries, last)
			}
			c.logger.DebugNs(log.NsTrackDB, "backup step busy, retrying", log.KV{
				"id":    c.id,
				"retry": retries,
			})
			time.Sleep(policy.Sleep)

		default:
			return newError(rc, e.ErrMsg(dst), "")
		}
	}
}

// IsRetriesExhausted reports whether err is a backup or restore that gave
// up on a busy database, and how many retries it made.
func IsRetriesExhausted(err error) (int, bool) {
	var retryErr *RetryError
	if errors.As(err, &retryErr) {
		return retryErr.Retries, true
	}
	return 0, false
}
