package trackdb

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/nsqlite/sqlitetrack/internal/log"
	"github.com/nsqlite/sqlitetrack/internal/sqlitec"
	"github.com/nsqlite/sqlitetrack/internal/util/syncutil"
)

// Config represents the configuration for a Conn.
type Config struct {
	// Logger receives the failures that can not be returned, such as
	// finalize errors during Close.
	Logger log.Logger
	// Engine is the native engine. Defaults to sqlitec.DefaultEngine().
	Engine sqlitec.Engine
	// BusyTimeout is how long the engine waits on a locked database before
	// reporting busy. Zero keeps the engine default.
	BusyTimeout time.Duration
	// StatementCacheSize is the capacity of the PrepareCached cache. Zero
	// disables the cache.
	StatementCacheSize int
}

type connState int

const (
	stateNew connState = iota
	stateOpen
	stateClosed
)

// Conn is a SQLite connection that tracks its prepared statements.
//
// All methods are safe for concurrent use. They are executed one at a
// time, except Interrupt which never waits.
type Conn struct {
	config Config
	engine sqlitec.Engine
	logger log.Logger
	id     string

	mu    sync.Mutex
	state connState
	db    sqlitec.Handle
	stmts map[sqlitec.Handle]*Stmt
	cache *lru.Cache[string, *Stmt]

	// Read without the lock by Interrupt and the accessors.
	handle     *syncutil.Atomic[sqlitec.Handle]
	path       *syncutil.AtomicString
	openedAt   *syncutil.AtomicTime
	interrupts atomic.Uint64
}

// New creates a Conn that is not open yet.
func New(config Config) (*Conn, error) {
	if !config.Logger.IsInitialized() {
		return nil, errors.New("logger is required")
	}
	if config.StatementCacheSize < 0 {
		return nil, errors.New("statement cache size must be zero or positive")
	}
	if config.BusyTimeout < 0 {
		return nil, errors.New("busy timeout must be zero or positive")
	}
	if config.Engine == nil {
		config.Engine = sqlitec.DefaultEngine()
	}

	c := &Conn{
		config:   config,
		engine:   config.Engine,
		logger:   config.Logger,
		id:       uuid.NewString(),
		state:    stateNew,
		stmts:    make(map[sqlitec.Handle]*Stmt),
		handle:   syncutil.NewAtomic(sqlitec.NilHandle),
		path:     syncutil.NewAtomicString(""),
		openedAt: syncutil.NewAtomicTime(time.Time{}),
	}

	if config.StatementCacheSize > 0 {
		cache, err := lru.NewWithEvict(config.StatementCacheSize, c.onEvict)
		if err != nil {
			return nil, fmt.Errorf("failed to create statement cache: %w", err)
		}
		c.cache = cache
	}

	return c, nil
}

// Open creates a Conn and opens the database at path.
func Open(path string, flags sqlitec.OpenFlags, config Config) (*Conn, error) {
	c, err := New(config)
	if err != nil {
		return nil, err
	}
	if err := c.Open(path, flags); err != nil {
		return nil, err
	}
	return c, nil
}

// Open opens the database at path. A Conn is opened at most once.
func (c *Conn) Open(path string, flags sqlitec.OpenFlags) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateOpen:
		return newMisuseError(ErrAlreadyOpen)
	case stateClosed:
		return newMisuseError(ErrClosed)
	}
	if !utf8.ValidString(path) {
		return newError(sqlitec.SQLITE_MISUSE, "path is not valid UTF-8", "")
	}

	db, rc := c.engine.Open([]byte(path), flags, sqlitec.DSNOptions{
		BusyTimeout: c.config.BusyTimeout,
	})
	if rc != sqlitec.SQLITE_OK {
		msg := c.engine.ErrMsg(db)
		if db != sqlitec.NilHandle {
			c.engine.Close(db)
		}
		return newOpenError(rc, msg, path)
	}

	c.db = db
	c.state = stateOpen
	c.handle.Store(db)
	c.path.Store(path)
	c.openedAt.Store(time.Now())

	c.logger.DebugNs(log.NsTrackDB, "connection opened", log.KV{
		"id":    c.id,
		"path":  path,
		"flags": flags.String(),
	})
	return nil
}

// checkOpenLocked returns the misuse error of a Conn that can not run
// operations.
func (c *Conn) checkOpenLocked() error {
	switch c.state {
	case stateNew:
		return newMisuseError(ErrNotOpen)
	case stateClosed:
		return newMisuseError(ErrClosed)
	}
	return nil
}

// lastError converts a result code into an *Error carrying the current
// engine message.
func (c *Conn) lastError(rc int, sql string) *Error {
	return newError(rc, c.engine.ErrMsg(c.db), sql)
}

func checkSQL(sql string) error {
	if !utf8.ValidString(sql) {
		return newError(sqlitec.SQLITE_MISUSE, "SQL is not valid UTF-8", sql)
	}
	return nil
}

// Prepare compiles the first statement of sql. The statement is tracked
// until it is finalized or the Conn is closed.
func (c *Conn) Prepare(sql string) (*Stmt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prepareLocked(sql)
}

func (c *Conn) prepareLocked(sql string) (*Stmt, error) {
	if err := c.checkOpenLocked(); err != nil {
		return nil, err
	}
	if err := checkSQL(sql); err != nil {
		return nil, err
	}

	h, rc := c.engine.Prepare(c.db, []byte(sql))
	if rc != sqlitec.SQLITE_OK {
		return nil, c.lastError(rc, sql)
	}

	stmt := &Stmt{conn: c, handle: h, sql: sql}
	c.stmts[h] = stmt
	return stmt, nil
}

// PrepareCached works like Prepare but reuses statements from the LRU
// statement cache. A reused statement is reset and its bindings cleared.
//
// Cached statements belong to the cache: they are finalized when evicted,
// so callers should not keep them across other PrepareCached calls.
func (c *Conn) PrepareCached(sql string) (*Stmt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prepareCachedLocked(sql)
}

func (c *Conn) prepareCachedLocked(sql string) (*Stmt, error) {
	if c.cache == nil {
		return c.prepareLocked(sql)
	}
	if err := c.checkOpenLocked(); err != nil {
		return nil, err
	}

	if stmt, ok := c.cache.Get(sql); ok && !stmt.finalized {
		if err := stmt.resetLocked(); err != nil {
			return nil, err
		}
		if err := stmt.clearBindingsLocked(); err != nil {
			return nil, err
		}
		return stmt, nil
	}

	stmt, err := c.prepareLocked(sql)
	if err != nil {
		return nil, err
	}
	stmt.cached = true
	c.cache.Add(sql, stmt)
	return stmt, nil
}

// onEvict finalizes statements dropped by the cache. It runs in the
// goroutine that holds the lock.
func (c *Conn) onEvict(sql string, stmt *Stmt) {
	if err := c.finalizeLocked(stmt); err != nil {
		c.logger.WarnNs(log.NsTrackDB, "failed to finalize evicted statement", log.KV{
			"id":    c.id,
			"sql":   sql,
			"error": err.Error(),
		})
	}
}

// Exec compiles and runs every statement in sql.
func (c *Conn) Exec(sql string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpenLocked(); err != nil {
		return err
	}
	if err := checkSQL(sql); err != nil {
		return err
	}

	if rc := c.engine.Exec(c.db, []byte(sql)); rc != sqlitec.SQLITE_OK {
		return c.lastError(rc, sql)
	}
	return nil
}

// FinalizeStatement destroys stmt and stops tracking it. The statement is
// untracked even when the engine fails to finalize it, in which case that
// failure is returned. Finalizing a statement twice is a no-op.
func (c *Conn) FinalizeStatement(stmt *Stmt) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if stmt == nil || stmt.conn != c {
		return newError(sqlitec.SQLITE_MISUSE, "statement belongs to another connection", "")
	}
	return c.finalizeLocked(stmt)
}

func (c *Conn) finalizeLocked(stmt *Stmt) error {
	if stmt.finalized {
		return nil
	}
	stmt.finalized = true
	delete(c.stmts, stmt.handle)

	if stmt.cached && c.cache != nil {
		if cached, ok := c.cache.Peek(stmt.sql); ok && cached == stmt {
			c.cache.Remove(stmt.sql)
		}
	}

	if rc := c.engine.Finalize(stmt.handle); rc != sqlitec.SQLITE_OK {
		return c.lastError(rc, stmt.sql)
	}
	return nil
}

// Close finalizes every tracked statement and releases the database
// handle. Finalize failures are logged, not returned. Closing a closed
// Conn is a no-op.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateClosed:
		return nil
	case stateNew:
		c.state = stateClosed
		return nil
	}

	for _, stmt := range c.stmts {
		if err := c.finalizeLocked(stmt); err != nil {
			c.logger.ErrorNs(log.NsTrackDB, "failed to finalize statement", log.KV{
				"id":    c.id,
				"sql":   stmt.sql,
				"error": err.Error(),
			})
		}
	}
	if c.cache != nil {
		c.cache.Purge()
	}

	db := c.db
	c.state = stateClosed
	c.db = sqlitec.NilHandle
	c.handle.Store(sqlitec.NilHandle)

	if rc := c.engine.Close(db); rc != sqlitec.SQLITE_OK {
		return newError(rc, c.engine.ErrMsg(db), "")
	}

	c.logger.DebugNs(log.NsTrackDB, "connection closed", log.KV{
		"id":   c.id,
		"path": c.path.Load(),
	})
	return nil
}

// Interrupt asks the operation in flight to stop at its next checkpoint.
// It does not wait for the lock and is a no-op when nothing is running.
func (c *Conn) Interrupt() {
	c.interrupts.Add(1)
	if db := c.handle.Load(); db != sqlitec.NilHandle {
		c.engine.Interrupt(db)
	}
}

// BusyTimeout sets how long the engine waits on a locked database.
func (c *Conn) BusyTimeout(d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpenLocked(); err != nil {
		return err
	}
	if rc := c.engine.BusyTimeout(c.db, int(d.Milliseconds())); rc != sqlitec.SQLITE_OK {
		return c.lastError(rc, "")
	}
	return nil
}

// LoadExtension loads the SQLite extension at path. An empty entry uses
// the default entry point.
func (c *Conn) LoadExtension(path, entry string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpenLocked(); err != nil {
		return err
	}
	if rc := c.engine.LoadExtension(c.db, path, entry); rc != sqlitec.SQLITE_OK {
		return c.lastError(rc, "")
	}

	c.logger.DebugNs(log.NsTrackDB, "extension loaded", log.KV{
		"id":   c.id,
		"path": path,
	})
	return nil
}

// counter reads one of the connection counters.
func (c *Conn) counter(read func(sqlitec.Handle) int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpenLocked(); err != nil {
		return 0, err
	}
	return read(c.db), nil
}

// Changes returns the rows modified by the most recent statement.
func (c *Conn) Changes() (int64, error) {
	return c.counter(c.engine.Changes)
}

// TotalChanges returns the rows modified since the Conn was opened.
func (c *Conn) TotalChanges() (int64, error) {
	return c.counter(c.engine.TotalChanges)
}

// LastInsertRowID returns the rowid of the most recent insert.
func (c *Conn) LastInsertRowID() (int64, error) {
	return c.counter(c.engine.LastInsertRowID)
}

// Limit sets a run-time limit and returns its prior value. A negative
// value only reads the limit.
//
// https://www.sqlite.org/c3ref/c_limit_attached.html
func (c *Conn) Limit(id int, value int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpenLocked(); err != nil {
		return 0, err
	}
	return c.engine.Limit(c.db, id, value), nil
}

// LibVersion returns the version of the SQLite library.
func (c *Conn) LibVersion() string {
	return c.engine.LibVersion()
}

// StatementCount returns the number of tracked statements.
func (c *Conn) StatementCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stmts)
}

// CachedStatementCount returns the number of statements in the cache.
func (c *Conn) CachedStatementCount() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}

// IsOpen reports whether the Conn is open.
func (c *Conn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateOpen
}

// ID returns the unique identifier of the Conn, used in its logs.
func (c *Conn) ID() string {
	return c.id
}

// Path returns the path the Conn was opened with.
func (c *Conn) Path() string {
	return c.path.Load()
}

// OpenedAt returns when the Conn was opened, or the zero time.
func (c *Conn) OpenedAt() time.Time {
	return c.openedAt.Load()
}
