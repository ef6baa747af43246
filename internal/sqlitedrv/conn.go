package sqlitedrv

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/nsqlite/sqlitetrack/internal/log"
	"github.com/nsqlite/sqlitetrack/internal/trackdb"
)

var (
	_ driver.Conn               = (*Conn)(nil)
	_ driver.ConnPrepareContext = (*Conn)(nil)
	_ driver.ConnBeginTx        = (*Conn)(nil)
	_ driver.ExecerContext      = (*Conn)(nil)
	_ driver.QueryerContext     = (*Conn)(nil)
	_ driver.Pinger             = (*Conn)(nil)
	_ driver.Validator          = (*Conn)(nil)
	_ driver.SessionResetter    = (*Conn)(nil)
)

// Conn implements the database/sql/driver.Conn interface
type Conn struct {
	conn   *trackdb.Conn
	logger log.Logger
}

// RawConn returns the underlying tracked connection
func (c *Conn) RawConn() *trackdb.Conn {
	return c.conn
}

// watch interrupts the connection when ctx is done, until the returned
// function is called.
func (c *Conn) watch(ctx context.Context) func() bool {
	if ctx.Done() == nil {
		return func() bool { return true }
	}
	return context.AfterFunc(ctx, c.conn.Interrupt)
}

// ctxErr prefers the context error over the error of an operation it
// interrupted.
func ctxErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, trackdb.ErrClosed) {
		return fmt.Errorf("%w: %w", driver.ErrBadConn, err)
	}
	return err
}

// Close closes the connection to the SQLite database
func (c *Conn) Close() error {
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *Conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stmt, err := c.conn.Prepare(query)
	if err != nil {
		return nil, ctxErr(ctx, err)
	}
	return &Stmt{conn: c, stmt: stmt}, nil
}

func (c *Conn) ExecContext(
	ctx context.Context, query string, args []driver.NamedValue,
) (driver.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Without arguments the query may hold several statements.
	if len(args) == 0 {
		stop := c.watch(ctx)
		err := c.conn.Exec(query)
		stop()
		if err != nil {
			return nil, ctxErr(ctx, err)
		}
		return c.result()
	}

	stmt, err := c.conn.PrepareCached(query)
	if err != nil {
		return nil, ctxErr(ctx, err)
	}
	s := &Stmt{conn: c, stmt: stmt, cached: stmt.Cached()}
	defer func() { _ = s.Close() }()
	return s.ExecContext(ctx, args)
}

func (c *Conn) QueryContext(
	ctx context.Context, query string, args []driver.NamedValue,
) (driver.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stmt, err := c.conn.Prepare(query)
	if err != nil {
		return nil, ctxErr(ctx, err)
	}

	s := &Stmt{conn: c, stmt: stmt}
	rows, err := s.query(ctx, args, true)
	if err != nil {
		_ = stmt.Finalize()
		return nil, err
	}
	return rows, nil
}

// result reads the outcome of the last statement run on the connection.
func (c *Conn) result() (driver.Result, error) {
	rowsAffected, err := c.conn.Changes()
	if err != nil {
		return nil, err
	}
	lastInsertID, err := c.conn.LastInsertRowID()
	if err != nil {
		return nil, err
	}
	return &result{lastInsertID: lastInsertID, rowsAffected: rowsAffected}, nil
}

func (c *Conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *Conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	switch sql.IsolationLevel(opts.Isolation) {
	case sql.LevelDefault, sql.LevelSerializable:
	default:
		return nil, fmt.Errorf("unsupported isolation level: %s", sql.IsolationLevel(opts.Isolation))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	begin := "BEGIN"
	if !opts.ReadOnly {
		begin = "BEGIN IMMEDIATE"
	}
	if err := c.conn.Exec(begin); err != nil {
		return nil, ctxErr(ctx, fmt.Errorf("failed to begin transaction: %w", err))
	}
	return &tx{conn: c}, nil
}

// Ping checks that the connection is open
func (c *Conn) Ping(ctx context.Context) error {
	if !c.conn.IsOpen() {
		return driver.ErrBadConn
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return ctxErr(ctx, c.conn.Exec("SELECT 1"))
}

// ResetSession rejects connections that were closed under the pool.
func (c *Conn) ResetSession(_ context.Context) error {
	if !c.conn.IsOpen() {
		return driver.ErrBadConn
	}
	return nil
}

// IsValid reports whether the connection can be reused by the pool.
func (c *Conn) IsValid() bool {
	return c.conn.IsOpen()
}

type tx struct {
	conn *Conn
}

func (t *tx) Commit() error {
	if err := t.conn.conn.Exec("COMMIT"); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *tx) Rollback() error {
	if err := t.conn.conn.Exec("ROLLBACK"); err != nil {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

type result struct {
	lastInsertID int64
	rowsAffected int64
}

func (r *result) LastInsertId() (int64, error) {
	return r.lastInsertID, nil
}

func (r *result) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}
