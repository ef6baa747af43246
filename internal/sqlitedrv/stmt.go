package sqlitedrv

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"strings"

	"github.com/nsqlite/sqlitetrack/internal/trackdb"
)

var (
	_ driver.Stmt             = (*Stmt)(nil)
	_ driver.StmtExecContext  = (*Stmt)(nil)
	_ driver.StmtQueryContext = (*Stmt)(nil)
	_ driver.Rows             = (*Rows)(nil)

	_ driver.RowsColumnTypeDatabaseTypeName = (*Rows)(nil)
)

// errNamedParams is returned for arguments bound by name.
var errNamedParams = errors.New("named parameters are not supported")

// Stmt implements the database/sql/driver.Stmt interface
type Stmt struct {
	conn *Conn
	stmt *trackdb.Stmt
	// cached statements belong to the statement cache and are never
	// finalized here.
	cached bool
}

// Close finalizes the statement.
func (s *Stmt) Close() error {
	if s.cached {
		return nil
	}
	return s.stmt.Finalize()
}

// NumInput returns the number of placeholder parameters.
func (s *Stmt) NumInput() int {
	n, err := s.stmt.ParamCount()
	if err != nil {
		return -1
	}
	return n
}

// bind resets the statement and binds args to it.
func (s *Stmt) bind(args []driver.NamedValue) error {
	if err := s.stmt.Reset(); err != nil {
		return err
	}
	if err := s.stmt.ClearBindings(); err != nil {
		return err
	}
	for _, arg := range args {
		if arg.Name != "" {
			return errNamedParams
		}
		if err := s.stmt.Bind(arg.Ordinal, arg.Value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), toNamedValues(args))
}

func (s *Stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.bind(args); err != nil {
		return nil, err
	}

	stop := s.conn.watch(ctx)
	defer stop()

	for {
		hasRow, err := s.stmt.Step()
		if err != nil {
			_ = s.stmt.Reset()
			return nil, ctxErr(ctx, err)
		}
		if !hasRow {
			break
		}
	}

	res, err := s.conn.result()
	if err != nil {
		return nil, err
	}
	if err := s.stmt.Reset(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), toNamedValues(args))
}

func (s *Stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return s.query(ctx, args, false)
}

func (s *Stmt) query(
	ctx context.Context, args []driver.NamedValue, ownsStmt bool,
) (driver.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.bind(args); err != nil {
		return nil, err
	}

	count, err := s.stmt.ColumnCount()
	if err != nil {
		return nil, err
	}
	columns := make([]string, count)
	declTypes := make([]string, count)
	for i := range count {
		if columns[i], err = s.stmt.ColumnName(i); err != nil {
			return nil, err
		}
		if declTypes[i], err = s.stmt.ColumnDeclType(i); err != nil {
			return nil, err
		}
	}

	return &Rows{
		ctx:       ctx,
		stmt:      s,
		ownsStmt:  ownsStmt,
		columns:   columns,
		declTypes: declTypes,
	}, nil
}

func toNamedValues(args []driver.Value) []driver.NamedValue {
	named := make([]driver.NamedValue, len(args))
	for i, v := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return named
}

// Rows implements the database/sql/driver.Rows interface
type Rows struct {
	ctx       context.Context
	stmt      *Stmt
	ownsStmt  bool
	columns   []string
	declTypes []string
	closed    bool
}

func (r *Rows) Columns() []string {
	return r.columns
}

// ColumnTypeDatabaseTypeName returns the declared type of a column in
// upper case, or "" for expressions.
func (r *Rows) ColumnTypeDatabaseTypeName(index int) string {
	return strings.ToUpper(r.declTypes[index])
}

func (r *Rows) Next(dest []driver.Value) error {
	if r.closed {
		return io.EOF
	}

	stop := r.stmt.conn.watch(r.ctx)
	hasRow, err := r.stmt.stmt.Step()
	stop()
	if err != nil {
		return ctxErr(r.ctx, err)
	}
	if !hasRow {
		return io.EOF
	}

	for i := range dest {
		v, err := r.stmt.stmt.ColumnValue(i)
		if err != nil {
			return err
		}
		dest[i] = v
	}
	return nil
}

// Close resets the statement, finalizing it when it was prepared for
// these rows only.
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	if r.ownsStmt {
		return r.stmt.stmt.Finalize()
	}
	return r.stmt.stmt.Reset()
}
