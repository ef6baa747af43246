package trackdb

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/nsqlite/sqlitetrack/internal/sqlitec"
)

// Stmt is a prepared statement owned by a Conn. Every method takes the
// lock of its Conn.
//
// Parameter indexes are 1-based and column indexes are 0-based, as in the
// SQLite C API.
type Stmt struct {
	conn   *Conn
	handle sqlitec.Handle
	sql    string

	finalized bool
	cached    bool
}

// SQL returns the text the statement was compiled from.
func (s *Stmt) SQL() string {
	return s.sql
}

// Cached reports whether the statement belongs to the statement cache.
func (s *Stmt) Cached() bool {
	return s.cached
}

// checkLocked returns the misuse error of a statement that can not be
// used anymore.
func (s *Stmt) checkLocked() error {
	if s.conn.state == stateClosed {
		return newMisuseError(ErrClosed)
	}
	if s.finalized {
		return newMisuseError(ErrFinalized)
	}
	return nil
}

// call runs fn under the lock of the owner and converts its result code.
func (s *Stmt) call(fn func(e sqlitec.Engine) int) error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()

	if err := s.checkLocked(); err != nil {
		return err
	}
	if rc := fn(s.conn.engine); rc != sqlitec.SQLITE_OK {
		return s.conn.lastError(rc, s.sql)
	}
	return nil
}

// read runs fn under the lock of the owner, for methods that can not fail
// at the engine.
func read[T any](s *Stmt, fn func(e sqlitec.Engine) T) (T, error) {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()

	if err := s.checkLocked(); err != nil {
		var zero T
		return zero, err
	}
	return fn(s.conn.engine), nil
}

func (s *Stmt) BindNull(index int) error {
	return s.call(func(e sqlitec.Engine) int {
		return e.BindNull(s.handle, index)
	})
}

func (s *Stmt) BindInt64(index int, value int64) error {
	return s.call(func(e sqlitec.Engine) int {
		return e.BindInt64(s.handle, index, value)
	})
}

func (s *Stmt) BindFloat64(index int, value float64) error {
	return s.call(func(e sqlitec.Engine) int {
		return e.BindDouble(s.handle, index, value)
	})
}

// BindText binds a UTF-8 string. Invalid UTF-8 is rejected.
func (s *Stmt) BindText(index int, value string) error {
	if !utf8.ValidString(value) {
		return newError(sqlitec.SQLITE_MISUSE, "text is not valid UTF-8", s.sql)
	}
	return s.call(func(e sqlitec.Engine) int {
		return e.BindText(s.handle, index, []byte(value))
	})
}

func (s *Stmt) BindBlob(index int, value []byte) error {
	return s.call(func(e sqlitec.Engine) int {
		return e.BindBlob(s.handle, index, value)
	})
}

// BindBool binds true as 1 and false as 0.
func (s *Stmt) BindBool(index int, value bool) error {
	var i int64
	if value {
		i = 1
	}
	return s.BindInt64(index, i)
}

// Bind binds a Go value, choosing the bind call from its type. Supported
// types are nil, bool, the integer and float types, string, []byte and
// time.Time, which is stored as text.
func (s *Stmt) Bind(index int, value any) error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	return s.bindLocked(index, value)
}

func (s *Stmt) bindLocked(index int, value any) error {
	if err := s.checkLocked(); err != nil {
		return err
	}

	e := s.conn.engine
	var rc int
	switch v := value.(type) {
	case nil:
		rc = e.BindNull(s.handle, index)
	case bool:
		var i int64
		if v {
			i = 1
		}
		rc = e.BindInt64(s.handle, index, i)
	case int:
		rc = e.BindInt64(s.handle, index, int64(v))
	case int8:
		rc = e.BindInt64(s.handle, index, int64(v))
	case int16:
		rc = e.BindInt64(s.handle, index, int64(v))
	case int32:
		rc = e.BindInt64(s.handle, index, int64(v))
	case int64:
		rc = e.BindInt64(s.handle, index, v)
	case uint8:
		rc = e.BindInt64(s.handle, index, int64(v))
	case uint16:
		rc = e.BindInt64(s.handle, index, int64(v))
	case uint32:
		rc = e.BindInt64(s.handle, index, int64(v))
	case float32:
		rc = e.BindDouble(s.handle, index, float64(v))
	case float64:
		rc = e.BindDouble(s.handle, index, v)
	case string:
		if !utf8.ValidString(v) {
			return newError(sqlitec.SQLITE_MISUSE, "text is not valid UTF-8", s.sql)
		}
		rc = e.BindText(s.handle, index, []byte(v))
	case []byte:
		rc = e.BindBlob(s.handle, index, v)
	case time.Time:
		rc = e.BindText(s.handle, index, []byte(v.UTC().Format(TimeFormat)))
	default:
		return newError(
			sqlitec.SQLITE_MISUSE,
			fmt.Sprintf("unsupported parameter type %T at index %d", value, index),
			s.sql,
		)
	}

	if rc != sqlitec.SQLITE_OK {
		return s.conn.lastError(rc, s.sql)
	}
	return nil
}

// TimeFormat is the layout time.Time parameters are bound with.
const TimeFormat = "2006-01-02 15:04:05.999999999-07:00"

// BindAll binds params to the parameters 1..len(params).
func (s *Stmt) BindAll(params ...any) error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	return s.bindAllLocked(params)
}

func (s *Stmt) bindAllLocked(params []any) error {
	for i, p := range params {
		if err := s.bindLocked(i+1, p); err != nil {
			return err
		}
	}
	return nil
}

// Step evaluates the statement. It returns true when a row is available
// and false when the statement has finished.
func (s *Stmt) Step() (bool, error) {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	return s.stepLocked()
}

func (s *Stmt) stepLocked() (bool, error) {
	if err := s.checkLocked(); err != nil {
		return false, err
	}

	switch rc := s.conn.engine.Step(s.handle); rc {
	case sqlitec.SQLITE_ROW:
		return true, nil
	case sqlitec.SQLITE_DONE:
		return false, nil
	default:
		return false, s.conn.lastError(rc, s.sql)
	}
}

// Reset rewinds the statement so it can be stepped again. Bindings are
// kept.
func (s *Stmt) Reset() error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	return s.resetLocked()
}

func (s *Stmt) resetLocked() error {
	if err := s.checkLocked(); err != nil {
		return err
	}
	if rc := s.conn.engine.Reset(s.handle); rc != sqlitec.SQLITE_OK {
		return s.conn.lastError(rc, s.sql)
	}
	return nil
}

// ClearBindings sets every parameter back to NULL.
func (s *Stmt) ClearBindings() error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	return s.clearBindingsLocked()
}

func (s *Stmt) clearBindingsLocked() error {
	if err := s.checkLocked(); err != nil {
		return err
	}
	if rc := s.conn.engine.ClearBindings(s.handle); rc != sqlitec.SQLITE_OK {
		return s.conn.lastError(rc, s.sql)
	}
	return nil
}

func (s *Stmt) ParamCount() (int, error) {
	return read(s, func(e sqlitec.Engine) int {
		return e.BindParameterCount(s.handle)
	})
}

func (s *Stmt) ColumnCount() (int, error) {
	return read(s, func(e sqlitec.Engine) int {
		return e.ColumnCount(s.handle)
	})
}

func (s *Stmt) ColumnName(col int) (string, error) {
	return read(s, func(e sqlitec.Engine) string {
		return e.ColumnName(s.handle, col)
	})
}

func (s *Stmt) ColumnDeclType(col int) (string, error) {
	return read(s, func(e sqlitec.Engine) string {
		return e.ColumnDeclType(s.handle, col)
	})
}

// ColumnType returns the datatype code of a column of the current row,
// one of sqlitec.SQLITE_INTEGER to sqlitec.SQLITE_NULL.
func (s *Stmt) ColumnType(col int) (int, error) {
	return read(s, func(e sqlitec.Engine) int {
		return e.ColumnType(s.handle, col)
	})
}

func (s *Stmt) ColumnInt64(col int) (int64, error) {
	return read(s, func(e sqlitec.Engine) int64 {
		return e.ColumnInt64(s.handle, col)
	})
}

func (s *Stmt) ColumnFloat64(col int) (float64, error) {
	return read(s, func(e sqlitec.Engine) float64 {
		return e.ColumnDouble(s.handle, col)
	})
}

// ColumnText decodes a column of the current row as UTF-8 text.
func (s *Stmt) ColumnText(col int) (string, error) {
	return read(s, func(e sqlitec.Engine) string {
		return string(e.ColumnText(s.handle, col))
	})
}

func (s *Stmt) ColumnBlob(col int) ([]byte, error) {
	return read(s, func(e sqlitec.Engine) []byte {
		return e.ColumnBlob(s.handle, col)
	})
}

// ColumnValue returns a column of the current row as nil, int64, float64,
// string or []byte, depending on its datatype.
func (s *Stmt) ColumnValue(col int) (any, error) {
	return read(s, func(e sqlitec.Engine) any {
		return s.columnValue(e, col)
	})
}

func (s *Stmt) columnValue(e sqlitec.Engine, col int) any {
	switch e.ColumnType(s.handle, col) {
	case sqlitec.SQLITE_INTEGER:
		return e.ColumnInt64(s.handle, col)
	case sqlitec.SQLITE_FLOAT:
		return e.ColumnDouble(s.handle, col)
	case sqlitec.SQLITE_TEXT:
		return string(e.ColumnText(s.handle, col))
	case sqlitec.SQLITE_BLOB:
		return e.ColumnBlob(s.handle, col)
	default:
		return nil
	}
}

// ReadOnly reports whether the statement makes no direct changes to the
// database.
func (s *Stmt) ReadOnly() (bool, error) {
	return read(s, func(e sqlitec.Engine) bool {
		return e.ReadOnly(s.handle)
	})
}

// Finalize destroys the statement. See Conn.FinalizeStatement.
func (s *Stmt) Finalize() error {
	return s.conn.FinalizeStatement(s)
}
