package sqlitec

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-sqlite3"
)

var defaultEngine = sync.OnceValue(func() *DriverEngine {
	return NewEngine()
})

// DefaultEngine returns the process wide engine backed by mattn/go-sqlite3.
func DefaultEngine() *DriverEngine {
	return defaultEngine()
}

// DriverEngine is the Engine implemented on top of the mattn/go-sqlite3
// driver. Native objects live in handle tables and are only reachable
// through their Handle.
type DriverEngine struct {
	seq     atomic.Uint64
	dbs     *handleTable[*dbEntry]
	stmts   *handleTable[*stmtEntry]
	backups *handleTable[*backupEntry]
}

// NewEngine creates an engine with empty handle tables.
func NewEngine() *DriverEngine {
	e := &DriverEngine{}
	e.dbs = newHandleTable[*dbEntry](&e.seq)
	e.stmts = newHandleTable[*stmtEntry](&e.seq)
	e.backups = newHandleTable[*backupEntry](&e.seq)
	return e
}

var _ Engine = (*DriverEngine)(nil)

type dbEntry struct {
	conn   *sqlite3.SQLiteConn
	errMsg string

	ctxMu   sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
}

func newDBEntry(conn *sqlite3.SQLiteConn) *dbEntry {
	d := &dbEntry{conn: conn}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d
}

// context returns the context the next operation on the database runs in.
func (d *dbEntry) context() context.Context {
	d.ctxMu.Lock()
	defer d.ctxMu.Unlock()
	return d.ctx
}

// interrupt cancels the operations in flight and arms a fresh context for
// the ones that follow.
func (d *dbEntry) interrupt() {
	d.ctxMu.Lock()
	defer d.ctxMu.Unlock()
	d.cancel()
	if !d.stopped {
		d.ctx, d.cancel = context.WithCancel(context.Background())
	}
}

// stop cancels the operations in flight for good.
func (d *dbEntry) stop() {
	d.ctxMu.Lock()
	defer d.ctxMu.Unlock()
	d.stopped = true
	d.cancel()
}

// fail records err as the last error of the database and returns its code.
func (d *dbEntry) fail(err error) int {
	code, msg := errorCode(err)
	d.errMsg = msg
	return code
}

// misuse records a misuse error with the given message.
func (d *dbEntry) misuse(msg string) int {
	d.errMsg = msg
	return SQLITE_MISUSE
}

type stmtEntry struct {
	db   *dbEntry
	stmt *sqlite3.SQLiteStmt

	params   []any
	names    []string
	decl     []string
	readOnly bool

	rows    *sqlite3.SQLiteRows
	stepped bool
	row     []driver.Value
}

// closeRows drops the row cursor, resetting the statement.
func (s *stmtEntry) closeRows() error {
	s.row = nil
	s.stepped = false
	if s.rows == nil {
		return nil
	}
	rows := s.rows
	s.rows = nil
	return rows.Close()
}

func (s *stmtEntry) namedValues() []driver.NamedValue {
	args := make([]driver.NamedValue, len(s.params))
	for i, p := range s.params {
		args[i] = driver.NamedValue{Ordinal: i + 1, Value: p}
	}
	return args
}

// value returns the value of a column of the current row.
func (s *stmtEntry) value(col int) (driver.Value, bool) {
	if s.row == nil || col < 0 || col >= len(s.row) {
		return nil, false
	}
	return s.row[col], true
}

type backupEntry struct {
	backup *sqlite3.SQLiteBackup
	dst    *dbEntry

	remaining int
	pageCount int
}

// errorCode maps a driver error to a result code and message.
func errorCode(err error) (int, string) {
	var sqliteErr sqlite3.Error
	switch {
	case err == nil:
		return SQLITE_OK, "not an error"
	case errors.As(err, &sqliteErr):
		code := int(sqliteErr.ExtendedCode)
		if code == 0 {
			code = int(sqliteErr.Code)
		}
		return code, sqliteErr.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return SQLITE_INTERRUPT, "interrupted"
	default:
		return SQLITE_ERROR, err.Error()
	}
}

func (e *DriverEngine) Open(filename []byte, flags OpenFlags, options DSNOptions) (Handle, int) {
	if err := flags.Validate(); err != nil {
		d := newDBEntry(nil)
		code := d.misuse(err.Error())
		return e.dbs.add(d), code
	}

	dsn := CreateDSN(string(filename), flags, options)
	dc, err := (&sqlite3.SQLiteDriver{}).Open(dsn)
	if err != nil {
		d := newDBEntry(nil)
		code := d.fail(err)
		if code == SQLITE_OK || code == SQLITE_ERROR {
			code = SQLITE_CANTOPEN
		}
		return e.dbs.add(d), code
	}

	conn, ok := dc.(*sqlite3.SQLiteConn)
	if !ok {
		_ = dc.Close()
		d := newDBEntry(nil)
		return e.dbs.add(d), d.misuse(fmt.Sprintf("unexpected driver connection %T", dc))
	}

	d := newDBEntry(conn)
	d.errMsg = "not an error"
	return e.dbs.add(d), SQLITE_OK
}

func (e *DriverEngine) Close(db Handle) int {
	d, ok := e.dbs.remove(db)
	if !ok {
		return SQLITE_MISUSE
	}
	d.stop()
	if d.conn == nil {
		return SQLITE_OK
	}
	if err := d.conn.Close(); err != nil {
		return d.fail(err)
	}
	return SQLITE_OK
}

func (e *DriverEngine) ErrMsg(db Handle) string {
	d, ok := e.dbs.get(db)
	if !ok {
		return "bad parameter or other API misuse"
	}
	return d.errMsg
}

// openDB returns the entry of an opened database.
func (e *DriverEngine) openDB(db Handle) (*dbEntry, bool) {
	d, ok := e.dbs.get(db)
	if !ok || d.conn == nil {
		return nil, false
	}
	return d, true
}

func (e *DriverEngine) Exec(db Handle, sql []byte) int {
	d, ok := e.openDB(db)
	if !ok {
		return SQLITE_MISUSE
	}
	if _, err := d.conn.ExecContext(d.context(), string(sql), nil); err != nil {
		return d.fail(err)
	}
	return SQLITE_OK
}

func (e *DriverEngine) Interrupt(db Handle) {
	if d, ok := e.dbs.get(db); ok {
		d.interrupt()
	}
}

func (e *DriverEngine) BusyTimeout(db Handle, ms int) int {
	d, ok := e.openDB(db)
	if !ok {
		return SQLITE_MISUSE
	}
	if ms < 0 {
		ms = 0
	}
	query := fmt.Sprintf("PRAGMA busy_timeout = %d", ms)
	if _, err := d.conn.ExecContext(context.Background(), query, nil); err != nil {
		return d.fail(err)
	}
	return SQLITE_OK
}

func (e *DriverEngine) CommitHook(db Handle, fn func() int) int {
	d, ok := e.openDB(db)
	if !ok {
		return SQLITE_MISUSE
	}
	d.conn.RegisterCommitHook(fn)
	return SQLITE_OK
}

func (e *DriverEngine) UpdateHook(db Handle, fn func(op int, schema, table string, rowID int64)) int {
	d, ok := e.openDB(db)
	if !ok {
		return SQLITE_MISUSE
	}
	d.conn.RegisterUpdateHook(fn)
	return SQLITE_OK
}

func (e *DriverEngine) LoadExtension(db Handle, path, entry string) int {
	d, ok := e.openDB(db)
	if !ok {
		return SQLITE_MISUSE
	}
	if entry == "" {
		entry = "sqlite3_extension_init"
	}
	if err := d.conn.LoadExtension(path, entry); err != nil {
		return d.fail(err)
	}
	return SQLITE_OK
}

// queryInt64 runs a single value query used to read connection counters.
func (e *DriverEngine) queryInt64(db Handle, query string) int64 {
	d, ok := e.openDB(db)
	if !ok {
		return 0
	}

	rows, err := d.conn.QueryContext(context.Background(), query, nil)
	if err != nil {
		d.fail(err)
		return 0
	}
	defer rows.Close()

	dest := make([]driver.Value, 1)
	if err := rows.Next(dest); err != nil {
		if !errors.Is(err, io.EOF) {
			d.fail(err)
		}
		return 0
	}
	return toInt64(dest[0])
}

func (e *DriverEngine) Changes(db Handle) int64 {
	return e.queryInt64(db, "SELECT changes()")
}

func (e *DriverEngine) TotalChanges(db Handle) int64 {
	return e.queryInt64(db, "SELECT total_changes()")
}

func (e *DriverEngine) LastInsertRowID(db Handle) int64 {
	return e.queryInt64(db, "SELECT last_insert_rowid()")
}

func (e *DriverEngine) Limit(db Handle, id int, value int) int {
	d, ok := e.openDB(db)
	if !ok {
		return -1
	}
	if value < 0 {
		return d.conn.GetLimit(id)
	}
	return d.conn.SetLimit(id, value)
}

func (e *DriverEngine) LibVersion() string {
	version, _, _ := sqlite3.Version()
	return version
}

func (e *DriverEngine) Prepare(db Handle, sql []byte) (Handle, int) {
	d, ok := e.openDB(db)
	if !ok {
		return NilHandle, SQLITE_MISUSE
	}
	if strings.TrimSpace(string(sql)) == "" {
		return NilHandle, d.misuse("not an SQL statement")
	}

	ds, err := d.conn.Prepare(string(sql))
	if err != nil {
		return NilHandle, d.fail(err)
	}
	stmt, ok := ds.(*sqlite3.SQLiteStmt)
	if !ok {
		_ = ds.Close()
		return NilHandle, d.misuse(fmt.Sprintf("unexpected driver statement %T", ds))
	}

	s := &stmtEntry{
		db:       d,
		stmt:     stmt,
		params:   make([]any, stmt.NumInput()),
		readOnly: stmt.Readonly(),
	}

	// Result columns are only exposed through a cursor, so open one without
	// stepping and reset it right away.
	cursor, err := stmt.QueryContext(context.Background(), s.namedValues())
	if err != nil {
		_ = stmt.Close()
		return NilHandle, d.fail(err)
	}
	rows, ok := cursor.(*sqlite3.SQLiteRows)
	if !ok {
		_ = cursor.Close()
		_ = stmt.Close()
		return NilHandle, d.misuse(fmt.Sprintf("unexpected driver rows %T", cursor))
	}
	s.names = rows.Columns()
	s.decl = rows.DeclTypes()
	if err := rows.Close(); err != nil {
		_ = stmt.Close()
		return NilHandle, d.fail(err)
	}

	return e.stmts.add(s), SQLITE_OK
}

func (e *DriverEngine) Finalize(stmt Handle) int {
	s, ok := e.stmts.remove(stmt)
	if !ok {
		return SQLITE_MISUSE
	}

	rowsErr := s.closeRows()
	if err := s.stmt.Close(); err != nil {
		return s.db.fail(err)
	}
	if rowsErr != nil {
		return s.db.fail(rowsErr)
	}
	return SQLITE_OK
}

func (e *DriverEngine) Step(stmt Handle) int {
	s, ok := e.stmts.get(stmt)
	if !ok {
		return SQLITE_MISUSE
	}

	if s.rows == nil {
		dr, err := s.stmt.QueryContext(s.db.context(), s.namedValues())
		if err != nil {
			return s.db.fail(err)
		}
		rows, ok := dr.(*sqlite3.SQLiteRows)
		if !ok {
			_ = dr.Close()
			return s.db.misuse(fmt.Sprintf("unexpected driver rows %T", dr))
		}
		s.rows = rows
	}
	s.stepped = true

	row := make([]driver.Value, len(s.names))
	err := s.rows.Next(row)
	switch {
	case err == nil:
		s.row = row
		return SQLITE_ROW
	case errors.Is(err, io.EOF):
		s.row = nil
		return SQLITE_DONE
	default:
		s.row = nil
		return s.db.fail(err)
	}
}

func (e *DriverEngine) Reset(stmt Handle) int {
	s, ok := e.stmts.get(stmt)
	if !ok {
		return SQLITE_MISUSE
	}
	if err := s.closeRows(); err != nil {
		return s.db.fail(err)
	}
	return SQLITE_OK
}

func (e *DriverEngine) ClearBindings(stmt Handle) int {
	s, ok := e.stmts.get(stmt)
	if !ok {
		return SQLITE_MISUSE
	}
	for i := range s.params {
		s.params[i] = nil
	}
	return SQLITE_OK
}

func (e *DriverEngine) BindParameterCount(stmt Handle) int {
	s, ok := e.stmts.get(stmt)
	if !ok {
		return 0
	}
	return len(s.params)
}

// bind stores a parameter value until the next step.
func (e *DriverEngine) bind(stmt Handle, index int, value any) int {
	s, ok := e.stmts.get(stmt)
	if !ok {
		return SQLITE_MISUSE
	}
	if s.stepped {
		return s.db.misuse("bad parameter or other API misuse")
	}
	if index < 1 || index > len(s.params) {
		s.db.errMsg = "column index out of range"
		return SQLITE_RANGE
	}
	s.params[index-1] = value
	return SQLITE_OK
}

func (e *DriverEngine) BindNull(stmt Handle, index int) int {
	return e.bind(stmt, index, nil)
}

func (e *DriverEngine) BindInt64(stmt Handle, index int, value int64) int {
	return e.bind(stmt, index, value)
}

func (e *DriverEngine) BindDouble(stmt Handle, index int, value float64) int {
	return e.bind(stmt, index, value)
}

func (e *DriverEngine) BindText(stmt Handle, index int, value []byte) int {
	return e.bind(stmt, index, string(value))
}

func (e *DriverEngine) BindBlob(stmt Handle, index int, value []byte) int {
	if value == nil {
		value = []byte{}
	}
	return e.bind(stmt, index, append([]byte(nil), value...))
}

func (e *DriverEngine) ColumnCount(stmt Handle) int {
	s, ok := e.stmts.get(stmt)
	if !ok {
		return 0
	}
	return len(s.names)
}

func (e *DriverEngine) ColumnName(stmt Handle, col int) string {
	s, ok := e.stmts.get(stmt)
	if !ok || col < 0 || col >= len(s.names) {
		return ""
	}
	return s.names[col]
}

func (e *DriverEngine) ColumnDeclType(stmt Handle, col int) string {
	s, ok := e.stmts.get(stmt)
	if !ok || col < 0 || col >= len(s.decl) {
		return ""
	}
	return s.decl[col]
}

func (e *DriverEngine) ColumnType(stmt Handle, col int) int {
	s, ok := e.stmts.get(stmt)
	if !ok {
		return SQLITE_NULL
	}
	v, _ := s.value(col)
	return valueType(v)
}

func (e *DriverEngine) ColumnInt64(stmt Handle, col int) int64 {
	s, ok := e.stmts.get(stmt)
	if !ok {
		return 0
	}
	v, _ := s.value(col)
	return toInt64(v)
}

func (e *DriverEngine) ColumnDouble(stmt Handle, col int) float64 {
	s, ok := e.stmts.get(stmt)
	if !ok {
		return 0
	}
	v, _ := s.value(col)
	return toFloat64(v)
}

func (e *DriverEngine) ColumnText(stmt Handle, col int) []byte {
	s, ok := e.stmts.get(stmt)
	if !ok {
		return nil
	}
	v, _ := s.value(col)
	return toText(v)
}

func (e *DriverEngine) ColumnBlob(stmt Handle, col int) []byte {
	s, ok := e.stmts.get(stmt)
	if !ok {
		return nil
	}
	v, _ := s.value(col)
	if b, ok := v.([]byte); ok {
		return append([]byte(nil), b...)
	}
	return toText(v)
}

func (e *DriverEngine) ReadOnly(stmt Handle) bool {
	s, ok := e.stmts.get(stmt)
	if !ok {
		return false
	}
	return s.readOnly
}

func (e *DriverEngine) BackupInit(
	dst Handle, dstName string, src Handle, srcName string,
) (Handle, int) {
	dd, ok := e.openDB(dst)
	if !ok {
		return NilHandle, SQLITE_MISUSE
	}
	sd, ok := e.openDB(src)
	if !ok {
		return NilHandle, dd.misuse("bad parameter or other API misuse")
	}

	backup, err := dd.conn.Backup(dstName, sd.conn, srcName)
	if err != nil {
		return NilHandle, dd.fail(err)
	}
	return e.backups.add(&backupEntry{backup: backup, dst: dd}), SQLITE_OK
}

// BackupStep reports SQLITE_BUSY when a step neither finished nor moved
// the page counters, since the driver folds busy and locked steps into a
// plain "not done".
func (e *DriverEngine) BackupStep(backup Handle, pages int) int {
	b, ok := e.backups.get(backup)
	if !ok {
		return SQLITE_MISUSE
	}

	done, err := b.backup.Step(pages)
	if err != nil {
		return b.dst.fail(err)
	}

	remaining, pageCount := b.backup.Remaining(), b.backup.PageCount()
	progressed := pageCount > 0 && (remaining != b.remaining || pageCount != b.pageCount)
	b.remaining, b.pageCount = remaining, pageCount

	switch {
	case done:
		return SQLITE_DONE
	case !progressed:
		b.dst.errMsg = "database is locked"
		return SQLITE_BUSY
	default:
		return SQLITE_OK
	}
}

func (e *DriverEngine) BackupRemaining(backup Handle) int {
	b, ok := e.backups.get(backup)
	if !ok {
		return 0
	}
	return b.remaining
}

func (e *DriverEngine) BackupPageCount(backup Handle) int {
	b, ok := e.backups.get(backup)
	if !ok {
		return 0
	}
	return b.pageCount
}

func (e *DriverEngine) BackupFinish(backup Handle) int {
	b, ok := e.backups.remove(backup)
	if !ok {
		return SQLITE_MISUSE
	}
	if err := b.backup.Finish(); err != nil {
		return b.dst.fail(err)
	}
	return SQLITE_OK
}

// valueType returns the datatype code of a driver row value.
func valueType(v driver.Value) int {
	switch v.(type) {
	case int64, bool:
		return SQLITE_INTEGER
	case float64:
		return SQLITE_FLOAT
	case string, time.Time:
		return SQLITE_TEXT
	case []byte:
		return SQLITE_BLOB
	default:
		return SQLITE_NULL
	}
}

func toInt64(v driver.Value) int64 {
	switch v := v.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case time.Time:
		return v.Unix()
	case string:
		return parseLeadingInt(v)
	case []byte:
		return parseLeadingInt(string(v))
	default:
		return 0
	}
}

func toFloat64(v driver.Value) float64 {
	switch v := v.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case time.Time:
		return float64(v.Unix())
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f
	case []byte:
		f, _ := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
		return f
	default:
		return 0
	}
}

func toText(v driver.Value) []byte {
	switch v := v.(type) {
	case string:
		return []byte(v)
	case []byte:
		return append([]byte(nil), v...)
	case int64:
		return strconv.AppendInt(nil, v, 10)
	case float64:
		return strconv.AppendFloat(nil, v, 'g', 15, 64)
	case bool:
		if v {
			return []byte("1")
		}
		return []byte("0")
	case time.Time:
		return []byte(v.Format(sqlite3.SQLiteTimestampFormats[0]))
	default:
		return nil
	}
}

// parseLeadingInt converts text the way SQLite casts it to an integer,
// falling back to the integer part of a real number.
func parseLeadingInt(s string) int64 {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

// HandleCounts returns the number of live database, statement and backup
// handles.
func (e *DriverEngine) HandleCounts() (dbs, stmts, backups int) {
	return e.dbs.len(), e.stmts.len(), e.backups.len()
}
