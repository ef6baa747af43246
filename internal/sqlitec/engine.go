package sqlitec

// Handle is an opaque identifier of a native object owned by an Engine.
// The zero Handle never refers to a live object.
type Handle uint64

// NilHandle is the Handle of no object.
const NilHandle Handle = 0

// Engine is the native SQLite boundary. Every call that can fail returns a
// SQLite result code; calls on unknown or already released handles return
// SQLITE_MISUSE instead of touching native memory.
//
// Text crosses the boundary as UTF-8 encoded bytes.
//
// An Engine is safe for concurrent use across different database handles.
// Calls on the same database handle and its statements must be serialized
// by the caller, with the exception of Interrupt.
type Engine interface {
	// Open opens a database connection. On failure a handle may still be
	// returned so its error message can be read; it must be closed.
	//
	// https://www.sqlite.org/c3ref/open.html
	Open(filename []byte, flags OpenFlags, options DSNOptions) (Handle, int)
	// Close releases a database connection.
	//
	// https://www.sqlite.org/c3ref/close.html
	Close(db Handle) int
	// ErrMsg returns the message of the most recent failed call on the
	// database or any of its statements.
	//
	// https://www.sqlite.org/c3ref/errcode.html
	ErrMsg(db Handle) string
	// Exec compiles and runs every statement in sql.
	//
	// https://www.sqlite.org/c3ref/exec.html
	Exec(db Handle, sql []byte) int
	// Interrupt aborts the operation running on db at its next checkpoint.
	//
	// https://www.sqlite.org/c3ref/interrupt.html
	Interrupt(db Handle)
	// BusyTimeout sets how long SQLite sleeps on a locked table.
	//
	// https://www.sqlite.org/c3ref/busy_timeout.html
	BusyTimeout(db Handle, ms int) int
	// Changes returns the rows modified by the most recent statement.
	//
	// https://www.sqlite.org/c3ref/changes.html
	Changes(db Handle) int64
	// TotalChanges returns the rows modified since the database was opened.
	//
	// https://www.sqlite.org/c3ref/total_changes.html
	TotalChanges(db Handle) int64
	// LastInsertRowID returns the rowid of the most recent insert.
	//
	// https://www.sqlite.org/c3ref/last_insert_rowid.html
	LastInsertRowID(db Handle) int64
	// Limit sets a run-time limit and returns its prior value. A negative
	// value only reads the limit.
	//
	// https://www.sqlite.org/c3ref/limit.html
	Limit(db Handle, id int, value int) int
	// CommitHook calls fn before every commit of db. A non-zero return
	// turns the commit into a rollback. A nil fn removes the hook.
	//
	// https://www.sqlite.org/c3ref/commit_hook.html
	CommitHook(db Handle, fn func() int) int
	// UpdateHook calls fn for every row inserted, updated or deleted in a
	// rowid table of db, with SQLITE_INSERT, SQLITE_UPDATE or
	// SQLITE_DELETE as op. A nil fn removes the hook.
	//
	// https://www.sqlite.org/c3ref/update_hook.html
	UpdateHook(db Handle, fn func(op int, schema, table string, rowID int64)) int
	// LoadExtension loads the shared library at path into db. An empty
	// entry uses sqlite3_extension_init.
	//
	// https://www.sqlite.org/c3ref/load_extension.html
	LoadExtension(db Handle, path, entry string) int
	// LibVersion returns the SQLite library version.
	//
	// https://www.sqlite.org/c3ref/libversion.html
	LibVersion() string

	// Prepare compiles the first statement in sql.
	//
	// https://www.sqlite.org/c3ref/prepare.html
	Prepare(db Handle, sql []byte) (Handle, int)
	// Finalize destroys a statement. The handle is released even when a
	// non-OK code is returned.
	//
	// https://www.sqlite.org/c3ref/finalize.html
	Finalize(stmt Handle) int
	// Step evaluates the statement, returning SQLITE_ROW, SQLITE_DONE or an
	// error code.
	//
	// https://www.sqlite.org/c3ref/step.html
	Step(stmt Handle) int
	// Reset rewinds the statement so it can run again.
	//
	// https://www.sqlite.org/c3ref/reset.html
	Reset(stmt Handle) int
	// ClearBindings sets every parameter back to NULL.
	//
	// https://www.sqlite.org/c3ref/clear_bindings.html
	ClearBindings(stmt Handle) int
	// BindParameterCount returns the number of SQL parameters.
	//
	// https://www.sqlite.org/c3ref/bind_parameter_count.html
	BindParameterCount(stmt Handle) int
	// Bind* bind a value to the 1-based parameter index.
	//
	// https://www.sqlite.org/c3ref/bind_blob.html
	BindNull(stmt Handle, index int) int
	BindInt64(stmt Handle, index int, value int64) int
	BindDouble(stmt Handle, index int, value float64) int
	BindText(stmt Handle, index int, value []byte) int
	BindBlob(stmt Handle, index int, value []byte) int
	// ColumnCount returns the number of result columns.
	//
	// https://www.sqlite.org/c3ref/column_count.html
	ColumnCount(stmt Handle) int
	// ColumnName returns the name of a 0-based result column.
	//
	// https://www.sqlite.org/c3ref/column_name.html
	ColumnName(stmt Handle, col int) string
	// ColumnDeclType returns the declared type of a result column.
	//
	// https://www.sqlite.org/c3ref/column_decltype.html
	ColumnDeclType(stmt Handle, col int) string
	// Column* read the value of a 0-based column of the current row.
	//
	// https://www.sqlite.org/c3ref/column_blob.html
	ColumnType(stmt Handle, col int) int
	ColumnInt64(stmt Handle, col int) int64
	ColumnDouble(stmt Handle, col int) float64
	ColumnText(stmt Handle, col int) []byte
	ColumnBlob(stmt Handle, col int) []byte
	// ReadOnly reports whether the statement makes no direct changes.
	//
	// https://www.sqlite.org/c3ref/stmt_readonly.html
	ReadOnly(stmt Handle) bool

	// BackupInit starts copying srcName of src into dstName of dst.
	//
	// https://www.sqlite.org/c3ref/backup_finish.html#sqlite3backupinit
	BackupInit(dst Handle, dstName string, src Handle, srcName string) (Handle, int)
	// BackupStep copies up to pages pages (all of them when negative).
	// It returns SQLITE_OK, SQLITE_DONE, SQLITE_BUSY, SQLITE_LOCKED or an
	// error code.
	BackupStep(backup Handle, pages int) int
	// BackupRemaining returns the pages still to be copied after the last
	// step.
	BackupRemaining(backup Handle) int
	// BackupPageCount returns the total pages of the source after the last
	// step.
	BackupPageCount(backup Handle) int
	// BackupFinish releases the backup.
	BackupFinish(backup Handle) int
}
