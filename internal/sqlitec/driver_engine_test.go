package sqlitec

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T, e *DriverEngine) Handle {
	t.Helper()
	db, rc := e.Open([]byte(":memory:"), DefaultOpenFlags, DSNOptions{})
	require.Equal(t, SQLITE_OK, rc, e.ErrMsg(db))
	t.Cleanup(func() { e.Close(db) })
	return db
}

func TestDriverEngine(t *testing.T) {
	t.Run("OpenClose", func(t *testing.T) {
		e := NewEngine()
		db, rc := e.Open([]byte(":memory:"), DefaultOpenFlags, DSNOptions{})
		assert.Equal(t, SQLITE_OK, rc)
		assert.NotEqual(t, NilHandle, db)
		assert.Equal(t, SQLITE_OK, e.Close(db))
		assert.Equal(t, SQLITE_MISUSE, e.Close(db))
	})

	t.Run("OpenFailureKeepsHandle", func(t *testing.T) {
		e := NewEngine()
		path := filepath.Join(t.TempDir(), "missing", "test.db")
		db, rc := e.Open([]byte(path), OpenReadOnly, DSNOptions{})
		assert.Equal(t, SQLITE_CANTOPEN, PrimaryCode(rc))
		assert.NotEqual(t, NilHandle, db)
		assert.NotEmpty(t, e.ErrMsg(db))
		assert.Equal(t, SQLITE_MISUSE, e.Exec(db, []byte("SELECT 1")))
		assert.Equal(t, SQLITE_OK, e.Close(db))
	})

	t.Run("InvalidFlags", func(t *testing.T) {
		e := NewEngine()
		db, rc := e.Open([]byte(":memory:"), OpenReadOnly|OpenReadWrite, DSNOptions{})
		assert.Equal(t, SQLITE_MISUSE, rc)
		assert.Contains(t, e.ErrMsg(db), "mutually exclusive")
		assert.Equal(t, SQLITE_OK, e.Close(db))
	})

	t.Run("UnknownHandles", func(t *testing.T) {
		e := NewEngine()
		assert.Equal(t, SQLITE_MISUSE, e.Exec(Handle(42), []byte("SELECT 1")))
		assert.Equal(t, SQLITE_MISUSE, e.Step(Handle(42)))
		assert.Equal(t, SQLITE_MISUSE, e.Finalize(Handle(42)))
		assert.Equal(t, SQLITE_MISUSE, e.BackupStep(Handle(42), 1))

		// A database handle is not a statement handle.
		db := openMemory(t, e)
		assert.Equal(t, SQLITE_MISUSE, e.Step(db))
	})

	t.Run("Exec", func(t *testing.T) {
		e := NewEngine()
		db := openMemory(t, e)

		assert.Equal(t, SQLITE_OK, e.Exec(db, []byte("SELECT 1")))
		assert.Equal(t, SQLITE_OK, e.Exec(db, []byte(`
			CREATE TABLE test (id INTEGER PRIMARY KEY, val TEXT);
			INSERT INTO test (val) VALUES ('a'), ('b');
		`)))
		assert.EqualValues(t, 2, e.Changes(db))
		assert.EqualValues(t, 2, e.TotalChanges(db))
		assert.EqualValues(t, 2, e.LastInsertRowID(db))

		rc := e.Exec(db, []byte("not sql"))
		assert.Equal(t, SQLITE_ERROR, rc)
		assert.Contains(t, e.ErrMsg(db), "syntax error")
	})

	t.Run("PrepareStepColumns", func(t *testing.T) {
		e := NewEngine()
		db := openMemory(t, e)
		require.Equal(t, SQLITE_OK, e.Exec(db, []byte(`
			CREATE TABLE test_types (
				id INTEGER PRIMARY KEY,
				num_int INTEGER,
				num_float REAL,
				txt TEXT,
				bytes BLOB,
				nullable TEXT
			)
		`)))

		ins, rc := e.Prepare(db, []byte(`
			INSERT INTO test_types (num_int, num_float, txt, bytes, nullable)
			VALUES (?, ?, ?, ?, ?)
		`))
		require.Equal(t, SQLITE_OK, rc, e.ErrMsg(db))
		assert.Equal(t, 5, e.BindParameterCount(ins))
		assert.False(t, e.ReadOnly(ins))
		assert.Equal(t, SQLITE_OK, e.BindInt64(ins, 1, 123))
		assert.Equal(t, SQLITE_OK, e.BindDouble(ins, 2, 3.14))
		assert.Equal(t, SQLITE_OK, e.BindText(ins, 3, []byte("hola")))
		assert.Equal(t, SQLITE_OK, e.BindBlob(ins, 4, []byte("raw")))
		assert.Equal(t, SQLITE_OK, e.BindNull(ins, 5))
		assert.Equal(t, SQLITE_RANGE, e.BindNull(ins, 6))
		assert.Equal(t, SQLITE_DONE, e.Step(ins))
		assert.Equal(t, SQLITE_OK, e.Finalize(ins))

		sel, rc := e.Prepare(db, []byte(
			"SELECT num_int, num_float, txt, bytes, nullable FROM test_types",
		))
		require.Equal(t, SQLITE_OK, rc, e.ErrMsg(db))
		defer e.Finalize(sel)

		assert.True(t, e.ReadOnly(sel))
		assert.Equal(t, 5, e.ColumnCount(sel))
		assert.Equal(t, "num_int", e.ColumnName(sel, 0))
		assert.Equal(t, "txt", e.ColumnName(sel, 2))
		assert.Equal(t, "", e.ColumnName(sel, 9))
		assert.Equal(t, "real", e.ColumnDeclType(sel, 1))

		require.Equal(t, SQLITE_ROW, e.Step(sel))
		assert.Equal(t, SQLITE_INTEGER, e.ColumnType(sel, 0))
		assert.EqualValues(t, 123, e.ColumnInt64(sel, 0))
		assert.Equal(t, SQLITE_FLOAT, e.ColumnType(sel, 1))
		assert.Equal(t, 3.14, e.ColumnDouble(sel, 1))
		assert.Equal(t, SQLITE_TEXT, e.ColumnType(sel, 2))
		assert.Equal(t, []byte("hola"), e.ColumnText(sel, 2))
		assert.Equal(t, SQLITE_BLOB, e.ColumnType(sel, 3))
		assert.Equal(t, []byte("raw"), e.ColumnBlob(sel, 3))
		assert.Equal(t, SQLITE_NULL, e.ColumnType(sel, 4))
		assert.Nil(t, e.ColumnText(sel, 4))
		assert.Equal(t, []byte("123"), e.ColumnText(sel, 0))
		assert.Equal(t, SQLITE_DONE, e.Step(sel))
	})

	t.Run("BindAfterStepIsMisuse", func(t *testing.T) {
		e := NewEngine()
		db := openMemory(t, e)

		stmt, rc := e.Prepare(db, []byte("SELECT ? UNION ALL SELECT 2"))
		require.Equal(t, SQLITE_OK, rc)
		defer e.Finalize(stmt)

		assert.Equal(t, SQLITE_OK, e.BindInt64(stmt, 1, 1))
		assert.Equal(t, SQLITE_ROW, e.Step(stmt))
		assert.Equal(t, SQLITE_MISUSE, e.BindInt64(stmt, 1, 5))

		assert.Equal(t, SQLITE_OK, e.Reset(stmt))
		assert.Equal(t, SQLITE_OK, e.BindInt64(stmt, 1, 5))
		assert.Equal(t, SQLITE_ROW, e.Step(stmt))
		assert.EqualValues(t, 5, e.ColumnInt64(stmt, 0))

		assert.Equal(t, SQLITE_OK, e.Reset(stmt))
		assert.Equal(t, SQLITE_OK, e.ClearBindings(stmt))
		assert.Equal(t, SQLITE_ROW, e.Step(stmt))
		assert.Equal(t, SQLITE_NULL, e.ColumnType(stmt, 0))
	})

	t.Run("PrepareErrors", func(t *testing.T) {
		e := NewEngine()
		db := openMemory(t, e)

		_, rc := e.Prepare(db, []byte("SELECT * FROM missing"))
		assert.Equal(t, SQLITE_ERROR, rc)
		assert.Contains(t, e.ErrMsg(db), "no such table")

		_, rc = e.Prepare(db, []byte("   "))
		assert.Equal(t, SQLITE_MISUSE, rc)
	})

	t.Run("FinalizeReleasesHandle", func(t *testing.T) {
		e := NewEngine()
		db := openMemory(t, e)

		stmt, rc := e.Prepare(db, []byte("SELECT 1"))
		require.Equal(t, SQLITE_OK, rc)
		_, stmts, _ := e.HandleCounts()
		assert.Equal(t, 1, stmts)

		assert.Equal(t, SQLITE_OK, e.Finalize(stmt))
		assert.Equal(t, SQLITE_MISUSE, e.Finalize(stmt))
		_, stmts, _ = e.HandleCounts()
		assert.Equal(t, 0, stmts)
	})

	t.Run("Limit", func(t *testing.T) {
		e := NewEngine()
		db := openMemory(t, e)

		const limitVariableNumber = 9
		e.Limit(db, limitVariableNumber, 10)
		assert.Equal(t, 10, e.Limit(db, limitVariableNumber, -1))
	})

	t.Run("LibVersion", func(t *testing.T) {
		assert.Regexp(t, `^3\.\d+\.\d+`, NewEngine().LibVersion())
	})

	t.Run("Interrupt", func(t *testing.T) {
		e := NewEngine()
		db := openMemory(t, e)

		stmt, rc := e.Prepare(db, []byte(`
			WITH RECURSIVE c(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM c)
			SELECT count(*) FROM c
		`))
		require.Equal(t, SQLITE_OK, rc)
		defer e.Finalize(stmt)

		done := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				case <-time.After(50 * time.Millisecond):
					e.Interrupt(db)
				}
			}
		}()

		rc = e.Step(stmt)
		close(done)
		wg.Wait()
		assert.Equal(t, SQLITE_INTERRUPT, PrimaryCode(rc))

		// Later operations are not affected.
		assert.Equal(t, SQLITE_OK, e.Exec(db, []byte("SELECT 1")))
	})

	t.Run("InterruptDuringClose", func(t *testing.T) {
		e := NewEngine()
		for range 100 {
			db, rc := e.Open([]byte(":memory:"), DefaultOpenFlags, DSNOptions{})
			require.Equal(t, SQLITE_OK, rc)

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 50 {
					e.Interrupt(db)
				}
			}()

			assert.Equal(t, SQLITE_OK, e.Close(db))
			wg.Wait()
		}
		assert.Equal(t, 0, e.dbs.len())
	})

	t.Run("Backup", func(t *testing.T) {
		e := NewEngine()
		src := openMemory(t, e)
		require.Equal(t, SQLITE_OK, e.Exec(src, []byte(`
			CREATE TABLE test (id INTEGER PRIMARY KEY, val TEXT);
		`)))
		for range 100 {
			ins := []byte("INSERT INTO test (val) VALUES ('" + uuid.NewString() + "')")
			require.Equal(t, SQLITE_OK, e.Exec(src, ins))
		}

		path := filepath.Join(t.TempDir(), "backup.db")
		dst, rc := e.Open([]byte(path), DefaultOpenFlags, DSNOptions{})
		require.Equal(t, SQLITE_OK, rc)
		defer e.Close(dst)

		b, rc := e.BackupInit(dst, "main", src, "main")
		require.Equal(t, SQLITE_OK, rc, e.ErrMsg(dst))

		steps := 0
		for {
			rc = e.BackupStep(b, 1)
			steps++
			if rc != SQLITE_OK {
				break
			}
			assert.Greater(t, e.BackupPageCount(b), 0)
		}
		assert.Equal(t, SQLITE_DONE, rc)
		assert.Equal(t, 0, e.BackupRemaining(b))
		assert.Equal(t, e.BackupPageCount(b), steps)
		assert.Equal(t, SQLITE_OK, e.BackupFinish(b))
		assert.Equal(t, SQLITE_MISUSE, e.BackupFinish(b))

		stmt, rc := e.Prepare(dst, []byte("SELECT count(*) FROM test"))
		require.Equal(t, SQLITE_OK, rc, e.ErrMsg(dst))
		defer e.Finalize(stmt)
		require.Equal(t, SQLITE_ROW, e.Step(stmt))
		assert.EqualValues(t, 100, e.ColumnInt64(stmt, 0))
	})

	t.Run("BackupBusyWhileSourceLocked", func(t *testing.T) {
		e := NewEngine()
		dir := t.TempDir()
		options := DSNOptions{BusyTimeout: 10 * time.Millisecond}

		srcPath := filepath.Join(dir, "source.db")
		src, rc := e.Open([]byte(srcPath), DefaultOpenFlags, options)
		require.Equal(t, SQLITE_OK, rc)
		defer e.Close(src)
		require.Equal(t, SQLITE_OK, e.Exec(src, []byte(`
			CREATE TABLE test (id INTEGER PRIMARY KEY, val TEXT);
			INSERT INTO test (val) VALUES ('a'), ('b'), ('c');
		`)))

		locker, rc := e.Open([]byte(srcPath), DefaultOpenFlags, options)
		require.Equal(t, SQLITE_OK, rc)
		defer e.Close(locker)
		require.Equal(t, SQLITE_OK, e.Exec(locker, []byte("BEGIN EXCLUSIVE")))

		dst, rc := e.Open([]byte(filepath.Join(dir, "backup.db")), DefaultOpenFlags, options)
		require.Equal(t, SQLITE_OK, rc)
		defer e.Close(dst)

		b, rc := e.BackupInit(dst, "main", src, "main")
		require.Equal(t, SQLITE_OK, rc, e.ErrMsg(dst))

		for range 3 {
			assert.Equal(t, SQLITE_BUSY, e.BackupStep(b, -1))
			assert.Equal(t, "database is locked", e.ErrMsg(dst))
		}

		require.Equal(t, SQLITE_OK, e.Exec(locker, []byte("COMMIT")))
		assert.Equal(t, SQLITE_DONE, e.BackupStep(b, -1))
		assert.Equal(t, 0, e.BackupRemaining(b))
		assert.Positive(t, e.BackupPageCount(b))
		require.Equal(t, SQLITE_OK, e.BackupFinish(b))

		stmt, rc := e.Prepare(dst, []byte("SELECT count(*) FROM test"))
		require.Equal(t, SQLITE_OK, rc, e.ErrMsg(dst))
		defer e.Finalize(stmt)
		require.Equal(t, SQLITE_ROW, e.Step(stmt))
		assert.EqualValues(t, 3, e.ColumnInt64(stmt, 0))
	})

	t.Run("OpenEscapesPath", func(t *testing.T) {
		e := NewEngine()
		dir := t.TempDir()

		for _, name := range []string{"a?b.db", "c#d.db", "e%41.db"} {
			db, rc := e.Open([]byte(filepath.Join(dir, name)), DefaultOpenFlags, DSNOptions{})
			require.Equal(t, SQLITE_OK, rc, e.ErrMsg(db))
			require.Equal(t, SQLITE_OK, e.Exec(db, []byte("CREATE TABLE test (id INTEGER)")))
			require.Equal(t, SQLITE_OK, e.Close(db))

			_, err := os.Stat(filepath.Join(dir, name))
			assert.NoError(t, err, name)
		}

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 3)
	})

	t.Run("Hooks", func(t *testing.T) {
		e := NewEngine()
		db := openMemory(t, e)

		type change struct {
			op     int
			schema string
			table  string
			rowID  int64
		}
		commits := 0
		rollback := false
		changes := []change{}

		require.Equal(t, SQLITE_OK, e.CommitHook(db, func() int {
			commits++
			if rollback {
				return 1
			}
			return 0
		}))
		require.Equal(t, SQLITE_OK, e.UpdateHook(db, func(op int, schema, table string, rowID int64) {
			changes = append(changes, change{op, schema, table, rowID})
		}))

		require.Equal(t, SQLITE_OK, e.Exec(db, []byte(`
			CREATE TABLE test (id INTEGER PRIMARY KEY, val TEXT);
			INSERT INTO test (val) VALUES ('a');
			UPDATE test SET val = 'b' WHERE id = 1;
			DELETE FROM test WHERE id = 1;
		`)))
		assert.Equal(t, 4, commits)
		assert.Equal(t, []change{
			{SQLITE_INSERT, "main", "test", 1},
			{SQLITE_UPDATE, "main", "test", 1},
			{SQLITE_DELETE, "main", "test", 1},
		}, changes)

		rollback = true
		rc := e.Exec(db, []byte("INSERT INTO test (val) VALUES ('c')"))
		assert.Equal(t, SQLITE_CONSTRAINT, PrimaryCode(rc))

		require.Equal(t, SQLITE_OK, e.CommitHook(db, nil))
		require.Equal(t, SQLITE_OK, e.UpdateHook(db, nil))
		require.Equal(t, SQLITE_OK, e.Exec(db, []byte("INSERT INTO test (val) VALUES ('d')")))
		assert.Len(t, changes, 4)
		assert.Equal(t, 5, commits)

		assert.Equal(t, SQLITE_MISUSE, e.CommitHook(Handle(42), nil))
		assert.Equal(t, SQLITE_MISUSE, e.UpdateHook(Handle(42), nil))
	})

	t.Run("LoadExtensionFailure", func(t *testing.T) {
		e := NewEngine()
		db := openMemory(t, e)

		path := filepath.Join(t.TempDir(), "missing.so")
		assert.NotEqual(t, SQLITE_OK, e.LoadExtension(db, path, ""))
		assert.NotEmpty(t, e.ErrMsg(db))
		assert.Equal(t, SQLITE_MISUSE, e.LoadExtension(Handle(42), path, ""))

		// The database stays usable.
		assert.Equal(t, SQLITE_OK, e.Exec(db, []byte("SELECT 1")))
	})
}

func TestHandleTable(t *testing.T) {
	var seq atomic.Uint64
	table := newHandleTable[string](&seq)
	other := newHandleTable[int](&seq)

	a := table.add("a")
	b := other.add(1)
	assert.NotEqual(t, a, b)

	item, ok := table.get(a)
	assert.True(t, ok)
	assert.Equal(t, "a", item)

	_, ok = table.get(b)
	assert.False(t, ok)

	_, ok = table.remove(a)
	assert.True(t, ok)
	_, ok = table.remove(a)
	assert.False(t, ok)
	assert.Equal(t, 0, table.len())
	assert.Greater(t, table.add("c"), b)
}
