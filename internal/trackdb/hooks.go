package trackdb

import (
	"github.com/nsqlite/sqlitetrack/internal/sqlitec"
	"github.com/orsinium-labs/enum"
)

// CommitHook decides whether a transaction about to commit goes through.
// Returning false turns the commit into a rollback.
type CommitHook interface {
	OnCommit() bool
}

// CommitFunc adapts a function to CommitHook.
type CommitFunc func() bool

func (f CommitFunc) OnCommit() bool {
	return f()
}

// UpdateOp is the kind of row change reported to an UpdateHook.
type UpdateOp enum.Member[string]

var (
	UpdateOpInsert = UpdateOp{Value: "insert"}
	UpdateOpUpdate = UpdateOp{Value: "update"}
	UpdateOpDelete = UpdateOp{Value: "delete"}

	UpdateOps = enum.New(
		UpdateOpInsert,
		UpdateOpUpdate,
		UpdateOpDelete,
	)
)

func updateOpFromCode(op int) (UpdateOp, bool) {
	switch op {
	case sqlitec.SQLITE_INSERT:
		return UpdateOpInsert, true
	case sqlitec.SQLITE_UPDATE:
		return UpdateOpUpdate, true
	case sqlitec.SQLITE_DELETE:
		return UpdateOpDelete, true
	}
	return UpdateOp{}, false
}

// UpdateHook is notified of every row inserted, updated or deleted in a
// rowid table.
type UpdateHook interface {
	OnUpdate(op UpdateOp, schema, table string, rowID int64)
}

// UpdateFunc adapts a function to UpdateHook.
type UpdateFunc func(op UpdateOp, schema, table string, rowID int64)

func (f UpdateFunc) OnUpdate(op UpdateOp, schema, table string, rowID int64) {
	f(op, schema, table, rowID)
}

// OnCommit installs hook in place of the previous one, a nil hook removes
// it.
//
// Hooks run inside the operation that triggers them while the Conn is
// locked, so they must not call the Conn.
func (c *Conn) OnCommit(hook CommitHook) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpenLocked(); err != nil {
		return err
	}

	var fn func() int
	if hook != nil {
		fn = func() int {
			if hook.OnCommit() {
				return 0
			}
			return 1
		}
	}
	if rc := c.engine.CommitHook(c.db, fn); rc != sqlitec.SQLITE_OK {
		return c.lastError(rc, "")
	}
	return nil
}

// OnUpdate installs hook in place of the previous one, a nil hook removes
// it. It runs under the same rules as the OnCommit hook.
func (c *Conn) OnUpdate(hook UpdateHook) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpenLocked(); err != nil {
		return err
	}

	var fn func(op int, schema, table string, rowID int64)
	if hook != nil {
		fn = func(code int, schema, table string, rowID int64) {
			if op, ok := updateOpFromCode(code); ok {
				hook.OnUpdate(op, schema, table, rowID)
			}
		}
	}
	if rc := c.engine.UpdateHook(c.db, fn); rc != sqlitec.SQLITE_OK {
		return c.lastError(rc, "")
	}
	return nil
}
