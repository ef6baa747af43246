package trackdb

import (
	"strings"

	"github.com/orsinium-labs/enum"
)

// StatementType represents the type of a given SQLite statement.
type StatementType enum.Member[string]

var (
	StatementTypeRead     = StatementType{Value: "read"}
	StatementTypeWrite    = StatementType{Value: "write"}
	StatementTypeBegin    = StatementType{Value: "begin"}
	StatementTypeCommit   = StatementType{Value: "commit"}
	StatementTypeRollback = StatementType{Value: "rollback"}

	StatementTypes = enum.New(
		StatementTypeRead,
		StatementTypeWrite,
		StatementTypeBegin,
		StatementTypeCommit,
		StatementTypeRollback,
	)
)

// detectStatementType detects the type of a statement between read,
// write, begin, commit and rollback.
func detectStatementType(sql string, readOnly bool) StatementType {
	trimmed := strings.ToLower(strings.TrimSpace(sql))

	switch {
	case strings.HasPrefix(trimmed, "begin"):
		return StatementTypeBegin
	case strings.HasPrefix(trimmed, "commit"), strings.HasPrefix(trimmed, "end"):
		return StatementTypeCommit
	case strings.HasPrefix(trimmed, "rollback"):
		return StatementTypeRollback
	case readOnly:
		return StatementTypeRead
	default:
		return StatementTypeWrite
	}
}

// Result is the outcome of Query.
type Result struct {
	Type      StatementType
	Columns   []string
	DeclTypes []string
	// Rows holds nil, int64, float64, string or []byte values.
	Rows [][]any
	// RowsAffected and LastInsertID are only set for write statements.
	RowsAffected int64
	LastInsertID int64
}

// Query prepares the first statement of sql through the statement cache,
// binds params, reads every row and resets the statement.
func (c *Conn) Query(sql string, params ...any) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stmt, err := c.prepareCachedLocked(sql)
	if err != nil {
		return nil, err
	}
	defer func() {
		if !stmt.cached {
			_ = c.finalizeLocked(stmt)
			return
		}
		_ = stmt.resetLocked()
	}()

	if err := stmt.bindAllLocked(params); err != nil {
		return nil, err
	}

	e := c.engine
	colCount := e.ColumnCount(stmt.handle)
	res := &Result{
		Type:      detectStatementType(sql, e.ReadOnly(stmt.handle)),
		Columns:   make([]string, colCount),
		DeclTypes: make([]string, colCount),
		Rows:      [][]any{},
	}
	for i := range colCount {
		res.Columns[i] = e.ColumnName(stmt.handle, i)
		res.DeclTypes[i] = e.ColumnDeclType(stmt.handle, i)
	}

	for {
		hasRow, err := stmt.stepLocked()
		if err != nil {
			return nil, err
		}
		if !hasRow {
			break
		}

		row := make([]any, colCount)
		for i := range colCount {
			row[i] = stmt.columnValue(e, i)
		}
		res.Rows = append(res.Rows, row)
	}

	if res.Type == StatementTypeWrite {
		res.RowsAffected = e.Changes(c.db)
		res.LastInsertID = e.LastInsertRowID(c.db)
	}
	return res, nil
}
