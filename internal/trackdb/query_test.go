package trackdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectStatementType(t *testing.T) {
	tests := []struct {
		sql      string
		readOnly bool
		want     StatementType
	}{
		{"SELECT 1", true, StatementTypeRead},
		{"  insert into t values (1)", false, StatementTypeWrite},
		{"BEGIN IMMEDIATE", true, StatementTypeBegin},
		{"commit", true, StatementTypeCommit},
		{"END TRANSACTION", true, StatementTypeCommit},
		{"ROLLBACK", true, StatementTypeRollback},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, detectStatementType(tt.sql, tt.readOnly), tt.sql)
	}
	assert.Len(t, StatementTypes.Members(), 5)
}

func TestConnQuery(t *testing.T) {
	config, _ := newTestConfig(nil)
	config.StatementCacheSize = 4
	conn := openTestConn(t, config)

	_, err := conn.Query("CREATE TABLE test (id INTEGER PRIMARY KEY, val TEXT)")
	require.NoError(t, err)

	res, err := conn.Query("INSERT INTO test (val) VALUES (?), (?)", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, StatementTypeWrite, res.Type)
	assert.EqualValues(t, 2, res.RowsAffected)
	assert.EqualValues(t, 2, res.LastInsertID)

	res, err = conn.Query("SELECT id, val FROM test WHERE id >= ? ORDER BY id", 1)
	require.NoError(t, err)
	assert.Equal(t, StatementTypeRead, res.Type)
	assert.Equal(t, []string{"id", "val"}, res.Columns)
	assert.Equal(t, []string{"integer", "text"}, res.DeclTypes)
	assert.Equal(t, [][]any{{int64(1), "a"}, {int64(2), "b"}}, res.Rows)
	assert.Zero(t, res.RowsAffected)

	res, err = conn.Query("SELECT id FROM test WHERE id > ?", 100)
	require.NoError(t, err)
	assert.Empty(t, res.Rows)

	_, err = conn.Query("SELECT * FROM missing")
	assert.Error(t, err)
}

func TestPrepareCached(t *testing.T) {
	t.Run("Reuse", func(t *testing.T) {
		config, _ := newTestConfig(nil)
		config.StatementCacheSize = 2
		conn := openTestConn(t, config)

		a, err := conn.PrepareCached("SELECT ?")
		require.NoError(t, err)
		require.NoError(t, a.BindInt64(1, 5))
		_, err = a.Step()
		require.NoError(t, err)

		b, err := conn.PrepareCached("SELECT ?")
		require.NoError(t, err)
		assert.Same(t, a, b)
		assert.Equal(t, 1, conn.StatementCount())

		// Reused statements are reset with cleared bindings.
		_, err = b.Step()
		require.NoError(t, err)
		v, err := b.ColumnValue(0)
		assert.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("EvictionFinalizes", func(t *testing.T) {
		config, _ := newTestConfig(nil)
		config.StatementCacheSize = 2
		conn := openTestConn(t, config)

		first, err := conn.PrepareCached("SELECT 1")
		require.NoError(t, err)
		_, err = conn.PrepareCached("SELECT 2")
		require.NoError(t, err)
		_, err = conn.PrepareCached("SELECT 3")
		require.NoError(t, err)

		assert.Equal(t, 2, conn.StatementCount())
		assert.Equal(t, 2, conn.CachedStatementCount())
		_, err = first.Step()
		assert.ErrorIs(t, err, ErrFinalized)
	})

	t.Run("FinalizeRemovesFromCache", func(t *testing.T) {
		config, _ := newTestConfig(nil)
		config.StatementCacheSize = 2
		conn := openTestConn(t, config)

		stmt, err := conn.PrepareCached("SELECT 1")
		require.NoError(t, err)
		require.NoError(t, stmt.Finalize())
		assert.Equal(t, 0, conn.CachedStatementCount())
		assert.Equal(t, 0, conn.StatementCount())

		again, err := conn.PrepareCached("SELECT 1")
		require.NoError(t, err)
		assert.NotSame(t, stmt, again)
	})

	t.Run("Disabled", func(t *testing.T) {
		config, _ := newTestConfig(nil)
		conn := openTestConn(t, config)

		_, err := conn.Query("SELECT 1")
		require.NoError(t, err)
		assert.Equal(t, 0, conn.StatementCount())
		assert.Equal(t, 0, conn.CachedStatementCount())
	})
}
