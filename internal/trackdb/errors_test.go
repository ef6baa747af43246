package trackdb

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nsqlite/sqlitetrack/internal/sqlitec"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		code int
		want Kind
	}{
		{sqlitec.SQLITE_MISUSE, KindMisuse},
		{sqlitec.SQLITE_RANGE, KindMisuse},
		{sqlitec.SQLITE_BUSY, KindBusy},
		{sqlitec.SQLITE_LOCKED, KindBusy},
		{sqlitec.SQLITE_IOERR | (10 << 8), KindIO},
		{sqlitec.SQLITE_CANTOPEN, KindIO},
		{sqlitec.SQLITE_CONSTRAINT | (19 << 8), KindConstraint},
		{sqlitec.SQLITE_INTERRUPT, KindInterrupt},
		{sqlitec.SQLITE_ERROR, KindUnknown},
		{1234, KindUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, kindOf(tt.code), "code %d", tt.code)
	}

	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindBusy, KindOf(fmt.Errorf("wrapped: %w", newError(sqlitec.SQLITE_BUSY, "x", ""))))
}

func TestKinds(t *testing.T) {
	kind := Kinds.Parse("busy")
	if assert.NotNil(t, kind) {
		assert.Equal(t, KindBusy, *kind)
	}
	assert.Nil(t, Kinds.Parse("nope"))
	assert.Len(t, Kinds.Members(), 7)
}

func TestErrorMessage(t *testing.T) {
	t.Run("Known", func(t *testing.T) {
		err := newError(sqlitec.SQLITE_BUSY, "database is locked", "")
		assert.Equal(t, "SQLITE_BUSY (database is locked)", err.Error())
		assert.Equal(t, "SQLITE_BUSY", err.Name)
	})

	t.Run("Unknown", func(t *testing.T) {
		err := newError(123, "strange", "")
		assert.Equal(t, "SQLITE_UNKNOWN:123 (strange)", err.Error())
	})

	t.Run("WithSQL", func(t *testing.T) {
		err := newError(sqlitec.SQLITE_ERROR, `near "not": syntax error`, "not sql")
		assert.Equal(t, `SQLITE_ERROR (near "not": syntax error) (sql=not sql)`, err.Error())
	})

	t.Run("Open", func(t *testing.T) {
		err := newOpenError(sqlitec.SQLITE_CANTOPEN, "unable to open database file", "/x.db")
		assert.Equal(t, KindOpen, err.Kind)
		assert.Equal(t, "SQLITE_CANTOPEN (unable to open database file: /x.db)", err.Error())
	})

	t.Run("Sentinel", func(t *testing.T) {
		err := newMisuseError(ErrClosed)
		assert.ErrorIs(t, err, ErrClosed)
		assert.NotErrorIs(t, err, ErrNotOpen)
		assert.Equal(t, "SQLITE_MISUSE (connection closed)", err.Error())
	})

	t.Run("Retry", func(t *testing.T) {
		last := newError(sqlitec.SQLITE_BUSY, "database is locked", "")
		err := &RetryError{Retries: 3, Last: last}
		assert.ErrorIs(t, err, ErrRetriesExhausted)
		assert.ErrorIs(t, err, last)
		assert.Equal(t,
			"busy retries exhausted after 3 retries: SQLITE_BUSY (database is locked)",
			err.Error(),
		)
	})
}
