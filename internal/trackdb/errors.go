package trackdb

import (
	"errors"
	"fmt"

	"github.com/nsqlite/sqlitetrack/internal/sqlitec"
	"github.com/orsinium-labs/enum"
)

// Kind classifies an Error.
type Kind enum.Member[string]

var (
	KindMisuse     = Kind{Value: "misuse"}
	KindBusy       = Kind{Value: "busy"}
	KindIO         = Kind{Value: "io"}
	KindConstraint = Kind{Value: "constraint"}
	KindInterrupt  = Kind{Value: "interrupt"}
	KindOpen       = Kind{Value: "open"}
	KindUnknown    = Kind{Value: "unknown"}

	Kinds = enum.New(
		KindMisuse,
		KindBusy,
		KindIO,
		KindConstraint,
		KindInterrupt,
		KindOpen,
		KindUnknown,
	)
)

var (
	// ErrAlreadyOpen is returned when opening a connection that is open.
	ErrAlreadyOpen = errors.New("connection already open")
	// ErrNotOpen is returned when using a connection that was never opened.
	ErrNotOpen = errors.New("connection not open")
	// ErrClosed is returned when using a connection, or one of its
	// statements, after the connection was closed.
	ErrClosed = errors.New("connection closed")
	// ErrFinalized is returned when using a finalized statement.
	ErrFinalized = errors.New("statement finalized")
	// ErrRetriesExhausted is matched by the error of a backup or restore
	// that stayed busy after every allowed retry.
	ErrRetriesExhausted = errors.New("busy retries exhausted")
)

// kindOf classifies an engine result code.
func kindOf(code int) Kind {
	switch sqlitec.PrimaryCode(code) {
	case sqlitec.SQLITE_MISUSE, sqlitec.SQLITE_RANGE:
		return KindMisuse
	case sqlitec.SQLITE_BUSY, sqlitec.SQLITE_LOCKED:
		return KindBusy
	case sqlitec.SQLITE_IOERR, sqlitec.SQLITE_CANTOPEN, sqlitec.SQLITE_FULL,
		sqlitec.SQLITE_READONLY, sqlitec.SQLITE_CORRUPT, sqlitec.SQLITE_NOTADB,
		sqlitec.SQLITE_NOLFS, sqlitec.SQLITE_PERM:
		return KindIO
	case sqlitec.SQLITE_CONSTRAINT:
		return KindConstraint
	case sqlitec.SQLITE_INTERRUPT:
		return KindInterrupt
	default:
		return KindUnknown
	}
}

// Error is a failed engine call or a misuse of the connection.
type Error struct {
	// Code is the engine result code, possibly extended.
	Code int
	Kind Kind
	// Name is the class name of Code, for example SQLITE_BUSY.
	Name    string
	Message string
	// SQL is the statement text the error refers to, if any.
	SQL string

	sentinel error
}

func newError(code int, msg string, sql string) *Error {
	return &Error{
		Code:    code,
		Kind:    kindOf(code),
		Name:    sqlitec.ResultCodeName(code),
		Message: msg,
		SQL:     sql,
	}
}

func newOpenError(code int, msg string, path string) *Error {
	err := newError(code, msg, "")
	err.Kind = KindOpen
	if path != "" {
		err.Message = fmt.Sprintf("%s: %s", msg, path)
	}
	return err
}

func newMisuseError(sentinel error) *Error {
	err := newError(sqlitec.SQLITE_MISUSE, sentinel.Error(), "")
	err.sentinel = sentinel
	return err
}

func newInterruptError() *Error {
	return newError(sqlitec.SQLITE_INTERRUPT, "interrupted", "")
}

func (e *Error) Error() string {
	var msg string
	if sqlitec.IsKnownCode(e.Code) {
		msg = fmt.Sprintf("%s (%s)", e.Name, e.Message)
	} else {
		msg = fmt.Sprintf("%s:%d (%s)", sqlitec.UnknownCodeName, e.Code, e.Message)
	}
	if e.SQL != "" {
		msg += fmt.Sprintf(" (sql=%s)", e.SQL)
	}
	return msg
}

// Unwrap returns the sentinel the error stands for, if any.
func (e *Error) Unwrap() error {
	return e.sentinel
}

// KindOf returns the Kind of the first *Error in the chain of err, or
// KindUnknown if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// RetryError is returned by a backup or restore whose steps kept
// reporting busy after every allowed retry.
type RetryError struct {
	// Retries is the number of retries performed.
	Retries int
	// Last is the busy error of the final step.
	Last *Error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%s after %d retries: %s", ErrRetriesExhausted, e.Retries, e.Last)
}

func (e *RetryError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.Last}
}
