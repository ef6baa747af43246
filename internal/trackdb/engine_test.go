package trackdb

import (
	"bytes"
	"sync"
	"testing"

	"github.com/nsqlite/sqlitetrack/internal/log"
	"github.com/nsqlite/sqlitetrack/internal/sqlitec"
	"github.com/stretchr/testify/require"
)

// faultyEngine wraps the real engine, records the calls that matter for
// the lifecycle tests and injects failures.
type faultyEngine struct {
	sqlitec.Engine

	mu           sync.Mutex
	events       []string
	opens        int
	closes       int
	failFinalize bool
	busySteps    int
	busyReported int
}

func newFaultyEngine() *faultyEngine {
	return &faultyEngine{Engine: sqlitec.NewEngine()}
}

func (f *faultyEngine) Open(
	filename []byte, flags sqlitec.OpenFlags, options sqlitec.DSNOptions,
) (sqlitec.Handle, int) {
	f.mu.Lock()
	f.opens++
	f.mu.Unlock()
	return f.Engine.Open(filename, flags, options)
}

func (f *faultyEngine) Close(db sqlitec.Handle) int {
	f.mu.Lock()
	f.closes++
	f.events = append(f.events, "close")
	f.mu.Unlock()
	return f.Engine.Close(db)
}

func (f *faultyEngine) Finalize(stmt sqlitec.Handle) int {
	rc := f.Engine.Finalize(stmt)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "finalize")
	if f.failFinalize {
		return sqlitec.SQLITE_ERROR
	}
	return rc
}

func (f *faultyEngine) BackupStep(backup sqlitec.Handle, pages int) int {
	f.mu.Lock()
	if f.busySteps > 0 {
		f.busySteps--
		f.busyReported++
		f.mu.Unlock()
		return sqlitec.SQLITE_BUSY
	}
	f.mu.Unlock()
	return f.Engine.BackupStep(backup, pages)
}

func (f *faultyEngine) snapshot() (events []string, opens, closes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...), f.opens, f.closes
}

// newTestConfig returns a Config logging into the returned buffer.
func newTestConfig(engine sqlitec.Engine) (Config, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return Config{
		Logger: log.NewLogger(buf),
		Engine: engine,
	}, buf
}

// openTestConn opens an in-memory Conn closed at the end of the test.
func openTestConn(t *testing.T, config Config) *Conn {
	t.Helper()
	conn, err := Open(":memory:", sqlitec.DefaultOpenFlags, config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
