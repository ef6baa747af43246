package sqlitetrackbench

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/nsqlite/sqlitetrack/internal/log"
	"github.com/nsqlite/sqlitetrack/internal/sqlitedrv"
)

const busyTimeout = 5 * time.Second

func createMattnDriver(dir string, out io.Writer) (*sql.DB, error) {
	dbPath := path.Join(dir, "mattn", "bench.db")

	if err := os.MkdirAll(path.Dir(dbPath), 0755); err != nil {
		return nil, err
	}
	fmt.Fprintln(out, "mattn/go-sqlite3 db path:", dbPath)

	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=%d", dbPath, busyTimeout.Milliseconds()))
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

func createTrackedDriver(dir string, out io.Writer, logger log.Logger) (*sql.DB, error) {
	dbPath := path.Join(dir, "sqlitetrack", "bench.db")

	if err := os.MkdirAll(path.Dir(dbPath), 0755); err != nil {
		return nil, err
	}
	fmt.Fprintln(out, "sqlitetrack db path:", dbPath)

	db := sql.OpenDB(sqlitedrv.NewConnector(
		dbPath,
		sqlitedrv.WithLogger(logger),
		sqlitedrv.WithBusyTimeout(busyTimeout),
		sqlitedrv.WithStatementCacheSize(32),
		sqlitedrv.WithPostConnectQueries([]string{`PRAGMA foreign_keys = ON`}),
	))

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
