// Package sqlitedrv provides a database/sql/driver implementation on top
// of the statement-tracked connections of the trackdb package.
//
// Importing the package registers the driver as "sqlitetrack". Use
// NewConnector with sql.OpenDB to set options, and RawConn through
// sql.Conn.Raw to reach the underlying *trackdb.Conn.
package sqlitedrv

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"time"

	"github.com/nsqlite/sqlitetrack/internal/log"
	"github.com/nsqlite/sqlitetrack/internal/sqlitec"
	"github.com/nsqlite/sqlitetrack/internal/trackdb"
)

// DriverName is the name the driver is registered with.
const DriverName = "sqlitetrack"

func init() {
	sql.Register(DriverName, &Driver{})
}

var (
	_ driver.Driver        = (*Driver)(nil)
	_ driver.DriverContext = (*Driver)(nil)
	_ driver.Connector     = (*Connector)(nil)
)

// Driver implements the database/sql/driver interface. The DSN is the
// database path.
type Driver struct{}

// Open creates a new connection to the SQLite database
func (d *Driver) Open(dsn string) (driver.Conn, error) {
	return NewConnector(dsn).Connect(context.Background())
}

// OpenConnector returns a Connector for the given database path.
func (d *Driver) OpenConnector(dsn string) (driver.Connector, error) {
	return NewConnector(dsn), nil
}

type connectorOption func(*Connector)

// WithFlags sets the flags the database is opened with.
func WithFlags(flags sqlitec.OpenFlags) connectorOption {
	return func(connector *Connector) {
		connector.flags = flags
	}
}

// WithPostConnectQueries sets a slice of queries to be executed after a
// connection is established
func WithPostConnectQueries(queries []string) connectorOption {
	return func(connector *Connector) {
		connector.postConnectQueries = queries
	}
}

// WithLogger sets the logger of the connections.
func WithLogger(logger log.Logger) connectorOption {
	return func(connector *Connector) {
		connector.logger = logger
	}
}

// WithBusyTimeout sets how long the connections wait on a locked database.
func WithBusyTimeout(timeout time.Duration) connectorOption {
	return func(connector *Connector) {
		connector.busyTimeout = timeout
	}
}

// WithStatementCacheSize enables the statement cache used by queries run
// directly on the connection.
func WithStatementCacheSize(size int) connectorOption {
	return func(connector *Connector) {
		connector.statementCacheSize = size
	}
}

// Connector implements the database/sql/driver.Connector interface
type Connector struct {
	path               string
	flags              sqlitec.OpenFlags
	logger             log.Logger
	busyTimeout        time.Duration
	statementCacheSize int
	postConnectQueries []string
}

// NewConnector creates a new connector to the SQLite database at path.
func NewConnector(path string, options ...connectorOption) *Connector {
	connector := &Connector{
		path:  path,
		flags: sqlitec.DefaultOpenFlags,
	}

	for _, option := range options {
		option(connector)
	}

	if !connector.logger.IsInitialized() {
		connector.logger = log.NewLogger(io.Discard)
	}

	return connector
}

// Connect creates a new connection to the SQLite database
func (connector *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := trackdb.Open(connector.path, connector.flags, trackdb.Config{
		Logger:             connector.logger,
		BusyTimeout:        connector.busyTimeout,
		StatementCacheSize: connector.statementCacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	for _, query := range connector.postConnectQueries {
		if err := conn.Exec(query); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf(`failed to execute "%s" post-connect query: %w`, query, err)
		}
	}

	connector.logger.DebugNs(log.NsDriver, "connection established", log.KV{
		"id":   conn.ID(),
		"path": connector.path,
	})

	return &Conn{
		conn:   conn,
		logger: connector.logger,
	}, nil
}

// Driver returns the driver
func (connector *Connector) Driver() driver.Driver {
	return &Driver{}
}
