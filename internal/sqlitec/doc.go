// Package sqlitec is the native boundary of sqlitetrack. It exposes the
// SQLite C API as an Engine whose calls return raw SQLite result codes and
// refer to databases, statements and backups through opaque numeric
// handles.
//
// The default Engine is backed by github.com/mattn/go-sqlite3.
//
//   - https://www.sqlite.org/cintro.html
//   - https://www.sqlite.org/c3ref/intro.html
package sqlitec
