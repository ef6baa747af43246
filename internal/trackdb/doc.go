// Package trackdb provides a statement-tracked SQLite connection.
//
// A Conn owns exactly one engine database handle. Every operation that
// touches the handle is serialized by a single mutex, every prepared
// statement is tracked until it is finalized, and closing the connection
// finalizes the statements still alive before releasing the handle.
//
// Engine result codes that are not success are converted to *Error values
// classified by Kind.
package trackdb
