package sqlitec

// Primary result codes.
//
// https://www.sqlite.org/rescode.html
const (
	SQLITE_OK         = 0
	SQLITE_ERROR      = 1
	SQLITE_INTERNAL   = 2
	SQLITE_PERM       = 3
	SQLITE_ABORT      = 4
	SQLITE_BUSY       = 5
	SQLITE_LOCKED     = 6
	SQLITE_NOMEM      = 7
	SQLITE_READONLY   = 8
	SQLITE_INTERRUPT  = 9
	SQLITE_IOERR      = 10
	SQLITE_CORRUPT    = 11
	SQLITE_NOTFOUND   = 12
	SQLITE_FULL       = 13
	SQLITE_CANTOPEN   = 14
	SQLITE_PROTOCOL   = 15
	SQLITE_EMPTY      = 16
	SQLITE_SCHEMA     = 17
	SQLITE_TOOBIG     = 18
	SQLITE_CONSTRAINT = 19
	SQLITE_MISMATCH   = 20
	SQLITE_MISUSE     = 21
	SQLITE_NOLFS      = 22
	SQLITE_AUTH       = 23
	SQLITE_FORMAT     = 24
	SQLITE_RANGE      = 25
	SQLITE_NOTADB     = 26
	SQLITE_NOTICE     = 27
	SQLITE_WARNING    = 28
	SQLITE_ROW        = 100
	SQLITE_DONE       = 101
)

// Fundamental datatypes returned by ColumnType.
//
// https://www.sqlite.org/c3ref/c_blob.html
const (
	SQLITE_INTEGER = 1
	SQLITE_FLOAT   = 2
	SQLITE_TEXT    = 3
	SQLITE_BLOB    = 4
	SQLITE_NULL    = 5
)

// Row change operations reported to update hooks.
//
// https://www.sqlite.org/c3ref/c_alter_table.html
const (
	SQLITE_DELETE = 9
	SQLITE_INSERT = 18
	SQLITE_UPDATE = 23
)

// UnknownCodeName is the class name reported for codes outside the
// primary result code table.
const UnknownCodeName = "SQLITE_UNKNOWN"

var resCodeNames = map[int]string{
	SQLITE_OK:         "SQLITE_OK",
	SQLITE_ERROR:      "SQLITE_ERROR",
	SQLITE_INTERNAL:   "SQLITE_INTERNAL",
	SQLITE_PERM:       "SQLITE_PERM",
	SQLITE_ABORT:      "SQLITE_ABORT",
	SQLITE_BUSY:       "SQLITE_BUSY",
	SQLITE_LOCKED:     "SQLITE_LOCKED",
	SQLITE_NOMEM:      "SQLITE_NOMEM",
	SQLITE_READONLY:   "SQLITE_READONLY",
	SQLITE_INTERRUPT:  "SQLITE_INTERRUPT",
	SQLITE_IOERR:      "SQLITE_IOERR",
	SQLITE_CORRUPT:    "SQLITE_CORRUPT",
	SQLITE_NOTFOUND:   "SQLITE_NOTFOUND",
	SQLITE_FULL:       "SQLITE_FULL",
	SQLITE_CANTOPEN:   "SQLITE_CANTOPEN",
	SQLITE_PROTOCOL:   "SQLITE_PROTOCOL",
	SQLITE_EMPTY:      "SQLITE_EMPTY",
	SQLITE_SCHEMA:     "SQLITE_SCHEMA",
	SQLITE_TOOBIG:     "SQLITE_TOOBIG",
	SQLITE_CONSTRAINT: "SQLITE_CONSTRAINT",
	SQLITE_MISMATCH:   "SQLITE_MISMATCH",
	SQLITE_MISUSE:     "SQLITE_MISUSE",
	SQLITE_NOLFS:      "SQLITE_NOLFS",
	SQLITE_AUTH:       "SQLITE_AUTH",
	SQLITE_FORMAT:     "SQLITE_FORMAT",
	SQLITE_RANGE:      "SQLITE_RANGE",
	SQLITE_NOTADB:     "SQLITE_NOTADB",
	SQLITE_NOTICE:     "SQLITE_NOTICE",
	SQLITE_WARNING:    "SQLITE_WARNING",
	SQLITE_ROW:        "SQLITE_ROW",
	SQLITE_DONE:       "SQLITE_DONE",
}

// PrimaryCode strips the extended bits from a result code.
//
// https://www.sqlite.org/rescode.html#primary_result_codes_versus_extended_result_codes
func PrimaryCode(code int) int {
	return code & 0xff
}

// ResultCodeName returns the class name of the given result code, for
// example "SQLITE_BUSY". Extended codes resolve to their primary class.
func ResultCodeName(code int) string {
	if name, ok := resCodeNames[PrimaryCode(code)]; ok {
		return name
	}
	return UnknownCodeName
}

// IsKnownCode reports whether the code belongs to the primary result
// code table.
func IsKnownCode(code int) bool {
	_, ok := resCodeNames[PrimaryCode(code)]
	return ok
}

