package sqlitec

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// OpenFlags configures how a database is opened.
//
// https://www.sqlite.org/c3ref/c_open_autoproxy.html
type OpenFlags int

const (
	OpenReadOnly     OpenFlags = 0x00000001
	OpenReadWrite    OpenFlags = 0x00000002
	OpenCreate       OpenFlags = 0x00000004
	OpenMemory       OpenFlags = 0x00000080
	OpenNoMutex      OpenFlags = 0x00008000
	OpenFullMutex    OpenFlags = 0x00010000
	OpenSharedCache  OpenFlags = 0x00020000
	OpenPrivateCache OpenFlags = 0x00040000
)

// DefaultOpenFlags opens a database for reading and writing, creating it
// if it does not exist.
const DefaultOpenFlags = OpenReadWrite | OpenCreate

// Has reports whether all the bits of other are set.
func (f OpenFlags) Has(other OpenFlags) bool {
	return f&other == other
}

// Validate rejects flag combinations SQLite refuses to open with.
func (f OpenFlags) Validate() error {
	if f.Has(OpenReadOnly) && f.Has(OpenReadWrite) {
		return fmt.Errorf("open flags: read-only and read-write are mutually exclusive")
	}
	if f.Has(OpenCreate) && !f.Has(OpenReadWrite) {
		return fmt.Errorf("open flags: create requires read-write")
	}
	if f.Has(OpenNoMutex) && f.Has(OpenFullMutex) {
		return fmt.Errorf("open flags: no-mutex and full-mutex are mutually exclusive")
	}
	if f.Has(OpenSharedCache) && f.Has(OpenPrivateCache) {
		return fmt.Errorf("open flags: shared-cache and private-cache are mutually exclusive")
	}
	return nil
}

// String returns a readable list of the set flags.
func (f OpenFlags) String() string {
	names := []struct {
		flag OpenFlags
		name string
	}{
		{OpenReadOnly, "readonly"},
		{OpenReadWrite, "readwrite"},
		{OpenCreate, "create"},
		{OpenMemory, "memory"},
		{OpenNoMutex, "nomutex"},
		{OpenFullMutex, "fullmutex"},
		{OpenSharedCache, "sharedcache"},
		{OpenPrivateCache, "privatecache"},
	}

	parts := []string{}
	for _, n := range names {
		if f.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// DSNOptions holds the per-connection settings encoded in the DSN next to
// the open flags.
type DSNOptions struct {
	// BusyTimeout is how long SQLite itself waits on a locked database
	// before reporting SQLITE_BUSY. Zero keeps the driver default.
	BusyTimeout time.Duration
}

// uriPathEscaper escapes the characters SQLite gives a meaning to in the
// path of a URI filename.
var uriPathEscaper = strings.NewReplacer("%", "%25", "?", "%3F", "#", "%23")

// CreateDSN builds the URI filename for the given path and flags. A plain
// path is escaped so that it names exactly one file. A path that already
// starts with "file:" is taken as an encoded URI path.
//
// https://www.sqlite.org/uri.html
func CreateDSN(filename string, flags OpenFlags, options DSNOptions) string {
	qp := url.Values{}

	switch {
	case flags.Has(OpenMemory):
		qp.Add("mode", "memory")
	case flags.Has(OpenReadOnly):
		qp.Add("mode", "ro")
	case flags.Has(OpenReadWrite | OpenCreate):
		qp.Add("mode", "rwc")
	case flags.Has(OpenReadWrite):
		qp.Add("mode", "rw")
	}

	switch {
	case flags.Has(OpenSharedCache):
		qp.Add("cache", "shared")
	case flags.Has(OpenPrivateCache):
		qp.Add("cache", "private")
	}

	switch {
	case flags.Has(OpenNoMutex):
		qp.Add("_mutex", "no")
	case flags.Has(OpenFullMutex):
		qp.Add("_mutex", "full")
	}

	if options.BusyTimeout > 0 {
		qp.Add("_busy_timeout", fmt.Sprintf("%d", options.BusyTimeout.Milliseconds()))
	}

	if uri, ok := strings.CutPrefix(filename, "file:"); ok {
		filename = uri
	} else {
		filename = uriPathEscaper.Replace(filename)
	}
	if len(qp) == 0 {
		return "file:" + filename
	}
	return fmt.Sprintf("file:%s?%s", filename, qp.Encode())
}
