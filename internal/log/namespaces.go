package log

// Namespaces used across sqlitetrack.
const (
	NsTrackDB   = "trackdb"
	NsDriver    = "sqlitedrv"
	NsShell     = "shell"
	NsBenchmark = "bench"
)
