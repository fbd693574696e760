package engine

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// DriverName is the database/sql driver name registered by modernc.org/sqlite.
const DriverName = "sqlite"

// Options controls the connection-level pragmas applied to every pooled
// connection.
type Options struct {
	// BusyTimeout makes a connection wait for a competing writer instead of
	// failing immediately with SQLITE_BUSY.
	BusyTimeout time.Duration
	// WAL switches the journal to write-ahead logging so readers do not block
	// writers (required for long snapshot/delta streams).
	WAL bool
}

// DSN renders a modernc.org/sqlite data source name for path with the given
// pragmas. Plain paths are converted to file: URIs; existing URIs keep their
// query parameters.
func DSN(path string, opts Options) string {
	if path == "" {
		path = ":memory:"
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	var params []string
	if opts.BusyTimeout > 0 {
		params = append(params, "_pragma="+url.QueryEscape(fmt.Sprintf("busy_timeout(%d)", opts.BusyTimeout.Milliseconds())))
	}
	if opts.WAL {
		params = append(params, "_pragma="+url.QueryEscape("journal_mode(WAL)"))
	}
	if len(params) == 0 {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&")
}

// Open opens a SQLite database using the modernc.org/sqlite driver.
//
// For file-based databases, pass a path like "./db.sqlite". For in-memory
// databases, pass ":memory:"; note that every pooled connection then sees its
// own private database.
func Open(dsn string) (*sql.DB, error) { return sql.Open(DriverName, dsn) }

// OpenFile opens path with the pragmas described by opts.
func OpenFile(path string, opts Options) (*sql.DB, error) {
	return Open(DSN(path, opts))
}
