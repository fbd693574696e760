package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/viant/sqlite-docstore/pool"
	"github.com/viant/sqlite-docstore/schema"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Kind classifies errors by how they propagate.
type Kind int

const (
	// KindFatal aborts initialization, e.g. a schema version mismatch or an
	// invalid configuration. The store cannot be used.
	KindFatal Kind = iota + 1
	// KindTransient covers connectivity failures: pool exhaustion, an
	// unreachable or failing backend, cancelled contexts. Callers may retry.
	KindTransient
	// KindConflict marks a uniqueness violation. Add recovers from it
	// locally; it surfaces only from lower-level helpers.
	KindConflict
	// KindWarning marks data-integrity problems on reads (failed streams,
	// missing snapshot). Operations log them and return empty results.
	KindWarning
)

func (k Kind) String() string {
	switch k {
	case KindFatal:
		return "fatal"
	case KindTransient:
		return "transient"
	case KindConflict:
		return "conflict"
	case KindWarning:
		return "warning"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	// ErrDryRun is returned by data operations of a store opened with DryRun.
	ErrDryRun = errors.New("docstore: store is in dry run mode")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("docstore: store is closed")
)

// Error is an error tagged with its Kind and the operation that failed.
//
// The original underlying error can be accessed via errors.Unwrap.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("docstore: %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind attached to err, if any.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindTransient
}

// IsFatal reports whether err is a startup failure.
func IsFatal(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindFatal
}

// classify tags err with its Kind.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return err
	}
	var verr *schema.VersionError
	switch {
	case errors.As(err, &verr):
		return &Error{Kind: KindFatal, Op: op, Err: err}
	case isConflict(err):
		return &Error{Kind: KindConflict, Op: op, Err: err}
	case errors.Is(err, pool.ErrExhausted), errors.Is(err, pool.ErrUnavailable), errors.Is(err, pool.ErrClosed),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTransient, Op: op, Err: err}
	}
	if isUnavailable(err) {
		return &Error{Kind: KindTransient, Op: op, Err: err}
	}
	return err
}

// isUnavailable reports SQLite failures of the backend itself (locking,
// I/O, disk) as opposed to errors in the statement or the data.
func isUnavailable(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_CANTOPEN,
		sqlite3.SQLITE_FULL, sqlite3.SQLITE_PROTOCOL:
		return true
	}
	return false
}

// isConflict reports a primary key or unique constraint violation.
func isConflict(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(serr.Error(), "UNIQUE constraint failed")
	}
	return false
}
