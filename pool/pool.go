package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

var (
	// ErrExhausted is returned when no connection became free before the
	// acquisition deadline.
	ErrExhausted = errors.New("pool: connections exhausted")
	// ErrUnavailable wraps failures reported by the backend while obtaining
	// or starting work on a connection.
	ErrUnavailable = errors.New("pool: backend unavailable")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("pool: closed")
)

// Options configures a Pool.
type Options struct {
	// MaxConnections bounds the number of concurrently leased connections.
	MaxConnections int
	// AcquireTimeout bounds how long Acquire waits for a free connection.
	// Zero waits until the caller's context is done.
	AcquireTimeout time.Duration
}

// Pool leases connections from a *sql.DB.
type Pool struct {
	db      *sql.DB
	sem     *semaphore.Weighted
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
}

// New wraps db. The database handle is owned by the pool and closed by Close.
func New(db *sql.DB, opts Options) (*Pool, error) {
	if db == nil {
		return nil, fmt.Errorf("pool: db is nil")
	}
	if opts.MaxConnections <= 0 {
		return nil, fmt.Errorf("pool: MaxConnections must be positive, got %d", opts.MaxConnections)
	}
	db.SetMaxOpenConns(opts.MaxConnections)
	db.SetMaxIdleConns(opts.MaxConnections)
	return &Pool{
		db:      db,
		sem:     semaphore.NewWeighted(int64(opts.MaxConnections)),
		timeout: opts.AcquireTimeout,
	}, nil
}

// Conn is a leased connection. Release must be called exactly once; extra
// calls are ignored.
type Conn struct {
	*sql.Conn
	once    sync.Once
	release func()
}

// Release closes the leased connection, returning it to the pool.
func (c *Conn) Release() {
	c.once.Do(func() {
		_ = c.Conn.Close()
		c.release()
	})
}

// Acquire leases a connection, blocking while the pool is exhausted.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	waitCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: waited %s: %v", ErrExhausted, p.timeout, err)
	}
	conn, err := p.db.Conn(ctx)
	if err != nil {
		p.sem.Release(1)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return &Conn{Conn: conn, release: func() { p.sem.Release(1) }}, nil
}

// Lease is a connection with an open transaction, handed to long-lived
// readers such as streaming cursors.
type Lease struct {
	Tx   *sql.Tx
	conn *Conn
	once sync.Once
}

// Commit commits the transaction and releases the connection.
func (l *Lease) Commit() error {
	err := l.Tx.Commit()
	l.release()
	return err
}

// Rollback aborts the transaction and releases the connection.
func (l *Lease) Rollback() error {
	err := l.Tx.Rollback()
	l.release()
	return err
}

func (l *Lease) release() { l.once.Do(l.conn.Release) }

// Begin leases a connection and starts a transaction on it. The caller must
// end the lease with Commit or Rollback.
func (p *Pool) Begin(ctx context.Context, opts *sql.TxOptions) (*Lease, error) {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := conn.BeginTx(ctx, opts)
	if err != nil {
		conn.Release()
		return nil, fmt.Errorf("%w: begin: %w", ErrUnavailable, err)
	}
	return &Lease{Tx: tx, conn: conn}, nil
}

// Tx runs fn inside a transaction on a leased connection. The transaction is
// committed when fn returns nil and rolled back otherwise; the connection is
// released on every path, including panics.
func (p *Pool) Tx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	lease, err := p.Begin(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = lease.Rollback()
		}
	}()
	if err = fn(lease.Tx); err != nil {
		return err
	}
	committed = true
	return lease.Commit()
}

// Stats returns database/sql pool statistics.
func (p *Pool) Stats() sql.DBStats { return p.db.Stats() }

// DB exposes the underlying handle for one-off statements that do not need
// a transaction.
func (p *Pool) DB() *sql.DB { return p.db }

// Close closes the underlying database. Leased connections should be
// released first.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}
