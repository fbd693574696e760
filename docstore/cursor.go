package docstore

import (
	"context"
	"database/sql"

	"github.com/viant/sqlite-docstore/pool"
)

// fetchFunc reads up to limit entries ordered by id, strictly after the id
// `after` unless first is set.
type fetchFunc func(ctx context.Context, tx *sql.Tx, after string, first bool, limit int) ([]Entry, error)

// Cursor streams entries in id order. It reads in bounded batches inside a
// single read transaction, so memory use is independent of the result size
// and every batch observes the same point in time.
//
// A Cursor must be closed; Close releases the transaction and the pooled
// connection. Iterating to the end or hitting an error closes it as well.
// Cursors are not safe for concurrent use.
type Cursor struct {
	ctx    context.Context
	store  *Store
	stream string
	lease  *pool.Lease
	fetch  fetchFunc
	limit  int

	batch     []Entry
	pos       int
	last      string
	started   bool
	exhausted bool
	current   Entry
	rows      int
	err       error
	done      bool
}

func emptyCursor() *Cursor { return &Cursor{done: true} }

// Next advances to the next entry. It returns false at the end of the
// stream or on error; check Err afterwards.
func (c *Cursor) Next() bool {
	if c.done {
		return false
	}
	if c.pos >= len(c.batch) {
		if c.exhausted {
			c.finish(nil)
			return false
		}
		if err := c.ctx.Err(); err != nil {
			c.finish(err)
			return false
		}
		batch, err := c.fetch(c.ctx, c.lease.Tx, c.last, !c.started, c.limit)
		if err != nil {
			c.finish(err)
			return false
		}
		c.started = true
		c.batch, c.pos = batch, 0
		if len(batch) < c.limit {
			c.exhausted = true
		}
		if len(batch) == 0 {
			c.finish(nil)
			return false
		}
		c.last = batch[len(batch)-1].ID
	}
	c.current = c.batch[c.pos]
	c.batch[c.pos] = Entry{}
	c.pos++
	c.rows++
	return true
}

// Entry returns the entry Next advanced to.
func (c *Cursor) Entry() Entry { return c.current }

// Err returns the error that ended the stream, tagged KindWarning (or
// KindTransient for connectivity failures). Entries consumed before the
// failure are not retracted.
func (c *Cursor) Err() error { return c.err }

// Close ends the stream early and releases its resources. It is safe to call
// more than once.
func (c *Cursor) Close() error {
	if c.done {
		return nil
	}
	c.done = true
	c.batch = nil
	return c.lease.Rollback()
}

func (c *Cursor) finish(err error) {
	if c.done {
		return
	}
	c.done = true
	c.batch = nil
	if err != nil {
		_ = c.lease.Rollback()
		c.err = c.store.readError(c.stream, err)
	} else {
		_ = c.lease.Commit()
	}
	c.store.logger.LogStream(c.ctx, c.stream, c.rows, c.err)
	c.store.metrics.rows(c.stream, c.rows)
}
