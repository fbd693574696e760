// Package pool bounds and scopes access to pooled database connections.
//
// database/sql already recycles connections; Pool adds a context-aware
// acquisition bound, so callers block (or time out) when every connection is
// leased, and scoped helpers that return the connection to the pool on every
// exit path.
package pool
