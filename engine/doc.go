// Package engine provides helpers for working with the modernc.org/sqlite
// driver in this module: building DSNs with the pragmas the store relies on,
// opening connections and registering SQL scalar functions. It intentionally
// keeps a thin surface so other packages can share the same driver instance.
package engine
