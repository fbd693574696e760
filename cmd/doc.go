// Package cmd implements the docstore command-line interface.
//
// Subpackages:
//
//   - data: document table commands (init, size, add, delete, cleanup, clear, verify-shards)
//   - snapshot: snapshot and delta commands (snapshot, snapshot-size, timestamps, export)
//   - serve: the HTTP server
//   - replica: an in-memory replica following a server
//   - util: shared flag and configuration handling
//
// Every flag can also be set through the environment as DOCSTORE_<FLAG>, with
// dashes replaced by underscores, or through .env and .env.local files.
package cmd
