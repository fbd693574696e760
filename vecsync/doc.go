// Package vecsync keeps in-memory replicas of a document store's embeddings
// up to date. A replica owns a subset of shards: it is seeded from the
// store's snapshot and then follows the primary table through timestamp
// deltas, either in process or over the HTTP dump API.
package vecsync
