// Package index defines the kNN index abstraction used by replicas to answer
// similarity queries over the embeddings they synchronized.
package index
