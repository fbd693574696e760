// Package vector defines how embeddings are stored as raw bytes. It includes:
//   - DType: the numeric encoding of persisted embedding buffers
//   - Float32 BLOB helpers used by replica indexes
//   - Distance functions backed by github.com/viant/vec
package vector
