// Package shard maps document identifiers to logical shards and provides a
// compact set type for the shard ranges replicas subscribe to.
//
// Shard assignment is a pure function of the identifier bytes: the SHA-256
// digest of the UTF-8 id, read as a big-endian unsigned integer, reduced
// modulo the partition count. Any implementation that follows the same
// formula agrees on ownership without coordination.
package shard
