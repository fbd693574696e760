package shard

import (
	"crypto/sha256"
	"fmt"
	"math/big"
)

// For returns the shard of id for the given number of partitions, in
// [0, partitions). It panics when partitions is not positive; stores validate
// the partition count at construction.
func For(id string, partitions int) int {
	if partitions <= 0 {
		panic(fmt.Sprintf("shard: partitions must be positive, got %d", partitions))
	}
	sum := sha256.Sum256([]byte(id))
	n := new(big.Int).SetBytes(sum[:])
	return int(n.Mod(n, big.NewInt(int64(partitions))).Int64())
}

// Owns reports whether id belongs to one of the shards in set.
func Owns(set *Set, id string, partitions int) bool {
	return set.Contains(For(id, partitions))
}
