package engine

import (
	"database/sql/driver"
	"fmt"
	"sync"

	"github.com/viant/sqlite-docstore/shard"
	sqlite "modernc.org/sqlite"
)

// ShardFunction is the SQL name of the shard routing function.
const ShardFunction = "shard_of"

var registerOnce sync.Once

// RegisterFunctions registers shard_of(id, partitions) with the driver so it
// is available on new connections opened after this call. The function
// mirrors shard.For so SQL can verify stored shard assignments.
// Note: existing open connections will not see new functions.
func RegisterFunctions() error {
	var err error
	registerOnce.Do(func() {
		err = sqlite.RegisterDeterministicScalarFunction(ShardFunction, 2, shardOfImpl)
	})
	return err
}

func shardOfImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("%s: expected 2 arguments, got %d", ShardFunction, len(args))
	}
	var id string
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		id = v
	case []byte:
		id = string(v)
	default:
		return nil, fmt.Errorf("%s: unsupported id type %T; want TEXT", ShardFunction, args[0])
	}
	partitions, ok := args[1].(int64)
	if !ok {
		return nil, fmt.Errorf("%s: unsupported partitions type %T; want INTEGER", ShardFunction, args[1])
	}
	if partitions <= 0 {
		return nil, fmt.Errorf("%s: partitions must be positive, got %d", ShardFunction, partitions)
	}
	return int64(shard.For(id, int(partitions))), nil
}
