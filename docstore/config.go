package docstore

import (
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/viant/sqlite-docstore/schema"
	"github.com/viant/sqlite-docstore/vector"
)

const (
	DefaultDatabase       = "docstore.sqlite"
	DefaultTable          = "default_table"
	DefaultMaxConnections = 10
	DefaultPartitions     = 128
	DefaultBatchSize      = 10000
	DefaultBusyTimeout    = 5 * time.Second
	DefaultAcquireTimeout = 30 * time.Second
	DefaultDumpDType      = vector.Float64
)

// Config holds the construction parameters of a Store. Zero fields take the
// defaults above.
type Config struct {
	// Database is the SQLite file path or file: URI.
	Database string
	// Table is the primary table name.
	Table string
	// SnapshotTable is the snapshot table name, "<Table>_snapshot" by default.
	SnapshotTable string
	// MaxConnections bounds the connection pool.
	MaxConnections int
	// AcquireTimeout bounds how long an operation waits for a connection.
	AcquireTimeout time.Duration
	// BusyTimeout bounds how long a connection waits for a competing writer.
	BusyTimeout time.Duration
	// DumpDType is the numeric encoding of stored embedding buffers.
	DumpDType vector.DType
	// DryRun skips opening the database. Only lifecycle calls are valid.
	DryRun bool
	// Partitions is the shard count. It is fixed for the lifetime of the
	// table: changing it invalidates stored shard assignments.
	Partitions int
	// MuteUniqueWarnings suppresses the warning logged when Add rolls back a
	// batch on a duplicate id.
	MuteUniqueWarnings bool
	// BatchSize is the number of rows fetched per round trip by streaming
	// reads.
	BatchSize int
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	c := Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.Table == "" {
		c.Table = DefaultTable
	}
	if c.SnapshotTable == "" {
		c.SnapshotTable = c.Table + "_snapshot"
	}
	if c.MaxConnections == 0 {
		c.MaxConnections = DefaultMaxConnections
	}
	if c.AcquireTimeout == 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = DefaultBusyTimeout
	}
	if c.DumpDType == "" {
		c.DumpDType = DefaultDumpDType
	}
	if c.Partitions == 0 {
		c.Partitions = DefaultPartitions
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
}

// Validate reports the first invalid field after defaults are applied.
func (c Config) Validate() error {
	c.applyDefaults()
	switch {
	case !schema.ValidIdentifier(c.Table):
		return fmt.Errorf("invalid table name %q", c.Table)
	case !schema.ValidIdentifier(c.SnapshotTable):
		return fmt.Errorf("invalid snapshot table name %q", c.SnapshotTable)
	case c.SnapshotTable == c.Table:
		return fmt.Errorf("snapshot table must differ from table %q", c.Table)
	case c.SnapshotTable == schema.RegistryTable || c.Table == schema.RegistryTable:
		return fmt.Errorf("%q is reserved for the schema registry", schema.RegistryTable)
	case c.Partitions < 0:
		return fmt.Errorf("partitions must be positive, got %d", c.Partitions)
	case c.MaxConnections < 0:
		return fmt.Errorf("max connections must be positive, got %d", c.MaxConnections)
	case c.BatchSize < 0:
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	case !c.DumpDType.Valid():
		return fmt.Errorf("unsupported dump dtype %q", string(c.DumpDType))
	}
	return nil
}

type options struct {
	logger  *Logger
	codec   Codec
	metrics *metrics.Set
}

// Option configures optional collaborators of a Store.
type Option func(*options)

// WithLogger sets the logger. If nil is passed, NoopLogger is used.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithCodec sets the payload codec. If nil is passed, JSONCodec is used.
func WithCodec(c Codec) Option {
	return func(o *options) {
		if c == nil {
			c = JSONCodec{}
		}
		o.codec = c
	}
}

// WithMetricsSet registers the store metrics in set instead of a private set.
func WithMetricsSet(set *metrics.Set) Option {
	return func(o *options) {
		o.metrics = set
	}
}
