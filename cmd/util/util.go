package util

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/viant/sqlite-docstore/docstore"
	"github.com/viant/sqlite-docstore/shard"
	"github.com/viant/sqlite-docstore/vector"
)

// Wrap is the column at which flag help text is wrapped.
const Wrap = 50

// WrapString wraps text at Wrap columns.
func WrapString(text string) string {
	var lines []string
	var line strings.Builder
	for _, word := range strings.Fields(text) {
		if line.Len() > 0 && line.Len()+1+len(word) > Wrap {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

// SetupStoreFlags adds the store configuration flags to cmd.
func SetupStoreFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String("database", docstore.DefaultDatabase, WrapString("SQLite database file or file: URI"))
	f.String("table", docstore.DefaultTable, WrapString("Name of the document table"))
	f.String("snapshot-table", "", WrapString("Name of the snapshot table (default <table>_snapshot)"))
	f.Int("partitions", docstore.DefaultPartitions, WrapString("Number of shards. Must not change once the table holds data"))
	f.Int("max-connections", docstore.DefaultMaxConnections, WrapString("Maximum number of pooled connections"))
	f.Int("batch-size", docstore.DefaultBatchSize, WrapString("Rows fetched per round trip by streaming reads"))
	f.String("dtype", string(docstore.DefaultDumpDType), WrapString("Numeric encoding of stored embeddings (float32, float64)"))
	f.Duration("busy-timeout", docstore.DefaultBusyTimeout, WrapString("How long a connection waits for a competing writer"))
	f.Duration("acquire-timeout", docstore.DefaultAcquireTimeout, WrapString("How long an operation waits for a free connection"))
	f.Bool("dry-run", false, WrapString("Do not connect to the database"))
	f.Bool("mute-unique-warnings", false, WrapString("Do not log batches rolled back on duplicate ids"))
	f.String("log-level", "info", WrapString("Log level (debug, info, warn, error)"))
	f.String("log-format", "text", WrapString("Log format (text, json)"))
}

// InitConfig loads .env files and enables DOCSTORE_ environment variables.
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("docstore")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// BindCommandFlags binds the flags of cmd, inherited ones included, to viper.
func BindCommandFlags(cmd *cobra.Command, _ []string) error {
	return viper.BindPFlags(cmd.Flags())
}

// StoreConfig reads the store configuration from viper.
func StoreConfig() (docstore.Config, error) {
	dtype, err := vector.ParseDType(viper.GetString("dtype"))
	if err != nil {
		return docstore.Config{}, err
	}
	cfg := docstore.Config{
		Database:           viper.GetString("database"),
		Table:              viper.GetString("table"),
		SnapshotTable:      viper.GetString("snapshot-table"),
		Partitions:         viper.GetInt("partitions"),
		MaxConnections:     viper.GetInt("max-connections"),
		BatchSize:          viper.GetInt("batch-size"),
		DumpDType:          dtype,
		BusyTimeout:        viper.GetDuration("busy-timeout"),
		AcquireTimeout:     viper.GetDuration("acquire-timeout"),
		DryRun:             viper.GetBool("dry-run"),
		MuteUniqueWarnings: viper.GetBool("mute-unique-warnings"),
	}
	return cfg, cfg.Validate()
}

// Logger builds the logger selected by the log flags.
func Logger() (*docstore.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", viper.GetString("log-level"))
	}
	switch viper.GetString("log-format") {
	case "text", "":
		return docstore.NewTextLogger(level), nil
	case "json":
		return docstore.NewJSONLogger(level), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", viper.GetString("log-format"))
	}
}

// OpenStore opens the configured store. The caller closes it.
func OpenStore(ctx context.Context) (*docstore.Store, error) {
	cfg, err := StoreConfig()
	if err != nil {
		return nil, err
	}
	logger, err := Logger()
	if err != nil {
		return nil, err
	}
	return docstore.New(ctx, cfg, docstore.WithLogger(logger))
}

// WithStore opens the store, runs fn and closes the store.
func WithStore(cmd *cobra.Command, fn func(ctx context.Context, s *docstore.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := OpenStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

// Shards parses a shard set flag value; empty selects every shard.
func Shards(text string, partitions int) (*shard.Set, error) {
	if strings.TrimSpace(text) == "" {
		return shard.Range(0, partitions), nil
	}
	return shard.ParseSet(text)
}
