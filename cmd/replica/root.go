package replica

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/viant/sqlite-docstore/cmd/util"
	"github.com/viant/sqlite-docstore/dump"
	"github.com/viant/sqlite-docstore/vecsync"
)

// ReplicaCmd follows a docstore server and answers kNN queries from memory.
var ReplicaCmd = &cobra.Command{
	Use:   "replica",
	Short: "Replicate shards from a docstore server into memory",
	Long: `Replicate shards from a docstore server into memory: the replica is seeded
from the server snapshot and follows it through deltas. With --query it
syncs once and prints the nearest neighbours; with --watch it keeps
syncing every --interval until interrupted.`,
	Args: cobra.NoArgs,
	RunE: run,
}

func init() {
	f := ReplicaCmd.Flags()
	f.String("server", "http://localhost:8080", util.WrapString("Base URL of the docstore server"))
	f.String("shards", "", util.WrapString("Shards to replicate, e.g. 0,2,8-15 (default all)"))
	f.String("index", string(vecsync.BruteForce), util.WrapString("kNN index (bruteforce, vptree)"))
	f.String("compression", "zstd", util.WrapString("Stream compression (none, lz4, zstd)"))
	f.String("query", "", util.WrapString("Comma-separated query vector"))
	f.Int("k", 10, util.WrapString("Number of neighbours to print"))
	f.Bool("watch", false, util.WrapString("Keep syncing until interrupted"))
	f.Duration("interval", vecsync.DefaultInterval, util.WrapString("Delay between syncs with --watch"))
}

func run(cmd *cobra.Command, _ []string) error {
	logger, err := util.Logger()
	if err != nil {
		return err
	}
	shards, err := util.Shards(viper.GetString("shards"), viper.GetInt("partitions"))
	if err != nil {
		return err
	}
	compression, err := dump.ParseCompression(viper.GetString("compression"))
	if err != nil {
		return err
	}
	idx, err := vecsync.NewIndex(vecsync.IndexKind(viper.GetString("index")))
	if err != nil {
		return err
	}
	query, err := ParseVector(viper.GetString("query"))
	if err != nil {
		return err
	}
	replica := vecsync.NewReplica(idx)
	source := &vecsync.HTTPSource{BaseURL: viper.GetString("server"), Compression: compression}
	syncer, err := vecsync.NewSyncer(source, replica, vecsync.Config{
		Shards:   shards,
		Interval: viper.GetDuration("interval"),
	}, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if viper.GetBool("watch") {
		err := syncer.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	state, err := syncer.Sync(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "replicated %d embeddings from shards %s, watermark %s\n", replica.Len(), state.Shards, state.Watermark.Format(time.RFC3339Nano))
	if query == nil {
		return nil
	}
	ids, scores, err := replica.Query(query, viper.GetInt("k"))
	if err != nil {
		return err
	}
	for i, id := range ids {
		fmt.Fprintf(out, "%s\t%.6f\n", id, scores[i])
	}
	return nil
}

// ParseVector parses a comma-separated list of numbers; empty text yields
// nil.
func ParseVector(text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	parts := strings.Split(text, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid query value %q: %w", p, err)
		}
		out[i] = float32(v)
	}
	return out, nil
}
