package data

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/viant/sqlite-docstore/cmd/util"
	"github.com/viant/sqlite-docstore/docstore"
)

var (
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create the document table if needed and check its schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.WithStore(cmd, func(ctx context.Context, s *docstore.Store) error {
				fmt.Fprintf(cmd.OutOrStdout(), "table %s ready\n", s.Config().Table)
				return nil
			})
		},
	}
	sizeCmd = &cobra.Command{
		Use:   "size",
		Short: "Print the number of rows, tombstones included",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.WithStore(cmd, func(ctx context.Context, s *docstore.Store) error {
				n, err := s.Size(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
	addCmd = &cobra.Command{
		Use:   "add",
		Short: "Add documents from a JSON lines file",
		Long: `Add documents from a JSON lines file ("-" reads stdin). Each line holds
{"id": "...", "content": "...", "metadata": "...", "embedding": [...]}.
Documents are inserted in batches; a batch holding an existing id is skipped as a whole.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.WithStore(cmd, func(ctx context.Context, s *docstore.Store) error {
				in, closeIn, err := open(viper.GetString("file"), cmd.InOrStdin())
				if err != nil {
					return err
				}
				defer closeIn()
				n, err := Load(ctx, s, in, viper.GetInt("add-batch"))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "read %d documents\n", n)
				return nil
			})
		},
	}
	deleteCmd = &cobra.Command{
		Use:   "delete [id...]",
		Short: "Delete documents by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.WithStore(cmd, func(ctx context.Context, s *docstore.Store) error {
				n, err := s.Delete(ctx, args, viper.GetBool("soft"))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d documents\n", n)
				return nil
			})
		},
	}
	cleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "Remove soft-deleted documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.WithStore(cmd, func(ctx context.Context, s *docstore.Store) error {
				n, err := s.Cleanup(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d tombstones\n", n)
				return nil
			})
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Remove every document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !viper.GetBool("yes") {
				return fmt.Errorf("clear removes every document of the table; pass --yes to confirm")
			}
			return util.WithStore(cmd, func(ctx context.Context, s *docstore.Store) error {
				n, err := s.Clear(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d documents\n", n)
				return nil
			})
		},
	}
	verifyCmd = &cobra.Command{
		Use:   "verify-shards",
		Short: "List documents whose stored shard does not match the partition count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.WithStore(cmd, func(ctx context.Context, s *docstore.Store) error {
				ids, err := s.VerifyShards(ctx)
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				if len(ids) > 0 {
					return fmt.Errorf("%d documents are stored under a different partition count", len(ids))
				}
				return nil
			})
		},
	}
)

func init() {
	addCmd.Flags().String("file", "-", util.WrapString("JSON lines file to read, - for stdin"))
	addCmd.Flags().Int("add-batch", 1000, util.WrapString("Documents per insert transaction"))
	deleteCmd.Flags().Bool("soft", false, util.WrapString("Keep tombstones so deltas report the deletion"))
	clearCmd.Flags().Bool("yes", false, util.WrapString("Confirm removing every document"))
}

// Commands returns the document table commands.
func Commands() []*cobra.Command {
	return []*cobra.Command{initCmd, sizeCmd, addCmd, deleteCmd, cleanupCmd, clearCmd, verifyCmd}
}

func open(name string, stdin io.Reader) (io.Reader, func(), error) {
	if name == "" || name == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

type line struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Metadata  string    `json:"metadata"`
	Embedding []float64 `json:"embedding"`
}

// Load adds the JSON lines documents read from r in batches of batch and
// returns how many were read.
func Load(ctx context.Context, s *docstore.Store, r io.Reader, batch int) (int, error) {
	if batch <= 0 {
		batch = 1000
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64<<20)
	var (
		docs  []docstore.Document
		total int
		n     int
	)
	for scanner.Scan() {
		n++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		var l line
		if err := json.Unmarshal(text, &l); err != nil {
			return total, fmt.Errorf("line %d: %w", n, err)
		}
		if l.ID == "" {
			return total, fmt.Errorf("line %d: missing id", n)
		}
		docs = append(docs, docstore.Document{ID: l.ID, Content: l.Content, Metadata: l.Metadata, Embedding: l.Embedding})
		if len(docs) == batch {
			if err := s.Add(ctx, docs); err != nil {
				return total, err
			}
			total += len(docs)
			docs = docs[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return total, err
	}
	if len(docs) > 0 {
		if err := s.Add(ctx, docs); err != nil {
			return total, err
		}
		total += len(docs)
	}
	return total, nil
}
