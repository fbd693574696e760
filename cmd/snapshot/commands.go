package snapshot

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/viant/sqlite-docstore/blob"
	"github.com/viant/sqlite-docstore/cmd/util"
	"github.com/viant/sqlite-docstore/docstore"
	"github.com/viant/sqlite-docstore/dump"
)

var (
	createCmd = &cobra.Command{
		Use:   "snapshot",
		Short: "Replace the snapshot table with a copy of the document table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.WithStore(cmd, func(ctx context.Context, s *docstore.Store) error {
				if err := s.CreateSnapshot(ctx); err != nil {
					return err
				}
				n, err := s.SnapshotSize(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s holds %d rows\n", s.Config().SnapshotTable, n)
				return nil
			})
		},
	}
	sizeCmd = &cobra.Command{
		Use:   "snapshot-size",
		Short: "Print the number of rows in the snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.WithStore(cmd, func(ctx context.Context, s *docstore.Store) error {
				n, err := s.SnapshotSize(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
	timestampsCmd = &cobra.Command{
		Use:   "timestamps",
		Short: "Print the latest update captured by the snapshot and by the document table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.WithStore(cmd, func(ctx context.Context, s *docstore.Store) error {
				snap, err := s.SnapshotTimestamp(ctx)
				if err != nil {
					return err
				}
				data, err := s.DataTimestamp(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "snapshot\t%s\ndata\t%s\n", format(snap), format(data))
				return nil
			})
		},
	}
	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Write the snapshot, or the delta since a timestamp, as a dump file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetString("upload") != "" && viper.GetString("out") == "-" {
				return fmt.Errorf("--upload needs --out to name a file")
			}
			return util.WithStore(cmd, func(ctx context.Context, s *docstore.Store) error {
				n, err := Export(ctx, s, ExportOptions{
					Shards:      viper.GetString("shards"),
					Since:       viper.GetString("since"),
					Out:         viper.GetString("out"),
					Compression: viper.GetString("compression"),
				}, cmd.OutOrStdout())
				if err != nil {
					return err
				}
				target := viper.GetString("upload")
				if target == "" {
					return nil
				}
				up, err := blob.Open(target, blob.MinioOptions{
					Endpoint:  viper.GetString("s3-endpoint"),
					AccessKey: viper.GetString("s3-access-key"),
					SecretKey: viper.GetString("s3-secret-key"),
					Secure:    viper.GetBool("s3-secure"),
				})
				if err != nil {
					return err
				}
				out := viper.GetString("out")
				if err := up.Upload(ctx, filepath.Base(out), out); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "uploaded %d entries to %s\n", n, target)
				return nil
			})
		},
	}
)

func init() {
	f := exportCmd.Flags()
	f.String("shards", "", util.WrapString("Shards to export, e.g. 0,2,8-15 (default all)"))
	f.String("since", "", util.WrapString("Export the delta after this RFC 3339 timestamp instead of the snapshot"))
	f.String("out", "-", util.WrapString("Output file, - for stdout"))
	f.String("compression", "zstd", util.WrapString("Body compression (none, lz4, zstd)"))
	f.String("upload", "", util.WrapString("Upload the output file to s3://bucket/prefix or a directory"))
	f.String("s3-endpoint", "localhost:9000", util.WrapString("S3 compatible endpoint used by --upload"))
	f.String("s3-access-key", "", util.WrapString("S3 access key"))
	f.String("s3-secret-key", "", util.WrapString("S3 secret key"))
	f.Bool("s3-secure", false, util.WrapString("Use TLS for the S3 endpoint"))
}

// Commands returns the snapshot commands.
func Commands() []*cobra.Command {
	return []*cobra.Command{createCmd, sizeCmd, timestampsCmd, exportCmd}
}

func format(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Format(time.RFC3339Nano)
}

// ExportOptions selects what Export writes.
type ExportOptions struct {
	Shards      string
	Since       string
	Out         string
	Compression string
}

// Export writes a dump of the snapshot, or of the delta after opts.Since,
// to opts.Out ("-" writes to stdout) and returns the number of entries.
func Export(ctx context.Context, s *docstore.Store, opts ExportOptions, stdout io.Writer) (int, error) {
	shards, err := util.Shards(opts.Shards, s.Config().Partitions)
	if err != nil {
		return 0, err
	}
	compression, err := dump.ParseCompression(opts.Compression)
	if err != nil {
		return 0, err
	}
	var cursor *docstore.Cursor
	if opts.Since != "" {
		since, err := time.Parse(time.RFC3339Nano, opts.Since)
		if err != nil {
			return 0, fmt.Errorf("invalid since %q: %w", opts.Since, err)
		}
		cursor, err = s.Delta(ctx, shards, since)
		if err != nil {
			return 0, err
		}
	} else if cursor, err = s.Snapshot(ctx, shards); err != nil {
		return 0, err
	}
	defer cursor.Close()

	out := stdout
	if opts.Out != "" && opts.Out != "-" {
		f, err := os.Create(opts.Out)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		out = f
	}
	w, err := dump.NewWriter(out, s.Config().DumpDType, compression)
	if err != nil {
		return 0, err
	}
	n, err := dump.Copy(w, cursor)
	if err != nil {
		return n, err
	}
	return n, w.Close()
}
