package serve

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/viant/sqlite-docstore/cmd/util"
	"github.com/viant/sqlite-docstore/docstore"
	"github.com/viant/sqlite-docstore/server"
)

// ServeCmd starts the HTTP server.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the store over HTTP",
	Long: `Serve the store over HTTP. Configuration can be set through flags or
environment variables named DOCSTORE_<flag> (e.g. DOCSTORE_ADDR=:9090).`,
	Args: cobra.NoArgs,
	RunE: run,
}

func init() {
	f := ServeCmd.Flags()
	f.String("addr", ":8080", util.WrapString("Address to listen on"))
	f.Float64("stream-rate", 0, util.WrapString("Entries per second per snapshot or delta stream, 0 for unlimited"))
	f.Int("stream-burst", 0, util.WrapString("Burst of the stream limiter (default the rate)"))
}

func run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger, err := util.Logger()
	if err != nil {
		return err
	}
	return util.WithStore(cmd, func(_ context.Context, s *docstore.Store) error {
		srv := server.New(s, server.Options{
			StreamRate:  viper.GetFloat64("stream-rate"),
			StreamBurst: viper.GetInt("stream-burst"),
			Logger:      logger,
		})
		err := srv.ListenAndServe(ctx, viper.GetString("addr"))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
}
