package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/viant/sqlite-docstore/cmd/data"
	"github.com/viant/sqlite-docstore/cmd/replica"
	"github.com/viant/sqlite-docstore/cmd/serve"
	"github.com/viant/sqlite-docstore/cmd/snapshot"
	"github.com/viant/sqlite-docstore/cmd/util"
)

const Version = "0.3.0"

var (
	// RootCmd is the base command when called without any subcommands.
	RootCmd = &cobra.Command{
		Use:   "docstore",
		Short: "sharded document store with snapshot and delta replication",
		Long: fmt.Sprintf(`docstore (v%s)

A sharded key-value document store on SQLite with versioned schemas,
soft deletes and point-in-time snapshots followed by timestamp deltas.`, Version),
		SilenceUsage:      true,
		PersistentPreRunE: util.BindCommandFlags,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of docstore",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "docstore v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)
	util.SetupStoreFlags(RootCmd)

	for _, c := range data.Commands() {
		RootCmd.AddCommand(c)
	}
	for _, c := range snapshot.Commands() {
		RootCmd.AddCommand(c)
	}
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(replica.ReplicaCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute runs the root command. It is called by main.main.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
