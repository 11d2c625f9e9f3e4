// Command mentxuctl runs maintenance tasks against the MentxuApp database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

func newRootCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:           "mentxuctl",
		Short:         "MentxuApp maintenance commands",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the SQLite database (defaults to DB_PATH)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newMigrateCmd(&dbPath))
	cmd.AddCommand(newSeedCmd(&dbPath))
	cmd.AddCommand(newAdminCmd(&dbPath))
	cmd.AddCommand(newStatsCmd(&dbPath))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mentxuctl %s (commit: %s)\n", Version, Commit)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
