package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mentxuapp/backend/internal/migrations"
)

func newMigrateCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), cmd, *dbPath)
			if err != nil {
				return err
			}
			defer e.Close()

			v, err := migrations.Version(e.db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d\n", v)
			return nil
		},
	}
}
