package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mentxuapp/backend/internal/mentxu"
	"github.com/mentxuapp/backend/internal/seed"
)

func newSeedCmd(dbPath *string) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the stop itinerary into an empty database",
		Long:  "Loads stops from a YAML file, or the built-in Santurtzi route when --file is omitted. Does nothing if stops already exist.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				stops []mentxu.Stop
				err   error
			)
			if file != "" {
				stops, err = seed.LoadFile(file)
			} else {
				stops, err = seed.Default()
			}
			if err != nil {
				return fmt.Errorf("loading stops: %w", err)
			}

			e, err := openEnv(cmd.Context(), cmd, *dbPath)
			if err != nil {
				return err
			}
			defer e.Close()

			n, err := seed.Apply(cmd.Context(), e.store, e.ledger, stops)
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Stops already present, nothing seeded")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d stops\n", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with the stop list")
	return cmd
}
