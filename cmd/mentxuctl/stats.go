package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newStatsCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print itinerary-wide statistics as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), cmd, *dbPath)
			if err != nil {
				return err
			}
			defer e.Close()

			st, err := e.ledger.SystemStats(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
}
