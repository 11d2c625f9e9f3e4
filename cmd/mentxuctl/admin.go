package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newAdminCmd(dbPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage dashboard accounts",
	}
	cmd.AddCommand(newAdminCreateCmd(dbPath))
	return cmd
}

func newAdminCreateCmd(dbPath *string) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a dashboard admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || password == "" {
				return errors.New("--username and --password are required")
			}

			e, err := openEnv(cmd.Context(), cmd, *dbPath)
			if err != nil {
				return err
			}
			defer e.Close()

			a, err := e.store.CreateAdmin(cmd.Context(), username, password)
			if err != nil {
				return fmt.Errorf("creating admin %q: %w", username, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (id %d)\n", a.Username, a.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "admin username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "admin password")
	return cmd
}
