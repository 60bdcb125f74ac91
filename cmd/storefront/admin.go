package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func seedAdminCmd(load loader) *cobra.Command {
	var email, name, password string

	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create or reset the admin account",
		Long: `Create an admin account for --email, or promote the existing account
with that email and reset its password. The admin profile reaches the users
service through the auth outbox like any registration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				return fmt.Errorf("--password or STOREFRONT_ADMIN_PASSWORD is required")
			}
			a, err := load(cmd.Context(), "seed-admin")
			if err != nil {
				return err
			}
			svc, err := a.AuthService()
			if err != nil {
				return err
			}
			u, created, err := svc.SeedAdmin(cmd.Context(), email, password, name)
			if err != nil {
				return logFailure(a.Logger, "seed-admin", err)
			}
			return printJSON(cmd, map[string]any{"user": u, "created": created})
		},
	}

	cmd.Flags().StringVar(&email, "email", "admin@example.com", "admin email")
	cmd.Flags().StringVar(&name, "name", "Admin User", "admin display name")
	cmd.Flags().StringVar(&password, "password", os.Getenv("STOREFRONT_ADMIN_PASSWORD"), "admin password")
	return cmd
}
