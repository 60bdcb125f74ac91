package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func reconcileCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Link charged orders whose payment link was lost",
		Long: `Find orders still marked payment-pending after reconcile.pending_after,
ask the payment service about each and record completed or refunded
payments on the order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load(cmd.Context(), "reconciler")
			if err != nil {
				return err
			}
			rep, err := a.Reconciler().Run(cmd.Context())
			if err != nil {
				return logFailure(a.Logger, "reconcile", err)
			}
			return printJSON(cmd, rep)
		},
	}
}

func resyncCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "resync-categories",
		Short: "Refresh every product's copy of its category name and slug",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load(cmd.Context(), "resync")
			if err != nil {
				return err
			}
			rep, err := a.ProductService().Resync(cmd.Context())
			if err != nil {
				return logFailure(a.Logger, "resync", err)
			}
			return printJSON(cmd, rep)
		},
	}
}

func relayCmd(load loader) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "relay-outbox",
		Short: "Publish pending identity events to the mirror queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load(cmd.Context(), "relay")
			if err != nil {
				return err
			}

			tables := map[string]string{
				"auth":       a.Config.Tables.AuthOutbox,
				"categories": a.Config.Tables.CategoryOutbox,
			}
			var selected []string
			switch source {
			case "all":
				selected = []string{"auth", "categories"}
			case "auth", "categories":
				selected = []string{source}
			default:
				return fmt.Errorf("--source must be auth, categories or all")
			}

			out := map[string]any{}
			var errs []error
			for _, name := range selected {
				rep, err := a.Relay(tables[name]).Flush(cmd.Context())
				out[name] = rep
				if err != nil {
					errs = append(errs, err)
				}
			}
			if err := printJSON(cmd, out); err != nil {
				return err
			}
			if err := errors.Join(errs...); err != nil {
				return logFailure(a.Logger, "relay", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "all", "outbox to relay: auth, categories or all")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
