package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func mappingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Manage stored vendor mappings",
		Long:  `View and manage persisted vendor name mappings.`,
	}

	cmd.AddCommand(mappingsListCmd())
	cmd.AddCommand(mappingsDeleteCmd())

	return cmd
}

func mappingsListCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List vendor mappings",
		Long:  `List a user's vendor mappings plus global mappings.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			mappings, err := store.ListMappings(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to list mappings: %w", err)
			}

			if len(mappings) == 0 {
				fmt.Println("No mappings yet.")
				return nil
			}

			fmt.Printf("%-36s  %-30s  %-25s  %-10s  %-6s  %s\n",
				"ID", "NORMALIZED", "NAME", "CONF", "SOURCE", "OWNER")
			for _, m := range mappings {
				owner := m.UserID
				if owner == "" {
					owner = "(global)"
				}
				fmt.Printf("%-36s  %-30s  %-25s  %-10.2f  %-6s  %s\n",
					m.ID, truncate(m.NormalizedText, 30), truncate(m.MappedName, 25),
					m.Confidence, m.Source, owner)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user scope to list (default: global only)")

	return cmd
}

func mappingsDeleteCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a vendor mapping",
		Long:  `Delete a vendor mapping by id. Only the owning user's mappings can be deleted.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required: global mappings are not deletable")
			}

			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteMapping(ctx, args[0], userID); err != nil {
				return fmt.Errorf("failed to delete mapping: %w", err)
			}

			fmt.Printf("Deleted mapping %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "owner of the mapping")

	return cmd
}
