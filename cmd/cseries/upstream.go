package main

import (
	"github.com/spf13/cobra"

	"github.com/anthropic/cseries/internal/cseries"
)

func upstreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upstream",
		Short: "Manage remote push targets",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name> <url>",
		Short: "Record a remote target",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.UpstreamAdd(args[0], args[1])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a remote target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.UpstreamDelete(args[0])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List remote targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.UpstreamList()
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "default <name>",
		Short: "Mark one remote target as the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.UpstreamDefault(args[0])
			})
		},
	})

	return cmd
}
