package main

import (
	"github.com/spf13/cobra"

	"github.com/anthropic/cseries/internal/cseries"
)

func patchworkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patchwork",
		Short: "Configure the patchwork server",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set-project <name>",
		Short: "Choose the patchwork project series are looked up in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.SetProject(cmd.Context(), args[0])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "get-project",
		Short: "Show the configured project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.GetProject()
			})
		},
	})

	return cmd
}
