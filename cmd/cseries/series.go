package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/anthropic/cseries/internal/cseries"
)

// Flags shared by most series verbs. The name can also come from the
// current branch, so -s is optional everywhere.
var (
	flagSeries  string
	flagVersion int
)

func seriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "series",
		Short: "Manage patch series",
	}
	cmd.PersistentFlags().StringVarP(&flagSeries, "series", "s", "",
		"Series name (default: from the current branch)")
	cmd.PersistentFlags().IntVarP(&flagVersion, "version", "V", 0,
		"Series version (default: from the name, or the newest)")

	cmd.AddCommand(addCmd())
	cmd.AddCommand(scanCmd())
	cmd.AddCommand(markCmd())
	cmd.AddCommand(unmarkCmd())
	cmd.AddCommand(incrementCmd())
	cmd.AddCommand(decrementCmd())
	cmd.AddCommand(renameCmd())
	cmd.AddCommand(removeCmd())
	cmd.AddCommand(removeVersionCmd())
	cmd.AddCommand(archiveCmd())
	cmd.AddCommand(unarchiveCmd())
	cmd.AddCommand(setLinkCmd())
	cmd.AddCommand(getLinkCmd())
	cmd.AddCommand(autolinkCmd())
	cmd.AddCommand(autolinkAllCmd())
	cmd.AddCommand(syncCmd())
	cmd.AddCommand(syncAllCmd())
	cmd.AddCommand(listCmd())
	cmd.AddCommand(patchesCmd())
	cmd.AddCommand(progressCmd())
	cmd.AddCommand(summaryCmd())
	cmd.AddCommand(statusCmd())
	cmd.AddCommand(sendCmd())
	cmd.AddCommand(openCmd())

	return cmd
}

func addCmd() *cobra.Command {
	var mark, allowUnmarked bool
	var end string

	cmd := &cobra.Command{
		Use:   "add [desc]",
		Short: "Record a new series from the commits of a branch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc := ""
			if len(args) > 0 {
				desc = args[0]
			}
			return withManager(func(m *cseries.Manager) error {
				return m.Add(flagSeries, desc, mark, allowUnmarked, end)
			})
		},
	}
	cmd.Flags().BoolVarP(&mark, "mark", "m", false,
		"Rewrite commits to carry a Change-Id trailer")
	cmd.Flags().BoolVarP(&allowUnmarked, "allow-unmarked", "M", false,
		"Accept commits without a Change-Id")
	cmd.Flags().StringVar(&end, "end", "",
		"Parse down to this revision instead of the branch upstream")
	return cmd
}

func scanCmd() *cobra.Command {
	var mark, allowUnmarked bool
	var end string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Reconcile the recorded patches with the branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.Scan(flagSeries, mark, allowUnmarked, end)
			})
		},
	}
	cmd.Flags().BoolVarP(&mark, "mark", "m", false,
		"Rewrite commits to carry a Change-Id trailer")
	cmd.Flags().BoolVarP(&allowUnmarked, "allow-unmarked", "M", false,
		"Accept commits without a Change-Id")
	cmd.Flags().StringVar(&end, "end", "",
		"Parse down to this revision instead of the branch upstream")
	return cmd
}

func markCmd() *cobra.Command {
	var allowMarked bool

	cmd := &cobra.Command{
		Use:   "mark",
		Short: "Add a Change-Id trailer to every commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.Mark(flagSeries, allowMarked)
			})
		},
	}
	cmd.Flags().BoolVar(&allowMarked, "allow-marked", false,
		"Accept commits that already carry a Change-Id")
	return cmd
}

func unmarkCmd() *cobra.Command {
	var allowUnmarked bool

	cmd := &cobra.Command{
		Use:   "unmark",
		Short: "Strip the Change-Id trailer from every commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.Unmark(flagSeries, allowUnmarked)
			})
		},
	}
	cmd.Flags().BoolVarP(&allowUnmarked, "allow-unmarked", "M", false,
		"Accept commits without a Change-Id")
	return cmd
}

func incrementCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "increment",
		Short: "Create the next version of a series on a new branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.Increment(flagSeries)
			})
		},
	}
}

func decrementCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decrement",
		Short: "Discard the newest version of a series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.Decrement(flagSeries)
			})
		},
	}
}

func renameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a series and all its version branches",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.Rename(args[0], args[1])
			})
		},
	}
}

func removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Delete a series and all its versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.Remove(args[0])
			})
		},
	}
}

func removeVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-version <name>",
		Short: "Delete one version of a series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.RemoveVersion(args[0], flagVersion)
			})
		},
	}
}

func archiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <name>",
		Short: "Hide a series from listings and free its name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.Archive(args[0])
			})
		},
	}
}

func unarchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unarchive <name>",
		Short: "Restore an archived series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.Unarchive(args[0])
			})
		},
	}
}

func setLinkCmd() *cobra.Command {
	var updateCommit bool

	cmd := &cobra.Command{
		Use:   "set-link <link>",
		Short: "Record the remote series identifier for a version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.SetLink(flagSeries, flagVersion, args[0], updateCommit)
			})
		},
	}
	cmd.Flags().BoolVarP(&updateCommit, "update-commit", "u", false,
		"Also write the link into the top commit's Series-links trailer")
	return cmd
}

func getLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get-link",
		Short: "Print the stored link for a version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.GetLink(flagSeries, flagVersion)
			})
		},
	}
}

func autolinkCmd() *cobra.Command {
	var updateCommit bool
	var wait int

	cmd := &cobra.Command{
		Use:   "autolink",
		Short: "Find and record the remote link for a version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.Autolink(cmd.Context(), flagSeries, flagVersion,
					updateCommit, time.Duration(wait)*time.Second)
			})
		},
	}
	cmd.Flags().BoolVarP(&updateCommit, "update-commit", "u", false,
		"Also write the link into the top commit's Series-links trailer")
	cmd.Flags().IntVar(&wait, "wait", 0,
		"Keep retrying for this many seconds")
	return cmd
}

func autolinkAllCmd() *cobra.Command {
	var allVersions, replace, updateCommit bool

	cmd := &cobra.Command{
		Use:   "autolink-all",
		Short: "Autolink every unlinked series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.AutolinkAll(cmd.Context(), allVersions, replace, updateCommit)
			})
		},
	}
	cmd.Flags().BoolVar(&allVersions, "all-versions", false,
		"Link every version, not just the newest of each series")
	cmd.Flags().BoolVar(&replace, "replace", false,
		"Re-link series that already have a link")
	cmd.Flags().BoolVarP(&updateCommit, "update-commit", "u", false,
		"Also write links into the top commits")
	return cmd
}

func syncCmd() *cobra.Command {
	var gatherTags, showComments bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Refresh one version from patchwork",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.Sync(cmd.Context(), flagSeries, flagVersion,
					gatherTags, showComments)
			})
		},
	}
	cmd.Flags().BoolVarP(&gatherTags, "gather-tags", "a", false,
		"Fetch comments and write new response tags onto the branch")
	cmd.Flags().BoolVarP(&showComments, "comments", "c", false,
		"Show review comment snippets")
	return cmd
}

func syncAllCmd() *cobra.Command {
	var allVersions, gatherTags bool

	cmd := &cobra.Command{
		Use:   "sync-all",
		Short: "Refresh every linked series in one bulk fetch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.SyncAll(cmd.Context(), allVersions, gatherTags)
			})
		},
	}
	cmd.Flags().BoolVar(&allVersions, "all-versions", false,
		"Sync every version, not just the newest of each series")
	cmd.Flags().BoolVarP(&gatherTags, "gather-tags", "a", false,
		"Fetch comments too")
	return cmd
}

func listCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.List(all)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include archived series")
	return cmd
}

func patchesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patches",
		Short: "List the patches of one version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.Patches(flagSeries, flagVersion)
			})
		},
	}
}

func progressCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show per-version review progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.Progress(all)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include archived series")
	return cmd
}

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "One line per series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.Summary()
			})
		},
	}
}

func statusCmd() *cobra.Command {
	var showComments, force bool
	var dest string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Reconcile a version against its remote patches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.Status(cmd.Context(), flagSeries, flagVersion,
					showComments, dest, force)
			})
		},
	}
	cmd.Flags().BoolVarP(&showComments, "comments", "c", false,
		"Show review comment snippets")
	cmd.Flags().StringVarP(&dest, "dest-branch", "d", "",
		"Write newly gathered tags onto this branch")
	cmd.Flags().BoolVarP(&force, "force", "f", false,
		"Overwrite the destination branch if it exists")
	return cmd
}

func sendCmd() *cobra.Command {
	var autolink bool
	var wait int

	cmd := &cobra.Command{
		Use:   "send [-- send-args...]",
		Short: "Mail a series with the configured send command",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.Send(cmd.Context(), flagSeries, autolink,
					time.Duration(wait)*time.Second, args)
			})
		},
	}
	cmd.Flags().BoolVar(&autolink, "autolink", false,
		"Autolink the series after sending")
	cmd.Flags().IntVar(&wait, "autolink-wait", 120,
		"Seconds to keep retrying the autolink")
	return cmd
}

func openCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "Open the patchwork page for a version in the browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *cseries.Manager) error {
				return m.Open(flagSeries, flagVersion)
			})
		},
	}
}
