// cseries tracks multi-version patch series through a local git repository
// and a remote patchwork server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/anthropic/cseries/internal/config"
	"github.com/anthropic/cseries/internal/cseries"
	"github.com/anthropic/cseries/internal/gitrepo"
	"github.com/anthropic/cseries/internal/patchwork"
	"github.com/anthropic/cseries/internal/store"
	"github.com/anthropic/cseries/internal/ui"
)

var (
	flagDryRun bool
	flagDebug  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "cseries",
		Short:         "Track multi-version patch series",
		Long:          "cseries records patch series in a local database, keeps their versioned branches in step, and reconciles them against a patchwork review server.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.PersistentFlags().BoolVarP(&flagDryRun, "dry-run", "n", false,
		"Compute and report everything, commit nothing")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "D", false,
		"Show the full error chain on failure")

	rootCmd.AddCommand(seriesCmd())
	rootCmd.AddCommand(upstreamCmd())
	rootCmd.AddCommand(patchworkCmd())

	// An interrupt cancels the context so in-flight requests wind down
	// instead of the process dying mid-write.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cseries.Class(err), err)
		if flagDebug {
			for e := errors.Unwrap(err); e != nil; e = errors.Unwrap(e) {
				fmt.Fprintf(os.Stderr, "  caused by: %v\n", e)
			}
		}
		os.Exit(1)
	}
}

// repoTop finds the top level of the enclosing git repository.
func repoTop() (string, error) {
	out, err := exec.Command("git", "rev-parse", "--show-toplevel").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("not inside a git repository: %s", strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// withManager opens the repository, database and patchwork client, runs
// fn, and tears everything down again.
func withManager(fn func(m *cseries.Manager) error) error {
	top, err := repoTop()
	if err != nil {
		return err
	}
	repo, err := gitrepo.Open(top)
	if err != nil {
		return err
	}
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := store.Open(filepath.Join(top, store.DBName))
	if err != nil {
		return err
	}
	defer st.Close()

	client := patchwork.New(cfg.PatchworkURL)
	m := cseries.New(st, repo, client, cfg, ui.NewTheme(), os.Stdout, flagDryRun)
	m.SetPager(ui.Page)
	return fn(m)
}
