// Package cseries orchestrates series management: it ties the store, the
// git repository, the patchwork client and the terminal presenter together
// behind one verb per public operation. Every verb runs its store changes
// in a single transaction; with dry-run set the transaction is rolled back
// and any branch rewrite restored, after emitting the same output a real
// run would.
package cseries

import (
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/anthropic/cseries/internal/config"
	"github.com/anthropic/cseries/internal/gitrepo"
	"github.com/anthropic/cseries/internal/patchstream"
	"github.com/anthropic/cseries/internal/patchwork"
	"github.com/anthropic/cseries/internal/store"
	"github.com/anthropic/cseries/internal/ui"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Manager owns the process singletons for one invocation. Nothing here is
// shared between goroutines; network fan-out happens inside the patchwork
// client.
type Manager struct {
	store  *store.Store
	repo   *gitrepo.Repo
	client *patchwork.Client
	cfg    *config.Config
	theme  *ui.Theme
	out    io.Writer
	dryRun bool

	// now and timer are injectable so autolink waits can be driven from
	// tests. A nil timer means the backoff default.
	now   func() time.Time
	timer backoff.Timer

	// page displays a large block of output, through a pager when one is
	// installed.
	page func(string) error
}

// New returns a manager wired to the given collaborators.
func New(st *store.Store, repo *gitrepo.Repo, client *patchwork.Client,
	cfg *config.Config, theme *ui.Theme, out io.Writer, dryRun bool) *Manager {
	return &Manager{
		store:  st,
		repo:   repo,
		client: client,
		cfg:    cfg,
		theme:  theme,
		out:    out,
		dryRun: dryRun,
		now:    time.Now,
		page: func(s string) error {
			_, err := io.WriteString(out, s)
			return err
		},
	}
}

// SetPager installs a pager for the table-rendering verbs.
func (m *Manager) SetPager(page func(string) error) {
	m.page = page
}

// SetClock replaces the time source and retry timer, for tests.
func (m *Manager) SetClock(now func() time.Time, timer backoff.Timer) {
	m.now = now
	m.timer = timer
}

// tx runs fn inside one store transaction. The transaction commits on
// success unless dry-run is set, in which case it always rolls back.
func (m *Manager) tx(fn func() error) error {
	if err := m.store.Begin(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		m.store.Rollback()
		return err
	}
	if m.dryRun {
		m.store.Rollback()
		return nil
	}
	return m.store.Commit()
}

// resolveName fills in the series name and version from the argument or,
// when absent, from the currently checked-out branch.
func (m *Manager) resolveName(nameArg string, explicit int) (string, int, error) {
	if nameArg == "" {
		branch, err := m.repo.CurrentBranch()
		if err != nil {
			return "", 0, err
		}
		nameArg = branch
	}
	return SplitNameVersion(nameArg, explicit)
}

// seriesVer looks up the series row and the ser_ver row for one version.
// Version 0 selects the highest recorded version.
func (m *Manager) seriesVer(name string, version int) (*store.Series, *store.SerVer, error) {
	ser, err := m.store.SeriesByName(name)
	if err != nil {
		return nil, nil, err
	}
	if ser == nil {
		return nil, nil, notFoundf("no series named %q", name)
	}
	if version == 0 {
		if version, err = m.store.MaxVersion(ser.ID); err != nil {
			return nil, nil, err
		}
	}
	sv, err := m.store.SerVer(ser.ID, version)
	if err != nil {
		return nil, nil, err
	}
	if sv == nil {
		return nil, nil, notFoundf("series %q has no version %d", name, version)
	}
	return ser, sv, nil
}

// parseBranch reads the commits of branch above base (the branch upstream
// when base is empty) and parses them into a series, oldest first.
func (m *Manager) parseBranch(branch, base string) (*patchstream.Series, []*object.Commit, string, error) {
	if base == "" {
		base = m.repo.UpstreamOf(branch)
		if base == "" {
			return nil, nil, "", notFoundf(
				"branch %q has no upstream; set one or pass an end revision", branch)
		}
	}
	tip, err := m.repo.BranchHash(branch)
	if err != nil {
		return nil, nil, "", notFoundf("no branch named %q", branch)
	}
	baseHash, err := m.repo.Resolve(base)
	if err != nil {
		return nil, nil, "", err
	}
	commits, err := m.repo.CommitsBetween(baseHash, tip)
	if err != nil {
		return nil, nil, "", err
	}

	parser := patchstream.NewParser()
	parser.SelfTester = m.cfg.SelfTester
	for _, c := range commits {
		parser.ParseCommit(c.Hash.String(), c.Message)
	}
	return parser.Series, commits, base, nil
}

// requireClean refuses to start a branch rewrite over uncommitted changes.
func (m *Manager) requireClean() error {
	clean, err := m.repo.IsClean()
	if err != nil {
		return err
	}
	if !clean {
		return conflictf("working tree has uncommitted changes")
	}
	return nil
}

// project configures the patchwork client from the stored settings.
func (m *Manager) project() error {
	set, err := m.store.GetSettings()
	if err != nil {
		return err
	}
	if set == nil || !set.ProjID.Valid {
		return notFoundf("no patchwork project configured; run 'cseries patchwork set-project'")
	}
	m.client.SetProject(int(set.ProjID.Int64), set.LinkName.String)
	return nil
}

func (m *Manager) printf(format string, args ...any) {
	fmt.Fprintf(m.out, format, args...)
}
