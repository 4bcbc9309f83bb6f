package cseries

import (
	"github.com/anthropic/cseries/internal/gitrepo"
	"github.com/anthropic/cseries/internal/patchstream"
	"github.com/anthropic/cseries/internal/store"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Increment creates the next version of a series: a new branch replayed
// from the current highest version with its Series-version trailer bumped,
// plus a new ser_ver row carrying the same patches. The old branch is left
// untouched.
func (m *Manager) Increment(nameArg string) error {
	name, _, err := m.resolveName(nameArg, 0)
	if err != nil {
		return err
	}
	ser, sv, err := m.seriesVer(name, 0)
	if err != nil {
		return err
	}
	next := sv.Version + 1
	if next > MaxSeriesVersion {
		return inputf("series %q is already at the maximum version %d",
			name, MaxSeriesVersion)
	}

	oldBranch := BranchName(name, sv.Version)
	newBranch := BranchName(name, next)
	if m.repo.BranchExists(newBranch) {
		return conflictf("branch %q already exists", newBranch)
	}
	if err := m.requireClean(); err != nil {
		return err
	}

	base := m.repo.UpstreamOf(oldBranch)
	if base == "" {
		return notFoundf("branch %q has no upstream", oldBranch)
	}

	tip, err := m.repo.BranchHash(oldBranch)
	if err != nil {
		return err
	}
	baseHash, err := m.repo.Resolve(base)
	if err != nil {
		return err
	}
	commits, err := m.repo.CommitsBetween(baseHash, tip)
	if err != nil {
		return err
	}
	carried := false
	for _, c := range commits {
		if patchstream.HasSeriesVersion(c.Message) {
			carried = true
		}
	}

	// The trailer is bumped wherever it already lives; a series that never
	// carried one gets it on the tip commit only.
	_, err = m.repo.ReplaySeries(gitrepo.ReplayOptions{
		Branch: oldBranch,
		Base:   base,
		Target: newBranch,
		DryRun: m.dryRun,
		Edit: func(c *object.Commit, msg string) (string, error) {
			if patchstream.HasSeriesVersion(msg) || (!carried && c.Hash == tip) {
				return patchstream.SetSeriesVersion(msg, next), nil
			}
			return msg, nil
		},
	})
	if err != nil {
		return err
	}
	if !m.dryRun {
		if err := m.repo.SetUpstream(newBranch, base); err != nil {
			return err
		}
	}

	err = m.tx(func() error {
		pcs, err := m.store.PCommits(sv.ID)
		if err != nil {
			return err
		}
		svid, err := m.store.AddSerVer(ser.ID, next)
		if err != nil {
			return err
		}
		// Carry subject and mark forward; remote state belongs to the old
		// version.
		rows := make([]store.PCommit, len(pcs))
		for i, pc := range pcs {
			rows[i] = store.PCommit{Subject: pc.Subject, ChangeID: pc.ChangeID}
		}
		return m.store.ReplacePCommits(svid, rows)
	})
	if err != nil {
		return err
	}

	m.printf("Created %q v%d on branch %q\n", name, next, newBranch)
	return nil
}

// Decrement discards the highest version of a series: its branch, its
// ser_ver row and its patches. The previous version is checked out.
func (m *Manager) Decrement(nameArg string) error {
	name, _, err := m.resolveName(nameArg, 0)
	if err != nil {
		return err
	}
	ser, sv, err := m.seriesVer(name, 0)
	if err != nil {
		return err
	}
	if sv.Version < 2 {
		return inputf("series %q has only one version", name)
	}

	prev, err := m.prevVersion(ser.ID, sv.Version)
	if err != nil {
		return err
	}
	branch := BranchName(name, sv.Version)
	prevBranch := BranchName(name, prev)
	if !m.repo.BranchExists(prevBranch) {
		return notFoundf("no branch named %q", prevBranch)
	}

	err = m.tx(func() error {
		return m.store.DeleteSerVer(sv.ID)
	})
	if err != nil {
		return err
	}

	if !m.dryRun {
		if err := m.repo.CheckoutBranch(prevBranch); err != nil {
			return err
		}
		if err := m.repo.DeleteBranch(branch); err != nil {
			return err
		}
	}
	m.printf("Removed %q v%d; now on %q\n", name, sv.Version, prevBranch)
	return nil
}

// prevVersion returns the highest recorded version below current. Version
// gaps are allowed, so this is not simply current-1.
func (m *Manager) prevVersion(seriesID int64, current int) (int, error) {
	svs, err := m.store.SerVersForSeries(seriesID)
	if err != nil {
		return 0, err
	}
	prev := 0
	for _, sv := range svs {
		if sv.Version < current && sv.Version > prev {
			prev = sv.Version
		}
	}
	if prev == 0 {
		return 0, inputf("series has no version below %d", current)
	}
	return prev, nil
}
