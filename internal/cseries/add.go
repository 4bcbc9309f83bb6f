package cseries

import (
	"database/sql"
	"fmt"

	"github.com/anthropic/cseries/internal/gitrepo"
	"github.com/anthropic/cseries/internal/patchstream"
	"github.com/anthropic/cseries/internal/store"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// commitChangeID derives the Change-Id mark for a commit that does not
// carry one yet.
func commitChangeID(c *object.Commit) string {
	committer := fmt.Sprintf("%s <%s>", c.Committer.Name, c.Committer.Email)
	return patchstream.ChangeID(committer, c.Committer.When, c.TreeHash.String(), c.Message)
}

// markEdit returns an edit function that injects a Change-Id trailer into
// every commit lacking one.
func markEdit() gitrepo.EditFunc {
	return func(c *object.Commit, msg string) (string, error) {
		if patchstream.ExtractChangeID(msg) != "" {
			return msg, nil
		}
		return patchstream.InsertChangeID(msg, commitChangeID(c)), nil
	}
}

// changeIDs maps each commit subject to the Change-Id it carries, or would
// carry once marked.
func changeIDs(commits []*object.Commit, mark bool) map[string]string {
	ids := make(map[string]string, len(commits))
	for _, c := range commits {
		subject, _ := firstLine(c.Message)
		id := patchstream.ExtractChangeID(c.Message)
		if id == "" && mark {
			id = commitChangeID(c)
		}
		ids[subject] = id
	}
	return ids
}

func firstLine(msg string) (string, bool) {
	for i := 0; i < len(msg); i++ {
		if msg[i] == '\n' {
			return msg[:i], true
		}
	}
	return msg, false
}

// diffChecks appends whitespace warnings from each commit's diff to the
// parsed commit it belongs to. Commits and parsed.Commits run in the same
// order.
func (m *Manager) diffChecks(parsed *patchstream.Series, commits []*object.Commit) {
	for i, c := range commits {
		if i >= len(parsed.Commits) {
			return
		}
		diff, err := m.repo.DiffText(c.Hash)
		if err != nil {
			continue
		}
		pc := parsed.Commits[i]
		pc.Warn = append(pc.Warn, patchstream.DiffWarnings(diff)...)
	}
}

// printWarnings surfaces per-commit message and diff warnings.
func (m *Manager) printWarnings(parsed *patchstream.Series) {
	for _, c := range parsed.Commits {
		for _, w := range c.Warn {
			m.printf("%s\n", m.theme.Warn(c.Subject+": "+w))
		}
	}
}

// Add records a new series (or a new version of an existing one) from the
// commits of a branch. With mark set, commits missing a Change-Id are
// rewritten to carry one; without it, unmarked commits are an error unless
// allowUnmarked.
func (m *Manager) Add(nameArg, desc string, mark, allowUnmarked bool, end string) error {
	name, version, err := m.resolveName(nameArg, 0)
	if err != nil {
		return err
	}
	if err := validName(name); err != nil {
		return err
	}
	if version == 0 {
		version = 1
	}
	branch := BranchName(name, version)

	parsed, commits, base, err := m.parseBranch(branch, end)
	if err != nil {
		return err
	}
	if len(commits) == 0 {
		return inputf("branch %q has no commits above its upstream", branch)
	}
	m.diffChecks(parsed, commits)
	m.printWarnings(parsed)
	if parsed.Version > 0 && parsed.Version != version {
		return inputf("branch %q implies version %d but Series-version says %d",
			branch, version, parsed.Version)
	}

	if err := m.checkMarks(parsed, mark, allowUnmarked); err != nil {
		return err
	}
	if mark {
		if err := m.requireClean(); err != nil {
			return err
		}
		if _, err := m.repo.ReplaySeries(gitrepo.ReplayOptions{
			Branch: branch,
			Base:   base,
			DryRun: m.dryRun,
			Edit:   markEdit(),
		}); err != nil {
			return err
		}
	}
	ids := changeIDs(commits, mark)

	if desc == "" {
		desc = parsed.Desc
	}
	if desc == "" {
		desc = parsed.Commits[0].Subject
	}

	err = m.tx(func() error {
		ser, err := m.store.SeriesByName(name)
		if err != nil {
			return err
		}
		var seriesID int64
		if ser == nil {
			if seriesID, err = m.store.AddSeries(name, desc); err != nil {
				return err
			}
		} else {
			seriesID = ser.ID
		}

		svid, err := m.store.AddSerVer(seriesID, version)
		if err != nil {
			return &ConflictError{
				Msg: fmt.Sprintf("series %q v%d is already recorded", name, version),
				Err: err,
			}
		}
		return m.store.ReplacePCommits(svid, pcommitRows(parsed.Commits, ids))
	})
	if err != nil {
		return err
	}

	m.printf("Added series %q v%d (%d commits)\n", name, version, len(commits))
	return nil
}

// Scan re-reads a version's branch and reconciles the recorded patches
// with it, printing additions and removals.
func (m *Manager) Scan(nameArg string, mark, allowUnmarked bool, end string) error {
	name, version, err := m.resolveName(nameArg, 0)
	if err != nil {
		return err
	}
	_, sv, err := m.seriesVer(name, version)
	if err != nil {
		return err
	}
	branch := BranchName(name, sv.Version)

	parsed, commits, base, err := m.parseBranch(branch, end)
	if err != nil {
		return err
	}
	m.diffChecks(parsed, commits)
	m.printWarnings(parsed)
	if err := m.checkMarks(parsed, mark, allowUnmarked); err != nil {
		return err
	}
	if mark {
		if err := m.requireClean(); err != nil {
			return err
		}
		if _, err := m.repo.ReplaySeries(gitrepo.ReplayOptions{
			Branch: branch,
			Base:   base,
			DryRun: m.dryRun,
			Edit:   markEdit(),
		}); err != nil {
			return err
		}
	}
	ids := changeIDs(commits, mark)

	return m.tx(func() error {
		old, err := m.store.PCommits(sv.ID)
		if err != nil {
			return err
		}

		have := make(map[string]bool, len(parsed.Commits))
		for _, c := range parsed.Commits {
			have[c.Subject] = true
		}
		known := make(map[string]bool, len(old))
		for _, pc := range old {
			known[pc.Subject] = true
			if !have[pc.Subject] {
				m.printf("%s\n", m.theme.Removed("- "+pc.Subject))
			}
		}
		for _, c := range parsed.Commits {
			if !known[c.Subject] {
				m.printf("%s\n", m.theme.Added("+ "+c.Subject))
			}
		}

		return m.store.ReplacePCommits(sv.ID, pcommitRows(parsed.Commits, ids))
	})
}

// checkMarks enforces the Change-Id discipline before anything mutates.
func (m *Manager) checkMarks(parsed *patchstream.Series, mark, allowUnmarked bool) error {
	if mark || allowUnmarked {
		return nil
	}
	for _, c := range parsed.Commits {
		if c.ChangeID == "" {
			return inputf("commit %q has no Change-Id; use -m to mark or -M to allow",
				c.Subject)
		}
	}
	return nil
}

func pcommitRows(commits []*patchstream.Commit, ids map[string]string) []store.PCommit {
	rows := make([]store.PCommit, 0, len(commits))
	for _, c := range commits {
		pc := store.PCommit{Subject: c.Subject}
		if id := ids[c.Subject]; id != "" {
			pc.ChangeID = sql.NullString{String: id, Valid: true}
		}
		rows = append(rows, pc)
	}
	return rows
}

// Mark rewrites every commit of a version to carry a Change-Id trailer.
// Commits that already carry one are an error unless allowMarked.
func (m *Manager) Mark(nameArg string, allowMarked bool) error {
	return m.remark(nameArg, allowMarked, true)
}

// Unmark strips the Change-Id trailer from every commit of a version.
// Commits without one are an error unless allowUnmarked.
func (m *Manager) Unmark(nameArg string, allowUnmarked bool) error {
	return m.remark(nameArg, allowUnmarked, false)
}

func (m *Manager) remark(nameArg string, allowMismatch, adding bool) error {
	name, version, err := m.resolveName(nameArg, 0)
	if err != nil {
		return err
	}
	_, sv, err := m.seriesVer(name, version)
	if err != nil {
		return err
	}
	branch := BranchName(name, sv.Version)

	parsed, commits, base, err := m.parseBranch(branch, "")
	if err != nil {
		return err
	}
	if !allowMismatch {
		for _, c := range parsed.Commits {
			if adding && c.ChangeID != "" {
				return conflictf("commit %q is already marked", c.Subject)
			}
			if !adding && c.ChangeID == "" {
				return conflictf("commit %q is not marked", c.Subject)
			}
		}
	}
	if err := m.requireClean(); err != nil {
		return err
	}

	edit := markEdit()
	if !adding {
		edit = func(c *object.Commit, msg string) (string, error) {
			return patchstream.RemoveChangeID(msg), nil
		}
	}
	if _, err := m.repo.ReplaySeries(gitrepo.ReplayOptions{
		Branch: branch,
		Base:   base,
		DryRun: m.dryRun,
		Edit:   edit,
	}); err != nil {
		return err
	}
	ids := changeIDs(commits, adding)

	err = m.tx(func() error {
		pcs, err := m.store.PCommits(sv.ID)
		if err != nil {
			return err
		}
		for _, pc := range pcs {
			var id sql.NullString
			if adding {
				if v := ids[pc.Subject]; v != "" {
					id = sql.NullString{String: v, Valid: true}
				}
			}
			if err := m.store.SetPCommitChangeID(pc.ID, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	verb := "Marked"
	if !adding {
		verb = "Unmarked"
	}
	m.printf("%s %d commits on %q\n", verb, len(commits), branch)
	return nil
}
