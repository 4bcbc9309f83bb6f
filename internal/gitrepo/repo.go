// Package gitrepo provides the source-control primitives used by series
// management: branch lookup, commit enumeration, cherry-pick replays,
// branch create/rename/delete.
//
// Object reads go through go-git; working-tree mutations (checkout,
// cherry-pick, reset) shell out to git, which go-git does not model.
package gitrepo

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Repo wraps a git repository rooted at a working directory.
type Repo struct {
	repo *git.Repository
	dir  string
}

// Open opens an existing git repository at dir.
func Open(dir string) (*Repo, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("open git repo at %s: %w", dir, err)
	}
	return &Repo{repo: repo, dir: dir}, nil
}

// Dir returns the repository working directory.
func (r *Repo) Dir() string {
	return r.dir
}

// git runs a git command in the repository directory and returns its
// trimmed stdout. stderr is folded into the error.
func (r *Repo) git(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err,
			strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// Branches lists local branch names.
func (r *Repo) Branches() ([]string, error) {
	iter, err := r.repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer iter.Close()

	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	return names, err
}

// BranchExists reports whether a local branch exists.
func (r *Repo) BranchExists(name string) bool {
	_, err := r.repo.Reference(plumbing.NewBranchReferenceName(name), true)
	return err == nil
}

// BranchHash returns the tip commit hash of a local branch.
func (r *Repo) BranchHash(name string) (plumbing.Hash, error) {
	ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(name), true)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("branch %q: %w", name, err)
	}
	return ref.Hash(), nil
}

// Resolve resolves a revision expression (branch, hash, <branch>~N) to a
// commit hash.
func (r *Repo) Resolve(rev string) (plumbing.Hash, error) {
	h, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve %q: %w", rev, err)
	}
	return *h, nil
}

// Commit returns the commit object for a hash.
func (r *Repo) Commit(h plumbing.Hash) (*object.Commit, error) {
	return r.repo.CommitObject(h)
}

// CurrentBranch returns the checked-out branch name.
// For detached HEAD, it returns the commit hash.
func (r *Repo) CurrentBranch() (string, error) {
	out, err := r.git("symbolic-ref", "--short", "HEAD")
	if err == nil {
		return out, nil
	}
	return r.git("rev-parse", "HEAD")
}

// IsClean reports whether the working tree has no uncommitted changes.
func (r *Repo) IsClean() (bool, error) {
	out, err := r.git("status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out == "", nil
}

// UpstreamOf returns the configured upstream ref of a branch, e.g.
// "origin/master", or "" when none is set.
func (r *Repo) UpstreamOf(branch string) string {
	out, err := r.git("rev-parse", "--abbrev-ref", branch+"@{upstream}")
	if err != nil {
		return ""
	}
	return out
}

// SetUpstream sets the upstream tracking ref of a branch.
func (r *Repo) SetUpstream(branch, upstream string) error {
	_, err := r.git("branch", "--set-upstream-to="+upstream, branch)
	return err
}

// CommitsBetween returns the commits reachable from tip but not from base,
// oldest first. base must be an ancestor of tip.
func (r *Repo) CommitsBetween(base, tip plumbing.Hash) ([]*object.Commit, error) {
	var commits []*object.Commit

	c, err := r.repo.CommitObject(tip)
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", tip, err)
	}
	for c.Hash != base {
		commits = append(commits, c)
		if c.NumParents() == 0 {
			return nil, fmt.Errorf("%s is not an ancestor of %s", base, tip)
		}
		if c, err = c.Parent(0); err != nil {
			return nil, err
		}
	}

	// Reverse into oldest-first order.
	for i, j := 0, len(commits)-1; i < j; i, j = i+1, j-1 {
		commits[i], commits[j] = commits[j], commits[i]
	}
	return commits, nil
}

// CountCommits counts commits from the branch tip back to base.
func (r *Repo) CountCommits(branch, base string) (int, error) {
	tip, err := r.BranchHash(branch)
	if err != nil {
		return 0, err
	}
	baseHash, err := r.Resolve(base)
	if err != nil {
		return 0, err
	}
	commits, err := r.CommitsBetween(baseHash, tip)
	if err != nil {
		return 0, err
	}
	return len(commits), nil
}

// DiffText returns one commit's diff against its parent, without the
// commit message.
func (r *Repo) DiffText(h plumbing.Hash) (string, error) {
	return r.git("show", "--format=", "--no-color", h.String())
}

// ShortHash returns the first 10 hex digits for display.
func ShortHash(h plumbing.Hash) string {
	return h.String()[:10]
}

// CheckoutBranch checks out a local branch.
func (r *Repo) CheckoutBranch(name string) error {
	_, err := r.git("checkout", name)
	return err
}

// CheckoutDetached checks out a commit with a detached HEAD.
func (r *Repo) CheckoutDetached(h plumbing.Hash) error {
	_, err := r.git("checkout", "--detach", h.String())
	return err
}

// ResetHard resets the working tree and HEAD to rev.
func (r *Repo) ResetHard(rev string) error {
	_, err := r.git("reset", "--hard", rev)
	return err
}

// CreateBranch points a branch at rev, creating or (with force) moving it.
func (r *Repo) CreateBranch(name, rev string, force bool) error {
	if !force && r.BranchExists(name) {
		return fmt.Errorf("branch %q already exists", name)
	}
	_, err := r.git("branch", "-f", name, rev)
	return err
}

// RenameBranch renames a local branch.
func (r *Repo) RenameBranch(oldName, newName string) error {
	_, err := r.git("branch", "-m", oldName, newName)
	return err
}

// DeleteBranch deletes a local branch regardless of merge state.
func (r *Repo) DeleteBranch(name string) error {
	_, err := r.git("branch", "-D", name)
	return err
}
