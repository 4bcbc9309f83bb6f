package gitrepo

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ConflictError reports a cherry-pick that did not apply cleanly. Conflicts
// are never resolved automatically; the replay is aborted and the working
// tree restored.
type ConflictError struct {
	Hash   plumbing.Hash
	Detail string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cherry-pick conflict at %s: %s", ShortHash(e.Hash), e.Detail)
}

// EditFunc is called once per replayed commit with the original commit and
// its message. It returns the message to commit with, which may be the
// input unchanged.
type EditFunc func(c *object.Commit, msg string) (string, error)

// ReplayOptions controls a series replay.
type ReplayOptions struct {
	// Branch is the source branch whose commits are replayed.
	Branch string
	// Base is the revision the replay starts from (typically the branch
	// upstream, or <branch>~N).
	Base string
	// Target names the branch to create or move to the new tip. Empty
	// means the source branch itself.
	Target string
	// Force allows Target to overwrite an existing branch other than the
	// source branch.
	Force bool
	// DryRun restores the original checkout and leaves all branches
	// untouched.
	DryRun bool
	// Edit rewrites each commit message. Nil replays messages unchanged.
	Edit EditFunc
}

// ReplaySeries rewrites a branch by replaying each of its commits on top of
// Base, giving Edit a chance to rewrite each message. Author, committer and
// tree of every commit are preserved.
//
// On success the target branch points at the new tip and is checked out
// (normal run), or the original checkout is restored (dry run). On any
// error the working tree is reset and the original checkout restored.
func (r *Repo) ReplaySeries(opts ReplayOptions) (plumbing.Hash, error) {
	target := opts.Target
	if target == "" {
		target = opts.Branch
	}
	if target != opts.Branch && !opts.Force && r.BranchExists(target) {
		return plumbing.ZeroHash, fmt.Errorf("branch %q already exists", target)
	}

	orig, err := r.CurrentBranch()
	if err != nil {
		return plumbing.ZeroHash, err
	}

	tip, err := r.BranchHash(opts.Branch)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	base, err := r.Resolve(opts.Base)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	commits, err := r.CommitsBetween(base, tip)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	if err := r.CheckoutDetached(base); err != nil {
		return plumbing.ZeroHash, err
	}

	restore := func() {
		_ = r.ResetHard("HEAD")
		_ = r.CheckoutBranch(orig)
	}

	for _, c := range commits {
		if err := r.cherryPickIndex(c.Hash); err != nil {
			restore()
			return plumbing.ZeroHash, err
		}

		msg := c.Message
		if opts.Edit != nil {
			msg, err = opts.Edit(c, msg)
			if err != nil {
				restore()
				return plumbing.ZeroHash, err
			}
		}

		if err := r.commitAs(c, msg); err != nil {
			restore()
			return plumbing.ZeroHash, err
		}
	}

	newTip, err := r.Resolve("HEAD")
	if err != nil {
		restore()
		return plumbing.ZeroHash, err
	}

	if opts.DryRun {
		if err := r.CheckoutBranch(orig); err != nil {
			return plumbing.ZeroHash, err
		}
		return newTip, nil
	}

	if err := r.CreateBranch(target, newTip.String(), true); err != nil {
		restore()
		return plumbing.ZeroHash, err
	}
	if err := r.CheckoutBranch(target); err != nil {
		return plumbing.ZeroHash, err
	}
	return newTip, nil
}

// cherryPickIndex applies a commit to the index and working tree without
// committing. A failed apply aborts the pick and reports a ConflictError.
func (r *Repo) cherryPickIndex(h plumbing.Hash) error {
	out, err := r.git("cherry-pick", "-n", h.String())
	if err == nil {
		return nil
	}
	// Leave the tree pickable again before reporting.
	_, _ = r.git("cherry-pick", "--abort")
	_ = r.ResetHard("HEAD")
	detail := out
	if detail == "" {
		detail = err.Error()
	}
	return &ConflictError{Hash: h, Detail: detail}
}

// commitAs commits the current index with the given message, reusing the
// author and committer identity and timestamps of src.
func (r *Repo) commitAs(src *object.Commit, msg string) error {
	cmd := exec.Command("git", "commit", "--allow-empty", "--no-verify", "-F", "-")
	cmd.Dir = r.dir
	cmd.Stdin = strings.NewReader(msg)
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME="+src.Author.Name,
		"GIT_AUTHOR_EMAIL="+src.Author.Email,
		"GIT_AUTHOR_DATE="+gitDate(src.Author.When),
		"GIT_COMMITTER_NAME="+src.Committer.Name,
		"GIT_COMMITTER_EMAIL="+src.Committer.Email,
		"GIT_COMMITTER_DATE="+gitDate(src.Committer.When),
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("commit %s: %w: %s", ShortHash(src.Hash), err,
			strings.TrimSpace(string(out)))
	}
	return nil
}

func gitDate(t time.Time) string {
	return t.Format("2006-01-02T15:04:05-07:00")
}
