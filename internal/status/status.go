// Package status reconciles a local series against its remote patches:
// pairing commits with patches by subject, diffing response tags, and
// optionally replaying the branch with newly gathered tags applied.
package status

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/anthropic/cseries/internal/gitrepo"
	"github.com/anthropic/cseries/internal/patchstream"
	"github.com/anthropic/cseries/internal/patchwork"
	"github.com/anthropic/cseries/internal/ui"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// commentWorkers bounds the comment-parsing fan-out.
const commentWorkers = 16

// bracketRe splits "[<prefix> v<version> <seq>/<count>] subject"; every
// bracket component is optional.
var bracketRe = regexp.MustCompile(`^\s*\[([^\]]*)\]\s*(.*)$`)

// SubjectParts is a patch subject decomposed into its bracket components.
type SubjectParts struct {
	Prefix  string
	Version int
	Seq     int
	Count   int
	Subject string
}

// ParseSubject splits a patch name like "[RFC PATCH v2 3/7] video: fix X"
// into its parts. A subject with no bracket returns version 1 and the text
// unchanged.
func ParseSubject(name string) SubjectParts {
	parts := SubjectParts{Version: 1, Subject: strings.TrimSpace(name)}
	m := bracketRe.FindStringSubmatch(name)
	if m == nil {
		return parts
	}
	parts.Subject = strings.TrimSpace(m[2])

	var prefix []string
	for _, tok := range strings.Fields(strings.ReplaceAll(m[1], ",", " ")) {
		if v, ok := strings.CutPrefix(tok, "v"); ok {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				parts.Version = n
				continue
			}
		}
		if seq, count, ok := strings.Cut(tok, "/"); ok {
			s, err1 := strconv.Atoi(seq)
			c, err2 := strconv.Atoi(count)
			if err1 == nil && err2 == nil {
				parts.Seq = s
				parts.Count = c
				continue
			}
		}
		prefix = append(prefix, tok)
	}
	parts.Prefix = strings.Join(prefix, " ")
	return parts
}

// Pair is a commit matched with its remote patch. NewRTags holds tags seen
// remotely but not yet recorded on the commit.
type Pair struct {
	Commit   *patchstream.Commit
	Patch    *patchwork.Patch
	NewRTags patchstream.RTags
	Warnings []string
}

// Result is the outcome of matching one series version against its remote
// patches.
type Result struct {
	Pairs            []*Pair
	UnmatchedCommits []string
	UnmatchedPatches []string
	Ambiguous        []string
	CountMismatch    bool
}

// Match pairs commits and patches by exact subject. Ambiguous subjects are
// listed, never auto-resolved.
func Match(commits []*patchstream.Commit, patches []patchwork.Patch) *Result {
	res := &Result{CountMismatch: len(commits) != len(patches)}

	bySubject := make(map[string][]*patchstream.Commit)
	for _, c := range commits {
		bySubject[c.Subject] = append(bySubject[c.Subject], c)
	}
	patchSubjects := make(map[string]int)
	for i := range patches {
		patchSubjects[ParseSubject(patches[i].Name).Subject]++
	}

	usedCommit := make(map[*patchstream.Commit]bool)
	for i := range patches {
		subject := ParseSubject(patches[i].Name).Subject

		if patchSubjects[subject] > 1 || len(bySubject[subject]) > 1 {
			res.Ambiguous = appendUnique(res.Ambiguous, subject)
		}

		matched := false
		for _, c := range bySubject[subject] {
			if usedCommit[c] {
				continue
			}
			usedCommit[c] = true
			res.Pairs = append(res.Pairs, &Pair{Commit: c, Patch: &patches[i]})
			matched = true
			break
		}
		if !matched {
			res.UnmatchedPatches = append(res.UnmatchedPatches, subject)
		}
	}
	for _, c := range commits {
		if !usedCommit[c] {
			res.UnmatchedCommits = append(res.UnmatchedCommits, c.Subject)
		}
	}
	return res
}

func appendUnique(list []string, s string) []string {
	for _, have := range list {
		if have == s {
			return list
		}
	}
	return append(list, s)
}

// GatherTags fills each pair's NewRTags from remote comments. When the
// summary counts show nothing beyond the local tags, the comment fetch for
// that patch is skipped. A failed fetch becomes a warning on the pair, not
// an error for the whole run; workers write only their own pair.
func GatherTags(ctx context.Context, client *patchwork.Client, res *Result) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(commentWorkers)

	for _, pair := range res.Pairs {
		pair := pair
		g.Go(func() error {
			pair.NewRTags = gatherPair(gctx, client, pair)
			return nil
		})
	}
	return g.Wait()
}

func gatherPair(ctx context.Context, client *patchwork.Client, pair *Pair) patchstream.RTags {
	local := pair.Commit.RTags
	p := pair.Patch

	if p.Comments == nil {
		if p.Acked == local.Count(patchstream.TagAckedBy) &&
			p.Reviewed == local.Count(patchstream.TagReviewedBy) &&
			p.Tested == local.Count(patchstream.TagTestedBy) &&
			p.Fixes == local.Count(patchstream.TagFixes) {
			return nil
		}
		comments, err := client.PatchComments(ctx, p.ID)
		if err != nil {
			pair.Warnings = append(pair.Warnings,
				fmt.Sprintf("failed to fetch comments for patch %d: %v", p.ID, err))
			return nil
		}
		p.Comments = comments
	}

	remote := make(patchstream.RTags)
	for _, comment := range p.Comments {
		parser := patchstream.NewParser()
		c := parser.ParseCommit("", "comment\n\n"+comment.Content)
		for tag, whos := range c.RTags {
			for who := range whos {
				remote.Add(tag, who)
			}
		}
	}
	return remote.Subtract(local)
}

// Render prints the reconciliation: per commit its existing tags, then any
// newly discovered tags indented with "+", then optional review snippets.
func Render(w io.Writer, theme *ui.Theme, res *Result, showComments bool) {
	for i, pair := range res.Pairs {
		fmt.Fprintf(w, "%3d %s\n", i+1, pair.Commit.Subject)
		for _, tag := range patchstream.ResponseTagNames {
			for _, who := range pair.Commit.RTags.Sorted(tag) {
				fmt.Fprintf(w, "    %s: %s\n", tag, who)
			}
			for _, who := range pair.NewRTags.Sorted(tag) {
				fmt.Fprintf(w, "  %s\n", theme.Added(fmt.Sprintf("+ %s: %s", tag, who)))
			}
		}
		for _, warn := range pair.Warnings {
			fmt.Fprintf(w, "  %s\n", theme.Warn(warn))
		}
		if showComments {
			for _, comment := range pair.Patch.Comments {
				for _, snippet := range patchstream.Snippets(comment.Content) {
					fmt.Fprintln(w)
					for _, line := range snippet {
						fmt.Fprintf(w, "    %s\n", line)
					}
				}
			}
		}
	}

	for _, subject := range res.UnmatchedPatches {
		fmt.Fprintf(w, "%s\n", theme.Warn("patch not in branch: "+subject))
	}
	for _, subject := range res.UnmatchedCommits {
		fmt.Fprintf(w, "%s\n", theme.Warn("commit not on server: "+subject))
	}
	for _, subject := range res.Ambiguous {
		fmt.Fprintf(w, "%s\n", theme.Warn("ambiguous subject: "+subject))
	}
	if res.CountMismatch {
		fmt.Fprintf(w, "%s\n",
			theme.Warn("remote patch count differs from local; consider running scan"))
	}
}

// NewTagCount returns the number of newly discovered tags across all pairs.
func (r *Result) NewTagCount() int {
	var n int
	for _, pair := range r.Pairs {
		for _, tag := range patchstream.ResponseTagNames {
			n += pair.NewRTags.Count(tag)
		}
	}
	return n
}

// CreateBranch replays the source branch onto dest with each commit's
// newly gathered tags appended. It refuses to overwrite an existing dest
// unless force is set. A dry run restores the original checkout and moves
// no branch.
func CreateBranch(repo *gitrepo.Repo, branch, base, dest string, force, dryRun bool, res *Result) error {
	bySubject := make(map[string]patchstream.RTags)
	for _, pair := range res.Pairs {
		if len(pair.NewRTags) > 0 {
			bySubject[pair.Commit.Subject] = pair.NewRTags
		}
	}

	_, err := repo.ReplaySeries(gitrepo.ReplayOptions{
		Branch: branch,
		Base:   base,
		Target: dest,
		Force:  force,
		DryRun: dryRun,
		Edit: func(c *object.Commit, msg string) (string, error) {
			subject, _, _ := strings.Cut(msg, "\n")
			if rtags, ok := bySubject[strings.TrimSpace(subject)]; ok {
				return patchstream.AddResponseTags(msg, rtags), nil
			}
			return msg, nil
		},
	})
	return err
}
