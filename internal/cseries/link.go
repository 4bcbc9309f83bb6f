package cseries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/anthropic/cseries/internal/gitrepo"
	"github.com/anthropic/cseries/internal/patchstream"
	"github.com/anthropic/cseries/internal/patchwork"
	"github.com/anthropic/cseries/internal/store"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// autolinkPoll is the pause between autolink retries while waiting for the
// remote service to index a freshly sent series.
const autolinkPoll = 20 * time.Second

// SetLink records the remote series identifier for one version. With
// updateCommit set, the version's branch is rewritten so its top commit
// carries the link in its Series-links trailer.
func (m *Manager) SetLink(nameArg string, version int, link string, updateCommit bool) error {
	name, version, err := m.resolveName(nameArg, version)
	if err != nil {
		return err
	}
	_, sv, err := m.seriesVer(name, version)
	if err != nil {
		return err
	}
	return m.setLink(name, sv, link, updateCommit)
}

func (m *Manager) setLink(name string, sv *store.SerVer, link string, updateCommit bool) error {
	if updateCommit {
		if err := m.mergeLinkCommit(name, sv, link); err != nil {
			return err
		}
	}

	err := m.tx(func() error {
		return m.store.SetLink(sv.ID, link)
	})
	if err != nil {
		return err
	}
	m.printf("Set link %q for %q v%d\n", link, name, sv.Version)
	return nil
}

// mergeLinkCommit rewrites a version's branch so the top commit carries
// the link in its Series-links trailer, preserving other recorded
// versions.
func (m *Manager) mergeLinkCommit(name string, sv *store.SerVer, link string) error {
	if err := m.requireClean(); err != nil {
		return err
	}
	branch := BranchName(name, sv.Version)
	base := m.repo.UpstreamOf(branch)
	if base == "" {
		return notFoundf("branch %q has no upstream", branch)
	}
	tip, err := m.repo.BranchHash(branch)
	if err != nil {
		return err
	}
	// The Series-links trailer lives on the top commit.
	_, err = m.repo.ReplaySeries(gitrepo.ReplayOptions{
		Branch: branch,
		Base:   base,
		DryRun: m.dryRun,
		Edit: func(c *object.Commit, msg string) (string, error) {
			if c.Hash != tip {
				return msg, nil
			}
			return patchstream.MergeSeriesLinks(msg, sv.Version, link), nil
		},
	})
	return err
}

// GetLink prints the stored link for one version.
func (m *Manager) GetLink(nameArg string, version int) error {
	name, version, err := m.resolveName(nameArg, version)
	if err != nil {
		return err
	}
	_, sv, err := m.seriesVer(name, version)
	if err != nil {
		return err
	}
	if !sv.Link.Valid {
		return notFoundf("series %q v%d has no link", name, sv.Version)
	}
	m.printf("%s\n", sv.Link.String)
	return nil
}

// errNoUniqueMatch drives the autolink retry loop; it never escapes
// Autolink.
var errNoUniqueMatch = fmt.Errorf("no unique match")

// deadlineBackOff retries at a constant interval, shortening the final
// pause so the total deadline is honoured exactly.
type deadlineBackOff struct {
	deadline time.Time
	now      func() time.Time
}

func (b *deadlineBackOff) NextBackOff() time.Duration {
	remaining := b.deadline.Sub(b.now())
	if remaining <= 0 {
		return backoff.Stop
	}
	if remaining < autolinkPoll {
		return remaining
	}
	return autolinkPoll
}

func (b *deadlineBackOff) Reset() {}

// Autolink finds the remote series matching one version by querying
// patchwork with the series description, and records the link on a unique
// match. With wait > 0 it retries until the deadline, pausing
// min(autolinkPoll, remaining) between attempts so a freshly sent series
// is picked up as soon as the server indexes it.
func (m *Manager) Autolink(ctx context.Context, nameArg string, version int, updateCommit bool, wait time.Duration) error {
	name, version, err := m.resolveName(nameArg, version)
	if err != nil {
		return err
	}
	ser, sv, err := m.seriesVer(name, version)
	if err != nil {
		return err
	}
	if sv.Link.Valid {
		m.printf("Series %q v%d already linked to %s\n", name, sv.Version, sv.Link.String)
		return nil
	}
	if err := m.project(); err != nil {
		return err
	}

	query := ser.Desc
	if query == "" {
		query = ser.Name
	}

	var link string
	var cands []patchwork.Candidate
	attempt := func() error {
		l, c, err := m.client.FindSeries(ctx, query, sv.Version)
		if err != nil {
			return backoff.Permanent(err)
		}
		link, cands = l, c
		if link == "" {
			return errNoUniqueMatch
		}
		return nil
	}

	if wait <= 0 {
		err = attempt()
	} else {
		b := &deadlineBackOff{deadline: m.now().Add(wait), now: m.now}
		notify := func(_ error, pause time.Duration) {
			m.printf("No match yet; retrying in %s\n", pause.Round(time.Second))
		}
		err = backoff.RetryNotifyWithTimer(attempt, backoff.WithContext(b, ctx), notify, m.timer)
	}
	switch {
	case err == nil:
		return m.setLink(name, sv, link, updateCommit)
	case errors.Is(err, errNoUniqueMatch):
		m.printCandidates(query, cands)
		if wait > 0 {
			return &TimeoutError{After: wait}
		}
		return notFoundf("no unique match for %q v%d", query, sv.Version)
	default:
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Unwrap()
		}
		return err
	}
}

func (m *Manager) printCandidates(query string, cands []patchwork.Candidate) {
	if len(cands) == 0 {
		m.printf("No remote series matches %q\n", query)
		return
	}
	m.printf("Multiple candidates for %q:\n", query)
	for _, c := range cands {
		m.printf("  %d: %s (v%d)\n", c.ID, c.Name, c.Version)
	}
}

// AutolinkAll runs autolink over every unlinked ser_ver (or every ser_ver
// with replaceExisting), printing a one-line result per version. Lookups
// run concurrently through the client's bounded pool.
func (m *Manager) AutolinkAll(ctx context.Context, allVersions, replaceExisting, updateCommit bool) error {
	if err := m.project(); err != nil {
		return err
	}

	svs, err := m.store.AllSerVers()
	if err != nil {
		return err
	}

	type target struct {
		name string
		sv   store.SerVer
	}
	queries := make(map[int64]patchwork.SeriesQuery)
	targets := make(map[int64]target)
	latest := make(map[int64]int)
	if !allVersions {
		for _, sv := range svs {
			if sv.Version > latest[sv.SeriesID] {
				latest[sv.SeriesID] = sv.Version
			}
		}
	}
	for _, sv := range svs {
		if sv.Link.Valid && !replaceExisting {
			continue
		}
		if !allVersions && sv.Version != latest[sv.SeriesID] {
			continue
		}
		ser, err := m.store.SeriesByID(sv.SeriesID)
		if err != nil {
			return err
		}
		if ser == nil || ser.Archived {
			continue
		}
		query := ser.Desc
		if query == "" {
			query = ser.Name
		}
		queries[sv.ID] = patchwork.SeriesQuery{Name: query, Version: sv.Version}
		targets[sv.ID] = target{name: ser.Name, sv: sv}
	}
	if len(queries) == 0 {
		m.printf("Nothing to link\n")
		return nil
	}

	results, requests, err := m.client.FindSeriesList(ctx, queries)
	if err != nil {
		return err
	}

	type linkedVer struct {
		target
		link string
	}
	var linked []linkedVer
	err = m.tx(func() error {
		for svid, t := range targets {
			res := results[svid]
			label := fmt.Sprintf("%s v%d", t.name, t.sv.Version)
			switch {
			case res.Err != nil:
				m.printf("%-20s %s\n", label, m.theme.Warn(res.Err.Error()))
			case res.Link != "":
				if err := m.store.SetLink(svid, res.Link); err != nil {
					return err
				}
				linked = append(linked, linkedVer{t, res.Link})
				m.printf("%-20s %s\n", label, m.theme.Added("linked "+res.Link))
			case len(res.Candidates) > 0:
				m.printf("%-20s %s\n", label,
					m.theme.Warn(fmt.Sprintf("%d candidates, not linked", len(res.Candidates))))
			default:
				m.printf("%-20s %s\n", label, m.theme.Warn("no match"))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if updateCommit {
		for _, lv := range linked {
			sv := lv.sv
			if err := m.mergeLinkCommit(lv.name, &sv, lv.link); err != nil {
				return err
			}
		}
	}
	m.printf("Linked %d of %d series (%d requests)\n", len(linked), len(targets), requests)
	return nil
}
