package cseries

import (
	"context"
	"sort"
	"strconv"

	"github.com/anthropic/cseries/internal/patchwork"
	"github.com/anthropic/cseries/internal/status"
	"github.com/anthropic/cseries/internal/store"
)

// applyRemote writes one remote series state into the store: per-patch
// review state, patch id and comment count, plus the cover letter details
// on the ser_ver. Patches whose subject matches no recorded commit are
// reported, not fatal. Must run inside a transaction.
func (m *Manager) applyRemote(sv *store.SerVer, state *patchwork.SeriesState) (int, int, error) {
	pcs, err := m.store.PCommits(sv.ID)
	if err != nil {
		return 0, 0, err
	}
	bySubject := make(map[string]*store.PCommit, len(pcs))
	for i := range pcs {
		bySubject[pcs[i].Subject] = &pcs[i]
	}

	var patches, mismatched int
	for _, p := range state.Patches {
		subject := status.ParseSubject(p.Name).Subject
		pc, ok := bySubject[subject]
		if !ok {
			mismatched++
			m.printf("%s\n", m.theme.Warn("patch not in series: "+subject))
			continue
		}
		err := m.store.UpdatePCommitRemote(pc.ID, p.State, int64(p.ID), p.NumComments)
		if err != nil {
			return 0, 0, err
		}
		patches++
	}
	if mismatched > 0 || len(state.Patches) != len(pcs) {
		m.printf("%s\n", m.theme.Warn("remote patches differ from recorded commits; consider running scan"))
	}

	covers := 0
	if state.Cover != nil {
		err := m.store.SetCover(sv.ID, strconv.Itoa(state.Cover.ID),
			state.Cover.NumComments, state.Cover.Name)
		if err != nil {
			return 0, 0, err
		}
		covers = 1
	}
	return patches, covers, nil
}

// Sync refreshes one version from patchwork: patch states, patch ids,
// comment counts and the cover letter. With gatherTags set, comments are
// fetched too and any new response tags are written back onto the branch
// by a replay.
func (m *Manager) Sync(ctx context.Context, nameArg string, version int, gatherTags, showComments bool) error {
	name, version, err := m.resolveName(nameArg, version)
	if err != nil {
		return err
	}
	_, sv, err := m.seriesVer(name, version)
	if err != nil {
		return err
	}
	if !sv.Link.Valid {
		return notFoundf("series %q v%d has no link; run autolink first", name, sv.Version)
	}
	if err := m.project(); err != nil {
		return err
	}

	// Comments are only prefetched when the user asked to see them; tag
	// gathering fetches lazily, skipping patches whose counts match.
	state, err := m.client.SeriesGetState(ctx, sv.Link.String, true, showComments)
	if err != nil {
		return err
	}

	var patches, covers int
	err = m.tx(func() error {
		patches, covers, err = m.applyRemote(sv, state)
		return err
	})
	if err != nil {
		return err
	}
	m.printf("Updated %d patches and %d covers for %q v%d\n",
		patches, covers, name, sv.Version)

	if !gatherTags {
		return nil
	}
	return m.gatherAndApply(ctx, name, sv, state, showComments)
}

// gatherAndApply reconciles a synced version's branch against its remote
// patches: new response tags found in comments are rendered and written
// back onto the branch by a replay.
func (m *Manager) gatherAndApply(ctx context.Context, name string, sv *store.SerVer, state *patchwork.SeriesState, showComments bool) error {
	branch := BranchName(name, sv.Version)
	parsed, _, base, err := m.parseBranch(branch, "")
	if err != nil {
		return err
	}
	res := status.Match(parsed.Commits, state.Patches)
	if err := status.GatherTags(ctx, m.client, res); err != nil {
		return err
	}
	status.Render(m.out, m.theme, res, showComments)
	if res.NewTagCount() == 0 {
		return nil
	}
	if err := m.requireClean(); err != nil {
		return err
	}
	if err := status.CreateBranch(m.repo, branch, base, branch, true, m.dryRun, res); err != nil {
		return err
	}
	m.printf("Added %d new response tags to %q\n", res.NewTagCount(), branch)
	return nil
}

// SyncAll refreshes every linked ser_ver in one bulk fetch, newest version
// of each series only unless allVersions is set. With gatherTags set,
// comments ride along in the same fan-out and any new response tags are
// replayed onto each branch afterwards.
func (m *Manager) SyncAll(ctx context.Context, allVersions, gatherTags bool) error {
	if err := m.project(); err != nil {
		return err
	}
	svs, err := m.store.AllSerVers()
	if err != nil {
		return err
	}

	latest := make(map[int64]int)
	if !allVersions {
		for _, sv := range svs {
			if sv.Version > latest[sv.SeriesID] {
				latest[sv.SeriesID] = sv.Version
			}
		}
	}

	links := make(map[int64]string)
	targets := make(map[int64]store.SerVer)
	var unlinked int
	for _, sv := range svs {
		if !allVersions && sv.Version != latest[sv.SeriesID] {
			continue
		}
		if !sv.Link.Valid {
			unlinked++
			continue
		}
		links[sv.ID] = sv.Link.String
		targets[sv.ID] = sv
	}
	if len(links) == 0 {
		m.printf("No linked series to sync (%d not linked)\n", unlinked)
		return nil
	}

	states, requests, err := m.client.SeriesGetStates(ctx, links, gatherTags)
	if err != nil {
		return err
	}

	var patches, covers int
	err = m.tx(func() error {
		for svid, state := range states {
			sv := targets[svid]
			p, c, err := m.applyRemote(&sv, state)
			if err != nil {
				return err
			}
			patches += p
			covers += c
		}
		return nil
	})
	if err != nil {
		return err
	}

	if gatherTags {
		svids := make([]int64, 0, len(states))
		for svid := range states {
			svids = append(svids, svid)
		}
		sort.Slice(svids, func(i, j int) bool { return svids[i] < svids[j] })
		for _, svid := range svids {
			sv := targets[svid]
			ser, err := m.store.SeriesByID(sv.SeriesID)
			if err != nil {
				return err
			}
			if ser == nil {
				continue
			}
			if err := m.gatherAndApply(ctx, ser.Name, &sv, states[svid], false); err != nil {
				return err
			}
		}
	}

	m.printf("Updated %d patches and %d covers across %d series; %d not linked (%d requests)\n",
		patches, covers, len(states), unlinked, requests)
	return nil
}
