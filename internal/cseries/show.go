package cseries

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/browser"

	"github.com/anthropic/cseries/internal/status"
)

// List prints one line per series: name, description, accepted/total for
// the newest version, and the newest version number. Archived series are
// hidden unless all is set.
func (m *Manager) List(all bool) error {
	series, err := m.store.AllSeries(all)
	if err != nil {
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-20s %-40s %8s %7s\n", "Name", "Description", "Accepted", "Version")
	for _, ser := range series {
		version, err := m.store.MaxVersion(ser.ID)
		if err != nil {
			return err
		}
		accepted := "-"
		if sv, err := m.store.SerVer(ser.ID, version); err != nil {
			return err
		} else if sv != nil {
			pcs, err := m.store.PCommits(sv.ID)
			if err != nil {
				return err
			}
			n := 0
			for _, pc := range pcs {
				if pc.State.String == "accepted" {
					n++
				}
			}
			frac := "-"
			if n > 0 {
				frac = fmt.Sprintf("%d", n)
			}
			accepted = fmt.Sprintf("%s/%d", frac, len(pcs))
		}
		name := ser.Name
		if ser.Archived {
			name += " (archived)"
		}
		fmt.Fprintf(&sb, "%-20s %-40s %8s %7d\n", name, ser.Desc, accepted, version)
	}
	return m.page(sb.String())
}

// Patches prints one line per patch of a version: position, review state,
// comment count and subject.
func (m *Manager) Patches(nameArg string, version int) error {
	name, version, err := m.resolveName(nameArg, version)
	if err != nil {
		return err
	}
	_, sv, err := m.seriesVer(name, version)
	if err != nil {
		return err
	}
	pcs, err := m.store.PCommits(sv.ID)
	if err != nil {
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Series %q v%d", name, sv.Version)
	if sv.Link.Valid {
		fmt.Fprintf(&sb, " (link %s)", sv.Link.String)
	}
	fmt.Fprintln(&sb)
	fmt.Fprintf(&sb, "%3s %-10s %8s  %s\n", "Seq", "State", "Comments", "Subject")
	for _, pc := range pcs {
		comments := "-"
		if pc.NumComments.Valid {
			comments = fmt.Sprintf("%d", pc.NumComments.Int64)
		}
		fmt.Fprintf(&sb, "%3d %-10s %8s  %s\n",
			pc.Seq, m.theme.ShortState(pc.State.String), comments, pc.Subject)
	}
	return m.page(sb.String())
}

// Progress prints per-version review progress for every series: how many
// patches are in each state.
func (m *Manager) Progress(all bool) error {
	series, err := m.store.AllSeries(all)
	if err != nil {
		return err
	}

	var sb strings.Builder
	for _, ser := range series {
		svs, err := m.store.SerVersForSeries(ser.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(&sb, "%s\n", m.theme.Bold(ser.Name))
		for _, sv := range svs {
			pcs, err := m.store.PCommits(sv.ID)
			if err != nil {
				return err
			}
			counts := make(map[string]int)
			for _, pc := range pcs {
				counts[pc.State.String]++
			}
			fmt.Fprintf(&sb, "  v%-3d %2d patches", sv.Version, len(pcs))
			for _, state := range sortedStates(counts) {
				fmt.Fprintf(&sb, "  %d %s", counts[state], m.theme.ShortState(state))
			}
			fmt.Fprintln(&sb)
		}
	}
	return m.page(sb.String())
}

func sortedStates(counts map[string]int) []string {
	states := make([]string, 0, len(counts))
	for state := range counts {
		states = append(states, state)
	}
	sort.Strings(states)
	return states
}

// Summary prints one line per series: name, newest version, link and
// description.
func (m *Manager) Summary() error {
	series, err := m.store.AllSeries(false)
	if err != nil {
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-20s %7s %-10s %s\n", "Name", "Version", "Link", "Description")
	for _, ser := range series {
		version, err := m.store.MaxVersion(ser.ID)
		if err != nil {
			return err
		}
		link := "-"
		if sv, err := m.store.SerVer(ser.ID, version); err != nil {
			return err
		} else if sv != nil && sv.Link.Valid {
			link = sv.Link.String
		}
		fmt.Fprintf(&sb, "%-20s %7d %-10s %s\n", ser.Name, version, link, ser.Desc)
	}
	return m.page(sb.String())
}

// Status reconciles one version against its remote patches: pairing by
// subject, showing existing and newly gathered response tags, and
// optionally writing the new tags onto a destination branch.
func (m *Manager) Status(ctx context.Context, nameArg string, version int, showComments bool, dest string, force bool) error {
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

	state, err := m.client.SeriesGetState(ctx, sv.Link.String, showComments, showComments)
	if err != nil {
		return err
	}

	branch := BranchName(name, sv.Version)
	parsed, _, base, err := m.parseBranch(branch, "")
	if err != nil {
		return err
	}
	res := status.Match(parsed.Commits, state.Patches)
	if err := status.GatherTags(ctx, m.client, res); err != nil {
		return err
	}

	var sb strings.Builder
	status.Render(&sb, m.theme, res, showComments)
	if err := m.page(sb.String()); err != nil {
		return err
	}

	if dest == "" {
		return nil
	}
	if res.NewTagCount() == 0 {
		m.printf("No new tags to write to %q\n", dest)
		return nil
	}
	if err := m.requireClean(); err != nil {
		return err
	}
	if err := status.CreateBranch(m.repo, branch, base, dest, force, m.dryRun, res); err != nil {
		return err
	}
	m.printf("Wrote %d new tags to branch %q\n", res.NewTagCount(), dest)
	return nil
}

// Open points the browser at the patchwork page for one version. A failed
// spawn is reported but not fatal.
func (m *Manager) Open(nameArg string, version int) error {
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
	if err := m.project(); err != nil {
		return err
	}

	url := m.client.GetSeriesURL(sv.Link.String)
	m.printf("%s\n", url)
	if err := browser.OpenURL(url); err != nil {
		m.printf("%s\n", m.theme.Warn("could not open browser: "+err.Error()))
	}
	return nil
}
