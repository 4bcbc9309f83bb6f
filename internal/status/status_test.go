package status

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/anthropic/cseries/internal/patchstream"
	"github.com/anthropic/cseries/internal/patchwork"
	"github.com/anthropic/cseries/internal/ui"
)

func TestParseSubject(t *testing.T) {
	cases := []struct {
		in   string
		want SubjectParts
	}{
		{
			"[PATCH v2 3/7] video: fix the thing",
			SubjectParts{Prefix: "PATCH", Version: 2, Seq: 3, Count: 7, Subject: "video: fix the thing"},
		},
		{
			"[RFC,PATCH,2/2] spi: second half",
			SubjectParts{Prefix: "RFC PATCH", Version: 1, Seq: 2, Count: 2, Subject: "spi: second half"},
		},
		{
			"plain subject with no bracket",
			SubjectParts{Version: 1, Subject: "plain subject with no bracket"},
		},
		{
			"[PATCH] video: one-off",
			SubjectParts{Prefix: "PATCH", Version: 1, Subject: "video: one-off"},
		},
	}
	for _, tc := range cases {
		got := ParseSubject(tc.in)
		if got != tc.want {
			t.Errorf("ParseSubject(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func commit(subject string) *patchstream.Commit {
	return &patchstream.Commit{Subject: subject, RTags: make(patchstream.RTags)}
}

func TestMatchPairsBySubject(t *testing.T) {
	commits := []*patchstream.Commit{
		commit("video: fix A"),
		commit("spi: fix B"),
	}
	patches := []patchwork.Patch{
		{ID: 10, Name: "[PATCH v2 2/2] spi: fix B"},
		{ID: 11, Name: "[PATCH v2 1/2] video: fix A"},
	}

	res := Match(commits, patches)
	if len(res.Pairs) != 2 {
		t.Fatalf("got %d pairs, want 2", len(res.Pairs))
	}
	for _, pair := range res.Pairs {
		want := ParseSubject(pair.Patch.Name).Subject
		if pair.Commit.Subject != want {
			t.Errorf("paired %q with patch %q", pair.Commit.Subject, pair.Patch.Name)
		}
	}
	if res.CountMismatch {
		t.Error("CountMismatch set for equal counts")
	}
	if len(res.Ambiguous) != 0 || len(res.UnmatchedCommits) != 0 || len(res.UnmatchedPatches) != 0 {
		t.Errorf("unexpected leftovers: %+v", res)
	}
}

func TestMatchReportsUnmatchedAndMismatch(t *testing.T) {
	commits := []*patchstream.Commit{
		commit("video: fix A"),
		commit("local only change"),
	}
	patches := []patchwork.Patch{
		{ID: 10, Name: "[PATCH 1/1] video: fix A"},
	}

	res := Match(commits, patches)
	if !res.CountMismatch {
		t.Error("CountMismatch not set")
	}
	if len(res.UnmatchedCommits) != 1 || res.UnmatchedCommits[0] != "local only change" {
		t.Errorf("UnmatchedCommits = %v", res.UnmatchedCommits)
	}
	if len(res.UnmatchedPatches) != 0 {
		t.Errorf("UnmatchedPatches = %v", res.UnmatchedPatches)
	}
}

func TestMatchAmbiguousSubject(t *testing.T) {
	commits := []*patchstream.Commit{
		commit("video: fix A"),
		commit("video: fix A"),
	}
	patches := []patchwork.Patch{
		{ID: 10, Name: "[PATCH 1/2] video: fix A"},
		{ID: 11, Name: "[PATCH 2/2] video: fix A"},
	}

	res := Match(commits, patches)
	if len(res.Ambiguous) != 1 || res.Ambiguous[0] != "video: fix A" {
		t.Errorf("Ambiguous = %v", res.Ambiguous)
	}
}

func TestGatherTagsSkipsWhenCountsMatch(t *testing.T) {
	fetched := make(map[string]bool)
	client := patchwork.ForTesting(func(subpath string) (any, error) {
		fetched[subpath] = true
		switch subpath {
		case "patches/11/comments/":
			return []patchwork.Comment{
				{Content: "Looks good.\n\nReviewed-by: Rick <rick@example.com>"},
			}, nil
		}
		return nil, fmt.Errorf("unexpected request %q", subpath)
	})

	settled := commit("video: fix A")
	settled.RTags.Add(patchstream.TagAckedBy, "Ann <ann@example.com>")
	stale := commit("spi: fix B")

	res := &Result{Pairs: []*Pair{
		{Commit: settled, Patch: &patchwork.Patch{ID: 10, Acked: 1}},
		{Commit: stale, Patch: &patchwork.Patch{ID: 11, Reviewed: 1}},
	}}
	if err := GatherTags(context.Background(), client, res); err != nil {
		t.Fatalf("GatherTags: %v", err)
	}

	if fetched["patches/10/comments/"] {
		t.Error("fetched comments for a patch whose counts already match")
	}
	if !res.Pairs[1].NewRTags.Has(patchstream.TagReviewedBy, "Rick <rick@example.com>") {
		t.Errorf("new tags not gathered: %v", res.Pairs[1].NewRTags)
	}
	if res.NewTagCount() != 1 {
		t.Errorf("NewTagCount = %d, want 1", res.NewTagCount())
	}
}

func TestGatherTagsFetchFailureBecomesWarning(t *testing.T) {
	client := patchwork.ForTesting(func(subpath string) (any, error) {
		return nil, fmt.Errorf("boom")
	})

	pair := &Pair{
		Commit: commit("video: fix A"),
		Patch:  &patchwork.Patch{ID: 10, Reviewed: 1},
	}
	res := &Result{Pairs: []*Pair{pair}}
	if err := GatherTags(context.Background(), client, res); err != nil {
		t.Fatalf("GatherTags: %v", err)
	}
	if len(pair.Warnings) != 1 || !strings.Contains(pair.Warnings[0], "patch 10") {
		t.Errorf("Warnings = %v", pair.Warnings)
	}
}

func TestRender(t *testing.T) {
	pair := &Pair{
		Commit:   commit("video: fix A"),
		Patch:    &patchwork.Patch{ID: 10},
		NewRTags: make(patchstream.RTags),
	}
	pair.Commit.RTags.Add(patchstream.TagAckedBy, "Ann <ann@example.com>")
	pair.NewRTags.Add(patchstream.TagReviewedBy, "Rick <rick@example.com>")

	res := &Result{
		Pairs:            []*Pair{pair},
		UnmatchedCommits: []string{"local only change"},
		CountMismatch:    true,
	}

	var sb strings.Builder
	Render(&sb, ui.PlainTheme(), res, false)
	out := sb.String()

	for _, want := range []string{
		"  1 video: fix A",
		"Acked-by: Ann <ann@example.com>",
		"+ Reviewed-by: Rick <rick@example.com>",
		"commit not on server: local only change",
		"consider running scan",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
