package cseries

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anthropic/cseries/internal/config"
	"github.com/anthropic/cseries/internal/gitrepo"
	"github.com/anthropic/cseries/internal/patchwork"
	"github.com/anthropic/cseries/internal/store"
	"github.com/anthropic/cseries/internal/ui"
)

// env is a scratch repository plus a manager wired to a temp database and
// a fake patchwork.
type env struct {
	t    *testing.T
	dir  string
	st   *store.Store
	repo *gitrepo.Repo
	m    *Manager
	out  *bytes.Buffer
}

func newEnv(t *testing.T, fn patchwork.RequestFunc) *env {
	t.Helper()
	dir := t.TempDir()

	e := &env{t: t, dir: dir}
	e.git("init", "-b", "base")
	e.git("config", "user.name", "Test User")
	e.git("config", "user.email", "test@example.com")
	e.commitFile("README", "hello\n", "initial commit")

	repo, err := gitrepo.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	st, err := store.Open(filepath.Join(dir, store.DBName))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	if fn == nil {
		fn = func(subpath string) (any, error) {
			return nil, fmt.Errorf("unexpected request %q", subpath)
		}
	}

	e.st = st
	e.repo = repo
	e.out = &bytes.Buffer{}
	e.m = New(st, repo, patchwork.ForTesting(fn), config.Default(),
		ui.PlainTheme(), e.out, false)
	return e
}

func (e *env) git(args ...string) string {
	e.t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = e.dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		e.t.Fatalf("git %v: %v: %s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

func (e *env) commitFile(file, content, msg string) {
	e.t.Helper()
	if err := os.WriteFile(filepath.Join(e.dir, file), []byte(content), 0644); err != nil {
		e.t.Fatal(err)
	}
	e.git("add", file)
	cmd := exec.Command("git", "commit", "-F", "-")
	cmd.Dir = e.dir
	cmd.Stdin = strings.NewReader(msg)
	if out, err := cmd.CombinedOutput(); err != nil {
		e.t.Fatalf("git commit: %v: %s", err, out)
	}
}

// branch creates a branch off base with one commit per message, tracking
// base, and leaves it checked out.
func (e *env) branch(name string, msgs ...string) {
	e.t.Helper()
	e.git("checkout", "-b", name, "base")
	for i, msg := range msgs {
		e.commitFile(name+".txt", strings.Repeat("x\n", i+1), msg)
	}
	e.git("branch", "--set-upstream-to=base", name)
}

// messages returns the commit messages of branch above base, oldest first.
func (e *env) messages(branch string) []string {
	e.t.Helper()
	tip, err := e.repo.BranchHash(branch)
	if err != nil {
		e.t.Fatal(err)
	}
	base, err := e.repo.Resolve("base")
	if err != nil {
		e.t.Fatal(err)
	}
	commits, err := e.repo.CommitsBetween(base, tip)
	if err != nil {
		e.t.Fatal(err)
	}
	var msgs []string
	for _, c := range commits {
		msgs = append(msgs, c.Message)
	}
	return msgs
}

func (e *env) setProject() {
	e.t.Helper()
	if err := e.st.SetProject("My Project", 6, "myproj"); err != nil {
		e.t.Fatal(err)
	}
}

func TestAddAndList(t *testing.T) {
	e := newEnv(t, nil)
	e.branch("first", "video: fix A\n\nbody\n", "spi: fix B\n\nbody\n")

	if err := e.m.Add("first", "desc", false, true, ""); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ser, err := e.st.SeriesByName("first")
	if err != nil || ser == nil {
		t.Fatalf("series row missing: %v", err)
	}
	if ser.Desc != "desc" {
		t.Errorf("desc = %q", ser.Desc)
	}
	sv, err := e.st.SerVer(ser.ID, 1)
	if err != nil || sv == nil {
		t.Fatalf("ser_ver missing: %v", err)
	}
	if sv.Link.Valid {
		t.Error("fresh ser_ver has a link")
	}
	pcs, err := e.st.PCommits(sv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(pcs) != 2 || pcs[0].Subject != "video: fix A" || pcs[1].Subject != "spi: fix B" {
		t.Errorf("pcommits = %+v", pcs)
	}
	for i, pc := range pcs {
		if pc.Seq != i {
			t.Errorf("pcommit %d has seq %d", i, pc.Seq)
		}
	}

	e.out.Reset()
	if err := e.m.List(false); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(e.out.String(), "\n"), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "Name") {
		t.Fatalf("list output:\n%s", e.out.String())
	}
	for _, want := range []string{"first", "desc", "-/2", "1"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("list row missing %q: %s", want, lines[1])
		}
	}
}

func TestAddRefusesUnmarked(t *testing.T) {
	e := newEnv(t, nil)
	e.branch("first", "video: fix A\n\nbody\n")

	err := e.m.Add("first", "", false, false, "")
	var input *InputError
	if !errors.As(err, &input) {
		t.Fatalf("expected InputError, got %v", err)
	}
}

func TestAddMarkInjectsChangeIDs(t *testing.T) {
	e := newEnv(t, nil)
	e.branch("first", "video: fix A\n\nbody\n", "spi: fix B\n\nbody\n")

	if err := e.m.Add("first", "", true, false, ""); err != nil {
		t.Fatalf("Add -m: %v", err)
	}
	for _, msg := range e.messages("first") {
		if !strings.Contains(msg, "Change-Id: ") {
			t.Errorf("message not marked:\n%s", msg)
		}
	}

	ser, _ := e.st.SeriesByName("first")
	sv, _ := e.st.SerVer(ser.ID, 1)
	pcs, _ := e.st.PCommits(sv.ID)
	for _, pc := range pcs {
		if !pc.ChangeID.Valid || len(pc.ChangeID.String) != 40 {
			t.Errorf("pcommit %q change_id = %+v", pc.Subject, pc.ChangeID)
		}
	}
}

func TestAddReportsCommitWarnings(t *testing.T) {
	e := newEnv(t, nil)
	e.git("checkout", "-b", "first", "base")
	e.commitFile("first.txt", "x\n\n\n", "video: fix A\n\nbody\n\nSeries-bogus: nope\n")
	e.git("branch", "--set-upstream-to=base", "first")

	if err := e.m.Add("first", "", false, true, ""); err != nil {
		t.Fatalf("Add: %v", err)
	}
	out := e.out.String()
	if !strings.Contains(out, "unknown tag") {
		t.Errorf("message warning missing:\n%s", out)
	}
	if !strings.Contains(out, "blank line at end of file") {
		t.Errorf("diff warning missing:\n%s", out)
	}
}

func TestDryRunAddRollsBack(t *testing.T) {
	e := newEnv(t, nil)
	e.branch("first", "video: fix A\n\nbody\n")

	dm := New(e.st, e.repo, patchwork.ForTesting(nil), config.Default(),
		ui.PlainTheme(), e.out, true)
	if err := dm.Add("first", "desc", false, true, ""); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !strings.Contains(e.out.String(), "Added series") {
		t.Errorf("dry run suppressed output: %q", e.out.String())
	}

	ser, err := e.st.SeriesByName("first")
	if err != nil {
		t.Fatal(err)
	}
	if ser != nil {
		t.Error("dry run committed a series row")
	}
}

func TestMarkUnmarkRoundTrip(t *testing.T) {
	e := newEnv(t, nil)
	e.branch("first", "video: fix A\n\nbody\n", "spi: fix B\n\nbody\n")
	before := e.messages("first")

	if err := e.m.Add("first", "", false, true, ""); err != nil {
		t.Fatal(err)
	}
	if err := e.m.Mark("first", false); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	for _, msg := range e.messages("first") {
		if !strings.Contains(msg, "Change-Id: ") {
			t.Errorf("message not marked:\n%s", msg)
		}
	}
	// Marking twice without permission is a conflict.
	if err := e.m.Mark("first", false); Class(err) != "Conflict" {
		t.Errorf("second mark: %v", err)
	}

	if err := e.m.Unmark("first", false); err != nil {
		t.Fatalf("Unmark: %v", err)
	}
	after := e.messages("first")
	if len(after) != len(before) {
		t.Fatalf("commit count changed: %d != %d", len(after), len(before))
	}
	for i := range after {
		if after[i] != before[i] {
			t.Errorf("message %d not restored:\n%q\n%q", i, after[i], before[i])
		}
	}
}

func TestIncrementPreservesOldBranch(t *testing.T) {
	e := newEnv(t, nil)
	e.branch("first", "video: fix A\n\nbody\n", "spi: fix B\n\nbody\n")
	if err := e.m.Add("first", "", false, true, ""); err != nil {
		t.Fatal(err)
	}
	oldTip, err := e.repo.BranchHash("first")
	if err != nil {
		t.Fatal(err)
	}

	if err := e.m.Increment("first"); err != nil {
		t.Fatalf("Increment: %v", err)
	}

	tip, err := e.repo.BranchHash("first")
	if err != nil {
		t.Fatal(err)
	}
	if tip != oldTip {
		t.Error("increment moved the old branch")
	}
	if !e.repo.BranchExists("first2") {
		t.Fatal("branch first2 missing")
	}
	msgs := e.messages("first2")
	if !strings.Contains(msgs[len(msgs)-1], "Series-version: 2") {
		t.Errorf("tip of first2 lacks Series-version: 2:\n%s", msgs[len(msgs)-1])
	}
	for _, msg := range msgs[:len(msgs)-1] {
		if strings.Contains(msg, "Series-version") {
			t.Errorf("non-tip commit carries Series-version:\n%s", msg)
		}
	}

	ser, _ := e.st.SeriesByName("first")
	sv1, _ := e.st.SerVer(ser.ID, 1)
	sv2, _ := e.st.SerVer(ser.ID, 2)
	if sv2 == nil {
		t.Fatal("ser_ver v2 missing")
	}
	pcs1, _ := e.st.PCommits(sv1.ID)
	pcs2, _ := e.st.PCommits(sv2.ID)
	if len(pcs1) != len(pcs2) {
		t.Errorf("pcommit counts differ: v1=%d v2=%d", len(pcs1), len(pcs2))
	}
}

func TestIncrementBumpsTrailerInPlace(t *testing.T) {
	e := newEnv(t, nil)
	e.branch("first",
		"video: fix A\n\nbody\n\nSeries-version: 1\n",
		"spi: fix B\n\nbody\n")
	if err := e.m.Add("first", "", false, true, ""); err != nil {
		t.Fatal(err)
	}

	if err := e.m.Increment("first"); err != nil {
		t.Fatalf("Increment: %v", err)
	}

	msgs := e.messages("first2")
	if !strings.Contains(msgs[0], "Series-version: 2") {
		t.Errorf("carrying commit not bumped:\n%s", msgs[0])
	}
	if strings.Contains(msgs[1], "Series-version") {
		t.Errorf("trailer spread to the tip:\n%s", msgs[1])
	}
}

func TestDecrement(t *testing.T) {
	e := newEnv(t, nil)
	e.branch("first", "video: fix A\n\nbody\n")
	if err := e.m.Add("first", "", false, true, ""); err != nil {
		t.Fatal(err)
	}
	if err := e.m.Decrement("first"); Class(err) != "InputError" {
		t.Errorf("decrement of single version: %v", err)
	}

	if err := e.m.Increment("first"); err != nil {
		t.Fatal(err)
	}
	if err := e.m.Decrement("first"); err != nil {
		t.Fatalf("Decrement: %v", err)
	}
	if e.repo.BranchExists("first2") {
		t.Error("branch first2 survived decrement")
	}
	cur, err := e.repo.CurrentBranch()
	if err != nil || cur != "first" {
		t.Errorf("current branch = %q, %v", cur, err)
	}
	ser, _ := e.st.SeriesByName("first")
	if sv, _ := e.st.SerVer(ser.ID, 2); sv != nil {
		t.Error("ser_ver v2 survived decrement")
	}
}

func TestRename(t *testing.T) {
	e := newEnv(t, nil)
	e.branch("second", "video: fix A\n\nbody\n")
	if err := e.m.Add("second", "", false, true, ""); err != nil {
		t.Fatal(err)
	}
	if err := e.m.Increment("second"); err != nil {
		t.Fatal(err)
	}

	// A colliding target branch blocks the whole rename.
	e.git("branch", "third", "base")
	if err := e.m.Rename("second", "third"); Class(err) != "Conflict" {
		t.Fatalf("rename over existing branch: %v", err)
	}
	e.git("branch", "-D", "third")

	// Dry run reports the moves but leaves everything alone.
	dm := New(e.st, e.repo, patchwork.ForTesting(nil), config.Default(),
		ui.PlainTheme(), e.out, true)
	if err := dm.Rename("second", "third"); err != nil {
		t.Fatalf("dry-run rename: %v", err)
	}
	if !e.repo.BranchExists("second") || e.repo.BranchExists("third") {
		t.Error("dry-run rename moved branches")
	}
	if ser, _ := e.st.SeriesByName("second"); ser == nil {
		t.Error("dry-run rename committed the row change")
	}

	if err := e.m.Rename("second", "third"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	for _, want := range []string{"third", "third2"} {
		if !e.repo.BranchExists(want) {
			t.Errorf("branch %q missing after rename", want)
		}
	}
	if e.repo.BranchExists("second") || e.repo.BranchExists("second2") {
		t.Error("old branches survived rename")
	}
	if ser, _ := e.st.SeriesByName("third"); ser == nil {
		t.Error("series row not renamed")
	}
}

func autolinkServer(results []patchwork.Candidate) patchwork.RequestFunc {
	return func(subpath string) (any, error) {
		if subpath == "series/?project=6&q=Series+for+my+board" {
			return results, nil
		}
		return nil, fmt.Errorf("unexpected request %q", subpath)
	}
}

func TestAutolinkHappyPath(t *testing.T) {
	e := newEnv(t, autolinkServer([]patchwork.Candidate{
		{ID: 456, Name: "Series for my board", Version: 1},
	}))
	e.setProject()
	e.branch("second", "video: fix A\n\nbody\n")
	if err := e.m.Add("second", "Series for my board", false, true, ""); err != nil {
		t.Fatal(err)
	}

	if err := e.m.Autolink(context.Background(), "second", 0, true, 0); err != nil {
		t.Fatalf("Autolink: %v", err)
	}

	ser, _ := e.st.SeriesByName("second")
	sv, _ := e.st.SerVer(ser.ID, 1)
	if !sv.Link.Valid || sv.Link.String != "456" {
		t.Errorf("link = %+v, want 456", sv.Link)
	}
	msgs := e.messages("second")
	if !strings.Contains(msgs[len(msgs)-1], "Series-links: 1:456") {
		t.Errorf("top commit lacks Series-links trailer:\n%s", msgs[len(msgs)-1])
	}

	// A second run is a no-op.
	e.out.Reset()
	if err := e.m.Autolink(context.Background(), "second", 0, true, 0); err != nil {
		t.Fatalf("second Autolink: %v", err)
	}
	if !strings.Contains(e.out.String(), "already linked") {
		t.Errorf("output: %q", e.out.String())
	}
}

func TestAutolinkAmbiguity(t *testing.T) {
	e := newEnv(t, autolinkServer([]patchwork.Candidate{
		{ID: 456, Name: "Series for my board", Version: 1},
		{ID: 457, Name: "Series for my board", Version: 2},
	}))
	e.setProject()
	e.branch("third3", "video: fix A\n\nbody\n")
	if err := e.m.Add("third3", "Series for my board", false, true, ""); err != nil {
		t.Fatal(err)
	}

	err := e.m.Autolink(context.Background(), "third", 3, false, 0)
	if Class(err) != "NotFound" {
		t.Fatalf("expected NotFound, got %v", err)
	}
	out := e.out.String()
	for _, want := range []string{"456", "457"} {
		if !strings.Contains(out, want) {
			t.Errorf("candidate %s not printed:\n%s", want, out)
		}
	}
	ser, _ := e.st.SeriesByName("third")
	sv, _ := e.st.SerVer(ser.ID, 3)
	if sv.Link.Valid {
		t.Error("ambiguous autolink recorded a link")
	}
}

// instantTimer fires immediately so retry waits can be driven without real
// sleeping.
type instantTimer struct {
	ch chan time.Time
}

func (t *instantTimer) Start(time.Duration) {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	t.ch = ch
}

func (t *instantTimer) C() <-chan time.Time { return t.ch }

func (t *instantTimer) Stop() {}

func TestAutolinkWaitHonoursDeadline(t *testing.T) {
	e := newEnv(t, autolinkServer(nil))
	e.setProject()
	e.branch("second", "video: fix A\n\nbody\n")
	if err := e.m.Add("second", "Series for my board", false, true, ""); err != nil {
		t.Fatal(err)
	}

	// Each clock reading advances 20s: the 30s deadline allows one retry
	// with a shortened 10s pause, then expires.
	start := time.Now()
	calls := 0
	now := func() time.Time {
		calls++
		return start.Add(time.Duration(calls-1) * 20 * time.Second)
	}
	e.m.SetClock(now, &instantTimer{})

	err := e.m.Autolink(context.Background(), "second", 0, false, 30*time.Second)
	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if !strings.Contains(e.out.String(), "retrying in 10s") {
		t.Errorf("final pause not shortened to the remaining time:\n%s", e.out.String())
	}
}

func TestSetAndGetLink(t *testing.T) {
	e := newEnv(t, nil)
	e.branch("first", "video: fix A\n\nbody\n")
	if err := e.m.Add("first", "", false, true, ""); err != nil {
		t.Fatal(err)
	}

	if err := e.m.GetLink("first", 0); Class(err) != "NotFound" {
		t.Errorf("get-link before set: %v", err)
	}
	if err := e.m.SetLink("first", 0, "1234", false); err != nil {
		t.Fatalf("SetLink: %v", err)
	}
	e.out.Reset()
	if err := e.m.GetLink("first", 0); err != nil {
		t.Fatalf("GetLink: %v", err)
	}
	if strings.TrimSpace(e.out.String()) != "1234" {
		t.Errorf("get-link output = %q", e.out.String())
	}
}

func syncServer() patchwork.RequestFunc {
	patches := []map[string]any{
		{"id": 10, "name": "[PATCH 1/3] video: fix A", "state": "accepted"},
		{"id": 11, "name": "[PATCH 2/3] spi: fix B", "state": "changes-requested"},
		{"id": 12, "name": "[PATCH 3/3] net: fix C", "state": "rejected"},
	}
	return func(subpath string) (any, error) {
		switch subpath {
		case "series/456/":
			return map[string]any{
				"id":           456,
				"name":         "Series for my board",
				"version":      1,
				"cover_letter": map[string]any{"id": 39, "name": "cover", "num_comments": 2},
				"patches":      patches,
			}, nil
		case "patches/10/", "patches/11/", "patches/12/":
			for _, p := range patches {
				if fmt.Sprintf("patches/%d/", p["id"]) == subpath {
					p["num_comments"] = 1
					return p, nil
				}
			}
		case "covers/39/comments/":
			return []map[string]any{
				{"content": "nice cover"},
				{"content": "ship it"},
			}, nil
		}
		return nil, fmt.Errorf("unexpected request %q", subpath)
	}
}

func TestSync(t *testing.T) {
	e := newEnv(t, syncServer())
	e.setProject()
	e.branch("first",
		"video: fix A\n\nbody\n", "spi: fix B\n\nbody\n", "net: fix C\n\nbody\n")
	if err := e.m.Add("first", "", false, true, ""); err != nil {
		t.Fatal(err)
	}
	ser, _ := e.st.SeriesByName("first")
	sv, _ := e.st.SerVer(ser.ID, 1)
	if err := e.st.SetLink(sv.ID, "456"); err != nil {
		t.Fatal(err)
	}

	if err := e.m.Sync(context.Background(), "first", 0, false, false); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	pcs, _ := e.st.PCommits(sv.ID)
	wantStates := []string{"accepted", "changes-requested", "rejected"}
	for i, pc := range pcs {
		if pc.State.String != wantStates[i] {
			t.Errorf("pcommit %d state = %q, want %q", i, pc.State.String, wantStates[i])
		}
		if !pc.PatchID.Valid || pc.PatchID.Int64 != int64(10+i) {
			t.Errorf("pcommit %d patch_id = %+v", i, pc.PatchID)
		}
	}

	sv, _ = e.st.SerVer(ser.ID, 1)
	if sv.CoverID.String != "39" || sv.CoverNumComments.Int64 != 2 {
		t.Errorf("cover = %+v / %+v, want 39 / 2", sv.CoverID, sv.CoverNumComments)
	}
}

func TestSyncSkipsCommentFetchWhenCountsMatch(t *testing.T) {
	var mu sync.Mutex
	fetched := make(map[string]bool)
	patch := map[string]any{
		"id": 10, "name": "[PATCH] video: fix A", "state": "accepted", "reviewed": 1,
	}
	e := newEnv(t, func(subpath string) (any, error) {
		mu.Lock()
		fetched[subpath] = true
		mu.Unlock()
		switch subpath {
		case "series/456/":
			return map[string]any{"id": 456, "patches": []map[string]any{patch}}, nil
		case "patches/10/":
			return patch, nil
		}
		return nil, fmt.Errorf("unexpected request %q", subpath)
	})
	e.setProject()
	e.branch("first", "video: fix A\n\nbody\n\nReviewed-by: Rev One <rev@example.com>\n")
	if err := e.m.Add("first", "", false, true, ""); err != nil {
		t.Fatal(err)
	}
	ser, _ := e.st.SeriesByName("first")
	sv, _ := e.st.SerVer(ser.ID, 1)
	if err := e.st.SetLink(sv.ID, "456"); err != nil {
		t.Fatal(err)
	}

	if err := e.m.Sync(context.Background(), "first", 0, true, false); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	// The remote counts match the recorded tags, so the comment fetch is
	// skipped entirely.
	if fetched["patches/10/comments/"] {
		t.Error("comments fetched although the tag counts match")
	}
}

func TestSyncAllGathersTags(t *testing.T) {
	patch := map[string]any{"id": 10, "name": "[PATCH] video: fix A", "state": "accepted"}
	e := newEnv(t, func(subpath string) (any, error) {
		switch subpath {
		case "series/456/":
			return map[string]any{
				"id": 456, "name": "first", "version": 1,
				"patches": []map[string]any{patch},
			}, nil
		case "patches/10/":
			return patch, nil
		case "patches/10/comments/":
			return []map[string]any{
				{"content": "Reviewed-by: Rev One <rev@example.com>\n"},
			}, nil
		}
		return nil, fmt.Errorf("unexpected request %q", subpath)
	})
	e.setProject()
	e.branch("first", "video: fix A\n\nbody\n")
	if err := e.m.Add("first", "", false, true, ""); err != nil {
		t.Fatal(err)
	}
	ser, _ := e.st.SeriesByName("first")
	sv, _ := e.st.SerVer(ser.ID, 1)
	if err := e.st.SetLink(sv.ID, "456"); err != nil {
		t.Fatal(err)
	}

	if err := e.m.SyncAll(context.Background(), false, true); err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	if !strings.Contains(e.out.String(), "+ Reviewed-by: Rev One <rev@example.com>") {
		t.Errorf("new tag not reported:\n%s", e.out.String())
	}
	msgs := e.messages("first")
	if !strings.Contains(msgs[0], "Reviewed-by: Rev One <rev@example.com>") {
		t.Errorf("tag not written back to the branch:\n%s", msgs[0])
	}
}

func TestSyncWithoutLink(t *testing.T) {
	e := newEnv(t, nil)
	e.branch("first", "video: fix A\n\nbody\n")
	if err := e.m.Add("first", "", false, true, ""); err != nil {
		t.Fatal(err)
	}
	if err := e.m.Sync(context.Background(), "first", 0, false, false); Class(err) != "NotFound" {
		t.Errorf("sync without link: %v", err)
	}
}

func TestScanReportsChanges(t *testing.T) {
	e := newEnv(t, nil)
	e.branch("first", "video: fix A\n\nbody\n", "spi: fix B\n\nbody\n")
	if err := e.m.Add("first", "", false, true, ""); err != nil {
		t.Fatal(err)
	}

	e.commitFile("extra.txt", "y\n", "net: fix C\n\nbody\n")
	e.out.Reset()
	if err := e.m.Scan("first", false, true, ""); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !strings.Contains(e.out.String(), "+ net: fix C") {
		t.Errorf("scan output:\n%s", e.out.String())
	}

	ser, _ := e.st.SeriesByName("first")
	sv, _ := e.st.SerVer(ser.ID, 1)
	pcs, _ := e.st.PCommits(sv.ID)
	if len(pcs) != 3 {
		t.Errorf("pcommit count = %d, want 3", len(pcs))
	}
}

func TestArchiveHidesAndFreesName(t *testing.T) {
	e := newEnv(t, nil)
	e.branch("first", "video: fix A\n\nbody\n")
	if err := e.m.Add("first", "", false, true, ""); err != nil {
		t.Fatal(err)
	}
	if err := e.m.Archive("first"); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if ser, _ := e.st.SeriesByName("first"); ser != nil {
		t.Error("archived series still visible")
	}

	e.out.Reset()
	if err := e.m.List(false); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(e.out.String(), "first") {
		t.Error("archived series listed without --all")
	}

	if err := e.m.Unarchive("first"); err != nil {
		t.Fatalf("Unarchive: %v", err)
	}
	if ser, _ := e.st.SeriesByName("first"); ser == nil {
		t.Error("unarchived series not visible")
	}
}

func TestUpstreamVerbs(t *testing.T) {
	e := newEnv(t, nil)

	if err := e.m.UpstreamAdd("us", "https://example.com/us.git"); err != nil {
		t.Fatal(err)
	}
	if err := e.m.UpstreamAdd("ci", "https://example.com/ci.git"); err != nil {
		t.Fatal(err)
	}
	if err := e.m.UpstreamDefault("ci"); err != nil {
		t.Fatal(err)
	}

	ups, err := e.st.Upstreams()
	if err != nil {
		t.Fatal(err)
	}
	if len(ups) != 2 || !ups[0].IsDefault || ups[0].Name != "ci" {
		t.Errorf("upstreams = %+v", ups)
	}

	if err := e.m.UpstreamDelete("missing"); Class(err) != "NotFound" {
		t.Errorf("delete of missing upstream: %v", err)
	}
	if err := e.m.UpstreamDelete("us"); err != nil {
		t.Fatal(err)
	}
}

func TestSetProject(t *testing.T) {
	e := newEnv(t, func(subpath string) (any, error) {
		if subpath == "projects/" {
			return []patchwork.Project{
				{ID: 6, Name: "My Project", LinkName: "myproj"},
			}, nil
		}
		return nil, fmt.Errorf("unexpected request %q", subpath)
	})

	if err := e.m.SetProject(context.Background(), "nope"); Class(err) != "NotFound" {
		t.Errorf("unknown project: %v", err)
	}
	if err := e.m.SetProject(context.Background(), "My Project"); err != nil {
		t.Fatalf("SetProject: %v", err)
	}

	e.out.Reset()
	if err := e.m.GetProject(); err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if !strings.Contains(e.out.String(), "My Project") || !strings.Contains(e.out.String(), "6") {
		t.Errorf("get-project output: %q", e.out.String())
	}
}

func TestRemoveVersionAndRemove(t *testing.T) {
	e := newEnv(t, nil)
	e.branch("first", "video: fix A\n\nbody\n")
	if err := e.m.Add("first", "", false, true, ""); err != nil {
		t.Fatal(err)
	}
	if err := e.m.Increment("first"); err != nil {
		t.Fatal(err)
	}

	if err := e.m.RemoveVersion("first", 2); err != nil {
		t.Fatalf("RemoveVersion: %v", err)
	}
	ser, _ := e.st.SeriesByName("first")
	if sv, _ := e.st.SerVer(ser.ID, 2); sv != nil {
		t.Error("v2 survived remove-version")
	}
	if sv, _ := e.st.SerVer(ser.ID, 1); sv == nil {
		t.Error("v1 removed by remove-version")
	}

	if err := e.m.Remove("first"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if ser, _ := e.st.SeriesByName("first"); ser != nil {
		t.Error("series survived remove")
	}
}
