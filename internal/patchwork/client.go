// Package patchwork is a read-only JSON client for a patchwork patch-review
// service. Outbound requests share a counting semaphore so bulk operations
// never flood the server, and every request is context-cancellable.
package patchwork

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// maxConcurrent bounds the number of in-flight requests.
const maxConcurrent = 16

// DefaultTimeout is the per-request timeout.
const DefaultTimeout = 30 * time.Second

// RequestFunc stands in for the whole HTTP layer in tests: it receives the
// URL subpath and returns the value the server would have encoded.
type RequestFunc func(subpath string) (any, error)

// RemoteError reports a non-OK response or malformed JSON from the server.
type RemoteError struct {
	URL    string
	Status int
	Msg    string
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("patchwork: %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("patchwork: %s: %s", e.URL, e.Msg)
}

// Client talks to one patchwork server. The zero value is not usable; use
// New or ForTesting.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sem        *semaphore.Weighted
	testFn     RequestFunc

	inFlight atomic.Int64
	requests atomic.Int64

	projectID int
	linkName  string
}

// New returns a client for the patchwork server at baseURL (the server
// root, e.g. "https://patchwork.ozlabs.org").
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		sem:        semaphore.NewWeighted(maxConcurrent),
	}
}

// ForTesting returns a client that routes every request to fn instead of
// the network.
func ForTesting(fn RequestFunc) *Client {
	return &Client{
		testFn: fn,
		sem:    semaphore.NewWeighted(maxConcurrent),
	}
}

// SetProject scopes subsequent series queries to one project.
func (c *Client) SetProject(id int, linkName string) {
	c.projectID = id
	c.linkName = linkName
}

// InFlight returns the number of requests currently outstanding.
func (c *Client) InFlight() int64 {
	return c.inFlight.Load()
}

// RequestCount returns the total number of requests issued so far.
func (c *Client) RequestCount() int64 {
	return c.requests.Load()
}

// get fetches an API subpath and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, subpath string, out any) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)

	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	c.requests.Add(1)

	if c.testFn != nil {
		v, err := c.testFn(subpath)
		if err != nil {
			return err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, out); err != nil {
			return &RemoteError{URL: subpath, Msg: err.Error()}
		}
		return nil
	}

	u := c.baseURL + "/api/1.2/" + subpath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("patchwork request %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RemoteError{URL: u, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("patchwork read %s: %w", u, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &RemoteError{URL: u, Msg: "malformed JSON: " + err.Error()}
	}
	return nil
}

// GetProjects lists the projects hosted by the server.
func (c *Client) GetProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.get(ctx, "projects/", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetSeriesURL returns the canonical browser URL for a series link.
func (c *Client) GetSeriesURL(link string) string {
	return fmt.Sprintf("%s/project/%s/list/?series=%s", c.baseURL, c.linkName, link)
}

// FindSeries looks for a remote series matching name and version within
// the configured project. A single exact match returns its link; otherwise
// the ranked candidate list is returned for the user to choose from.
func (c *Client) FindSeries(ctx context.Context, name string, version int) (string, []Candidate, error) {
	subpath := fmt.Sprintf("series/?project=%d&q=%s", c.projectID, url.QueryEscape(name))

	var found []Candidate
	if err := c.get(ctx, subpath, &found); err != nil {
		return "", nil, err
	}

	var exact []Candidate
	var near []Candidate
	for _, cand := range found {
		if cand.Name != name {
			continue
		}
		if cand.Version == version {
			exact = append(exact, cand)
		} else {
			near = append(near, cand)
		}
	}
	if len(exact) == 1 {
		return strconv.Itoa(exact[0].ID), nil, nil
	}
	return "", append(exact, near...), nil
}

// SeriesQuery names one local ser_ver for bulk lookups, keyed by svid.
type SeriesQuery struct {
	Name    string
	Version int
}

// FindResult is the outcome of one bulk FindSeries lookup.
type FindResult struct {
	Link       string
	Candidates []Candidate
	Err        error
}

// FindSeriesList resolves many ser_vers concurrently. It returns the
// per-svid decision and the number of requests issued.
func (c *Client) FindSeriesList(ctx context.Context, queries map[int64]SeriesQuery) (map[int64]FindResult, int64, error) {
	before := c.RequestCount()
	results := make(map[int64]FindResult, len(queries))

	g, ctx := errgroup.WithContext(ctx)
	type keyed struct {
		svid int64
		res  FindResult
	}
	ch := make(chan keyed, len(queries))

	for svid, q := range queries {
		svid, q := svid, q
		g.Go(func() error {
			link, cands, err := c.FindSeries(ctx, q.Name, q.Version)
			ch <- keyed{svid, FindResult{Link: link, Candidates: cands, Err: err}}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	close(ch)
	for k := range ch {
		results[k.svid] = k.res
	}
	return results, c.RequestCount() - before, nil
}

// SeriesGetState fetches the remote state of one series: its cover letter
// (with comments when requested) and each patch with its review state.
// When gatherTags is set, patch comments are fetched too.
func (c *Client) SeriesGetState(ctx context.Context, link string, coverComments, gatherTags bool) (*SeriesState, error) {
	var detail seriesDetail
	if err := c.get(ctx, "series/"+link+"/", &detail); err != nil {
		return nil, err
	}

	state := &SeriesState{
		Cover:   detail.CoverLetter,
		Patches: make([]Patch, len(detail.Patches)),
	}

	// Fan out over patches; each worker writes only its own slot.
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range detail.Patches {
		i, p := i, p
		g.Go(func() error {
			var full Patch
			if err := c.get(gctx, fmt.Sprintf("patches/%d/", p.ID), &full); err != nil {
				return err
			}
			if gatherTags {
				var comments []Comment
				err := c.get(gctx, fmt.Sprintf("patches/%d/comments/", p.ID), &comments)
				if err != nil {
					return err
				}
				full.Comments = comments
			}
			state.Patches[i] = full
			return nil
		})
	}
	if coverComments && state.Cover != nil {
		g.Go(func() error {
			var comments []Comment
			err := c.get(gctx, fmt.Sprintf("covers/%d/comments/", state.Cover.ID), &comments)
			if err != nil {
				return err
			}
			state.Cover.Comments = comments
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return state, nil
}

// PatchComments fetches the review comments on one patch.
func (c *Client) PatchComments(ctx context.Context, patchID int) ([]Comment, error) {
	var comments []Comment
	err := c.get(ctx, fmt.Sprintf("patches/%d/comments/", patchID), &comments)
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// CoverComments fetches the comments on a cover letter.
func (c *Client) CoverComments(ctx context.Context, coverID int) ([]Comment, error) {
	var comments []Comment
	err := c.get(ctx, fmt.Sprintf("covers/%d/comments/", coverID), &comments)
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// SeriesGetStates fetches remote state for many linked ser_vers at once,
// keyed by svid, and reports how many requests that took.
func (c *Client) SeriesGetStates(ctx context.Context, links map[int64]string, gatherTags bool) (map[int64]*SeriesState, int64, error) {
	before := c.RequestCount()
	type keyed struct {
		svid  int64
		state *SeriesState
	}
	ch := make(chan keyed, len(links))

	g, gctx := errgroup.WithContext(ctx)
	for svid, link := range links {
		svid, link := svid, link
		g.Go(func() error {
			state, err := c.SeriesGetState(gctx, link, true, gatherTags)
			if err != nil {
				return fmt.Errorf("series %s: %w", link, err)
			}
			ch <- keyed{svid, state}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, c.RequestCount() - before, err
	}
	close(ch)

	results := make(map[int64]*SeriesState, len(links))
	for k := range ch {
		results[k.svid] = k.state
	}
	return results, c.RequestCount() - before, nil
}
