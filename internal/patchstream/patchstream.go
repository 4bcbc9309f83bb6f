// Package patchstream parses and rewrites commit-message text: series
// trailers, response tags, cover letters, Change-Id marks and review
// snippets.
package patchstream

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Response tags aggregated per commit.
const (
	TagReviewedBy = "Reviewed-by"
	TagTestedBy   = "Tested-by"
	TagAckedBy    = "Acked-by"
	TagFixes      = "Fixes"
)

// ResponseTagNames lists the response tags in display order.
var ResponseTagNames = []string{TagReviewedBy, TagTestedBy, TagAckedBy, TagFixes}

// seriesTags are trailers that describe the whole series rather than one
// commit.
var seriesTags = map[string]bool{
	"Series-to":          true,
	"Series-cc":          true,
	"Series-version":     true,
	"Series-prefix":      true,
	"Series-postfix":     true,
	"Series-links":       true,
	"Series-changes":     true,
	"Series-notes":       true,
	"Series-process-log": true,
}

// blockTags introduce sections terminated by a literal END line.
var blockTags = map[string]bool{
	"Cover-letter":       true,
	"Cover-letter-cc":    true,
	"Cover-changes":      true,
	"Series-changes":     true,
	"Series-notes":       true,
	"Series-process-log": true,
	"Commit-changes":     true,
	"Commit-notes":       true,
}

// knownTags is the closed trailer set. Anything else that merely resembles
// a reserved prefix draws a warning.
var knownTags = map[string]bool{
	"Signed-off-by":   true,
	TagReviewedBy:     true,
	TagTestedBy:       true,
	TagAckedBy:        true,
	TagFixes:          true,
	"Change-Id":       true,
	"Patch-cc":        true,
	"Cover-letter":    true,
	"Cover-letter-cc": true,
	"Cover-changes":   true,
	"Commit-changes":  true,
	"Commit-notes":    true,
}

func init() {
	for tag := range seriesTags {
		knownTags[tag] = true
	}
}

// RTags maps a response tag name to the set of "Name <email>" responders.
type RTags map[string]map[string]bool

// Add records a responder under a tag.
func (r RTags) Add(tag, who string) {
	if r[tag] == nil {
		r[tag] = make(map[string]bool)
	}
	r[tag][who] = true
}

// Has reports whether a responder is recorded under a tag.
func (r RTags) Has(tag, who string) bool {
	return r[tag][who]
}

// Count returns the number of responders under one tag.
func (r RTags) Count(tag string) int {
	return len(r[tag])
}

// Subtract returns the tags present in r but missing from other.
func (r RTags) Subtract(other RTags) RTags {
	diff := make(RTags)
	for tag, whos := range r {
		for who := range whos {
			if !other.Has(tag, who) {
				diff.Add(tag, who)
			}
		}
	}
	return diff
}

// Sorted returns the responders under a tag in stable order.
func (r RTags) Sorted(tag string) []string {
	whos := make([]string, 0, len(r[tag]))
	for who := range r[tag] {
		whos = append(whos, who)
	}
	sort.Strings(whos)
	return whos
}

// Commit is the parsed form of one commit message.
type Commit struct {
	Hash     string
	Subject  string
	Message  string
	RTags    RTags
	ChangeID string
	Notes    []string
	Warn     []string
}

// Series accumulates series-level trailers seen across a branch's commits.
type Series struct {
	Name    string
	Desc    string
	Version int
	Prefix  string
	Postfix string
	To      []string
	CC      []string
	Cover   []string
	Links   map[int]string
	Notes   []string
	Commits []*Commit
}

// Parser walks a branch's commit messages, collecting series state as it
// goes. SelfTester, when set, suppresses Tested-by tags from the caller.
type Parser struct {
	Series     *Series
	SelfTester string
}

// NewParser returns a parser accumulating into a fresh Series.
func NewParser() *Parser {
	return &Parser{Series: &Series{Links: map[int]string{}}}
}

var tagLineRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9-]*):\s?(.*)$`)

// ParseCommit parses one commit message and folds any series-level
// trailers into the parser's Series. Line numbers in warnings are 1-based.
func (p *Parser) ParseCommit(hash, msg string) *Commit {
	c := &Commit{
		Hash:    hash,
		Message: msg,
		RTags:   make(RTags),
	}
	lines := strings.Split(msg, "\n")
	if len(lines) > 0 {
		c.Subject = strings.TrimSpace(lines[0])
	}

	var sawTest bool
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		num := i + 1

		if strings.HasPrefix(line, "TEST=") {
			sawTest = true
			continue
		}
		if sawTest && strings.TrimSpace(line) != "" && !strings.HasPrefix(line, "TEST=") {
			c.Warn = append(c.Warn, fmt.Sprintf("line %d: content after TEST= line", num))
			sawTest = false
		}
		if tabAfterSpace(line) {
			c.Warn = append(c.Warn, fmt.Sprintf("line %d: tab after space", num))
		}

		m := tagLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		tag, val := m[1], strings.TrimSpace(m[2])

		if blockTags[tag] {
			body, end, ok := readBlock(lines, i+1)
			if !ok {
				c.Warn = append(c.Warn, fmt.Sprintf("line %d: section %q missing END", num, tag))
			} else if end+1 < len(lines) && strings.TrimSpace(lines[end+1]) != "" {
				c.Warn = append(c.Warn, fmt.Sprintf(
					"line %d: missing blank line after %q section", end+2, tag))
			}
			p.applyBlock(c, tag, val, body)
			i = end
			continue
		}

		switch {
		case tag == "Change-Id":
			c.ChangeID = val
		case tag == TagTestedBy && p.SelfTester != "" && strings.Contains(val, p.SelfTester):
			c.Warn = append(c.Warn, fmt.Sprintf("Ignoring %q", "Tested-by: "+val))
		case tag == TagReviewedBy || tag == TagTestedBy || tag == TagAckedBy || tag == TagFixes:
			c.RTags.Add(tag, val)
		case seriesTags[tag]:
			p.applySeriesTag(c, tag, val, num)
		case knownTags[tag]:
			// Signed-off-by, Patch-cc: recognised but left in place.
		case reservedPrefix(tag):
			c.Warn = append(c.Warn, fmt.Sprintf("line %d: unknown tag %q", num, tag))
		}
	}

	p.Series.Commits = append(p.Series.Commits, c)
	return c
}

func (p *Parser) applySeriesTag(c *Commit, tag, val string, num int) {
	s := p.Series
	switch tag {
	case "Series-to":
		s.To = append(s.To, val)
	case "Series-cc":
		s.CC = append(s.CC, val)
	case "Series-version":
		v, err := strconv.Atoi(val)
		if err != nil || v < 1 {
			c.Warn = append(c.Warn, fmt.Sprintf("line %d: bad Series-version %q", num, val))
			return
		}
		s.Version = v
	case "Series-prefix":
		s.Prefix = val
	case "Series-postfix":
		s.Postfix = val
	case "Series-links":
		for v, link := range ParseSeriesLinks(val) {
			s.Links[v] = link
		}
	}
}

func (p *Parser) applyBlock(c *Commit, tag, val string, body []string) {
	switch tag {
	case "Cover-letter":
		if val != "" {
			body = append([]string{val}, body...)
		}
		p.Series.Cover = body
		if len(body) > 0 && p.Series.Desc == "" {
			p.Series.Desc = body[0]
		}
	case "Series-notes":
		p.Series.Notes = append(p.Series.Notes, body...)
	case "Commit-notes":
		c.Notes = append(c.Notes, body...)
	}
	// Changes sections and cover cc are carried in the message verbatim;
	// nothing to collect for series tracking.
}

// readBlock collects lines up to a literal END. It returns the block body,
// the index of the last consumed line and whether END was found.
func readBlock(lines []string, start int) ([]string, int, bool) {
	for i := start; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "END" {
			return lines[start:i], i, true
		}
	}
	return lines[start:], len(lines) - 1, false
}

func tabAfterSpace(line string) bool {
	for i := 1; i < len(line); i++ {
		if line[i] == '\t' && line[i-1] == ' ' {
			return true
		}
		if line[i] != ' ' && line[i] != '\t' {
			return false
		}
	}
	return false
}

func reservedPrefix(tag string) bool {
	return strings.HasPrefix(tag, "Series-") ||
		strings.HasPrefix(tag, "Cover-") ||
		strings.HasPrefix(tag, "Commit-")
}

// ParseSeriesLinks parses a Series-links value, a comma-separated list of
// <version>:<link> pairs. A bare link with no version prefix maps to
// version 1.
func ParseSeriesLinks(val string) map[int]string {
	links := make(map[int]string)
	for _, pair := range strings.Split(val, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		if v, link, ok := strings.Cut(pair, ":"); ok {
			if ver, err := strconv.Atoi(v); err == nil && ver > 0 {
				links[ver] = link
			}
			continue
		}
		links[1] = pair
	}
	return links
}

// FormatSeriesLinks renders a links map back into trailer-value form,
// ordered by version.
func FormatSeriesLinks(links map[int]string) string {
	versions := make([]int, 0, len(links))
	for v := range links {
		versions = append(versions, v)
	}
	sort.Ints(versions)

	parts := make([]string, 0, len(versions))
	for _, v := range versions {
		parts = append(parts, fmt.Sprintf("%d:%s", v, links[v]))
	}
	return strings.Join(parts, ", ")
}

// DiffWarnings checks patch text for added blank lines at end-of-file
// within a hunk, the classic whitespace mistake review bounces on.
func DiffWarnings(diff string) []string {
	var warns []string
	lines := strings.Split(strings.TrimRight(diff, "\n"), "\n")
	inHunk := false
	blankRun := 0
	flush := func() {
		if inHunk && blankRun > 0 {
			warns = append(warns, fmt.Sprintf("blank line at end of file (%d added)", blankRun))
		}
		blankRun = 0
	}
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "diff --git"):
			flush()
			inHunk = false
		case strings.HasPrefix(line, "@@"):
			blankRun = 0
			inHunk = true
		case line == "+":
			blankRun++
		default:
			blankRun = 0
		}
	}
	flush()
	return warns
}
