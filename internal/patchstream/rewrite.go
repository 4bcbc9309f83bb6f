package patchstream

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	changeIDRe      = regexp.MustCompile(`(?m)^Change-Id: *(\S+) *\n?`)
	seriesVersionRe = regexp.MustCompile(`(?m)^Series-version: *.*$`)
	seriesLinksRe   = regexp.MustCompile(`(?m)^Series-links: *(.*)$`)
)

// ExtractChangeID returns the Change-Id trailer value, or "".
func ExtractChangeID(msg string) string {
	if m := changeIDRe.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	return ""
}

// InsertChangeID appends (or replaces) a Change-Id trailer.
func InsertChangeID(msg, id string) string {
	if changeIDRe.MatchString(msg) {
		return changeIDRe.ReplaceAllString(msg, "Change-Id: "+id+"\n")
	}
	return appendTrailer(msg, "Change-Id: "+id)
}

// RemoveChangeID strips any Change-Id trailer from the message.
func RemoveChangeID(msg string) string {
	return changeIDRe.ReplaceAllString(msg, "")
}

// HasSeriesVersion reports whether the message carries a Series-version
// trailer.
func HasSeriesVersion(msg string) bool {
	return seriesVersionRe.MatchString(msg)
}

// SetSeriesVersion updates the Series-version trailer, adding one when
// absent.
func SetSeriesVersion(msg string, version int) string {
	line := fmt.Sprintf("Series-version: %d", version)
	if seriesVersionRe.MatchString(msg) {
		return seriesVersionRe.ReplaceAllString(msg, line)
	}
	return appendTrailer(msg, line)
}

// MergeSeriesLinks updates the Series-links trailer so that version maps
// to link, preserving all other recorded versions.
func MergeSeriesLinks(msg string, version int, link string) string {
	links := map[int]string{}
	if m := seriesLinksRe.FindStringSubmatch(msg); m != nil {
		links = ParseSeriesLinks(m[1])
	}
	links[version] = link
	line := "Series-links: " + FormatSeriesLinks(links)

	if seriesLinksRe.MatchString(msg) {
		return seriesLinksRe.ReplaceAllString(msg, line)
	}
	return appendTrailer(msg, line)
}

// AddResponseTags appends one "Tag: responder" line per entry, in stable
// order, skipping tags the message already carries.
func AddResponseTags(msg string, rtags RTags) string {
	existing := make(map[string]bool)
	for _, line := range strings.Split(msg, "\n") {
		existing[strings.TrimSpace(line)] = true
	}

	out := msg
	for _, tag := range ResponseTagNames {
		for _, who := range rtags.Sorted(tag) {
			line := tag + ": " + who
			if existing[line] {
				continue
			}
			out = appendTrailer(out, line)
		}
	}
	return out
}

// appendTrailer adds a trailer line at the end of the message, keeping a
// single trailing newline.
func appendTrailer(msg, line string) string {
	msg = strings.TrimRight(msg, "\n")
	return msg + "\n" + line + "\n"
}

// Body returns the message without its subject line and the blank line
// following it.
func Body(msg string) string {
	_, rest, ok := strings.Cut(msg, "\n")
	if !ok {
		return ""
	}
	return strings.TrimLeft(rest, "\n")
}

// ChangeID produces the opaque mark identifying "the same patch" across
// rebases: a SHA-1 over the committer identity, the committer timestamp
// with offset, the tree id and the message body.
func ChangeID(committer string, when time.Time, tree, msg string) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s\n", committer)
	fmt.Fprintf(h, "%d %s\n", when.Unix(), when.Format("-0700"))
	fmt.Fprintf(h, "%s\n", tree)
	fmt.Fprint(h, Body(msg))
	return hex.EncodeToString(h.Sum(nil))
}
