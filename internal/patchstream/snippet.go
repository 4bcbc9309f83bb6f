package patchstream

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	attributionRe = regexp.MustCompile(`^On .+ wrote:$`)
	diffGitRe     = regexp.MustCompile(`^diff --git a/\S+ b/(\S+)`)
	plusFileRe    = regexp.MustCompile(`^\+\+\+ b/(\S+)`)
	hunkRe        = regexp.MustCompile(`^@@ -(\d+)(?:,\d+)? \+(\d+)(?:,\d+)? @@ ?(.*)`)
)

// Snippets extracts review snippets from a patch comment. Each snippet
// pairs up to the last five lines of a quoted block, prefixed with
// synthesised File/Line context, with the unquoted reply that follows it.
func Snippets(comment string) [][]string {
	var (
		out    [][]string
		quoted []string
		prose  []string
		file   string
		where  string
	)

	flush := func() {
		var snip []string
		if len(quoted) > 0 {
			if file != "" {
				snip = append(snip, "> File: "+file)
			}
			if where != "" {
				snip = append(snip, "> Line: "+where)
			}
			keep := quoted
			if len(keep) > 5 {
				keep = keep[len(keep)-5:]
			}
			for _, q := range keep {
				snip = append(snip, "> "+q)
			}
		}
		if len(prose) > 0 {
			if len(snip) > 0 {
				snip = append(snip, "")
			}
			snip = append(snip, prose...)
		}
		if len(snip) > 0 {
			out = append(out, snip)
		}
		quoted, prose = nil, nil
	}

	for _, line := range strings.Split(comment, "\n") {
		trimmed := strings.TrimSpace(line)
		if attributionRe.MatchString(trimmed) {
			continue
		}

		if q, ok := strings.CutPrefix(line, ">"); ok {
			// A quote following prose starts a new snippet.
			if len(prose) > 0 {
				flush()
			}
			q = strings.TrimPrefix(q, " ")

			if m := diffGitRe.FindStringSubmatch(q); m != nil {
				file = m[1]
				where = ""
				continue
			}
			if m := plusFileRe.FindStringSubmatch(q); m != nil {
				file = m[1]
				continue
			}
			if strings.HasPrefix(q, "--- ") {
				continue
			}
			if m := hunkRe.FindStringSubmatch(q); m != nil {
				where = fmt.Sprintf("%s/%s: %s", m[2], m[1], m[3])
				quoted = nil
				continue
			}
			quoted = append(quoted, q)
			continue
		}

		if trimmed == "" {
			if len(prose) > 0 {
				prose = append(prose, "")
			}
			continue
		}
		prose = append(prose, line)
	}
	flush()

	// Drop trailing blank lines inside each snippet.
	for i, snip := range out {
		for len(snip) > 0 && snip[len(snip)-1] == "" {
			snip = snip[:len(snip)-1]
		}
		out[i] = snip
	}
	return out
}
