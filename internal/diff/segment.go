package diff

import (
	"regexp"
	"strconv"
	"strings"
)

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@ ?(.*)$`)

// segment is the raw text of one file in a multi-file diff.
type segment struct {
	git    bool
	header []string
	hunks  []rawHunk
	size   int
}

type rawHunk struct {
	header string
	body   []string
	size   int
}

func (s *segment) headerText() string {
	if len(s.header) == 0 {
		return ""
	}
	return strings.Join(s.header, "\n") + "\n"
}

func (s *segment) headerSize() int {
	n := 0
	for _, l := range s.header {
		n += len(l) + 1
	}
	return n
}

// path extracts the reviewer-facing path from header lines without a full
// parse, so exclusion can happen before any hunk work is done.
func (s *segment) path() string {
	var gitNew, minus, plus, renameTo string
	for _, l := range s.header {
		switch {
		case strings.HasPrefix(l, "diff --git "):
			fields := strings.Fields(strings.TrimPrefix(l, "diff --git "))
			if len(fields) == 2 {
				gitNew = stripPrefix(fields[1], "b/")
			}
		case strings.HasPrefix(l, "rename to "):
			renameTo = strings.TrimPrefix(l, "rename to ")
		case strings.HasPrefix(l, "+++ "):
			plus = headerName(strings.TrimPrefix(l, "+++ "), "b/")
		case strings.HasPrefix(l, "--- "):
			minus = headerName(strings.TrimPrefix(l, "--- "), "a/")
		}
	}
	for _, p := range []string{plus, renameTo, gitNew, minus} {
		if p != "" && p != "/dev/null" {
			return p
		}
	}
	return ""
}

func (s *segment) traditionalNames(kind Kind) (oldPath, newPath string) {
	for _, l := range s.header {
		switch {
		case strings.HasPrefix(l, "--- "):
			oldPath = headerName(strings.TrimPrefix(l, "--- "), "a/")
		case strings.HasPrefix(l, "+++ "):
			newPath = headerName(strings.TrimPrefix(l, "+++ "), "b/")
		}
	}
	switch kind {
	case Added:
		oldPath = ""
	case Deleted:
		newPath = ""
	default:
		if newPath == "" || newPath == "/dev/null" {
			newPath = oldPath
		}
		oldPath = newPath
	}
	return oldPath, newPath
}

func headerName(s, prefix string) string {
	if i := strings.IndexByte(s, '\t'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(strings.TrimSpace(s), `"`)
	return stripPrefix(s, prefix)
}

func stripPrefix(s, prefix string) string {
	return strings.TrimPrefix(strings.Trim(s, `"`), prefix)
}

// splitSegments cuts raw diff text into per-file segments. Hunk bodies are
// delimited by replaying the header counters, so a removed line such as
// "--- foo" inside a hunk is never mistaken for a file header.
func splitSegments(raw string) []segment {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	lines := strings.Split(raw, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	var (
		segs             []segment
		cur              *segment
		hunk             *rawHunk
		oldLeft, newLeft int
	)
	flushHunk := func() {
		if hunk != nil && cur != nil {
			cur.hunks = append(cur.hunks, *hunk)
		}
		hunk = nil
		oldLeft, newLeft = 0, 0
	}
	flushSegment := func() {
		flushHunk()
		if cur != nil {
			segs = append(segs, *cur)
		}
		cur = nil
	}
	startSegment := func(git bool) {
		flushSegment()
		cur = &segment{git: git}
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		inBody := hunk != nil && (oldLeft > 0 || newLeft > 0)

		switch {
		case strings.HasPrefix(line, "diff --git "):
			startSegment(true)
			cur.header = append(cur.header, line)
			cur.size += len(line) + 1

		case !inBody && strings.HasPrefix(line, "--- ") &&
			i+1 < len(lines) && strings.HasPrefix(lines[i+1], "+++ ") &&
			(cur == nil || !cur.git || len(cur.hunks) > 0 || hunk != nil):
			startSegment(false)
			cur.header = append(cur.header, line, lines[i+1])
			cur.size += len(line) + len(lines[i+1]) + 2
			i++

		case strings.HasPrefix(line, "@@"):
			if cur == nil {
				startSegment(false)
			}
			flushHunk()
			hunk = &rawHunk{header: line, size: len(line) + 1}
			if m := hunkHeaderRe.FindStringSubmatch(line); m != nil {
				oldLeft = atoiDefault(m[2], 1)
				newLeft = atoiDefault(m[4], 1)
			}
			cur.size += len(line) + 1

		case hunk != nil && line == "-- " && !inBody:
			// format-patch signature trailer
			flushSegment()

		case hunk != nil && isBodyLine(line, inBody):
			hunk.body = append(hunk.body, line)
			hunk.size += len(line) + 1
			cur.size += len(line) + 1
			switch {
			case line == "" || line[0] == ' ':
				oldLeft--
				newLeft--
			case line[0] == '-':
				oldLeft--
			case line[0] == '+':
				newLeft--
			}

		default:
			flushHunk()
			if cur == nil {
				continue
			}
			if len(cur.hunks) > 0 {
				// trailing noise after the last hunk
				continue
			}
			cur.header = append(cur.header, line)
			cur.size += len(line) + 1
		}
	}
	flushSegment()
	return segs
}

// isBodyLine reports whether line belongs to the current hunk. Once the
// counters are exhausted, prefixed lines are still attached so that an
// under-counted header is detected as malformed instead of silently
// dropping content. Blank lines only count while counters remain.
func isBodyLine(line string, inBody bool) bool {
	if line == "" {
		return inBody
	}
	switch line[0] {
	case ' ', '+', '-', '\\':
		return true
	}
	return false
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
