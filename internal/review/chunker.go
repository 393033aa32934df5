package review

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dshills/prcritic/internal/diff"
)

// Unit is one schedulable slice of a file: a run of consecutive hunks
// whose rendered text fits the prompt budget. File is shared, not copied.
type Unit struct {
	Index     int
	File      *diff.File
	FirstHunk int
	LastHunk  int
	Part      int
	Parts     int
	Text      string
}

// Path returns the path of the file the unit belongs to.
func (u Unit) Path() string { return u.File.Path() }

// Lines returns the lowest and highest commentable new-file line covered by
// the unit's hunks, or (0, 0) if none.
func (u Unit) Lines() (first, last int) {
	for _, h := range u.File.Hunks[u.FirstHunk : u.LastHunk+1] {
		for _, l := range h.Lines {
			if l.Kind == diff.RemovedLine {
				continue
			}
			if first == 0 || l.NewNumber < first {
				first = l.NewNumber
			}
			if l.NewNumber > last {
				last = l.NewNumber
			}
		}
	}
	return first, last
}

// BuildUnits splits files into review units. A file is split only at hunk
// boundaries; a hunk larger than maxPromptSize becomes a unit of its own.
// Binary files and files with no commentable lines produce no units.
func BuildUnits(files []*diff.File, maxPromptSize int) []Unit {
	var units []Unit
	for _, f := range files {
		if !f.Reviewable() {
			if !f.Binary && len(f.Hunks) > 0 {
				slog.Debug("skipping file with no commentable lines", "path", f.Path(), "kind", f.Kind)
			}
			continue
		}

		rendered := make([]string, len(f.Hunks))
		for i, h := range f.Hunks {
			rendered[i] = renderHunk(h)
		}

		groups := groupHunks(rendered, maxPromptSize-headerReserve(f))
		for p, g := range groups {
			u := Unit{
				Index:     len(units),
				File:      f,
				FirstHunk: g[0],
				LastHunk:  g[1],
				Part:      p + 1,
				Parts:     len(groups),
			}
			u.Text = unitHeader(u) + strings.Join(rendered[g[0]:g[1]+1], "")
			units = append(units, u)
		}
	}
	return units
}

// groupHunks packs consecutive hunks greedily into [first, last] ranges.
func groupHunks(rendered []string, budget int) [][2]int {
	var (
		groups [][2]int
		start  = 0
		size   = 0
	)
	for i, r := range rendered {
		if i > start && size+len(r) > budget {
			groups = append(groups, [2]int{start, i - 1})
			start, size = i, 0
		}
		size += len(r)
	}
	return append(groups, [2]int{start, len(rendered) - 1})
}

// headerReserve is the room kept for the unit header when packing hunks.
func headerReserve(f *diff.File) int {
	return len(f.Path()) + len(f.OldPath) + 80
}

func unitHeader(u Unit) string {
	first, last := u.Lines()
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s (%s", u.Path(), u.File.Kind)
	if u.File.Kind == diff.Renamed || u.File.Kind == diff.Copied {
		fmt.Fprintf(&b, " from %s", u.File.OldPath)
	}
	fmt.Fprintf(&b, ", part %d/%d, new lines %d-%d)\n", u.Part, u.Parts, first, last)
	return b.String()
}

// renderHunk prints a hunk with a gutter of new-file line numbers, so the
// model can cite coordinates that are valid for the whole file.
func renderHunk(h diff.Hunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
	if h.Section != "" {
		b.WriteString(" " + h.Section)
	}
	b.WriteByte('\n')
	for _, l := range h.Lines {
		switch l.Kind {
		case diff.AddedLine:
			fmt.Fprintf(&b, "%6d + %s\n", l.NewNumber, l.Content)
		case diff.RemovedLine:
			fmt.Fprintf(&b, "%6s - %s\n", "", l.Content)
		default:
			fmt.Fprintf(&b, "%6d   %s\n", l.NewNumber, l.Content)
		}
	}
	return b.String()
}
