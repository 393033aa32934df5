package diff

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrMalformedHunk reports a hunk whose header counts disagree with its body.
	ErrMalformedHunk = errors.New("malformed hunk")
	// ErrEmptyModification reports a modified text file with no hunks.
	// Callers treat it as a no-op file, not a fatal error.
	ErrEmptyModification = errors.New("modified file has no hunks")
)

// Kind is the change applied to a file.
type Kind int

// File change kinds.
const (
	Modified Kind = iota
	Added
	Deleted
	Renamed
	Copied
)

func (k Kind) String() string {
	switch k {
	case Added:
		return "added"
	case Deleted:
		return "deleted"
	case Renamed:
		return "renamed"
	case Copied:
		return "copied"
	default:
		return "modified"
	}
}

// LineKind tags one physical diff line.
type LineKind int

// Line kinds.
const (
	Context LineKind = iota
	AddedLine
	RemovedLine
)

// Line is one physical line of a hunk. NewNumber is zero for removed lines
// and OldNumber is zero for added lines.
type Line struct {
	Kind      LineKind
	Content   string
	NewNumber int
	OldNumber int
	NoNewline bool
}

// Hunk is a contiguous change region. Values produced by NewHunk are
// read-only: the orchestrator shares them across goroutines.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Section  string
	Lines    []Line
}

// Range returns the first and last new-file line covered by the hunk.
// Pure deletions return (NewStart, NewStart-1).
func (h Hunk) Range() (first, last int) {
	return h.NewStart, h.NewStart + h.NewCount - 1
}

// RawLine pairs a line kind with its content before numbering.
type RawLine struct {
	Kind      LineKind
	Content   string
	NoNewline bool
}

// NewHunk replays the header counters over lines and assigns resolved
// line numbers. It fails with ErrMalformedHunk when the replayed totals
// differ from the declared counts.
func NewHunk(oldStart, oldCount, newStart, newCount int, section string, lines []RawLine) (Hunk, error) {
	if oldStart < 0 || newStart < 0 || oldCount < 0 || newCount < 0 {
		return Hunk{}, fmt.Errorf("%w: negative header field in -%d,%d +%d,%d",
			ErrMalformedHunk, oldStart, oldCount, newStart, newCount)
	}

	h := Hunk{
		OldStart: oldStart,
		OldCount: oldCount,
		NewStart: newStart,
		NewCount: newCount,
		Section:  section,
		Lines:    make([]Line, 0, len(lines)),
	}

	oldNum, newNum := oldStart, newStart
	var oldSeen, newSeen int
	for _, rl := range lines {
		l := Line{Kind: rl.Kind, Content: rl.Content, NoNewline: rl.NoNewline}
		switch rl.Kind {
		case Context:
			l.OldNumber, l.NewNumber = oldNum, newNum
			oldNum++
			newNum++
			oldSeen++
			newSeen++
		case AddedLine:
			l.NewNumber = newNum
			newNum++
			newSeen++
		case RemovedLine:
			l.OldNumber = oldNum
			oldNum++
			oldSeen++
		default:
			return Hunk{}, fmt.Errorf("%w: unknown line kind %d", ErrMalformedHunk, rl.Kind)
		}
		h.Lines = append(h.Lines, l)
	}

	if oldSeen != oldCount || newSeen != newCount {
		return Hunk{}, fmt.Errorf("%w: header -%d,%d +%d,%d but body has %d old and %d new lines",
			ErrMalformedHunk, oldStart, oldCount, newStart, newCount, oldSeen, newSeen)
	}
	return h, nil
}

// File is one changed file of a parsed diff.
type File struct {
	OldPath string
	NewPath string
	Kind    Kind
	Binary  bool
	Hunks   []Hunk
	// RawSize is the byte length of the file's segment in the raw diff.
	RawSize int

	addressable map[int]struct{}
}

// NewFile validates and assembles a File. A modified text file with no
// hunks yields ErrEmptyModification together with the file, so callers
// can log it and carry on.
func NewFile(oldPath, newPath string, kind Kind, binary bool, hunks []Hunk) (*File, error) {
	switch {
	case kind == Deleted && oldPath == "":
		return nil, fmt.Errorf("deleted file has no old path")
	case kind == Added && newPath == "":
		return nil, fmt.Errorf("added file has no new path")
	case kind != Deleted && kind != Added && (oldPath == "" || newPath == ""):
		return nil, fmt.Errorf("%s file is missing a path (old %q, new %q)", kind, oldPath, newPath)
	}
	if binary {
		hunks = nil
	}

	f := &File{
		OldPath: oldPath,
		NewPath: newPath,
		Kind:    kind,
		Binary:  binary,
		Hunks:   hunks,
	}
	f.addressable = make(map[int]struct{})
	for _, h := range hunks {
		for _, l := range h.Lines {
			if l.Kind != RemovedLine {
				f.addressable[l.NewNumber] = struct{}{}
			}
		}
	}

	if kind == Modified && !binary && len(hunks) == 0 {
		return f, ErrEmptyModification
	}
	return f, nil
}

// Path is the path a reviewer sees: the new path, or the old path of a
// deleted file.
func (f *File) Path() string {
	if f.Kind == Deleted || f.NewPath == "" {
		return f.OldPath
	}
	return f.NewPath
}

// Addressable reports whether line exists in the new file version and is
// shown by the diff, i.e. it may carry a review comment.
func (f *File) Addressable(line int) bool {
	_, ok := f.addressable[line]
	return ok
}

// Reviewable reports whether f has at least one line a comment can target.
func (f *File) Reviewable() bool {
	return !f.Binary && len(f.addressable) > 0
}

// AddressableLines returns the sorted new-file line numbers that may carry
// comments.
func (f *File) AddressableLines() []int {
	lines := make([]int, 0, len(f.addressable))
	for n := range f.addressable {
		lines = append(lines, n)
	}
	sort.Ints(lines)
	return lines
}

// Stats returns the number of added and removed lines in the file.
func (f *File) Stats() (added, removed int) {
	for _, h := range f.Hunks {
		for _, l := range h.Lines {
			switch l.Kind {
			case AddedLine:
				added++
			case RemovedLine:
				removed++
			}
		}
	}
	return added, removed
}
