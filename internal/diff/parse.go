package diff

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// OversizePolicy decides what happens to a file whose raw segment exceeds
// ParseOptions.MaxFileBytes.
type OversizePolicy string

// Oversize policies.
const (
	OversizeTruncate OversizePolicy = "truncate"
	OversizeExclude  OversizePolicy = "exclude"
)

// ParseOptions controls filtering during Parse.
type ParseOptions struct {
	// Include, when non-empty, keeps only files matching one of the globs.
	Include []string
	// Exclude drops files matching any glob before their hunks are parsed.
	Exclude []string
	// MaxFileBytes bounds a file's raw segment size. Zero disables the bound.
	MaxFileBytes int
	Oversize     OversizePolicy

	// SkipTests and SkipDocs drop test sources and documentation files.
	SkipTests bool
	SkipDocs  bool
	// MinChanges drops text files with fewer added plus removed lines.
	MinChanges int
	// MaxFiles caps the reviewable files kept, in diff order. Zero means
	// unlimited.
	MaxFiles int
}

// WarningKind classifies a parse warning.
type WarningKind string

// Warning kinds.
const (
	WarnMalformedSegment  WarningKind = "malformed-segment"
	WarnMalformedHunk     WarningKind = "malformed-hunk"
	WarnEmptyModification WarningKind = "empty-modification"
	WarnTruncated         WarningKind = "truncated"
	WarnOversizeExcluded  WarningKind = "oversize-excluded"
	WarnFileLimit         WarningKind = "file-limit"
)

// Warning records a recoverable problem found while parsing. Hunk is the
// zero-based hunk index, or -1 when the warning concerns the whole file.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Path    string      `json:"path,omitempty"`
	Hunk    int         `json:"hunk"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	loc := w.Path
	if loc == "" {
		loc = "<unknown>"
	}
	if w.Hunk >= 0 {
		loc = fmt.Sprintf("%s hunk %d", loc, w.Hunk+1)
	}
	return fmt.Sprintf("%s: %s: %s", w.Kind, loc, w.Message)
}

// Parse turns raw unified diff text into files. It never aborts on bad
// input: unparseable segments and hunks are skipped and reported as
// warnings. Output depends only on raw and opts.
func Parse(raw string, opts ParseOptions) ([]*File, []Warning) {
	var (
		files    []*File
		warnings []Warning
	)
	reviewable := 0
	for _, seg := range splitSegments(raw) {
		f, ws := parseSegment(seg, opts)
		warnings = append(warnings, ws...)
		if f == nil {
			continue
		}
		if f.Reviewable() {
			if opts.MaxFiles > 0 && reviewable >= opts.MaxFiles {
				warnings = append(warnings, Warning{
					Kind:    WarnFileLimit,
					Path:    f.Path(),
					Hunk:    -1,
					Message: fmt.Sprintf("review is limited to %d files; file skipped", opts.MaxFiles),
				})
				continue
			}
			reviewable++
		}
		files = append(files, f)
	}
	return files, warnings
}

func parseSegment(seg segment, opts ParseOptions) (*File, []Warning) {
	path := seg.path()
	if path != "" {
		if len(opts.Include) > 0 && !MatchAny(path, opts.Include) {
			slog.Debug("file not included", "path", path)
			return nil, nil
		}
		if MatchAny(path, opts.Exclude) {
			slog.Debug("file excluded", "path", path)
			return nil, nil
		}
		if opts.SkipTests && IsTestFile(path) {
			slog.Debug("test file skipped", "path", path)
			return nil, nil
		}
		if opts.SkipDocs && IsDocFile(path) {
			slog.Debug("documentation file skipped", "path", path)
			return nil, nil
		}
	}

	var warnings []Warning
	hunks := seg.hunks
	if opts.MaxFileBytes > 0 && seg.size > opts.MaxFileBytes {
		if opts.Oversize == OversizeExclude {
			return nil, []Warning{{
				Kind:    WarnOversizeExcluded,
				Path:    path,
				Hunk:    -1,
				Message: fmt.Sprintf("segment is %d bytes, limit %d; file excluded", seg.size, opts.MaxFileBytes),
			}}
		}
		budget := opts.MaxFileBytes - seg.headerSize()
		keep := 0
		for _, h := range hunks {
			if budget-h.size < 0 {
				break
			}
			budget -= h.size
			keep++
		}
		if keep == 0 {
			return nil, []Warning{{
				Kind:    WarnOversizeExcluded,
				Path:    path,
				Hunk:    -1,
				Message: fmt.Sprintf("segment is %d bytes, limit %d; first hunk alone exceeds the limit", seg.size, opts.MaxFileBytes),
			}}
		}
		warnings = append(warnings, Warning{
			Kind:    WarnTruncated,
			Path:    path,
			Hunk:    -1,
			Message: fmt.Sprintf("segment is %d bytes, limit %d; kept %d of %d hunks", seg.size, opts.MaxFileBytes, keep, len(hunks)),
		})
		hunks = hunks[:keep]
	}

	header := seg.headerText()
	var meta *gitdiff.File
	parsed := make([]Hunk, 0, len(hunks))
	for i, rh := range hunks {
		gf, h, err := parseHunk(header, rh)
		if err != nil {
			warnings = append(warnings, Warning{Kind: WarnMalformedHunk, Path: path, Hunk: i, Message: err.Error()})
			continue
		}
		if meta == nil {
			meta = gf
		}
		parsed = append(parsed, h)
	}

	if meta == nil {
		gf, err := parseHeader(header)
		switch {
		case err == nil:
			meta = gf
		case len(hunks) == 0:
			return nil, append(warnings, Warning{Kind: WarnMalformedSegment, Path: path, Hunk: -1, Message: err.Error()})
		}
	}

	oldPath, newPath, kind, binary := path, path, Modified, false
	if meta != nil {
		oldPath, newPath, kind, binary = meta.OldName, meta.NewName, kindOf(meta), meta.IsBinary
		if !seg.git {
			// traditional headers keep their a/ and b/ prefixes in gitdiff
			oldPath, newPath = seg.traditionalNames(kind)
		}
	}
	if path == "" && oldPath == "" && newPath == "" {
		return nil, append(warnings, Warning{Kind: WarnMalformedSegment, Hunk: -1, Message: "segment has no file header"})
	}

	f, err := NewFile(oldPath, newPath, kind, binary, parsed)
	switch {
	case errors.Is(err, ErrEmptyModification):
		return nil, append(warnings, Warning{Kind: WarnEmptyModification, Path: f.Path(), Hunk: -1, Message: "no usable hunks; treated as no-op"})
	case err != nil:
		return nil, append(warnings, Warning{Kind: WarnMalformedSegment, Path: path, Hunk: -1, Message: err.Error()})
	}
	f.RawSize = seg.size
	if len(f.Hunks) > 0 {
		if added, removed := f.Stats(); added+removed < opts.MinChanges {
			slog.Debug("file below minimum changes", "path", f.Path(), "changes", added+removed, "min", opts.MinChanges)
			return nil, warnings
		}
	}
	return f, warnings
}

// parseHunk parses one hunk in isolation by pairing it with the file
// header, so damage in one hunk cannot spill into its neighbours.
func parseHunk(header string, rh rawHunk) (*gitdiff.File, Hunk, error) {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString(rh.header)
	b.WriteByte('\n')
	bodyLines := 0
	for _, l := range rh.body {
		b.WriteString(l)
		b.WriteByte('\n')
		if !strings.HasPrefix(l, `\`) {
			bodyLines++
		}
	}

	files, _, err := gitdiff.Parse(strings.NewReader(b.String()))
	if err != nil {
		return nil, Hunk{}, fmt.Errorf("%w: %v", ErrMalformedHunk, err)
	}
	if len(files) != 1 || len(files[0].TextFragments) != 1 {
		return nil, Hunk{}, fmt.Errorf("%w: %q did not parse as a single fragment", ErrMalformedHunk, rh.header)
	}
	frag := files[0].TextFragments[0]
	if len(frag.Lines) != bodyLines {
		return nil, Hunk{}, fmt.Errorf("%w: header %q covers %d lines but body has %d",
			ErrMalformedHunk, rh.header, len(frag.Lines), bodyLines)
	}

	lines := make([]RawLine, 0, len(frag.Lines))
	for _, l := range frag.Lines {
		rl := RawLine{Content: strings.TrimSuffix(l.Line, "\n"), NoNewline: l.NoEOL()}
		switch l.Op {
		case gitdiff.OpAdd:
			rl.Kind = AddedLine
		case gitdiff.OpDelete:
			rl.Kind = RemovedLine
		default:
			rl.Kind = Context
		}
		lines = append(lines, rl)
	}

	h, err := NewHunk(int(frag.OldPosition), int(frag.OldLines), int(frag.NewPosition), int(frag.NewLines), frag.Comment, lines)
	if err != nil {
		return nil, Hunk{}, err
	}
	return files[0], h, nil
}

func parseHeader(header string) (*gitdiff.File, error) {
	if header == "" {
		return nil, errors.New("empty file header")
	}
	files, _, err := gitdiff.Parse(strings.NewReader(header))
	if err != nil {
		return nil, fmt.Errorf("parsing file header: %w", err)
	}
	if len(files) != 1 {
		return nil, fmt.Errorf("file header yielded %d files", len(files))
	}
	return files[0], nil
}

func kindOf(f *gitdiff.File) Kind {
	switch {
	case f.IsNew:
		return Added
	case f.IsDelete:
		return Deleted
	case f.IsRename:
		return Renamed
	case f.IsCopy:
		return Copied
	default:
		return Modified
	}
}
