package review

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// multiHunkDiff modifies path with n well separated single-line hunks.
func multiHunkDiff(path string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "diff --git a/%s b/%s\n--- a/%s\n+++ b/%s\n", path, path, path, path)
	for i := 0; i < n; i++ {
		start := 10 + i*20
		fmt.Fprintf(&b, "@@ -%d,1 +%d,2 @@\n context %d\n+added %d\n", start, start+i, i, i)
	}
	return b.String()
}

func TestBuildUnits_OneUnitPerSmallFile(t *testing.T) {
	t.Parallel()
	files := parseFiles(t, evalDiff+addedFileDiff("b.go", 3))

	units := BuildUnits(files, 10_000)
	require.Len(t, units, 2)

	assert.Equal(t, 0, units[0].Index)
	assert.Equal(t, "file.py", units[0].Path())
	assert.Equal(t, 1, units[0].Parts)
	assert.Equal(t, 1, units[1].Index)
	assert.Equal(t, "b.go", units[1].Path())

	first, last := units[0].Lines()
	assert.Equal(t, 5, first)
	assert.Equal(t, 7, last)
}

func TestBuildUnits_TextCarriesFileLineNumbers(t *testing.T) {
	t.Parallel()
	units := BuildUnits(parseFiles(t, evalDiff), 10_000)
	require.Len(t, units, 1)

	text := units[0].Text
	assert.True(t, strings.HasPrefix(text, "File: file.py (modified, part 1/1, new lines 5-7)\n"))
	assert.Contains(t, text, "@@ -5,1 +5,3 @@ def handler(s):\n")
	assert.Contains(t, text, "     5   def f(s):\n")
	assert.Contains(t, text, "     6 +     x = eval(s)\n")
	assert.Contains(t, text, "     7 +     return x\n")
}

func TestBuildUnits_RemovedLinesHaveNoNumber(t *testing.T) {
	t.Parallel()
	raw := `diff --git a/app.go b/app.go
--- a/app.go
+++ b/app.go
@@ -10,3 +10,2 @@
 a
-b
 c
`
	units := BuildUnits(parseFiles(t, raw), 10_000)
	require.Len(t, units, 1)
	assert.Contains(t, units[0].Text, "       - b\n")
	assert.Contains(t, units[0].Text, "    11   c\n")
}

func TestBuildUnits_SplitsAtHunkBoundaries(t *testing.T) {
	t.Parallel()
	files := parseFiles(t, multiHunkDiff("big.go", 6))
	require.Len(t, files, 1)
	require.Len(t, files[0].Hunks, 6)

	hunkSize := len(renderHunk(files[0].Hunks[0]))
	limit := headerReserve(files[0]) + 2*hunkSize + 10

	units := BuildUnits(files, limit)
	require.Len(t, units, 3)

	next := 0
	for i, u := range units {
		assert.Equal(t, i+1, u.Part)
		assert.Equal(t, 3, u.Parts)
		assert.Equal(t, next, u.FirstHunk, "units must cover hunks contiguously")
		assert.Equal(t, u.FirstHunk+1, u.LastHunk)
		next = u.LastHunk + 1
	}
	assert.Equal(t, 6, next)
}

func TestBuildUnits_OversizedHunkIsOwnUnit(t *testing.T) {
	t.Parallel()
	files := parseFiles(t, multiHunkDiff("big.go", 3))

	units := BuildUnits(files, 1)
	require.Len(t, units, 3)
	for i, u := range units {
		assert.Equal(t, i, u.FirstHunk)
		assert.Equal(t, i, u.LastHunk)
	}
}

func TestBuildUnits_SkipsUnreviewableFiles(t *testing.T) {
	t.Parallel()
	raw := `diff --git a/logo.png b/logo.png
index 1111111..2222222 100644
Binary files a/logo.png and b/logo.png differ
diff --git a/gone.txt b/gone.txt
deleted file mode 100644
--- a/gone.txt
+++ /dev/null
@@ -1,2 +0,0 @@
-one
-two
`
	files := parseFiles(t, raw)
	require.Len(t, files, 2)
	assert.Empty(t, BuildUnits(files, 10_000))
}

func TestBuildUnits_RenamedFileHeader(t *testing.T) {
	t.Parallel()
	raw := `diff --git a/old.go b/new.go
similarity index 90%
rename from old.go
rename to new.go
--- a/old.go
+++ b/new.go
@@ -1,1 +1,2 @@
 package x
+var y = 1
`
	units := BuildUnits(parseFiles(t, raw), 10_000)
	require.Len(t, units, 1)
	assert.Equal(t, "new.go", units[0].Path())
	assert.Contains(t, units[0].Text, "(renamed from old.go, part 1/1")
}
