package diff

import (
	"path"
	"strings"
)

// MatchAny reports whether name matches any of the glob patterns.
//
// Patterns are matched per path segment with path.Match semantics, and a
// "**" segment matches zero or more whole segments. A pattern without a
// slash is matched against the base name only, so "*.lock" excludes lock
// files at any depth.
func MatchAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if Match(p, name) {
			return true
		}
	}
	return false
}

// Match reports whether name matches a single glob pattern.
func Match(pattern, name string) bool {
	pattern = strings.TrimPrefix(pattern, "./")
	name = strings.TrimPrefix(name, "./")
	if pattern == "" {
		return false
	}
	if !strings.Contains(pattern, "/") {
		ok, err := path.Match(pattern, path.Base(name))
		return err == nil && ok
	}
	return matchSegments(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func matchSegments(pat, name []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			pat = pat[1:]
			if len(pat) == 0 {
				return true
			}
			for i := 0; i <= len(name); i++ {
				if matchSegments(pat, name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		ok, err := path.Match(pat[0], name[0])
		if err != nil || !ok {
			return false
		}
		pat, name = pat[1:], name[1:]
	}
	return len(name) == 0
}

var docExtensions = map[string]bool{
	".md":   true,
	".rst":  true,
	".txt":  true,
	".adoc": true,
	".doc":  true,
	".docx": true,
}

// IsTestFile reports whether name looks like a test source: a _test or
// _spec file, a test_ or spec_ file, or anything under a test directory.
func IsTestFile(name string) bool {
	name = strings.ToLower(name)
	base := path.Base(name)
	if strings.HasPrefix(base, "test_") || strings.HasPrefix(base, "spec_") {
		return true
	}
	stem := strings.TrimSuffix(base, path.Ext(base))
	for _, suffix := range []string{"_test", "_spec", ".test", ".spec"} {
		if strings.HasSuffix(stem, suffix) {
			return true
		}
	}
	for _, dir := range strings.Split(path.Dir(name), "/") {
		switch dir {
		case "test", "tests", "__tests__", "testdata":
			return true
		}
	}
	return false
}

// IsDocFile reports whether name is a documentation file by extension.
func IsDocFile(name string) bool {
	return docExtensions[strings.ToLower(path.Ext(name))]
}
