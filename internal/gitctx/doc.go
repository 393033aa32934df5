// Package gitctx implements review.RepositoryClient over a local git
// checkout, so the review pipeline can run before a pull request exists.
//
// A target is a revision range ("main..feature", diffed from the merge base
// by default), a single commit, the staged or unstaged changes, or a file
// reviewed as newly added ("file:path"). Titles and descriptions come from
// the commits in the target. Publishing renders the result with an
// [output.Writer].
package gitctx
