// Package review orchestrates an LLM review of a parsed pull request diff.
//
// An Orchestrator splits diff files into review units at hunk boundaries,
// sends each unit to an inference provider with bounded concurrency and an
// optional request rate limit, retries transient provider failures with
// exponential backoff, and parses each response structured-first (JSON in a
// fenced block, the whole text, or embedded in prose) before falling back
// to "path:line: message" lines.
//
// Every candidate finding is validated against the diff: its line must be
// an added or context line of the unit's file. Survivors are sorted,
// deduplicated by (path, line), capped and turned into a verdict. A review
// always produces a Result. When no unit completed the verdict is error:
// ErrProviderOutage is returned with it if units failed, ErrNothingReviewed
// if the review deadline passed first.
//
// Run drives the whole pipeline against a RepositoryClient: fetch, parse,
// review, publish. Compare reviews the same files with several providers and
// separates consensus findings from those only one model reported.
package review
