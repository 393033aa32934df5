// Prcritic reviews pull requests with LLM providers.
//
// It fetches a pull request (from GitHub or from local git changes), splits
// the diff into review units, asks the configured model for findings and
// publishes one review whose every comment is anchored to a changed or
// context line of the diff. Exit codes are deterministic for CI gating and
// git hooks.
//
// Usage:
//
//	prcritic github 123                    # review and comment on PR #123
//	prcritic github 123 --dry-run          # review without posting
//	prcritic review staged                 # review staged changes
//	prcritic review range origin/main..HEAD
//	prcritic review commit <sha>
//	prcritic review file path/to/file.go   # review a whole file
//	prcritic review staged --compare anthropic:claude-sonnet-4-5,openai:gpt-4.1
//
// Configuration is read from config.yaml in the user config directory,
// PRCRITIC_* environment variables and flags, in increasing precedence.
package main
