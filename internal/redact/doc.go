// Package redact removes secrets from review prompts before they are sent to
// any inference provider.
//
// Detection uses regex heuristics covering common secret shapes: API keys,
// JWTs, private keys, AWS credentials, bearer tokens, database connection
// strings, and vendor tokens (Anthropic, OpenAI, Google, GitHub, Slack).
//
// Files whose paths match configured globs have their whole unit replaced
// with [REDACTED] rather than being scanned line by line.
package redact
