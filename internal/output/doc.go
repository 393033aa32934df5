// Package output renders a review result for display or machine consumption.
//
// Four formats are supported:
//   - text: human-readable terminal output (default), colored when the
//     destination is a terminal
//   - json: the full result plus severity counts
//   - markdown: PR-comment-friendly, with collapsible sections per severity
//   - sarif: SARIF v2.1.0 for code scanning upload
//
// Use [GetWriter] to obtain a [Writer] for a format name.
package output
