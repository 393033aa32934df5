// Package cli wires together the Cobra command tree for the prcritic binary.
//
// It defines the root command and its subcommands (github, review, config,
// models, hook, version), binds flags over the layered configuration, runs
// the review pipeline and maps its outcome to exit codes for CI gating.
package cli
