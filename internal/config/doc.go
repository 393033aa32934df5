// Package config loads and merges prcritic configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (PRCRITIC_PROVIDER, PRCRITIC_MODEL, PRCRITIC_FAIL_ON, etc.)
//  3. Config file ($XDG_CONFIG_HOME/prcritic/config.yaml, or PRCRITIC_CONFIG)
//  4. Built-in defaults
//
// Use [Load] to obtain a merged [Config], [Config.ReviewConfig] to hand the
// review settings to the orchestrator, and [SetField] to update one key.
package config
