package review

import (
	"fmt"
	"time"

	"github.com/dshills/prcritic/internal/diff"
)

// Config is the orchestrator's configuration. It is passed by value and
// never read from globals.
type Config struct {
	ExcludePatterns []string
	IncludePatterns []string
	MaxFileBytes    int
	OversizePolicy  diff.OversizePolicy
	SkipTestFiles   bool
	SkipDocs        bool

	// MinLineChanges drops files with fewer added plus removed lines.
	MinLineChanges    int
	// MaxFilesPerReview caps the reviewed files. Zero means unlimited.
	MaxFilesPerReview int

	// MaxPromptSize bounds a unit's diff text, in characters.
	MaxPromptSize         int
	MaxConcurrentRequests int
	MaxRetries            int
	BackoffBaseMS         int
	// ReviewDeadlineMS bounds the whole review. Zero means no deadline.
	ReviewDeadlineMS int
	// SystemPrompt replaces the built-in system prompt when set.
	SystemPrompt string

	// RequestsPerMinute caps provider calls across all units. Zero disables it.
	RequestsPerMinute int
	// MaxFindings caps the published findings. Zero means unlimited.
	MaxFindings       int
	SeverityThreshold Severity
	Mode              Mode
	MaxTokens         int
	Temperature       float64
	RedactSecrets     bool
	// RedactPaths are globs, honored when RedactSecrets is set, whose files
	// are withheld from the provider: no unit is built for them.
	RedactPaths []string
}

// Mode selects the reviewer's focus.
type Mode string

const (
	ModeStandard    Mode = "standard"
	ModeStrict      Mode = "strict"
	ModeLenient     Mode = "lenient"
	ModeSecurity    Mode = "security"
	ModePerformance Mode = "performance"
)

const maxBackoff = 30 * time.Second

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		ExcludePatterns:       []string{"*.lock", "go.sum", "vendor/**", "node_modules/**", "*.min.js"},
		MaxFileBytes:          200_000,
		OversizePolicy:        diff.OversizeTruncate,
		MinLineChanges:        1,
		MaxFilesPerReview:     50,
		MaxPromptSize:         32_000,
		MaxConcurrentRequests: 4,
		MaxRetries:            3,
		BackoffBaseMS:         1000,
		ReviewDeadlineMS:      10 * 60 * 1000,
		SeverityThreshold:     SeverityLow,
		Mode:                  ModeStandard,
		MaxTokens:             8192,
		RedactSecrets:         true,
		RedactPaths:           []string{"**/.env", "*secrets*"},
	}
}

// Validate reports configuration values the orchestrator cannot run with.
func (c Config) Validate() error {
	switch {
	case c.MaxPromptSize <= 0:
		return fmt.Errorf("max_prompt_size must be positive, got %d", c.MaxPromptSize)
	case c.MaxConcurrentRequests <= 0:
		return fmt.Errorf("max_concurrent_requests must be positive, got %d", c.MaxConcurrentRequests)
	case c.MaxRetries < 0:
		return fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries)
	case c.BackoffBaseMS < 0:
		return fmt.Errorf("backoff_base_ms must not be negative, got %d", c.BackoffBaseMS)
	case c.ReviewDeadlineMS < 0:
		return fmt.Errorf("review_deadline_ms must not be negative, got %d", c.ReviewDeadlineMS)
	case c.MaxFileBytes < 0:
		return fmt.Errorf("max_file_bytes must not be negative, got %d", c.MaxFileBytes)
	case c.RequestsPerMinute < 0:
		return fmt.Errorf("requests_per_minute must not be negative, got %d", c.RequestsPerMinute)
	case c.MaxFindings < 0:
		return fmt.Errorf("max_findings must not be negative, got %d", c.MaxFindings)
	case c.MinLineChanges < 0:
		return fmt.Errorf("min_line_changes must not be negative, got %d", c.MinLineChanges)
	case c.MaxFilesPerReview < 0:
		return fmt.Errorf("max_files_per_review must not be negative, got %d", c.MaxFilesPerReview)
	}
	if c.SeverityThreshold != "" && SeverityRank(c.SeverityThreshold) == 0 {
		return fmt.Errorf("unknown severity threshold %q", c.SeverityThreshold)
	}
	if c.OversizePolicy != "" && c.OversizePolicy != diff.OversizeTruncate && c.OversizePolicy != diff.OversizeExclude {
		return fmt.Errorf("unknown oversize policy %q", c.OversizePolicy)
	}
	if _, ok := modeFocus[c.Mode]; c.Mode != "" && !ok {
		return fmt.Errorf("unknown review mode %q", c.Mode)
	}
	return nil
}

// ParseOptions derives the diff parser options from c.
func (c Config) ParseOptions() diff.ParseOptions {
	return diff.ParseOptions{
		Include:      c.IncludePatterns,
		Exclude:      c.ExcludePatterns,
		MaxFileBytes: c.MaxFileBytes,
		Oversize:     c.OversizePolicy,
		SkipTests:    c.SkipTestFiles,
		SkipDocs:     c.SkipDocs,
		MinChanges:   c.MinLineChanges,
		MaxFiles:     c.MaxFilesPerReview,
	}
}

func (c Config) backoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMS) * time.Millisecond
}

func (c Config) deadline() time.Duration {
	return time.Duration(c.ReviewDeadlineMS) * time.Millisecond
}
