package review

import (
	"fmt"
	"strings"
	"time"

	"github.com/dshills/prcritic/internal/diff"
)

// Severity represents the severity level of a finding.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityRank returns a numeric rank for sorting (higher = more severe).
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ParseSeverity normalizes the many spellings models use for severity.
// Unknown values map to medium.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "blocker", "severe":
		return SeverityCritical
	case "high", "major", "error":
		return SeverityHigh
	case "low", "minor", "info", "nit", "trivial", "suggestion":
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// MeetsThreshold returns true if severity is at or above the threshold. An
// empty threshold admits everything.
func MeetsThreshold(s, threshold Severity) bool {
	if threshold == "" {
		return true
	}
	return SeverityRank(s) >= SeverityRank(threshold)
}

// Category represents the type of finding.
type Category string

const (
	CategoryBug             Category = "bug"
	CategorySecurity        Category = "security"
	CategoryPerformance     Category = "performance"
	CategoryCorrectness     Category = "correctness"
	CategoryStyle           Category = "style"
	CategoryMaintainability Category = "maintainability"
	CategoryTesting         Category = "testing"
	CategoryDocs            Category = "docs"
)

// Finding is one review comment anchored to a new-file line.
type Finding struct {
	// ID is a stable hash of path, line and title, assigned on acceptance.
	ID         string   `json:"id"`
	Path       string   `json:"path"`
	Line       int      `json:"line"`
	Severity   Severity `json:"severity"`
	Category   Category `json:"category,omitempty"`
	Title      string   `json:"title,omitempty"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`

	// ordering keys: source unit and position within its response
	unit    int
	ordinal int
}

// Verdict is the overall outcome of a review.
type Verdict string

const (
	VerdictApprove        Verdict = "approve"
	VerdictRequestChanges Verdict = "request-changes"
	VerdictError          Verdict = "error"
)

// State is a step of the review state machine. Transitions only move
// forward.
type State int

const (
	StatePending State = iota
	StateChunking
	StateDispatching
	StateAggregating
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateChunking:
		return "chunking"
	case StateDispatching:
		return "dispatching"
	case StateAggregating:
		return "aggregating"
	case StateCompleted:
		return "completed"
	default:
		return "pending"
	}
}

// Stats records provider usage for one review.
type Stats struct {
	Provider     string        `json:"provider"`
	Calls        int           `json:"calls"`
	Retries      int           `json:"retries"`
	InputTokens  int           `json:"inputTokens"`
	OutputTokens int           `json:"outputTokens"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Result is the aggregate outcome of reviewing one pull request. It is not
// modified after Review returns.
type Result struct {
	RunID    string    `json:"runId"`
	Findings []Finding `json:"findings"`
	Verdict  Verdict   `json:"verdict"`

	Units           int  `json:"units"`
	CleanUnits      int  `json:"cleanUnits"`
	FailedUnits     int  `json:"failedUnits"`
	SkippedUnits    int  `json:"skippedUnits"`
	DroppedFindings int  `json:"droppedFindings"`
	WithheldFiles   int  `json:"withheldFiles,omitempty"`
	Partial         bool `json:"partial"`

	Warnings []diff.Warning `json:"warnings,omitempty"`
	Stats    Stats          `json:"stats"`
}

// FailureReason explains a VerdictError result. It is empty for any other
// verdict.
func (r *Result) FailureReason() string {
	switch {
	case r.Verdict != VerdictError:
		return ""
	case r.FailedUnits == 0:
		return fmt.Sprintf("the review deadline passed before any of the %d review units completed", r.Units)
	case r.SkippedUnits > 0:
		return fmt.Sprintf("the inference provider failed for %d review units and the deadline passed before the other %d completed", r.FailedUnits, r.SkippedUnits)
	default:
		return fmt.Sprintf("the inference provider failed for all %d review units", r.FailedUnits)
	}
}

// SeverityCounts holds counts by severity level.
type SeverityCounts struct {
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

// Summary provides an overview of findings.
type Summary struct {
	Counts          SeverityCounts `json:"counts"`
	HighestSeverity Severity       `json:"highestSeverity,omitempty"`
}

// ComputeSummary calculates the summary from findings.
func ComputeSummary(findings []Finding) Summary {
	var s Summary
	for _, f := range findings {
		switch f.Severity {
		case SeverityLow:
			s.Counts.Low++
		case SeverityMedium:
			s.Counts.Medium++
		case SeverityHigh:
			s.Counts.High++
		case SeverityCritical:
			s.Counts.Critical++
		}
		if SeverityRank(f.Severity) > SeverityRank(s.HighestSeverity) {
			s.HighestSeverity = f.Severity
		}
	}
	return s
}
