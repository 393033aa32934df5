package review

import (
	"strings"
	"testing"
)

func TestSeverityRank(t *testing.T) {
	tests := []struct {
		severity Severity
		want     int
	}{
		{SeverityLow, 1},
		{SeverityMedium, 2},
		{SeverityHigh, 3},
		{SeverityCritical, 4},
		{Severity("unknown"), 0},
	}
	for _, tt := range tests {
		got := SeverityRank(tt.severity)
		if got != tt.want {
			t.Errorf("SeverityRank(%q) = %d, want %d", tt.severity, got, tt.want)
		}
	}
}

func TestParseSeverity(t *testing.T) {
	tests := map[string]Severity{
		"critical": SeverityCritical,
		"Blocker":  SeverityCritical,
		" HIGH ":   SeverityHigh,
		"major":    SeverityHigh,
		"medium":   SeverityMedium,
		"":         SeverityMedium,
		"whatever": SeverityMedium,
		"minor":    SeverityLow,
		"nit":      SeverityLow,
		"low":      SeverityLow,
	}
	for in, want := range tests {
		if got := ParseSeverity(in); got != want {
			t.Errorf("ParseSeverity(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMeetsThreshold(t *testing.T) {
	tests := []struct {
		severity  Severity
		threshold Severity
		want      bool
	}{
		{SeverityLow, "", true},
		{SeverityHigh, SeverityHigh, true},
		{SeverityCritical, SeverityHigh, true},
		{SeverityMedium, SeverityHigh, false},
		{SeverityLow, SeverityMedium, false},
		{SeverityLow, SeverityLow, true},
	}
	for _, tt := range tests {
		got := MeetsThreshold(tt.severity, tt.threshold)
		if got != tt.want {
			t.Errorf("MeetsThreshold(%q, %q) = %v, want %v", tt.severity, tt.threshold, got, tt.want)
		}
	}
}

func TestComputeSummary(t *testing.T) {
	findings := []Finding{
		{Severity: SeverityHigh},
		{Severity: SeverityMedium},
		{Severity: SeverityMedium},
		{Severity: SeverityLow},
	}
	s := ComputeSummary(findings)
	if s.Counts.High != 1 || s.Counts.Medium != 2 || s.Counts.Low != 1 || s.Counts.Critical != 0 {
		t.Errorf("Counts = %+v", s.Counts)
	}
	if s.HighestSeverity != SeverityHigh {
		t.Errorf("HighestSeverity = %q, want %q", s.HighestSeverity, SeverityHigh)
	}

	if empty := ComputeSummary(nil); empty.HighestSeverity != "" {
		t.Errorf("empty HighestSeverity = %q", empty.HighestSeverity)
	}
}

func TestStateString(t *testing.T) {
	want := []string{"pending", "chunking", "dispatching", "aggregating", "completed"}
	for i, s := range []State{StatePending, StateChunking, StateDispatching, StateAggregating, StateCompleted} {
		if s.String() != want[i] {
			t.Errorf("State(%d) = %q, want %q", s, s.String(), want[i])
		}
	}
}

func TestResultFailureReason(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want string
	}{
		{"approve", Result{Verdict: VerdictApprove, Units: 1}, ""},
		{"all failed", Result{Verdict: VerdictError, Units: 3, FailedUnits: 3}, "failed for all 3"},
		{"all timed out", Result{Verdict: VerdictError, Units: 3, SkippedUnits: 3}, "deadline passed before any of the 3"},
		{"mixed", Result{Verdict: VerdictError, Units: 3, FailedUnits: 1, SkippedUnits: 2}, "failed for 1 review units and the deadline passed before the other 2"},
	}
	for _, tt := range tests {
		got := tt.res.FailureReason()
		if tt.want == "" {
			if got != "" {
				t.Errorf("%s: FailureReason() = %q, want empty", tt.name, got)
			}
			continue
		}
		if !strings.Contains(got, tt.want) {
			t.Errorf("%s: FailureReason() = %q, want it to contain %q", tt.name, got, tt.want)
		}
	}
}
