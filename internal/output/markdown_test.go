package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dshills/prcritic/internal/review"
)

func TestMarkdownWriter_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := (&MarkdownWriter{}).Write(&buf, approvedResult()); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "## prcritic review") {
		t.Error("missing heading")
	}
	if !strings.Contains(out, "| **Total** | **0** |") {
		t.Error("missing total row")
	}
	if !strings.Contains(out, "No issues found.") {
		t.Error("missing no-issues line")
	}
	if strings.Contains(out, "<details>") {
		t.Error("should not have collapsible sections when empty")
	}
}

func TestMarkdownWriter_WithFindings(t *testing.T) {
	var buf bytes.Buffer
	if err := (&MarkdownWriter{}).Write(&buf, sampleResult()); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"**Verdict:** `request-changes`",
		"<summary>:red_circle: HIGH (1)</summary>",
		"<summary>:yellow_circle: LOW (1)</summary>",
		"### Null pointer",
		"**`main.go:10`** | bug | Confidence: 95%",
		"```go\nif x == nil { return }\n```",
		"> Break it up",
		"*Reviewed 3 units in 1500ms with anthropic*",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestMarkdownWriter_Partial(t *testing.T) {
	res := approvedResult()
	res.Units = 4
	res.SkippedUnits = 1
	res.Partial = true
	var buf bytes.Buffer
	if err := (&MarkdownWriter{}).Write(&buf, res); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if !strings.Contains(buf.String(), "> Partial review: 1 of 4 units") {
		t.Errorf("partial note missing:\n%s", buf.String())
	}
}

func TestMarkdownWriter_Error(t *testing.T) {
	res := &review.Result{Findings: []review.Finding{}, Verdict: review.VerdictError, Units: 1, FailedUnits: 1}
	var buf bytes.Buffer
	if err := (&MarkdownWriter{}).Write(&buf, res); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "could not be completed") {
		t.Errorf("error not reported:\n%s", out)
	}
	if strings.Contains(out, "| Severity |") {
		t.Error("error result should not render a severity table")
	}
}

func TestLooksLikeCode(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"func main() {}", true},
		{"x := 42", true},
		{"Consider renaming the variable", false},
		{"return nil", true},
	}
	for _, tt := range tests {
		if got := looksLikeCode(tt.input); got != tt.want {
			t.Errorf("looksLikeCode(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestFenceLang(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"main.go", "go"},
		{"pkg/app.py", "python"},
		{"notes.zzzq", ""},
	}
	for _, tt := range tests {
		if got := fenceLang(tt.path); got != tt.want {
			t.Errorf("fenceLang(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
