package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/dshills/prcritic/internal/review"
)

var (
	headerColor  = color.New(color.FgBlue, color.Bold)
	pathColor    = color.New(color.FgYellow)
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed, color.Bold)
	dimColor     = color.New(color.FgHiBlack)
)

// TextWriter outputs a human-readable terminal report. Colors follow
// fatih/color's detection, so redirected output is plain.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, res *review.Result) error {
	ew := &errWriter{w: w}
	s := review.ComputeSummary(res.Findings)

	ew.printf("%s\n", headerColor.Sprintf("prcritic review (%s)", res.Verdict))
	if res.RunID != "" {
		ew.printf("%s\n", dimColor.Sprintf("run %s", res.RunID))
	}
	ew.println(strings.Repeat("─", 60))
	ew.printf("Findings: %d total", len(res.Findings))
	if len(res.Findings) > 0 {
		ew.printf(" (%d critical, %d high, %d medium, %d low)",
			s.Counts.Critical, s.Counts.High, s.Counts.Medium, s.Counts.Low)
	}
	ew.println("")
	ew.printf("Units: %d reviewed, %d clean, %d failed, %d skipped\n",
		res.Units-res.FailedUnits-res.SkippedUnits, res.CleanUnits, res.FailedUnits, res.SkippedUnits)
	if res.DroppedFindings > 0 {
		ew.printf("Dropped: %d findings outside the diff or over the cap\n", res.DroppedFindings)
	}
	if res.WithheldFiles > 0 {
		ew.printf("Withheld: %d files matched the redaction path policy\n", res.WithheldFiles)
	}
	ew.println(strings.Repeat("─", 60))

	if note := coverageNote(res); note != "" {
		ew.printf("%s\n", errorColor.Sprint(note))
	}
	if res.Verdict == review.VerdictError {
		ew.printf("\n%s\n", errorColor.Sprint("Review could not be completed: "+res.FailureReason()+"."))
		return ew.err
	}
	if len(res.Findings) == 0 {
		ew.printf("\n%s\n", successColor.Sprint("No issues found. Looks good!"))
		t.writeWarnings(ew, res)
		return ew.err
	}

	grouped := groupBySeverity(res.Findings)
	for _, sev := range severityOrder {
		findings := grouped[sev]
		if len(findings) == 0 {
			continue
		}

		ew.printf("\n%s %s\n", severityIcon(sev), severityColor(sev).Sprint(strings.ToUpper(string(sev))))
		ew.println(strings.Repeat("─", 40))

		for _, f := range findings {
			ew.printf("\n  %s  %s\n", pathColor.Sprintf("%s:%d", f.Path, f.Line), f.Title)
			if f.Category != "" || f.Confidence > 0 {
				ew.printf("  Category: %s | Confidence: %.0f%%\n", f.Category, f.Confidence*100)
			}
			for _, line := range wrapText(f.Message, 70) {
				ew.printf("    %s\n", line)
			}
			if f.Suggestion != "" {
				ew.println("  Suggestion:")
				for _, line := range wrapText(f.Suggestion, 70) {
					ew.printf("    %s\n", line)
				}
			}
		}
	}

	t.writeWarnings(ew, res)
	ew.printf("\n%s\n", strings.Repeat("─", 60))
	ew.printf("%s\n", dimColor.Sprintf("Completed in %dms (%s: %d calls, %d retries, %d tokens in, %d out)",
		res.Stats.Elapsed.Milliseconds(), res.Stats.Provider, res.Stats.Calls, res.Stats.Retries,
		res.Stats.InputTokens, res.Stats.OutputTokens))

	return ew.err
}

func (t *TextWriter) writeWarnings(ew *errWriter, res *review.Result) {
	if len(res.Warnings) == 0 {
		return
	}
	ew.printf("\nDiff warnings:\n")
	for _, w := range res.Warnings {
		ew.printf("  - %s\n", w.String())
	}
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func severityColor(s review.Severity) *color.Color {
	switch s {
	case review.SeverityCritical:
		return color.New(color.FgMagenta, color.Bold)
	case review.SeverityHigh:
		return color.New(color.FgRed, color.Bold)
	case review.SeverityMedium:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}

func severityIcon(s review.Severity) string {
	switch s {
	case review.SeverityCritical:
		return "[!!!]"
	case review.SeverityHigh:
		return "[!!]"
	case review.SeverityMedium:
		return "[!]"
	case review.SeverityLow:
		return "[-]"
	default:
		return "[?]"
	}
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	var current strings.Builder
	for _, word := range strings.Fields(text) {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
