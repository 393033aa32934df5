package output

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"

	"github.com/dshills/prcritic/internal/review"
)

// MarkdownWriter outputs a PR-comment-friendly markdown report.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, res *review.Result) error {
	ew := &errWriter{w: w}
	s := review.ComputeSummary(res.Findings)

	ew.printf("## prcritic review\n\n")
	ew.printf("**Verdict:** `%s`\n\n", res.Verdict)

	if res.Verdict == review.VerdictError {
		ew.printf("Review could not be completed: %s.\n", res.FailureReason())
		return ew.err
	}

	ew.printf("| Severity | Count |\n")
	ew.printf("|----------|-------|\n")
	ew.printf("| Critical | %d    |\n", s.Counts.Critical)
	ew.printf("| High     | %d    |\n", s.Counts.High)
	ew.printf("| Medium   | %d    |\n", s.Counts.Medium)
	ew.printf("| Low      | %d    |\n", s.Counts.Low)
	ew.printf("| **Total** | **%d** |\n\n", len(res.Findings))

	if note := coverageNote(res); note != "" {
		ew.printf("> %s\n\n", note)
	}

	if len(res.Findings) == 0 {
		ew.println("No issues found. :white_check_mark:")
		return ew.err
	}

	grouped := groupBySeverity(res.Findings)
	for _, sev := range severityOrder {
		findings := grouped[sev]
		if len(findings) == 0 {
			continue
		}

		ew.printf("<details>\n<summary>%s %s (%d)</summary>\n\n", mdSeverityIcon(sev), strings.ToUpper(string(sev)), len(findings))

		for _, f := range findings {
			title := f.Title
			if title == "" {
				title = "Finding"
			}
			ew.printf("### %s\n\n", title)
			ew.printf("**`%s:%d`**", f.Path, f.Line)
			if f.Category != "" {
				ew.printf(" | %s", f.Category)
			}
			if f.Confidence > 0 {
				ew.printf(" | Confidence: %.0f%%", f.Confidence*100)
			}
			ew.printf("\n\n%s\n\n", f.Message)

			if f.Suggestion != "" {
				ew.printf("**Suggestion:**\n\n")
				if looksLikeCode(f.Suggestion) {
					ew.printf("```%s\n%s\n```\n\n", fenceLang(f.Path), f.Suggestion)
				} else {
					ew.printf("> %s\n\n", strings.ReplaceAll(f.Suggestion, "\n", "\n> "))
				}
			}

			ew.printf("---\n\n")
		}

		ew.printf("</details>\n\n")
	}

	ew.printf("*Reviewed %d units in %dms with %s*\n", res.Units, res.Stats.Elapsed.Milliseconds(), res.Stats.Provider)
	return ew.err
}

func mdSeverityIcon(s review.Severity) string {
	switch s {
	case review.SeverityCritical:
		return ":rotating_light:"
	case review.SeverityHigh:
		return ":red_circle:"
	case review.SeverityMedium:
		return ":orange_circle:"
	case review.SeverityLow:
		return ":yellow_circle:"
	default:
		return ":white_circle:"
	}
}

func looksLikeCode(s string) bool {
	codeIndicators := []string{
		"func ", "if ", "for ", "return ", "var ", "const ",
		"def ", "class ", "import ", "from ",
		"{", "}", "=>", "->", ":=", "==",
		"()", "[];",
	}
	for _, indicator := range codeIndicators {
		if strings.Contains(s, indicator) {
			return true
		}
	}
	return false
}

// fenceLang returns a code fence info string for path, using the first
// alias of the chroma lexer matching its file name.
func fenceLang(path string) string {
	l := lexers.Match(filepath.Base(path))
	if l == nil {
		return ""
	}
	cfg := l.Config()
	if len(cfg.Aliases) > 0 {
		return cfg.Aliases[0]
	}
	return strings.ToLower(cfg.Name)
}
