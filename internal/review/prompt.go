package review

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/alecthomas/chroma/v2/lexers"

	"github.com/dshills/prcritic/internal/redact"
)

const systemPrompt = `You are a strict, expert code reviewer. You review one slice of a pull request diff at a time and report problems as structured findings.

Rules:
1. Only review the changes shown. Do not comment on code outside the diff.
2. Focus on bugs, security issues, performance problems, and correctness. Avoid bikeshedding on style unless it impacts readability significantly.
3. Be concise and actionable. Include a concrete suggestion whenever you can.
4. Every finding must cite a line number from the left-hand gutter of the diff. Those are line numbers in the new version of the file. Lines marked "-" were removed and cannot be cited.
5. Rate severity as "low", "medium", "high", or "critical".
6. Rate your confidence from 0.0 to 1.0.
7. Categorize each finding as one of: bug, security, performance, correctness, style, maintainability, testing, docs.

You MUST respond with ONLY a JSON object. No markdown, no explanation, no preamble.

The object must have this exact structure:
{
  "findings": [
    {
      "path": "relative/file/path",
      "line": 1,
      "severity": "low|medium|high|critical",
      "category": "bug|security|performance|correctness|style|maintainability|testing|docs",
      "title": "Short descriptive title",
      "message": "What is wrong and why it matters",
      "suggestion": "How to fix it, with code if helpful",
      "confidence": 0.0
    }
  ]
}

If there are no issues, respond with: {"findings": []}`

var modeFocus = map[Mode]string{
	ModeStandard:    "",
	ModeStrict:      "Review mode: strict. Report every defect you find, including minor maintainability and testing gaps.",
	ModeLenient:     "Review mode: lenient. Report only problems that would cause incorrect behavior, data loss, or a security exposure.",
	ModeSecurity:    "Review mode: security. Concentrate on injection, authentication and authorization flaws, secret handling, unsafe deserialization, and input validation.",
	ModePerformance: "Review mode: performance. Concentrate on algorithmic complexity, allocations in hot paths, blocking I/O, and lock contention.",
}

// SystemPrompt returns the system prompt for cfg: the override if one is
// set, otherwise the built-in prompt, followed by the mode paragraph.
func SystemPrompt(cfg Config) string {
	prompt := systemPrompt
	if cfg.SystemPrompt != "" {
		prompt = cfg.SystemPrompt
	}
	if focus := modeFocus[cfg.Mode]; focus != "" {
		prompt += "\n\n" + focus
	}
	return prompt
}

// BuildUserPrompt constructs the prompt for one unit. text is the unit's
// already sanitized diff text.
func BuildUserPrompt(u Unit, text string, pr PullRequest, rules *Rules, maxFindings int) string {
	var b strings.Builder

	b.WriteString("Review the following slice of a pull request.\n\n")

	if pr.Title != "" {
		fmt.Fprintf(&b, "Pull request: %s\n", sanitize(pr.Title))
	}
	if body := strings.TrimSpace(pr.Body); body != "" {
		fmt.Fprintf(&b, "Description:\n%s\n\n", sanitize(body))
	}

	fmt.Fprintf(&b, "File: %s\n", u.Path())
	if lang := detectLanguage(u.Path()); lang != "" {
		fmt.Fprintf(&b, "Language: %s\n", lang)
	}
	if u.Parts > 1 {
		fmt.Fprintf(&b, "This is part %d of %d of the file's changes.\n", u.Part, u.Parts)
	}
	if maxFindings > 0 {
		fmt.Fprintf(&b, "Return at most %d findings.\n", maxFindings)
	}

	if section := BuildRulesPromptSection(rules); section != "" {
		b.WriteString(section)
	}

	b.WriteString("\n--- BEGIN DIFF ---\n")
	b.WriteString(text)
	b.WriteString("\n--- END DIFF ---\n")

	return b.String()
}

// repairPrompt asks the model to restate an unusable response.
func repairPrompt(userPrompt, previous string, err error) string {
	return fmt.Sprintf("%s\n\nYour previous response could not be understood. The error was: %s\n\n"+
		"Respond again with ONLY the JSON object described in the instructions. "+
		"If there are no issues, respond with {\"findings\": []}.\n\nPrevious response:\n%s",
		userPrompt, err, previous)
}

// unitText prepares a unit's diff text for sending: control characters are
// stripped and, when enabled, secrets are redacted.
func unitText(u Unit, cfg Config, log *slog.Logger) string {
	text := sanitize(u.Text)
	if !cfg.RedactSecrets {
		return text
	}
	text, n := redact.Content(text, u.Path(), cfg.RedactPaths)
	if n > 0 {
		log.Debug("redacted prompt content", "path", u.Path(), "unit", u.Index, "count", n)
	}
	return text
}

// sanitize removes control characters other than newline and tab.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			return r
		}
		return -1
	}, s)
}

// detectLanguage returns chroma's name for the file's language, or "".
func detectLanguage(path string) string {
	lexer := lexers.Match(filepath.Base(path))
	if lexer == nil {
		return ""
	}
	return lexer.Config().Name
}
