package review

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// errUnrecognized means a response held neither findings nor a clear
// statement that there were none.
var errUnrecognized = errors.New("response contains no recognizable findings")

// parseResponse extracts candidate findings from a provider response. A nil
// error with no findings means the model reported the unit clean.
//
// Structured output is tried first: fenced code blocks, the whole text, the
// text with common JSON mistakes repaired, then the outermost object or
// array embedded in prose. Failing that, each line is scanned for
// "path:line: message". Failing that, the response must say there are no
// issues.
func parseResponse(content string) ([]Finding, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errUnrecognized
	}

	for _, candidate := range jsonCandidates(content) {
		if findings, ok := decodeFindings(candidate); ok {
			return findings, nil
		}
	}

	if findings := scanFreeText(content); len(findings) > 0 {
		return findings, nil
	}

	if noIssuesPattern.MatchString(content) {
		return nil, nil
	}
	return nil, errUnrecognized
}

// jsonCandidates lists the strings worth handing to the JSON decoder, most
// trustworthy first.
func jsonCandidates(content string) []string {
	var out []string
	out = append(out, fencedBlocks(content)...)
	out = append(out, content)
	if cleaned := cleanJSON(content); cleaned != content {
		out = append(out, cleaned)
	}
	if m := embeddedObject.FindString(content); m != "" {
		out = append(out, m, cleanJSON(m))
	}
	if m := embeddedArray.FindString(content); m != "" {
		out = append(out, m, cleanJSON(m))
	}
	return out
}

// fencedBlocks returns the bodies of fenced code blocks tagged json (or
// untagged), in document order.
func fencedBlocks(content string) []string {
	source := []byte(content)
	root := goldmark.DefaultParser().Parse(text.NewReader(source))

	var blocks []string
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		lang := strings.ToLower(string(block.Language(source)))
		if lang != "" && lang != "json" && lang != "jsonc" {
			return ast.WalkSkipChildren, nil
		}
		var buf bytes.Buffer
		lines := block.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(source))
		}
		if s := strings.TrimSpace(buf.String()); s != "" {
			blocks = append(blocks, s)
		}
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

var (
	embeddedObject = regexp.MustCompile(`(?s)\{.*\}`)
	embeddedArray  = regexp.MustCompile(`(?s)\[.*\]`)
	trailingComma  = regexp.MustCompile(`,(\s*[}\]])`)
	lineComment    = regexp.MustCompile(`(?m)^\s*//.*$`)
)

func cleanJSON(s string) string {
	s = lineComment.ReplaceAllString(s, "")
	return trailingComma.ReplaceAllString(s, "$1")
}

// envelopeKeys are the top-level keys models use to wrap their findings.
var envelopeKeys = []string{"findings", "reviews", "comments", "issues"}

// decodeFindings accepts a bare array of findings or an object wrapping one
// under any envelope key. An empty array is a valid, clean answer.
func decodeFindings(s string) ([]Finding, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}

	var items []rawFinding
	switch s[0] {
	case '[':
		if err := json.Unmarshal([]byte(s), &items); err != nil {
			return nil, false
		}
	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal([]byte(s), &envelope); err != nil {
			return nil, false
		}
		found := false
		for _, key := range envelopeKeys {
			raw, ok := envelope[key]
			if !ok {
				continue
			}
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, false
			}
			found = true
			break
		}
		if !found {
			return nil, false
		}
	default:
		return nil, false
	}

	findings := make([]Finding, 0, len(items))
	for _, item := range items {
		findings = append(findings, item.finding())
	}
	return findings, true
}

// rawFinding tolerates the field names different prompts and models use.
type rawFinding struct {
	Path          string  `json:"path"`
	File          string  `json:"file"`
	Filename      string  `json:"filename"`
	Line          flexInt `json:"line"`
	LineNumber    flexInt `json:"lineNumber"`
	StartLine     flexInt `json:"startLine"`
	Severity      string  `json:"severity"`
	Priority      string  `json:"priority"`
	Category      string  `json:"category"`
	Title         string  `json:"title"`
	Message       string  `json:"message"`
	ReviewComment string  `json:"reviewComment"`
	Body          string  `json:"body"`
	Comment       string  `json:"comment"`
	Suggestion    string  `json:"suggestion"`
	Confidence    float64 `json:"confidence"`
}

func (r rawFinding) finding() Finding {
	f := Finding{
		Path:       firstNonEmpty(r.Path, r.File, r.Filename),
		Line:       int(firstNonZero(r.Line, r.LineNumber, r.StartLine)),
		Severity:   ParseSeverity(firstNonEmpty(r.Severity, r.Priority)),
		Category:   Category(strings.ToLower(strings.TrimSpace(r.Category))),
		Title:      strings.TrimSpace(r.Title),
		Message:    strings.TrimSpace(firstNonEmpty(r.Message, r.ReviewComment, r.Body, r.Comment)),
		Suggestion: strings.TrimSpace(r.Suggestion),
		Confidence: math.Max(0, math.Min(1, r.Confidence)),
	}
	if f.Message == "" {
		f.Message = f.Title
	}
	return f
}

// flexInt decodes a JSON number or a numeric string.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("line %s is not a number", data)
	}
	*n = flexInt(v)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...flexInt) flexInt {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

// freeTextLine matches "path:line: message" with an optional leading list
// marker and an optional [severity] before the message.
var freeTextLine = regexp.MustCompile(`^\s*(?:[-*]\s+|\d+\.\s+)?` + "`?" + `([\w./-]+\.\w+|[\w.-]+(?:/[\w.-]+)+)` + "`?" + `:(\d+)(?::\d+)?:?\s+(?:\[(\w+)\]\s*)?(.+)$`)

func scanFreeText(content string) []Finding {
	var findings []Finding
	for _, line := range strings.Split(content, "\n") {
		m := freeTextLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		severity := SeverityMedium
		if m[3] != "" {
			severity = ParseSeverity(m[3])
		}
		findings = append(findings, Finding{
			Path:     m[1],
			Line:     n,
			Severity: severity,
			Message:  strings.TrimSpace(m[4]),
		})
	}
	return findings
}

var noIssuesPattern = regexp.MustCompile(`(?i)\b(no (significant |notable |major )?(issues|problems|findings|concerns|bugs)|lgtm|looks good|nothing to report)\b`)
