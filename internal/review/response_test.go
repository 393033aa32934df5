package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse_Structured(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
		want    []Finding
	}{
		{
			name:    "findings envelope",
			content: `{"findings":[{"path":"a.go","line":3,"severity":"high","category":"bug","title":"Nil map","message":"write to nil map","suggestion":"make it","confidence":0.9}]}`,
			want: []Finding{{
				Path: "a.go", Line: 3, Severity: SeverityHigh, Category: CategoryBug,
				Title: "Nil map", Message: "write to nil map", Suggestion: "make it", Confidence: 0.9,
			}},
		},
		{
			name:    "reviews envelope with lineNumber and reviewComment",
			content: `{"reviews":[{"lineNumber":"12","reviewComment":"Use a constant","priority":"minor"}]}`,
			want:    []Finding{{Line: 12, Severity: SeverityLow, Message: "Use a constant"}},
		},
		{
			name:    "bare array with alternate names",
			content: `[{"file":"x.py","startLine":4,"body":"shadowed builtin"}]`,
			want:    []Finding{{Path: "x.py", Line: 4, Severity: SeverityMedium, Message: "shadowed builtin"}},
		},
		{
			name:    "fenced json block amid prose",
			content: "Here is my review:\n\n```json\n{\"findings\":[{\"path\":\"a.go\",\"line\":1,\"message\":\"m\"}]}\n```\n\nThanks!",
			want:    []Finding{{Path: "a.go", Line: 1, Severity: SeverityMedium, Message: "m"}},
		},
		{
			name:    "trailing commas repaired",
			content: "{\"findings\":[{\"line\":2,\"message\":\"m\",},]}",
			want:    []Finding{{Line: 2, Severity: SeverityMedium, Message: "m"}},
		},
		{
			name:    "object embedded in prose",
			content: `Sure. {"comments":[{"line":5,"comment":"off by one"}]} Hope that helps.`,
			want:    []Finding{{Line: 5, Severity: SeverityMedium, Message: "off by one"}},
		},
		{
			name:    "title used when message missing and confidence clamped",
			content: `{"findings":[{"line":1,"title":"Race","confidence":3}]}`,
			want:    []Finding{{Line: 1, Severity: SeverityMedium, Title: "Race", Message: "Race", Confidence: 1}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseResponse(tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseResponse_EmptyStructuredIsClean(t *testing.T) {
	t.Parallel()
	for _, content := range []string{`{"findings": []}`, `[]`, "```json\n{\"reviews\": []}\n```"} {
		got, err := parseResponse(content)
		require.NoError(t, err, content)
		assert.Empty(t, got, content)
	}
}

func TestParseResponse_PrefersFencedBlockOverProse(t *testing.T) {
	t.Parallel()
	content := "main.go:1: this line looks like a finding\n\n```json\n{\"findings\":[{\"path\":\"main.go\",\"line\":9,\"message\":\"real\"}]}\n```"
	got, err := parseResponse(content)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 9, got[0].Line)
}

func TestParseResponse_FreeText(t *testing.T) {
	t.Parallel()
	content := `I found a couple of problems:

- src/file.py:6: eval on user input
2. ` + "`lib/util.go`" + `:14: [high] unchecked error
Overall the change is reasonable.`

	got, err := parseResponse(content)
	require.NoError(t, err)
	assert.Equal(t, []Finding{
		{Path: "src/file.py", Line: 6, Severity: SeverityMedium, Message: "eval on user input"},
		{Path: "lib/util.go", Line: 14, Severity: SeverityHigh, Message: "unchecked error"},
	}, got)
}

func TestParseResponse_NoIssues(t *testing.T) {
	t.Parallel()
	for _, content := range []string{
		"No issues found.",
		"LGTM",
		"The change looks good to me.",
		"I have no significant concerns with this diff.",
	} {
		got, err := parseResponse(content)
		require.NoError(t, err, content)
		assert.Empty(t, got, content)
	}
}

func TestParseResponse_Unrecognized(t *testing.T) {
	t.Parallel()
	for _, content := range []string{
		"",
		"   ",
		"The weather is nice today.",
		`{"summary": "fine"}`,
		"```go\nfunc main() {}\n```",
	} {
		_, err := parseResponse(content)
		assert.ErrorIs(t, err, errUnrecognized, content)
	}
}
