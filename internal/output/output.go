package output

import (
	"fmt"
	"io"

	"github.com/dshills/prcritic/internal/review"
)

// Writer renders a review result in a specific format.
type Writer interface {
	Write(w io.Writer, res *review.Result) error
}

// Formats lists the accepted format names.
var Formats = []string{"text", "json", "markdown", "sarif"}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "", "text":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "markdown", "md":
		return &MarkdownWriter{}, nil
	case "sarif":
		return &SARIFWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// severityOrder is the display order, most severe first.
var severityOrder = []review.Severity{
	review.SeverityCritical,
	review.SeverityHigh,
	review.SeverityMedium,
	review.SeverityLow,
}

func groupBySeverity(findings []review.Finding) map[review.Severity][]review.Finding {
	m := make(map[review.Severity][]review.Finding)
	for _, f := range findings {
		m[f.Severity] = append(m[f.Severity], f)
	}
	return m
}

func coverageNote(res *review.Result) string {
	if !res.Partial && res.FailedUnits == 0 {
		return ""
	}
	return fmt.Sprintf("Partial review: %d of %d units were not reviewed (%d failed, %d timed out).",
		res.FailedUnits+res.SkippedUnits, res.Units, res.FailedUnits, res.SkippedUnits)
}
