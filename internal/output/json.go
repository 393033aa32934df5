package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/prcritic/internal/review"
)

// JSONWriter outputs the full result as JSON.
type JSONWriter struct{}

type jsonResult struct {
	*review.Result
	Summary review.Summary `json:"summary"`
}

func (j *JSONWriter) Write(w io.Writer, res *review.Result) error {
	data, err := json.MarshalIndent(jsonResult{Result: res, Summary: review.ComputeSummary(res.Findings)}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}
