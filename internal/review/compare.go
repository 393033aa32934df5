package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/prcritic/internal/diff"
	"github.com/dshills/prcritic/internal/providers"
)

// lineSlack is how far apart two findings' lines may be and still describe
// the same problem.
const lineSlack = 3

// Contender is one provider:model pair in a comparison.
type Contender struct {
	Label    string
	Reviewer providers.Reviewer
}

// Comparison holds results from reviewing the same files with several
// providers.
type Comparison struct {
	Labels    []string
	Results   []*Result
	Errors    []error
	Consensus []Finding            // reported by at least two contenders
	Unique    map[string][]Finding // keyed by contender label
}

// Compare reviews files independently with every contender and classifies
// findings as consensus or unique. It fails only if no contender produced a
// result.
func Compare(ctx context.Context, files []*diff.File, contenders []Contender, cfg Config, opts ...Option) (*Comparison, error) {
	cmp := &Comparison{
		Labels:  make([]string, len(contenders)),
		Results: make([]*Result, len(contenders)),
		Errors:  make([]error, len(contenders)),
		Unique:  make(map[string][]Finding),
	}

	var g errgroup.Group
	for i, c := range contenders {
		cmp.Labels[i] = c.Label
		g.Go(func() error {
			res, err := New(c.Reviewer, cfg, opts...).Review(ctx, files)
			cmp.Results[i] = res
			if err != nil {
				cmp.Errors[i] = fmt.Errorf("%s: %w", c.Label, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	usable := 0
	for i, res := range cmp.Results {
		if res != nil && res.Verdict != VerdictError {
			usable++
		} else {
			cmp.Results[i] = nil
		}
	}
	if usable == 0 {
		return nil, errors.Join(cmp.Errors...)
	}

	cmp.merge()
	return cmp, nil
}

func (cmp *Comparison) merge() {
	type ref struct{ contender, finding int }
	matched := make(map[ref]bool)

	for i, a := range cmp.Results {
		if a == nil {
			continue
		}
		for fi, f := range a.Findings {
			for j := i + 1; j < len(cmp.Results); j++ {
				b := cmp.Results[j]
				if b == nil {
					continue
				}
				for gj, g := range b.Findings {
					if fuzzyMatch(f, g) {
						matched[ref{i, fi}] = true
						matched[ref{j, gj}] = true
						break
					}
				}
			}
		}
	}

	for i, res := range cmp.Results {
		if res == nil {
			continue
		}
		for fi, f := range res.Findings {
			if !matched[ref{i, fi}] {
				cmp.Unique[cmp.Labels[i]] = append(cmp.Unique[cmp.Labels[i]], f)
				continue
			}
			if !cmp.inConsensus(f) {
				cmp.Consensus = append(cmp.Consensus, f)
			}
		}
	}
	sortFindings(cmp.Consensus)
}

// Combined folds the comparison into one result for rendering: consensus
// findings first, then each contender's unique findings in label order.
// Unit counts come from the first usable result and usage stats are summed.
// When every contender ended in VerdictError so does the combined result.
func (cmp *Comparison) Combined() *Result {
	out := &Result{Findings: []Finding{}, Verdict: VerdictApprove}
	var labels []string
	reviewed := 0
	for i, res := range cmp.Results {
		if res == nil {
			continue
		}
		if labels == nil {
			out.RunID = res.RunID
			out.Units = res.Units
			out.CleanUnits = res.CleanUnits
			out.FailedUnits = res.FailedUnits
			out.SkippedUnits = res.SkippedUnits
			out.WithheldFiles = res.WithheldFiles
			out.Warnings = res.Warnings
		}
		if res.Verdict != VerdictError {
			reviewed++
		}
		labels = append(labels, cmp.Labels[i])
		out.Partial = out.Partial || res.Partial
		out.DroppedFindings += res.DroppedFindings
		out.Stats.Calls += res.Stats.Calls
		out.Stats.Retries += res.Stats.Retries
		out.Stats.InputTokens += res.Stats.InputTokens
		out.Stats.OutputTokens += res.Stats.OutputTokens
		out.Stats.Elapsed = max(out.Stats.Elapsed, res.Stats.Elapsed)
	}
	out.Stats.Provider = strings.Join(labels, ", ")

	out.Findings = append(out.Findings, cmp.Consensus...)
	for _, label := range cmp.Labels {
		out.Findings = append(out.Findings, cmp.Unique[label]...)
	}
	switch {
	case len(out.Findings) > 0:
		out.Verdict = VerdictRequestChanges
	case len(labels) > 0 && reviewed == 0:
		out.Verdict = VerdictError
	}
	return out
}

func (cmp *Comparison) inConsensus(f Finding) bool {
	for _, c := range cmp.Consensus {
		if fuzzyMatch(c, f) {
			return true
		}
	}
	return false
}

// fuzzyMatch determines if two findings are similar enough to be considered the same.
func fuzzyMatch(a, b Finding) bool {
	if a.Path != b.Path {
		return false
	}
	if d := a.Line - b.Line; d > lineSlack || d < -lineSlack {
		return false
	}
	if titleSimilar(a.Title, b.Title) {
		return true
	}
	return a.Category != "" && a.Category == b.Category &&
		anyWordOverlap(a.Title+" "+a.Message, b.Title+" "+b.Message)
}

// anyWordOverlap returns true if the texts share at least one word longer
// than three letters.
func anyWordOverlap(a, b string) bool {
	setB := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(b)) {
		if len(w) > 3 {
			setB[w] = true
		}
	}
	for _, w := range strings.Fields(strings.ToLower(a)) {
		if len(w) > 3 && setB[w] {
			return true
		}
	}
	return false
}

func titleSimilar(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}

	if a == b || strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}

	// Word overlap: >50% of words in common
	wordsA := strings.Fields(a)
	wordsB := strings.Fields(b)
	setB := make(map[string]bool)
	for _, w := range wordsB {
		setB[w] = true
	}
	overlap := 0
	for _, w := range wordsA {
		if setB[w] {
			overlap++
		}
	}
	return float64(overlap)/float64(min(len(wordsA), len(wordsB))) > 0.5
}

// ParseModelSpec splits "provider:model".
func ParseModelSpec(spec string) (provider, model string, err error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid model spec %q: expected provider:model", spec)
	}
	return parts[0], parts[1], nil
}
