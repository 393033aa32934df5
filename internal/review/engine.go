package review

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/prcritic/internal/diff"
	"github.com/dshills/prcritic/internal/providers"
	"github.com/dshills/prcritic/internal/redact"
)

// ErrProviderOutage is returned, alongside a Result with VerdictError, when
// every unit that reached a terminal state failed.
var ErrProviderOutage = errors.New("review failed: no unit could be reviewed")

// ErrNothingReviewed is returned, alongside a Result with VerdictError, when
// the review deadline passed before any unit completed.
var ErrNothingReviewed = errors.New("review deadline reached before any unit was reviewed")

// PullRequest is what a RepositoryClient fetches.
type PullRequest struct {
	ID      string
	Title   string
	Body    string
	BaseSHA string
	HeadSHA string
	Diff    string
}

// RepositoryClient is the repository host a review is fetched from and
// published to.
type RepositoryClient interface {
	FetchPullRequest(ctx context.Context, id string) (PullRequest, error)
	PublishReview(ctx context.Context, id string, result *Result) error
}

// Orchestrator reviews parsed diffs with one provider. It holds no per-run
// state, so one Orchestrator may run several reviews.
type Orchestrator struct {
	provider providers.Reviewer
	cfg      Config
	rules    *Rules
	pr       PullRequest
	runID    string
	log      *slog.Logger
	onState  func(State)
	sleep    func(context.Context, time.Duration) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStateHook registers fn to observe state transitions. fn is called
// synchronously from Review.
func WithStateHook(fn func(State)) Option {
	return func(o *Orchestrator) { o.onState = fn }
}

// WithRules applies a rules pack to prompts and to finding severities.
func WithRules(rules *Rules) Option {
	return func(o *Orchestrator) { o.rules = rules }
}

// WithPullRequest gives the model the pull request's title and description.
func WithPullRequest(title, body string) Option {
	return func(o *Orchestrator) { o.pr.Title, o.pr.Body = title, body }
}

// WithRunID sets the correlation id reported in logs and on the Result.
func WithRunID(id string) Option {
	return func(o *Orchestrator) { o.runID = id }
}

// WithLogger sets the logger. The run id and provider name are added to it.
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

func withSleep(fn func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

// New creates an Orchestrator. cfg is copied.
func New(provider providers.Reviewer, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider: provider,
		cfg:      cfg,
		log:      slog.Default(),
		onState:  func(State) {},
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Review runs Pending → Chunking → Dispatching → Aggregating → Completed
// over files. A non-nil Result is returned whenever the configuration is
// valid, including on total provider outage, where the error is
// ErrProviderOutage. Reaching the review deadline marks the Result Partial;
// it is only an error (ErrNothingReviewed) when no unit completed at all.
func (o *Orchestrator) Review(ctx context.Context, files []*diff.File) (*Result, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid review config: %w", err)
	}
	start := time.Now()

	runID := o.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := o.log.With("run", runID, "provider", o.provider.Name())

	if d := o.cfg.deadline(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	o.onState(StatePending)

	o.onState(StateChunking)
	files, withheld := o.withhold(files, log)
	units := BuildUnits(files, o.cfg.MaxPromptSize)
	log.Info("review started", "files", len(files), "units", len(units))

	o.onState(StateDispatching)
	c := newCollector(len(units))
	run := *o
	run.log = log
	run.dispatch(ctx, units, c)
	outcomes, stats := c.seal()

	o.onState(StateAggregating)
	res := run.aggregate(units, outcomes)
	res.RunID = runID
	res.WithheldFiles = withheld
	res.Stats = stats
	res.Stats.Provider = o.provider.Name()
	res.Stats.Elapsed = time.Since(start)

	o.onState(StateCompleted)
	log.Info("review completed",
		"verdict", res.Verdict,
		"findings", len(res.Findings),
		"failed_units", res.FailedUnits,
		"skipped_units", res.SkippedUnits,
		"dropped", res.DroppedFindings,
		"calls", res.Stats.Calls,
		"elapsed", res.Stats.Elapsed,
	)

	if res.Verdict == VerdictError {
		if res.FailedUnits == 0 {
			return res, ErrNothingReviewed
		}
		return res, ErrProviderOutage
	}
	return res, nil
}

// withhold drops files matching the redaction path policy.
func (o *Orchestrator) withhold(files []*diff.File, log *slog.Logger) ([]*diff.File, int) {
	if !o.cfg.RedactSecrets || len(o.cfg.RedactPaths) == 0 {
		return files, 0
	}
	kept := make([]*diff.File, 0, len(files))
	for _, f := range files {
		if redact.ShouldRedactPath(f.Path(), o.cfg.RedactPaths) {
			log.Info("file withheld by redaction policy", "path", f.Path())
			continue
		}
		kept = append(kept, f)
	}
	return kept, len(files) - len(kept)
}

// aggregate validates candidates, orders and deduplicates them, and derives
// the verdict.
func (o *Orchestrator) aggregate(units []Unit, outcomes []outcome) *Result {
	res := &Result{Units: len(units), Findings: []Finding{}}

	var kept []Finding
	for i, out := range outcomes {
		switch {
		case !out.done:
			res.SkippedUnits++
			continue
		case out.failed:
			res.FailedUnits++
			continue
		case out.clean:
			res.CleanUnits++
		}
		for _, cand := range out.findings {
			f, reason := o.validate(units[i], cand)
			if reason != "" {
				res.DroppedFindings++
				o.log.Debug("dropped finding", "reason", reason, "unit", i, "path", cand.Path, "line", cand.Line)
				continue
			}
			kept = append(kept, f)
		}
	}
	res.Partial = res.SkippedUnits > 0

	sortFindings(kept)
	kept = dedupFindings(kept)
	if o.cfg.MaxFindings > 0 && len(kept) > o.cfg.MaxFindings {
		res.DroppedFindings += len(kept) - o.cfg.MaxFindings
		kept = mostSevere(kept, o.cfg.MaxFindings)
	}
	for i := range kept {
		kept[i].ID = findingID(kept[i])
	}
	if kept != nil {
		res.Findings = kept
	}

	// A review in which no unit completed never approves.
	completed := res.Units - res.FailedUnits - res.SkippedUnits
	switch {
	case res.Units > 0 && completed == 0:
		res.Verdict = VerdictError
	case len(res.Findings) > 0:
		res.Verdict = VerdictRequestChanges
	default:
		res.Verdict = VerdictApprove
	}
	return res
}

// validate anchors a candidate to its unit's file. A non-empty reason means
// the candidate is dropped.
func (o *Orchestrator) validate(u Unit, f Finding) (Finding, string) {
	if p := normalizePath(f.Path); p != "" && !pathMatches(u.Path(), p) {
		return f, fmt.Sprintf("path %q is not %q", f.Path, u.Path())
	}
	f.Path = u.Path()
	if !u.File.Addressable(f.Line) {
		return f, fmt.Sprintf("line %d is not an added or context line", f.Line)
	}
	if strings.TrimSpace(f.Message) == "" {
		return f, "empty message"
	}
	o.rules.applySeverityOverride(&f)
	if !MeetsThreshold(f.Severity, o.cfg.SeverityThreshold) {
		return f, fmt.Sprintf("severity %s below threshold %s", f.Severity, o.cfg.SeverityThreshold)
	}
	return f, ""
}

func normalizePath(p string) string {
	p = strings.TrimSpace(strings.Trim(p, "`"))
	p = strings.TrimPrefix(p, "./")
	for _, prefix := range []string{"a/", "b/"} {
		p = strings.TrimPrefix(p, prefix)
	}
	return p
}

// pathMatches accepts an exact match or a cited path that is a trailing
// segment of the file's path.
func pathMatches(filePath, cited string) bool {
	return cited == filePath || strings.HasSuffix(filePath, "/"+cited)
}

func sortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.unit != b.unit {
			return a.unit < b.unit
		}
		return a.ordinal < b.ordinal
	})
}

// dedupFindings keeps the first finding per (path, line). findings must be
// sorted.
func dedupFindings(findings []Finding) []Finding {
	out := findings[:0]
	for i, f := range findings {
		if i > 0 && f.Path == findings[i-1].Path && f.Line == findings[i-1].Line {
			continue
		}
		out = append(out, f)
	}
	return out
}

// mostSevere keeps the n most severe findings, ties going to the earlier
// finding, and returns them in their original order.
func mostSevere(findings []Finding, n int) []Finding {
	idx := make([]int, len(findings))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return SeverityRank(findings[idx[a]].Severity) > SeverityRank(findings[idx[b]].Severity)
	})
	idx = idx[:n]
	sort.Ints(idx)

	out := make([]Finding, 0, n)
	for _, i := range idx {
		out = append(out, findings[i])
	}
	return out
}

func findingID(f Finding) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", f.Path, f.Line, f.Title)))
	return fmt.Sprintf("%x", h[:8])
}

// Run fetches pull request id, reviews it and publishes the result. A
// review is published even when every unit failed, so the host always sees
// an outcome. Review and publish errors are joined.
func Run(ctx context.Context, id string, client RepositoryClient, provider providers.Reviewer, cfg Config, opts ...Option) (*Result, error) {
	pr, err := client.FetchPullRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching pull request %s: %w", id, err)
	}

	files, warnings := diff.Parse(pr.Diff, cfg.ParseOptions())
	for _, w := range warnings {
		slog.Warn("diff warning", "pr", id, "warning", w.String())
	}

	opts = append([]Option{WithPullRequest(pr.Title, pr.Body)}, opts...)
	res, reviewErr := New(provider, cfg, opts...).Review(ctx, files)
	if res == nil {
		return nil, reviewErr
	}
	res.Warnings = warnings

	if err := client.PublishReview(ctx, id, res); err != nil {
		return res, errors.Join(reviewErr, fmt.Errorf("publishing review for %s: %w", id, err))
	}
	return res, reviewErr
}
