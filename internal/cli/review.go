package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dshills/prcritic/internal/config"
	"github.com/dshills/prcritic/internal/diff"
	"github.com/dshills/prcritic/internal/github"
	"github.com/dshills/prcritic/internal/gitctx"
	"github.com/dshills/prcritic/internal/logging"
	"github.com/dshills/prcritic/internal/output"
	"github.com/dshills/prcritic/internal/providers"
	"github.com/dshills/prcritic/internal/review"
)

// Shared review flags
var (
	flagPaths        string
	flagExclude      string
	flagContextLines int
	flagProvider     string
	flagModel        string
	flagCompare      string
	flagFormat       string
	flagOut          string
	flagFailOn       string
	flagMaxFindings  int
	flagMaxFiles     int
	flagMinChanges   int
	flagRules        string
	flagNoRedact     bool
	flagConcurrency  int
	flagDeadlineMS   int
	flagRPM          int
	flagMode         string
	flagThreshold    string
	flagMergeBase    bool
)

// flagConfigKeys maps flag names to config.SetField keys.
var flagConfigKeys = map[string]string{
	"provider":            "provider",
	"model":               "model",
	"format":              "format",
	"fail-on":             "failOn",
	"max-findings":        "maxFindings",
	"max-files":           "maxFilesPerReview",
	"min-line-changes":    "minLineChanges",
	"context-lines":       "contextLines",
	"rules":               "rulesFile",
	"concurrency":         "maxConcurrentRequests",
	"deadline-ms":         "reviewDeadlineMs",
	"requests-per-minute": "requestsPerMinute",
	"mode":                "mode",
	"severity-threshold":  "severityThreshold",
	"log-level":           "log.level",
	"log-format":          "log.format",
}

func addReviewFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&flagPaths, "paths", "", "Include file path globs (comma-separated)")
	f.StringVar(&flagExclude, "exclude", "", "Extra exclude globs (comma-separated)")
	f.IntVar(&flagContextLines, "context-lines", 0, "Number of context lines in local diffs")
	f.StringVar(&flagProvider, "provider", "", "LLM provider ("+strings.Join(providers.Names(), ", ")+")")
	f.StringVar(&flagModel, "model", "", "Model name")
	f.StringVar(&flagCompare, "compare", "", "Compare mode: comma-separated provider:model pairs")
	f.StringVar(&flagFormat, "format", "", "Output format ("+strings.Join(output.Formats, ", ")+")")
	f.StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	f.StringVar(&flagFailOn, "fail-on", "", "Exit 1 when a finding reaches this severity (none, low, medium, high, critical)")
	f.IntVar(&flagMaxFindings, "max-findings", 0, "Maximum number of findings")
	f.IntVar(&flagMaxFiles, "max-files", 0, "Maximum number of files to review")
	f.IntVar(&flagMinChanges, "min-line-changes", 0, "Skip files with fewer changed lines")
	f.StringVar(&flagRules, "rules", "", "Rules file path")
	f.BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
	f.IntVar(&flagConcurrency, "concurrency", 0, "Maximum concurrent provider requests")
	f.IntVar(&flagDeadlineMS, "deadline-ms", 0, "Overall review deadline in milliseconds (0 disables)")
	f.IntVar(&flagRPM, "requests-per-minute", 0, "Provider request rate limit (0 disables)")
	f.StringVar(&flagMode, "mode", "", "Review focus (standard, strict, lenient, security, performance)")
	f.StringVar(&flagThreshold, "severity-threshold", "", "Drop findings below this severity")
}

// buildOverrides collects the flags the user actually set, keyed for
// config.Load.
func buildOverrides(fs *pflag.FlagSet) map[string]string {
	m := make(map[string]string)
	fs.Visit(func(f *pflag.Flag) {
		if key, ok := flagConfigKeys[f.Name]; ok {
			m[key] = f.Value.String()
		}
	})
	return m
}

func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// loadConfig merges configuration with the command's flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(buildOverrides(cmd.Flags()))
	if err != nil {
		return config.Config{}, err
	}
	if flagPaths != "" {
		cfg.Review.Include = splitComma(flagPaths)
	}
	if flagExclude != "" {
		cfg.Review.Exclude = append(cfg.Review.Exclude, splitComma(flagExclude)...)
	}
	if flagCompare != "" {
		cfg.Compare = splitComma(flagCompare)
	}
	if flagNoRedact {
		cfg.Privacy.RedactSecrets = false
		warn("secret redaction is disabled")
	}
	if cfg.FailOn != "none" && review.SeverityRank(review.Severity(strings.ToLower(cfg.FailOn))) == 0 {
		return config.Config{}, fmt.Errorf("invalid --fail-on %q", cfg.FailOn)
	}
	if err := cfg.ReviewConfig().Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	log, err := logging.New(os.Stderr, logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(log)
	return log, nil
}

// openOutput resolves the output format and destination. The returned
// close function must be called when rendering is done.
func openOutput(format, path string) (output.Writer, io.Writer, func() error, error) {
	ow, err := output.GetWriter(format)
	if err != nil {
		return nil, nil, nil, err
	}
	if sw, ok := ow.(*output.SARIFWriter); ok {
		sw.Version = version
	}
	if path == "" {
		return ow, os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return ow, f, f.Close, nil
}

// runPipeline reviews id through client with a single provider, or with
// several when compare mode is configured.
func runPipeline(ctx context.Context, cfg config.Config, client review.RepositoryClient, id string, log *slog.Logger) (*review.Result, error) {
	rules, err := review.LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	opts := []review.Option{
		review.WithRules(rules),
		review.WithRunID(uuid.NewString()),
		review.WithLogger(log),
		review.WithStateHook(func(s review.State) {
			log.Debug("review state", "target", id, "state", s.String())
		}),
	}

	rc := cfg.ReviewConfig()
	if len(cfg.Compare) >= 2 {
		return runCompare(ctx, cfg.Compare, client, id, rc, opts)
	}

	provider, err := providers.Open(cfg.Provider, cfg.Model)
	if err != nil {
		return nil, err
	}
	info("Reviewing %s with %s...", id, provider.Name())
	return review.Run(ctx, id, client, provider, rc, opts...)
}

func runCompare(ctx context.Context, specs []string, client review.RepositoryClient, id string, rc review.Config, opts []review.Option) (*review.Result, error) {
	contenders := make([]review.Contender, 0, len(specs))
	for _, spec := range specs {
		name, model, err := review.ParseModelSpec(spec)
		if err != nil {
			return nil, err
		}
		r, err := providers.Open(name, model)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", spec, err)
		}
		contenders = append(contenders, review.Contender{Label: spec, Reviewer: r})
	}

	pr, err := client.FetchPullRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching pull request %s: %w", id, err)
	}
	files, warnings := diff.Parse(pr.Diff, rc.ParseOptions())
	for _, w := range warnings {
		warn("%s", w.String())
	}

	info("Comparing %d models on %s...", len(contenders), id)
	opts = append(opts, review.WithPullRequest(pr.Title, pr.Body))
	cmp, err := review.Compare(ctx, files, contenders, rc, opts...)
	if err != nil {
		return nil, err
	}
	for _, e := range cmp.Errors {
		if e != nil {
			warn("%v", e)
		}
	}

	info("Compare mode: %d models, %d consensus findings", len(contenders), len(cmp.Consensus))
	for _, label := range cmp.Labels {
		if n := len(cmp.Unique[label]); n > 0 {
			info("  %s: %d unique findings", label, n)
		}
	}

	res := cmp.Combined()
	res.Warnings = warnings
	if err := client.PublishReview(ctx, id, res); err != nil {
		return res, fmt.Errorf("publishing review for %s: %w", id, err)
	}
	return res, nil
}

// exitFor maps a review outcome to the process exit code.
func exitFor(res *review.Result, err error, failOn string) int {
	if err != nil {
		if providers.IsAuthError(err) || errors.Is(err, github.ErrAuth) {
			return ExitAuthError
		}
		return ExitRuntimeError
	}
	if res == nil || failOn == "" || failOn == "none" {
		return ExitSuccess
	}
	threshold := review.Severity(strings.ToLower(failOn))
	for _, f := range res.Findings {
		if review.MeetsThreshold(f.Severity, threshold) {
			return ExitFindings
		}
	}
	return ExitSuccess
}

// finish reports the outcome on stderr and sets the exit code.
func finish(res *review.Result, err error, failOn string) {
	if res != nil && res.Partial {
		warn("partial review: %d of %d units were not reviewed", res.FailedUnits+res.SkippedUnits, res.Units)
	}
	exitCode = exitFor(res, err, failOn)
	switch {
	case err != nil:
		fail("%v", err)
	case exitCode == ExitFindings:
		fail("findings at or above %s severity", failOn)
	default:
		success("Review complete: %s, %d findings.", res.Verdict, len(res.Findings))
	}
}

// runLocal reviews a local git target and renders the result.
func runLocal(cmd *cobra.Command, id string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	ow, w, closeOut, err := openOutput(cfg.Format, flagOut)
	if err != nil {
		return err
	}
	defer closeOut()

	client := gitctx.NewClient(
		gitctx.WithContextLines(cfg.ContextLines),
		gitctx.WithMergeBase(flagMergeBase),
		gitctx.WithOutput(w, ow),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	res, err := runPipeline(ctx, cfg, client, id, log)
	finish(res, err, cfg.FailOn)
	return nil
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review local git changes",
	Long:  "Review local git changes as if they were a pull request. Use subcommands to pick what to review.",
}

var reviewUnstagedCmd = &cobra.Command{
	Use:   "unstaged",
	Short: "Review unstaged changes (working tree vs index)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLocal(cmd, gitctx.TargetUnstaged)
	},
}

var reviewStagedCmd = &cobra.Command{
	Use:   "staged",
	Short: "Review staged changes (index vs HEAD)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLocal(cmd, gitctx.TargetStaged)
	},
}

var reviewCommitCmd = &cobra.Command{
	Use:   "commit <rev>",
	Short: "Review a single commit against its first parent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.Contains(args[0], "..") {
			return fmt.Errorf("%q is a range; use review range", args[0])
		}
		return runLocal(cmd, args[0])
	},
}

var reviewRangeCmd = &cobra.Command{
	Use:   "range <base..head>",
	Short: "Review a revision range (e.g., origin/main..HEAD)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !strings.Contains(args[0], "..") {
			return fmt.Errorf("%q is not a range (expected base..head)", args[0])
		}
		return runLocal(cmd, args[0])
	},
}

var reviewFileCmd = &cobra.Command{
	Use:   "file <path>",
	Short: "Review a whole file as if it were newly added",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLocal(cmd, "file:"+args[0])
	},
}

func init() {
	reviewCmd.AddCommand(reviewUnstagedCmd)
	reviewCmd.AddCommand(reviewStagedCmd)
	reviewCmd.AddCommand(reviewCommitCmd)
	reviewCmd.AddCommand(reviewRangeCmd)
	reviewCmd.AddCommand(reviewFileCmd)

	for _, cmd := range []*cobra.Command{
		reviewUnstagedCmd,
		reviewStagedCmd,
		reviewCommitCmd,
		reviewRangeCmd,
		reviewFileCmd,
	} {
		addReviewFlags(cmd)
	}

	reviewRangeCmd.Flags().BoolVar(&flagMergeBase, "merge-base", true, "Diff from the merge base, like a pull request")
}
