package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/prcritic/internal/github"
	"github.com/dshills/prcritic/internal/review"
)

var (
	flagGHEvent       string
	flagGHOwner       string
	flagGHRepo        string
	flagGHDryRun      bool
	flagGHCommentOnly bool
)

var githubCmd = &cobra.Command{
	Use:   "github [pr-number]",
	Short: "Review a GitHub pull request",
	Long: "Fetch a pull request from GitHub, review it, and post the findings as one review " +
		"with inline comments. Partial and failed reviews are posted as comments, never approvals.\n\n" +
		"Without a PR number the pull request is read from the GitHub Actions event payload " +
		"(--event, or GITHUB_EVENT_PATH). Events other than opened, synchronize, reopened, " +
		"ready_for_review and pull request comments are ignored.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			number                int
			eventOwner, eventRepo string
		)
		if len(args) == 1 {
			n, err := prNumber(args[0])
			if err != nil {
				failf(ExitUsageError, err)
				return nil
			}
			number = n
		} else {
			path := firstNonEmpty(flagGHEvent, os.Getenv("GITHUB_EVENT_PATH"))
			if path == "" {
				failf(ExitUsageError, fmt.Errorf("a PR number or --event payload is required"))
				return nil
			}
			ev, err := github.ReadEvent(path)
			switch {
			case errors.Is(err, github.ErrUnsupportedEvent):
				info("Skipping review: %v", err)
				return nil
			case err != nil:
				failf(ExitUsageError, err)
				return nil
			}
			number, eventOwner, eventRepo = ev.Number, ev.Owner, ev.Repo
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}

		owner := firstNonEmpty(flagGHOwner, eventOwner, cfg.GitHub.Owner)
		repo := firstNonEmpty(flagGHRepo, eventRepo, cfg.GitHub.Repo)
		if owner == "" || repo == "" {
			detectedOwner, detectedRepo, err := github.DetectRepo()
			if err != nil {
				failf(ExitRuntimeError, fmt.Errorf("%w\nUse --owner and --repo flags to specify manually", err))
				return nil
			}
			owner = firstNonEmpty(owner, detectedOwner)
			repo = firstNonEmpty(repo, detectedRepo)
		}

		gh, err := github.NewClientFromEnv(owner, repo,
			github.WithAPIURL(cfg.GitHub.APIURL),
			github.WithCommentOnly(cfg.GitHub.CommentOnly || flagGHCommentOnly),
		)
		if err != nil {
			failf(ExitAuthError, err)
			return nil
		}
		var client review.RepositoryClient = gh
		if flagGHDryRun {
			client = dryRunClient{gh}
		}

		ow, w, closeOut, err := openOutput(cfg.Format, flagOut)
		if err != nil {
			return err
		}
		defer closeOut()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		id := strconv.Itoa(number)
		info("Fetching PR #%s from %s/%s...", id, owner, repo)
		res, err := runPipeline(ctx, cfg, client, id, log)
		if res != nil {
			if werr := ow.Write(w, res); werr != nil {
				warn("writing output: %v", werr)
			}
			if err == nil && !flagGHDryRun {
				success("Review posted to PR #%s (%d inline comments).", id, len(res.Findings))
			}
		}
		finish(res, err, cfg.FailOn)
		return nil
	},
}

// dryRunClient fetches from GitHub but never posts.
type dryRunClient struct {
	review.RepositoryClient
}

func (dryRunClient) PublishReview(_ context.Context, id string, res *review.Result) error {
	info("Dry run: %d findings for PR #%s, not posting to GitHub.", len(res.Findings), id)
	return nil
}

// prNumber validates a pull request number argument.
func prNumber(arg string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(arg, "#"))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid PR number %q", arg)
	}
	return n, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func init() {
	addReviewFlags(githubCmd)
	githubCmd.Flags().StringVar(&flagGHEvent, "event", "", "GitHub Actions event payload (default: $GITHUB_EVENT_PATH)")
	githubCmd.Flags().StringVar(&flagGHOwner, "owner", "", "GitHub repository owner (auto-detected if omitted)")
	githubCmd.Flags().StringVar(&flagGHRepo, "repo", "", "GitHub repository name (auto-detected if omitted)")
	githubCmd.Flags().BoolVar(&flagGHDryRun, "dry-run", false, "Run review but don't post to GitHub")
	githubCmd.Flags().BoolVar(&flagGHCommentOnly, "comment-only", false, "Post every review as a plain comment")
}
