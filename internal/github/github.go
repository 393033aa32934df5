package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	gogithub "github.com/google/go-github/v71/github"

	"github.com/dshills/prcritic/internal/review"
)

const defaultAPIURL = "https://api.github.com"

// Errors callers may want to tell apart.
var (
	ErrNotFound = errors.New("not found")
	ErrAuth     = errors.New("authentication failed")
)

// Client is a review.RepositoryClient backed by the GitHub REST API for one
// repository.
type Client struct {
	gh      *gogithub.Client
	apiURL  string
	owner   string
	repo    string
	httpCli *http.Client

	// commentOnly posts every review as COMMENT. GitHub refuses APPROVE and
	// REQUEST_CHANGES on the token owner's own pull requests.
	commentOnly bool

	mu    sync.Mutex
	heads map[string]string // PR id -> head SHA seen at fetch
}

var _ review.RepositoryClient = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithAPIURL points the client at a GitHub Enterprise API root.
func WithAPIURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.apiURL = strings.TrimRight(url, "/")
		}
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpCli = h }
}

// WithCommentOnly makes every published review a plain COMMENT.
func WithCommentOnly(on bool) Option {
	return func(c *Client) { c.commentOnly = on }
}

// NewClient creates a client for owner/repo.
func NewClient(token, owner, repo string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("GITHUB_TOKEN environment variable is not set")
	}
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("repository owner and name are required")
	}
	c := &Client{
		apiURL:  defaultAPIURL,
		owner:   owner,
		repo:    repo,
		httpCli: &http.Client{Timeout: 60 * time.Second},
		heads:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}

	base, err := url.Parse(c.apiURL + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API URL %q: %w", c.apiURL, err)
	}
	c.gh = gogithub.NewClient(c.httpCli).WithAuthToken(token)
	c.gh.BaseURL = base
	return c, nil
}

// NewClientFromEnv creates a client from GITHUB_TOKEN and GITHUB_API_URL.
func NewClientFromEnv(owner, repo string, opts ...Option) (*Client, error) {
	opts = append([]Option{WithAPIURL(os.Getenv("GITHUB_API_URL"))}, opts...)
	return NewClient(os.Getenv("GITHUB_TOKEN"), owner, repo, opts...)
}

// FetchPullRequest fetches pull request metadata and its unified diff. id is
// the pull request number.
func (c *Client) FetchPullRequest(ctx context.Context, id string) (review.PullRequest, error) {
	number, err := parseNumber(id)
	if err != nil {
		return review.PullRequest{}, err
	}

	pr, _, err := c.gh.PullRequests.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return review.PullRequest{}, c.wrap(err, number)
	}
	diff, _, err := c.gh.PullRequests.GetRaw(ctx, c.owner, c.repo, number, gogithub.RawOptions{Type: gogithub.Diff})
	if err != nil {
		return review.PullRequest{}, c.wrap(err, number)
	}

	head := pr.GetHead().GetSHA()
	c.mu.Lock()
	c.heads[id] = head
	c.mu.Unlock()

	return review.PullRequest{
		ID:      id,
		Title:   pr.GetTitle(),
		Body:    pr.GetBody(),
		BaseSHA: pr.GetBase().GetSHA(),
		HeadSHA: head,
		Diff:    diff,
	}, nil
}

// PublishReview posts res as a pull request review with one inline comment
// per finding.
func (c *Client) PublishReview(ctx context.Context, id string, res *review.Result) error {
	number, err := parseNumber(id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	head := c.heads[id]
	c.mu.Unlock()

	req := BuildGitHubReview(res, head)
	if c.commentOnly {
		req.Event = gogithub.Ptr(EventComment)
	}
	if _, _, err := c.gh.PullRequests.CreateReview(ctx, c.owner, c.repo, number, req); err != nil {
		return c.wrap(err, number)
	}
	return nil
}

func (c *Client) wrap(err error, number int) error {
	var rl *gogithub.RateLimitError
	if errors.As(err, &rl) {
		return fmt.Errorf("GitHub rate limit exceeded, resets at %s: %w", rl.Rate.Reset.Format(time.RFC3339), err)
	}
	var er *gogithub.ErrorResponse
	if !errors.As(err, &er) || er.Response == nil {
		return err
	}
	switch er.Response.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("PR #%d in %s/%s: %w", number, c.owner, c.repo, ErrNotFound)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuth, er.Message)
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("GitHub rejected review (422): %s", er.Message)
	}
	return err
}

func parseNumber(id string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(id), "#"))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid pull request number %q", id)
	}
	return n, nil
}

// Review events.
const (
	EventApprove        = "APPROVE"
	EventRequestChanges = "REQUEST_CHANGES"
	EventComment        = "COMMENT"
)

// BuildGitHubReview converts a review result into a GitHub review request.
// Partial and failed reviews are posted as COMMENT so they never approve a
// pull request that was not fully reviewed.
func BuildGitHubReview(res *review.Result, commitID string) *gogithub.PullRequestReviewRequest {
	comments := make([]*gogithub.DraftReviewComment, 0, len(res.Findings))
	for _, f := range res.Findings {
		comments = append(comments, &gogithub.DraftReviewComment{
			Path: gogithub.Ptr(f.Path),
			Line: gogithub.Ptr(f.Line),
			Side: gogithub.Ptr("RIGHT"),
			Body: gogithub.Ptr(formatInlineComment(f)),
		})
	}

	event := EventComment
	switch {
	case res.Verdict == review.VerdictError || res.Partial:
	case res.Verdict == review.VerdictRequestChanges:
		event = EventRequestChanges
	case res.Verdict == review.VerdictApprove:
		event = EventApprove
	}

	req := &gogithub.PullRequestReviewRequest{
		Body:     gogithub.Ptr(summaryBody(res)),
		Event:    gogithub.Ptr(event),
		Comments: comments,
	}
	if commitID != "" {
		req.CommitID = gogithub.Ptr(commitID)
	}
	return req
}

func summaryBody(res *review.Result) string {
	var sb strings.Builder
	sb.WriteString("## prcritic review\n\n")

	switch res.Verdict {
	case review.VerdictError:
		fmt.Fprintf(&sb, "**Review could not be completed:** %s.\n\n", res.FailureReason())
		return sb.String()
	case review.VerdictApprove:
		sb.WriteString("No issues found.\n\n")
	default:
		s := review.ComputeSummary(res.Findings)
		sb.WriteString("| Severity | Count |\n|----------|-------|\n")
		fmt.Fprintf(&sb, "| Critical | %d |\n", s.Counts.Critical)
		fmt.Fprintf(&sb, "| High | %d |\n", s.Counts.High)
		fmt.Fprintf(&sb, "| Medium | %d |\n", s.Counts.Medium)
		fmt.Fprintf(&sb, "| Low | %d |\n\n", s.Counts.Low)
	}

	if res.Partial || res.FailedUnits > 0 {
		fmt.Fprintf(&sb, "> Partial review: %d of %d units were not reviewed (%d failed, %d timed out).\n\n",
			res.FailedUnits+res.SkippedUnits, res.Units, res.FailedUnits, res.SkippedUnits)
	}
	if len(res.Warnings) > 0 {
		sb.WriteString("<details><summary>Diff warnings</summary>\n\n")
		for _, w := range res.Warnings {
			fmt.Fprintf(&sb, "- %s\n", w.String())
		}
		sb.WriteString("\n</details>\n")
	}
	return sb.String()
}

func formatInlineComment(f review.Finding) string {
	var sb strings.Builder
	title := f.Title
	if title == "" {
		title = "Finding"
	}
	fmt.Fprintf(&sb, "**%s** (%s", title, f.Severity)
	if f.Category != "" {
		fmt.Fprintf(&sb, ", %s", f.Category)
	}
	if f.Confidence > 0 {
		fmt.Fprintf(&sb, ", confidence: %.0f%%", f.Confidence*100)
	}
	sb.WriteString(")\n\n")
	sb.WriteString(f.Message)
	if f.Suggestion != "" {
		fmt.Fprintf(&sb, "\n\n**Suggestion:**\n```\n%s\n```", f.Suggestion)
	}
	return sb.String()
}

var (
	httpsRemoteRe = regexp.MustCompile(`https?://[^/]+/([^/]+)/([^/.\s]+)`)
	sshRemoteRe   = regexp.MustCompile(`[^@]+@[^:]+:([^/]+)/([^/.\s]+)`)
)

// DetectRepo parses owner/repo from the git remote origin URL.
func DetectRepo() (owner, repo string, err error) {
	out, err := exec.Command("git", "remote", "get-url", "origin").Output()
	if err != nil {
		return "", "", fmt.Errorf("cannot detect repo: git remote get-url origin failed: %w", err)
	}
	url := strings.TrimSpace(string(out))
	return ParseRemoteURL(url)
}

// ParseRemoteURL extracts owner/repo from a git remote URL.
func ParseRemoteURL(url string) (owner, repo string, err error) {
	// Strip .git suffix
	url = strings.TrimSuffix(url, ".git")

	if m := httpsRemoteRe.FindStringSubmatch(url); len(m) == 3 {
		return m[1], m[2], nil
	}
	if m := sshRemoteRe.FindStringSubmatch(url); len(m) == 3 {
		return m[1], m[2], nil
	}
	return "", "", fmt.Errorf("cannot parse owner/repo from remote URL: %s", url)
}
