package gitctx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dshills/prcritic/internal/output"
	"github.com/dshills/prcritic/internal/review"
)

// emptyTree is git's well-known empty tree object, the base of a root commit.
const emptyTree = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// Review targets understood by FetchPullRequest besides ranges and commits.
const (
	TargetUnstaged = "unstaged"
	TargetStaged   = "staged"
	filePrefix     = "file:"
)

// ErrNotRepository is returned when the client's directory is not inside a
// git work tree.
var ErrNotRepository = errors.New("not a git repository")

// Client is a review.RepositoryClient over a local checkout. A "pull
// request" is a revision range (base..head), a single commit, the staged or
// unstaged changes, or a file reviewed as entirely new ("file:path").
// Publishing renders the result to a writer instead of posting it.
type Client struct {
	dir          string
	contextLines int
	mergeBase    bool
	out          io.Writer
	writer       output.Writer
}

var _ review.RepositoryClient = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithDir runs git in dir instead of the working directory.
func WithDir(dir string) Option {
	return func(c *Client) { c.dir = dir }
}

// WithContextLines sets the unified context size passed to git diff. Zero
// keeps git's default.
func WithContextLines(n int) Option {
	return func(c *Client) { c.contextLines = n }
}

// WithMergeBase diffs "a..b" ranges from their merge base, like a pull
// request would.
func WithMergeBase(on bool) Option {
	return func(c *Client) { c.mergeBase = on }
}

// WithOutput sets where and how PublishReview renders results.
func WithOutput(w io.Writer, ow output.Writer) Option {
	return func(c *Client) {
		c.out = w
		c.writer = ow
	}
}

// NewClient creates a client. Results are published as text on stdout
// unless WithOutput says otherwise.
func NewClient(opts ...Option) *Client {
	c := &Client{
		mergeBase: true,
		out:       os.Stdout,
		writer:    &output.TextWriter{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RepoMeta holds repository metadata.
type RepoMeta struct {
	Root   string
	Head   string
	Branch string
}

// RepoMeta describes the repository the client runs in.
func (c *Client) RepoMeta(ctx context.Context) (RepoMeta, error) {
	root, err := c.git(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return RepoMeta{}, fmt.Errorf("%w: %v", ErrNotRepository, err)
	}
	head, err := c.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		head = "" // new repo with no commits
	}
	branch, err := c.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		branch = ""
	}
	return RepoMeta{
		Root:   strings.TrimSpace(root),
		Head:   strings.TrimSpace(head),
		Branch: strings.TrimSpace(branch),
	}, nil
}

// FetchPullRequest resolves id to a diff. Accepted forms are "unstaged"
// (or empty), "staged", "base..head", "base...head", "file:path" and any
// single revision, which is reviewed against its first parent.
func (c *Client) FetchPullRequest(ctx context.Context, id string) (review.PullRequest, error) {
	id = strings.TrimSpace(id)
	switch {
	case id == "" || id == TargetUnstaged:
		return c.worktree(ctx, TargetUnstaged)
	case id == TargetStaged:
		return c.worktree(ctx, TargetStaged)
	case strings.HasPrefix(id, filePrefix):
		return c.file(ctx, strings.TrimPrefix(id, filePrefix))
	case strings.Contains(id, ".."):
		return c.revRange(ctx, id)
	default:
		return c.commit(ctx, id)
	}
}

// PublishReview renders res to the client's writer.
func (c *Client) PublishReview(_ context.Context, _ string, res *review.Result) error {
	if err := c.writer.Write(c.out, res); err != nil {
		return fmt.Errorf("rendering review: %w", err)
	}
	return nil
}

func (c *Client) worktree(ctx context.Context, target string) (review.PullRequest, error) {
	args := []string{"diff"}
	title := "Working tree changes"
	if target == TargetStaged {
		args = append(args, "--cached")
		title = "Staged changes"
	}
	d, err := c.git(ctx, append(args, c.diffArgs()...)...)
	if err != nil {
		return review.PullRequest{}, fmt.Errorf("git diff (%s): %w", target, err)
	}
	head, err := c.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		head = ""
	}
	return review.PullRequest{
		ID:      target,
		Title:   title,
		BaseSHA: strings.TrimSpace(head),
		Diff:    d,
	}, nil
}

func (c *Client) revRange(ctx context.Context, revRange string) (review.PullRequest, error) {
	diffRange := revRange
	if c.mergeBase && !strings.Contains(revRange, "...") {
		diffRange = strings.Replace(revRange, "..", "...", 1)
	}
	d, err := c.git(ctx, append([]string{"diff", diffRange}, c.diffArgs()...)...)
	if err != nil {
		return review.PullRequest{}, fmt.Errorf("git diff %s: %w", revRange, err)
	}

	left, right, _ := strings.Cut(strings.Replace(revRange, "...", "..", 1), "..")
	if right == "" {
		right = "HEAD"
	}
	if left == "" {
		left = "HEAD"
	}
	head, err := c.revParse(ctx, right)
	if err != nil {
		return review.PullRequest{}, err
	}
	base, err := c.revParse(ctx, left)
	if err != nil {
		return review.PullRequest{}, err
	}
	if c.mergeBase || strings.Contains(revRange, "...") {
		if mb, err := c.git(ctx, "merge-base", base, head); err == nil {
			base = strings.TrimSpace(mb)
		}
	}

	commits, err := c.ListCommits(ctx, revRange)
	if err != nil {
		return review.PullRequest{}, err
	}
	title, body := describeCommits(commits)
	if title == "" {
		title = revRange
	}
	return review.PullRequest{
		ID:      revRange,
		Title:   title,
		Body:    body,
		BaseSHA: base,
		HeadSHA: head,
		Diff:    d,
	}, nil
}

func (c *Client) commit(ctx context.Context, rev string) (review.PullRequest, error) {
	sha, err := c.revParse(ctx, rev)
	if err != nil {
		return review.PullRequest{}, err
	}
	parent, err := c.revParse(ctx, sha+"^")
	if err != nil {
		parent = emptyTree // root commit
	}
	d, err := c.git(ctx, append([]string{"diff", parent, sha}, c.diffArgs()...)...)
	if err != nil {
		return review.PullRequest{}, fmt.Errorf("git diff %s %s: %w", parent, sha, err)
	}
	msg, err := c.git(ctx, "log", "-1", "--format=%s%n%n%b", sha)
	if err != nil {
		return review.PullRequest{}, fmt.Errorf("git log %s: %w", sha, err)
	}
	title, body, _ := strings.Cut(strings.TrimSpace(msg), "\n")
	return review.PullRequest{
		ID:      rev,
		Title:   title,
		Body:    strings.TrimSpace(body),
		BaseSHA: parent,
		HeadSHA: sha,
		Diff:    d,
	}, nil
}

// file reviews a working tree file as if it were newly added.
func (c *Client) file(ctx context.Context, path string) (review.PullRequest, error) {
	if path == "" {
		return review.PullRequest{}, fmt.Errorf("file target needs a path")
	}
	full := path
	if c.dir != "" && !filepath.IsAbs(path) {
		full = filepath.Join(c.dir, path)
	}
	if err := ctx.Err(); err != nil {
		return review.PullRequest{}, err
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return review.PullRequest{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return review.PullRequest{
		ID:    filePrefix + path,
		Title: "Review of " + filepath.ToSlash(path),
		Diff:  Snippet(string(content), filepath.ToSlash(path)),
	}, nil
}

// Snippet renders content as the diff of a newly added file at path.
func Snippet(content, path string) string {
	content = strings.TrimSuffix(content, "\n")
	if content == "" {
		return fmt.Sprintf("diff --git a/%s b/%s\nnew file mode 100644\n", path, path)
	}
	lines := strings.Split(content, "\n")
	var b strings.Builder
	fmt.Fprintf(&b, "diff --git a/%s b/%s\n", path, path)
	fmt.Fprintf(&b, "new file mode 100644\n")
	fmt.Fprintf(&b, "--- /dev/null\n")
	fmt.Fprintf(&b, "+++ b/%s\n", path)
	fmt.Fprintf(&b, "@@ -0,0 +1,%d @@\n", len(lines))
	for _, line := range lines {
		fmt.Fprintf(&b, "+%s\n", line)
	}
	return b.String()
}

func (c *Client) diffArgs() []string {
	args := []string{"--no-color", "--no-ext-diff"}
	if c.contextLines > 0 {
		args = append(args, fmt.Sprintf("-U%d", c.contextLines))
	}
	return args
}

// CommitInfo holds a commit SHA and its subject line.
type CommitInfo struct {
	SHA     string
	Subject string
}

// ListCommits returns the commits in revRange, oldest first.
func (c *Client) ListCommits(ctx context.Context, revRange string) ([]CommitInfo, error) {
	listRange := revRange
	if c.mergeBase && strings.Contains(revRange, "..") && !strings.Contains(revRange, "...") {
		listRange = strings.Replace(revRange, "..", "...", 1)
	}

	// Output format: "commit <sha>\n<subject>\n" per commit.
	out, err := c.git(ctx, "rev-list", "--reverse", "--right-only", "--format=%s", listRange)
	if err != nil {
		return nil, fmt.Errorf("git rev-list %s: %w", revRange, err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}

	lines := strings.Split(out, "\n")
	var commits []CommitInfo
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "commit ") {
			continue
		}
		sha := strings.TrimPrefix(line, "commit ")
		var subject string
		if i+1 < len(lines) && !strings.HasPrefix(lines[i+1], "commit ") {
			subject = strings.TrimSpace(lines[i+1])
			i++
		}
		commits = append(commits, CommitInfo{SHA: sha, Subject: subject})
	}
	return commits, nil
}

// describeCommits derives a pull request title and description from the
// commits of a range: the newest subject, and a list of all subjects.
func describeCommits(commits []CommitInfo) (title, body string) {
	switch len(commits) {
	case 0:
		return "", ""
	case 1:
		return commits[0].Subject, ""
	}
	var b strings.Builder
	b.WriteString("Commits:\n")
	for _, ci := range commits {
		short := ci.SHA
		if len(short) > 8 {
			short = short[:8]
		}
		fmt.Fprintf(&b, "- %s %s\n", short, ci.Subject)
	}
	return commits[len(commits)-1].Subject, strings.TrimSpace(b.String())
}

func (c *Client) revParse(ctx context.Context, rev string) (string, error) {
	out, err := c.git(ctx, "rev-parse", "--verify", "--quiet", rev+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("unknown revision %q: %w", rev, err)
	}
	return strings.TrimSpace(out), nil
}

func (c *Client) git(ctx context.Context, args ...string) (string, error) {
	if c.dir != "" {
		args = append([]string{"-C", c.dir}, args...)
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(out), fmt.Errorf("%s: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}
