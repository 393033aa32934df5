package github

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gogithub "github.com/google/go-github/v71/github"

	"github.com/dshills/prcritic/internal/diff"
	"github.com/dshills/prcritic/internal/review"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient("test-token", "owner", "repo", WithAPIURL(server.URL), WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestFetchPullRequest(t *testing.T) {
	const diffText = "diff --git a/file.go b/file.go\n"
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("Authorization = %q, want %q", r.Header.Get("Authorization"), "Bearer test-token")
		}
		if r.URL.Path != "/repos/owner/repo/pulls/42" {
			t.Errorf("Path = %q, want %q", r.URL.Path, "/repos/owner/repo/pulls/42")
		}
		switch r.Header.Get("Accept") {
		case "application/vnd.github.v3.diff":
			w.Write([]byte(diffText))
		default:
			w.Write([]byte(`{"number":42,"title":"Fix parser","body":"Handles CRLF","base":{"sha":"aaa"},"head":{"sha":"bbb"}}`))
		}
	})

	pr, err := c.FetchPullRequest(context.Background(), "42")
	if err != nil {
		t.Fatalf("FetchPullRequest error: %v", err)
	}
	want := review.PullRequest{ID: "42", Title: "Fix parser", Body: "Handles CRLF", BaseSHA: "aaa", HeadSHA: "bbb", Diff: diffText}
	if pr != want {
		t.Errorf("pr = %+v, want %+v", pr, want)
	}
}

func TestFetchPullRequest_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, ErrNotFound},
		{"bad credentials", http.StatusUnauthorized, ErrAuth},
		{"forbidden", http.StatusForbidden, ErrAuth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"message":"nope"}`))
			})
			_, err := c.FetchPullRequest(context.Background(), "99")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFetchPullRequest_InvalidID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	for _, id := range []string{"", "abc", "-3", "0"} {
		if _, err := c.FetchPullRequest(context.Background(), id); err == nil {
			t.Errorf("FetchPullRequest(%q) expected error", id)
		}
	}
}

func TestPublishReview(t *testing.T) {
	var got gogithub.PullRequestReviewRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.Header.Get("Accept") == "application/vnd.github.v3.diff":
			w.Write([]byte("diff"))
		case r.Method == http.MethodGet:
			w.Write([]byte(`{"number":7,"head":{"sha":"head123"}}`))
		case r.Method == http.MethodPost:
			if r.URL.Path != "/repos/owner/repo/pulls/7/reviews" {
				t.Errorf("Path = %q", r.URL.Path)
			}
			body, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(body, &got); err != nil {
				t.Errorf("decoding review: %v", err)
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"id":1}`))
		}
	})

	if _, err := c.FetchPullRequest(context.Background(), "7"); err != nil {
		t.Fatalf("FetchPullRequest error: %v", err)
	}
	res := &review.Result{
		Verdict: review.VerdictRequestChanges,
		Units:   1,
		Findings: []review.Finding{
			{Path: "main.go", Line: 12, Severity: review.SeverityHigh, Category: review.CategoryBug, Title: "Nil map", Message: "write to nil map"},
		},
	}
	if err := c.PublishReview(context.Background(), "7", res); err != nil {
		t.Fatalf("PublishReview error: %v", err)
	}

	if got.GetCommitID() != "head123" {
		t.Errorf("CommitID = %q, want head123", got.GetCommitID())
	}
	if got.GetEvent() != EventRequestChanges {
		t.Errorf("Event = %q, want %q", got.GetEvent(), EventRequestChanges)
	}
	if len(got.Comments) != 1 {
		t.Fatalf("Comments = %d, want 1", len(got.Comments))
	}
	if c := got.Comments[0]; c.GetPath() != "main.go" || c.GetSide() != "RIGHT" || c.GetLine() != 12 || c.Position != nil {
		t.Errorf("comment = path %q side %q line %d", c.GetPath(), c.GetSide(), c.GetLine())
	}
}

func TestPublishReview_CommentOnly(t *testing.T) {
	var got gogithub.PullRequestReviewRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decoding review: %v", err)
		}
		w.Write([]byte(`{"id":1}`))
	}))
	t.Cleanup(server.Close)

	c, err := NewClient("t", "owner", "repo", WithAPIURL(server.URL), WithHTTPClient(server.Client()), WithCommentOnly(true))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.PublishReview(context.Background(), "5", &review.Result{Verdict: review.VerdictApprove}); err != nil {
		t.Fatalf("PublishReview error: %v", err)
	}
	if got.GetEvent() != EventComment {
		t.Errorf("Event = %q, want %q", got.GetEvent(), EventComment)
	}
}

func TestPublishReview_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"Line could not be resolved"}`))
	})
	err := c.PublishReview(context.Background(), "3", &review.Result{Verdict: review.VerdictApprove})
	if err == nil || !strings.Contains(err.Error(), "422") {
		t.Errorf("err = %v, want 422 rejection", err)
	}
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient("", "o", "r"); err == nil {
		t.Error("expected error without token")
	}
	if _, err := NewClient("t", "", "r"); err == nil {
		t.Error("expected error without owner")
	}
}

func TestParseRemoteURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{
			name:      "HTTPS",
			url:       "https://github.com/dshills/prcritic.git",
			wantOwner: "dshills",
			wantRepo:  "prcritic",
		},
		{
			name:      "HTTPS no .git",
			url:       "https://github.com/dshills/prcritic",
			wantOwner: "dshills",
			wantRepo:  "prcritic",
		},
		{
			name:      "SSH",
			url:       "git@github.com:dshills/prcritic.git",
			wantOwner: "dshills",
			wantRepo:  "prcritic",
		},
		{
			name:      "SSH no .git",
			url:       "git@github.com:dshills/prcritic",
			wantOwner: "dshills",
			wantRepo:  "prcritic",
		},
		{
			name:    "invalid",
			url:     "not-a-url",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := ParseRemoteURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if owner != tt.wantOwner {
				t.Errorf("owner = %q, want %q", owner, tt.wantOwner)
			}
			if repo != tt.wantRepo {
				t.Errorf("repo = %q, want %q", repo, tt.wantRepo)
			}
		})
	}
}

func TestBuildGitHubReview(t *testing.T) {
	findings := []review.Finding{
		{
			Path:       "main.go",
			Line:       10,
			Severity:   review.SeverityHigh,
			Category:   review.CategoryBug,
			Title:      "Null pointer",
			Message:    "Possible nil dereference",
			Suggestion: "Add nil check",
			Confidence: 0.9,
		},
		{
			Path:     "util.go",
			Line:     3,
			Severity: review.SeverityLow,
			Message:  "Use camelCase",
		},
	}

	tests := []struct {
		name  string
		res   review.Result
		event string
		body  string
	}{
		{"changes requested", review.Result{Verdict: review.VerdictRequestChanges, Findings: findings, Units: 2}, EventRequestChanges, "| High | 1 |"},
		{"approved", review.Result{Verdict: review.VerdictApprove, Units: 2, CleanUnits: 2}, EventApprove, "No issues found."},
		{"partial", review.Result{Verdict: review.VerdictApprove, Units: 2, SkippedUnits: 1, Partial: true}, EventComment, "Partial review: 1 of 2"},
		{"outage", review.Result{Verdict: review.VerdictError, Units: 2, FailedUnits: 2}, EventComment, "could not be completed"},
		{"deadline before any unit", review.Result{Verdict: review.VerdictError, Units: 2, SkippedUnits: 2, Partial: true}, EventComment, "deadline passed before any of the 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rev := BuildGitHubReview(&tt.res, "sha")
			if rev.GetEvent() != tt.event {
				t.Errorf("Event = %q, want %q", rev.GetEvent(), tt.event)
			}
			if !strings.Contains(rev.GetBody(), tt.body) {
				t.Errorf("Body missing %q:\n%s", tt.body, rev.GetBody())
			}
			if len(rev.Comments) != len(tt.res.Findings) {
				t.Errorf("Comments = %d, want %d", len(rev.Comments), len(tt.res.Findings))
			}
		})
	}

	rev := BuildGitHubReview(&review.Result{Verdict: review.VerdictRequestChanges, Findings: findings}, "")
	if !strings.Contains(rev.Comments[0].GetBody(), "**Null pointer** (high, bug, confidence: 90%)") {
		t.Errorf("inline comment = %q", rev.Comments[0].GetBody())
	}
	if !strings.Contains(rev.Comments[1].GetBody(), "**Finding** (low)") {
		t.Errorf("untitled inline comment = %q", rev.Comments[1].GetBody())
	}
	if rev.CommitID != nil {
		t.Errorf("CommitID = %q, want unset", rev.GetCommitID())
	}
}

func TestBuildGitHubReview_Warnings(t *testing.T) {
	res := &review.Result{
		Verdict:  review.VerdictApprove,
		Warnings: []diff.Warning{{Kind: diff.WarnMalformedHunk, Path: "a.go", Hunk: 1, Message: "bad counts"}},
	}
	rev := BuildGitHubReview(res, "")
	if !strings.Contains(rev.GetBody(), "Diff warnings") || !strings.Contains(rev.GetBody(), "a.go") {
		t.Errorf("warnings missing from body:\n%s", rev.GetBody())
	}
}
