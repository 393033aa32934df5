package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	gogithub "github.com/google/go-github/v71/github"
)

// ErrUnsupportedEvent is returned for event payloads that should not trigger
// a review, such as a closed pull request or a comment on a plain issue.
var ErrUnsupportedEvent = errors.New("unsupported event")

// reviewActions are the pull_request actions that trigger a review.
var reviewActions = map[string]bool{
	"opened":           true,
	"synchronize":      true,
	"reopened":         true,
	"ready_for_review": true,
}

// Event identifies the pull request named by a GitHub Actions event payload.
type Event struct {
	Owner  string
	Repo   string
	Number int
	Action string
}

// ReadEvent reads the event payload at path, usually GITHUB_EVENT_PATH.
// pull_request events and comments on pull requests are accepted;
// anything else returns ErrUnsupportedEvent.
func ReadEvent(path string) (Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Event{}, fmt.Errorf("reading event payload: %w", err)
	}
	return ParseEvent(data)
}

// ParseEvent decodes a GitHub Actions event payload.
func ParseEvent(data []byte) (Event, error) {
	var comment gogithub.IssueCommentEvent
	if err := json.Unmarshal(data, &comment); err != nil {
		return Event{}, fmt.Errorf("parsing event payload: %w", err)
	}
	if comment.Issue != nil {
		if !comment.Issue.IsPullRequest() {
			return Event{}, fmt.Errorf("%w: comment on issue #%d, not a pull request", ErrUnsupportedEvent, comment.Issue.GetNumber())
		}
		return newEvent(comment.GetRepo(), comment.Issue.GetNumber(), comment.GetAction())
	}

	var pr gogithub.PullRequestEvent
	if err := json.Unmarshal(data, &pr); err != nil {
		return Event{}, fmt.Errorf("parsing event payload: %w", err)
	}
	number := pr.GetNumber()
	if number == 0 {
		number = pr.GetPullRequest().GetNumber()
	}
	if number == 0 {
		return Event{}, fmt.Errorf("%w: payload names no pull request", ErrUnsupportedEvent)
	}
	if !reviewActions[pr.GetAction()] {
		return Event{}, fmt.Errorf("%w: pull_request action %q", ErrUnsupportedEvent, pr.GetAction())
	}
	return newEvent(pr.GetRepo(), number, pr.GetAction())
}

func newEvent(repo *gogithub.Repository, number int, action string) (Event, error) {
	owner, name := repo.GetOwner().GetLogin(), repo.GetName()
	if full := repo.GetFullName(); owner == "" || name == "" {
		var ok bool
		owner, name, ok = strings.Cut(full, "/")
		if !ok || owner == "" || name == "" {
			return Event{}, fmt.Errorf("invalid repository name %q in event payload", full)
		}
	}
	return Event{Owner: owner, Repo: name, Number: number, Action: action}, nil
}
