// Package github implements review.RepositoryClient over the GitHub REST API.
//
// FetchPullRequest reads a pull request's title, description, base and head
// SHAs and unified diff. PublishReview posts one review per run: findings
// become inline comments on the new side of the diff, and the review event
// follows the verdict (APPROVE, REQUEST_CHANGES, or COMMENT for partial and
// failed reviews).
package github
