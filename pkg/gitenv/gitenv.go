// Package gitenv detects the CI environment a scan runs in.
//
// The runner uses it to fill the branch and tag of a scan envelope when they
// are not configured, and to post the check summary to the open pull request
// or merge request.
package gitenv

import "context"

const (
	ProviderGitHub = "github"
	ProviderGitLab = "gitlab"
	ProviderManual = "manual"
)

// GitEnv provides a unified view of the CI environment.
type GitEnv interface {
	// Provider returns the provider name (github, gitlab, manual)
	Provider() string

	// IsActive returns true if this CI environment is detected
	IsActive() bool

	// Repository info
	ProjectName() string
	ProjectURL() string

	// Commit info
	CommitSha() string
	CommitBranch() string
	CommitTag() string

	// MergeRequestID is the PR number or MR IID, empty outside a review.
	MergeRequestID() string

	JobURL() string

	// CreateMRComment posts a comment on the open PR/MR.
	CreateMRComment(ctx context.Context, option MRCommentOption) error
}

// MRCommentOption configures a merge request / pull request comment.
type MRCommentOption struct {
	Title string
	Body  string
}

// text renders the comment as markdown, title first.
func (o MRCommentOption) text() string {
	if o.Title == "" {
		return o.Body
	}
	if o.Body == "" {
		return "### " + o.Title
	}
	return "### " + o.Title + "\n\n" + o.Body
}

// ManualEnv is a manual/local environment when no CI is detected.
type ManualEnv struct {
	repoURL   string
	branch    string
	tag       string
	commitSha string
}

// NewManualEnv creates a manual environment with optional override values.
func NewManualEnv(repoURL, branch, commitSha string) *ManualEnv {
	return &ManualEnv{
		repoURL:   repoURL,
		branch:    branch,
		commitSha: commitSha,
	}
}

// WithTag sets the tag reported by CommitTag.
func (m *ManualEnv) WithTag(tag string) *ManualEnv {
	m.tag = tag
	return m
}

func (m *ManualEnv) Provider() string       { return ProviderManual }
func (m *ManualEnv) IsActive() bool         { return true }
func (m *ManualEnv) ProjectName() string    { return m.repoURL }
func (m *ManualEnv) ProjectURL() string     { return m.repoURL }
func (m *ManualEnv) CommitSha() string      { return m.commitSha }
func (m *ManualEnv) CommitBranch() string   { return m.branch }
func (m *ManualEnv) CommitTag() string      { return m.tag }
func (m *ManualEnv) MergeRequestID() string { return "" }
func (m *ManualEnv) JobURL() string         { return "" }

// CreateMRComment is a no-op outside CI.
func (m *ManualEnv) CreateMRComment(_ context.Context, _ MRCommentOption) error { return nil }
