package gitenv

import (
	"context"
	"os"
	"strconv"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/exploopio/depaudit/pkg/core"
	"github.com/exploopio/depaudit/pkg/errors"
)

// GitLabEnv provides GitLab CI environment information.
type GitLabEnv struct {
	accessToken string
	client      *gitlab.Client
	logger      core.Logger
}

// NewGitLab creates a GitLab CI environment. A client is built only when both
// GITLAB_TOKEN and CI_SERVER_URL are set.
func NewGitLab(logger core.Logger) (*GitLabEnv, error) {
	accessToken := os.Getenv("GITLAB_TOKEN")
	serverURL := os.Getenv("CI_SERVER_URL")

	var client *gitlab.Client
	if accessToken != "" && serverURL != "" {
		var err error
		client, err = gitlab.NewClient(accessToken, gitlab.WithBaseURL(serverURL))
		if err != nil {
			return nil, errors.E(errors.KindInvalidInput, "gitenv.NewGitLab", "create GitLab client", err)
		}
	}

	return &GitLabEnv{
		accessToken: accessToken,
		client:      client,
		logger:      core.OrNop(logger),
	}, nil
}

// IsActive returns true if running in GitLab CI.
func (g *GitLabEnv) IsActive() bool {
	isActive := os.Getenv("GITLAB_CI") == "true"
	if isActive {
		g.logger.Debug("GitLab CI environment detected")
		if g.accessToken == "" {
			g.logger.Debug("GITLAB_TOKEN is not set, MR comments will not work")
		}
	}
	return isActive
}

// Provider returns "gitlab".
func (g *GitLabEnv) Provider() string {
	return ProviderGitLab
}

func (g *GitLabEnv) ProjectID() string {
	return os.Getenv("CI_PROJECT_ID")
}

func (g *GitLabEnv) ProjectName() string {
	return os.Getenv("CI_PROJECT_NAME")
}

func (g *GitLabEnv) ProjectURL() string {
	return os.Getenv("CI_PROJECT_URL")
}

func (g *GitLabEnv) CommitSha() string {
	return os.Getenv("CI_COMMIT_SHA")
}

// CommitBranch returns the branch, or the MR source branch in merge request
// pipelines where CI_COMMIT_BRANCH is unset.
func (g *GitLabEnv) CommitBranch() string {
	if branch := os.Getenv("CI_COMMIT_BRANCH"); branch != "" {
		return branch
	}
	return os.Getenv("CI_MERGE_REQUEST_SOURCE_BRANCH_NAME")
}

func (g *GitLabEnv) CommitTag() string {
	return os.Getenv("CI_COMMIT_TAG")
}

// MergeRequestID returns the MR IID.
func (g *GitLabEnv) MergeRequestID() string {
	return os.Getenv("CI_MERGE_REQUEST_IID")
}

func (g *GitLabEnv) JobURL() string {
	return os.Getenv("CI_JOB_URL")
}

// CreateMRComment adds a note to the merge request.
func (g *GitLabEnv) CreateMRComment(ctx context.Context, option MRCommentOption) error {
	const op = "gitenv.GitLabEnv.CreateMRComment"

	if g.client == nil {
		return errors.E(errors.KindAuthentication, op, "GitLab client not initialized, GITLAB_TOKEN may not be set")
	}

	mrIDStr := g.MergeRequestID()
	if mrIDStr == "" {
		return errors.E(errors.KindInvalidInput, op, "not in a merge request context")
	}

	mrID, err := strconv.Atoi(mrIDStr)
	if err != nil {
		return errors.E(errors.KindInvalidInput, op, "invalid MR ID", err)
	}

	projectID := g.ProjectID()
	if projectID == "" {
		return errors.E(errors.KindInvalidInput, op, "CI_PROJECT_ID not set")
	}

	_, _, err = g.client.Notes.CreateMergeRequestNote(
		projectID,
		mrID,
		&gitlab.CreateMergeRequestNoteOptions{Body: gitlab.Ptr(option.text())},
		gitlab.WithContext(ctx),
	)
	if err != nil {
		g.logger.Warn("Failed to create MR note: %v", err)
		return errors.E(errors.KindNetwork, op, "create MR note", err)
	}

	g.logger.Info("Created MR note on !%d", mrID)
	return nil
}
