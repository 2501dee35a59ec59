package gitenv

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/google/go-github/v74/github"
	"golang.org/x/oauth2"

	"github.com/exploopio/depaudit/pkg/core"
	"github.com/exploopio/depaudit/pkg/errors"
)

// GitHubEnv provides GitHub Actions CI environment information.
type GitHubEnv struct {
	accessToken  string
	client       *github.Client
	eventPayload githubEventPayload
	logger       core.Logger
}

// NewGitHub creates a GitHub Actions environment. GITHUB_TOKEN authenticates
// comment requests; GITHUB_API_URL points the client at GitHub Enterprise.
func NewGitHub(logger core.Logger) (*GitHubEnv, error) {
	accessToken := os.Getenv("GITHUB_TOKEN")

	var client *github.Client
	if accessToken != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: accessToken},
		)
		client = github.NewClient(oauth2.NewClient(context.Background(), ts))
	} else {
		client = github.NewClient(nil)
	}

	if apiURL := os.Getenv("GITHUB_API_URL"); apiURL != "" {
		base, err := url.Parse(strings.TrimSuffix(apiURL, "/") + "/")
		if err != nil {
			return nil, errors.E(errors.KindInvalidInput, "gitenv.NewGitHub", "parse GITHUB_API_URL", err)
		}
		client.BaseURL = base
	}

	return &GitHubEnv{
		accessToken: accessToken,
		client:      client,
		logger:      core.OrNop(logger),
	}, nil
}

// IsActive returns true if running in GitHub Actions.
func (g *GitHubEnv) IsActive() bool {
	isActive := os.Getenv("GITHUB_ACTIONS") == "true"
	if isActive {
		g.logger.Debug("GitHub Actions environment detected")
		if g.accessToken == "" {
			g.logger.Debug("GITHUB_TOKEN is not set, PR comments will not work")
		}
		g.loadEventPayload()
	}
	return isActive
}

func (g *GitHubEnv) loadEventPayload() {
	eventPath := os.Getenv("GITHUB_EVENT_PATH")
	if eventPath == "" {
		return
	}

	data, err := os.ReadFile(eventPath)
	if err != nil {
		g.logger.Warn("Could not read GITHUB_EVENT_PATH: %v", err)
		return
	}

	if err := json.Unmarshal(data, &g.eventPayload); err != nil {
		g.logger.Warn("Could not parse event payload: %v", err)
	}
}

// Provider returns "github".
func (g *GitHubEnv) Provider() string {
	return ProviderGitHub
}

// ProjectName returns owner/repo format.
func (g *GitHubEnv) ProjectName() string {
	return os.Getenv("GITHUB_REPOSITORY")
}

// ProjectURL returns the repository URL.
func (g *GitHubEnv) ProjectURL() string {
	serverURL := os.Getenv("GITHUB_SERVER_URL")
	if serverURL == "" {
		serverURL = "https://github.com"
	}
	return fmt.Sprintf("%s/%s", serverURL, os.Getenv("GITHUB_REPOSITORY"))
}

// CommitSha returns the current commit SHA.
func (g *GitHubEnv) CommitSha() string {
	return os.Getenv("GITHUB_SHA")
}

// CommitBranch returns the current branch name. In a pull request this is
// the head branch.
func (g *GitHubEnv) CommitBranch() string {
	if head := os.Getenv("GITHUB_HEAD_REF"); head != "" {
		return head
	}
	if g.eventPayload.PullRequest != nil {
		return g.eventPayload.PullRequest.Head.Ref
	}
	if os.Getenv("GITHUB_REF_TYPE") == "branch" {
		return os.Getenv("GITHUB_REF_NAME")
	}
	return ""
}

// CommitTag returns the tag name if this is a tag push.
func (g *GitHubEnv) CommitTag() string {
	if os.Getenv("GITHUB_REF_TYPE") == "tag" {
		return os.Getenv("GITHUB_REF_NAME")
	}
	return ""
}

// MergeRequestID returns the PR number.
func (g *GitHubEnv) MergeRequestID() string {
	if prNum := os.Getenv("GITHUB_PR_NUMBER"); prNum != "" {
		return prNum
	}
	if g.eventPayload.PullRequest != nil {
		return strconv.Itoa(g.eventPayload.PullRequest.Number)
	}
	return ""
}

// JobURL returns the URL for the current workflow run.
func (g *GitHubEnv) JobURL() string {
	serverURL := os.Getenv("GITHUB_SERVER_URL")
	repo := os.Getenv("GITHUB_REPOSITORY")
	runID := os.Getenv("GITHUB_RUN_ID")
	if serverURL == "" || repo == "" || runID == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/actions/runs/%s", serverURL, repo, runID)
}

// CreateMRComment posts an issue comment on the pull request.
func (g *GitHubEnv) CreateMRComment(ctx context.Context, option MRCommentOption) error {
	const op = "gitenv.GitHubEnv.CreateMRComment"

	if g.accessToken == "" {
		return errors.E(errors.KindAuthentication, op, "GITHUB_TOKEN not set, cannot create PR comment")
	}

	prNumberStr := g.MergeRequestID()
	if prNumberStr == "" {
		return errors.E(errors.KindInvalidInput, op, "not in a pull request context")
	}

	prNumber, err := strconv.Atoi(prNumberStr)
	if err != nil {
		return errors.E(errors.KindInvalidInput, op, "invalid PR number", err)
	}

	owner, repo, ok := strings.Cut(os.Getenv("GITHUB_REPOSITORY"), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return errors.E(errors.KindInvalidInput, op, fmt.Sprintf("invalid GITHUB_REPOSITORY format: %s", os.Getenv("GITHUB_REPOSITORY")))
	}

	comment := &github.IssueComment{Body: github.Ptr(option.text())}
	if _, _, err := g.client.Issues.CreateComment(ctx, owner, repo, prNumber, comment); err != nil {
		g.logger.Warn("Failed to create PR comment: %v", err)
		return errors.E(errors.KindNetwork, op, "create PR comment", err)
	}

	g.logger.Info("Created PR comment on #%d", prNumber)
	return nil
}

// GitHub event payload structures
type githubEventPayload struct {
	PullRequest *githubPullRequest `json:"pull_request"`
}

type githubPullRequest struct {
	Number int `json:"number"`
	Head   struct {
		Ref string `json:"ref"`
		Sha string `json:"sha"`
	} `json:"head"`
}
