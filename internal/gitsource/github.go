// Package gitsource implements the source-control query collaborator on
// top of the GitHub REST API.
package gitsource

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v58/github"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/stacksentry/stacksentry/api/schemas"
	"github.com/stacksentry/stacksentry/internal/config"
)

// Client wraps the GitHub API client behind schemas.CommitSource. A token
// is optional; unauthenticated calls run against GitHub's much smaller
// rate budget, so every request also passes through a local limiter.
type Client struct {
	gh      *github.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New builds a Client from configuration. Endpoint overrides the API base
// URL (tests, GitHub Enterprise).
func New(cfg config.GitHubConfig, logger *zap.Logger) (*Client, error) {
	gh := github.NewClient(nil)
	if cfg.Token != "" {
		gh = gh.WithAuthToken(cfg.Token)
	}

	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		baseURL, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub endpoint %q: %w", cfg.Endpoint, err)
		}
		gh.BaseURL = baseURL
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		gh:      gh,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger.Named("gitsource"),
	}, nil
}

// FileCommitHistory lists up to count recent commits touching path, newest
// first.
func (c *Client) FileCommitHistory(ctx context.Context, ref schemas.RepoRef, path string, count int) ([]schemas.CommitRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	opts := &github.CommitsListOptions{
		Path:        path,
		ListOptions: github.ListOptions{PerPage: count},
	}

	commits, resp, err := c.gh.Repositories.ListCommits(ctx, ref.Owner, ref.Repo, opts)
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return nil, fmt.Errorf("repository or file not found: %s/%s", ref, path)
		}
		return nil, fmt.Errorf("failed to fetch commits for %s in %s: %w", path, ref, err)
	}

	records := make([]schemas.CommitRecord, 0, len(commits))
	for _, commit := range commits {
		records = append(records, toCommitRecord(commit))
	}

	c.logger.Debug("Fetched file commit history",
		zap.String("repo", ref.String()),
		zap.String("path", path),
		zap.Int("count", len(records)),
	)
	return records, nil
}

// CommitDetails fetches one commit with its full file-level change set.
func (c *Client) CommitDetails(ctx context.Context, ref schemas.RepoRef, sha string) (*schemas.CommitDetails, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	commit, resp, err := c.gh.Repositories.GetCommit(ctx, ref.Owner, ref.Repo, sha, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return nil, fmt.Errorf("commit not found: %s", sha)
		}
		return nil, fmt.Errorf("failed to fetch commit details for %s in %s: %w", sha, ref, err)
	}

	details := &schemas.CommitDetails{
		SHA:      commit.GetSHA(),
		ShortSHA: ShortSHA(commit.GetSHA()),
		Message:  commit.GetCommit().GetMessage(),
		Author:   commit.GetCommit().GetAuthor().GetName(),
		Email:    commit.GetCommit().GetAuthor().GetEmail(),
		Date:     commit.GetCommit().GetAuthor().GetDate().Time,
		URL:      commit.GetHTMLURL(),
		Files:    make([]schemas.CommitFileChange, 0, len(commit.Files)),
	}

	for _, f := range commit.Files {
		details.Files = append(details.Files, schemas.CommitFileChange{
			Filename:  f.GetFilename(),
			Status:    f.GetStatus(),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
			Changes:   f.GetChanges(),
			Patch:     f.Patch,
		})
	}
	return details, nil
}

func toCommitRecord(commit *github.RepositoryCommit) schemas.CommitRecord {
	return schemas.CommitRecord{
		SHA:      commit.GetSHA(),
		ShortSHA: ShortSHA(commit.GetSHA()),
		Message:  commit.GetCommit().GetMessage(),
		Author:   commit.GetCommit().GetAuthor().GetName(),
		Email:    commit.GetCommit().GetAuthor().GetEmail(),
		Date:     commit.GetCommit().GetAuthor().GetDate().Time,
		URL:      commit.GetHTMLURL(),
	}
}

// ShortSHA returns the first 7 hex characters of a commit SHA.
func ShortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
