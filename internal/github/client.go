// internal/github/client.go
package github

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"colorscheme-indexer/internal/model"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
)

// Client is a rate-limit aware wrapper around the go-github client.
// Every call waits for budget first and never returns a fatal error: the
// outcome is carried by the returned Result.
type Client struct {
	gh           *github.Client
	core         *RateLimitState
	search       *RateLimitState
	logger       *slog.Logger
	safetyMargin time.Duration

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewClient creates and configures a new Client instance.
// The provided token is used to create an authenticated http.Client.
func NewClient(token string, timeout, safetyMargin time.Duration, logger *slog.Logger) *Client {
	var hc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		hc = oauth2.NewClient(context.Background(), ts)
	} else {
		hc = &http.Client{}
	}
	hc.Timeout = timeout

	return newClient(github.NewClient(hc), safetyMargin, logger)
}

func newClient(gh *github.Client, safetyMargin time.Duration, logger *slog.Logger) *Client {
	return &Client{
		gh:           gh,
		core:         &RateLimitState{},
		search:       &RateLimitState{},
		logger:       logger,
		safetyMargin: safetyMargin,
		sleep:        sleepContext,
		now:          time.Now,
	}
}

// RateLimit returns the client's core rate limit state.
func (c *Client) RateLimit() *RateLimitState {
	return c.core
}

// SearchRateLimit returns the client's search rate limit state.
func (c *Client) SearchRateLimit() *RateLimitState {
	return c.search
}

// call runs fn once budget is available in b and maps its error onto an
// outcome. A rate limited response is never surfaced: call backs off and
// retries the same request until it goes through or ctx is done.
func call[T any](ctx context.Context, c *Client, op string, b bucket, fn func(ctx context.Context) (T, *github.Response, error)) Result[T] {
	state := c.state(b)
	for {
		if err := c.waitForBudget(ctx, b); err != nil {
			c.logger.Error("Could not acquire rate limit budget", "op", op, "error", err)
			return transient[T](err)
		}

		v, resp, err := fn(ctx)
		if resp != nil {
			state.observe(resp.Rate)
		}
		if err == nil {
			return ok(v)
		}

		apiErr := classifyError(err)
		switch apiErr.Kind {
		case KindRateLimited:
			wait := c.rateLimitWait(err)
			c.logger.Warn("Rate limited, retrying after wait", "op", op, "bucket", b, "status", apiErr.StatusCode, "sleep", wait)
			if err := c.sleep(ctx, wait); err != nil {
				return transient[T](err)
			}
			continue
		case KindNotFound:
			c.logger.Debug("Resource not found", "op", op)
			return notFound[T](apiErr)
		}
		c.logger.Error("GitHub API call failed", "op", op, "kind", apiErr.Kind, "status", apiErr.StatusCode, "error", err)
		return transient[T](apiErr)
	}
}

// GetRepository fetches repository details and translates them to our internal model.
func (c *Client) GetRepository(ctx context.Context, owner, name string) Result[*model.Repository] {
	return call(ctx, c, "repos.get", coreBucket, func(ctx context.Context) (*model.Repository, *github.Response, error) {
		repo, resp, err := c.gh.Repositories.Get(ctx, owner, name)
		if err != nil {
			return nil, resp, err
		}
		return toInternalRepository(repo), resp, nil
	})
}

// GetLastCommitAt returns the committer date of the newest commit on branch.
// An empty branch is reported as NotFound.
func (c *Client) GetLastCommitAt(ctx context.Context, owner, name, branch string) Result[time.Time] {
	res := call(ctx, c, "repos.list_commits", coreBucket, func(ctx context.Context) ([]*github.RepositoryCommit, *github.Response, error) {
		opts := &github.CommitsListOptions{
			SHA:         branch,
			ListOptions: github.ListOptions{PerPage: 1},
		}
		return c.gh.Repositories.ListCommits(ctx, owner, name, opts)
	})
	if !res.OK() {
		return Result[time.Time]{Outcome: res.Outcome, Err: res.Err}
	}
	if len(res.Value) == 0 {
		return notFound[time.Time](nil)
	}
	return ok(res.Value[0].GetCommit().GetCommitter().GetDate().Time)
}

// ListTree lists the direct entries of one tree. Paths are relative to that tree.
func (c *Client) ListTree(ctx context.Context, owner, name, sha string) Result[[]model.FileTreeEntry] {
	return call(ctx, c, "git.get_tree", coreBucket, func(ctx context.Context) ([]model.FileTreeEntry, *github.Response, error) {
		tree, resp, err := c.gh.Git.GetTree(ctx, owner, name, sha, false)
		if err != nil {
			return nil, resp, err
		}
		entries := make([]model.FileTreeEntry, 0, len(tree.Entries))
		for _, e := range tree.Entries {
			entries = append(entries, model.FileTreeEntry{
				Path: e.GetPath(),
				Type: e.GetType(),
				SHA:  e.GetSHA(),
			})
		}
		return entries, resp, nil
	})
}

// GetReadme returns the decoded README of the default branch.
func (c *Client) GetReadme(ctx context.Context, owner, name string) Result[string] {
	return call(ctx, c, "repos.get_readme", coreBucket, func(ctx context.Context) (string, *github.Response, error) {
		content, resp, err := c.gh.Repositories.GetReadme(ctx, owner, name, nil)
		if err != nil {
			return "", resp, err
		}
		text, err := content.GetContent()
		return text, resp, err
	})
}

// toInternalRepository translates a github.Repository object to our internal model.Repository.
// Archived is left alone: it is tracked from the repository URL by maintenance.
func toInternalRepository(r *github.Repository) *model.Repository {
	return &model.Repository{
		GithubID:        r.GetID(),
		OwnerName:       r.GetOwner().GetLogin(),
		OwnerAvatarURL:  r.GetOwner().GetAvatarURL(),
		Name:            r.GetName(),
		Description:     r.Description,
		DefaultBranch:   r.GetDefaultBranch(),
		GithubURL:       r.GetHTMLURL(),
		HomepageURL:     r.GetHomepage(),
		StargazersCount: r.GetStargazersCount(),
		License:         r.GetLicense().GetSPDXID(),
		PushedAt:        r.GetPushedAt().Time,
		GithubCreatedAt: r.GetCreatedAt().Time,
	}
}
