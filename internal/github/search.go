// internal/github/search.go
package github

import (
	"context"

	"colorscheme-indexer/internal/model"

	"github.com/google/go-github/v62/github"
)

const (
	// ItemsPerPage is the largest page the search endpoint serves.
	ItemsPerPage = 100
	// APIHardLimit is the number of results the search endpoint will return for one query.
	APIHardLimit = 1000
)

// DefaultQueries returns the discovery queries: every phrasing of "color
// scheme" for vim and neovim, excluding dotfiles and unstarred repositories.
func DefaultQueries() []string {
	editors := []string{"vim", "neovim"}
	terms := []string{"theme", "color scheme", "colorscheme", "colour scheme", "colourscheme"}

	queries := make([]string, 0, len(editors)*len(terms))
	for _, editor := range editors {
		for _, term := range terms {
			queries = append(queries, editor+" "+term+" NOT dotfiles stars:>1")
		}
	}
	return queries
}

// SearchRepositories runs every query, sorted by stars, and returns the
// repositories de-duplicated by GitHub id in first-seen order. Each query is
// paged until its total count or limit is reached. A failing page ends that
// query only.
func (c *Client) SearchRepositories(ctx context.Context, queries []string, limit int) []*model.Repository {
	if limit <= 0 || limit > APIHardLimit {
		limit = APIHardLimit
	}

	seen := make(map[int64]bool)
	var repos []*model.Repository

	for _, q := range queries {
		fetched := 0
		for page := 1; ; page++ {
			c.logger.Debug("Fetching search page", "query", q, "page", page)

			opts := &github.SearchOptions{
				Sort: "stars",
				ListOptions: github.ListOptions{
					PerPage: ItemsPerPage,
					Page:    page,
				},
			}
			res := call(ctx, c, "search.repositories", searchBucket, func(ctx context.Context) (*github.RepositoriesSearchResult, *github.Response, error) {
				return c.gh.Search.Repositories(ctx, q, opts)
			})
			if !res.OK() {
				break
			}

			items := res.Value.Repositories
			for _, r := range items {
				if seen[r.GetID()] {
					continue
				}
				seen[r.GetID()] = true
				repos = append(repos, toInternalRepository(r))
			}
			fetched += len(items)

			total := min(res.Value.GetTotal(), limit)
			if len(items) == 0 || fetched >= total {
				break
			}
		}
		c.logger.Info("Search query done", "query", q, "fetched", fetched, "unique_total", len(repos))
	}

	return repos
}
