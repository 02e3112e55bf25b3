// internal/syncer/maintainer.go
package syncer

import (
	"context"
	"fmt"

	"colorscheme-indexer/internal/github"
	"colorscheme-indexer/internal/model"
	"colorscheme-indexer/internal/staleness"
)

// Maintainer revisits every stored repository.
type Maintainer struct {
	*Syncer
}

func NewMaintainer(s *Syncer) *Maintainer {
	return &Maintainer{Syncer: s}
}

// Run refreshes metadata, the last commit date, the stargazers history and
// the archived flag of every stored repository, then refetches content that
// is due. Only a failure to list the stored repositories aborts the run.
func (m *Maintainer) Run(ctx context.Context, rc model.RunContext) (model.Results, error) {
	repos, err := m.store.GetAllRepositories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}
	m.logger.Info("Running update", "repositories", len(repos))

	var count, fetched, archivedChanged, failed int
	for _, repo := range repos {
		if !selected(rc.Only, repo) {
			continue
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		count++

		didFetch, flipped, err := m.maintain(ctx, repo, rc)
		if err != nil {
			m.logger.Error("Failed to update repository", "owner", repo.OwnerName, "repo", repo.Name, "error", err)
			failed++
			continue
		}
		if didFetch {
			fetched++
		}
		if flipped {
			archivedChanged++
		}
	}

	return model.Results{
		"repository_count":       count,
		"fetched_count":          fetched,
		"archived_changed_count": archivedChanged,
		"error_count":            failed,
	}, nil
}

func (m *Maintainer) maintain(ctx context.Context, repo *model.Repository, rc model.RunContext) (bool, bool, error) {
	logger := m.logger.With("owner", repo.OwnerName, "repo", repo.Name)
	old := repo.Clone()

	if res := m.gh.GetRepository(ctx, repo.OwnerName, repo.Name); res.OK() {
		applyMetadata(repo, res.Value)
	}
	m.refreshLastCommit(ctx, repo)
	repo.AppendStargazersCount(m.now())
	repo.WeekStargazersCount = repo.TrendingStargazersCount(model.WeekTrendingDays)

	flipped := m.updateArchived(ctx, repo)
	if flipped {
		logger.Info("Archived state changed", "archived", repo.Archived)
	}

	fetchDue := rc.Force || staleness.IsFetchDue(old, repo.LastCommitAt, rc.LastRunAt)
	replenish := repo.Valid && old.CleanedRecently
	didFetch := false
	if fetchDue || replenish {
		didFetch = m.refreshContent(ctx, repo, fetchDue)
	} else {
		logger.Debug("Content fetch not due")
	}

	repo.ApplyImageInvariants()
	if err := m.store.UpsertRepository(ctx, repo); err != nil {
		return false, false, err
	}
	return didFetch, flipped, nil
}

// updateArchived archives a repository whose URL is gone (404 or 410) and
// restores one whose URL answers 2xx again. Any other answer leaves the flag
// alone. It reports whether the flag changed.
func (m *Maintainer) updateArchived(ctx context.Context, repo *model.Repository) bool {
	if repo.GithubURL == "" {
		return false
	}
	outcome := m.web.CheckURL(ctx, repo.GithubURL)
	switch {
	case outcome == github.NotFound && !repo.Archived:
		repo.Archived = true
		return true
	case outcome == github.Success && repo.Archived:
		repo.Archived = false
		return true
	case outcome == github.Transient:
		m.logger.Debug("Archived state unknown, left unchanged", "owner", repo.OwnerName, "repo", repo.Name)
	}
	return false
}
