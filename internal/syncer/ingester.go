// internal/syncer/ingester.go
package syncer

import (
	"context"

	"colorscheme-indexer/internal/model"
	"colorscheme-indexer/internal/staleness"
)

// Ingester discovers repositories and brings each one up to date.
type Ingester struct {
	*Syncer
}

func NewIngester(s *Syncer) *Ingester {
	return &Ingester{Syncer: s}
}

// Run discovers candidates through search, or looks up rc.Only directly, and
// ingests them one at a time. A failing repository is logged and skipped.
func (in *Ingester) Run(ctx context.Context, rc model.RunContext) (model.Results, error) {
	candidates, err := in.discover(ctx, rc)
	if err != nil {
		return nil, err
	}
	in.logger.Info("Running import", "repositories", len(candidates))

	var fetched, valid, failed int
	for _, found := range candidates {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		repo, didFetch, err := in.ingest(ctx, found, rc)
		if err != nil {
			in.logger.Error("Failed to ingest repository", "owner", found.OwnerName, "repo", found.Name, "error", err)
			failed++
			continue
		}
		if didFetch {
			fetched++
		}
		if repo.Valid {
			valid++
		}
	}

	return model.Results{
		"repository_count": len(candidates),
		"fetched_count":    fetched,
		"valid_count":      valid,
		"error_count":      failed,
	}, nil
}

func (in *Ingester) discover(ctx context.Context, rc model.RunContext) ([]*model.Repository, error) {
	if len(rc.Only) == 0 {
		return in.gh.SearchRepositories(ctx, in.queries, in.repositoryLimit), nil
	}

	ids, err := ParseRepoIdentifiers(rc.Only)
	if err != nil {
		return nil, err
	}
	var repos []*model.Repository
	for _, id := range ids {
		res := in.gh.GetRepository(ctx, id.Owner, id.Name)
		if !res.OK() {
			in.logger.Warn("Repository not available", "owner", id.Owner, "repo", id.Name, "outcome", res.Outcome)
			continue
		}
		repos = append(repos, res.Value)
	}
	return repos, nil
}

// ingest merges a discovered repository with its stored record, refreshes
// what is due and upserts the result.
func (in *Ingester) ingest(ctx context.Context, found *model.Repository, rc model.RunContext) (*model.Repository, bool, error) {
	logger := in.logger.With("owner", found.OwnerName, "repo", found.Name)

	old, err := in.store.GetRepository(ctx, found.OwnerName, found.Name)
	if err != nil {
		return nil, false, err
	}

	repo := found
	if old != nil {
		repo = old.Clone()
		applyMetadata(repo, found)
	}

	in.refreshLastCommit(ctx, repo)

	fetchDue := rc.Force || staleness.IsFetchDue(old, repo.LastCommitAt, rc.LastRunAt)
	replenish := old != nil && old.Valid && old.CleanedRecently
	didFetch := false
	if fetchDue || replenish {
		didFetch = in.refreshContent(ctx, repo, fetchDue)
	} else {
		logger.Debug("Content fetch not due")
	}

	repo.ApplyImageInvariants()
	if err := in.store.UpsertRepository(ctx, repo); err != nil {
		return nil, false, err
	}
	return repo, didFetch, nil
}
