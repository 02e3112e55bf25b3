// internal/syncer/cleaner.go
package syncer

import (
	"context"
	"fmt"
	"slices"

	"colorscheme-indexer/internal/model"
)

// Cleaner drops stored images that no longer validate.
type Cleaner struct {
	*Syncer
}

func NewCleaner(s *Syncer) *Cleaner {
	return &Cleaner{Syncer: s}
}

// Run de-duplicates and revalidates the images of every stored repository.
// Repositories that lost an image are marked cleaned_recently so the next
// update replenishes them.
func (c *Cleaner) Run(ctx context.Context, rc model.RunContext) (model.Results, error) {
	repos, err := c.store.GetAllRepositories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}
	c.logger.Info("Running clean", "repositories", len(repos))

	var count, removed, updated, failed int
	for _, repo := range repos {
		if !selected(rc.Only, repo) {
			continue
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		count++

		n := c.clean(ctx, repo)
		if n == 0 {
			continue
		}
		removed += n
		if err := c.store.UpsertRepository(ctx, repo); err != nil {
			c.logger.Error("Failed to store cleaned repository", "owner", repo.OwnerName, "repo", repo.Name, "error", err)
			failed++
			continue
		}
		updated++
	}

	return model.Results{
		"repository_count":    count,
		"image_removed_count": removed,
		"updated_count":       updated,
		"error_count":         failed,
	}, nil
}

// clean filters repo's images in place and returns how many were removed.
func (c *Cleaner) clean(ctx context.Context, repo *model.Repository) int {
	initial := len(repo.ImageURLs)

	images := make([]string, 0, initial)
	for _, u := range repo.ImageURLs {
		if slices.Contains(images, u) {
			continue
		}
		if c.web.IsImageURLValid(ctx, u) {
			images = append(images, u)
		}
	}
	repo.ImageURLs = images
	repo.ApplyImageInvariants()

	removed := initial - len(repo.ImageURLs)
	if removed > 0 {
		c.logger.Info("Removed images", "owner", repo.OwnerName, "repo", repo.Name, "removed", removed)
		repo.CleanedRecently = true
	}
	return removed
}
