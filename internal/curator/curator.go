// internal/curator/curator.go
package curator

import (
	"context"
	"log/slog"
	"regexp"
	"slices"

	"colorscheme-indexer/internal/github"
	"colorscheme-indexer/internal/model"
)

// DefaultMaxImageCount caps the images kept per repository.
const DefaultMaxImageCount = 5

var (
	imagePathRegex   = regexp.MustCompile(`^.*\.(png|jpe?g|webp)$`)
	readmeImageRegex = regexp.MustCompile(`\bhttps?://[^\s)"']+(?:png|jpe?g|webp)\b`)
	readmeCamoRegex  = regexp.MustCompile(`\bhttps?://camo\.githubusercontent\.com(/[0-9a-zA-Z]*)+\b`)
)

// ImageValidator checks that a URL serves an accepted image.
type ImageValidator interface {
	IsImageURLValid(ctx context.Context, url string) bool
}

// Input is everything known about a repository when its images are curated.
type Input struct {
	Owner        string
	Name         string
	Branch       string
	Readme       string
	Files        []model.FileTreeEntry
	OldImageURLs []string
}

// Curator assembles the image set of a repository.
type Curator struct {
	validator ImageValidator
	maxCount  int
	logger    *slog.Logger
}

func New(validator ImageValidator, maxCount int, logger *slog.Logger) *Curator {
	if maxCount < 0 {
		maxCount = DefaultMaxImageCount
	}
	return &Curator{validator: validator, maxCount: maxCount, logger: logger}
}

// MaxCount returns the curation cap.
func (c *Curator) MaxCount() int {
	return c.maxCount
}

// FindReadmeImageURLs returns image links in text followed by camo proxy links, in order.
func FindReadmeImageURLs(text string) []string {
	urls := readmeImageRegex.FindAllString(text, -1)
	return append(urls, readmeCamoRegex.FindAllString(text, -1)...)
}

// Curate returns at most MaxCount unique image URLs. Previously accepted URLs
// are revalidated first, then README links are validated, then images from the
// file tree fill the remaining slots without validation. Validation stops as
// soon as the cap is reached.
func (c *Curator) Curate(ctx context.Context, in Input) []string {
	logger := c.logger.With("owner", in.Owner, "repo", in.Name)
	images := make([]string, 0, c.maxCount)
	full := func() bool { return len(images) >= c.maxCount }

	for _, u := range in.OldImageURLs {
		if full() {
			break
		}
		if slices.Contains(images, u) {
			continue
		}
		if c.validator.IsImageURLValid(ctx, u) {
			images = append(images, u)
		} else {
			logger.Info("Dropping image that no longer validates", "url", u)
		}
	}

	if !full() {
		for _, u := range FindReadmeImageURLs(in.Readme) {
			if full() {
				break
			}
			if slices.Contains(images, u) {
				continue
			}
			if c.validator.IsImageURLValid(ctx, u) {
				images = append(images, u)
			}
		}
	}

	if !full() {
		for _, f := range in.Files {
			if full() {
				break
			}
			if f.Type != model.BlobEntry || !imagePathRegex.MatchString(f.Path) {
				continue
			}
			u := github.RawContentURL(in.Owner, in.Name, in.Branch, f.Path)
			if !slices.Contains(images, u) {
				images = append(images, u)
			}
		}
	}

	logger.Debug("Curated images", "count", len(images))
	return images
}
