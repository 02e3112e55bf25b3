// internal/syncer/syncer.go
package syncer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"colorscheme-indexer/internal/classifier"
	"colorscheme-indexer/internal/curator"
	custom_errors "colorscheme-indexer/internal/errors"
	"colorscheme-indexer/internal/github"
	"colorscheme-indexer/internal/model"
)

// Store is the storage the runners read from and write to.
type Store interface {
	GetRepository(ctx context.Context, owner, name string) (*model.Repository, error)
	GetAllRepositories(ctx context.Context) ([]*model.Repository, error)
	UpsertRepository(ctx context.Context, repo *model.Repository) error
}

// GitHub is the subset of the API client the runners use.
type GitHub interface {
	SearchRepositories(ctx context.Context, queries []string, limit int) []*model.Repository
	GetRepository(ctx context.Context, owner, name string) github.Result[*model.Repository]
	GetLastCommitAt(ctx context.Context, owner, name, branch string) github.Result[time.Time]
	GetReadme(ctx context.Context, owner, name string) github.Result[string]
}

// FileLister lists the files of a repository.
type FileLister interface {
	ListFiles(ctx context.Context, owner, name, ref string) ([]model.FileTreeEntry, bool)
}

// URLChecker checks raw URLs outside of the API.
type URLChecker interface {
	CheckURL(ctx context.Context, url string) github.Outcome
	IsImageURLValid(ctx context.Context, url string) bool
}

// Deps are the collaborators of a Syncer.
type Deps struct {
	Store           Store
	GitHub          GitHub
	Files           FileLister
	Classifier      *classifier.Classifier
	Curator         *curator.Curator
	Web             URLChecker
	Queries         []string
	RepositoryLimit int
	Logger          *slog.Logger
}

// Syncer holds what the import, update and clean runners share.
// Repositories are processed one at a time.
type Syncer struct {
	store           Store
	gh              GitHub
	files           FileLister
	classifier      *classifier.Classifier
	curator         *curator.Curator
	web             URLChecker
	queries         []string
	repositoryLimit int
	logger          *slog.Logger
	now             func() time.Time
}

// New creates a Syncer. An empty query list falls back to github.DefaultQueries.
func New(d Deps) *Syncer {
	queries := d.Queries
	if len(queries) == 0 {
		queries = github.DefaultQueries()
	}
	return &Syncer{
		store:           d.Store,
		gh:              d.GitHub,
		files:           d.Files,
		classifier:      d.Classifier,
		curator:         d.Curator,
		web:             d.Web,
		queries:         queries,
		repositoryLimit: d.RepositoryLimit,
		logger:          d.Logger,
		now:             time.Now,
	}
}

// refreshContent walks the repository tree and, when fetchDue, classifies its
// files again. Valid repositories then get their images curated. A tree that
// lists nothing, or a verdict that transient failures leave open, keeps the
// stored content so the repository is retried next cycle. It reports whether
// anything was refreshed.
func (s *Syncer) refreshContent(ctx context.Context, repo *model.Repository, fetchDue bool) bool {
	logger := s.logger.With("owner", repo.OwnerName, "repo", repo.Name)

	files, complete := s.files.ListFiles(ctx, repo.OwnerName, repo.Name, repo.DefaultBranch)
	if len(files) == 0 {
		logger.Warn("No files listed, content left unchanged")
		return false
	}

	now := s.now()
	refreshed := false
	if fetchDue {
		logger.Info("Content fetch due")
		c := s.classifier.Classify(ctx, repo.OwnerName, repo.Name, repo.DefaultBranch, files)
		if c.Settled(complete) {
			repo.TargetItemNames = c.Names
			repo.Valid = c.Valid
			repo.IsLua = c.IsLua
			repo.IsVim = c.IsVim
			repo.ContentFetchedAt = &now
			refreshed = true
		} else {
			logger.Warn("Content fetch incomplete, verdict left unchanged",
				"tree_complete", complete,
				"candidates", c.Candidates,
			)
		}
	}

	if repo.Valid {
		readme := s.gh.GetReadme(ctx, repo.OwnerName, repo.Name)
		repo.ImageURLs = s.curator.Curate(ctx, curator.Input{
			Owner:        repo.OwnerName,
			Name:         repo.Name,
			Branch:       repo.DefaultBranch,
			Readme:       readme.Value,
			Files:        files,
			OldImageURLs: repo.ImageURLs,
		})
		repo.ImagesFetchedAt = &now
		refreshed = true
	}
	if refreshed {
		repo.CleanedRecently = false
	}
	return refreshed
}

// refreshLastCommit updates LastCommitAt, keeping the stored value when the call fails.
func (s *Syncer) refreshLastCommit(ctx context.Context, repo *model.Repository) {
	res := s.gh.GetLastCommitAt(ctx, repo.OwnerName, repo.Name, repo.DefaultBranch)
	if res.OK() {
		repo.LastCommitAt = res.Value
	}
}

// applyMetadata copies the fields the API owns from fresh onto repo.
func applyMetadata(repo, fresh *model.Repository) {
	repo.GithubID = fresh.GithubID
	repo.OwnerAvatarURL = fresh.OwnerAvatarURL
	repo.Description = fresh.Description
	repo.DefaultBranch = fresh.DefaultBranch
	repo.HomepageURL = fresh.HomepageURL
	repo.StargazersCount = fresh.StargazersCount
	repo.License = fresh.License
	repo.PushedAt = fresh.PushedAt
	repo.GithubCreatedAt = fresh.GithubCreatedAt
	if repo.GithubURL == "" {
		repo.GithubURL = fresh.GithubURL
	}
}

// RepoIdentifier holds the owner and name of a repository.
type RepoIdentifier struct {
	Owner string
	Name  string
}

// ParseRepoIdentifiers parses "owner/name" keys.
func ParseRepoIdentifiers(repos []string) ([]RepoIdentifier, error) {
	var identifiers []RepoIdentifier
	for _, r := range repos {
		parts := strings.Split(r, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, &custom_errors.ErrInvalidRepoFormat{Repo: r}
		}
		identifiers = append(identifiers, RepoIdentifier{Owner: parts[0], Name: parts[1]})
	}
	return identifiers, nil
}

func selected(only []string, repo *model.Repository) bool {
	if len(only) == 0 {
		return true
	}
	for _, key := range only {
		if strings.EqualFold(key, repo.Key()) {
			return true
		}
	}
	return false
}
