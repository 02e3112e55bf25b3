// internal/database/store.go
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"colorscheme-indexer/internal/model"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists repositories and run reports in Postgres.
type Store struct {
	db DBTX
}

func New(db DBTX) *Store {
	return &Store{db: db}
}

const repositoryColumns = `id, github_id, owner_name, owner_avatar_url, name, description, default_branch,
	github_url, homepage_url, stargazers_count, pushed_at, github_created_at, last_commit_at,
	archived, valid, target_item_names, image_urls, featured_image_url, stargazers_count_history,
	images_fetched_at, content_fetched_at, cleaned_recently, license, week_stargazers_count,
	is_lua, is_vim, created_at, updated_at`

// GetRepository returns the stored repository, or nil when there is none.
func (s *Store) GetRepository(ctx context.Context, owner, name string) (*model.Repository, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+repositoryColumns+` FROM repositories WHERE owner_name = $1 AND name = $2`,
		owner, name,
	)
	repo, err := scanRepository(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting repository %s/%s: %w", owner, name, err)
	}
	return repo, nil
}

// GetAllRepositories returns every stored repository, most starred first.
func (s *Store) GetAllRepositories(ctx context.Context) ([]*model.Repository, error) {
	return s.queryRepositories(ctx,
		`SELECT `+repositoryColumns+` FROM repositories ORDER BY stargazers_count DESC, id`,
	)
}

// ListRepositories returns one page of repositories, most starred first.
func (s *Store) ListRepositories(ctx context.Context, validOnly bool, limit, offset int) ([]*model.Repository, error) {
	return s.queryRepositories(ctx,
		`SELECT `+repositoryColumns+` FROM repositories
		 WHERE valid OR NOT $1
		 ORDER BY stargazers_count DESC, id
		 LIMIT $2 OFFSET $3`,
		validOnly, limit, offset,
	)
}

func (s *Store) queryRepositories(ctx context.Context, sql string, args ...any) ([]*model.Repository, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}
	defer rows.Close()

	var repos []*model.Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning repository: %w", err)
		}
		repos = append(repos, repo)
	}
	return repos, rows.Err()
}

// UpsertRepository inserts or replaces the repository keyed by (owner_name, name).
func (s *Store) UpsertRepository(ctx context.Context, repo *model.Repository) error {
	history := repo.StargazersCountHistory
	if history == nil {
		history = []model.StargazersCountHistoryItem{}
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO repositories (
			github_id, owner_name, owner_avatar_url, name, description, default_branch,
			github_url, homepage_url, stargazers_count, pushed_at, github_created_at, last_commit_at,
			archived, valid, target_item_names, image_urls, featured_image_url, stargazers_count_history,
			images_fetched_at, content_fetched_at, cleaned_recently, license, week_stargazers_count,
			is_lua, is_vim
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21,
			$22, $23, $24, $25)
		ON CONFLICT (owner_name, name) DO UPDATE SET
			github_id = EXCLUDED.github_id,
			owner_avatar_url = EXCLUDED.owner_avatar_url,
			description = EXCLUDED.description,
			default_branch = EXCLUDED.default_branch,
			github_url = EXCLUDED.github_url,
			homepage_url = EXCLUDED.homepage_url,
			stargazers_count = EXCLUDED.stargazers_count,
			pushed_at = EXCLUDED.pushed_at,
			github_created_at = EXCLUDED.github_created_at,
			last_commit_at = EXCLUDED.last_commit_at,
			archived = EXCLUDED.archived,
			valid = EXCLUDED.valid,
			target_item_names = EXCLUDED.target_item_names,
			image_urls = EXCLUDED.image_urls,
			featured_image_url = EXCLUDED.featured_image_url,
			stargazers_count_history = EXCLUDED.stargazers_count_history,
			images_fetched_at = EXCLUDED.images_fetched_at,
			content_fetched_at = EXCLUDED.content_fetched_at,
			cleaned_recently = EXCLUDED.cleaned_recently,
			license = EXCLUDED.license,
			week_stargazers_count = EXCLUDED.week_stargazers_count,
			is_lua = EXCLUDED.is_lua,
			is_vim = EXCLUDED.is_vim,
			updated_at = NOW()`,
		repo.GithubID, repo.OwnerName, repo.OwnerAvatarURL, repo.Name, repo.Description, repo.DefaultBranch,
		repo.GithubURL, repo.HomepageURL, repo.StargazersCount,
		nullTime(repo.PushedAt), nullTime(repo.GithubCreatedAt), nullTime(repo.LastCommitAt),
		repo.Archived, repo.Valid, nonNil(repo.TargetItemNames), nonNil(repo.ImageURLs), repo.FeaturedImageURL, history,
		repo.ImagesFetchedAt, repo.ContentFetchedAt, repo.CleanedRecently, repo.License, repo.WeekStargazersCount,
		repo.IsLua, repo.IsVim,
	)
	if err != nil {
		return fmt.Errorf("upserting repository %s: %w", repo.Key(), err)
	}
	return nil
}

// GetLastRunAt returns when jobName last completed a full run, or nil if it
// never did. Partial runs are ignored.
func (s *Store) GetLastRunAt(ctx context.Context, jobName string) (*time.Time, error) {
	var last *time.Time
	err := s.db.QueryRow(ctx,
		`SELECT MAX(created_at) FROM reports WHERE job_name = $1 AND NOT partial`,
		jobName,
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("getting last run of %s: %w", jobName, err)
	}
	return last, nil
}

// CreateReport stores a run report and fills in its id and creation time.
func (s *Store) CreateReport(ctx context.Context, report *model.RunReport) error {
	results := report.Results
	if results == nil {
		results = model.Results{}
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO reports (job_name, elapsed_time_ms, results, partial) VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		report.JobName, report.ElapsedTime.Milliseconds(), results, report.Partial,
	).Scan(&report.ID, &report.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	return nil
}

// ListReports returns the most recent reports, optionally for one job only.
func (s *Store) ListReports(ctx context.Context, jobName string, limit int) ([]model.RunReport, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, job_name, elapsed_time_ms, results, partial, created_at FROM reports
		 WHERE $1 = '' OR job_name = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		jobName, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	var reports []model.RunReport
	for rows.Next() {
		var (
			r         model.RunReport
			elapsedMs int64
		)
		if err := rows.Scan(&r.ID, &r.JobName, &elapsedMs, &r.Results, &r.Partial, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		r.ElapsedTime = time.Duration(elapsedMs) * time.Millisecond
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func scanRepository(row pgx.Row) (*model.Repository, error) {
	var r model.Repository
	var pushedAt, createdAt, lastCommitAt *time.Time
	err := row.Scan(
		&r.ID, &r.GithubID, &r.OwnerName, &r.OwnerAvatarURL, &r.Name, &r.Description, &r.DefaultBranch,
		&r.GithubURL, &r.HomepageURL, &r.StargazersCount, &pushedAt, &createdAt, &lastCommitAt,
		&r.Archived, &r.Valid, &r.TargetItemNames, &r.ImageURLs, &r.FeaturedImageURL, &r.StargazersCountHistory,
		&r.ImagesFetchedAt, &r.ContentFetchedAt, &r.CleanedRecently, &r.License, &r.WeekStargazersCount,
		&r.IsLua, &r.IsVim, &r.DBCreatedAt, &r.DBUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.PushedAt = valueOf(pushedAt)
	r.GithubCreatedAt = valueOf(createdAt)
	r.LastCommitAt = valueOf(lastCommitAt)
	return &r, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func valueOf(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
