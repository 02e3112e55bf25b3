// internal/model/models.go
package model

import (
	"slices"
	"sort"
	"time"
)

const (
	// MaxStargazersHistoryDays bounds the stargazers count history, one entry per day.
	MaxStargazersHistoryDays = 30
	// WeekTrendingDays is the window of WeekStargazersCount.
	WeekTrendingDays = 7

	historyDateLayout = "2006-01-02"
)

// Repository is a color scheme repository as it is stored.
// It is keyed by (OwnerName, Name).
type Repository struct {
	ID                     int64                        `json:"-"`
	GithubID               int64                        `json:"github_id"`
	OwnerName              string                       `json:"owner_name"`
	OwnerAvatarURL         string                       `json:"owner_avatar_url"`
	Name                   string                       `json:"name"`
	Description            *string                      `json:"description"`
	DefaultBranch          string                       `json:"default_branch"`
	GithubURL              string                       `json:"github_url"`
	HomepageURL            string                       `json:"homepage_url"`
	StargazersCount        int                          `json:"stargazers_count"`
	WeekStargazersCount    int                          `json:"week_stargazers_count"`
	License                string                       `json:"license"`
	PushedAt               time.Time                    `json:"pushed_at"`
	GithubCreatedAt        time.Time                    `json:"github_created_at"`
	LastCommitAt           time.Time                    `json:"last_commit_at"`
	Archived               bool                         `json:"archived"`
	Valid                  bool                         `json:"valid"`
	IsLua                  bool                         `json:"is_lua"`
	IsVim                  bool                         `json:"is_vim"`
	TargetItemNames        []string                     `json:"target_item_names"`
	ImageURLs              []string                     `json:"image_urls"`
	FeaturedImageURL       *string                      `json:"featured_image_url"`
	StargazersCountHistory []StargazersCountHistoryItem `json:"stargazers_count_history"`
	ImagesFetchedAt        *time.Time                   `json:"images_fetched_at"`
	ContentFetchedAt       *time.Time                   `json:"content_fetched_at"`
	CleanedRecently        bool                         `json:"cleaned_recently"`
	DBCreatedAt            time.Time                    `json:"-"`
	DBUpdatedAt            time.Time                    `json:"-"`
}

// StargazersCountHistoryItem is a repository's stargazers count on a calendar day (YYYY-MM-DD, UTC).
type StargazersCountHistoryItem struct {
	Date            string `json:"date"`
	StargazersCount int    `json:"stargazers_count"`
}

// FileTreeEntry is one object of a repository tree. Path is relative to the repository root.
type FileTreeEntry struct {
	Path string
	Type string
	SHA  string
}

const (
	BlobEntry = "blob"
	TreeEntry = "tree"
)

// Results holds the arbitrary result fields of a job run.
type Results map[string]any

// RunReport records one job run. It is never mutated after creation.
type RunReport struct {
	ID          int64         `json:"id"`
	JobName     string        `json:"job_name"`
	ElapsedTime time.Duration `json:"elapsed_time"`
	Results     Results       `json:"results"`
	// Partial is set for runs restricted to some repositories.
	Partial   bool      `json:"partial"`
	CreatedAt time.Time `json:"created_at"`
}

// RunContext is what a job run knows before it starts.
type RunContext struct {
	// LastRunAt is when the same job last finished, nil on the first run.
	LastRunAt *time.Time
	// Force treats every repository as fetch-due.
	Force bool
	// Only restricts the run to these "owner/name" keys when not empty.
	Only []string
}

// Key returns "owner/name".
func (r *Repository) Key() string {
	return r.OwnerName + "/" + r.Name
}

// Clone returns a deep copy, used to keep the previously stored state around while a copy is mutated.
func (r *Repository) Clone() *Repository {
	if r == nil {
		return nil
	}
	c := *r
	c.TargetItemNames = slices.Clone(r.TargetItemNames)
	c.ImageURLs = slices.Clone(r.ImageURLs)
	c.StargazersCountHistory = slices.Clone(r.StargazersCountHistory)
	if r.FeaturedImageURL != nil {
		v := *r.FeaturedImageURL
		c.FeaturedImageURL = &v
	}
	if r.Description != nil {
		v := *r.Description
		c.Description = &v
	}
	if r.ImagesFetchedAt != nil {
		v := *r.ImagesFetchedAt
		c.ImagesFetchedAt = &v
	}
	if r.ContentFetchedAt != nil {
		v := *r.ContentFetchedAt
		c.ContentFetchedAt = &v
	}
	return &c
}

// AppendStargazersCount records today's stargazers count. An existing entry for
// today is replaced, and the oldest entries are dropped to stay within
// MaxStargazersHistoryDays.
func (r *Repository) AppendStargazersCount(now time.Time) {
	today := DateOf(now)

	// later entries win when a date appears more than once
	byDate := make(map[string]StargazersCountHistoryItem, len(r.StargazersCountHistory))
	for _, item := range r.StargazersCountHistory {
		if item.Date != today {
			byDate[item.Date] = item
		}
	}

	history := make([]StargazersCountHistoryItem, 0, len(byDate)+1)
	for _, item := range byDate {
		history = append(history, item)
	}
	sort.Slice(history, func(i, j int) bool {
		return history[i].Date < history[j].Date
	})

	if over := len(history) + 1 - MaxStargazersHistoryDays; over > 0 {
		history = history[over:]
	}

	r.StargazersCountHistory = append(history, StargazersCountHistoryItem{
		Date:            today,
		StargazersCount: r.StargazersCount,
	})
}

// TrendingStargazersCount returns how many stargazers were gained over the
// last days history entries: the newest count minus the count days-1 entries
// before it, or the oldest one when the history is shorter.
func (r *Repository) TrendingStargazersCount(days int) int {
	n := len(r.StargazersCountHistory)
	if n == 0 || days <= 0 {
		return 0
	}
	from := max(n-days, 0)
	return r.StargazersCountHistory[n-1].StargazersCount - r.StargazersCountHistory[from].StargazersCount
}

// ApplyImageInvariants clears images of invalid repositories and drops a
// featured image that is no longer part of the image set.
func (r *Repository) ApplyImageInvariants() {
	if !r.Valid || r.ImageURLs == nil {
		r.ImageURLs = []string{}
	}
	if r.FeaturedImageURL != nil && !slices.Contains(r.ImageURLs, *r.FeaturedImageURL) {
		r.FeaturedImageURL = nil
	}
}

// DateOf returns the UTC calendar date of t.
func DateOf(t time.Time) string {
	return t.UTC().Format(historyDateLayout)
}
