// internal/staleness/staleness.go
package staleness

import (
	"time"

	"colorscheme-indexer/internal/model"
)

// IsFetchDue decides whether a repository's content must be fetched again.
// The checks run in order: a repository never fetched is due, a repository
// found invalid is never due, the first run fetches everything, and otherwise
// only repositories committed to since the last run are due.
func IsFetchDue(old *model.Repository, lastCommitAt time.Time, lastRunAt *time.Time) bool {
	if old == nil || old.ContentFetchedAt == nil {
		return true
	}
	if !old.Valid {
		return false
	}
	if lastRunAt == nil {
		return true
	}
	return lastCommitAt.After(*lastRunAt)
}
