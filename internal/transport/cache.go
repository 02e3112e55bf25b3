// internal/transport/cache.go
package transport

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS responses (
	key          TEXT PRIMARY KEY,
	status       INTEGER NOT NULL,
	content_type TEXT NOT NULL,
	body         BLOB,
	stored_at    INTEGER NOT NULL
)`

// Response is what the cache keeps of an HTTP response.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Cache stores responses in SQLite keyed by method and URL.
// Entries older than the expiry are ignored.
type Cache struct {
	db          *sql.DB
	expireAfter time.Duration
	now         func() time.Time
}

// OpenCache opens or creates the cache database at path.
func OpenCache(ctx context.Context, path string, expireAfter time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	if _, err := db.ExecContext(ctx, cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return &Cache{db: db, expireAfter: expireAfter, now: time.Now}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func cacheKey(method, url string) string {
	return method + " " + url
}

// Get returns the cached response for method and url if it has not expired.
func (c *Cache) Get(ctx context.Context, method, url string) (*Response, bool, error) {
	var (
		resp     Response
		storedAt int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT status, content_type, body, stored_at FROM responses WHERE key = ?`,
		cacheKey(method, url),
	).Scan(&resp.Status, &resp.ContentType, &resp.Body, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache: %w", err)
	}
	if c.now().Sub(time.Unix(storedAt, 0)) > c.expireAfter {
		return nil, false, nil
	}
	return &resp, true, nil
}

// Put stores resp for method and url, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, method, url string, resp *Response) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO responses (key, status, content_type, body, stored_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET status = excluded.status, content_type = excluded.content_type,
		 body = excluded.body, stored_at = excluded.stored_at`,
		cacheKey(method, url), resp.Status, resp.ContentType, resp.Body, c.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}

// Purge removes expired entries.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM responses WHERE stored_at < ?`,
		c.now().Add(-c.expireAfter).Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("purging cache: %w", err)
	}
	return res.RowsAffected()
}
