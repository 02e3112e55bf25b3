// internal/transport/client.go
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"colorscheme-indexer/internal/github"
)

// ValidImageContentTypes are the content types an image URL may serve.
var ValidImageContentTypes = []string{"image/jpeg", "image/png", "image/webp"}

const maxBodySize = 5 << 20

// Client issues the raw HEAD, GET and POST requests that do not go through
// the GitHub API, such as image checks and raw file content. HEAD and GET
// are paced by a limiter and optionally cached.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	cache   *Cache
	logger  *slog.Logger
}

// NewClient creates a Client. cache may be nil to disable caching.
func NewClient(timeout time.Duration, requestsPerSecond float64, cache *Cache, logger *slog.Logger) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		cache:   cache,
		logger:  logger,
	}
}

// do performs a cacheable request. Only 200 and 404 responses are cached.
func (c *Client) do(ctx context.Context, method, url string) (*Response, error) {
	if c.cache != nil {
		cached, found, err := c.cache.Get(ctx, method, url)
		if err != nil {
			c.logger.Warn("Cache read failed", "url", url, "error", err)
		} else if found {
			c.logger.Debug("Cache hit", "method", method, "url", url)
			return cached, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Sending request", "method", method, "url", url)
	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	resp := &Response{
		Status:      httpResp.StatusCode,
		ContentType: httpResp.Header.Get("Content-Type"),
	}
	if method == http.MethodGet && httpResp.StatusCode == http.StatusOK {
		resp.Body, err = io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
		if err != nil {
			return nil, fmt.Errorf("reading body of %s: %w", url, err)
		}
	}

	if c.cache != nil && (resp.Status == http.StatusOK || resp.Status == http.StatusNotFound) {
		if err := c.cache.Put(ctx, method, url, resp); err != nil {
			c.logger.Warn("Cache write failed", "url", url, "error", err)
		}
	}
	return resp, nil
}

// CheckURL issues a redirect-following HEAD on url. Any 2xx is Success,
// 404 and 410 are NotFound and everything else, including failed requests,
// is Transient.
func (c *Client) CheckURL(ctx context.Context, url string) github.Outcome {
	resp, err := c.do(ctx, http.MethodHead, url)
	if err != nil {
		c.logger.Error("HEAD request failed", "url", url, "error", err)
		return github.Transient
	}
	switch {
	case resp.Status >= 200 && resp.Status < 300:
		return github.Success
	case resp.Status == http.StatusNotFound || resp.Status == http.StatusGone:
		return github.NotFound
	default:
		c.logger.Warn("Unexpected status", "url", url, "status", resp.Status)
		return github.Transient
	}
}

// IsImageURLValid reports whether url returns 200 with an allowed image content type.
func (c *Client) IsImageURLValid(ctx context.Context, url string) bool {
	resp, err := c.do(ctx, http.MethodHead, url)
	if err != nil {
		c.logger.Error("HEAD image request failed", "url", url, "error", err)
		return false
	}
	if resp.Status != http.StatusOK {
		c.logger.Debug("Image URL not valid", "url", url, "status", resp.Status)
		return false
	}
	return slices.Contains(ValidImageContentTypes, mediaType(resp.ContentType))
}

// GetRaw returns the body of url. A 404 is NotFound; a failed request or
// any other status is Transient.
func (c *Client) GetRaw(ctx context.Context, url string) github.Result[string] {
	resp, err := c.do(ctx, http.MethodGet, url)
	if err != nil {
		c.logger.Error("GET request failed", "url", url, "error", err)
		return github.Result[string]{Outcome: github.Transient, Err: err}
	}
	switch resp.Status {
	case http.StatusOK:
		return github.Result[string]{Value: string(resp.Body), Outcome: github.Success}
	case http.StatusNotFound:
		c.logger.Warn("404 Not found", "url", url)
		return github.Result[string]{Outcome: github.NotFound}
	default:
		c.logger.Error("Unexpected status", "url", url, "status", resp.Status)
		return github.Result[string]{Outcome: github.Transient, Err: fmt.Errorf("unexpected status %d", resp.Status)}
	}
}

// Post sends body to url. It is never cached nor rate limited.
func (c *Client) Post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("posting to %s: %w", url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("posting to %s: unexpected status %d", url, resp.StatusCode)
	}
	return nil
}

func mediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}
