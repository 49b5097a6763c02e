package doseparser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/juju/ratelimit"
	"github.com/tripsit/erowid-doses/doseparser/entities"
	"github.com/tripsit/erowid-doses/logging"
	"golang.org/x/text/encoding/charmap"
)

var (
	// ErrBlocked means the source site refused us (403 or an explicit
	// block banner). The coordinator stops enqueuing when it sees this.
	ErrBlocked = errors.New("blocked by source site")

	// ErrPermanent marks failures that retrying cannot fix (404,
	// malformed URL, unsupported content).
	ErrPermanent = errors.New("permanent fetch failure")
)

// maxBodySize caps how much of a report page is read. Erowid pages are tens
// of kilobytes; anything bigger is not a report.
const maxBodySize = 5 << 20

// Fetcher retrieves pages with a bounded timeout, bounded retries with
// exponential backoff, and a shared outbound token bucket so the worker pool
// never exceeds the configured request rate. Safe for concurrent use.
type Fetcher struct {
	client    *http.Client
	bucket    *ratelimit.Bucket
	retries   int
	userAgent string
	backoff   time.Duration
}

// NewFetcher builds a fetcher. retries is the total attempt count per URL,
// requestsPerSecond bounds outbound traffic across all callers.
func NewFetcher(timeout time.Duration, retries int, requestsPerSecond float64, userAgent string) *Fetcher {
	if retries < 1 {
		retries = 1
	}
	capacity := int64(requestsPerSecond)
	if capacity < 1 {
		capacity = 1
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		bucket:    ratelimit.NewBucketWithRate(requestsPerSecond, capacity),
		retries:   retries,
		userAgent: userAgent,
		backoff:   time.Second,
	}
}

// FetchPage fetches one report page. The returned page always carries the
// URL; Err is set instead of Text when the fetch failed. Errors never
// propagate as panics and transient failures are retried up to the bound.
func (f *Fetcher) FetchPage(ctx context.Context, pageURL string) entities.ReportPage {
	page := entities.ReportPage{URL: pageURL}

	parsed, err := url.Parse(pageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		page.Err = fmt.Errorf("%w: malformed URL %q", ErrPermanent, pageURL)
		return page
	}

	for attempt := 1; attempt <= f.retries; attempt++ {
		if err := f.waitTurn(ctx); err != nil {
			page.Err = err
			return page
		}

		text, err := f.fetchOnce(ctx, pageURL)
		if err == nil {
			page.Text = text
			return page
		}
		if errors.Is(err, ErrPermanent) || errors.Is(err, ErrBlocked) || ctx.Err() != nil {
			page.Err = err
			return page
		}

		page.Err = err
		if attempt < f.retries {
			logging.Debug("Retrying fetch", "url", pageURL, "attempt", attempt, "error", err)
			if err := f.sleepBackoff(ctx, attempt); err != nil {
				page.Err = err
				return page
			}
		}
	}

	page.Err = fmt.Errorf("gave up after %d attempts: %w", f.retries, page.Err)
	return page
}

// waitTurn blocks until the shared rate limiter grants a token or the
// context is cancelled.
func (f *Fetcher) waitTurn(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	delay := f.bucket.Take(1)
	if delay <= 0 {
		return nil
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fetchOnce performs a single GET and classifies the outcome.
func (f *Fetcher) fetchOnce(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		// Timeouts and connection resets land here; all transient.
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn("Failed to close response body", "url", pageURL, "error", err)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return "", ErrBlocked
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("server error: status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: status %d", ErrPermanent, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	text, err := decodePage(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPermanent, err)
	}

	// Erowid serves a plain "Blocked" page with status 200 once it has
	// decided to throttle a client.
	head := text
	if len(head) > 500 {
		head = head[:500]
	}
	if strings.Contains(head, "Blocked") {
		return "", ErrBlocked
	}

	return text, nil
}

// decodePage returns the page as UTF-8. Older Erowid pages are served as
// ISO-8859-1, so invalid UTF-8 gets a Latin-1 fallback decode.
func decodePage(body []byte) (string, error) {
	if utf8.Valid(body) {
		return string(body), nil
	}
	decoded, err := io.ReadAll(charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(body)))
	if err != nil {
		return "", fmt.Errorf("failed to decode page: %w", err)
	}
	return string(decoded), nil
}

// sleepBackoff waits 1s, 2s, 4s... plus jitter between attempts.
func (f *Fetcher) sleepBackoff(ctx context.Context, attempt int) error {
	delay := f.backoff << (attempt - 1)
	if jitter := int64(f.backoff / 2); jitter > 0 {
		delay += time.Duration(rand.Int63n(jitter))
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
