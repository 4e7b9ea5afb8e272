// Package scraper fetches listing and detail pages from the exchange and
// aggregates paginated bond records.
package scraper

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/akulagin/spbebonds/internal/config"
	"github.com/akulagin/spbebonds/internal/extract"
	"github.com/akulagin/spbebonds/internal/utils"
)

// Fetcher retrieves one page of text by URL. Implementations include the
// plain HTTP client and the headless browser fallback.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HTTPFetcher is the default Fetcher: a rate-limited HTTP client with user
// agent rotation, retry with exponential backoff and charset-aware decoding.
type HTTPFetcher struct {
	client     *http.Client
	limiter    *rate.Limiter
	userAgents []string
	retryCount int
	retryBase  time.Duration
	logger     utils.Logger

	mu      sync.Mutex
	uaIndex int
}

// NewHTTPFetcher builds a fetcher from the scraping configuration.
func NewHTTPFetcher(cfg config.ScrapingConfig, logger utils.Logger) *HTTPFetcher {
	interval := cfg.PageDelay
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		userAgents: cfg.UserAgents,
		retryCount: cfg.RetryCount,
		retryBase:  cfg.RetryBackoffBase,
		logger:     logger,
	}
}

// Fetch retrieves the URL, retrying transient failures with exponential
// backoff and jitter. 4xx responses other than 429 fail immediately.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < f.retryCount; attempt++ {
		if attempt > 0 {
			delay := f.backoff(attempt)
			f.logger.Debugf("retrying %s in %v (attempt %d/%d)", url, delay, attempt+1, f.retryCount)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return "", err
		}

		body, err := f.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !utils.IsRetryableError(err) {
			return "", err
		}
	}

	return "", utils.WrapError(lastErr, utils.ErrCodeNetworkTransient,
		fmt.Sprintf("all %d attempts failed for %s", f.retryCount, url))
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", utils.WrapError(err, utils.ErrCodeNetworkPermanent, "invalid request")
	}

	req.Header.Set("User-Agent", f.nextUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.5")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", utils.WrapError(err, utils.ErrCodeNetworkTransient, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		code := utils.ErrCodeNetworkPermanent
		if utils.RetryableStatusCode(resp.StatusCode) {
			code = utils.ErrCodeNetworkTransient
		}
		return "", utils.NewError(code, fmt.Sprintf("unexpected status %d for %s", resp.StatusCode, url))
	}

	// charset.NewReader sniffs the declared encoding and converts to UTF-8;
	// DecodeText covers responses that lie about or omit their charset.
	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		reader = resp.Body
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", utils.WrapError(err, utils.ErrCodeNetworkTransient, "failed to read response body")
	}

	return extract.DecodeText(raw)
}

// nextUserAgent rotates through the configured user agent list.
func (f *HTTPFetcher) nextUserAgent() string {
	if len(f.userAgents) == 0 {
		return "Mozilla/5.0 (compatible; spbebonds/1.0)"
	}
	f.mu.Lock()
	ua := f.userAgents[f.uaIndex%len(f.userAgents)]
	f.uaIndex++
	f.mu.Unlock()
	return ua
}

// backoff returns the delay before the given retry attempt: exponential in
// the attempt number with up to 25% random jitter.
func (f *HTTPFetcher) backoff(attempt int) time.Duration {
	delay := f.retryBase
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	return delay + jitter
}
