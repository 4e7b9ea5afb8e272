// Package browser provides a headless-browser Fetcher used when the plain
// HTTP client receives bot-challenge pages instead of the rendered listing.
package browser

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/akulagin/spbebonds/internal/config"
	"github.com/akulagin/spbebonds/internal/utils"
)

// Fetcher drives a headless Chrome instance to fetch fully rendered pages.
// It satisfies the same contract as the HTTP fetcher, so the aggregator does
// not know which one it is walking pages with.
type Fetcher struct {
	cfg    config.BrowserConfig
	logger utils.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// New creates a browser fetcher with a shared Chrome allocator. Call Close
// when the run is finished.
func New(cfg config.BrowserConfig, logger utils.Logger) *Fetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		logger:      logger,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
	}
}

// Fetch navigates to the URL, waits for the configured selector to become
// visible and returns the rendered document HTML.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	timeout := f.cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	tabCtx, tabCancel := chromedp.NewContext(f.allocCtx)
	defer tabCancel()

	runCtx, cancel := context.WithTimeout(tabCtx, timeout)
	defer cancel()

	// Propagate caller cancellation into the tab context.
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(f.cfg.WaitVisible, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", utils.WrapError(err, utils.ErrCodeNetworkTransient, "browser fetch failed")
	}

	f.logger.Debugf("browser fetched %s (%d bytes)", url, len(html))
	return html, nil
}

// Close releases the Chrome allocator.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// LooksBlocked reports whether a fetched page is a bot challenge or an
// otherwise unrendered shell rather than real content. It is the trigger for
// switching from the HTTP fetcher to the browser.
func LooksBlocked(page string) bool {
	if len(strings.TrimSpace(page)) < 512 {
		return true
	}
	lower := strings.ToLower(page)
	for _, marker := range []string{
		"captcha",
		"access denied",
		"checking your browser",
		"ddos-guard",
		"enable javascript and cookies",
	} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
