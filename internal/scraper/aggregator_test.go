package scraper

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/akulagin/spbebonds/internal/config"
	"github.com/akulagin/spbebonds/internal/utils"
	"github.com/akulagin/spbebonds/pkg/types"
)

// fakeFetcher serves canned pages keyed by URL and records every request.
type fakeFetcher struct {
	pages    map[string]string
	err      map[string]error
	requests []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.requests = append(f.requests, url)
	if err, ok := f.err[url]; ok {
		return "", err
	}
	page, ok := f.pages[url]
	if !ok {
		return "", utils.NewError(utils.ErrCodeNetworkPermanent, "unexpected URL "+url)
	}
	return page, nil
}

// listingPayload renders a listing page payload with the given ISINs and
// pagination envelope.
func listingPayload(page, totalPages, totalElements int, isins ...string) string {
	var items []string
	for i, isin := range isins {
		items = append(items, fmt.Sprintf(
			`{"srtsCode":"BOND-%s","sisinCode":"%s","fullName":"Облигация %d","securityKind":"Облигация"}`,
			isin, isin, i+1))
	}
	return fmt.Sprintf(
		`{"pageData":{"content":[%s],"totalPages":%d,"totalElements":%d,"number":%d}}`,
		strings.Join(items, ","), totalPages, totalElements, page-1)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Source.BaseURL = "https://example.test"
	cfg.Source.ListingPath = "/list/"
	return cfg
}

func isins(n, offset int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("RU000A10%04d", offset+i)
	}
	return out
}

func TestCollectAllWalksAllPages(t *testing.T) {
	cfg := testConfig()
	fetcher := &fakeFetcher{pages: map[string]string{
		cfg.ListingURL(1): listingPayload(1, 3, 25, isins(10, 0)...),
		cfg.ListingURL(2): listingPayload(2, 3, 25, isins(10, 10)...),
		cfg.ListingURL(3): listingPayload(3, 3, 25, isins(5, 20)...),
	}}

	agg := NewAggregator(cfg, fetcher, utils.NewLoggerWithLevel(utils.ErrorLevel), nil)
	records, stats, err := agg.CollectAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 25 {
		t.Errorf("got %d records, want 25", len(records))
	}
	if stats.PagesFetched != 3 {
		t.Errorf("pages fetched = %d, want 3", stats.PagesFetched)
	}
	if len(fetcher.requests) != 3 {
		t.Errorf("made %d requests, want 3: %v", len(fetcher.requests), fetcher.requests)
	}
}

func TestCollectAllStopsEarlyOnTotalElements(t *testing.T) {
	cfg := testConfig()
	// The envelope claims 3 pages but all 8 records arrive in the first two.
	fetcher := &fakeFetcher{pages: map[string]string{
		cfg.ListingURL(1): listingPayload(1, 3, 8, isins(4, 0)...),
		cfg.ListingURL(2): listingPayload(2, 3, 8, isins(4, 4)...),
		cfg.ListingURL(3): listingPayload(3, 3, 8, isins(4, 8)...),
	}}

	agg := NewAggregator(cfg, fetcher, utils.NewLoggerWithLevel(utils.ErrorLevel), nil)
	records, _, err := agg.CollectAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 8 {
		t.Errorf("got %d records, want 8", len(records))
	}
	if len(fetcher.requests) != 2 {
		t.Errorf("made %d requests, want 2 (early stop)", len(fetcher.requests))
	}
}

func TestCollectAllSkipsFailedPage(t *testing.T) {
	cfg := testConfig()
	fetcher := &fakeFetcher{
		pages: map[string]string{
			cfg.ListingURL(1): listingPayload(1, 3, 25, isins(10, 0)...),
			cfg.ListingURL(3): listingPayload(3, 3, 25, isins(5, 20)...),
		},
		err: map[string]error{
			cfg.ListingURL(2): utils.NewError(utils.ErrCodeNetworkTransient, "connection reset"),
		},
	}

	agg := NewAggregator(cfg, fetcher, utils.NewLoggerWithLevel(utils.ErrorLevel), nil)
	records, stats, err := agg.CollectAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 15 {
		t.Errorf("got %d records, want 15 (page 2 skipped)", len(records))
	}
	if stats.PagesSkipped != 1 {
		t.Errorf("pages skipped = %d, want 1", stats.PagesSkipped)
	}
	if len(stats.Warnings) == 0 {
		t.Error("expected a warning for the skipped page")
	}
}

func TestCollectAllDeduplicatesByISIN(t *testing.T) {
	cfg := testConfig()
	shared := isins(5, 0)
	fetcher := &fakeFetcher{pages: map[string]string{
		cfg.ListingURL(1): listingPayload(1, 2, 8, shared...),
		// Page 2 repeats two ISINs from page 1.
		cfg.ListingURL(2): listingPayload(2, 2, 8, shared[0], shared[1], "RU000A109998", "RU000A109999"),
	}}

	agg := NewAggregator(cfg, fetcher, utils.NewLoggerWithLevel(utils.ErrorLevel), nil)
	records, stats, err := agg.CollectAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 7 {
		t.Errorf("got %d records, want 7 unique", len(records))
	}
	if stats.Duplicates != 2 {
		t.Errorf("duplicates = %d, want 2", stats.Duplicates)
	}
}

func TestCollectAllZeroRecordsFails(t *testing.T) {
	cfg := testConfig()
	fetcher := &fakeFetcher{
		err: map[string]error{
			cfg.ListingURL(1): utils.NewError(utils.ErrCodeNetworkTransient, "timeout"),
		},
	}

	agg := NewAggregator(cfg, fetcher, utils.NewLoggerWithLevel(utils.ErrorLevel), nil)
	_, _, err := agg.CollectAll(context.Background())
	if err == nil {
		t.Fatal("expected error when no records could be collected")
	}
	if utils.CodeOf(err) != utils.ErrCodeExtractionFailed {
		t.Errorf("code = %s", utils.CodeOf(err))
	}
}

func TestCollectAllSinglePageWithoutEnvelope(t *testing.T) {
	cfg := testConfig()
	// A bare array payload carries no pagination; the walk must stop at one.
	fetcher := &fakeFetcher{pages: map[string]string{
		cfg.ListingURL(1): `[{"sisinCode":"RU000A1038V6","securityKind":"Облигация"}]`,
	}}

	agg := NewAggregator(cfg, fetcher, utils.NewLoggerWithLevel(utils.ErrorLevel), nil)
	records, _, err := agg.CollectAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("got %d records, want 1", len(records))
	}
	if len(fetcher.requests) != 1 {
		t.Errorf("made %d requests, want 1", len(fetcher.requests))
	}
}

func TestFilterByKind(t *testing.T) {
	records := []types.RawRecord{
		{"sisinCode": "RU000A1000A1", "securityKind": "Облигация"},
		{"sisinCode": "RU000A1000B2", "securityKind": "Акция"},
		{"sisinCode": "RU000A1000C3", "securityKind": "Облигации внешних займов"},
	}

	kept := FilterByKind(records, "Облигац")
	if len(kept) != 2 {
		t.Fatalf("got %d records, want 2", len(kept))
	}
	for _, rec := range kept {
		if !strings.Contains(rec.String("securityKind"), "Облигац") {
			t.Errorf("non-bond record kept: %v", rec)
		}
	}
}
