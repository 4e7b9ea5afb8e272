package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/akulagin/spbebonds/internal/config"
	"github.com/akulagin/spbebonds/internal/extract"
	"github.com/akulagin/spbebonds/internal/monitoring"
	"github.com/akulagin/spbebonds/internal/utils"
	"github.com/akulagin/spbebonds/pkg/types"
)

// rawKeyISIN is the ISIN field name used by listing payload records.
const rawKeyISIN = "sisinCode"

// AggregateStats summarizes one pagination walk.
type AggregateStats struct {
	PagesFetched int
	PagesSkipped int
	Records      int
	Duplicates   int
	Warnings     []string
}

// Aggregator walks the listing pages sequentially, extracting and merging
// records until the pagination envelope says the dataset is complete.
type Aggregator struct {
	fetch   Fetcher
	locator *extract.Locator
	cfg     *config.Config
	logger  utils.Logger
	metrics *monitoring.Metrics
}

// NewAggregator wires a fetcher and locator into a pagination walker.
func NewAggregator(cfg *config.Config, fetch Fetcher, logger utils.Logger, metrics *monitoring.Metrics) *Aggregator {
	return &Aggregator{
		fetch:   fetch,
		locator: extract.NewLocator(logger),
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// CollectAll fetches every listing page and returns the deduplicated record
// set. A failing page is skipped with a warning; the walk fails outright
// only when it produces zero records.
func (a *Aggregator) CollectAll(ctx context.Context) ([]types.RawRecord, *AggregateStats, error) {
	stats := &AggregateStats{}
	seen := make(map[string]bool)
	var records []types.RawRecord

	totalPages := 0
	totalElements := 0

	for page := 1; page <= a.cfg.Scraping.MaxPages; page++ {
		if ctx.Err() != nil {
			return records, stats, ctx.Err()
		}

		result, err := a.fetchPage(ctx, page)
		if err != nil {
			stats.PagesSkipped++
			stats.Warnings = append(stats.Warnings, fmt.Sprintf("page %d skipped: %v", page, err))
			a.logger.Warnf("page %d skipped: %v", page, err)

			if totalPages == 0 {
				// No envelope seen yet; without it there is no way to know
				// whether more pages exist.
				break
			}
			if page >= totalPages {
				break
			}
			continue
		}

		stats.PagesFetched++
		a.metrics.PageFetched(page)

		added, dups := a.merge(&records, seen, result.Records)
		stats.Duplicates += dups
		a.logger.Infof("page %d: %d records (%d new) via %s", page, len(result.Records), added, result.Strategy)

		p := result.Pagination
		if p == nil {
			if page == 1 {
				// Single page dataset without an envelope.
				break
			}
			stats.Warnings = append(stats.Warnings,
				fmt.Sprintf("page %d carried no pagination envelope", page))
			continue
		}

		if totalPages == 0 {
			totalPages = p.TotalPages
			totalElements = p.TotalElements
		} else if p.TotalPages != totalPages || (p.TotalElements > 0 && p.TotalElements != totalElements) {
			warning := fmt.Sprintf(
				"pagination changed mid-walk on page %d: totalPages %d->%d totalElements %d->%d",
				page, totalPages, p.TotalPages, totalElements, p.TotalElements)
			stats.Warnings = append(stats.Warnings, warning)
			a.logger.Warn(utils.NewError(utils.ErrCodePaginationInconsist, warning).Error())
			if p.TotalPages > totalPages {
				totalPages = p.TotalPages
			}
		}

		if totalElements > 0 && len(records) >= totalElements {
			break
		}
		if page >= totalPages {
			break
		}
	}

	stats.Records = len(records)
	a.metrics.RecordsCollected(len(records))

	if totalElements > 0 && len(records) < totalElements {
		warning := fmt.Sprintf("collected %d records, envelope promised %d", len(records), totalElements)
		stats.Warnings = append(stats.Warnings, warning)
		a.logger.Warn(utils.NewError(utils.ErrCodePaginationInconsist, warning).Error())
	}

	if len(records) == 0 {
		return nil, stats, utils.NewError(utils.ErrCodeExtractionFailed,
			"pagination walk produced zero records")
	}
	return records, stats, nil
}

// fetchPage retrieves and extracts one listing page.
func (a *Aggregator) fetchPage(ctx context.Context, page int) (*types.ExtractionResult, error) {
	url := a.cfg.ListingURL(page)

	body, err := a.fetch.Fetch(ctx, url)
	if err != nil {
		a.metrics.PageFailed()
		return nil, err
	}

	result, err := a.locator.ExtractPage(body)
	if err != nil {
		a.metrics.ExtractionFailed()
		if excerpt := extract.Excerpt(err); excerpt != "" {
			a.logger.Debug(excerpt)
		}
		return nil, err
	}

	// The envelope's own page index is advisory; the requested page number
	// is authoritative for the stop condition.
	if result.Pagination != nil {
		result.Pagination.CurrentPage = page
	}
	return result, nil
}

// merge appends records not yet seen by ISIN. Records without an ISIN are
// kept unconditionally; they are deduplicated later by the pipeline if ever.
func (a *Aggregator) merge(records *[]types.RawRecord, seen map[string]bool, batch []types.RawRecord) (added, dups int) {
	for _, rec := range batch {
		isin := strings.TrimSpace(rec.String(rawKeyISIN))
		if isin != "" {
			if seen[isin] {
				dups++
				continue
			}
			seen[isin] = true
		}
		*records = append(*records, rec)
		added++
	}
	return added, dups
}

// FilterByKind keeps records whose security kind contains the configured
// marker, dropping other instrument types that share the listing.
func FilterByKind(records []types.RawRecord, marker string) []types.RawRecord {
	if marker == "" {
		return records
	}
	kept := records[:0:0]
	for _, rec := range records {
		if strings.Contains(rec.String("securityKind"), marker) {
			kept = append(kept, rec)
		}
	}
	return kept
}
