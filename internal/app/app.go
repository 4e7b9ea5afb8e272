// Package app wires the fetchers, the pagination aggregator, the field
// pipeline, the output writers and the download pool into complete runs.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/akulagin/spbebonds/internal/browser"
	"github.com/akulagin/spbebonds/internal/config"
	"github.com/akulagin/spbebonds/internal/download"
	"github.com/akulagin/spbebonds/internal/monitoring"
	"github.com/akulagin/spbebonds/internal/output"
	"github.com/akulagin/spbebonds/internal/pipeline"
	"github.com/akulagin/spbebonds/internal/scraper"
	"github.com/akulagin/spbebonds/internal/utils"
	"github.com/akulagin/spbebonds/pkg/types"
)

// App carries the wired components of one scraper process.
type App struct {
	cfg     *config.Config
	logger  utils.Logger
	metrics *monitoring.Metrics

	fetch       scraper.Fetcher
	browserFb   *browser.Fetcher
	statusServe *monitoring.Server
}

// New wires an App from configuration. When the browser fallback is enabled
// the HTTP fetcher is wrapped so blocked pages are refetched through Chrome.
func New(cfg *config.Config, logger utils.Logger) *App {
	a := &App{
		cfg:    cfg,
		logger: logger,
	}

	var fetch scraper.Fetcher = scraper.NewHTTPFetcher(cfg.Scraping, logger)
	if cfg.Browser.Enabled {
		a.browserFb = browser.New(cfg.Browser, logger)
		fetch = &fallbackFetcher{primary: fetch, fallback: a.browserFb, logger: logger}
	}
	a.fetch = fetch

	if cfg.Monitoring.Enabled {
		a.metrics = monitoring.NewMetrics()
		a.statusServe = monitoring.NewServer(cfg.Monitoring.Address, a.metrics, logger)
	}
	return a
}

// Start launches background services; Close releases them.
func (a *App) Start() {
	if a.statusServe != nil {
		a.statusServe.Start()
	}
}

// Close releases the browser and stops the status server.
func (a *App) Close() {
	if a.statusServe != nil {
		if err := a.statusServe.Stop(context.Background()); err != nil {
			a.logger.Warnf("status server shutdown: %v", err)
		}
	}
	if a.browserFb != nil {
		a.browserFb.Close()
	}
}

// bondDetail pairs a listing record with its fetched card fields and the
// document links found on the card.
type bondDetail struct {
	listing  types.RawRecord
	fields   map[string]string
	docLinks []string
}

// RunReferenceData walks the listing, fetches every bond's card and writes
// the normalized reference data set.
func (a *App) RunReferenceData(ctx context.Context) (*types.RunSummary, error) {
	summary := &types.RunSummary{StartedAt: time.Now()}
	defer func() { summary.FinishedAt = time.Now() }()

	details, err := a.collectDetails(ctx, summary)
	if err != nil {
		return summary, err
	}

	records := make([]types.BondRecord, 0, len(details))
	for _, d := range details {
		records = append(records, pipeline.Normalize(d.listing, d.fields))
	}
	summary.RecordsExtracted = len(records)

	mgr := output.NewManager(a.cfg.Output, a.logger)
	paths, err := mgr.WriteAll(records, time.Now())
	if err != nil {
		return summary, err
	}
	a.logger.Infof("reference data run finished: %d records, %d files", len(records), len(paths))
	return summary, nil
}

// RunProspectuses walks the listing, discovers issuance documents on every
// bond's card and downloads them into the prospectus tree.
func (a *App) RunProspectuses(ctx context.Context) (*types.RunSummary, error) {
	summary := &types.RunSummary{StartedAt: time.Now()}
	defer func() { summary.FinishedAt = time.Now() }()

	details, err := a.collectDetails(ctx, summary)
	if err != nil {
		return summary, err
	}

	tasks := a.buildDownloadTasks(details)
	a.logger.Infof("discovered %d documents for %d bonds", len(tasks), len(details))

	orch := download.NewOrchestrator(a.cfg.Download, a.logger, a.metrics)
	summary.Downloads = orch.DownloadAll(ctx, tasks)

	skipped, succeeded, failed := summary.DownloadCounts()
	a.logger.Infof("prospectus run finished: %d downloaded, %d skipped, %d failed",
		succeeded, skipped, failed)
	for _, reason := range summary.FailureReasons() {
		a.logger.Warnf("download failed: %s", reason)
	}
	return summary, nil
}

// Run performs the reference data export and the prospectus downloads in one
// pass, fetching each bond's card only once.
func (a *App) Run(ctx context.Context) (*types.RunSummary, error) {
	summary := &types.RunSummary{StartedAt: time.Now()}
	defer func() { summary.FinishedAt = time.Now() }()

	details, err := a.collectDetails(ctx, summary)
	if err != nil {
		return summary, err
	}

	records := make([]types.BondRecord, 0, len(details))
	for _, d := range details {
		records = append(records, pipeline.Normalize(d.listing, d.fields))
	}
	summary.RecordsExtracted = len(records)

	mgr := output.NewManager(a.cfg.Output, a.logger)
	if _, err := mgr.WriteAll(records, time.Now()); err != nil {
		return summary, err
	}

	tasks := a.buildDownloadTasks(details)
	orch := download.NewOrchestrator(a.cfg.Download, a.logger, a.metrics)
	summary.Downloads = orch.DownloadAll(ctx, tasks)

	skipped, succeeded, failed := summary.DownloadCounts()
	a.logger.Infof("run finished: %d records, %d documents downloaded, %d skipped, %d failed",
		len(records), succeeded, skipped, failed)
	return summary, nil
}

// collectDetails walks the listing pages and fetches the card of every bond.
// A failing card is skipped with a warning, mirroring the page-skip policy of
// the pagination walk.
func (a *App) collectDetails(ctx context.Context, summary *types.RunSummary) ([]bondDetail, error) {
	agg := scraper.NewAggregator(a.cfg, a.fetch, a.logger, a.metrics)
	rawRecords, stats, err := agg.CollectAll(ctx)
	if err != nil {
		return nil, err
	}
	summary.PagesFetched = stats.PagesFetched
	summary.PagesSkipped = stats.PagesSkipped
	summary.Warnings = append(summary.Warnings, stats.Warnings...)

	rawRecords = scraper.FilterByKind(rawRecords, a.cfg.Source.SecurityFilter)
	a.logger.Infof("collected %d bond records from %d pages", len(rawRecords), stats.PagesFetched)

	details := make([]bondDetail, 0, len(rawRecords))
	for i, rec := range rawRecords {
		if ctx.Err() != nil {
			return details, ctx.Err()
		}

		code := rec.String("srtsCode")
		if code == "" {
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("record without security code skipped (isin=%s)", rec.String("sisinCode")))
			continue
		}

		d, err := a.fetchDetail(ctx, rec)
		if err != nil {
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("card for %s skipped: %v", code, err))
			a.logger.Warnf("card for %s skipped: %v", code, err)
			continue
		}
		if d == nil {
			// Not a bond card.
			continue
		}
		details = append(details, *d)

		if (i+1)%25 == 0 {
			a.logger.Infof("processed %d/%d cards", i+1, len(rawRecords))
		}
	}

	if len(details) == 0 {
		return nil, utils.NewError(utils.ErrCodeExtractionFailed, "no bond cards could be fetched")
	}
	return details, nil
}

// fetchDetail fetches and parses one security card. It returns nil without
// error for cards that turn out not to be bonds.
func (a *App) fetchDetail(ctx context.Context, rec types.RawRecord) (*bondDetail, error) {
	detailURL := a.cfg.DetailURL(rec.String("srtsCode"))

	page, err := a.fetch.Fetch(ctx, detailURL)
	if err != nil {
		return nil, err
	}

	fields, err := scraper.ExtractLabeledFields(page)
	if err != nil {
		return nil, err
	}

	if category, ok := fields["Вид, категория (тип) ценной бумаги"]; ok && !pipeline.IsBond(category) {
		a.logger.Debugf("skipping non-bond card %s (%s)", detailURL, category)
		return nil, nil
	}

	links, err := scraper.FindDocumentLinks(page, detailURL)
	if err != nil {
		return nil, err
	}

	// An issuer card can hide cancelled issues behind a reveal link; follow
	// it when the run includes cancelled bonds.
	if a.cfg.Scraping.IncludeCancelled {
		if cancelledURL := scraper.FindCancelledLink(page, detailURL); cancelledURL != "" {
			if extraPage, err := a.fetch.Fetch(ctx, cancelledURL); err == nil {
				if extra, err := scraper.FindDocumentLinks(extraPage, cancelledURL); err == nil {
					links = mergeLinks(links, extra)
				}
			} else {
				a.logger.Warnf("cancelled view for %s failed: %v", detailURL, err)
			}
		}
	}

	return &bondDetail{listing: rec, fields: fields, docLinks: links}, nil
}

// buildDownloadTasks flattens the discovered document links into download
// tasks rooted at the prospectus directory.
func (a *App) buildDownloadTasks(details []bondDetail) []types.DownloadTask {
	var tasks []types.DownloadTask
	for _, d := range details {
		issuer := d.listing.String("fullName")
		if issuer == "" {
			issuer = "unknown_issuer"
		}
		isin := d.listing.String("sisinCode")
		if isin == "" {
			isin = d.listing.String("srtsCode")
		}
		for _, link := range d.docLinks {
			tasks = append(tasks, types.DownloadTask{
				Issuer:  issuer,
				ISIN:    isin,
				FileURL: link,
				DestDir: a.prospectusRoot(),
			})
		}
	}
	return tasks
}

func (a *App) prospectusRoot() string {
	return filepath.Join(a.cfg.Output.Directory, a.cfg.Output.ProspectusRoot)
}

// mergeLinks appends links from extra that are not already present.
func mergeLinks(links, extra []string) []string {
	seen := make(map[string]bool, len(links))
	for _, l := range links {
		seen[l] = true
	}
	for _, l := range extra {
		if !seen[l] {
			seen[l] = true
			links = append(links, l)
		}
	}
	return links
}

// fallbackFetcher fetches over HTTP first and refetches through the browser
// when the response looks like a bot challenge.
type fallbackFetcher struct {
	primary  scraper.Fetcher
	fallback scraper.Fetcher
	logger   utils.Logger
}

func (f *fallbackFetcher) Fetch(ctx context.Context, url string) (string, error) {
	page, err := f.primary.Fetch(ctx, url)
	if err == nil && !browser.LooksBlocked(page) {
		return page, nil
	}
	if err != nil {
		f.logger.Warnf("http fetch of %s failed (%v), retrying via browser", url, err)
	} else {
		f.logger.Warnf("http fetch of %s looks blocked, retrying via browser", url)
	}
	return f.fallback.Fetch(ctx, url)
}
