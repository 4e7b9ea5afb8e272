// pkg/types/types.go
// Package types defines the public domain types shared between the scraping
// engine, the field normalizer, the downloader and the output writers.
package types

import (
	"fmt"
	"time"
)

// RawRecord is one record exactly as it came out of the embedded JSON
// payload: source field names, undecoded values.
type RawRecord map[string]interface{}

// String returns the string form of a raw field value, or "" when the field
// is absent or null.
func (r RawRecord) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// PaginationInfo is the pagination envelope accompanying a partial result
// page. CurrentPage and TotalPages are 1-based; CurrentPage <= TotalPages.
type PaginationInfo struct {
	CurrentPage   int `json:"currentPage"`
	TotalPages    int `json:"totalPages"`
	TotalElements int `json:"totalElements"`
}

// Valid reports whether the envelope satisfies its invariants.
func (p PaginationInfo) Valid() bool {
	return p.CurrentPage >= 1 && p.TotalPages >= 1 &&
		p.TotalElements >= 0 && p.CurrentPage <= p.TotalPages
}

// ExtractionResult is the outcome of running the payload locator against a
// single fetched page. Strategy records which locator strategy succeeded and
// is diagnostic only.
type ExtractionResult struct {
	Records    []RawRecord
	Pagination *PaginationInfo
	Strategy   string
}

// BondRecord is one canonical output row: every canonical field name maps to
// a normalized string value (possibly empty, never missing).
type BondRecord map[string]string

// ISIN returns the record's primary key.
func (b BondRecord) ISIN() string {
	return b[FieldISIN]
}

// DownloadTask describes one disclosure document to fetch for a bond.
type DownloadTask struct {
	Issuer  string
	ISIN    string
	FileURL string
	DestDir string
}

// DownloadStatus tags the outcome of one DownloadTask.
type DownloadStatus int

const (
	DownloadSkipped DownloadStatus = iota
	DownloadSucceeded
	DownloadFailed
)

// String returns the status name used in logs and the run summary.
func (s DownloadStatus) String() string {
	switch s {
	case DownloadSkipped:
		return "skipped"
	case DownloadSucceeded:
		return "succeeded"
	case DownloadFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DownloadOutcome is the result of processing one DownloadTask. One outcome
// is produced per task and aggregated into the run summary.
type DownloadOutcome struct {
	Task         DownloadTask
	Status       DownloadStatus
	BytesWritten int64
	Reason       string
	Attempts     int
}

// RunSummary accumulates the counters reported at the end of a run.
type RunSummary struct {
	StartedAt        time.Time
	FinishedAt       time.Time
	RecordsExtracted int
	PagesFetched     int
	PagesSkipped     int
	Warnings         []string
	Downloads        []DownloadOutcome
}

// DownloadCounts returns the number of skipped, succeeded and failed
// downloads in the summary.
func (s *RunSummary) DownloadCounts() (skipped, succeeded, failed int) {
	for _, o := range s.Downloads {
		switch o.Status {
		case DownloadSkipped:
			skipped++
		case DownloadSucceeded:
			succeeded++
		case DownloadFailed:
			failed++
		}
	}
	return skipped, succeeded, failed
}

// FailureReasons returns the reasons recorded for failed downloads.
func (s *RunSummary) FailureReasons() []string {
	var reasons []string
	for _, o := range s.Downloads {
		if o.Status == DownloadFailed {
			reasons = append(reasons, fmt.Sprintf("%s: %s", o.Task.FileURL, o.Reason))
		}
	}
	return reasons
}
