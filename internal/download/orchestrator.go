package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akulagin/spbebonds/internal/config"
	"github.com/akulagin/spbebonds/internal/monitoring"
	"github.com/akulagin/spbebonds/internal/utils"
	"github.com/akulagin/spbebonds/pkg/types"
)

// Orchestrator downloads prospectus documents with a bounded worker pool.
// Files land under destDir/<issuer>/<isin>/<file>; an already present
// non-empty file is skipped without touching the network.
type Orchestrator struct {
	client  *http.Client
	cfg     config.DownloadConfig
	logger  utils.Logger
	metrics *monitoring.Metrics
}

// NewOrchestrator builds a download pool from the download configuration.
func NewOrchestrator(cfg config.DownloadConfig, logger utils.Logger, metrics *monitoring.Metrics) *Orchestrator {
	return &Orchestrator{
		// Per-attempt deadlines come from the context, not the client.
		client:  &http.Client{},
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// DownloadAll runs every task through the pool and returns one outcome per
// task. Individual failures never abort the batch; context cancellation
// stops new downloads but outcomes for started tasks are still returned.
func (o *Orchestrator) DownloadAll(ctx context.Context, tasks []types.DownloadTask) []types.DownloadOutcome {
	outcomes := make([]types.DownloadOutcome, len(tasks))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)

	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			outcome := o.downloadOne(gctx, task)
			o.metrics.DownloadFinished(outcome.Status)

			mu.Lock()
			outcomes[i] = outcome
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// DestPath returns the final path a task's document is stored at.
func (o *Orchestrator) DestPath(task types.DownloadTask) string {
	return filepath.Join(
		task.DestDir,
		SanitizeComponent(task.Issuer),
		SanitizeComponent(task.ISIN),
		FileNameFromURL(task.FileURL),
	)
}

func (o *Orchestrator) downloadOne(ctx context.Context, task types.DownloadTask) types.DownloadOutcome {
	outcome := types.DownloadOutcome{Task: task}
	dest := o.DestPath(task)

	if !o.cfg.ForceRedownload {
		if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
			outcome.Status = types.DownloadSkipped
			outcome.Reason = "file already present"
			o.logger.Debugf("skipping %s: already present (%d bytes)", dest, info.Size())
			return outcome
		}
	}

	if _, err := url.ParseRequestURI(task.FileURL); err != nil {
		outcome.Status = types.DownloadFailed
		outcome.Reason = fmt.Sprintf("malformed URL: %v", err)
		return outcome
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		outcome.Status = types.DownloadFailed
		outcome.Reason = utils.WrapError(err, utils.ErrCodeFilesystem, "failed to create directory").Error()
		return outcome
	}

	var lastErr error
	for attempt := 1; attempt <= o.cfg.RetryCount; attempt++ {
		outcome.Attempts = attempt

		if attempt > 1 {
			delay := o.cfg.RetryBase
			for i := 2; i < attempt; i++ {
				delay *= 2
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				outcome.Status = types.DownloadFailed
				outcome.Reason = ctx.Err().Error()
				return outcome
			}
		}

		n, err := o.fetchToFile(ctx, task.FileURL, dest)
		if err == nil {
			outcome.Status = types.DownloadSucceeded
			outcome.BytesWritten = n
			o.logger.Infof("downloaded %s (%d bytes, attempt %d)", dest, n, attempt)
			return outcome
		}

		lastErr = err
		if !utils.IsRetryableError(err) || ctx.Err() != nil {
			break
		}
		o.logger.Warnf("download attempt %d/%d failed for %s: %v", attempt, o.cfg.RetryCount, task.FileURL, err)
	}

	outcome.Status = types.DownloadFailed
	outcome.Reason = lastErr.Error()
	return outcome
}

// fetchToFile streams the URL into dest via a temporary file in the same
// directory, renamed only after a complete read. An interrupted download
// therefore never leaves a partial file at the final path.
func (o *Orchestrator) fetchToFile(ctx context.Context, fileURL, dest string) (int64, error) {
	reqCtx := ctx
	if o.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, o.cfg.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, fileURL, nil)
	if err != nil {
		return 0, utils.WrapError(err, utils.ErrCodeNetworkPermanent, "invalid request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; spbebonds/1.0)")

	resp, err := o.client.Do(req)
	if err != nil {
		return 0, utils.WrapError(err, utils.ErrCodeNetworkTransient, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		code := utils.ErrCodeNetworkPermanent
		if utils.RetryableStatusCode(resp.StatusCode) {
			code = utils.ErrCodeNetworkTransient
		}
		return 0, utils.NewError(code, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".part*")
	if err != nil {
		return 0, utils.WrapError(err, utils.ErrCodeFilesystem, "failed to create temp file")
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err != nil || closeErr != nil {
		os.Remove(tmpName)
		if err == nil {
			err = closeErr
		}
		return 0, utils.WrapError(err, utils.ErrCodeNetworkTransient, "download interrupted")
	}

	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return 0, utils.WrapError(err, utils.ErrCodeFilesystem, "failed to finalize file")
	}
	return n, nil
}
