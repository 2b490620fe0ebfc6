package download

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"estadistica/internal/config"
	"estadistica/internal/portal"
)

// ReportFetcher drives one date's report-generation-and-download cycle
// against the portal. Calls are strictly sequential: the portal has a single
// in-page report widget bound to a single session.
type ReportFetcher struct {
	auto   portal.Automation
	cfg    *config.Config
	logger *slog.Logger

	// the grouping dropdown keeps its value across reports, so it is
	// selected once per run rather than once per date
	groupingSet bool
}

// NewReportFetcher creates a fetcher over the given automation driver.
func NewReportFetcher(auto portal.Automation, cfg *config.Config, logger *slog.Logger) *ReportFetcher {
	return &ReportFetcher{auto: auto, cfg: cfg, logger: logger}
}

// Fetch generates and downloads the report for one date, returning the path
// of the produced file. Errors are classified: timeouts are retryable; a
// vanished generate control means the session was lost and is fatal.
func (f *ReportFetcher) Fetch(ctx context.Context, date time.Time) (string, error) {
	logger := f.logger.With(slog.String("date", date.Format("2006-01-02")))

	if err := f.auto.SetDateFilter(ctx, date); err != nil {
		if errors.Is(err, portal.ErrMarkerNotFound) {
			return "", NewElementNotFoundError(date, err)
		}
		return "", classify(date, err)
	}

	if !f.groupingSet {
		if err := f.auto.SelectGroupingOption(ctx, f.cfg.Report.GroupingValue); err != nil {
			return "", classify(date, err)
		}
		f.groupingSet = true
	}

	if err := f.auto.TriggerReportGeneration(ctx); err != nil {
		if errors.Is(err, portal.ErrMarkerNotFound) {
			// the generate trigger only disappears when the session is gone
			return "", NewElementNotFoundError(date, err)
		}
		return "", classify(date, err)
	}

	if err := f.auto.WaitForResultTable(ctx); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", classify(date, err)
	}

	destPath := f.cfg.DownloadPath(date)
	if err := f.auto.TriggerDownload(ctx, destPath); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", classify(date, err)
	}

	logger.Info("report fetched", slog.String("file", destPath))
	return destPath, nil
}
