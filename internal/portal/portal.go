// Package portal abstracts the hospital reporting portal behind a capability
// interface so the download orchestration can be tested against a fake driver.
package portal

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by Automation implementations. Callers classify
// them into the run-level error taxonomy.
var (
	// ErrMarkerNotFound means the report-generation trigger is absent,
	// which only happens when no authenticated session exists.
	ErrMarkerNotFound = errors.New("portal: report generation control not found")
	// ErrResultTimeout means the result table did not render within the
	// configured page-load timeout.
	ErrResultTimeout = errors.New("portal: result table did not appear in time")
	// ErrDownloadTimeout means the exported file did not land on disk
	// within the configured download timeout.
	ErrDownloadTimeout = errors.New("portal: download did not complete in time")
	// ErrExportNotFound means the spreadsheet export control is missing.
	ErrExportNotFound = errors.New("portal: export control not found")
)

// Automation is the set of page manipulations the report workflow needs.
// Implementations are stateful: a single logged-in browser session backs all
// calls, so callers must not invoke methods concurrently.
type Automation interface {
	// Navigate opens the report page and waits for it to settle.
	Navigate(ctx context.Context) error

	// SessionMarkerVisible probes for the report-generation trigger, the
	// control that only renders for an authenticated session.
	SessionMarkerVisible(ctx context.Context) (bool, error)

	// SetDateFilter sets both date filter controls to the given day.
	SetDateFilter(ctx context.Context, date time.Time) error

	// SelectGroupingOption selects the configured grouping dropdown value.
	SelectGroupingOption(ctx context.Context, value string) error

	// TriggerReportGeneration clicks the generate control. Returns
	// ErrMarkerNotFound if the control has vanished (session lost mid-run).
	TriggerReportGeneration(ctx context.Context) error

	// WaitForResultTable blocks until the generated report is rendered,
	// or returns ErrResultTimeout after the page-load timeout.
	WaitForResultTable(ctx context.Context) error

	// TriggerDownload starts the spreadsheet export and blocks until the
	// file lands at destPath, overwriting any prior file there. Returns
	// ErrDownloadTimeout if it does not arrive in time.
	TriggerDownload(ctx context.Context, destPath string) error

	// Close releases the underlying browser resources.
	Close() error
}
