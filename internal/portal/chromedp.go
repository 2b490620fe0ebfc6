package portal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"

	"estadistica/internal/config"
)

// pollInterval is how often wait loops re-probe the page or the filesystem.
const pollInterval = 250 * time.Millisecond

// ChromeDriver implements Automation on a real Chrome instance via chromedp.
// The browser profile is persisted under userDataDir so the portal session
// survives across runs and the user only logs in once.
type ChromeDriver struct {
	cfg    *config.Config
	logger *slog.Logger

	ctx         context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc

	stagingDir string
}

// NewChromeDriver launches the browser and prepares the download staging
// directory. Close must be called to release the browser.
func NewChromeDriver(parent context.Context, cfg *config.Config, logger *slog.Logger) (*ChromeDriver, error) {
	userDataDir, err := filepath.Abs("browser_data")
	if err != nil {
		return nil, fmt.Errorf("resolve browser data dir: %w", err)
	}
	stagingDir, err := filepath.Abs(filepath.Join(cfg.Files.DownloadDir, ".staging"))
	if err != nil {
		return nil, fmt.Errorf("resolve staging dir: %w", err)
	}
	for _, dir := range []string{userDataDir, stagingDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.General.Headless),
		chromedp.UserDataDir(userDataDir),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx)

	d := &ChromeDriver{
		cfg:         cfg,
		logger:      logger,
		ctx:         ctx,
		cancelCtx:   cancelCtx,
		cancelAlloc: cancelAlloc,
		stagingDir:  stagingDir,
	}

	// route every portal export into the staging directory
	if err := chromedp.Run(ctx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(stagingDir),
	); err != nil {
		d.Close()
		return nil, fmt.Errorf("configure download behavior: %w", err)
	}

	return d, nil
}

// Close shuts down the browser.
func (d *ChromeDriver) Close() error {
	d.cancelCtx()
	d.cancelAlloc()
	return nil
}

// Navigate opens the report page and waits for the document to load.
func (d *ChromeDriver) Navigate(ctx context.Context) error {
	d.logger.Info("navigating to portal", slog.String("url", d.cfg.General.URL))
	return chromedp.Run(d.ctx,
		chromedp.Navigate(d.cfg.General.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// sessionMarkerJS is true when the report-generation trigger is rendered,
// which the portal only does for an authenticated session.
const sessionMarkerJS = `Array.from(document.querySelectorAll('button'))
	.some(b => b.textContent.trim().includes('Generar informe'))`

// SessionMarkerVisible probes for the report-generation trigger.
func (d *ChromeDriver) SessionMarkerVisible(ctx context.Context) (bool, error) {
	var visible bool
	if err := chromedp.Run(d.ctx, chromedp.Evaluate(sessionMarkerJS, &visible)); err != nil {
		return false, fmt.Errorf("probe session marker: %w", err)
	}
	return visible, nil
}

// SetDateFilter writes the same day into both date controls and dispatches
// input events so the page model picks the values up.
func (d *ChromeDriver) SetDateFilter(ctx context.Context, date time.Time) error {
	js := fmt.Sprintf(`(() => {
		for (const id of [%q, %q]) {
			const el = document.getElementById(id);
			if (!el) return false;
			el.value = %q;
			el.dispatchEvent(new Event('input', { bubbles: true }));
		}
		return true;
	})()`, d.cfg.Report.DateFromID, d.cfg.Report.DateToID, date.Format("2006-01-02"))

	var ok bool
	if err := chromedp.Run(d.ctx, chromedp.Evaluate(js, &ok)); err != nil {
		return fmt.Errorf("set date filter: %w", err)
	}
	if !ok {
		return fmt.Errorf("set date filter: %w", ErrMarkerNotFound)
	}
	return nil
}

// SelectGroupingOption sets the grouping dropdown and fires its change event.
func (d *ChromeDriver) SelectGroupingOption(ctx context.Context, value string) error {
	js := fmt.Sprintf(`(() => {
		const el = document.getElementById(%q);
		if (!el) return false;
		el.value = %q;
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	})()`, d.cfg.Report.GroupingSelectID, value)

	var ok bool
	if err := chromedp.Run(d.ctx, chromedp.Evaluate(js, &ok)); err != nil {
		return fmt.Errorf("select grouping option: %w", err)
	}
	if !ok {
		d.logger.Warn("grouping dropdown not found, continuing with portal default",
			slog.String("select_id", d.cfg.Report.GroupingSelectID))
	}
	return nil
}

// TriggerReportGeneration clicks the generate control.
func (d *ChromeDriver) TriggerReportGeneration(ctx context.Context) error {
	js := `(() => {
		const btn = Array.from(document.querySelectorAll('button'))
			.find(b => b.textContent.trim().includes('Generar informe'));
		if (!btn) return false;
		btn.click();
		return true;
	})()`

	var ok bool
	if err := chromedp.Run(d.ctx, chromedp.Evaluate(js, &ok)); err != nil {
		return fmt.Errorf("trigger report generation: %w", err)
	}
	if !ok {
		return ErrMarkerNotFound
	}
	return nil
}

// resultReadyJS is true once the generated report is on screen: either the
// result table rendered or the export menu with its Excel link opened.
const resultReadyJS = `(() => {
	const visible = el => el && el.offsetParent !== null;
	if (Array.from(document.querySelectorAll('a'))
		.some(a => a.textContent.trim() === 'Excel' && visible(a))) return true;
	return Array.from(document.querySelectorAll('table'))
		.some(t => visible(t) && t.rows.length > 1);
})()`

// WaitForResultTable polls until the generated report renders, bounded by
// the configured page-load timeout.
func (d *ChromeDriver) WaitForResultTable(ctx context.Context) error {
	deadline := time.Now().Add(d.cfg.General.PageLoadTimeout)
	for {
		var ready bool
		if err := chromedp.Run(d.ctx, chromedp.Evaluate(resultReadyJS, &ready)); err != nil {
			return fmt.Errorf("probe result table: %w", err)
		}
		if ready {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrResultTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// TriggerDownload clicks the Excel export link and waits for the exported
// file to land in the staging directory, then moves it to destPath.
func (d *ChromeDriver) TriggerDownload(ctx context.Context, destPath string) error {
	if err := d.clearStaging(); err != nil {
		return err
	}

	js := `(() => {
		const link = Array.from(document.querySelectorAll('a'))
			.find(a => a.textContent.trim() === 'Excel' && a.offsetParent !== null);
		if (!link) return false;
		link.click();
		return true;
	})()`

	var ok bool
	if err := chromedp.Run(d.ctx, chromedp.Evaluate(js, &ok)); err != nil {
		return fmt.Errorf("trigger download: %w", err)
	}
	if !ok {
		return ErrExportNotFound
	}

	staged, err := d.waitForStagedFile(ctx)
	if err != nil {
		return err
	}

	// destination collision from a prior run for the same date overwrites
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	if err := os.Rename(staged, destPath); err != nil {
		return fmt.Errorf("move download into place: %w", err)
	}
	d.logger.Info("report downloaded", slog.String("file", filepath.Base(destPath)))
	return nil
}

func (d *ChromeDriver) clearStaging() error {
	entries, err := os.ReadDir(d.stagingDir)
	if err != nil {
		return fmt.Errorf("read staging dir: %w", err)
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(d.stagingDir, e.Name())); err != nil {
			return fmt.Errorf("clear staging dir: %w", err)
		}
	}
	return nil
}

// waitForStagedFile polls the staging directory until a completed export
// appears, bounded by the configured download timeout. Chrome keeps partial
// downloads under a .crdownload suffix until they finish.
func (d *ChromeDriver) waitForStagedFile(ctx context.Context) (string, error) {
	deadline := time.Now().Add(d.cfg.General.DownloadTimeout)
	for {
		entries, err := os.ReadDir(d.stagingDir)
		if err != nil {
			return "", fmt.Errorf("read staging dir: %w", err)
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || strings.HasSuffix(name, ".crdownload") {
				continue
			}
			info, err := e.Info()
			if err != nil || info.Size() == 0 {
				continue
			}
			return filepath.Join(d.stagingDir, name), nil
		}
		if time.Now().After(deadline) {
			return "", ErrDownloadTimeout
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
