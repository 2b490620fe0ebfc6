// Command estadistica runs the full workflow: verify the portal session,
// download one report per day of the requested range, then consolidate the
// downloads into the categorized summary workbook.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"estadistica/internal/config"
	"estadistica/internal/dataprocessing"
	"estadistica/internal/download"
	"estadistica/internal/exporter"
	"estadistica/internal/infrastructure"
	"estadistica/internal/portal"
	"estadistica/pkg/contracts/domain"
	"estadistica/pkg/contracts/events"
)

// interactiveLoginWait bounds how long a visible browser waits for the user
// to log in when no session is detected.
const interactiveLoginWait = 5 * time.Minute

func main() {
	var logger *slog.Logger
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("PANIC RECOVERED: %v\n%s\n", r, debug.Stack())
			if logger != nil {
				logger.Error("run panicked",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
			}
			os.Exit(1)
		}
	}()

	now := time.Now()
	year := flag.Int("year", now.Year(), "report year")
	month := flag.Int("month", int(now.Month()), "report month (1-12)")
	dayStart := flag.Int("from-day", 1, "first day of the range")
	dayEnd := flag.Int("to-day", now.AddDate(0, 0, -1).Day(), "last day of the range (defaults to yesterday)")
	wait := flag.Float64("wait", -1, "seconds between downloads (overrides config when >= 0)")
	headless := flag.Bool("headless", false, "run the browser without a window")
	configFile := flag.String("config", "config.yaml", "path to the configuration file")
	outPath := flag.String("out", "", "output workbook path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Printf("Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *wait >= 0 {
		cfg.General.WaitBetween = time.Duration(*wait * float64(time.Second))
	}
	if *headless {
		cfg.General.Headless = true
	}
	if *outPath != "" {
		cfg.Files.OutputPath = *outPath
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	logger, err = infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Printf("Warning: failed to initialize logger, using default: %v\n", err)
		logger = slog.Default()
	}

	rules, err := config.LoadCategoryRules(cfg.Files.RulesPath)
	if err != nil {
		logger.Error("invalid category rules", slog.String("error", err.Error()))
		os.Exit(1)
	}

	dateRange := domain.DateRange{Year: *year, Month: *month, DayStart: *dayStart, DayEnd: *dayEnd}
	if err := dateRange.Validate(); err != nil {
		logger.Error("invalid date range", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver, err := portal.NewChromeDriver(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start browser", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer driver.Close()

	loginWait := interactiveLoginWait
	if cfg.General.Headless {
		// nobody can type credentials into a headless browser
		loginWait = 0
	}
	gate := portal.NewSessionGate(driver, logger, loginWait)
	fetcher := download.NewReportFetcher(driver, cfg, logger)
	orch := download.NewOrchestrator(gate, fetcher, cfg, logger)

	ctx = infrastructure.WithRunID(ctx, orch.RunID())
	logger.InfoContext(ctx, "run starting",
		slog.Int("year", *year),
		slog.Int("month", *month),
		slog.Int("from_day", *dayStart),
		slog.Int("to_day", *dayEnd),
		slog.Bool("headless", cfg.General.Headless))

	var summary *events.RunSummary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var runErr error
		summary, runErr = orch.Run(gctx, dateRange)
		return runErr
	})
	g.Go(func() error {
		for p := range orch.Progress() {
			logProgress(ctx, logger, p)
		}
		return nil
	})
	runErr := g.Wait()

	if summary != nil {
		logSummary(ctx, logger, summary)
	}
	if runErr != nil {
		logger.ErrorContext(ctx, "run aborted", slog.String("error", runErr.Error()))
		os.Exit(1)
	}
	if summary == nil || len(summary.Succeeded) == 0 {
		logger.ErrorContext(ctx, "no reports downloaded, nothing to consolidate")
		os.Exit(1)
	}

	files := make([]dataprocessing.DatedFile, 0, len(summary.Succeeded))
	for _, res := range summary.Succeeded {
		files = append(files, dataprocessing.DatedFile{Date: res.Date, Path: res.FilePath})
	}
	tables, err := dataprocessing.Consolidate(files, rules, logger)
	if err != nil {
		logger.ErrorContext(ctx, "consolidation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	writer := exporter.NewWorkbookWriter(logger)
	if err := writer.Write(cfg.Files.OutputPath, tables); err != nil {
		logger.ErrorContext(ctx, "failed to write workbook", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.InfoContext(ctx, "run complete", slog.String("output", cfg.Files.OutputPath))
}

func logProgress(ctx context.Context, logger *slog.Logger, p events.TaskProgress) {
	attrs := []any{
		slog.String("date", p.Date.Format("2006-01-02")),
		slog.String("status", string(p.Status)),
		slog.Int("attempts", p.Attempts),
	}
	if p.Error != "" {
		attrs = append(attrs, slog.String("error", p.Error))
	}
	switch p.Status {
	case events.TaskStatusSucceeded:
		logger.InfoContext(ctx, "date downloaded", attrs...)
	case events.TaskStatusRetrying:
		logger.WarnContext(ctx, "date retrying", attrs...)
	default:
		logger.WarnContext(ctx, "date not downloaded", attrs...)
	}
}

func logSummary(ctx context.Context, logger *slog.Logger, s *events.RunSummary) {
	logger.InfoContext(ctx, "run summary",
		slog.Int("succeeded", len(s.Succeeded)),
		slog.Int("failed", len(s.Failed)),
		slog.Bool("cancelled", s.Cancelled),
		slog.Duration("duration", s.EndTime.Sub(s.StartTime)))
	for _, f := range s.Failed {
		logger.WarnContext(ctx, "failed date",
			slog.String("date", f.Date.Format("2006-01-02")),
			slog.String("cause", f.Error))
	}
}
