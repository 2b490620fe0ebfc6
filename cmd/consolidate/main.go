// Command consolidate rebuilds the summary workbook from per-day reports
// already on disk, without touching the portal. Useful after a partial run:
// re-download only the failed dates, then consolidate everything.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"estadistica/internal/config"
	"estadistica/internal/dataprocessing"
	"estadistica/internal/exporter"
	"estadistica/internal/infrastructure"
)

func main() {
	configFile := flag.String("config", "config.yaml", "path to the configuration file")
	dir := flag.String("dir", "", "download directory to scan (overrides config)")
	outPath := flag.String("out", "", "output workbook path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Printf("Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *dir != "" {
		cfg.Files.DownloadDir = *dir
	}
	if *outPath != "" {
		cfg.Files.OutputPath = *outPath
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Printf("Warning: failed to initialize logger, using default: %v\n", err)
		logger = slog.Default()
	}

	rules, err := config.LoadCategoryRules(cfg.Files.RulesPath)
	if err != nil {
		logger.Error("invalid category rules", slog.String("error", err.Error()))
		os.Exit(1)
	}

	files, err := dataprocessing.ScanDownloadDir(cfg.Files.DownloadDir)
	if err != nil {
		logger.Error("failed to scan download dir", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if len(files) == 0 {
		logger.Error("no per-day reports found",
			slog.String("dir", cfg.Files.DownloadDir))
		os.Exit(1)
	}
	logger.Info("found per-day reports",
		slog.Int("count", len(files)),
		slog.String("dir", cfg.Files.DownloadDir))

	tables, err := dataprocessing.Consolidate(files, rules, logger)
	if err != nil {
		logger.Error("consolidation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	writer := exporter.NewWorkbookWriter(logger)
	if err := writer.Write(cfg.Files.OutputPath, tables); err != nil {
		logger.Error("failed to write workbook", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("workbook written", slog.String("output", cfg.Files.OutputPath))
}
