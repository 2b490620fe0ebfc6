package dataprocessing

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"estadistica/internal/config"
	"estadistica/pkg/contracts/domain"
)

// DatedFile pairs a downloaded per-day report with its date.
type DatedFile struct {
	Date time.Time
	Path string
}

// Consolidate parses all per-day files, categorizes every row and builds
// the three output tables. A malformed file only costs that date's
// contribution: it is skipped with a warning and the run continues.
func Consolidate(files []DatedFile, rules *config.CategoryRules, logger *slog.Logger) (Tables, error) {
	sorted := make([]DatedFile, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	var raw []domain.RawExamRecord
	parsed := 0
	for _, f := range sorted {
		records, err := ParseFile(f.Path, f.Date, logger)
		if err != nil {
			logger.Warn("skipping malformed per-day file",
				slog.String("file", f.Path),
				slog.String("date", f.Date.Format("2006-01-02")),
				slog.String("error", err.Error()))
			continue
		}
		raw = append(raw, records...)
		parsed++
	}

	if parsed == 0 {
		return Tables{}, fmt.Errorf("no readable per-day files out of %d", len(files))
	}

	categorized := CategorizeAll(raw, rules)
	tables := BuildTables(categorized)

	logger.Info("consolidation complete",
		slog.Int("files", parsed),
		slog.Int("records", len(categorized)),
		slog.Int("summary_rows", len(tables.Summary)))
	return tables, nil
}

// downloadNamePattern matches the deterministic per-date file names the
// fetcher produces.
var downloadNamePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\.xlsx$`)

// ScanDownloadDir lists the per-day reports already present in a download
// directory, dated from their file names, in ascending date order.
func ScanDownloadDir(dir string) ([]DatedFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read download dir: %w", err)
	}

	var files []DatedFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := downloadNamePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		date, err := time.Parse("2006-01-02", m[1])
		if err != nil {
			continue
		}
		files = append(files, DatedFile{Date: date, Path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Date.Before(files[j].Date) })
	return files, nil
}
