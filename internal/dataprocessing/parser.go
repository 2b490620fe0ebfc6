// Package dataprocessing turns downloaded per-day reports into the
// categorized, multiplier-weighted consolidated tables.
package dataprocessing

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"estadistica/pkg/contracts/domain"
)

// Attention-type column names as the portal prints them in the
// "section by type of attention" report layout.
var attentionColumns = []string{
	"REFERENCIA",
	"Hospitalización",
	"Emergencia",
	"URGENTE CONSULTA EXTERNA",
	"Consulta Externa",
	"Sin tipo atención",
	"URGENTE REFERENCIA",
	"URGENTE HOSPITALIZACION",
}

const (
	totalColumn       = "Total"
	simpleCountColumn = "Cant. Exámenes"
)

// ParseFile reads one downloaded per-day report and extracts its exam rows.
// The portal prepends a preamble before the header row, so the header is
// located dynamically; the column layout (attention-type breakdown vs. the
// simple count report) is detected from the header names.
func ParseFile(filePath string, date time.Time, logger *slog.Logger) ([]domain.RawExamRecord, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("file has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}

	headerRow, columns := findHeader(rows)
	if headerRow < 0 {
		return nil, fmt.Errorf("could not find header row")
	}

	breakdown := hasBreakdownLayout(columns)
	if !breakdown {
		if _, ok := columns[simpleCountColumn]; !ok {
			return nil, fmt.Errorf("unrecognized column layout")
		}
		logger.Warn("simple report layout detected, no attention-type breakdown",
			slog.String("file", filePath))
	}

	var records []domain.RawExamRecord
	for _, row := range rows[headerRow+1:] {
		section := cellAt(row, columns, "Sección")
		if section == "" {
			section = cellAt(row, columns, "Seccion")
		}
		exam := cellAt(row, columns, "Examen")

		// trailer and subtotal rows carry no section or a sentinel exam
		if section == "" || exam == "" {
			continue
		}
		if strings.HasPrefix(exam, "Total órdenes") || strings.HasPrefix(exam, "Generado el") {
			continue
		}

		rec := domain.RawExamRecord{
			Date:    date,
			Section: section,
			Exam:    exam,
		}
		if breakdown {
			rec.Breakdown = make(map[string]int, len(attentionColumns))
			for _, col := range attentionColumns {
				rec.Breakdown[col] = countAt(row, columns, col)
			}
			rec.Count = countAt(row, columns, totalColumn)
			if rec.Count == 0 {
				for _, v := range rec.Breakdown {
					rec.Count += v
				}
			}
		} else {
			rec.Count = countAt(row, columns, simpleCountColumn)
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no exam rows found")
	}

	logger.Debug("parsed report",
		slog.String("file", filePath),
		slog.Int("records", len(records)),
		slog.Bool("breakdown", breakdown))
	return records, nil
}

// findHeader locates the header row and maps column names to positions.
// The header is the first row naming both the section and the exam columns.
func findHeader(rows [][]string) (int, map[string]int) {
	for i, row := range rows {
		var hasSection, hasExam bool
		for _, cell := range row {
			switch normalizeHeader(cell) {
			case "sección", "seccion":
				hasSection = true
			case "examen":
				hasExam = true
			}
		}
		if hasSection && hasExam {
			columns := make(map[string]int, len(row))
			for j, cell := range row {
				if name := strings.TrimSpace(cell); name != "" {
					columns[name] = j
				}
			}
			return i, columns
		}
	}
	return -1, nil
}

func normalizeHeader(cell string) string {
	return strings.ToLower(strings.TrimSpace(cell))
}

func hasBreakdownLayout(columns map[string]int) bool {
	for _, col := range []string{"Hospitalización", "Emergencia", "Consulta Externa"} {
		if _, ok := columns[col]; ok {
			return true
		}
	}
	return false
}

func cellAt(row []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// countAt parses a numeric cell; unparseable or negative cells count as zero.
func countAt(row []string, columns map[string]int, name string) int {
	raw := cellAt(row, columns, name)
	if raw == "" {
		return 0
	}
	raw = strings.ReplaceAll(raw, ",", "")
	v, err := strconv.Atoi(raw)
	if err != nil {
		if fv, ferr := strconv.ParseFloat(raw, 64); ferr == nil {
			v = int(fv)
		}
	}
	if v < 0 {
		return 0
	}
	return v
}
