// Package exporter serializes the consolidated tables into the final
// three-sheet workbook.
package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"estadistica/internal/dataprocessing"
	"estadistica/pkg/contracts/domain"
)

// Sheet names, in their fixed output order.
const (
	SheetSummary     = "EstadisticaCalculada"
	SheetCategorized = "ExamenesCategorizados"
	SheetRaw         = "DatosDescargados"
)

const maxColumnWidth = 50

// WorkbookWriter writes the consolidated workbook.
type WorkbookWriter struct {
	logger *slog.Logger
}

// NewWorkbookWriter creates a workbook writer.
func NewWorkbookWriter(logger *slog.Logger) *WorkbookWriter {
	return &WorkbookWriter{logger: logger}
}

// Write serializes the three tables to outputPath. The write is atomic: the
// workbook is built in a temporary file next to the destination and renamed
// over it, so a crash mid-write never corrupts a prior good output. A re-run
// replaces the file wholesale; nothing is ever appended.
func (w *WorkbookWriter) Write(outputPath string, tables dataprocessing.Tables) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", SheetSummary)
	if _, err := f.NewSheet(SheetCategorized); err != nil {
		return fmt.Errorf("create sheet %s: %w", SheetCategorized, err)
	}
	if _, err := f.NewSheet(SheetRaw); err != nil {
		return fmt.Errorf("create sheet %s: %w", SheetRaw, err)
	}

	if err := w.writeSummary(f, tables.Summary); err != nil {
		return err
	}
	if err := w.writeCategorized(f, tables.Categorized); err != nil {
		return err
	}
	if err := w.writeRaw(f, tables.Raw); err != nil {
		return err
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	tmpPath := outputPath + ".tmp"
	if err := f.SaveAs(tmpPath); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace output file: %w", err)
	}

	w.logger.Info("workbook written",
		slog.String("path", outputPath),
		slog.Int("summary_rows", len(tables.Summary)),
		slog.Int("categorized_rows", len(tables.Categorized)),
		slog.Int("raw_rows", len(tables.Raw)))
	return nil
}

func (w *WorkbookWriter) writeSummary(f *excelize.File, rows []dataprocessing.SummaryRow) error {
	headers := []interface{}{
		"Category", "Fecha",
		"Hospitalización Total", "Consulta Externa Total", "Emergencia",
		"Total", "Exámenes",
	}
	data := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		data = append(data, []interface{}{
			r.Category, r.Date,
			r.HospitalizacionTotal, r.ConsultaExternaTotal, r.Emergencia,
			r.Total, r.ExamCount,
		})
	}
	return w.writeSheet(f, SheetSummary, headers, data)
}

func (w *WorkbookWriter) writeCategorized(f *excelize.File, records []domain.CategorizedExamRecord) error {
	headers := []interface{}{
		"Seccion", "Examen", "Multiplicador", "Category",
		"Fecha", "Cantidad", "Total Ponderado",
	}
	data := make([][]interface{}, 0, len(records))
	for _, r := range records {
		data = append(data, []interface{}{
			r.Section, r.Exam, r.Multiplier, r.Category,
			r.Date.Format("2006-01-02"), r.Count, r.WeightedCount,
		})
	}
	return w.writeSheet(f, SheetCategorized, headers, data)
}

func (w *WorkbookWriter) writeRaw(f *excelize.File, records []domain.RawExamRecord) error {
	headers := []interface{}{"Fecha", "Seccion", "Examen", "Cantidad"}
	data := make([][]interface{}, 0, len(records))
	for _, r := range records {
		data = append(data, []interface{}{
			r.Date.Format("2006-01-02"), r.Section, r.Exam, r.Count,
		})
	}
	return w.writeSheet(f, SheetRaw, headers, data)
}

// writeSheet fills one sheet and applies the shared formatting: frozen
// header row, auto-filter over the used range and content-sized columns.
func (w *WorkbookWriter) writeSheet(f *excelize.File, sheet string, headers []interface{}, data [][]interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("write headers on %s: %w", sheet, err)
	}
	for i, row := range data {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d on %s: %w", i+2, sheet, err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header on %s: %w", sheet, err)
	}

	lastCell, err := excelize.CoordinatesToCellName(len(headers), len(data)+1)
	if err != nil {
		return err
	}
	if err := f.AutoFilter(sheet, "A1:"+lastCell, nil); err != nil {
		return fmt.Errorf("set auto filter on %s: %w", sheet, err)
	}

	return w.sizeColumns(f, sheet, headers, data)
}

func (w *WorkbookWriter) sizeColumns(f *excelize.File, sheet string, headers []interface{}, data [][]interface{}) error {
	for col := range headers {
		width := cellWidth(headers[col])
		for _, row := range data {
			if col < len(row) {
				if cw := cellWidth(row[col]); cw > width {
					width = cw
				}
			}
		}
		if width > maxColumnWidth {
			width = maxColumnWidth
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, float64(width)); err != nil {
			return fmt.Errorf("size column %s on %s: %w", name, sheet, err)
		}
	}
	return nil
}

func cellWidth(v interface{}) int {
	return len(fmt.Sprintf("%v", v)) + 2
}
