package dataprocessing

import (
	"sort"

	"estadistica/pkg/contracts/domain"
)

// TotalCategory labels the per-date totals row in the summary sheet.
const TotalCategory = "TOTAL"

// categoryOrder fixes the display order of the summary sheet; categories not
// listed sort after these, alphabetically, and TOTAL closes each date.
var categoryOrder = []string{
	"Hematologico",
	"Bacteriológico",
	"Quimica sanguinea",
	"Materias fecales",
	"Orina",
	"Hormonales",
	"Serologicos",
	"Otros",
	TotalCategory,
}

// SummaryRow is one row of the EstadisticaCalculada sheet.
type SummaryRow struct {
	Category             string
	Date                 string
	HospitalizacionTotal float64
	ConsultaExternaTotal float64
	Emergencia           float64
	Total                float64
	ExamCount            int
}

// Tables holds the three output tables of one consolidation run.
type Tables struct {
	// Summary is EstadisticaCalculada: one row per observed
	// (category, date) pair plus a TOTAL row per date.
	Summary []SummaryRow
	// Categorized is ExamenesCategorizados in ingestion order.
	Categorized []domain.CategorizedExamRecord
	// Raw is DatosDescargados: the uncategorized merge, ingestion order.
	Raw []domain.RawExamRecord
}

// AggregateStats folds categorized records into per-(category, date) totals.
// Summation is commutative and associative: any permutation of the input
// yields the same totals.
func AggregateStats(records []domain.CategorizedExamRecord) map[domain.StatKey]domain.AggregatedStat {
	stats := make(map[domain.StatKey]domain.AggregatedStat)
	for _, rec := range records {
		key := rec.Key()
		s := stats[key]
		s.Category = rec.Category
		s.Date = rec.Date
		s.SumWeighted += rec.WeightedCount
		s.ExamCount++
		stats[key] = s
	}
	return stats
}

// weightedBreakdown accumulates multiplier-weighted attention-type sums.
type weightedBreakdown map[string]float64

// BuildTables produces the three output tables from the categorized records.
// The consolidated tables are rebuilt from scratch on every call, so
// repeating a run over unchanged inputs yields identical output.
func BuildTables(records []domain.CategorizedExamRecord) Tables {
	tables := Tables{
		Categorized: records,
		Raw:         make([]domain.RawExamRecord, 0, len(records)),
	}
	for _, rec := range records {
		tables.Raw = append(tables.Raw, rec.RawExamRecord)
	}

	stats := AggregateStats(records)
	breakdowns := make(map[domain.StatKey]weightedBreakdown)
	for _, rec := range records {
		key := rec.Key()
		wb, ok := breakdowns[key]
		if !ok {
			wb = make(weightedBreakdown)
			breakdowns[key] = wb
		}
		for col, count := range rec.Breakdown {
			wb[col] += float64(count) * rec.Multiplier
		}
	}

	keys := make([]domain.StatKey, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Date != keys[j].Date {
			return keys[i].Date < keys[j].Date
		}
		oi, oj := categoryRank(keys[i].Category), categoryRank(keys[j].Category)
		if oi != oj {
			return oi < oj
		}
		return keys[i].Category < keys[j].Category
	})

	var currentDate string
	var dateTotal SummaryRow
	flushTotal := func() {
		if currentDate != "" {
			dateTotal.Category = TotalCategory
			dateTotal.Date = currentDate
			tables.Summary = append(tables.Summary, dateTotal)
		}
	}
	for _, key := range keys {
		if key.Date != currentDate {
			flushTotal()
			currentDate = key.Date
			dateTotal = SummaryRow{}
		}
		row := buildSummaryRow(key, stats[key], breakdowns[key])
		tables.Summary = append(tables.Summary, row)

		dateTotal.HospitalizacionTotal += row.HospitalizacionTotal
		dateTotal.ConsultaExternaTotal += row.ConsultaExternaTotal
		dateTotal.Emergencia += row.Emergencia
		dateTotal.Total += row.Total
		dateTotal.ExamCount += row.ExamCount
	}
	flushTotal()

	return tables
}

func buildSummaryRow(key domain.StatKey, stat domain.AggregatedStat, wb weightedBreakdown) SummaryRow {
	return SummaryRow{
		Category: key.Category,
		Date:     key.Date,
		HospitalizacionTotal: wb["Hospitalización"] +
			wb["URGENTE HOSPITALIZACION"] +
			wb["Sin tipo atención"],
		ConsultaExternaTotal: wb["Consulta Externa"] +
			wb["URGENTE CONSULTA EXTERNA"] +
			wb["REFERENCIA"] +
			wb["URGENTE REFERENCIA"],
		Emergencia: wb["Emergencia"],
		Total:      stat.SumWeighted,
		ExamCount:  stat.ExamCount,
	}
}

func categoryRank(category string) int {
	for i, c := range categoryOrder {
		if c == category {
			return i
		}
	}
	return len(categoryOrder)
}
