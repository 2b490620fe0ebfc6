package dataprocessing

import (
	"strings"

	"estadistica/internal/config"
	"estadistica/pkg/contracts/domain"
)

// Categorize resolves one raw record to its category and multiplier. It is
// pure and total: every record comes back with a definite category and
// multiplier, falling back to the rule defaults.
//
// Precedence, highest first, each half resolved independently:
//  1. exact exam match in Multipliers / ExamCategories
//  2. multiplier only: "CULTIVO" substring, case-insensitive
//  3. category only: SectionCategories lookup
//  4. defaults (1, "Otros")
func Categorize(rec domain.RawExamRecord, rules *config.CategoryRules) domain.CategorizedExamRecord {
	multiplier, haveMult := rules.Multipliers[rec.Exam]
	category, haveCat := rules.ExamCategories[rec.Exam]

	if !haveMult && strings.Contains(strings.ToUpper(rec.Exam), "CULTIVO") {
		multiplier = rules.CultivoMultiplier
		haveMult = true
	}
	if !haveCat {
		category, haveCat = rules.SectionCategories[rec.Section]
	}
	if !haveMult {
		multiplier = config.DefaultMultiplier
	}
	if !haveCat {
		category = config.DefaultCategory
	}

	return domain.CategorizedExamRecord{
		RawExamRecord: rec,
		Category:      category,
		Multiplier:    multiplier,
		WeightedCount: float64(rec.Count) * multiplier,
	}
}

// CategorizeAll resolves a sequence of records, preserving input order.
func CategorizeAll(records []domain.RawExamRecord, rules *config.CategoryRules) []domain.CategorizedExamRecord {
	out := make([]domain.CategorizedExamRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, Categorize(rec, rules))
	}
	return out
}
