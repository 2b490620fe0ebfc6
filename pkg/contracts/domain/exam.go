package domain

import (
	"time"
)

// RawExamRecord is one row of a per-day laboratory report: a portal section,
// an exam name and how many times the exam was performed that day.
// Records are immutable once produced by the parser.
type RawExamRecord struct {
	Date    time.Time `json:"date"`
	Section string    `json:"section" validate:"required"`
	Exam    string    `json:"exam" validate:"required"`
	Count   int       `json:"count" validate:"min=0"`

	// Breakdown holds the per-attention-type counts when the report was
	// generated with the type-of-attention grouping; nil for the simple
	// report layout. Count always carries the row total either way.
	Breakdown map[string]int `json:"breakdown,omitempty"`
}

// CategorizedExamRecord is a RawExamRecord resolved against the category
// rules. Resolution is total: Category and Multiplier are always set,
// falling back to the rule defaults, and WeightedCount = Count * Multiplier.
type CategorizedExamRecord struct {
	RawExamRecord
	Category      string  `json:"category"`
	Multiplier    float64 `json:"multiplier"`
	WeightedCount float64 `json:"weighted_count"`
}

// AggregatedStat holds the totals for one (category, date) key.
type AggregatedStat struct {
	Category    string    `json:"category"`
	Date        time.Time `json:"date"`
	SumWeighted float64   `json:"sum_weighted"`
	ExamCount   int       `json:"exam_count"`
}

// StatKey identifies one aggregation bucket. Dates are normalized to
// YYYY-MM-DD so records parsed from different files group correctly.
type StatKey struct {
	Category string
	Date     string
}

// Key returns the aggregation key for a categorized record.
func (r CategorizedExamRecord) Key() StatKey {
	return StatKey{Category: r.Category, Date: r.Date.Format("2006-01-02")}
}
