package domain

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateRange selects an inclusive run of days within a single calendar month.
type DateRange struct {
	Year     int `json:"year" validate:"required,min=1900,max=2100"`
	Month    int `json:"month" validate:"required,min=1,max=12"`
	DayStart int `json:"day_start" validate:"required,min=1,max=31"`
	DayEnd   int `json:"day_end" validate:"required,min=1,max=31"`
}

// Validate checks the field bounds from the struct tags plus the range
// invariant: 1 <= DayStart <= DayEnd <= days in month.
func (r DateRange) Validate() error {
	if err := validator.New().Struct(r); err != nil {
		return fmt.Errorf("invalid date range: %w", err)
	}
	last := daysInMonth(r.Year, time.Month(r.Month))
	if r.DayStart > r.DayEnd {
		return fmt.Errorf("invalid day range %d..%d", r.DayStart, r.DayEnd)
	}
	if r.DayEnd > last {
		return fmt.Errorf("day %d exceeds %d days in %d-%02d", r.DayEnd, last, r.Year, r.Month)
	}
	return nil
}

// Dates returns the ordered sequence of calendar dates covered by the range,
// one per day, inclusive, no gaps and no duplicates.
func (r DateRange) Dates() []time.Time {
	dates := make([]time.Time, 0, r.DayEnd-r.DayStart+1)
	for day := r.DayStart; day <= r.DayEnd; day++ {
		dates = append(dates, time.Date(r.Year, time.Month(r.Month), day, 0, 0, 0, 0, time.UTC))
	}
	return dates
}

// Len returns the number of days in the range.
func (r DateRange) Len() int {
	return r.DayEnd - r.DayStart + 1
}

func daysInMonth(year int, month time.Month) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
