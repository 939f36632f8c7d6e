package domain

import "time"

// DayLayout is the calendar-day format used by the usage ledger.
const DayLayout = "2006-01-02"

// DailyUsage is the number of accepted requests for one UTC day.
type DailyUsage struct {
	Date  string `json:"date" db:"day"`
	Count int64  `json:"count" db:"count"`
}

// UsageReport aggregates usage across all of a user's keys.
type UsageReport struct {
	Total int64        `json:"total"`
	ByDay []DailyUsage `json:"byDay"`
}

// Day truncates t to the start of its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
