package util

import "cloud.google.com/go/civil"

// DateRange returns every calendar date in [from, to], ascending. It returns
// nil when to is before from.
func DateRange(from, to civil.Date) []civil.Date {
	if to.Before(from) {
		return nil
	}
	days := to.DaysSince(from) + 1
	out := make([]civil.Date, 0, days)
	for d := from; !d.After(to); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}

// FormatDates renders dates as YYYY-MM-DD strings.
func FormatDates(dates []civil.Date) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.String()
	}
	return out
}
