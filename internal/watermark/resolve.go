package watermark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/civil"

	"tradeetl/internal/store"
	"tradeetl/internal/table"
	"tradeetl/internal/util"
)

// Resolve computes which dates must be extracted so that everything from
// first through today is covered by the log at key.
//
// Without a log every date from the day before first through today is
// returned and MinDate is first. With a log, the earliest date in
// [first, today] missing from the log sets the watermark; the returned dates
// run contiguously from the day before that gap through today. If nothing is
// missing, MinDate is Sentinel and Dates is empty.
func Resolve(ctx context.Context, s store.TabularStore, key string, first civil.Date) (Resolution, error) {
	start := first.AddDays(-1)
	end := today()

	log, err := s.Read(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		slog.InfoContext(ctx, "no watermark log, processing full range", "key", key, "first_date", first.String())
		return Resolution{MinDate: first, Dates: util.DateRange(start, end)}, nil
	}
	if err != nil {
		return Resolution{}, fmt.Errorf("reading watermark log %s: %w", key, err)
	}

	logged, err := loggedDates(log)
	if err != nil {
		return Resolution{}, fmt.Errorf("watermark log %s: %w", key, err)
	}

	// candidates[0] is the probe day before first; it never counts as a gap.
	candidates := util.DateRange(start, end)
	var gap civil.Date
	found := false
	for _, d := range candidates[min(1, len(candidates)):] {
		if _, ok := logged[d]; !ok {
			gap, found = d, true
			break
		}
	}
	if !found {
		slog.InfoContext(ctx, "all dates already processed", "key", key, "first_date", first.String())
		return Resolution{MinDate: Sentinel}, nil
	}

	from := gap.AddDays(-1)
	var dates []civil.Date
	for _, d := range candidates {
		if !d.Before(from) {
			dates = append(dates, d)
		}
	}
	slog.InfoContext(ctx, "watermark resolved", "key", key, "min_date", gap.String(), "dates", len(dates))
	return Resolution{MinDate: from.AddDays(1), Dates: dates}, nil
}

// loggedDates parses the source_date column into a set.
func loggedDates(log *table.Table) (map[civil.Date]struct{}, error) {
	values, err := log.Column(SourceDateColumn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedLog, err)
	}
	set := make(map[civil.Date]struct{}, len(values))
	for i, v := range values {
		d, err := parseDate(v)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrMalformedLog, i+1, err)
		}
		set[d] = struct{}{}
	}
	return set, nil
}

func parseDate(v string) (civil.Date, error) {
	return civil.ParseDate(strings.TrimSpace(v))
}
