package watermark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"tradeetl/internal/store"
	"tradeetl/internal/table"
)

// Record appends one entry per date to the log at key, all stamped with the
// current time, and rewrites the whole log. An existing log whose columns
// are not exactly source_date and processed_at is rejected with
// ErrWrongSchema and left as is. Recording no dates does nothing.
func Record(ctx context.Context, s store.TabularStore, key string, dates []civil.Date) error {
	if len(dates) == 0 {
		slog.InfoContext(ctx, "no processed dates, watermark log not written", "key", key)
		return nil
	}

	stamp := now().Format(ProcessedAtLayout)
	batch := table.New(SourceDateColumn, ProcessedAtColumn)
	for _, d := range dates {
		if err := batch.Append(d.String(), stamp); err != nil {
			return err
		}
	}

	merged := batch
	old, err := s.Read(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return fmt.Errorf("reading watermark log %s: %w", key, err)
	default:
		if !old.SameColumns(batch) {
			return fmt.Errorf("%w: %s has columns [%s]", ErrWrongSchema, key, strings.Join(old.Columns, ", "))
		}
		if merged, err = old.Concat(batch); err != nil {
			return fmt.Errorf("merging watermark log %s: %w", key, err)
		}
	}

	if _, err := s.Write(ctx, key, merged); err != nil {
		return fmt.Errorf("writing watermark log %s: %w", key, err)
	}
	slog.InfoContext(ctx, "watermark log updated", "key", key, "added", len(dates), "total", merged.Len())
	return nil
}

// Entries decodes the full log at key in stored order. A missing log yields
// an error wrapping store.ErrNotFound.
func Entries(ctx context.Context, s store.TabularStore, key string) ([]Entry, error) {
	log, err := s.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	src, err := log.Column(SourceDateColumn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedLog, err)
	}
	processed, err := log.Column(ProcessedAtColumn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedLog, err)
	}

	entries := make([]Entry, len(src))
	for i := range src {
		d, err := parseDate(src[i])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrMalformedLog, i+1, err)
		}
		at, err := parseProcessedAt(processed[i])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrMalformedLog, i+1, err)
		}
		entries[i] = Entry{SourceDate: d, ProcessedAt: at}
	}
	return entries, nil
}

// parseProcessedAt accepts the canonical layout and bare dates written by
// older jobs.
func parseProcessedAt(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.ParseInLocation(ProcessedAtLayout, v, time.Local); err == nil {
		return t, nil
	}
	return time.ParseInLocation(DateLayout, v, time.Local)
}
