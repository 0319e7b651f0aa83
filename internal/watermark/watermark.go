// Package watermark tracks which source dates an ETL job has already
// processed. The log is a two-column table (source_date, processed_at) kept
// in a store.TabularStore under one key. It is append-only and is not
// deduplicated: a date processed twice appears twice.
//
// Resolve works out which dates still need processing; Record appends
// newly processed dates. Both are stateless and read the log fresh on every
// call. Concurrent Record calls against the same key race (last writer
// wins), so callers must run a single writer per key.
package watermark

import (
	"errors"
	"time"

	"cloud.google.com/go/civil"
)

// Log schema.
const (
	SourceDateColumn  = "source_date"
	ProcessedAtColumn = "processed_at"

	DateLayout        = "2006-01-02"
	ProcessedAtLayout = "2006-01-02 15:04:05"
)

// Sentinel is the MinDate reported when nothing needs processing.
var Sentinel = civil.Date{Year: 2200, Month: time.January, Day: 1}

var (
	// ErrMalformedLog is returned by Resolve when the existing log has no
	// usable source_date column.
	ErrMalformedLog = errors.New("malformed watermark log")

	// ErrWrongSchema is returned by Record when the existing log's columns
	// differ from the expected schema. The stored log is left untouched.
	ErrWrongSchema = errors.New("watermark log has wrong schema")
)

// now is replaced in tests.
var now = time.Now

func today() civil.Date {
	return civil.DateOf(now())
}

// Entry is one row of the log.
type Entry struct {
	SourceDate  civil.Date
	ProcessedAt time.Time
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	// MinDate is the earliest date that needs processing, or Sentinel.
	MinDate civil.Date
	// Dates are the dates to (re)extract in ascending order. It may start
	// one day before MinDate; that day is context for the first new day.
	Dates []civil.Date
}

// Empty reports whether there is nothing to process.
func (r Resolution) Empty() bool {
	return len(r.Dates) == 0
}
