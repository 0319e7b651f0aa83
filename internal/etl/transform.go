package etl

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"

	"tradeetl/internal/table"
	"tradeetl/internal/watermark"
)

// Transformer turns the extracted source rows into the target report.
type Transformer interface {
	Transform(ctx context.Context, src *table.Table, res watermark.Resolution) (*table.Table, error)
}

// TransformFunc adapts a function to Transformer.
type TransformFunc func(ctx context.Context, src *table.Table, res watermark.Resolution) (*table.Table, error)

// Transform calls f.
func (f TransformFunc) Transform(ctx context.Context, src *table.Table, res watermark.Resolution) (*table.Table, error) {
	return f(ctx, src, res)
}

// Projection drops rows dated before the resolution's MinDate and keeps
// only Columns (all columns when empty). Rows from the day before MinDate
// are extracted as context only and never reach the target.
type Projection struct {
	DateColumn string
	Columns    []string
}

// Transform implements Transformer.
func (p Projection) Transform(_ context.Context, src *table.Table, res watermark.Resolution) (*table.Table, error) {
	idx := src.Index(p.DateColumn)
	if idx < 0 {
		if src.Empty() && len(src.Columns) == 0 {
			return src, nil
		}
		return nil, fmt.Errorf("%w: date column %q", table.ErrNoColumn, p.DateColumn)
	}

	var bad error
	kept := src.Filter(func(row []string) bool {
		d, err := civil.ParseDate(row[idx])
		if err != nil {
			if bad == nil {
				bad = fmt.Errorf("row date %q: %w", row[idx], err)
			}
			return false
		}
		return !d.Before(res.MinDate)
	})
	if bad != nil {
		return nil, bad
	}

	if len(p.Columns) == 0 {
		return kept, nil
	}
	return kept.Select(p.Columns...)
}
