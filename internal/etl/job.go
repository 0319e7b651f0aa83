// Package etl runs one incremental extraction: it asks the watermark log
// which dates are pending, pulls those dates' objects from the source store,
// transforms them, writes one report object to the target store and finally
// records the processed dates.
package etl

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"cloud.google.com/go/civil"

	"tradeetl/internal/config"
	"tradeetl/internal/store"
	"tradeetl/internal/table"
	"tradeetl/internal/util"
	"tradeetl/internal/watermark"
)

// Job wires the three stores and the job settings together.
type Job struct {
	Source store.TabularStore
	Target store.TabularStore
	Meta   store.TabularStore

	MetaKey       string
	FirstDate     civil.Date
	KeyPrefix     string
	KeyDateLayout string
	Format        table.Format

	Transformer Transformer
	Logger      *slog.Logger

	limiter *util.RateLimiter
	now     func() time.Time
}

// Result summarises a run.
type Result struct {
	MinDate   civil.Date
	Dates     []civil.Date
	Extracted int
	Written   int
	TargetKey string
	Recorded  []civil.Date
}

// NewJob builds a Job from configuration and opened stores. The default
// transformer is a Projection over the configured source columns.
func NewJob(cfg *config.Config, source, target, meta store.TabularStore, logger *slog.Logger) (*Job, error) {
	first, err := cfg.FirstDate()
	if err != nil {
		return nil, err
	}
	format, err := table.ParseFormat(cfg.Target.Format)
	if err != nil {
		return nil, fmt.Errorf("target format: %w", err)
	}
	return &Job{
		Source:        source,
		Target:        target,
		Meta:          meta,
		MetaKey:       cfg.Meta.Key,
		FirstDate:     first,
		KeyPrefix:     cfg.Target.KeyPrefix,
		KeyDateLayout: cfg.Target.KeyDateLayout,
		Format:        format,
		Transformer:   Projection{DateColumn: cfg.Source.DateColumn, Columns: cfg.Source.Columns},
		Logger:        util.OrDefault(logger),
		limiter:       util.NewRateLimiter(cfg.Source.RateLimitPerMin),
		now:           time.Now,
	}, nil
}

// Plan resolves the pending dates without touching source or target.
func (j *Job) Plan(ctx context.Context) (watermark.Resolution, error) {
	return watermark.Resolve(ctx, j.Meta, j.MetaKey, j.FirstDate)
}

// Run executes one extraction. The watermark log is only updated after the
// report has been written.
func (j *Job) Run(ctx context.Context) (Result, error) {
	logger := util.OrDefault(j.Logger)
	logger.Info("trade ETL job started", "first_date", j.FirstDate.String(), "meta_key", j.MetaKey)

	res, err := j.Plan(ctx)
	if err != nil {
		return Result{}, err
	}
	out := Result{MinDate: res.MinDate, Dates: res.Dates}
	if res.Empty() {
		logger.Info("nothing to process")
		return out, nil
	}

	src, err := j.extract(ctx, res.Dates)
	if err != nil {
		return out, fmt.Errorf("extract: %w", err)
	}
	out.Extracted = src.Len()

	report, err := j.transformer().Transform(ctx, src, res)
	if err != nil {
		return out, fmt.Errorf("transform: %w", err)
	}

	key := j.targetKey()
	wrote, err := j.Target.Write(ctx, key, report)
	if err != nil {
		return out, fmt.Errorf("load: %w", err)
	}
	if wrote {
		out.TargetKey = key
		out.Written = report.Len()
	}

	// The probe day before MinDate was read for context only.
	var processed []civil.Date
	for _, d := range res.Dates {
		if !d.Before(res.MinDate) {
			processed = append(processed, d)
		}
	}
	if err := watermark.Record(ctx, j.Meta, j.MetaKey, processed); err != nil {
		return out, err
	}
	out.Recorded = processed

	logger.Info("trade ETL job finished",
		"min_date", res.MinDate.String(),
		"dates", len(res.Dates),
		"extracted", out.Extracted,
		"written", out.Written,
		"target_key", out.TargetKey)
	return out, nil
}

// extract reads every CSV object listed under each date prefix and
// concatenates them.
func (j *Job) extract(ctx context.Context, dates []civil.Date) (*table.Table, error) {
	logger := util.OrDefault(j.Logger)
	var all *table.Table
	for _, d := range dates {
		keys, err := j.Source.List(ctx, d.String())
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			if path.Ext(key) != table.FormatCSV.Ext() {
				continue
			}
			if err := j.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			t, err := j.Source.Read(ctx, key)
			if err != nil {
				return nil, err
			}
			if len(t.Columns) == 0 {
				continue
			}
			if all == nil {
				all = t
				continue
			}
			if all, err = all.Concat(t); err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
		}
		logger.Debug("extracted date", "date", d.String(), "objects", len(keys))
	}
	if all == nil {
		all = table.New()
	}
	return all, nil
}

func (j *Job) targetKey() string {
	clock := j.now
	if clock == nil {
		clock = time.Now
	}
	format := j.Format
	if format == "" {
		format = table.FormatParquet
	}
	return j.KeyPrefix + clock().Format(j.KeyDateLayout) + format.Ext()
}

func (j *Job) transformer() Transformer {
	if j.Transformer == nil {
		return TransformFunc(func(_ context.Context, src *table.Table, _ watermark.Resolution) (*table.Table, error) {
			return src, nil
		})
	}
	return j.Transformer
}
