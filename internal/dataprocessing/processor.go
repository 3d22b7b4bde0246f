package dataprocessing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"geodash/internal/infrastructure"
	"geodash/pkg/contracts/domain"
)

const tracerName = "geodash/dataprocessing"

// Pipeline runs validate, prepare, aggregate and categorize strictly in order.
// It holds no per-session state and is safe for concurrent use.
type Pipeline struct {
	opts       ProcessingOptions
	aggregator *Aggregator
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    *infrastructure.BusinessMetrics
}

// NewPipeline creates a pipeline. metrics may be nil.
func NewPipeline(opts ProcessingOptions, logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "pipeline"))
	return &Pipeline{
		opts:       opts,
		aggregator: NewAggregator(opts, logger),
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
		metrics:    metrics,
	}
}

// Run prepares table and returns the augmented dataset and its categories.
// On error the result is always nil.
func (p *Pipeline) Run(ctx context.Context, table *domain.Table) (*Result, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "pipeline.run")
	defer span.End()

	stats := Stats{
		MaxNeighborCount: make(map[domain.RadiusLevel]int, 5),
		StageDurations:   make(map[string]time.Duration, 4),
	}

	var (
		ds         *domain.Dataset
		fields     []string
		categories []domain.CategoryDescriptor
	)

	err := p.stage(ctx, StageValidate, &stats, func(ctx context.Context) error {
		var err error
		ds, fields, err = ValidateSchema(table, p.opts.Fields)
		return err
	})
	if err == nil {
		err = p.stage(ctx, StagePrepare, &stats, func(ctx context.Context) error {
			var err error
			ds, fields, err = PrepareFeatures(ds, fields)
			return err
		})
	}
	if err == nil {
		err = p.stage(ctx, StageAggregate, &stats, func(ctx context.Context) error {
			var err error
			ds, err = p.aggregator.Aggregate(ctx, ds)
			return err
		})
	}
	if err == nil {
		err = p.stage(ctx, StageCategorize, &stats, func(ctx context.Context) error {
			categories = EnumerateCategories(fields)
			return nil
		})
	}

	stats.Duration = time.Since(start)
	if err != nil {
		kind := string(KindOf(err))
		if kind == "" {
			kind = "context"
		}
		infrastructure.RecordError(ctx, err)
		infrastructure.RecordPipelineMetrics(ctx, p.metrics, 0, 0, stats.Duration, kind)
		p.logger.WarnContext(ctx, "pipeline run failed",
			slog.String("error_kind", kind),
			slog.String("error", err.Error()),
			slog.Duration("duration", stats.Duration))
		return nil, err
	}

	collectStats(ds, &stats)
	infrastructure.SetSpanAttributes(ctx, map[string]interface{}{
		"pipeline.records":            stats.Records,
		"pipeline.sentinel_locations": stats.SentinelLocations,
		"pipeline.fields":             len(fields),
	})
	infrastructure.RecordPipelineMetrics(ctx, p.metrics, stats.Records, stats.SentinelLocations, stats.Duration, "")
	p.logger.InfoContext(ctx, "pipeline run complete",
		slog.Int("records", stats.Records),
		slog.Int("sentinel_locations", stats.SentinelLocations),
		slog.Int("fields", len(fields)),
		slog.Duration("duration", stats.Duration))

	return &Result{
		Dataset:    ds,
		Fields:     fields,
		Categories: categories,
		Stats:      stats,
	}, nil
}

// stage runs fn in its own span, converting panics and foreign errors into
// pipeline errors. Context errors pass through unchanged.
func (p *Pipeline) stage(ctx context.Context, name string, stats *Stats, fn func(context.Context) error) (err error) {
	ctx, span := p.tracer.Start(ctx, "pipeline."+name)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = GenericProcessingError(name, fmt.Errorf("panic: %v", r))
		}
		elapsed := time.Since(start)
		stats.StageDurations[name] = elapsed
		infrastructure.RecordPipelineStageMetrics(ctx, p.metrics, name, elapsed, err == nil)
		if err != nil {
			infrastructure.RecordError(ctx, err)
		} else {
			infrastructure.AddSpanEvent(ctx, "stage.complete", map[string]interface{}{
				"stage":       name,
				"duration_ms": elapsed.Milliseconds(),
			})
		}
		span.End()
	}()

	if err = ctx.Err(); err != nil {
		return err
	}
	if err = fn(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return AsPipelineError(err, name)
	}
	return nil
}

func collectStats(ds *domain.Dataset, stats *Stats) {
	stats.Records = ds.Len()
	for i := 0; i < ds.Len(); i++ {
		rec := ds.Record(i)
		if rec.Get(domain.FieldLocationKey).IsUnknown() {
			stats.SentinelLocations++
			continue
		}
		for _, level := range domain.RadiusLevels() {
			if n, ok := rec.Get(string(level)).Float(); ok && int(n) > stats.MaxNeighborCount[level] {
				stats.MaxNeighborCount[level] = int(n)
			}
		}
	}
}
