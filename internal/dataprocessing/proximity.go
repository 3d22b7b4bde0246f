package dataprocessing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"geodash/internal/spatial"
	"geodash/pkg/contracts/domain"
)

const (
	minChunkSize  = 256
	chunksPerWork = 4
)

// Aggregator fills the five radius fields with neighbor counts.
type Aggregator struct {
	maxRecords        int
	parallelThreshold int
	workers           int
	budget            time.Duration
	logger            *slog.Logger
}

// NewAggregator creates an aggregator from processing options
func NewAggregator(opts ProcessingOptions, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Aggregator{
		maxRecords:        opts.MaxRecords,
		parallelThreshold: opts.ParallelThreshold,
		workers:           workers,
		budget:            opts.Budget,
		logger:            logger,
	}
}

// Aggregate returns a new dataset whose radius fields hold, for every record
// with a valid location, the number of valid records inside its inclusive
// window at that radius (itself included). Records without a valid location
// keep the sentinel and are never counted.
//
// Each count depends only on the full set of valid locations, never on the
// order records are processed in.
func (a *Aggregator) Aggregate(ctx context.Context, ds *domain.Dataset) (*domain.Dataset, error) {
	if ds == nil {
		return nil, GenericProcessingError(StageAggregate, errNilTable)
	}
	if a.maxRecords > 0 && ds.Len() > a.maxRecords {
		return nil, DatasetTooLargeError(fmt.Sprintf("%d records exceeds the limit of %d", ds.Len(), a.maxRecords))
	}

	runCtx := ctx
	if a.budget > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, a.budget)
		defer cancel()
	}

	rows, points := locatedPoints(ds)
	levels := domain.RadiusLevels()

	grids := make([]*spatial.Grid, len(levels))
	for i, level := range levels {
		if err := runCtx.Err(); err != nil {
			return nil, a.limitError(ctx, err)
		}
		grids[i] = spatial.NewGrid(points, level.Degrees())
	}

	counts := make([][]int, len(levels))
	for i := range counts {
		counts[i] = make([]int, len(points))
	}

	if err := a.count(runCtx, grids, levels, points, counts); err != nil {
		return nil, a.limitError(ctx, err)
	}

	out := ds
	for i, level := range levels {
		col := unknownColumn(ds.Len())
		for j, row := range rows {
			col[row] = domain.Int(counts[i][j])
		}
		var err error
		if out.Schema().Has(string(level)) {
			out, err = out.ReplaceColumn(string(level), col)
		} else {
			out, err = out.WithColumn(string(level), col)
		}
		if err != nil {
			return nil, GenericProcessingError(StageAggregate, err)
		}
	}

	a.logger.DebugContext(ctx, "proximity aggregation complete",
		slog.Int("records", ds.Len()),
		slog.Int("located", len(points)))
	return out, nil
}

// count fills counts[level][point]. Every slot has exactly one writer.
func (a *Aggregator) count(ctx context.Context, grids []*spatial.Grid, levels []domain.RadiusLevel, points []orb.Point, counts [][]int) error {
	workers := a.workers
	if len(points) <= a.parallelThreshold {
		workers = 1
	}

	chunk := (len(points) + workers*chunksPerWork - 1) / (workers * chunksPerWork)
	if chunk < minChunkSize {
		chunk = minChunkSize
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(points); start += chunk {
		start, end := start, min(start+chunk, len(points))
		g.Go(func() error {
			for j := start; j < end; j++ {
				if (j-start)%minChunkSize == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				for i, grid := range grids {
					counts[i][j] = grid.CountWithin(points[j], levels[i].Degrees())
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// limitError maps a context failure to the caller-visible error: a parent
// cancellation is returned as is, an expired budget is a too-large dataset.
func (a *Aggregator) limitError(parent context.Context, err error) error {
	if perr := parent.Err(); perr != nil {
		return perr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return DatasetTooLargeError(fmt.Sprintf("proximity aggregation exceeded the %s time budget", a.budget))
	}
	return GenericProcessingError(StageAggregate, err)
}

// locatedPoints returns the row index and point of every record with a
// valid location key.
func locatedPoints(ds *domain.Dataset) ([]int, []orb.Point) {
	rows := make([]int, 0, ds.Len())
	points := make([]orb.Point, 0, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		rec := ds.Record(i)
		if key := rec.Get(domain.FieldLocationKey); key.IsUnknown() {
			continue
		}
		c, ok := domain.CoordinateOf(rec.Get(domain.FieldLat), rec.Get(domain.FieldLon))
		if !ok {
			continue
		}
		rows = append(rows, i)
		points = append(points, orb.Point{c.Lon, c.Lat})
	}
	return rows, points
}
