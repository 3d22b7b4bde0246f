package dataprocessing

import (
	"context"
	"time"

	"geodash/internal/config"
	"geodash/pkg/contracts/domain"
)

// Processor runs the full preparation pipeline over a raw table.
type Processor interface {
	Run(ctx context.Context, table *domain.Table) (*Result, error)
}

// ProcessingOptions configures the pipeline limits and parallelism.
type ProcessingOptions struct {
	// Fields is the caller's declared field list. Nil means all columns.
	Fields []string

	// MaxRecords rejects larger datasets before aggregation. 0 means no limit.
	MaxRecords int

	// ParallelThreshold is the record count above which counting fans out.
	ParallelThreshold int

	// Workers bounds the goroutines used for counting. 0 means runtime.NumCPU.
	Workers int

	// Budget is the wall-clock limit for aggregation. 0 means no limit.
	Budget time.Duration
}

// DefaultOptions returns default processing options
func DefaultOptions() ProcessingOptions {
	return ProcessingOptions{
		MaxRecords:        200000,
		ParallelThreshold: 2048,
		Workers:           0,
		Budget:            2 * time.Minute,
	}
}

// OptionsFromConfig maps the pipeline configuration section onto options
func OptionsFromConfig(cfg config.PipelineConfig) ProcessingOptions {
	return ProcessingOptions{
		MaxRecords:        cfg.MaxRecords,
		ParallelThreshold: cfg.ParallelThreshold,
		Workers:           cfg.Workers,
		Budget:            cfg.Budget,
	}
}

// Result is the immutable output of one pipeline run.
type Result struct {
	Dataset    *domain.Dataset
	Fields     []string
	Categories []domain.CategoryDescriptor
	Stats      Stats
}

// Stats summarizes a pipeline run.
type Stats struct {
	Records           int                        `json:"records"`
	SentinelLocations int                        `json:"sentinel_locations"`
	MaxNeighborCount  map[domain.RadiusLevel]int `json:"max_neighbor_count"`
	Duration          time.Duration              `json:"duration"`
	StageDurations    map[string]time.Duration   `json:"stage_durations"`
}
