package dataprocessing

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"geodash/internal/config"
	"geodash/internal/infrastructure"
	"geodash/pkg/contracts/domain"
)

func newTestPipeline(t *testing.T, opts ProcessingOptions) *Pipeline {
	t.Helper()
	metrics, err := infrastructure.CreateBusinessMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewPipeline(opts, logger, metrics)
}

func TestPipelineRun(t *testing.T) {
	table := withRow(specimens(), domain.Text("yew"), domain.Number(200), domain.Number(0))

	result, err := newTestPipeline(t, DefaultOptions()).Run(context.Background(), table)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, []string{
		"species", "lat", "lon", "locality",
		"lat-lon", "half_km", "4-10_km", "3-10_km", "2-10_km", "tenth_km",
	}, result.Fields)
	assert.Equal(t, result.Fields, result.Dataset.Fields())
	assert.Equal(t, []domain.CategoryDescriptor{
		{Label: "species", Value: "species"},
		{Label: "lat", Value: "lat"},
		{Label: "lon", Value: "lon"},
		{Label: "locality", Value: "locality"},
	}, result.Categories)

	assert.Equal(t, []string{"2", "2", "1", "1", "unknown"}, countsOf(t, result.Dataset, domain.RadiusTenthKm))
	assert.Equal(t, []string{"3", "3", "3", "1", "unknown"}, countsOf(t, result.Dataset, domain.RadiusHalfKm))

	assert.Equal(t, 5, result.Stats.Records)
	assert.Equal(t, 1, result.Stats.SentinelLocations)
	assert.Equal(t, 3, result.Stats.MaxNeighborCount[domain.RadiusHalfKm])
	assert.Equal(t, 2, result.Stats.MaxNeighborCount[domain.RadiusTenthKm])
	for _, stage := range []string{StageValidate, StagePrepare, StageAggregate, StageCategorize} {
		assert.Contains(t, result.Stats.StageDurations, stage)
	}
}

func TestPipelineAliasIsEquivalent(t *testing.T) {
	aliased := specimens()
	aliased.Columns = []string{"species", "lat", "long"}

	p := newTestPipeline(t, DefaultOptions())
	native, err := p.Run(context.Background(), specimens())
	require.NoError(t, err)
	alias, err := p.Run(context.Background(), aliased)
	require.NoError(t, err)

	assert.Equal(t, native.Fields, alias.Fields)
	assert.Equal(t, native.Categories, alias.Categories)
	assert.Equal(t, native.Dataset.Rows(), alias.Dataset.Rows())
}

func TestPipelineCategoriesNeverDerived(t *testing.T) {
	result, err := newTestPipeline(t, DefaultOptions()).Run(context.Background(), specimens())
	require.NoError(t, err)

	for _, c := range result.Categories {
		assert.False(t, domain.IsDerivedField(c.Value), "category %q is derived", c.Value)
	}
}

func TestPipelineErrors(t *testing.T) {
	tests := []struct {
		name  string
		table *domain.Table
		opts  ProcessingOptions
		kind  ErrorKind
	}{
		{
			name: "missing lon",
			table: &domain.Table{
				Columns: []string{"species", "lat"},
				Rows:    [][]domain.Value{{domain.Text("oak"), domain.Number(0)}},
			},
			opts: DefaultOptions(),
			kind: KindMissingRequiredField,
		},
		{
			name: "non-numeric latitude",
			table: &domain.Table{
				Columns: []string{"lat", "lon"},
				Rows:    [][]domain.Value{{domain.Text("north"), domain.Number(0)}},
			},
			opts: DefaultOptions(),
			kind: KindCoordinateType,
		},
		{
			name:  "too many records",
			table: specimens(),
			opts:  ProcessingOptions{MaxRecords: 2},
			kind:  KindDatasetTooLarge,
		},
		{
			name:  "no table",
			table: nil,
			opts:  DefaultOptions(),
			kind:  KindGenericProcessing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := newTestPipeline(t, tt.opts).Run(context.Background(), tt.table)
			require.Error(t, err)
			assert.Nil(t, result, "no partial result on error")
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestPipelineMissingLonField(t *testing.T) {
	_, err := newTestPipeline(t, DefaultOptions()).Run(context.Background(), &domain.Table{
		Columns: []string{"lat"},
		Rows:    [][]domain.Value{{domain.Number(0)}},
	})

	var pErr *PipelineError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "lon", pErr.Field)
}

func TestPipelineDeclaredFields(t *testing.T) {
	opts := DefaultOptions()
	opts.Fields = []string{"lat", "lon"}

	result, err := newTestPipeline(t, opts).Run(context.Background(), specimens())
	require.NoError(t, err)
	assert.Equal(t, []domain.CategoryDescriptor{
		{Label: "lat", Value: "lat"},
		{Label: "lon", Value: "lon"},
		{Label: "locality", Value: "locality"},
	}, result.Categories)
	assert.False(t, result.Dataset.Schema().Has("species"))
}

func TestPipelineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newTestPipeline(t, DefaultOptions()).Run(ctx, specimens())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
	assert.Equal(t, ErrorKind(""), KindOf(err))
}

func TestPipelineWithoutMetrics(t *testing.T) {
	result, err := NewPipeline(DefaultOptions(), nil, nil).Run(context.Background(), specimens())
	require.NoError(t, err)
	assert.Equal(t, 4, result.Stats.Records)
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.PipelineConfig{
		MaxRecords:        10,
		ParallelThreshold: 20,
		Workers:           3,
		Budget:            time.Second,
	})
	assert.Equal(t, ProcessingOptions{MaxRecords: 10, ParallelThreshold: 20, Workers: 3, Budget: time.Second}, opts)
}

func recordingPipeline(t *testing.T) (*Pipeline, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	p := newTestPipeline(t, DefaultOptions())
	p.tracer = provider.Tracer("test")
	return p, recorder
}

func endedSpan(t *testing.T, recorder *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, span := range recorder.Ended() {
		if span.Name() == name {
			return span
		}
	}
	t.Fatalf("span %q not recorded", name)
	return nil
}

func TestPipelineRunSpans(t *testing.T) {
	p, recorder := recordingPipeline(t)

	_, err := p.Run(context.Background(), specimens())
	require.NoError(t, err)

	run := endedSpan(t, recorder, "pipeline.run")
	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range run.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, int64(4), attrs["pipeline.records"].AsInt64())
	assert.Equal(t, int64(0), attrs["pipeline.sentinel_locations"].AsInt64())

	for _, stage := range []string{StageValidate, StagePrepare, StageAggregate, StageCategorize} {
		span := endedSpan(t, recorder, "pipeline."+stage)
		require.Len(t, span.Events(), 1)
		assert.Equal(t, "stage.complete", span.Events()[0].Name)
		assert.Equal(t, run.SpanContext().SpanID(), span.Parent().SpanID())
	}
}

func TestPipelineRunSpansRecordFailure(t *testing.T) {
	p, recorder := recordingPipeline(t)

	table := &domain.Table{
		Columns: []string{"species", "lon"},
		Rows:    [][]domain.Value{{domain.Text("oak"), domain.Number(0)}},
	}
	_, err := p.Run(context.Background(), table)
	require.Error(t, err)

	for _, name := range []string{"pipeline.run", "pipeline." + StageValidate} {
		span := endedSpan(t, recorder, name)
		assert.Equal(t, codes.Error, span.Status().Code, name)
		assert.Contains(t, span.Status().Description, "lat", name)
		require.NotEmpty(t, span.Events(), name)
		assert.Equal(t, "exception", span.Events()[0].Name, name)
	}
	for _, span := range recorder.Ended() {
		assert.NotEqual(t, "pipeline."+StagePrepare, span.Name(), "no stage runs after a failure")
	}
}
