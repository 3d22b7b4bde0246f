package dataprocessing

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geodash/pkg/contracts/domain"
)

func newTestAggregator(opts ProcessingOptions) *Aggregator {
	return NewAggregator(opts, nil)
}

func TestAggregateReferenceCounts(t *testing.T) {
	ds, _ := prepared(t, specimens())

	out, err := newTestAggregator(DefaultOptions()).Aggregate(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, []string{"2", "2", "1", "1"}, countsOf(t, out, domain.RadiusTenthKm))
	assert.Equal(t, []string{"3", "3", "3", "1"}, countsOf(t, out, domain.RadiusHalfKm))
}

func TestAggregateSentinelRecord(t *testing.T) {
	base, _ := prepared(t, specimens())
	withP5, _ := prepared(t, withRow(specimens(), domain.Text("yew"), domain.Number(200), domain.Number(0)))

	agg := newTestAggregator(DefaultOptions())
	want, err := agg.Aggregate(context.Background(), base)
	require.NoError(t, err)
	got, err := agg.Aggregate(context.Background(), withP5)
	require.NoError(t, err)

	for _, level := range domain.RadiusLevels() {
		counts := countsOf(t, got, level)
		assert.Equal(t, countsOf(t, want, level), counts[:4], "level %s", level)
		assert.Equal(t, "unknown", counts[4], "level %s", level)
		assert.True(t, got.Value(4, string(level)).IsUnknown())
	}
	assert.True(t, got.Value(4, domain.FieldLocationKey).IsUnknown())
}

func TestAggregateInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	table := &domain.Table{Columns: []string{"lat", "lon"}}
	for i := 0; i < 600; i++ {
		lat := rng.Float64()*0.02 - 0.01
		lon := rng.Float64()*0.02 - 0.01
		if i%37 == 0 {
			lat = 95
		}
		table.Rows = append(table.Rows, []domain.Value{domain.Number(lat), domain.Number(lon)})
	}
	ds, _ := prepared(t, table)

	out, err := newTestAggregator(DefaultOptions()).Aggregate(context.Background(), ds)
	require.NoError(t, err)

	levels := domain.RadiusLevels()
	for i := 0; i < out.Len(); i++ {
		rec := out.Record(i)
		sentinel := rec.Get(domain.FieldLocationKey).IsUnknown()
		prev := 0.0
		for _, level := range levels {
			v := rec.Get(string(level))
			assert.Equal(t, sentinel, v.IsUnknown(), "record %d level %s", i, level)
			if sentinel {
				continue
			}
			n, ok := v.Float()
			require.True(t, ok)
			assert.GreaterOrEqual(t, n, 1.0, "a point counts itself")
			assert.GreaterOrEqual(t, n, prev, "counts grow with the radius")
			prev = n
		}
	}
}

func TestAggregateParallelMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	table := &domain.Table{Columns: []string{"lat", "lon"}}
	for i := 0; i < 5000; i++ {
		table.Rows = append(table.Rows, []domain.Value{
			domain.Number(48 + rng.Float64()*0.05),
			domain.Number(2 + rng.Float64()*0.05),
		})
	}
	ds, _ := prepared(t, table)

	sequential := DefaultOptions()
	sequential.Workers = 1
	sequential.ParallelThreshold = len(table.Rows)

	parallel := DefaultOptions()
	parallel.Workers = 8
	parallel.ParallelThreshold = 1

	want, err := newTestAggregator(sequential).Aggregate(context.Background(), ds)
	require.NoError(t, err)
	got, err := newTestAggregator(parallel).Aggregate(context.Background(), ds)
	require.NoError(t, err)

	for _, level := range domain.RadiusLevels() {
		assert.Equal(t, countsOf(t, want, level), countsOf(t, got, level), "level %s", level)
	}
}

func TestAggregateIsOrderIndependent(t *testing.T) {
	forward, _ := prepared(t, specimens())

	reversed := specimens()
	for i, j := 0, len(reversed.Rows)-1; i < j; i, j = i+1, j-1 {
		reversed.Rows[i], reversed.Rows[j] = reversed.Rows[j], reversed.Rows[i]
	}
	backward, _ := prepared(t, reversed)

	agg := newTestAggregator(DefaultOptions())
	a, err := agg.Aggregate(context.Background(), forward)
	require.NoError(t, err)
	b, err := agg.Aggregate(context.Background(), backward)
	require.NoError(t, err)

	for _, level := range domain.RadiusLevels() {
		fwd := countsOf(t, a, level)
		bwd := countsOf(t, b, level)
		for i := range fwd {
			assert.Equal(t, fwd[i], bwd[len(bwd)-1-i], "level %s record %d", level, i)
		}
	}
}

func TestAggregateLimits(t *testing.T) {
	ds, _ := prepared(t, specimens())

	tests := []struct {
		name string
		opts ProcessingOptions
	}{
		{
			name: "record limit",
			opts: ProcessingOptions{MaxRecords: 3},
		},
		{
			name: "time budget",
			opts: ProcessingOptions{Budget: time.Nanosecond},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := newTestAggregator(tt.opts).Aggregate(context.Background(), ds)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.Equal(t, KindDatasetTooLarge, KindOf(err))
		})
	}
}

func TestAggregateCancelled(t *testing.T) {
	ds, _ := prepared(t, specimens())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := newTestAggregator(DefaultOptions()).Aggregate(ctx, ds)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)
}

func TestAggregateEmptyDataset(t *testing.T) {
	ds, _ := prepared(t, &domain.Table{Columns: []string{"lat", "lon"}})

	out, err := newTestAggregator(DefaultOptions()).Aggregate(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
}

func BenchmarkAggregate(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	table := &domain.Table{Columns: []string{"lat", "lon"}}
	for i := 0; i < 20000; i++ {
		table.Rows = append(table.Rows, []domain.Value{
			domain.Number(rng.Float64() * 0.5),
			domain.Number(rng.Float64() * 0.5),
		})
	}
	ds, fields, err := ValidateSchema(table, nil)
	require.NoError(b, err)
	ds, _, err = PrepareFeatures(ds, fields)
	require.NoError(b, err)

	agg := newTestAggregator(DefaultOptions())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := agg.Aggregate(context.Background(), ds); err != nil {
			b.Fatal(err)
		}
	}
}
