package dataprocessing

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geodash/pkg/contracts/domain"
)

func aggregated(t *testing.T, table *domain.Table) *domain.Dataset {
	t.Helper()
	ds, _ := prepared(t, table)
	out, err := newTestAggregator(DefaultOptions()).Aggregate(context.Background(), ds)
	require.NoError(t, err)
	return out
}

func TestBuildHistogram(t *testing.T) {
	ds := aggregated(t, specimens())

	tests := []struct {
		name       string
		opts       HistogramOptions
		categories []string
		series     []HistogramSeries
	}{
		{
			name:       "alphabetical without color",
			opts:       HistogramOptions{X: "species"},
			categories: []string{"ash", "elm", "oak"},
			series:     []HistogramSeries{{Name: "all", Counts: []int{1, 1, 2}, Total: 4}},
		},
		{
			name:       "total descending breaks ties by name",
			opts:       HistogramOptions{X: "species", Sort: SortTotalDescending},
			categories: []string{"oak", "ash", "elm"},
			series:     []HistogramSeries{{Name: "all", Counts: []int{2, 1, 1}, Total: 4}},
		},
		{
			name:       "total ascending",
			opts:       HistogramOptions{X: "species", Sort: SortTotalAscending},
			categories: []string{"ash", "elm", "oak"},
			series:     []HistogramSeries{{Name: "all", Counts: []int{1, 1, 2}, Total: 4}},
		},
		{
			name:       "colored by radius count",
			opts:       HistogramOptions{X: "species", Color: "half_km"},
			categories: []string{"ash", "elm", "oak"},
			series: []HistogramSeries{
				{Name: "3", Counts: []int{1, 0, 2}, Total: 3},
				{Name: "1", Counts: []int{0, 1, 0}, Total: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := BuildHistogram(ds, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.categories, h.Categories)
			assert.Equal(t, tt.series, h.Series)
		})
	}
}

func TestBuildHistogramErrors(t *testing.T) {
	ds := aggregated(t, specimens())

	_, err := BuildHistogram(ds, HistogramOptions{X: "genus"})
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = BuildHistogram(ds, HistogramOptions{X: "species", Color: "genus"})
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = BuildHistogram(ds, HistogramOptions{X: "species", Sort: "random"})
	assert.ErrorIs(t, err, ErrUnknownSortOrder)
}

func TestBuildHistogramGroupsSentinel(t *testing.T) {
	table := withRow(specimens(), domain.Null(), domain.Number(1), domain.Number(1))
	ds := aggregated(t, table)

	h, err := BuildHistogram(ds, HistogramOptions{X: "species"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ash", "elm", "oak", "unknown"}, h.Categories)
}

func TestBuildPie(t *testing.T) {
	ds := aggregated(t, specimens())

	pie, err := BuildPie(ds, "species")
	require.NoError(t, err)

	assert.Equal(t, 4, pie.Total)
	assert.Equal(t, []PieSlice{
		{Label: "oak", Count: 2, Percent: 50},
		{Label: "ash", Count: 1, Percent: 25},
		{Label: "elm", Count: 1, Percent: 25},
	}, pie.Slices)

	_, err = BuildPie(ds, "lat-lon-ish")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestBuildMap(t *testing.T) {
	table := withRow(specimens(), domain.Text("yew"), domain.Number(200), domain.Number(0))
	ds := aggregated(t, table)

	fc, err := BuildMap(ds, MapOptions{Radius: domain.RadiusHalfKm})
	require.NoError(t, err)
	require.Len(t, fc.Features, 4, "sentinel locations are not mapped")

	first := fc.Features[0]
	assert.Equal(t, orb.Point{0, 0}, first.Geometry)
	assert.Equal(t, 3, first.Properties["samples"])
	assert.Equal(t, "half_km", first.Properties["radius"])

	last := fc.Features[3]
	assert.Equal(t, orb.Point{10, 10}, last.Geometry)
	assert.Equal(t, 1, last.Properties["samples"])

	_, err = BuildMap(ds, MapOptions{Radius: "mile"})
	assert.ErrorIs(t, err, ErrUnknownField)
}
