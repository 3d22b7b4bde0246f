package dataprocessing

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"geodash/pkg/contracts/domain"
)

// allSeries names the single series of an uncolored histogram.
const allSeries = "all"

// BuildHistogram counts records per value of opts.X, split by opts.Color.
// Values are grouped by their display text, so the sentinel is a category
// like any other.
func BuildHistogram(ds *domain.Dataset, opts HistogramOptions) (*Histogram, error) {
	if !ds.Schema().Has(opts.X) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, opts.X)
	}
	if opts.Color != "" && !ds.Schema().Has(opts.Color) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, opts.Color)
	}
	if opts.Sort == "" {
		opts.Sort = SortAlpha
	}

	totals := make(map[string]int)
	seriesIndex := make(map[string]int)
	var seriesNames []string
	counts := make(map[string]map[string]int)

	for i := 0; i < ds.Len(); i++ {
		x := ds.Value(i, opts.X).String()
		name := allSeries
		if opts.Color != "" {
			name = ds.Value(i, opts.Color).String()
		}
		if _, ok := seriesIndex[name]; !ok {
			seriesIndex[name] = len(seriesNames)
			seriesNames = append(seriesNames, name)
			counts[name] = make(map[string]int)
		}
		counts[name][x]++
		totals[x]++
	}

	categories, err := orderCategories(totals, opts.Sort)
	if err != nil {
		return nil, err
	}

	h := &Histogram{
		X:          opts.X,
		Color:      opts.Color,
		Sort:       opts.Sort,
		Categories: categories,
		Series:     make([]HistogramSeries, len(seriesNames)),
	}
	for s, name := range seriesNames {
		series := HistogramSeries{Name: name, Counts: make([]int, len(categories))}
		for c, cat := range categories {
			series.Counts[c] = counts[name][cat]
			series.Total += series.Counts[c]
		}
		h.Series[s] = series
	}
	return h, nil
}

func orderCategories(totals map[string]int, order SortOrder) ([]string, error) {
	categories := make([]string, 0, len(totals))
	for cat := range totals {
		categories = append(categories, cat)
	}

	switch order {
	case SortAlpha:
		sort.Strings(categories)
	case SortTotalAscending:
		sort.Slice(categories, func(i, j int) bool {
			a, b := categories[i], categories[j]
			if totals[a] != totals[b] {
				return totals[a] < totals[b]
			}
			return a < b
		})
	case SortTotalDescending:
		sort.Slice(categories, func(i, j int) bool {
			a, b := categories[i], categories[j]
			if totals[a] != totals[b] {
				return totals[a] > totals[b]
			}
			return a < b
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSortOrder, order)
	}
	return categories, nil
}

// BuildPie returns the share of each value of field, largest first.
func BuildPie(ds *domain.Dataset, field string) (*PieChart, error) {
	if !ds.Schema().Has(field) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	counts := make(map[string]int)
	for i := 0; i < ds.Len(); i++ {
		counts[ds.Value(i, field).String()]++
	}

	labels, err := orderCategories(counts, SortTotalDescending)
	if err != nil {
		return nil, err
	}

	pie := &PieChart{Field: field, Total: ds.Len(), Slices: make([]PieSlice, len(labels))}
	for i, label := range labels {
		pie.Slices[i] = PieSlice{
			Label:   label,
			Count:   counts[label],
			Percent: 100 * float64(counts[label]) / float64(ds.Len()),
		}
	}
	return pie, nil
}

// BuildMap returns a GeoJSON point per record with a valid location. Each
// feature carries its coordinates and the neighbor count at opts.Radius as
// "samples".
func BuildMap(ds *domain.Dataset, opts MapOptions) (*geojson.FeatureCollection, error) {
	if !opts.Radius.Valid() {
		return nil, fmt.Errorf("%w: radius %q", ErrUnknownField, opts.Radius)
	}
	if !ds.Schema().Has(string(opts.Radius)) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, opts.Radius)
	}

	fc := geojson.NewFeatureCollection()
	for i := 0; i < ds.Len(); i++ {
		rec := ds.Record(i)
		if rec.Get(domain.FieldLocationKey).IsUnknown() {
			continue
		}
		c, ok := domain.CoordinateOf(rec.Get(domain.FieldLat), rec.Get(domain.FieldLon))
		if !ok {
			continue
		}
		samples, _ := rec.Get(string(opts.Radius)).Float()

		f := geojson.NewFeature(orb.Point{c.Lon, c.Lat})
		f.Properties["lat"] = c.Lat
		f.Properties["lon"] = c.Lon
		f.Properties["samples"] = int(samples)
		f.Properties["radius"] = string(opts.Radius)
		fc.Append(f)
	}
	return fc, nil
}
