package dataprocessing

import (
	"errors"

	"geodash/pkg/contracts/domain"
)

// ErrUnknownField is returned when a chart names a field the dataset lacks.
var ErrUnknownField = errors.New("unknown field")

// ErrUnknownSortOrder is returned for an unsupported histogram order.
var ErrUnknownSortOrder = errors.New("unknown sort order")

// SortOrder orders histogram categories.
type SortOrder string

const (
	SortAlpha           SortOrder = "alpha"
	SortTotalAscending  SortOrder = "total ascending"
	SortTotalDescending SortOrder = "total descending"
)

// HistogramOptions selects the histogram grouping.
type HistogramOptions struct {
	X     string    `json:"x" validate:"required"`
	Color string    `json:"color,omitempty"`
	Sort  SortOrder `json:"sort,omitempty" validate:"omitempty,oneof=alpha 'total ascending' 'total descending'"`
}

// Histogram holds record counts per X value, split into one series per
// Color value. Every series' Counts is aligned with Categories.
type Histogram struct {
	X          string            `json:"x"`
	Color      string            `json:"color,omitempty"`
	Sort       SortOrder         `json:"sort"`
	Categories []string          `json:"categories"`
	Series     []HistogramSeries `json:"series"`
}

// HistogramSeries is the counts of one color value.
type HistogramSeries struct {
	Name   string `json:"name"`
	Counts []int  `json:"counts"`
	Total  int    `json:"total"`
}

// PieSlice is the share of one value of the breakdown field.
type PieSlice struct {
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// PieChart is a percentage breakdown of one field.
type PieChart struct {
	Field  string     `json:"field"`
	Total  int        `json:"total"`
	Slices []PieSlice `json:"slices"`
}

// MapOptions selects the radius whose counts size the map markers.
type MapOptions struct {
	Radius domain.RadiusLevel `json:"radius"`
}
