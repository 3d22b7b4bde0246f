// Package spatial counts points inside axis-aligned degree windows.
//
// Grid buckets points into square cells keyed by (floor(lat/cell),
// floor(lon/cell)). A window query visits only the cells overlapping the
// window and re-checks every candidate against the exact inclusive bound, so
// its counts are identical to CountNaive for any input.
package spatial
