package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"geodash/pkg/contracts/domain"
)

// specimens returns P1..P4 of the reference layout: two points 0.0005
// degrees apart, a third 0.004 degrees from the origin and a far outlier.
func specimens() *domain.Table {
	return &domain.Table{
		Columns: []string{"species", "lat", "lon"},
		Rows: [][]domain.Value{
			{domain.Text("oak"), domain.Number(0), domain.Number(0)},
			{domain.Text("ash"), domain.Number(0.0005), domain.Number(0.0005)},
			{domain.Text("oak"), domain.Number(0.004), domain.Number(0.004)},
			{domain.Text("elm"), domain.Number(10), domain.Number(10)},
		},
	}
}

// withRow returns a copy of table with row appended.
func withRow(table *domain.Table, row ...domain.Value) *domain.Table {
	rows := make([][]domain.Value, 0, len(table.Rows)+1)
	rows = append(rows, table.Rows...)
	rows = append(rows, row)
	return &domain.Table{Columns: table.Columns, Rows: rows}
}

func countsOf(t *testing.T, ds *domain.Dataset, level domain.RadiusLevel) []string {
	t.Helper()
	col, err := ds.Column(string(level))
	require.NoError(t, err)
	out := make([]string, len(col))
	for i, v := range col {
		out[i] = v.String()
	}
	return out
}

func prepared(t *testing.T, table *domain.Table) (*domain.Dataset, []string) {
	t.Helper()
	ds, fields, err := ValidateSchema(table, nil)
	require.NoError(t, err)
	ds, fields, err = PrepareFeatures(ds, fields)
	require.NoError(t, err)
	return ds, fields
}
