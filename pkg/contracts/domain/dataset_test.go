package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset(t *testing.T) *Dataset {
	t.Helper()
	table := &Table{
		Columns: []string{"species", "lat", "long"},
		Rows: [][]Value{
			{Text("kelp"), Number(10), Number(20)},
			{Text("urchin"), Number(11)},
		},
	}
	ds, err := table.Dataset()
	require.NoError(t, err)
	return ds
}

func TestNewSchemaRejectsDuplicates(t *testing.T) {
	_, err := NewSchema("a", "b", "a")
	assert.Error(t, err)

	_, err = NewSchema("a", " ")
	assert.Error(t, err)
}

func TestTableDatasetPadsShortRows(t *testing.T) {
	ds := sampleDataset(t)
	assert.Equal(t, 2, ds.Len())
	assert.True(t, ds.Value(1, "long").IsNull())
	assert.True(t, ds.Value(0, "missing").IsNull())
}

func TestNewDatasetRejectsWideRows(t *testing.T) {
	schema, err := NewSchema("a")
	require.NoError(t, err)
	_, err = NewDataset(schema, [][]Value{{Number(1), Number(2)}})
	assert.Error(t, err)
}

func TestDatasetVersionsAreIndependent(t *testing.T) {
	ds := sampleDataset(t)

	renamed, err := ds.Rename("long", "lon")
	require.NoError(t, err)
	assert.Equal(t, []string{"species", "lat", "long"}, ds.Fields())
	assert.Equal(t, []string{"species", "lat", "lon"}, renamed.Fields())

	replaced, err := renamed.ReplaceColumn("lat", []Value{Unknown(), Unknown()})
	require.NoError(t, err)
	assert.Equal(t, Number(10), renamed.Value(0, "lat"))
	assert.True(t, replaced.Value(0, "lat").IsUnknown())

	extended, err := replaced.WithColumn("locality", []Value{Text("x"), Text("y")})
	require.NoError(t, err)
	assert.False(t, replaced.Schema().Has("locality"))
	assert.Equal(t, "y", extended.Record(1).Get("locality").String())

	_, err = extended.WithColumn("locality", []Value{Text("x"), Text("y")})
	assert.Error(t, err)
	_, err = extended.WithColumn("short", []Value{Text("x")})
	assert.Error(t, err)
}

func TestDatasetColumnIsCopy(t *testing.T) {
	ds := sampleDataset(t)
	col, err := ds.Column("species")
	require.NoError(t, err)
	col[0] = Text("changed")
	assert.Equal(t, "kelp", ds.Value(0, "species").String())

	_, err = ds.Column("nope")
	assert.Error(t, err)
}

func TestDatasetSelectAndSplit(t *testing.T) {
	ds := sampleDataset(t)
	selected, err := ds.Select("lat", "species")
	require.NoError(t, err)

	frame := selected.Split()
	assert.Equal(t, []string{"lat", "species"}, frame.Columns)
	assert.Equal(t, []int{0, 1}, frame.Index)
	assert.Equal(t, []Value{Number(10), Text("kelp")}, frame.Data[0])
	assert.Equal(t, []Value{Number(11), Text("urchin")}, selected.Record(1).Values())

	_, err = ds.Select("lat", "nope")
	assert.Error(t, err)
}
