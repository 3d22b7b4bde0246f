package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geodash/pkg/contracts/domain"
)

func TestValidateSchemaMissingFields(t *testing.T) {
	tests := []struct {
		name    string
		table   *domain.Table
		fields  []string
		missing string
	}{
		{
			name: "no lon or long",
			table: &domain.Table{
				Columns: []string{"species", "lat"},
				Rows:    [][]domain.Value{{domain.Text("oak"), domain.Number(1)}},
			},
			missing: "lon",
		},
		{
			name: "no lat",
			table: &domain.Table{
				Columns: []string{"species", "lon"},
				Rows:    [][]domain.Value{{domain.Text("oak"), domain.Number(1)}},
			},
			missing: "lat",
		},
		{
			name:    "lat not declared",
			table:   specimens(),
			fields:  []string{"species", "lon"},
			missing: "lat",
		},
		{
			name:    "declared field absent from upload",
			table:   specimens(),
			fields:  []string{"lat", "lon", "depth"},
			missing: "depth",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, fields, err := ValidateSchema(tt.table, tt.fields)
			require.Error(t, err)
			assert.Nil(t, ds)
			assert.Nil(t, fields)

			var pErr *PipelineError
			require.ErrorAs(t, err, &pErr)
			assert.Equal(t, KindMissingRequiredField, pErr.Kind)
			assert.Equal(t, tt.missing, pErr.Field)
			assert.Equal(t, "Source data does not have '"+tt.missing+"' column.", pErr.UserMessage())
		})
	}
}

func TestValidateSchemaLongAlias(t *testing.T) {
	native := specimens()
	aliased := specimens()
	aliased.Columns = []string{"species", "lat", "long"}

	nativeDS, nativeFields, err := ValidateSchema(native, nil)
	require.NoError(t, err)
	aliasDS, aliasFields, err := ValidateSchema(aliased, nil)
	require.NoError(t, err)

	assert.Equal(t, nativeFields, aliasFields)
	assert.Equal(t, []string{"species", "lat", "lon"}, aliasDS.Fields())
	assert.Equal(t, nativeDS.Rows(), aliasDS.Rows())

	// The caller table is untouched.
	assert.Equal(t, []string{"species", "lat", "long"}, aliased.Columns)
}

func TestValidateSchemaPrefersLonOverAlias(t *testing.T) {
	table := &domain.Table{
		Columns: []string{"lat", "lon", "long"},
		Rows:    [][]domain.Value{{domain.Number(1), domain.Number(2), domain.Number(3)}},
	}

	ds, fields, err := ValidateSchema(table, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"lat", "lon", "long"}, fields)
	assert.Equal(t, domain.Number(2), ds.Value(0, "lon"))
	assert.Equal(t, domain.Number(3), ds.Value(0, "long"))
}

func TestValidateSchemaSelectsDeclaredFields(t *testing.T) {
	ds, fields, err := ValidateSchema(specimens(), []string{"lon", "lat"})
	require.NoError(t, err)
	assert.Equal(t, []string{"lon", "lat"}, fields)
	assert.Equal(t, []string{"lon", "lat"}, ds.Fields())
	assert.Equal(t, 4, ds.Len())
}

func TestValidateSchemaCoordinateSentinels(t *testing.T) {
	table := &domain.Table{
		Columns: []string{"lat", "lon"},
		Rows: [][]domain.Value{
			{domain.Number(45), domain.Number(7)},
			{domain.Number(200), domain.Number(7)},
			{domain.Number(-90.5), domain.Number(7)},
			{domain.Number(10), domain.Number(181)},
			{domain.Text(" 12.5 "), domain.Text("-3")},
			{domain.Text("north"), domain.Number(1)},
			{domain.Null(), domain.Number(1)},
			{domain.Text("  "), domain.Number(1)},
			{domain.Number(90), domain.Number(-180)},
		},
	}

	ds, _, err := ValidateSchema(table, nil)
	require.NoError(t, err)

	wantLat := []domain.Value{
		domain.Number(45),
		domain.Unknown(),
		domain.Unknown(),
		domain.Number(10),
		domain.Number(12.5),
		domain.Unknown(),
		domain.Unknown(),
		domain.Unknown(),
		domain.Number(90),
	}
	wantLon := []domain.Value{
		domain.Number(7),
		domain.Number(7),
		domain.Number(7),
		domain.Unknown(),
		domain.Number(-3),
		domain.Number(1),
		domain.Number(1),
		domain.Number(1),
		domain.Number(-180),
	}

	lat, err := ds.Column("lat")
	require.NoError(t, err)
	lon, err := ds.Column("lon")
	require.NoError(t, err)
	assert.Equal(t, wantLat, lat)
	assert.Equal(t, wantLon, lon)
}

func TestValidateSchemaCoordinateTypeError(t *testing.T) {
	tests := []struct {
		name  string
		table *domain.Table
		field string
		ok    bool
	}{
		{
			name: "text latitude column",
			table: &domain.Table{
				Columns: []string{"lat", "lon"},
				Rows: [][]domain.Value{
					{domain.Text("north"), domain.Number(1)},
					{domain.Text("south"), domain.Number(2)},
				},
			},
			field: "lat",
		},
		{
			name: "text longitude column",
			table: &domain.Table{
				Columns: []string{"lat", "lon"},
				Rows: [][]domain.Value{
					{domain.Number(1), domain.Text("east")},
				},
			},
			field: "lon",
		},
		{
			name: "one numeric cell is enough",
			table: &domain.Table{
				Columns: []string{"lat", "lon"},
				Rows: [][]domain.Value{
					{domain.Text("north"), domain.Number(1)},
					{domain.Number(500), domain.Number(2)},
				},
			},
			ok: true,
		},
		{
			name: "all missing is not a type error",
			table: &domain.Table{
				Columns: []string{"lat", "lon"},
				Rows: [][]domain.Value{
					{domain.Null(), domain.Number(1)},
					{domain.Null(), domain.Number(2)},
				},
			},
			ok: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, _, err := ValidateSchema(tt.table, nil)
			if tt.ok {
				require.NoError(t, err)
				assert.NotNil(t, ds)
				return
			}
			require.Error(t, err)
			assert.Nil(t, ds)
			var pErr *PipelineError
			require.ErrorAs(t, err, &pErr)
			assert.Equal(t, KindCoordinateType, pErr.Kind)
			assert.Equal(t, tt.field, pErr.Field)
		})
	}
}

func TestValidateSchemaNilTable(t *testing.T) {
	_, _, err := ValidateSchema(nil, nil)
	assert.Equal(t, KindGenericProcessing, KindOf(err))
}
