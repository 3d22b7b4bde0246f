package dataprocessing

import (
	"strings"

	"geodash/pkg/contracts/domain"
)

// ValidateSchema checks that table carries usable coordinates and returns a
// dataset restricted to fields, in that order, with canonical lat/lon columns.
//
// fields is the caller's declared field list; nil means every table column.
// A "long" column stands in for "lon" when "lon" is absent and is renamed in
// place. Unparseable or out-of-range coordinates become the sentinel. A
// coordinate column with values but not a single numeric one is rejected.
func ValidateSchema(table *domain.Table, fields []string) (*domain.Dataset, []string, error) {
	if table == nil {
		return nil, nil, GenericProcessingError(StageValidate, errNilTable)
	}
	if fields == nil {
		fields = table.Columns
	}

	ds, err := table.Dataset()
	if err != nil {
		return nil, nil, GenericProcessingError(StageValidate, err)
	}

	resolved := make([]string, len(fields))
	copy(resolved, fields)

	if !ds.Schema().Has(domain.FieldLat) || !contains(resolved, domain.FieldLat) {
		return nil, nil, MissingRequiredFieldError(domain.FieldLat)
	}
	if !ds.Schema().Has(domain.FieldLon) || !contains(resolved, domain.FieldLon) {
		if !ds.Schema().Has(domain.FieldLonAlias) || !contains(resolved, domain.FieldLonAlias) || ds.Schema().Has(domain.FieldLon) {
			return nil, nil, MissingRequiredFieldError(domain.FieldLon)
		}
		if ds, err = ds.Rename(domain.FieldLonAlias, domain.FieldLon); err != nil {
			return nil, nil, GenericProcessingError(StageValidate, err)
		}
		for i, f := range resolved {
			if f == domain.FieldLonAlias {
				resolved[i] = domain.FieldLon
			}
		}
	}

	for _, f := range resolved {
		if !ds.Schema().Has(f) {
			return nil, nil, MissingRequiredFieldError(f)
		}
	}

	ds, err = ds.Select(resolved...)
	if err != nil {
		return nil, nil, GenericProcessingError(StageValidate, err)
	}

	for _, c := range []struct {
		field string
		valid func(float64) bool
	}{
		{domain.FieldLat, domain.ValidLatitude},
		{domain.FieldLon, domain.ValidLongitude},
	} {
		raw, err := ds.Column(c.field)
		if err != nil {
			return nil, nil, GenericProcessingError(StageValidate, err)
		}
		checked, err := checkCoordinates(c.field, raw, c.valid)
		if err != nil {
			return nil, nil, err
		}
		if ds, err = ds.ReplaceColumn(c.field, checked); err != nil {
			return nil, nil, GenericProcessingError(StageValidate, err)
		}
	}

	return ds, resolved, nil
}

// checkCoordinates maps each cell to Number or the sentinel. Missing cells
// are not type errors; a column whose present cells never parse is.
func checkCoordinates(field string, raw []domain.Value, valid func(float64) bool) ([]domain.Value, error) {
	out := make([]domain.Value, len(raw))
	present, numeric := 0, 0
	for i, v := range raw {
		if isMissing(v) {
			out[i] = domain.Unknown()
			continue
		}
		present++
		f, ok := v.AsFloat()
		if !ok {
			out[i] = domain.Unknown()
			continue
		}
		numeric++
		if !valid(f) {
			out[i] = domain.Unknown()
			continue
		}
		out[i] = domain.Number(f)
	}
	if present > 0 && numeric == 0 {
		return nil, CoordinateTypeError(field)
	}
	return out, nil
}

func isMissing(v domain.Value) bool {
	if v.IsNull() || v.IsUnknown() {
		return true
	}
	return v.IsText() && strings.TrimSpace(v.String()) == ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
