package dataprocessing

import (
	"geodash/pkg/contracts/domain"
)

// PrepareFeatures fills missing cells with the sentinel, derives the
// location key, ensures a locality field and declares the derived spatial
// fields.
//
// The retained field order is fields, then locality when it had to be
// added, then lat-lon and the five radius fields from largest to smallest.
// Radius fields hold the sentinel until the aggregator fills them. A
// caller field that shares a name with a derived field is dropped in
// favour of the derived one.
func PrepareFeatures(ds *domain.Dataset, fields []string) (*domain.Dataset, []string, error) {
	if ds == nil {
		return nil, nil, GenericProcessingError(StagePrepare, errNilTable)
	}

	base := make([]string, 0, len(fields)+7)
	for _, f := range fields {
		if !domain.IsDerivedField(f) {
			base = append(base, f)
		}
	}

	out, err := ds.Select(base...)
	if err != nil {
		return nil, nil, GenericProcessingError(StagePrepare, err)
	}

	for _, f := range base {
		col, err := out.Column(f)
		if err != nil {
			return nil, nil, GenericProcessingError(StagePrepare, err)
		}
		filled := false
		for i, v := range col {
			if v.IsNull() {
				col[i] = domain.Unknown()
				filled = true
			}
		}
		if !filled {
			continue
		}
		if out, err = out.ReplaceColumn(f, col); err != nil {
			return nil, nil, GenericProcessingError(StagePrepare, err)
		}
	}

	keys := make([]domain.Value, out.Len())
	for i := range keys {
		rec := out.Record(i)
		keys[i] = domain.LocationKey(rec.Get(domain.FieldLat), rec.Get(domain.FieldLon))
	}

	retained := base
	if !out.Schema().Has(domain.FieldLocality) {
		if out, err = out.WithColumn(domain.FieldLocality, keys); err != nil {
			return nil, nil, GenericProcessingError(StagePrepare, err)
		}
		retained = append(retained, domain.FieldLocality)
	}

	if out, err = out.WithColumn(domain.FieldLocationKey, keys); err != nil {
		return nil, nil, GenericProcessingError(StagePrepare, err)
	}
	for _, f := range domain.DerivedFields()[1:] {
		if out, err = out.WithColumn(f, unknownColumn(out.Len())); err != nil {
			return nil, nil, GenericProcessingError(StagePrepare, err)
		}
	}
	retained = append(retained, domain.DerivedFields()...)

	return out, retained, nil
}

func unknownColumn(n int) []domain.Value {
	col := make([]domain.Value, n)
	for i := range col {
		col[i] = domain.Unknown()
	}
	return col
}
