package domain

import "fmt"

// KmPerDegree is the flat conversion used for proximity windows.
const KmPerDegree = 111.0

// RadiusLevel is one of the fixed proximity radii.
type RadiusLevel string

const (
	RadiusTenthKm  RadiusLevel = "tenth_km"
	Radius2TenthKm RadiusLevel = "2-10_km"
	Radius3TenthKm RadiusLevel = "3-10_km"
	Radius4TenthKm RadiusLevel = "4-10_km"
	RadiusHalfKm   RadiusLevel = "half_km"
)

// Field names of derived columns.
const (
	FieldLat         = "lat"
	FieldLon         = "lon"
	FieldLonAlias    = "long"
	FieldLocality    = "locality"
	FieldLocationKey = "lat-lon"
)

var radiusKm = map[RadiusLevel]float64{
	RadiusTenthKm:  0.1,
	Radius2TenthKm: 0.2,
	Radius3TenthKm: 0.3,
	Radius4TenthKm: 0.4,
	RadiusHalfKm:   0.5,
}

// RadiusLevels lists the levels from smallest to largest radius.
func RadiusLevels() []RadiusLevel {
	return []RadiusLevel{RadiusTenthKm, Radius2TenthKm, Radius3TenthKm, Radius4TenthKm, RadiusHalfKm}
}

// DerivedFields lists the trailing derived columns in output order.
func DerivedFields() []string {
	return []string{
		FieldLocationKey,
		string(RadiusHalfKm),
		string(Radius4TenthKm),
		string(Radius3TenthKm),
		string(Radius2TenthKm),
		string(RadiusTenthKm),
	}
}

// IsDerivedField reports whether name is one of DerivedFields.
func IsDerivedField(name string) bool {
	if name == FieldLocationKey {
		return true
	}
	_, ok := radiusKm[RadiusLevel(name)]
	return ok
}

// ParseRadiusLevel accepts a level name ("half_km") or a radius in km ("0.5").
func ParseRadiusLevel(s string) (RadiusLevel, error) {
	if _, ok := radiusKm[RadiusLevel(s)]; ok {
		return RadiusLevel(s), nil
	}
	for level, km := range radiusKm {
		if s == FormatNumber(km) {
			return level, nil
		}
	}
	return "", fmt.Errorf("unknown radius level %q", s)
}

// Km returns the radius in kilometres.
func (r RadiusLevel) Km() float64 { return radiusKm[r] }

// Degrees returns the half-width of the proximity window in degrees.
func (r RadiusLevel) Degrees() float64 { return r.Km() / KmPerDegree }

// Valid reports whether r is a known level.
func (r RadiusLevel) Valid() bool {
	_, ok := radiusKm[r]
	return ok
}

func (r RadiusLevel) String() string { return string(r) }
