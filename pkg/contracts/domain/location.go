package domain

import (
	"math"
	"strings"
)

// Coordinate bounds.
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// Coordinate is a validated (lat, lon) pair.
type Coordinate struct {
	Lat float64
	Lon float64
}

// ValidLatitude reports whether lat is inside [-90, 90]. NaN is rejected.
func ValidLatitude(lat float64) bool {
	return lat >= MinLatitude && lat <= MaxLatitude
}

// ValidLongitude reports whether lon is inside [-180, 180]. NaN is rejected.
func ValidLongitude(lon float64) bool {
	return lon >= MinLongitude && lon <= MaxLongitude
}

// CoordinateOf returns the coordinate carried by lat and lon, or false when
// either component is the sentinel.
func CoordinateOf(lat, lon Value) (Coordinate, bool) {
	la, ok := lat.Float()
	if !ok {
		return Coordinate{}, false
	}
	lo, ok := lon.Float()
	if !ok {
		return Coordinate{}, false
	}
	return Coordinate{Lat: la, Lon: lo}, true
}

// LocationKey renders "<lat>|<lon>". The result is the sentinel, labelled
// with the same rendering, whenever either component is not a number.
func LocationKey(lat, lon Value) Value {
	key := displayComponent(lat) + "|" + displayComponent(lon)
	if !lat.IsNumber() || !lon.IsNumber() {
		return UnknownWithLabel(key)
	}
	return Text(key)
}

func displayComponent(v Value) string {
	if v.IsNull() {
		return UnknownLiteral
	}
	if f, ok := v.Float(); ok {
		return FormatCoordinate(f)
	}
	return v.String()
}

// FormatCoordinate renders a coordinate the way a float column prints:
// shortest round-trip form with at least one decimal place.
func FormatCoordinate(f float64) string {
	s := FormatNumber(f)
	if math.IsInf(f, 0) || math.IsNaN(f) || strings.ContainsRune(s, '.') {
		return s
	}
	return s + ".0"
}
