package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// UnknownLiteral is the rendered form of the sentinel value.
const UnknownLiteral = "unknown"

// ValueKind discriminates the variants of Value.
type ValueKind uint8

const (
	// KindNull is a raw missing cell. It only exists before feature preparation.
	KindNull ValueKind = iota
	// KindUnknown is the explicit sentinel for missing or invalid data.
	KindUnknown
	// KindNumber holds a float64.
	KindNumber
	// KindText holds a string.
	KindText
)

// String returns the kind name
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindUnknown:
		return "unknown"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	default:
		return "invalid"
	}
}

// Value is a single cell of a record.
//
// The zero value is Null. Unknown values may carry a display label (for
// example a location key "unknown|12.5"); the label never affects IsUnknown.
type Value struct {
	kind ValueKind
	num  float64
	text string
}

// Null returns a missing cell.
func Null() Value { return Value{} }

// Unknown returns the sentinel.
func Unknown() Value { return Value{kind: KindUnknown} }

// UnknownWithLabel returns the sentinel rendered as label.
func UnknownWithLabel(label string) Value {
	return Value{kind: KindUnknown, text: label}
}

// Number wraps a float64.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Int wraps an integer count.
func Int(n int) Value { return Value{kind: KindNumber, num: float64(n)} }

// Text wraps a string.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Kind reports the variant.
func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsNull() bool    { return v.kind == KindNull }
func (v Value) IsUnknown() bool { return v.kind == KindUnknown }
func (v Value) IsNumber() bool  { return v.kind == KindNumber }
func (v Value) IsText() bool    { return v.kind == KindText }

// Float returns the numeric payload and whether the value is a number.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// AsFloat interprets the value as a float64. Text is parsed after trimming
// whitespace. NaN and infinities are rejected.
func (v Value) AsFloat() (float64, bool) {
	var f float64
	switch v.kind {
	case KindNumber:
		f = v.num
	case KindText:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// String renders the value the way it is displayed and exported.
func (v Value) String() string {
	switch v.kind {
	case KindUnknown:
		if v.text != "" {
			return v.text
		}
		return UnknownLiteral
	case KindNumber:
		return FormatNumber(v.num)
	case KindText:
		return v.text
	default:
		return ""
	}
}

// Equal compares kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindText, KindUnknown:
		return v.text == o.text
	default:
		return true
	}
}

// MarshalJSON encodes numbers as JSON numbers, text and unknown as strings and
// null as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return json.Marshal(UnknownLiteral)
		}
		return []byte(FormatNumber(v.num)), nil
	default:
		return json.Marshal(v.String())
	}
}

// FormatNumber renders f in its shortest round-trip form.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
