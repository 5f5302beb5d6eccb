package core

// value.go provides the scalar cell representation used by parsed datasets.
//
// Parsers hand over loosely typed data (CSV text, IBM floats, Arrow arrays).
// Every cell is normalized into a Value, a small tagged variant, so rule logic
// can switch exhaustively on Kind instead of type-asserting interface{} values.

import (
	"strconv"
	"time"
)

// DateLayout is the textual form used for date values (ISO 8601 calendar date).
const DateLayout = "2006-01-02"

// Kind identifies which scalar a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInteger
	KindDouble
	KindBoolean
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindDouble:
		return "double"
	case KindBoolean:
		return "boolean"
	case KindDate:
		return "date"
	default:
		return "unknown"
	}
}

// Value is a single cell. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  int64
	dbl  float64
	flag bool
	date time.Time
}

// Null returns the null value.
func Null() Value { return Value{} }

// Text returns a string value.
func Text(s string) Value { return Value{kind: KindString, str: s} }

// Integer returns an integer value.
func Integer(i int64) Value { return Value{kind: KindInteger, num: i} }

// Double returns a floating point value.
func Double(f float64) Value { return Value{kind: KindDouble, dbl: f} }

// Boolean returns a boolean value.
func Boolean(b bool) Value { return Value{kind: KindBoolean, flag: b} }

// Date returns a date value truncated to the calendar day in UTC.
func Date(t time.Time) Value {
	t = t.UTC()
	return Value{kind: KindDate, date: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// Kind reports which scalar the value holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsEmpty reports whether the value is null or an empty string.
// Empty values are exempt from controlled terminology checks.
func (v Value) IsEmpty() bool {
	return v.kind == KindNull || (v.kind == KindString && v.str == "")
}

// AsString returns the string payload if the value is a string.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsInteger returns the integer payload if the value is an integer.
func (v Value) AsInteger() (int64, bool) { return v.num, v.kind == KindInteger }

// AsDouble returns the numeric payload as float64 for integers and doubles.
func (v Value) AsDouble() (float64, bool) {
	switch v.kind {
	case KindDouble:
		return v.dbl, true
	case KindInteger:
		return float64(v.num), true
	default:
		return 0, false
	}
}

// AsBoolean returns the boolean payload if the value is a boolean.
func (v Value) AsBoolean() (bool, bool) { return v.flag, v.kind == KindBoolean }

// AsDate returns the date payload if the value is a date.
func (v Value) AsDate() (time.Time, bool) { return v.date, v.kind == KindDate }

// String renders the value the way it is compared against permitted values
// and concatenated into duplicate-detection keys. Null renders as "".
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInteger:
		return strconv.FormatInt(v.num, 10)
	case KindDouble:
		return strconv.FormatFloat(v.dbl, 'f', -1, 64)
	case KindBoolean:
		return strconv.FormatBool(v.flag)
	case KindDate:
		return v.date.Format(DateLayout)
	default:
		return ""
	}
}

// ColumnType maps the value to the column type it implies.
// Null values carry no type information and report false.
func (v Value) ColumnType() (ColumnType, bool) {
	switch v.kind {
	case KindString:
		return TypeString, true
	case KindInteger:
		return TypeInteger, true
	case KindDouble:
		return TypeDouble, true
	case KindBoolean:
		return TypeBoolean, true
	case KindDate:
		return TypeDate, true
	default:
		return "", false
	}
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindInteger:
		return v.num == o.num
	case KindDouble:
		return v.dbl == o.dbl
	case KindBoolean:
		return v.flag == o.flag
	case KindDate:
		return v.date.Equal(o.date)
	default:
		return false
	}
}
