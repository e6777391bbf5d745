package script

import "strconv"

// Kind tags the runtime type of a Value.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
)

// Value is the tagged union flowing through variable storage and
// expression evaluation. Values are ephemeral; every assignment or
// expression result creates a fresh one.
type Value struct {
	kind  Kind
	str   string
	inum  int64
	fnum  float64
}

// StringValue wraps a string without numeric coercion.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// IntValue wraps an integer.
func IntValue(n int64) Value { return Value{kind: KindInt, inum: n} }

// FloatValue wraps a float.
func FloatValue(f float64) Value { return Value{kind: KindFloat, fnum: f} }

// BoolValue maps a Go bool onto the scripting convention of 1/0.
func BoolValue(b bool) Value {
	if b {
		return IntValue(1)
	}
	return IntValue(0)
}

// ParseValue coerces a literal: integer first, then float, else string.
func ParseValue(s string) Value {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntValue(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return FloatValue(f)
	}
	return StringValue(s)
}

// Kind returns the tag of the value.
func (v Value) Kind() Kind { return v.kind }

// Text returns the canonical string form used by substitution.
func (v Value) Text() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.inum, 10)
	case KindFloat:
		return strconv.FormatFloat(v.fnum, 'g', -1, 64)
	default:
		return v.str
	}
}

// Truthy implements boolean coercion: zero numbers are false, the empty
// string and the literal "0" are false, everything else is true.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindInt:
		return v.inum != 0
	case KindFloat:
		return v.fnum != 0
	default:
		return v.str != "" && v.str != "0"
	}
}

// IsNumber reports whether the value carries an int or float.
func (v Value) IsNumber() bool { return v.kind == KindInt || v.kind == KindFloat }

// Int returns the value as an integer, truncating floats and parsing
// strings leniently (non-numeric strings become 0).
func (v Value) Int() int64 {
	switch v.kind {
	case KindInt:
		return v.inum
	case KindFloat:
		return int64(v.fnum)
	default:
		n, _ := strconv.ParseInt(v.str, 10, 64)
		return n
	}
}

// Float returns the value as a float64.
func (v Value) Float() float64 {
	switch v.kind {
	case KindInt:
		return float64(v.inum)
	case KindFloat:
		return v.fnum
	default:
		f, _ := strconv.ParseFloat(v.str, 64)
		return f
	}
}
