package table

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindMissing Kind = iota
	KindNumber
	KindCode
	KindTime
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindCode:
		return "code"
	case KindTime:
		return "time"
	case KindText:
		return "text"
	default:
		return "missing"
	}
}

// Value is a single cell. The variant is fixed when the value is created, so
// callers never re-infer a type from the raw text.
type Value struct {
	kind Kind
	num  float64
	code int
	ts   time.Time
	text string
}

// Missing returns the absent value.
func Missing() Value { return Value{} }

// Number returns a numeric value. NaN and infinities are stored as Missing.
func Number(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{kind: KindNumber, num: f}
}

// Code returns a categorical code produced by encoding a text value.
func Code(n int) Value { return Value{kind: KindCode, code: n} }

// Time returns a timestamp value. The zero time is stored as Missing.
func Time(t time.Time) Value {
	if t.IsZero() {
		return Value{}
	}
	return Value{kind: KindTime, ts: t}
}

// Text returns a string value. The empty string is stored as Missing.
func Text(s string) Value {
	if s == "" {
		return Value{}
	}
	return Value{kind: KindText, text: s}
}

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsMissing() bool { return v.kind == KindMissing }
func (v Value) IsNumeric() bool { return v.kind == KindNumber || v.kind == KindCode }

// Float returns the numeric reading of a number or code.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindCode:
		return float64(v.code), true
	}
	return 0, false
}

func (v Value) CodeValue() (int, bool) {
	return v.code, v.kind == KindCode
}

func (v Value) TimeValue() (time.Time, bool) {
	return v.ts, v.kind == KindTime
}

func (v Value) TextValue() (string, bool) {
	return v.text, v.kind == KindText
}

// Equal reports whether two values hold the same variant and content. Missing
// never equals anything, including another Missing, so missing keys do not join.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind || v.kind == KindMissing {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindCode:
		return v.code == o.code
	case KindTime:
		return v.ts.Equal(o.ts)
	default:
		return v.text == o.text
	}
}

// Less orders values by kind first, then by content.
func (v Value) Less(o Value) bool {
	if v.kind != o.kind {
		return v.kind < o.kind
	}
	switch v.kind {
	case KindNumber:
		return v.num < o.num
	case KindCode:
		return v.code < o.code
	case KindTime:
		return v.ts.Before(o.ts)
	case KindText:
		return v.text < o.text
	}
	return false
}

// Key returns a string usable as a map key for grouping and join indexes.
// Values of different kinds never share a key.
func (v Value) Key() string {
	switch v.kind {
	case KindNumber:
		return "n:" + strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindCode:
		return "c:" + strconv.Itoa(v.code)
	case KindTime:
		return "t:" + v.ts.UTC().Format(time.RFC3339Nano)
	case KindText:
		return "s:" + v.text
	}
	return ""
}

func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindCode:
		return strconv.Itoa(v.code)
	case KindTime:
		return v.ts.Format(time.RFC3339)
	case KindText:
		return v.text
	}
	return ""
}

// Interface returns the plain Go value, nil for Missing.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindCode:
		return v.code
	case KindTime:
		return v.ts
	case KindText:
		return v.text
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}
