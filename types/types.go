// Package types models runtime SQL types and scalar values. The Datum
// union can hold any supported scalar; which field is meaningful is
// decided by the column's type, never stored alongside the value.
package types

import (
	"strconv"
)

type Type int

const (
	_ Type = iota
	Boolean
	TinyInt
	SmallInt
	Int
	BigInt
	Numeric
	Decimal
	Time
	Timestamp
	Date
	Float
	Double
	Char
	Varchar
	Text
	Array
)

var typeNames = map[Type]string{
	Boolean:   "BOOLEAN",
	TinyInt:   "TINYINT",
	SmallInt:  "SMALLINT",
	Int:       "INT",
	BigInt:    "BIGINT",
	Numeric:   "NUMERIC",
	Decimal:   "DECIMAL",
	Time:      "TIME",
	Timestamp: "TIMESTAMP",
	Date:      "DATE",
	Float:     "FLOAT",
	Double:    "DOUBLE",
	Char:      "CHAR",
	Varchar:   "VARCHAR",
	Text:      "TEXT",
	Array:     "ARRAY",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

func (t Type) IsString() bool {
	return t == Char || t == Varchar || t == Text
}

func (t Type) IsInteger() bool {
	switch t {
	case Boolean, TinyInt, SmallInt, Int, BigInt, Numeric, Decimal, Time, Timestamp, Date:
		return true
	}
	return false
}

func (t Type) IsFloat() bool {
	return t == Float || t == Double
}

// Size is the fixed per-element byte width, or -1 for varlen types.
func (t Type) Size() int {
	switch t {
	case Boolean, TinyInt:
		return 1
	case SmallInt:
		return 2
	case Int, Float:
		return 4
	case BigInt, Numeric, Decimal, Time, Timestamp, Date, Double:
		return 8
	default:
		return -1
	}
}

type Encoding int

const (
	EncodingNone Encoding = iota
	EncodingDict
)

// TypeInfo is the full logical type of a column. For arrays, Elem is
// the element type and Encoding applies to the element.
type TypeInfo struct {
	Type     Type
	Elem     Type
	Encoding Encoding
}

// ComparisonType resolves the type stats are compared under: the
// element type for arrays, the column type otherwise.
func (ti TypeInfo) ComparisonType() TypeInfo {
	if ti.Type == Array {
		return TypeInfo{Type: ti.Elem, Encoding: ti.Encoding}
	}
	return ti
}

func (ti TypeInfo) Name() string {
	if ti.Type == Array {
		return ti.Elem.String() + "[]"
	}
	return ti.Type.String()
}

// Datum holds any scalar value; only the field selected by the
// column's type is meaningful. Dictionary-encoded strings live in Int.
type Datum struct {
	TinyInt  int8
	SmallInt int16
	Int      int32
	BigInt   int64
	Float    float32
	Double   float64
	Str      string
}

// DatumEqual compares two datums under the given comparison type,
// reading the union field that type selects.
func DatumEqual(a, b Datum, ti TypeInfo) bool {
	ct := ti.ComparisonType()
	switch ct.Type {
	case Boolean, TinyInt:
		return a.TinyInt == b.TinyInt
	case SmallInt:
		return a.SmallInt == b.SmallInt
	case Int:
		return a.Int == b.Int
	case BigInt, Numeric, Decimal, Time, Timestamp, Date:
		return a.BigInt == b.BigInt
	case Float:
		return a.Float == b.Float
	case Double:
		return a.Double == b.Double
	case Char, Varchar, Text:
		if ct.Encoding == EncodingDict {
			return a.Int == b.Int
		}
		return a.Str == b.Str
	}
	return false
}

func DatumToString(d Datum, ti TypeInfo) string {
	ct := ti.ComparisonType()
	switch ct.Type {
	case Boolean:
		if d.TinyInt == 0 {
			return "f"
		}
		return "t"
	case TinyInt:
		return strconv.FormatInt(int64(d.TinyInt), 10)
	case SmallInt:
		return strconv.FormatInt(int64(d.SmallInt), 10)
	case Int:
		return strconv.FormatInt(int64(d.Int), 10)
	case BigInt, Numeric, Decimal, Time, Timestamp, Date:
		return strconv.FormatInt(d.BigInt, 10)
	case Float:
		return strconv.FormatFloat(float64(d.Float), 'g', -1, 32)
	case Double:
		return strconv.FormatFloat(d.Double, 'g', -1, 64)
	case Char, Varchar, Text:
		if ct.Encoding == EncodingDict {
			return strconv.FormatInt(int64(d.Int), 10)
		}
		return d.Str
	}
	return "<unknown>"
}

// ExtractInt reads the integer-family field the type selects.
func ExtractInt(d Datum, ti TypeInfo) int64 {
	ct := ti.ComparisonType()
	switch ct.Type {
	case Boolean, TinyInt:
		return int64(d.TinyInt)
	case SmallInt:
		return int64(d.SmallInt)
	case Int:
		return int64(d.Int)
	case BigInt, Numeric, Decimal, Time, Timestamp, Date:
		return d.BigInt
	case Char, Varchar, Text:
		if ct.Encoding == EncodingDict {
			return int64(d.Int)
		}
	}
	return 0
}

// ExtractFP reads the floating-point field the type selects.
func ExtractFP(d Datum, ti TypeInfo) float64 {
	switch ti.ComparisonType().Type {
	case Float:
		return float64(d.Float)
	case Double:
		return d.Double
	}
	return 0
}
