package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComparisonType(t *testing.T) {
	arr := TypeInfo{Type: Array, Elem: Int}
	assert.Equal(t, TypeInfo{Type: Int}, arr.ComparisonType())
	plain := TypeInfo{Type: Double}
	assert.Equal(t, plain, plain.ComparisonType())
}

func TestTypeInfoName(t *testing.T) {
	assert.Equal(t, "BIGINT", TypeInfo{Type: BigInt}.Name())
	assert.Equal(t, "SMALLINT[]", TypeInfo{Type: Array, Elem: SmallInt}.Name())
}

func TestDatumEqualReadsSelectedField(t *testing.T) {
	a := Datum{Int: 7, Double: 1.0}
	b := Datum{Int: 7, Double: 2.0}
	assert.True(t, DatumEqual(a, b, TypeInfo{Type: Int}))
	assert.False(t, DatumEqual(a, b, TypeInfo{Type: Double}))
}

func TestDatumEqualStrings(t *testing.T) {
	a := Datum{Int: 1, Str: "x"}
	b := Datum{Int: 1, Str: "y"}
	assert.True(t, DatumEqual(a, b, TypeInfo{Type: Text, Encoding: EncodingDict}))
	assert.False(t, DatumEqual(a, b, TypeInfo{Type: Text, Encoding: EncodingNone}))
}

func TestDatumToString(t *testing.T) {
	assert.Equal(t, "t", DatumToString(Datum{TinyInt: 1}, TypeInfo{Type: Boolean}))
	assert.Equal(t, "f", DatumToString(Datum{}, TypeInfo{Type: Boolean}))
	assert.Equal(t, "-42", DatumToString(Datum{BigInt: -42}, TypeInfo{Type: Timestamp}))
	assert.Equal(t, "1.5", DatumToString(Datum{Float: 1.5}, TypeInfo{Type: Float}))
}

func TestTypeParserIntegers(t *testing.T) {
	for _, ty := range []Type{TinyInt, SmallInt, Int, BigInt, Numeric, Decimal} {
		v := TypeParser[ty]("42")
		assert.Equal(t, int64(42), v, ty.String())
	}
	assert.Equal(t, int64(1), TypeParser[Boolean]("true"))
	assert.Equal(t, int64(0), TypeParser[Boolean]("false"))
}

func TestTypeParserFloats(t *testing.T) {
	assert.Equal(t, float64(float32(1.25)), TypeParser[Float]("1.25"))
	assert.Equal(t, 2.5, TypeParser[Double]("2.5"))
}

func TestTypeParserTemporal(t *testing.T) {
	v := TypeParser[Date]("2021-06-01")
	sec, ok := v.(int64)
	assert.True(t, ok)
	assert.Greater(t, sec, int64(0))

	ts := TypeParser[Timestamp]("2021-06-01 10:30:00").(int64)
	assert.Equal(t, sec+10*3600+30*60, ts)
}

func TestTypeParserStringsPassThrough(t *testing.T) {
	assert.Equal(t, "hello", TypeParser[Text]("hello"))
}

func TestSize(t *testing.T) {
	assert.Equal(t, 1, Boolean.Size())
	assert.Equal(t, 2, SmallInt.Size())
	assert.Equal(t, 4, Int.Size())
	assert.Equal(t, 8, Timestamp.Size())
	assert.Equal(t, -1, Text.Size())
}
