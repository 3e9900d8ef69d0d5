// Package chunk holds per-chunk metadata and value statistics consumed
// by the query optimizer.
package chunk

import (
	"strconv"

	"github.com/ainilili/colstore/types"
)

// Key identifies one chunk: (database, table, column, fragment) plus a
// sub-key for the varlen index buffer. Immutable, used as a map key.
type Key struct {
	DB       int
	Table    int
	Column   int
	Fragment int
	Varlen   int
}

type Stats struct {
	Min      types.Datum
	Max      types.Datum
	HasNulls bool
}

// Metadata describes one populated chunk. It is written only by the
// chunk's single writer at write time and immutable between writes.
type Metadata struct {
	Type        types.TypeInfo
	NumBytes    uint64
	NumElements uint64
	Stats       Stats
}

func New(ti types.TypeInfo, numBytes, numElements uint64, stats Stats) *Metadata {
	return &Metadata{
		Type:        ti,
		NumBytes:    numBytes,
		NumElements: numElements,
		Stats:       stats,
	}
}

type Scalar interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~int | ~float32 | ~float64
}

// Fill narrows min/max into the Datum field sized for the column's
// declared type. Unsupported type/encoding combinations leave the
// bounds at their zero value; HasNulls is recorded regardless.
func Fill[T Scalar](m *Metadata, min, max T, hasNulls bool) {
	m.Stats.HasNulls = hasNulls
	switch m.Type.Type {
	case types.Boolean, types.TinyInt:
		m.Stats.Min.TinyInt = int8(min)
		m.Stats.Max.TinyInt = int8(max)
	case types.SmallInt:
		m.Stats.Min.SmallInt = int16(min)
		m.Stats.Max.SmallInt = int16(max)
	case types.Int:
		m.Stats.Min.Int = int32(min)
		m.Stats.Max.Int = int32(max)
	case types.BigInt, types.Numeric, types.Decimal,
		types.Time, types.Timestamp, types.Date:
		m.Stats.Min.BigInt = int64(min)
		m.Stats.Max.BigInt = int64(max)
	case types.Float:
		m.Stats.Min.Float = float32(min)
		m.Stats.Max.Float = float32(max)
	case types.Double:
		m.Stats.Min.Double = float64(min)
		m.Stats.Max.Double = float64(max)
	case types.Char, types.Varchar, types.Text:
		if m.Type.Encoding == types.EncodingDict {
			m.Stats.Min.Int = int32(min)
			m.Stats.Max.Int = int32(max)
		}
	}
}

// FillElem narrows under the array element type.
func FillElem[T Scalar](m *Metadata, min, max T, hasNulls bool) {
	elem := &Metadata{Type: m.Type.ComparisonType()}
	Fill(elem, min, max, hasNulls)
	m.Stats = elem.Stats
}

// FillDatum copies an already-narrowed pair through unchanged.
func (m *Metadata) FillDatum(min, max types.Datum, hasNulls bool) {
	m.Stats.HasNulls = hasNulls
	m.Stats.Min = min
	m.Stats.Max = max
}

// Equals is type-aware structural equality: bounds compare under the
// chunk's comparison type (the element type for arrays). Bounds of
// unencoded string chunks are invalid and never compared.
func (m *Metadata) Equals(o *Metadata) bool {
	if m.Type != o.Type || m.NumBytes != o.NumBytes ||
		m.NumElements != o.NumElements || m.Stats.HasNulls != o.Stats.HasNulls {
		return false
	}
	ct := m.Type.ComparisonType()
	if ct.Type.IsString() && ct.Encoding == types.EncodingNone {
		return true
	}
	return types.DatumEqual(m.Stats.Min, o.Stats.Min, m.Type) &&
		types.DatumEqual(m.Stats.Max, o.Stats.Max, m.Type)
}

// Dump renders a human-readable form. Unencoded strings have no
// min/max; dictionary-encoded strings render the dictionary codes.
func (m *Metadata) Dump() string {
	ct := m.Type.ComparisonType()
	head := "type: " + m.Type.Name() +
		" numBytes: " + strconv.FormatUint(m.NumBytes, 10) +
		" numElements " + strconv.FormatUint(m.NumElements, 10)
	tail := " has_nulls: " + strconv.FormatBool(m.Stats.HasNulls)
	if ct.Type.IsString() && ct.Encoding == types.EncodingNone {
		return head + " min: <invalid> max: <invalid>" + tail
	}
	if ct.Type.IsString() {
		return head +
			" min: " + strconv.FormatInt(int64(m.Stats.Min.Int), 10) +
			" max: " + strconv.FormatInt(int64(m.Stats.Max.Int), 10) + tail
	}
	return head +
		" min: " + types.DatumToString(m.Stats.Min, m.Type) +
		" max: " + types.DatumToString(m.Stats.Max, m.Type) + tail
}

func (m *Metadata) String() string {
	return m.Dump()
}

func ExtractMinInt(m *Metadata) int64 {
	return types.ExtractInt(m.Stats.Min, m.Type)
}

func ExtractMaxInt(m *Metadata) int64 {
	return types.ExtractInt(m.Stats.Max, m.Type)
}

func ExtractMinFP(m *Metadata) float64 {
	return types.ExtractFP(m.Stats.Min, m.Type)
}

func ExtractMaxFP(m *Metadata) float64 {
	return types.ExtractFP(m.Stats.Max, m.Type)
}

// Chunk is one populated column chunk: the raw buffer, the varlen
// index when the element type is varlen, the string dictionary for
// dict-encoded columns, and the chunk's metadata.
type Chunk struct {
	Meta  *Metadata
	Data  []byte
	Index []int32
	Dict  []string
	// Nulls lists the row ordinals whose value is NULL. Buffers encode
	// nulls as zero sentinels, so decoding back to rows needs the list.
	Nulls []int64
}
