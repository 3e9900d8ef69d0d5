package fdw

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"strings"

	"github.com/ainilili/colstore/catalog"
	"github.com/ainilili/colstore/chunk"
	"github.com/ainilili/colstore/errs"
	"github.com/ainilili/colstore/loader"
	"github.com/ainilili/colstore/types"
)

// rowSource feeds parsed source rows to the column builders; io.EOF
// terminates the stream.
type rowSource interface {
	Next() ([]string, error)
}

// columnBuilder accumulates one column's values into a chunk buffer
// while tracking min/max/null-presence for the chunk metadata.
type columnBuilder struct {
	col        catalog.ColumnDescriptor
	nulls      string
	arrayDelim byte
	arrayBegin byte
	arrayEnd   byte

	data      bytes.Buffer
	index     []int32
	dict      map[string]int32
	dictOrder []string

	n        uint64
	elems    int32
	nullRows []int64
	hasNulls bool
	hasValue bool
	minI     int64
	maxI     int64
	minF     float64
	maxF     float64
}

func newColumnBuilder(col catalog.ColumnDescriptor, nulls string, arrayDelim, arrayBegin, arrayEnd byte) *columnBuilder {
	b := &columnBuilder{
		col:        col,
		nulls:      nulls,
		arrayDelim: arrayDelim,
		arrayBegin: arrayBegin,
		arrayEnd:   arrayEnd,
	}
	ct := col.Type.ComparisonType()
	if ct.Type.IsString() && ct.Encoding == types.EncodingDict {
		b.dict = map[string]int32{}
	}
	if col.Type.Type == types.Array || (ct.Type.IsString() && ct.Encoding == types.EncodingNone) {
		b.index = []int32{0}
	}
	return b
}

func (b *columnBuilder) add(raw string) error {
	b.n++
	if raw == b.nulls {
		b.nullRows = append(b.nullRows, int64(b.n-1))
	}
	if b.col.Type.Type != types.Array {
		if err := b.addScalar(raw); err != nil {
			return err
		}
		if b.index != nil && b.col.Type.ComparisonType().Type.IsString() {
			b.index = append(b.index, int32(b.data.Len()))
		}
		return nil
	}
	if raw == b.nulls {
		b.hasNulls = true
		b.index = append(b.index, b.elems)
		return nil
	}
	if len(raw) < 2 || raw[0] != b.arrayBegin || raw[len(raw)-1] != b.arrayEnd {
		return errs.Configf("malformed array literal \"%s\" in column \"%s\"", raw, b.col.Name)
	}
	body := raw[1 : len(raw)-1]
	if body != "" {
		for _, elem := range strings.Split(body, string(b.arrayDelim)) {
			if err := b.addScalar(elem); err != nil {
				return err
			}
			b.elems++
		}
	}
	b.index = append(b.index, b.elems)
	return nil
}

func (b *columnBuilder) addScalar(raw string) error {
	ct := b.col.Type.ComparisonType()
	if raw == b.nulls {
		b.hasNulls = true
		switch {
		case ct.Encoding == types.EncodingDict:
			b.putInt(4, 0)
		case ct.Type.IsString():
			// Varlen nulls occupy no buffer bytes; the index entry
			// marks the empty span.
		default:
			b.putInt(ct.Type.Size(), 0)
		}
		return nil
	}
	switch {
	case ct.Type.IsInteger():
		v := types.TypeParser[ct.Type](raw).(int64)
		b.observeInt(v)
		b.putInt(ct.Type.Size(), v)
	case ct.Type.IsFloat():
		v := types.TypeParser[ct.Type](raw).(float64)
		b.observeFP(v)
		if ct.Type == types.Float {
			b.putInt(4, int64(int32(math.Float32bits(float32(v)))))
		} else {
			b.putInt(8, int64(math.Float64bits(v)))
		}
	case ct.Encoding == types.EncodingDict:
		code, ok := b.dict[raw]
		if !ok {
			code = int32(len(b.dictOrder))
			b.dict[raw] = code
			b.dictOrder = append(b.dictOrder, raw)
		}
		b.observeInt(int64(code))
		b.putInt(4, int64(code))
	default:
		b.data.WriteString(raw)
	}
	return nil
}

func (b *columnBuilder) observeInt(v int64) {
	if !b.hasValue || v < b.minI {
		b.minI = v
	}
	if !b.hasValue || v > b.maxI {
		b.maxI = v
	}
	b.hasValue = true
}

func (b *columnBuilder) observeFP(v float64) {
	if !b.hasValue || v < b.minF {
		b.minF = v
	}
	if !b.hasValue || v > b.maxF {
		b.maxF = v
	}
	b.hasValue = true
}

func (b *columnBuilder) putInt(size int, v int64) {
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], uint64(v))
	b.data.Write(scratch[:size])
}

func (b *columnBuilder) build() *chunk.Chunk {
	m := chunk.New(b.col.Type, uint64(b.data.Len()), b.n, chunk.Stats{})
	ct := b.col.Type.ComparisonType()
	switch {
	case ct.Type.IsInteger() || (ct.Type.IsString() && ct.Encoding == types.EncodingDict):
		chunk.FillElem(m, b.minI, b.maxI, b.hasNulls)
	case ct.Type.IsFloat():
		chunk.FillElem(m, b.minF, b.maxF, b.hasNulls)
	default:
		// Unencoded strings keep invalid bounds; only nullability is
		// tracked.
		m.Stats.HasNulls = b.hasNulls
	}
	return &chunk.Chunk{
		Meta:  m,
		Data:  append([]byte(nil), b.data.Bytes()...),
		Index: b.index,
		Dict:  b.dictOrder,
		Nulls: b.nullRows,
	}
}

// populateFromRows runs a row source through per-column builders and
// assembles the insert-chunks payload for one fragment.
func populateFromRows(dbID int, table *catalog.ForeignTable, src rowSource, fragment int, nulls string, arrayDelim, arrayBegin, arrayEnd byte) (*loader.InsertChunks, error) {
	builders := make([]*columnBuilder, len(table.Columns))
	for i, col := range table.Columns {
		builders[i] = newColumnBuilder(col, nulls, arrayDelim, arrayBegin, arrayEnd)
	}
	rowCount := 0
	for {
		fields, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(fields) != len(builders) {
			return nil, errs.Configf("row %d has %d fields, table \"%s\" has %d columns",
				rowCount+1, len(fields), table.Name, len(builders))
		}
		for i, raw := range fields {
			if err := builders[i].add(raw); err != nil {
				return nil, err
			}
		}
		rowCount++
	}

	result := &loader.InsertChunks{
		DBID:    dbID,
		TableID: table.ID,
		Chunks:  map[chunk.Key]*chunk.Chunk{},
	}
	for i, b := range builders {
		key := chunk.Key{DB: dbID, Table: table.ID, Column: table.Columns[i].ID, Fragment: fragment}
		result.Chunks[key] = b.build()
	}
	return result, nil
}
