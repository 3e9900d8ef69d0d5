package cluster

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pingcap/errors"

	"github.com/ainilili/colstore/catalog"
	"github.com/ainilili/colstore/chunk"
	"github.com/ainilili/colstore/consts"
	"github.com/ainilili/colstore/loader"
	"github.com/ainilili/colstore/types"
	"github.com/ainilili/colstore/util"
)

func lookupTable(cat *catalog.Catalog, dbID, tableID int) (*catalog.DatabaseDescriptor, *catalog.TableDescriptor, error) {
	if cat == nil {
		return nil, nil, errors.Errorf("no catalog bound, cannot resolve table %d.%d", dbID, tableID)
	}
	for i := range cat.Databases {
		db := &cat.Databases[i]
		if db.ID != dbID {
			continue
		}
		for j := range db.Tables {
			if db.Tables[j].ID == tableID {
				return db, &db.Tables[j], nil
			}
		}
	}
	return nil, nil, errors.Errorf("table %d.%d not found in catalog", dbID, tableID)
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// chunkReader decodes one column chunk back into per-row SQL literals.
type chunkReader struct {
	c     *chunk.Chunk
	nulls map[int64]bool
}

func newChunkReader(c *chunk.Chunk) *chunkReader {
	r := &chunkReader{c: c}
	if len(c.Nulls) > 0 {
		r.nulls = make(map[int64]bool, len(c.Nulls))
		for _, row := range c.Nulls {
			r.nulls[row] = true
		}
	}
	return r
}

func (r *chunkReader) value(row int) (string, error) {
	if r.nulls[int64(row)] {
		return "NULL", nil
	}
	ti := r.c.Meta.Type
	if ti.Type == types.Array {
		return r.arrayValue(row)
	}
	return r.scalarValue(ti, row)
}

func (r *chunkReader) scalarValue(ti types.TypeInfo, row int) (string, error) {
	ct := ti.ComparisonType()
	switch {
	case ct.Type == types.Float:
		bits := binary.LittleEndian.Uint32(r.c.Data[row*4:])
		return strconv.FormatFloat(float64(math.Float32frombits(bits)), 'g', -1, 32), nil
	case ct.Type == types.Double:
		bits := binary.LittleEndian.Uint64(r.c.Data[row*8:])
		return strconv.FormatFloat(math.Float64frombits(bits), 'g', -1, 64), nil
	case ct.Type.IsInteger():
		return strconv.FormatInt(r.readInt(ct.Type.Size(), row), 10), nil
	case ct.Encoding == types.EncodingDict:
		code := int(r.readInt(4, row))
		if code < 0 || code >= len(r.c.Dict) {
			return "", errors.Errorf("dictionary code %d out of range for %s chunk", code, ti.Name())
		}
		return quoteString(r.c.Dict[code]), nil
	default:
		if row+1 >= len(r.c.Index) {
			return "", errors.Errorf("missing index entry for row %d of %s chunk", row, ti.Name())
		}
		return quoteString(string(r.c.Data[r.c.Index[row]:r.c.Index[row+1]])), nil
	}
}

func (r *chunkReader) readInt(size, row int) int64 {
	off := row * size
	switch size {
	case 1:
		return int64(int8(r.c.Data[off]))
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(r.c.Data[off:])))
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(r.c.Data[off:])))
	default:
		return int64(binary.LittleEndian.Uint64(r.c.Data[off:]))
	}
}

func (r *chunkReader) arrayValue(row int) (string, error) {
	if row+1 >= len(r.c.Index) {
		return "", errors.Errorf("missing index entry for array row %d", row)
	}
	elemType := types.TypeInfo{Type: r.c.Meta.Type.Elem, Encoding: r.c.Meta.Type.Encoding}
	if elemType.Type.IsString() && elemType.Encoding == types.EncodingNone {
		// The array index records element counts, not byte offsets, so
		// unencoded string elements cannot be located in the buffer.
		return "", errors.Errorf("array of unencoded %s elements cannot be decoded", elemType.Type)
	}
	var sb strings.Builder
	sb.WriteByte('{')
	for i := r.c.Index[row]; i < r.c.Index[row+1]; i++ {
		if i > r.c.Index[row] {
			sb.WriteByte(',')
		}
		v, err := r.scalarValue(elemType, int(i))
		if err != nil {
			return "", err
		}
		sb.WriteString(strings.Trim(v, "'"))
	}
	sb.WriteByte('}')
	return quoteString(sb.String()), nil
}

// renderChunkInserts turns a chunk payload into batched multi-row
// INSERT statements, one batch per consts.InsertBatch rows.
func renderChunkInserts(cat *catalog.Catalog, ic *loader.InsertChunks) ([]string, error) {
	db, table, err := lookupTable(cat, ic.DBID, ic.TableID)
	if err != nil {
		return nil, err
	}
	fragments := map[int][]chunk.Key{}
	for key := range ic.Chunks {
		fragments[key.Fragment] = append(fragments[key.Fragment], key)
	}
	fragIDs := make([]int, 0, len(fragments))
	for id := range fragments {
		fragIDs = append(fragIDs, id)
	}
	sort.Ints(fragIDs)

	var stmts []string
	for _, frag := range fragIDs {
		keys := fragments[frag]
		sort.Slice(keys, func(i, j int) bool { return keys[i].Column < keys[j].Column })
		readers := make([]*chunkReader, len(keys))
		rows := 0
		for i, key := range keys {
			c := ic.Chunks[key]
			readers[i] = newChunkReader(c)
			if i == 0 {
				rows = int(c.Meta.NumElements)
			} else if int(c.Meta.NumElements) != rows {
				return nil, errors.Errorf("fragment %d has ragged chunks: column %d holds %d rows, expected %d",
					frag, key.Column, c.Meta.NumElements, rows)
			}
		}
		batch, err := renderRows(db.Name, table.Name, rows, len(readers), func(row, col int) (string, error) {
			return readers[col].value(row)
		})
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, batch...)
	}
	return stmts, nil
}

// renderDataInserts does the same for a row-batch payload.
func renderDataInserts(cat *catalog.Catalog, id *loader.InsertData) ([]string, error) {
	db, table, err := lookupTable(cat, id.DBID, id.TableID)
	if err != nil {
		return nil, err
	}
	return renderRows(db.Name, table.Name, id.NumRows, len(id.Data), func(row, col int) (string, error) {
		block := id.Data[col]
		switch {
		case block.Ints != nil:
			return strconv.FormatInt(block.Ints[row], 10), nil
		case block.Reals != nil:
			return strconv.FormatFloat(block.Reals[row], 'g', -1, 64), nil
		case block.Strings != nil:
			return quoteString(block.Strings[row]), nil
		default:
			return "", errors.Errorf("column %d of table %s.%s has an empty data block", col, db.Name, table.Name)
		}
	})
}

func renderRows(db, table string, rows, cols int, value func(row, col int) (string, error)) ([]string, error) {
	if rows == 0 {
		return nil, nil
	}
	var stmts []string
	buff := bytes.Buffer{}
	offset := 0
	for {
		buff.WriteString(fmt.Sprintf("INSERT INTO %s.%s VALUES ", db, table))
		for i := offset; i < util.Min(offset+consts.InsertBatch, rows); i++ {
			buff.WriteByte('(')
			for c := 0; c < cols; c++ {
				if c > 0 {
					buff.WriteByte(',')
				}
				v, err := value(i, c)
				if err != nil {
					return nil, err
				}
				buff.WriteString(v)
			}
			buff.WriteString("),")
		}
		offset += consts.InsertBatch
		buff.Truncate(buff.Len() - 1)
		buff.WriteString(";")
		stmts = append(stmts, buff.String())
		if rows <= offset {
			break
		}
		buff.Reset()
	}
	return stmts, nil
}
