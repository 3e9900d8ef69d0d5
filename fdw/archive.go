package fdw

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"strconv"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	pfile "github.com/apache/arrow/go/v14/parquet/file"
	"github.com/apache/arrow/go/v14/parquet/metadata"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/ainilili/colstore/catalog"
	"github.com/ainilili/colstore/chunk"
	"github.com/ainilili/colstore/errs"
	"github.com/ainilili/colstore/loader"
)

type archiveOptions struct {
	filePath string
	paths    pathOptions
}

func parseArchiveOptions(t *catalog.ForeignTable) (*archiveOptions, error) {
	opts := &archiveOptions{paths: parsePathOptions(t)}
	path, ok := t.Option(FilePathKey)
	if !ok {
		return nil, errs.Configf("foreign table \"%s\" is missing the %s option", t.Name, FilePathKey)
	}
	opts.filePath = path
	return opts, nil
}

// ArchiveDataWrapper reads columnar archive (parquet) sources. Chunk
// metadata can be derived from the archive's own column statistics
// without scanning data.
type ArchiveDataWrapper struct {
	dbID        int
	table       *catalog.ForeignTable
	userMapping *catalog.UserMapping
}

func newArchiveDataWrapper(dbID int, table *catalog.ForeignTable, um *catalog.UserMapping) *ArchiveDataWrapper {
	return &ArchiveDataWrapper{dbID: dbID, table: table, userMapping: um}
}

func newArchiveValidationWrapper() *ArchiveDataWrapper {
	return &ArchiveDataWrapper{}
}

func (w *ArchiveDataWrapper) ValidateServerOptions(server *catalog.ForeignServer) error {
	return validateLocalStorage(server)
}

func (w *ArchiveDataWrapper) ValidateTableOptions(table *catalog.ForeignTable) error {
	_, err := parseArchiveOptions(table)
	return err
}

func (w *ArchiveDataWrapper) PopulateChunks(ctx context.Context) (*loader.InsertChunks, error) {
	if w.table == nil {
		return nil, errs.Configf("columnar-archive wrapper is not bound to a table")
	}
	opts, err := parseArchiveOptions(w.table)
	if err != nil {
		return nil, err
	}
	paths, err := expandPaths(opts.filePath, opts.paths)
	if err != nil {
		return nil, err
	}
	src := &archiveSource{ctx: ctx, paths: paths, columns: len(w.table.Columns)}
	return populateFromRows(w.dbID, w.table, src, 0, "\\N", ',', '{', '}')
}

// PopulateChunkMetadata derives per-row-group chunk metadata from the
// archive's column-chunk statistics without reading any values.
func (w *ArchiveDataWrapper) PopulateChunkMetadata(ctx context.Context) (map[chunk.Key]*chunk.Metadata, error) {
	if w.table == nil {
		return nil, errs.Configf("columnar-archive wrapper is not bound to a table")
	}
	opts, err := parseArchiveOptions(w.table)
	if err != nil {
		return nil, err
	}
	paths, err := expandPaths(opts.filePath, opts.paths)
	if err != nil {
		return nil, err
	}
	result := map[chunk.Key]*chunk.Metadata{}
	fragment := 0
	for _, path := range paths {
		rdr, err := pfile.OpenParquetFile(path, false)
		if err != nil {
			return nil, errs.Configf("cannot open archive file \"%s\": %v", path, err)
		}
		fileMeta := rdr.MetaData()
		if len(w.table.Columns) != fileMeta.Schema.NumColumns() {
			_ = rdr.Close()
			return nil, errs.Configf("archive file \"%s\" has %d columns, table \"%s\" has %d",
				path, fileMeta.Schema.NumColumns(), w.table.Name, len(w.table.Columns))
		}
		for rg := 0; rg < rdr.NumRowGroups(); rg++ {
			rgMeta := fileMeta.RowGroup(rg)
			for c := range w.table.Columns {
				colMeta, err := rgMeta.ColumnChunk(c)
				if err != nil {
					_ = rdr.Close()
					return nil, err
				}
				ti := w.table.Columns[c].Type
				m := chunk.New(ti, uint64(colMeta.TotalUncompressedSize()), uint64(colMeta.NumValues()), chunk.Stats{})
				if err := fillFromArchiveStats(m, colMeta, fileMeta.Schema.Column(c).PhysicalType()); err != nil {
					_ = rdr.Close()
					return nil, err
				}
				key := chunk.Key{DB: w.dbID, Table: w.table.ID, Column: w.table.Columns[c].ID, Fragment: fragment}
				result[key] = m
			}
			fragment++
		}
		_ = rdr.Close()
	}
	return result, nil
}

// fillFromArchiveStats narrows the archive's own column-chunk
// statistics into the chunk metadata. Statistics the archive does not
// carry leave the bounds at their zero value.
func fillFromArchiveStats(m *chunk.Metadata, colMeta *metadata.ColumnChunkMetaData, physical parquet.Type) error {
	stats, err := colMeta.Statistics()
	if err != nil || stats == nil {
		return err
	}
	hasNulls := stats.HasNullCount() && stats.NullCount() > 0
	if !stats.HasMinMax() {
		m.Stats.HasNulls = hasNulls
		return nil
	}
	minRaw, maxRaw := stats.EncodeMin(), stats.EncodeMax()
	switch physical {
	case parquet.Types.Boolean:
		chunk.FillElem(m, int64(minRaw[0]), int64(maxRaw[0]), hasNulls)
	case parquet.Types.Int32:
		chunk.FillElem(m,
			int64(int32(binary.LittleEndian.Uint32(minRaw))),
			int64(int32(binary.LittleEndian.Uint32(maxRaw))), hasNulls)
	case parquet.Types.Int64:
		chunk.FillElem(m,
			int64(binary.LittleEndian.Uint64(minRaw)),
			int64(binary.LittleEndian.Uint64(maxRaw)), hasNulls)
	case parquet.Types.Float:
		chunk.FillElem(m,
			float64(math.Float32frombits(binary.LittleEndian.Uint32(minRaw))),
			float64(math.Float32frombits(binary.LittleEndian.Uint32(maxRaw))), hasNulls)
	case parquet.Types.Double:
		chunk.FillElem(m,
			math.Float64frombits(binary.LittleEndian.Uint64(minRaw)),
			math.Float64frombits(binary.LittleEndian.Uint64(maxRaw)), hasNulls)
	default:
		// Byte-array bounds do not narrow into a Datum; nullability
		// still counts.
		m.Stats.HasNulls = hasNulls
	}
	return nil
}

// archiveSource streams rows of the ordered archive file list through
// the shared column builders, rendering values through the table's own
// type parsers.
type archiveSource struct {
	ctx     context.Context
	paths   []string
	columns int

	table   arrow.Table
	release func()
	rows    int64
	row     int64
	next    int
	getters []func(row int64) (string, bool)
}

func (s *archiveSource) Next() ([]string, error) {
	for {
		if err := s.ctx.Err(); err != nil {
			return nil, err
		}
		if s.table == nil {
			if s.next >= len(s.paths) {
				return nil, io.EOF
			}
			if err := s.open(s.paths[s.next]); err != nil {
				return nil, err
			}
			s.next++
		}
		if s.row >= s.rows {
			s.close()
			continue
		}
		fields := make([]string, s.columns)
		for i, get := range s.getters {
			v, null := get(s.row)
			if null {
				fields[i] = "\\N"
			} else {
				fields[i] = v
			}
		}
		s.row++
		return fields, nil
	}
}

func (s *archiveSource) open(path string) error {
	rdr, err := pfile.OpenParquetFile(path, false)
	if err != nil {
		return errs.Configf("cannot open archive file \"%s\": %v", path, err)
	}
	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		_ = rdr.Close()
		return err
	}
	tbl, err := fr.ReadTable(s.ctx)
	if err != nil {
		_ = rdr.Close()
		return err
	}
	if int(tbl.NumCols()) != s.columns {
		tbl.Release()
		_ = rdr.Close()
		return errs.Configf("archive file \"%s\" has %d columns, expected %d", path, tbl.NumCols(), s.columns)
	}
	getters := make([]func(row int64) (string, bool), s.columns)
	for c := 0; c < s.columns; c++ {
		getter, err := newArrowColumnGetter(tbl.Column(c).Data().Chunks())
		if err != nil {
			tbl.Release()
			_ = rdr.Close()
			return err
		}
		getters[c] = getter
	}
	s.table = tbl
	s.release = func() { tbl.Release(); _ = rdr.Close() }
	s.rows = tbl.NumRows()
	s.row = 0
	s.getters = getters
	return nil
}

func (s *archiveSource) close() {
	if s.release != nil {
		s.release()
	}
	s.table = nil
	s.release = nil
	s.getters = nil
}

func newArrowColumnGetter(chunks []arrow.Array) (func(row int64) (string, bool), error) {
	type span struct {
		arr   arrow.Array
		start int64
	}
	spans := make([]span, len(chunks))
	var offset int64
	for i, arr := range chunks {
		spans[i] = span{arr: arr, start: offset}
		offset += int64(arr.Len())
	}
	locate := func(row int64) (arrow.Array, int) {
		for i := len(spans) - 1; i >= 0; i-- {
			if row >= spans[i].start {
				return spans[i].arr, int(row - spans[i].start)
			}
		}
		return spans[0].arr, int(row)
	}
	// Validate the element type once up front.
	for _, arr := range chunks {
		switch arr.(type) {
		case *array.Boolean, *array.Int8, *array.Int16, *array.Int32, *array.Int64,
			*array.Float32, *array.Float64, *array.String, *array.Binary:
		default:
			return nil, errs.Configf("unsupported archive column type %s", arr.DataType().Name())
		}
	}
	return func(row int64) (string, bool) {
		arr, i := locate(row)
		if arr.IsNull(i) {
			return "", true
		}
		switch a := arr.(type) {
		case *array.Boolean:
			if a.Value(i) {
				return "1", false
			}
			return "0", false
		case *array.Int8:
			return strconv.FormatInt(int64(a.Value(i)), 10), false
		case *array.Int16:
			return strconv.FormatInt(int64(a.Value(i)), 10), false
		case *array.Int32:
			return strconv.FormatInt(int64(a.Value(i)), 10), false
		case *array.Int64:
			return strconv.FormatInt(a.Value(i), 10), false
		case *array.Float32:
			return strconv.FormatFloat(float64(a.Value(i)), 'g', -1, 32), false
		case *array.Float64:
			return strconv.FormatFloat(a.Value(i), 'g', -1, 64), false
		case *array.String:
			return a.Value(i), false
		case *array.Binary:
			return string(a.Value(i)), false
		}
		return "", true
	}, nil
}

// ArchiveImporter is the decoupled parse/stage/commit importer: row
// groups are surfaced one batch at a time so the caller can stage and
// checkpoint between batches.
type ArchiveImporter struct {
	*ArchiveDataWrapper

	paths   []string
	pathIdx int
	rdr     *pfile.Reader
	fr      *pqarrow.FileReader
	rg      int
	batch   int
}

func newArchiveImporter(dbID int, table *catalog.ForeignTable, um *catalog.UserMapping) *ArchiveImporter {
	return &ArchiveImporter{ArchiveDataWrapper: newArchiveDataWrapper(dbID, table, um)}
}

// NextBatch returns one row group's worth of chunks, or io.EOF after
// the last row group of the last file. Fragment ids count batches.
func (im *ArchiveImporter) NextBatch(ctx context.Context) (*loader.InsertChunks, error) {
	if im.table == nil {
		return nil, errs.Configf("columnar-archive importer is not bound to a table")
	}
	if im.paths == nil {
		opts, err := parseArchiveOptions(im.table)
		if err != nil {
			return nil, err
		}
		paths, err := expandPaths(opts.filePath, opts.paths)
		if err != nil {
			return nil, err
		}
		im.paths = paths
	}
	for {
		if im.rdr == nil {
			if im.pathIdx >= len(im.paths) {
				return nil, io.EOF
			}
			rdr, err := pfile.OpenParquetFile(im.paths[im.pathIdx], false)
			if err != nil {
				return nil, errs.Configf("cannot open archive file \"%s\": %v", im.paths[im.pathIdx], err)
			}
			fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
			if err != nil {
				_ = rdr.Close()
				return nil, err
			}
			im.pathIdx++
			im.rdr = rdr
			im.fr = fr
			im.rg = 0
		}
		if im.rg >= im.rdr.NumRowGroups() {
			_ = im.rdr.Close()
			im.rdr = nil
			im.fr = nil
			continue
		}
		tbl, err := im.fr.ReadRowGroups(ctx, nil, []int{im.rg})
		if err != nil {
			return nil, err
		}
		im.rg++
		src, err := newTableSource(ctx, tbl, len(im.table.Columns))
		if err != nil {
			tbl.Release()
			return nil, err
		}
		chunks, err := populateFromRows(im.dbID, im.table, src, im.batch, "\\N", ',', '{', '}')
		tbl.Release()
		if err != nil {
			return nil, err
		}
		im.batch++
		return chunks, nil
	}
}

// Close releases the open archive file, if any.
func (im *ArchiveImporter) Close() error {
	if im.rdr != nil {
		err := im.rdr.Close()
		im.rdr = nil
		im.fr = nil
		return err
	}
	return nil
}

// tableSource adapts an in-memory arrow table to the row source the
// column builders consume.
type tableSource struct {
	rows    int64
	row     int64
	columns int
	getters []func(row int64) (string, bool)
}

func newTableSource(ctx context.Context, tbl arrow.Table, columns int) (*tableSource, error) {
	if int(tbl.NumCols()) != columns {
		return nil, errs.Configf("archive row group has %d columns, expected %d", tbl.NumCols(), columns)
	}
	getters := make([]func(row int64) (string, bool), columns)
	for c := 0; c < columns; c++ {
		getter, err := newArrowColumnGetter(tbl.Column(c).Data().Chunks())
		if err != nil {
			return nil, err
		}
		getters[c] = getter
	}
	return &tableSource{rows: tbl.NumRows(), columns: columns, getters: getters}, nil
}

func (s *tableSource) Next() ([]string, error) {
	if s.row >= s.rows {
		return nil, io.EOF
	}
	fields := make([]string, s.columns)
	for i, get := range s.getters {
		v, null := get(s.row)
		if null {
			fields[i] = "\\N"
		} else {
			fields[i] = v
		}
	}
	s.row++
	return fields, nil
}
