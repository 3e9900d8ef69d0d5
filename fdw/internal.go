package fdw

import (
	"context"
	"io"
	"os"
	"runtime"
	"strconv"

	"github.com/spf13/afero"

	"github.com/ainilili/colstore/catalog"
	"github.com/ainilili/colstore/errs"
	"github.com/ainilili/colstore/file"
	"github.com/ainilili/colstore/loader"
	"github.com/ainilili/colstore/types"
)

// The internal wrappers expose read-only system views through the same
// chunk pipeline as file imports. They are dispatchable internally but
// not creatable through DDL.

type sliceRows struct {
	rows [][]string
	i    int
}

func (s *sliceRows) Next() ([]string, error) {
	if s.i >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.i]
	s.i++
	return row, nil
}

func internalColumns(names []string, ts []types.TypeInfo) []catalog.ColumnDescriptor {
	cols := make([]catalog.ColumnDescriptor, len(names))
	for i := range names {
		cols[i] = catalog.ColumnDescriptor{ID: i, Name: names[i], Type: ts[i]}
	}
	return cols
}

func populateInternal(dbID int, table *catalog.ForeignTable, cols []catalog.ColumnDescriptor, rows [][]string) (*loader.InsertChunks, error) {
	// The virtual schema wins over whatever columns the bound table
	// declares; ids and names come from the bound table.
	vt := &catalog.ForeignTable{
		TableDescriptor: catalog.TableDescriptor{
			ID:       table.ID,
			Name:     table.Name,
			Database: table.Database,
			Columns:  cols,
		},
		Server:  table.Server,
		Options: table.Options,
	}
	return populateFromRows(dbID, vt, &sliceRows{rows: rows}, 0, "\\N", ',', '{', '}')
}

var (
	textType   = types.TypeInfo{Type: types.Text, Encoding: types.EncodingDict}
	bigintType = types.TypeInfo{Type: types.BigInt}
)

// InternalCatalogDataWrapper serves the catalog as a virtual table:
// one row per column of every table of every database.
type InternalCatalogDataWrapper struct {
	dbID  int
	table *catalog.ForeignTable
	cat   *catalog.Catalog
}

func newInternalCatalogWrapper(dbID int, table *catalog.ForeignTable, cat *catalog.Catalog) *InternalCatalogDataWrapper {
	return &InternalCatalogDataWrapper{dbID: dbID, table: table, cat: cat}
}

func (w *InternalCatalogDataWrapper) ValidateServerOptions(server *catalog.ForeignServer) error {
	return nil
}

func (w *InternalCatalogDataWrapper) ValidateTableOptions(table *catalog.ForeignTable) error {
	return nil
}

func (w *InternalCatalogDataWrapper) PopulateChunks(ctx context.Context) (*loader.InsertChunks, error) {
	if w.table == nil {
		return nil, errs.Configf("internal-catalog wrapper is not bound to a table")
	}
	if w.cat == nil {
		return nil, errs.Configf("internal-catalog wrapper has no system catalog")
	}
	var rows [][]string
	for _, db := range w.cat.Databases {
		for _, t := range db.Tables {
			for _, c := range t.Columns {
				rows = append(rows, []string{db.Name, t.Name, c.Name, c.Type.Name()})
			}
		}
	}
	cols := internalColumns(
		[]string{"database_name", "table_name", "column_name", "column_type"},
		[]types.TypeInfo{textType, textType, textType, textType})
	return populateInternal(w.dbID, w.table, cols, rows)
}

// InternalMemoryStatsDataWrapper serves process memory statistics.
type InternalMemoryStatsDataWrapper struct {
	dbID  int
	table *catalog.ForeignTable
}

func newInternalMemoryStatsWrapper(dbID int, table *catalog.ForeignTable) *InternalMemoryStatsDataWrapper {
	return &InternalMemoryStatsDataWrapper{dbID: dbID, table: table}
}

func (w *InternalMemoryStatsDataWrapper) ValidateServerOptions(server *catalog.ForeignServer) error {
	return nil
}

func (w *InternalMemoryStatsDataWrapper) ValidateTableOptions(table *catalog.ForeignTable) error {
	return nil
}

func (w *InternalMemoryStatsDataWrapper) PopulateChunks(ctx context.Context) (*loader.InsertChunks, error) {
	if w.table == nil {
		return nil, errs.Configf("internal-memory-stats wrapper is not bound to a table")
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	rows := [][]string{
		{"heap_alloc_bytes", strconv.FormatUint(ms.HeapAlloc, 10)},
		{"heap_sys_bytes", strconv.FormatUint(ms.HeapSys, 10)},
		{"heap_objects", strconv.FormatUint(ms.HeapObjects, 10)},
		{"total_alloc_bytes", strconv.FormatUint(ms.TotalAlloc, 10)},
		{"gc_cycles", strconv.FormatUint(uint64(ms.NumGC), 10)},
	}
	cols := internalColumns(
		[]string{"metric", "value"},
		[]types.TypeInfo{textType, bigintType})
	return populateInternal(w.dbID, w.table, cols, rows)
}

// InternalStorageStatsDataWrapper serves per-file usage of the staging
// directory.
type InternalStorageStatsDataWrapper struct {
	dbID       int
	table      *catalog.ForeignTable
	stagingDir string
}

func newInternalStorageStatsWrapper(dbID int, table *catalog.ForeignTable, stagingDir string) *InternalStorageStatsDataWrapper {
	return &InternalStorageStatsDataWrapper{dbID: dbID, table: table, stagingDir: stagingDir}
}

func (w *InternalStorageStatsDataWrapper) ValidateServerOptions(server *catalog.ForeignServer) error {
	return nil
}

func (w *InternalStorageStatsDataWrapper) ValidateTableOptions(table *catalog.ForeignTable) error {
	return nil
}

func (w *InternalStorageStatsDataWrapper) PopulateChunks(ctx context.Context) (*loader.InsertChunks, error) {
	if w.table == nil {
		return nil, errs.Configf("internal-storage-stats wrapper is not bound to a table")
	}
	if w.stagingDir == "" {
		return nil, errs.Configf("internal-storage-stats wrapper has no staging directory")
	}
	var rows [][]string
	err := afero.Walk(file.Fs(), w.stagingDir, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			rows = append(rows, []string{p, strconv.FormatInt(fi.Size(), 10)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	cols := internalColumns(
		[]string{"file_path", "size_bytes"},
		[]types.TypeInfo{textType, bigintType})
	return populateInternal(w.dbID, w.table, cols, rows)
}
