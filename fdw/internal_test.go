package fdw

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ainilili/colstore/catalog"
	"github.com/ainilili/colstore/chunk"
	"github.com/ainilili/colstore/types"
)

func internalForeignTable(id int, wrapperType string) *catalog.ForeignTable {
	ft := &catalog.ForeignTable{
		TableDescriptor: catalog.TableDescriptor{ID: id, Name: "sys_view", Database: "information_schema"},
		Server: &catalog.ForeignServer{
			ID:          -2,
			Name:        "system_server",
			WrapperType: wrapperType,
			Options:     map[string]string{},
		},
		Options: map[string]string{},
	}
	if err := ft.InitializeOptions(); err != nil {
		panic(err)
	}
	return ft
}

func TestInternalCatalogWrapper(t *testing.T) {
	cat := &catalog.Catalog{
		Databases: []catalog.DatabaseDescriptor{
			{
				ID:   1,
				Name: "nyc",
				Tables: []catalog.TableDescriptor{
					{
						ID:   1,
						Name: "trips",
						Columns: []catalog.ColumnDescriptor{
							{ID: 0, Name: "id", Type: types.TypeInfo{Type: types.BigInt}},
							{ID: 1, Name: "fare", Type: types.TypeInfo{Type: types.Double}},
						},
					},
				},
			},
		},
	}
	w := newInternalCatalogWrapper(0, internalForeignTable(9, InternalCatalog), cat)
	chunks, err := w.PopulateChunks(context.Background())
	assert.NoError(t, err)
	// One row per column: database, table, column, type.
	assert.Len(t, chunks.Chunks, 4)
	names := chunks.Chunks[chunk.Key{Table: 9, Column: 2}]
	assert.Equal(t, uint64(2), names.Meta.NumElements)
	assert.Equal(t, []string{"id", "fare"}, names.Dict)
	typs := chunks.Chunks[chunk.Key{Table: 9, Column: 3}]
	assert.Equal(t, []string{"BIGINT", "DOUBLE"}, typs.Dict)
}

func TestInternalMemoryStatsWrapper(t *testing.T) {
	w := newInternalMemoryStatsWrapper(0, internalForeignTable(8, InternalMemoryStats))
	chunks, err := w.PopulateChunks(context.Background())
	assert.NoError(t, err)
	assert.Len(t, chunks.Chunks, 2)
	metric := chunks.Chunks[chunk.Key{Table: 8, Column: 0}]
	assert.Contains(t, metric.Dict, "heap_alloc_bytes")
	value := chunks.Chunks[chunk.Key{Table: 8, Column: 1}]
	assert.Equal(t, metric.Meta.NumElements, value.Meta.NumElements)
}

func TestInternalStorageStatsWrapper(t *testing.T) {
	memFs := useMemFs(t)
	writeFile(t, memFs, "/staging/state1", "0000")
	writeFile(t, memFs, "/staging/stage1", "framed-bytes")

	w := newInternalStorageStatsWrapper(0, internalForeignTable(7, InternalStorageStats), "/staging")
	chunks, err := w.PopulateChunks(context.Background())
	assert.NoError(t, err)
	pathCol := chunks.Chunks[chunk.Key{Table: 7, Column: 0}]
	assert.Equal(t, uint64(2), pathCol.Meta.NumElements)
	sizeCol := chunks.Chunks[chunk.Key{Table: 7, Column: 1}]
	assert.Equal(t, int64(len("framed-bytes")), chunk.ExtractMaxInt(sizeCol.Meta))
}

func TestInternalWrapperNeedsBoundTable(t *testing.T) {
	w := newInternalCatalogWrapper(0, nil, &catalog.Catalog{})
	_, err := w.PopulateChunks(context.Background())
	assert.Error(t, err)
}
