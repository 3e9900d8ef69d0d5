package fdw

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"github.com/ainilili/colstore/catalog"
	"github.com/ainilili/colstore/chunk"
	"github.com/ainilili/colstore/errs"
	"github.com/ainilili/colstore/file"
	"github.com/ainilili/colstore/types"
)

func useMemFs(t *testing.T) afero.Fs {
	old := file.Fs()
	memFs := afero.NewMemMapFs()
	file.SetFs(memFs)
	t.Cleanup(func() { file.SetFs(old) })
	return memFs
}

func writeFile(t *testing.T, memFs afero.Fs, path, content string) {
	assert.NoError(t, afero.WriteFile(memFs, path, []byte(content), 0666))
}

func csvForeignTable(path string, extra map[string]string) *catalog.ForeignTable {
	server := &catalog.ForeignServer{
		ID:          -1,
		Name:        "import_proxy_server",
		WrapperType: DelimitedText,
		Options:     map[string]string{StorageTypeKey: LocalFileStorageType},
	}
	opts := map[string]string{FilePathKey: path, HeaderKey: "FALSE"}
	for k, v := range extra {
		opts[k] = v
	}
	ft := &catalog.ForeignTable{
		TableDescriptor: catalog.TableDescriptor{
			ID:       1,
			Name:     "trips",
			Database: "nyc",
			Columns: []catalog.ColumnDescriptor{
				{ID: 0, Name: "id", Type: types.TypeInfo{Type: types.BigInt}},
				{ID: 1, Name: "city", Type: types.TypeInfo{Type: types.Text, Encoding: types.EncodingDict}},
				{ID: 2, Name: "fare", Type: types.TypeInfo{Type: types.Double}},
			},
		},
		Server:  server,
		Options: opts,
	}
	if err := ft.InitializeOptions(); err != nil {
		panic(err)
	}
	return ft
}

func TestCsvPopulateChunks(t *testing.T) {
	memFs := useMemFs(t)
	writeFile(t, memFs, "/data/trips.csv", "1,ny,12.5\n2,sf,3.25\n3,ny,\\N\n")

	w := newCsvDataWrapper(1, csvForeignTable("/data/trips.csv", nil), nil, false)
	chunks, err := w.PopulateChunks(context.Background())
	assert.NoError(t, err)
	assert.Len(t, chunks.Chunks, 3)

	id := chunks.Chunks[chunk.Key{DB: 1, Table: 1, Column: 0}]
	assert.Equal(t, uint64(3), id.Meta.NumElements)
	assert.Equal(t, int64(1), chunk.ExtractMinInt(id.Meta))
	assert.Equal(t, int64(3), chunk.ExtractMaxInt(id.Meta))
	assert.False(t, id.Meta.Stats.HasNulls)

	city := chunks.Chunks[chunk.Key{DB: 1, Table: 1, Column: 1}]
	assert.Equal(t, []string{"ny", "sf"}, city.Dict)
	assert.Equal(t, int64(0), chunk.ExtractMinInt(city.Meta))
	assert.Equal(t, int64(1), chunk.ExtractMaxInt(city.Meta))

	fare := chunks.Chunks[chunk.Key{DB: 1, Table: 1, Column: 2}]
	assert.True(t, fare.Meta.Stats.HasNulls)
	assert.Equal(t, 3.25, chunk.ExtractMinFP(fare.Meta))
	assert.Equal(t, 12.5, chunk.ExtractMaxFP(fare.Meta))
	assert.Equal(t, []int64{2}, fare.Nulls)
}

func TestCsvHeaderSkippedPerFile(t *testing.T) {
	memFs := useMemFs(t)
	writeFile(t, memFs, "/data/a.csv", "id,city,fare\n1,ny,1.0\n")
	writeFile(t, memFs, "/data/b.csv", "id,city,fare\n2,sf,2.0\n")

	ft := csvForeignTable("/data", map[string]string{HeaderKey: "TRUE"})
	w := newCsvDataWrapper(1, ft, nil, false)
	chunks, err := w.PopulateChunks(context.Background())
	assert.NoError(t, err)
	id := chunks.Chunks[chunk.Key{DB: 1, Table: 1, Column: 0}]
	assert.Equal(t, uint64(2), id.Meta.NumElements)
}

func TestCsvQuotedFields(t *testing.T) {
	memFs := useMemFs(t)
	writeFile(t, memFs, "/data/trips.csv", "1,\"new, york\",1.5\n2,\"say \"\"hi\"\"\",2.5\n")

	w := newCsvDataWrapper(1, csvForeignTable("/data/trips.csv", nil), nil, false)
	chunks, err := w.PopulateChunks(context.Background())
	assert.NoError(t, err)
	city := chunks.Chunks[chunk.Key{DB: 1, Table: 1, Column: 1}]
	assert.Equal(t, []string{"new, york", `say "hi"`}, city.Dict)
}

func TestCsvCustomDelimiter(t *testing.T) {
	memFs := useMemFs(t)
	writeFile(t, memFs, "/data/trips.csv", "1|ny|1.5\n")

	ft := csvForeignTable("/data/trips.csv", map[string]string{DelimiterKey: "|"})
	w := newCsvDataWrapper(1, ft, nil, false)
	chunks, err := w.PopulateChunks(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), chunks.Chunks[chunk.Key{DB: 1, Table: 1, Column: 0}].Meta.NumElements)
}

func TestCsvRaggedRowFails(t *testing.T) {
	memFs := useMemFs(t)
	writeFile(t, memFs, "/data/trips.csv", "1,ny\n")

	w := newCsvDataWrapper(1, csvForeignTable("/data/trips.csv", nil), nil, false)
	_, err := w.PopulateChunks(context.Background())
	assert.True(t, errs.IsConfig(err))
}

func TestCsvMissingFileFails(t *testing.T) {
	useMemFs(t)
	w := newCsvDataWrapper(1, csvForeignTable("/data/nope.csv", nil), nil, false)
	_, err := w.PopulateChunks(context.Background())
	assert.True(t, errs.IsConfig(err))
}

func TestCsvOptionValidation(t *testing.T) {
	useMemFs(t)
	cases := []map[string]string{
		{DelimiterKey: ",,"},
		{ArrayMarkerKey: "{"},
		{HeaderKey: "MAYBE"},
		{BufferSizeKey: "zero"},
		{BufferSizeKey: "-1"},
		{GeoExplodeCollectionsKey: "TRUE"},
	}
	for _, extra := range cases {
		ft := csvForeignTable("/data/trips.csv", extra)
		w := newCsvDataWrapper(1, ft, nil, false)
		err := w.ValidateTableOptions(ft)
		assert.True(t, errs.IsConfig(err), "%v", extra)
	}
}

func TestCsvArrayColumn(t *testing.T) {
	memFs := useMemFs(t)
	writeFile(t, memFs, "/data/tags.csv", "1,{3,5}\n2,{}\n3,{7}\n")

	ft := csvForeignTable("/data/tags.csv", nil)
	ft.Columns = []catalog.ColumnDescriptor{
		{ID: 0, Name: "id", Type: types.TypeInfo{Type: types.BigInt}},
		{ID: 1, Name: "tags", Type: types.TypeInfo{Type: types.Array, Elem: types.Int}},
	}
	w := newCsvDataWrapper(1, ft, nil, false)
	chunks, err := w.PopulateChunks(context.Background())
	assert.NoError(t, err)

	tags := chunks.Chunks[chunk.Key{DB: 1, Table: 1, Column: 1}]
	assert.Equal(t, []int32{0, 2, 2, 3}, tags.Index)
	assert.Equal(t, int64(3), chunk.ExtractMinInt(tags.Meta))
	assert.Equal(t, int64(7), chunk.ExtractMaxInt(tags.Meta))
}
