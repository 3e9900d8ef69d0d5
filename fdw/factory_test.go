package fdw

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ainilili/colstore/catalog"
	"github.com/ainilili/colstore/errs"
	"github.com/ainilili/colstore/types"
)

func testTableDescriptor() *catalog.TableDescriptor {
	return &catalog.TableDescriptor{
		ID:       7,
		Name:     "trips",
		Database: "nyc",
		Columns: []catalog.ColumnDescriptor{
			{ID: 0, Name: "id", Type: types.TypeInfo{Type: types.BigInt}},
			{ID: 1, Name: "fare", Type: types.TypeInfo{Type: types.Double}},
		},
	}
}

func TestValidateDataWrapperType(t *testing.T) {
	f := NewFactory()
	for _, wt := range SupportedWrapperTypes {
		assert.NoError(t, f.ValidateDataWrapperType(wt))
	}
	err := f.ValidateDataWrapperType("PARQUET")
	assert.True(t, errs.IsConfig(err))
	// Internal types never appear in the user-facing list.
	assert.NotContains(t, err.Error(), InternalCatalog)
	assert.Contains(t, err.Error(), DelimitedText)
	assert.Contains(t, err.Error(), ColumnarArchive)
}

func TestCreateConstructsEverySupportedType(t *testing.T) {
	f := NewFactory()
	f.SetSystemCatalog(&catalog.Catalog{})
	f.SetStagingDir("/staging")
	for _, wt := range SupportedWrapperTypes {
		w, err := f.Create(wt, 1, nil)
		assert.NoError(t, err, wt)
		assert.NotNil(t, w, wt)
	}
}

func TestCreateRejectsUnknownType(t *testing.T) {
	f := NewFactory()
	_, err := f.Create("PARQUET", 1, nil)
	assert.True(t, errs.IsConfig(err))
}

func TestCreateForValidationCachesIdenticalInstance(t *testing.T) {
	f := NewFactory()
	for _, wt := range SupportedWrapperTypes {
		a, err := f.CreateForValidation(wt, nil)
		assert.NoError(t, err, wt)
		b, err := f.CreateForValidation(wt, nil)
		assert.NoError(t, err, wt)
		assert.Same(t, a, b, wt)
	}
}

func TestCreateForValidationS3SelectIsDistinct(t *testing.T) {
	f := NewFactory()
	plain, err := f.CreateForValidation(DelimitedText, nil)
	assert.NoError(t, err)

	table := &catalog.ForeignTable{
		Options: map[string]string{S3AccessTypeKey: S3SelectAccessType},
	}
	s3, err := f.CreateForValidation(DelimitedText, table)
	assert.NoError(t, err)
	assert.NotSame(t, plain, s3)

	again, err := f.CreateForValidation(DelimitedText, table)
	assert.NoError(t, err)
	assert.Same(t, s3, again)
}

func TestCreateForValidationBadAccessType(t *testing.T) {
	f := NewFactory()
	table := &catalog.ForeignTable{
		Options: map[string]string{S3AccessTypeKey: "S3_SOMETHING"},
	}
	_, err := f.CreateForValidation(DelimitedText, table)
	assert.True(t, errs.IsConfig(err))
}

func TestCreateForeignServerProxy(t *testing.T) {
	f := NewFactory()
	params := catalog.NewCopyParams()
	server, err := f.CreateForeignServerProxy(1, 42, "/tmp/trips.csv", params)
	assert.NoError(t, err)
	assert.Equal(t, -1, server.ID)
	assert.Equal(t, 42, server.UserID)
	assert.Equal(t, "import_proxy_server", server.Name)
	assert.Equal(t, DelimitedText, server.WrapperType)
	assert.Equal(t, LocalFileStorageType, server.Options[StorageTypeKey])
}

func TestCreateForeignServerProxyRejections(t *testing.T) {
	f := NewFactory()

	params := catalog.NewCopyParams()
	params.SourceType = catalog.SourceOdbc
	_, err := f.CreateForeignServerProxy(1, 1, "dsn", params)
	assert.EqualError(t, err, "ODBC storage not supported")

	params = catalog.NewCopyParams()
	_, err = f.CreateForeignServerProxy(1, 1, "s3://bucket/trips.csv", params)
	assert.True(t, errs.IsConfig(err))
	assert.Contains(t, err.Error(), "s3://bucket/trips.csv")
}

func TestCreateForeignTableProxyDelimited(t *testing.T) {
	f := NewFactory()
	params := catalog.NewCopyParams()
	params.Delimiter = '|'
	params.HasHeader = catalog.HeaderNo
	server, err := f.CreateForeignServerProxy(1, 1, "/tmp/trips.csv", params)
	assert.NoError(t, err)
	ft, err := f.CreateForeignTableProxy(1, testTableDescriptor(), "/tmp/trips.csv", params, server)
	assert.NoError(t, err)

	get := func(key string) string {
		v, _ := ft.Option(key)
		return v
	}
	assert.Equal(t, "/tmp/trips.csv", get(FilePathKey))
	assert.Equal(t, "|", get(DelimiterKey))
	assert.Equal(t, "\\N", get(NullsKey))
	assert.Equal(t, "FALSE", get(HeaderKey))
	assert.Equal(t, "TRUE", get(QuotedKey))
	assert.Equal(t, "\"", get(QuoteKey))
	assert.Equal(t, "\"", get(EscapeKey))
	assert.Equal(t, "\n", get(LineDelimiterKey))
	assert.Equal(t, ",", get(ArrayDelimiterKey))
	assert.Equal(t, "{}", get(ArrayMarkerKey))
	assert.Equal(t, "FALSE", get(GeoExplodeCollectionsKey))
}

func TestCreateForeignTableProxyHeaderHas(t *testing.T) {
	f := NewFactory()
	params := catalog.NewCopyParams()
	params.HasHeader = catalog.HeaderHas
	server, err := f.CreateForeignServerProxy(1, 1, "/data/in.csv", params)
	assert.NoError(t, err)
	assert.Equal(t, DelimitedText, server.WrapperType)
	ft, err := f.CreateForeignTableProxy(1, testTableDescriptor(), "/data/in.csv", params, server)
	assert.NoError(t, err)

	get := func(key string) string {
		v, _ := ft.Option(key)
		return v
	}
	assert.Equal(t, "/data/in.csv", get(FilePathKey))
	assert.Equal(t, "TRUE", get(HeaderKey))
	assert.Equal(t, "TRUE", get(QuotedKey))
	assert.Equal(t, "\"", get(QuoteKey))
	assert.Equal(t, "\"", get(EscapeKey))
}

func TestCreateForeignTableProxyHeaderAutoDetect(t *testing.T) {
	f := NewFactory()
	params := catalog.NewCopyParams()
	params.HasHeader = catalog.HeaderAutoDetect
	server, err := f.CreateForeignServerProxy(1, 1, "/tmp/trips.csv", params)
	assert.NoError(t, err)
	ft, err := f.CreateForeignTableProxy(1, testTableDescriptor(), "/tmp/trips.csv", params, server)
	assert.NoError(t, err)
	v, _ := ft.Option(HeaderKey)
	assert.Equal(t, "TRUE", v)
}

func TestCreateForeignTableProxyRegexNeedsLineRegex(t *testing.T) {
	f := NewFactory()
	params := catalog.NewCopyParams()
	params.SourceType = catalog.SourceRegexParsedFile
	server, err := f.CreateForeignServerProxy(1, 1, "/tmp/app.log", params)
	assert.NoError(t, err)
	_, err = f.CreateForeignTableProxy(1, testTableDescriptor(), "/tmp/app.log", params, server)
	assert.EqualError(t, err, "Regex parser options must contain a line regex.")
}

func TestCreateForeignTableProxyRegexOptions(t *testing.T) {
	f := NewFactory()
	params := catalog.NewCopyParams()
	params.SourceType = catalog.SourceRegexParsedFile
	params.LineRegex = `(\d+),(\w+)`
	params.LineStartRegex = `^\d`
	server, err := f.CreateForeignServerProxy(1, 1, "/tmp/app.log", params)
	assert.NoError(t, err)
	ft, err := f.CreateForeignTableProxy(1, testTableDescriptor(), "/tmp/app.log", params, server)
	assert.NoError(t, err)
	v, _ := ft.Option(LineRegexKey)
	assert.Equal(t, `(\d+),(\w+)`, v)
	v, _ = ft.Option(LineStartRegexKey)
	assert.Equal(t, `^\d`, v)
}

func TestCreateForeignTableProxyRejectsS3Source(t *testing.T) {
	f := NewFactory()
	params := catalog.NewCopyParams()
	server, err := f.CreateForeignServerProxy(1, 1, "/tmp/trips.csv", params)
	assert.NoError(t, err)
	_, err = f.CreateForeignTableProxy(1, testTableDescriptor(), "s3://bucket/trips.csv", params, server)
	assert.True(t, errs.IsConfig(err))
}

func TestCreateForeignTableProxyRejectsGeoExplode(t *testing.T) {
	f := NewFactory()
	params := catalog.NewCopyParams()
	params.GeoExplodeCollections = true
	server, err := f.CreateForeignServerProxy(1, 1, "/tmp/trips.csv", params)
	assert.NoError(t, err)
	_, err = f.CreateForeignTableProxy(1, testTableDescriptor(), "/tmp/trips.csv", params, server)
	assert.True(t, errs.IsConfig(err))
}

func TestCreateUserMappingProxyIsOptional(t *testing.T) {
	f := NewFactory()
	um, err := f.CreateUserMappingProxyIfApplicable(1, 1, "/tmp/trips.csv", catalog.NewCopyParams())
	assert.NoError(t, err)
	assert.Nil(t, um)
}
