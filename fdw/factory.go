package fdw

import (
	"strconv"
	"strings"
	"sync"

	"github.com/ainilili/colstore/catalog"
	"github.com/ainilili/colstore/errs"
	"github.com/ainilili/colstore/log"
)

// s3SelectValidationKey keys the delimited-text validation wrapper
// variant used for tables with the object-storage-select capability;
// its validation rules differ from the plain local-file wrapper.
const s3SelectValidationKey = "CSV_S3_SELECT"

const importProxyServerName = "import_proxy_server"

// Factory constructs, validates and caches data wrappers, and
// synthesizes the transient server/table descriptors that let one-shot
// file imports reuse the foreign-table machinery.
type Factory struct {
	mu                 sync.Mutex
	validationWrappers map[string]DataWrapper

	sysCatalog *catalog.Catalog
	stagingDir string
}

func NewFactory() *Factory {
	return &Factory{
		validationWrappers: map[string]DataWrapper{},
	}
}

// SetSystemCatalog wires the catalog exposed by the internal-catalog
// virtual table wrapper.
func (f *Factory) SetSystemCatalog(cat *catalog.Catalog) {
	f.sysCatalog = cat
}

// SetStagingDir wires the directory inspected by the storage-stats
// virtual table wrapper.
func (f *Factory) SetStagingDir(dir string) {
	f.stagingDir = dir
}

// ValidateDataWrapperType fails with a configuration error listing
// only the non-internal wrapper types.
func (f *Factory) ValidateDataWrapperType(wrapperType string) error {
	for _, t := range SupportedWrapperTypes {
		if t == wrapperType {
			return nil
		}
	}
	userFacing := make([]string, 0, len(SupportedWrapperTypes))
	for _, t := range SupportedWrapperTypes {
		if !IsInternalWrapperType(t) {
			userFacing = append(userFacing, t)
		}
	}
	return errs.Configf("Invalid data wrapper type \"%s\". "+
		"Data wrapper type must be one of the following: %s.",
		wrapperType, strings.Join(userFacing, ", "))
}

// Create constructs a live wrapper bound to a persistent foreign
// table.
func (f *Factory) Create(wrapperType string, dbID int, table *catalog.ForeignTable) (DataWrapper, error) {
	wt, ok := ParseWrapperType(wrapperType)
	if !ok {
		// Registry validation should have run first; treat an unknown
		// string as a recoverable double-check failure.
		return nil, errs.Configf("Unsupported data wrapper \"%s\"", wrapperType)
	}
	switch wt {
	case WrapperDelimitedText:
		s3Select, err := validateAndGetIsS3Select(table)
		if err != nil {
			return nil, err
		}
		if s3Select {
			log.Panicf("object-storage select is not implemented for the %s wrapper", DelimitedText)
		}
		return newCsvDataWrapper(dbID, table, nil, false), nil
	case WrapperRegexParsedText:
		return newRegexDataWrapper(dbID, table, nil, false), nil
	case WrapperColumnarArchive:
		return newArchiveDataWrapper(dbID, table, nil), nil
	case WrapperInternalCatalog:
		return newInternalCatalogWrapper(dbID, table, f.sysCatalog), nil
	case WrapperInternalMemoryStats:
		return newInternalMemoryStatsWrapper(dbID, table), nil
	case WrapperInternalStorageStats:
		return newInternalStorageStatsWrapper(dbID, table, f.stagingDir), nil
	}
	return nil, errs.Configf("Unsupported data wrapper \"%s\"", wrapperType)
}

// CreateForValidation returns a cached schema-less wrapper used purely
// to validate DDL/options. Repeated calls with the same effective key
// return the identical instance. A delimited-text table with the
// object-storage-select capability keys a distinct variant.
func (f *Factory) CreateForValidation(wrapperType string, table *catalog.ForeignTable) (DataWrapper, error) {
	key := wrapperType
	s3Select := false
	if table != nil && wrapperType == DelimitedText {
		var err error
		s3Select, err = validateAndGetIsS3Select(table)
		if err != nil {
			return nil, err
		}
		if s3Select {
			key = s3SelectValidationKey
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if w, ok := f.validationWrappers[key]; ok {
		return w, nil
	}

	var w DataWrapper
	wt, ok := ParseWrapperType(wrapperType)
	if !ok {
		log.Panicf("validation requested for unknown data wrapper \"%s\"", wrapperType)
	}
	switch wt {
	case WrapperDelimitedText:
		w = newCsvValidationWrapper(s3Select)
	case WrapperRegexParsedText:
		w = newRegexValidationWrapper()
	case WrapperColumnarArchive:
		w = newArchiveValidationWrapper()
	case WrapperInternalCatalog:
		w = newInternalCatalogWrapper(0, nil, f.sysCatalog)
	case WrapperInternalMemoryStats:
		w = newInternalMemoryStatsWrapper(0, nil)
	case WrapperInternalStorageStats:
		w = newInternalStorageStatsWrapper(0, nil, f.stagingDir)
	default:
		log.Panicf("validation requested for unknown data wrapper \"%s\"", wrapperType)
	}
	f.validationWrappers[key] = w
	return w, nil
}

// CreateForGeneralImport constructs a cache-disabled, single-use
// wrapper bound to a transient table for COPY FROM imports.
func (f *Factory) CreateForGeneralImport(wrapperType string, dbID int, table *catalog.ForeignTable, userMapping *catalog.UserMapping) DataWrapper {
	wt, ok := ParseWrapperType(wrapperType)
	if !ok || IsInternalWrapperType(wrapperType) {
		log.Panicf("general import requested for data wrapper \"%s\"", wrapperType)
	}
	switch wt {
	case WrapperDelimitedText:
		return newCsvDataWrapper(dbID, table, userMapping, true)
	case WrapperRegexParsedText:
		return newRegexDataWrapper(dbID, table, userMapping, true)
	case WrapperColumnarArchive:
		return newArchiveDataWrapper(dbID, table, userMapping)
	}
	log.Panicf("general import requested for data wrapper \"%s\"", wrapperType)
	return nil
}

// CreateForImport constructs the decoupled parse/stage/commit importer
// only archive-columnar formats support.
func (f *Factory) CreateForImport(wrapperType string, dbID int, table *catalog.ForeignTable, userMapping *catalog.UserMapping) *ArchiveImporter {
	if wrapperType != ColumnarArchive {
		log.Panicf("decoupled import is only supported for the %s wrapper, got \"%s\"",
			ColumnarArchive, wrapperType)
	}
	return newArchiveImporter(dbID, table, userMapping)
}

// CreateUserMappingProxyIfApplicable is the extension point for
// per-user credential mapping. No supported source needs one; callers
// treat a nil result as a valid, common case.
func (f *Factory) CreateUserMappingProxyIfApplicable(dbID, userID int, filePath string, copyParams catalog.CopyParams) (*catalog.UserMapping, error) {
	return nil, nil
}

// CreateForeignServerProxy builds the transient server descriptor for
// a one-shot file import.
func (f *Factory) CreateForeignServerProxy(dbID, userID int, filePath string, copyParams catalog.CopyParams) (*catalog.ForeignServer, error) {
	server := &catalog.ForeignServer{
		ID:      -1,
		UserID:  userID,
		Name:    importProxyServerName,
		Options: map[string]string{},
	}

	switch copyParams.SourceType {
	case catalog.SourceDelimitedFile:
		server.WrapperType = DelimitedText
	case catalog.SourceRegexParsedFile:
		server.WrapperType = RegexParsedText
	case catalog.SourceArchiveFile:
		server.WrapperType = ColumnarArchive
	case catalog.SourceOdbc:
		return nil, errs.Configf("ODBC storage not supported")
	default:
		log.Panicf("unknown copy source type %d", copyParams.SourceType)
	}

	if isS3URI(filePath) {
		return nil, errs.Configf("remote object storage not supported for \"%s\"", filePath)
	}
	server.Options[StorageTypeKey] = LocalFileStorageType
	return server, nil
}

// CreateForeignTableProxy derives a transient foreign table from an
// existing table descriptor plus import parameters.
func (f *Factory) CreateForeignTableProxy(dbID int, table *catalog.TableDescriptor, copyFromSource string, copyParams catalog.CopyParams, server *catalog.ForeignServer) (*catalog.ForeignTable, error) {
	if err := validateSourceType(copyParams); err != nil {
		return nil, err
	}
	if copyParams.SourceType == catalog.SourceRegexParsedFile && copyParams.LineRegex == "" {
		return nil, errs.Configf("Regex parser options must contain a line regex.")
	}
	if server == nil {
		log.Panicf("foreign table proxy for %s.%s requested without a server", table.Database, table.Name)
	}

	ft := &catalog.ForeignTable{
		TableDescriptor: *table,
		Server:          server,
		Options:         map[string]string{},
	}

	if copyParams.RegexPathFilter != nil {
		ft.Options[RegexPathFilterKey] = *copyParams.RegexPathFilter
	}
	if copyParams.FileSortOrderBy != nil {
		ft.Options[FileSortOrderByKey] = *copyParams.FileSortOrderBy
	}
	if copyParams.FileSortRegex != nil {
		ft.Options[FileSortRegexKey] = *copyParams.FileSortRegex
	}

	if copyParams.SourceType == catalog.SourceRegexParsedFile {
		ft.Options[LineRegexKey] = copyParams.LineRegex
		if copyParams.LineStartRegex != "" {
			ft.Options[LineStartRegexKey] = copyParams.LineStartRegex
		}
	}

	if copyParams.SourceType == catalog.SourceOdbc {
		return nil, errs.Configf("ODBC storage not supported")
	} else if isS3URI(copyFromSource) {
		return nil, errs.Configf("remote object storage not supported for \"%s\"", copyFromSource)
	}
	ft.Options[FilePathKey] = copyFromSource

	if copyParams.SourceType == catalog.SourceDelimitedFile {
		ft.Options[DelimiterKey] = string(copyParams.Delimiter)
		ft.Options[NullsKey] = copyParams.NullStr
		switch copyParams.HasHeader {
		case catalog.HeaderNo:
			ft.Options[HeaderKey] = "FALSE"
		case catalog.HeaderHas, catalog.HeaderAutoDetect:
			ft.Options[HeaderKey] = "TRUE"
		default:
			log.Panicf("unknown header mode %d", copyParams.HasHeader)
		}
		ft.Options[QuotedKey] = boolToOption(copyParams.Quoted)
		ft.Options[QuoteKey] = string(copyParams.Quote)
		ft.Options[EscapeKey] = string(copyParams.Escape)
		ft.Options[LineDelimiterKey] = string(copyParams.LineDelimiter)
		ft.Options[ArrayDelimiterKey] = string(copyParams.ArrayDelim)
		ft.Options[ArrayMarkerKey] = string([]byte{copyParams.ArrayBegin, copyParams.ArrayEnd})
		ft.Options[LonlatKey] = boolToOption(copyParams.Lonlat)
		ft.Options[GeoAssignRenderGroupsKey] = boolToOption(copyParams.GeoAssignRenderGroups)
		if copyParams.GeoExplodeCollections {
			return nil, errs.Configf("geo_explode_collections is not yet supported for delimited-text import")
		}
		ft.Options[GeoExplodeCollectionsKey] = boolToOption(copyParams.GeoExplodeCollections)
		ft.Options[BufferSizeKey] = strconv.Itoa(copyParams.BufferSize)
	}

	if err := ft.InitializeOptions(); err != nil {
		return nil, err
	}
	return ft, nil
}

func validateSourceType(copyParams catalog.CopyParams) error {
	switch copyParams.SourceType {
	case catalog.SourceDelimitedFile, catalog.SourceRegexParsedFile,
		catalog.SourceArchiveFile, catalog.SourceOdbc:
		return nil
	}
	log.Panicf("unknown copy source type %d", copyParams.SourceType)
	return nil
}

func isS3URI(filePath string) bool {
	return strings.HasPrefix(filePath, "s3://")
}

// validateAndGetIsS3Select reports whether the table requests the
// object-storage-select capability of the delimited-text wrapper.
func validateAndGetIsS3Select(table *catalog.ForeignTable) (bool, error) {
	if table == nil {
		return false, nil
	}
	v, ok := table.Option(S3AccessTypeKey)
	if !ok {
		return false, nil
	}
	switch v {
	case S3SelectAccessType:
		return true, nil
	case S3DirectAccessType:
		return false, nil
	}
	return false, errs.Configf("Invalid %s option value \"%s\". Value must be one of: %s, %s.",
		S3AccessTypeKey, v, S3SelectAccessType, S3DirectAccessType)
}
