// Package fdw implements the foreign-data-wrapper machinery: the
// wrapper-type registry, format-specific readers that turn external
// sources into native column chunks with statistics, and the factory
// that constructs, validates and caches them.
package fdw

import (
	"context"

	"github.com/ainilili/colstore/catalog"
	"github.com/ainilili/colstore/errs"
	"github.com/ainilili/colstore/loader"
)

// Wrapper-type identifiers. The string form appears in DDL and in the
// catalog; everything else dispatches on the enum.
const (
	DelimitedText        = "DELIMITED_TEXT"
	RegexParsedText      = "REGEX_PARSED_TEXT"
	ColumnarArchive      = "COLUMNAR_ARCHIVE"
	InternalCatalog      = "INTERNAL_CATALOG"
	InternalMemoryStats  = "INTERNAL_MEMORY_STATS"
	InternalStorageStats = "INTERNAL_STORAGE_STATS"
)

type WrapperType int

const (
	WrapperDelimitedText WrapperType = iota
	WrapperRegexParsedText
	WrapperColumnarArchive
	WrapperInternalCatalog
	WrapperInternalMemoryStats
	WrapperInternalStorageStats
)

var wrapperTypeNames = map[WrapperType]string{
	WrapperDelimitedText:        DelimitedText,
	WrapperRegexParsedText:      RegexParsedText,
	WrapperColumnarArchive:      ColumnarArchive,
	WrapperInternalCatalog:      InternalCatalog,
	WrapperInternalMemoryStats:  InternalMemoryStats,
	WrapperInternalStorageStats: InternalStorageStats,
}

func (w WrapperType) String() string {
	return wrapperTypeNames[w]
}

// SupportedWrapperTypes is the full registry, internal types included.
var SupportedWrapperTypes = []string{
	DelimitedText,
	RegexParsedText,
	ColumnarArchive,
	InternalCatalog,
	InternalMemoryStats,
	InternalStorageStats,
}

// InternalWrapperTypes are dispatchable internally but not creatable
// through DDL and excluded from user-facing error text.
var InternalWrapperTypes = []string{
	InternalCatalog,
	InternalMemoryStats,
	InternalStorageStats,
}

func ParseWrapperType(name string) (WrapperType, bool) {
	for wt, s := range wrapperTypeNames {
		if s == name {
			return wt, true
		}
	}
	return 0, false
}

func IsInternalWrapperType(name string) bool {
	for _, t := range InternalWrapperTypes {
		if t == name {
			return true
		}
	}
	return false
}

// Foreign table/server option keys consumed by the wrappers.
const (
	FilePathKey        = "FILE_PATH"
	StorageTypeKey     = "STORAGE_TYPE"
	RegexPathFilterKey = "REGEX_PATH_FILTER"
	FileSortOrderByKey = "FILE_SORT_ORDER_BY"
	FileSortRegexKey   = "FILE_SORT_REGEX"

	LineRegexKey      = "LINE_REGEX"
	LineStartRegexKey = "LINE_START_REGEX"

	DelimiterKey             = "DELIMITER"
	NullsKey                 = "NULLS"
	HeaderKey                = "HEADER"
	QuotedKey                = "QUOTED"
	QuoteKey                 = "QUOTE"
	EscapeKey                = "ESCAPE"
	LineDelimiterKey         = "LINE_DELIMITER"
	ArrayDelimiterKey        = "ARRAY_DELIMITER"
	ArrayMarkerKey           = "ARRAY_MARKER"
	LonlatKey                = "LONLAT"
	GeoAssignRenderGroupsKey = "GEO_ASSIGN_RENDER_GROUPS"
	GeoExplodeCollectionsKey = "GEO_EXPLODE_COLLECTIONS"
	BufferSizeKey            = "BUFFER_SIZE"

	S3AccessTypeKey = "S3_ACCESS_TYPE"
)

const (
	LocalFileStorageType = "LOCAL_FILE"
	S3SelectAccessType   = "S3_SELECT"
	S3DirectAccessType   = "S3_DIRECT"
)

// DataWrapper is the capability every format-specific reader
// implements. Schema-less validation instances support only the
// Validate methods; PopulateChunks requires a bound table.
type DataWrapper interface {
	ValidateServerOptions(server *catalog.ForeignServer) error
	ValidateTableOptions(table *catalog.ForeignTable) error
	PopulateChunks(ctx context.Context) (*loader.InsertChunks, error)
}

func validateLocalStorage(server *catalog.ForeignServer) error {
	if server == nil {
		return nil
	}
	if v, ok := server.Options[StorageTypeKey]; ok && v != LocalFileStorageType {
		return errs.Configf("storage type \"%s\" is not supported", v)
	}
	return nil
}

func boolToOption(value bool) string {
	if value {
		return "TRUE"
	}
	return "FALSE"
}
