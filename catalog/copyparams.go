package catalog

type SourceType int

const (
	SourceDelimitedFile SourceType = iota
	SourceRegexParsedFile
	SourceArchiveFile
	SourceOdbc
)

type ImportHeaderRow int

const (
	HeaderAutoDetect ImportHeaderRow = iota
	HeaderNo
	HeaderHas
)

// CopyParams is the parsed option set of a COPY FROM statement.
type CopyParams struct {
	SourceType SourceType

	Delimiter     byte
	NullStr       string
	HasHeader     ImportHeaderRow
	Quoted        bool
	Quote         byte
	Escape        byte
	LineDelimiter byte
	ArrayDelim    byte
	ArrayBegin    byte
	ArrayEnd      byte
	Lonlat        bool

	GeoAssignRenderGroups bool
	GeoExplodeCollections bool

	BufferSize int

	LineRegex      string
	LineStartRegex string

	RegexPathFilter *string
	FileSortOrderBy *string
	FileSortRegex   *string
}

// NewCopyParams returns the delimited-file defaults.
func NewCopyParams() CopyParams {
	return CopyParams{
		SourceType:            SourceDelimitedFile,
		Delimiter:             ',',
		NullStr:               "\\N",
		HasHeader:             HeaderAutoDetect,
		Quoted:                true,
		Quote:                 '"',
		Escape:                '"',
		LineDelimiter:         '\n',
		ArrayDelim:            ',',
		ArrayBegin:            '{',
		ArrayEnd:              '}',
		Lonlat:                true,
		GeoAssignRenderGroups: true,
		BufferSize:            8 * 1024 * 1024,
	}
}
