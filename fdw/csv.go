package fdw

import (
	"context"
	"io"
	"os"
	"strconv"

	"github.com/ainilili/colstore/catalog"
	"github.com/ainilili/colstore/consts"
	"github.com/ainilili/colstore/errs"
	"github.com/ainilili/colstore/file"
	"github.com/ainilili/colstore/loader"
)

type csvOptions struct {
	filePath   string
	delimiter  byte
	quote      byte
	escape     byte
	lineDelim  byte
	arrayDelim byte
	arrayBegin byte
	arrayEnd   byte
	nulls      string
	header     bool
	quoted     bool
	lonlat     bool

	geoAssignRenderGroups bool
	geoExplodeCollections bool

	bufferSize int
	paths      pathOptions
}

func parseCsvOptions(t *catalog.ForeignTable) (*csvOptions, error) {
	opts := &csvOptions{
		delimiter:             consts.COMMA,
		quote:                 '"',
		escape:                '"',
		lineDelim:             consts.LF,
		arrayDelim:            consts.COMMA,
		arrayBegin:            '{',
		arrayEnd:              '}',
		nulls:                 "\\N",
		header:                true,
		quoted:                true,
		lonlat:                true,
		geoAssignRenderGroups: true,
		bufferSize:            consts.FileBufferSize,
		paths:                 parsePathOptions(t),
	}
	path, ok := t.Option(FilePathKey)
	if !ok {
		return nil, errs.Configf("foreign table \"%s\" is missing the %s option", t.Name, FilePathKey)
	}
	opts.filePath = path

	singleChar := func(key string, dst *byte) error {
		v, ok := t.Option(key)
		if !ok {
			return nil
		}
		if len(v) != 1 {
			return errs.Configf("%s option value \"%s\" must be a single character", key, v)
		}
		*dst = v[0]
		return nil
	}
	for key, dst := range map[string]*byte{
		DelimiterKey:      &opts.delimiter,
		QuoteKey:          &opts.quote,
		EscapeKey:         &opts.escape,
		LineDelimiterKey:  &opts.lineDelim,
		ArrayDelimiterKey: &opts.arrayDelim,
	} {
		if err := singleChar(key, dst); err != nil {
			return nil, err
		}
	}
	if v, ok := t.Option(ArrayMarkerKey); ok {
		if len(v) != 2 {
			return nil, errs.Configf("%s option value \"%s\" must be exactly two characters", ArrayMarkerKey, v)
		}
		opts.arrayBegin, opts.arrayEnd = v[0], v[1]
	}
	if v, ok := t.Option(NullsKey); ok {
		opts.nulls = v
	}

	boolOpt := func(key string, dst *bool) error {
		v, ok := t.Option(key)
		if !ok {
			return nil
		}
		switch v {
		case "TRUE":
			*dst = true
		case "FALSE":
			*dst = false
		default:
			return errs.Configf("%s option value \"%s\" must be TRUE or FALSE", key, v)
		}
		return nil
	}
	for key, dst := range map[string]*bool{
		HeaderKey:                &opts.header,
		QuotedKey:                &opts.quoted,
		LonlatKey:                &opts.lonlat,
		GeoAssignRenderGroupsKey: &opts.geoAssignRenderGroups,
		GeoExplodeCollectionsKey: &opts.geoExplodeCollections,
	} {
		if err := boolOpt(key, dst); err != nil {
			return nil, err
		}
	}
	if opts.geoExplodeCollections {
		return nil, errs.Configf("geo_explode_collections is not yet supported for delimited-text import")
	}

	if v, ok := t.Option(BufferSizeKey); ok {
		size, err := strconv.Atoi(v)
		if err != nil || size <= 0 {
			return nil, errs.Configf("%s option value \"%s\" must be a positive integer", BufferSizeKey, v)
		}
		opts.bufferSize = size
	}
	return opts, nil
}

// CsvDataWrapper reads delimited-text sources into column chunks.
type CsvDataWrapper struct {
	dbID         int
	table        *catalog.ForeignTable
	userMapping  *catalog.UserMapping
	disableCache bool
	s3Select     bool
}

func newCsvDataWrapper(dbID int, table *catalog.ForeignTable, um *catalog.UserMapping, disableCache bool) *CsvDataWrapper {
	return &CsvDataWrapper{dbID: dbID, table: table, userMapping: um, disableCache: disableCache}
}

func newCsvValidationWrapper(s3Select bool) *CsvDataWrapper {
	return &CsvDataWrapper{s3Select: s3Select}
}

func (w *CsvDataWrapper) ValidateServerOptions(server *catalog.ForeignServer) error {
	return validateLocalStorage(server)
}

func (w *CsvDataWrapper) ValidateTableOptions(table *catalog.ForeignTable) error {
	_, err := parseCsvOptions(table)
	return err
}

func (w *CsvDataWrapper) PopulateChunks(ctx context.Context) (*loader.InsertChunks, error) {
	if w.table == nil {
		return nil, errs.Configf("delimited-text wrapper is not bound to a table")
	}
	opts, err := parseCsvOptions(w.table)
	if err != nil {
		return nil, err
	}
	paths, err := expandPaths(opts.filePath, opts.paths)
	if err != nil {
		return nil, err
	}
	src := &csvFilesSource{ctx: ctx, paths: paths, opts: opts}
	defer src.close()
	return populateFromRows(w.dbID, w.table, src, 0, opts.nulls, opts.arrayDelim, opts.arrayBegin, opts.arrayEnd)
}

// csvFilesSource streams rows across the ordered file list, skipping
// one header row per file when configured.
type csvFilesSource struct {
	ctx     context.Context
	paths   []string
	opts    *csvOptions
	scanner *csvScanner
	next    int
}

func (s *csvFilesSource) Next() ([]string, error) {
	for {
		if err := s.ctx.Err(); err != nil {
			return nil, err
		}
		if s.scanner == nil {
			if s.next >= len(s.paths) {
				return nil, io.EOF
			}
			f, err := file.New(s.paths[s.next], os.O_RDONLY)
			if err != nil {
				return nil, err
			}
			s.next++
			s.scanner = newCsvScanner(f, s.opts)
			if s.opts.header {
				if _, err := s.scanner.Next(); err != nil && err != io.EOF {
					s.close()
					return nil, err
				}
			}
		}
		fields, err := s.scanner.Next()
		if err == io.EOF {
			s.close()
			continue
		}
		return fields, err
	}
}

func (s *csvFilesSource) close() {
	if s.scanner != nil {
		_ = s.scanner.f.Close()
		s.scanner = nil
	}
}

// csvScanner is a buffered byte-level row scanner honoring the
// delimiter, quoting and escape options.
type csvScanner struct {
	f       *file.File
	buf     []byte
	pos     int
	cap     int
	pending int
	eof     bool
	opts    *csvOptions
	line    int
}

func newCsvScanner(f *file.File, opts *csvOptions) *csvScanner {
	return &csvScanner{
		f:       f,
		buf:     make([]byte, opts.bufferSize),
		pending: -1,
		opts:    opts,
	}
}

func (s *csvScanner) readByte() (byte, error) {
	if s.pending >= 0 {
		b := byte(s.pending)
		s.pending = -1
		return b, nil
	}
	if s.pos >= s.cap {
		if s.eof {
			return 0, io.EOF
		}
		n, err := s.f.Read(s.buf)
		if n == 0 {
			s.eof = true
			if err != nil && err != io.EOF {
				return 0, err
			}
			return 0, io.EOF
		}
		s.pos = 0
		s.cap = n
	}
	b := s.buf[s.pos]
	s.pos++
	return b, nil
}

func (s *csvScanner) pushback(b byte) {
	s.pending = int(b)
}

// Next returns the fields of the next row, or io.EOF after the last
// row.
func (s *csvScanner) Next() ([]string, error) {
	var fields []string
	var cur []byte
	inQuotes := false
	any := false
	for {
		b, err := s.readByte()
		if err == io.EOF {
			if !any {
				return nil, io.EOF
			}
			fields = append(fields, string(cur))
			return fields, nil
		}
		if err != nil {
			return nil, err
		}
		any = true
		if inQuotes {
			if b == s.opts.escape {
				nb, err2 := s.readByte()
				if err2 == nil && nb == s.opts.quote {
					cur = append(cur, s.opts.quote)
					continue
				}
				if err2 == nil {
					s.pushback(nb)
				}
				if b == s.opts.quote {
					inQuotes = false
					continue
				}
				cur = append(cur, b)
				continue
			}
			if b == s.opts.quote {
				inQuotes = false
				continue
			}
			cur = append(cur, b)
			continue
		}
		switch b {
		case s.opts.delimiter:
			fields = append(fields, string(cur))
			cur = nil
		case s.opts.lineDelim:
			s.line++
			fields = append(fields, string(cur))
			return fields, nil
		default:
			if s.opts.quoted && b == s.opts.quote && len(cur) == 0 {
				inQuotes = true
				continue
			}
			cur = append(cur, b)
		}
	}
}
