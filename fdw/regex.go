package fdw

import (
	"bufio"
	"context"
	"io"
	"os"
	"regexp"

	"github.com/ainilili/colstore/catalog"
	"github.com/ainilili/colstore/consts"
	"github.com/ainilili/colstore/errs"
	"github.com/ainilili/colstore/file"
	"github.com/ainilili/colstore/loader"
)

type regexOptions struct {
	filePath       string
	lineRegex      *regexp.Regexp
	lineStartRegex *regexp.Regexp
	nulls          string
	paths          pathOptions
}

func parseRegexOptions(t *catalog.ForeignTable) (*regexOptions, error) {
	opts := &regexOptions{
		nulls: "\\N",
		paths: parsePathOptions(t),
	}
	path, ok := t.Option(FilePathKey)
	if !ok {
		return nil, errs.Configf("foreign table \"%s\" is missing the %s option", t.Name, FilePathKey)
	}
	opts.filePath = path

	lineRegex, ok := t.Option(LineRegexKey)
	if !ok || lineRegex == "" {
		return nil, errs.Configf("Regex parser options must contain a line regex.")
	}
	re, err := regexp.Compile(lineRegex)
	if err != nil {
		return nil, errs.Configf("invalid %s \"%s\": %v", LineRegexKey, lineRegex, err)
	}
	opts.lineRegex = re

	if v, ok := t.Option(LineStartRegexKey); ok && v != "" {
		re, err := regexp.Compile(v)
		if err != nil {
			return nil, errs.Configf("invalid %s \"%s\": %v", LineStartRegexKey, v, err)
		}
		opts.lineStartRegex = re
	}
	if v, ok := t.Option(NullsKey); ok {
		opts.nulls = v
	}
	return opts, nil
}

// RegexParserDataWrapper reads text sources where each record is
// destructured by the capture groups of a line regex.
type RegexParserDataWrapper struct {
	dbID         int
	table        *catalog.ForeignTable
	userMapping  *catalog.UserMapping
	disableCache bool
}

func newRegexDataWrapper(dbID int, table *catalog.ForeignTable, um *catalog.UserMapping, disableCache bool) *RegexParserDataWrapper {
	return &RegexParserDataWrapper{dbID: dbID, table: table, userMapping: um, disableCache: disableCache}
}

func newRegexValidationWrapper() *RegexParserDataWrapper {
	return &RegexParserDataWrapper{}
}

func (w *RegexParserDataWrapper) ValidateServerOptions(server *catalog.ForeignServer) error {
	return validateLocalStorage(server)
}

func (w *RegexParserDataWrapper) ValidateTableOptions(table *catalog.ForeignTable) error {
	opts, err := parseRegexOptions(table)
	if err != nil {
		return err
	}
	if groups := opts.lineRegex.NumSubexp(); groups != len(table.Columns) {
		return errs.Configf("line regex has %d capture groups, table \"%s\" has %d columns",
			groups, table.Name, len(table.Columns))
	}
	return nil
}

func (w *RegexParserDataWrapper) PopulateChunks(ctx context.Context) (*loader.InsertChunks, error) {
	if w.table == nil {
		return nil, errs.Configf("regex-parsed-text wrapper is not bound to a table")
	}
	if err := w.ValidateTableOptions(w.table); err != nil {
		return nil, err
	}
	opts, err := parseRegexOptions(w.table)
	if err != nil {
		return nil, err
	}
	paths, err := expandPaths(opts.filePath, opts.paths)
	if err != nil {
		return nil, err
	}
	src := &regexSource{ctx: ctx, paths: paths, opts: opts}
	defer src.close()
	return populateFromRows(w.dbID, w.table, src, 0, opts.nulls, consts.COMMA, '{', '}')
}

// regexSource streams logical records across the ordered file list.
// With a line-start regex, lines that do not open a new record are
// continuations of the previous one.
type regexSource struct {
	ctx     context.Context
	paths   []string
	opts    *regexOptions
	f       *file.File
	scanner *bufio.Scanner
	record  string
	haveRec bool
	next    int
	line    int
}

func (s *regexSource) Next() ([]string, error) {
	for {
		if err := s.ctx.Err(); err != nil {
			return nil, err
		}
		if s.scanner == nil {
			if s.next >= len(s.paths) {
				if s.haveRec {
					return s.emit()
				}
				return nil, io.EOF
			}
			f, err := file.New(s.paths[s.next], os.O_RDONLY)
			if err != nil {
				return nil, err
			}
			s.next++
			s.f = f
			s.scanner = bufio.NewScanner(f)
			s.scanner.Buffer(make([]byte, consts.FileBufferSize), 16*consts.M)
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, err
			}
			s.close()
			continue
		}
		s.line++
		line := s.scanner.Text()
		if s.opts.lineStartRegex == nil {
			s.record = line
			s.haveRec = true
			return s.emit()
		}
		if s.opts.lineStartRegex.MatchString(line) {
			if s.haveRec {
				prev, err := s.emit()
				s.record = line
				s.haveRec = true
				return prev, err
			}
			s.record = line
			s.haveRec = true
			continue
		}
		if s.haveRec {
			s.record += "\n" + line
		}
	}
}

func (s *regexSource) emit() ([]string, error) {
	record := s.record
	s.record = ""
	s.haveRec = false
	m := s.opts.lineRegex.FindStringSubmatch(record)
	if m == nil {
		return nil, errs.Configf("line %d does not match the line regex", s.line)
	}
	return m[1:], nil
}

func (s *regexSource) close() {
	if s.f != nil {
		_ = s.f.Close()
		s.f = nil
	}
	s.scanner = nil
}
