// Package importer drives bulk loads: it discovers table sources under
// a data directory, synthesizes the transient foreign-table descriptors
// for each one, and routes the populated chunks through the insert
// loader with checkpoint-or-rollback semantics.
package importer

import (
	"context"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/pingcap/errors"
	"github.com/spf13/afero"

	"github.com/ainilili/colstore/catalog"
	"github.com/ainilili/colstore/consts"
	"github.com/ainilili/colstore/fdw"
	"github.com/ainilili/colstore/file"
	"github.com/ainilili/colstore/loader"
	"github.com/ainilili/colstore/log"
	"github.com/ainilili/colstore/util"
)

// TableSource is one discovered table: its parsed schema plus the data
// files feeding it, possibly from several source directories.
type TableSource struct {
	DBID       int
	Table      *catalog.TableDescriptor
	DataPaths  []string
	SourceType catalog.SourceType
}

// DiscoverTables walks dataPath expecting the layout
// <source>/<database>/<table>.sql next to the table's data files, and
// returns the discovered sources plus the catalog they imply. The same
// table appearing under several sources contributes all its data files
// to one entry.
func DiscoverTables(dataPath string) ([]*TableSource, *catalog.Catalog, error) {
	sourceDirs, err := afero.ReadDir(file.Fs(), dataPath)
	if err != nil {
		return nil, nil, errors.Annotatef(err, "read data path %s", dataPath)
	}
	cat := &catalog.Catalog{}
	dbIDs := map[string]int{}
	tableMap := map[string]*TableSource{}
	var sources []*TableSource
	tableID := 1
	for _, sourceDir := range sourceDirs {
		if !sourceDir.IsDir() {
			continue
		}
		dbDirs, err := afero.ReadDir(file.Fs(), util.AssemblePath(dataPath, sourceDir.Name()))
		if err != nil {
			return nil, nil, err
		}
		for _, dbDir := range dbDirs {
			if !dbDir.IsDir() {
				continue
			}
			dbName := util.ParseName(dbDir.Name())
			dbID, ok := dbIDs[dbName]
			if !ok {
				dbID = len(cat.Databases) + 1
				dbIDs[dbName] = dbID
				cat.Databases = append(cat.Databases, catalog.DatabaseDescriptor{ID: dbID, Name: dbName})
			}
			tableFiles, err := afero.ReadDir(file.Fs(), util.AssemblePath(dataPath, sourceDir.Name(), dbDir.Name()))
			if err != nil {
				return nil, nil, err
			}
			for _, tf := range tableFiles {
				p := util.AssemblePath(dataPath, sourceDir.Name(), dbDir.Name(), tf.Name())
				sourceType, ok := sourceTypeOf(tf.Name())
				if !ok {
					continue
				}
				tableName := util.ParseName(tf.Name())
				key := dbName + ":" + tableName
				ts, seen := tableMap[key]
				if !seen {
					schemaPath := p[:strings.LastIndex(p, ".")] + ".sql"
					td, err := readSchema(schemaPath)
					if err != nil {
						return nil, nil, errors.Annotatef(err, "schema for %s.%s", dbName, tableName)
					}
					td.ID = tableID
					td.Name = tableName
					td.Database = dbName
					tableID++
					ts = &TableSource{DBID: dbID, Table: td, SourceType: sourceType}
					tableMap[key] = ts
					sources = append(sources, ts)
					for i := range cat.Databases {
						if cat.Databases[i].ID == dbID {
							cat.Databases[i].Tables = append(cat.Databases[i].Tables, *td)
						}
					}
				}
				ts.DataPaths = append(ts.DataPaths, p)
			}
		}
	}
	for _, ts := range sources {
		sort.Strings(ts.DataPaths)
	}
	return sources, cat, nil
}

func sourceTypeOf(name string) (catalog.SourceType, bool) {
	switch {
	case strings.HasSuffix(name, ".csv"):
		return catalog.SourceDelimitedFile, true
	case strings.HasSuffix(name, ".parquet"):
		return catalog.SourceArchiveFile, true
	}
	return 0, false
}

func readSchema(path string) (*catalog.TableDescriptor, error) {
	f, err := file.New(path, os.O_RDONLY)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	bs, err := f.ReadAll()
	if err != nil && err != io.EOF {
		return nil, err
	}
	return catalog.ParseTableSchema(string(bs))
}

// Importer runs COPY FROM style loads through the wrapper factory and
// the insert loader.
type Importer struct {
	factory *fdw.Factory
	ldr     *loader.InsertDataLoader
	conn    loader.DistributedConnector
}

func New(factory *fdw.Factory, conn loader.DistributedConnector) *Importer {
	return &Importer{
		factory: factory,
		ldr:     loader.NewInsertDataLoader(conn),
		conn:    conn,
	}
}

// CopyFrom imports one source path into a table. On success the
// table's writes are checkpointed; any error rolls them back before
// propagating.
func (im *Importer) CopyFrom(ctx context.Context, session *catalog.SessionInfo, dbID int, table *catalog.TableDescriptor, sourcePath string, params catalog.CopyParams) error {
	server, err := im.factory.CreateForeignServerProxy(dbID, session.UserID, sourcePath, params)
	if err != nil {
		return err
	}
	um, err := im.factory.CreateUserMappingProxyIfApplicable(dbID, session.UserID, sourcePath, params)
	if err != nil {
		return err
	}
	ft, err := im.factory.CreateForeignTableProxy(dbID, table, sourcePath, params, server)
	if err != nil {
		return err
	}

	if params.SourceType == catalog.SourceArchiveFile {
		return im.runArchiveImport(ctx, session, dbID, ft, um)
	}

	wrapper := im.factory.CreateForGeneralImport(server.WrapperType, dbID, ft, um)
	chunks, err := wrapper.PopulateChunks(ctx)
	if err != nil {
		return im.rollback(session, table.ID, err)
	}
	if err := im.ldr.InsertChunks(session, chunks); err != nil {
		return im.rollback(session, table.ID, err)
	}
	return im.conn.Checkpoint(session, table.ID)
}

// runArchiveImport streams the archive batch by batch so row groups
// land on leaves as they are decoded.
func (im *Importer) runArchiveImport(ctx context.Context, session *catalog.SessionInfo, dbID int, ft *catalog.ForeignTable, um *catalog.UserMapping) error {
	archive := im.factory.CreateForImport(ft.Server.WrapperType, dbID, ft, um)
	defer func() { _ = archive.Close() }()
	for {
		chunks, err := archive.NextBatch(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return im.rollback(session, ft.ID, err)
		}
		if err := im.ldr.InsertChunks(session, chunks); err != nil {
			return im.rollback(session, ft.ID, err)
		}
	}
	return im.conn.Checkpoint(session, ft.ID)
}

func (im *Importer) rollback(session *catalog.SessionInfo, tableID int, cause error) error {
	if err := im.conn.Rollback(session, tableID); err != nil {
		log.Errorf("rollback of table %d failed: %v", tableID, err)
	}
	return cause
}

// ImportAll loads every discovered table, at most
// consts.ImportParallelism tables in flight.
func (im *Importer) ImportAll(ctx context.Context, session *catalog.SessionInfo, sources []*TableSource) error {
	limit := make(chan struct{}, consts.ImportParallelism)
	errCh := make(chan error, len(sources))
	for _, ts := range sources {
		limit <- struct{}{}
		go func(ts *TableSource) {
			defer func() { <-limit }()
			errCh <- im.importTable(ctx, session, ts)
		}(ts)
	}
	var firstErr error
	for range sources {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (im *Importer) importTable(ctx context.Context, session *catalog.SessionInfo, ts *TableSource) error {
	params := catalog.NewCopyParams()
	params.SourceType = ts.SourceType
	for _, p := range ts.DataPaths {
		log.Infof("%s.%s importing %s\n", ts.Table.Database, ts.Table.Name, p)
		if err := im.CopyFrom(ctx, session, ts.DBID, ts.Table, p, params); err != nil {
			return errors.Annotatef(err, "import %s into %s.%s", p, ts.Table.Database, ts.Table.Name)
		}
	}
	log.Infof("%s.%s import finished\n", ts.Table.Database, ts.Table.Name)
	return nil
}
