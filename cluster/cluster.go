// Package cluster implements the leaf connectors behind the insert
// loader: a MySQL fan-out for sharded deployments and a single-node
// staging connector backed by the journal.
package cluster

import (
	"database/sql"
	"sync"

	"github.com/pingcap/errors"

	"github.com/ainilili/colstore/catalog"
	"github.com/ainilili/colstore/database"
	"github.com/ainilili/colstore/journal"
	"github.com/ainilili/colstore/loader"
	"github.com/ainilili/colstore/log"
)

type txKey struct {
	leaf  int
	table int
}

// Connector routes rendered inserts to MySQL leaves. Writes for a
// table run inside one transaction per leaf until checkpoint or
// rollback.
type Connector struct {
	leaves []*database.DB
	cat    *catalog.Catalog

	mu  sync.Mutex
	txs map[txKey]*sql.Tx
}

func NewConnector(leaves []*database.DB, cat *catalog.Catalog) *Connector {
	return &Connector{
		leaves: leaves,
		cat:    cat,
		txs:    map[txKey]*sql.Tx{},
	}
}

func (c *Connector) LeafCount() int {
	return len(c.leaves)
}

func (c *Connector) tx(leafIdx, tableID int) (*sql.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := txKey{leaf: leafIdx, table: tableID}
	if tx, ok := c.txs[key]; ok {
		return tx, nil
	}
	tx, err := c.leaves[leafIdx].Begin()
	if err != nil {
		return nil, errors.Annotatef(err, "begin on leaf %d for table %d", leafIdx, tableID)
	}
	c.txs[key] = tx
	return tx, nil
}

func (c *Connector) execAll(leafIdx, tableID int, stmts []string) error {
	tx, err := c.tx(leafIdx, tableID)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			log.Infof("leaf %d err sql: %s\n", leafIdx, stmt)
			return errors.Annotatef(err, "insert on leaf %d", leafIdx)
		}
	}
	return nil
}

func (c *Connector) InsertChunksToLeaf(session *catalog.SessionInfo, leafIdx int, insertChunks *loader.InsertChunks) error {
	if leafIdx < 0 || leafIdx >= len(c.leaves) {
		return errors.Errorf("leaf index %d out of range [0,%d)", leafIdx, len(c.leaves))
	}
	stmts, err := renderChunkInserts(c.cat, insertChunks)
	if err != nil {
		return err
	}
	return c.execAll(leafIdx, insertChunks.TableID, stmts)
}

func (c *Connector) InsertDataToLeaf(session *catalog.SessionInfo, leafIdx int, insertData *loader.InsertData) error {
	if leafIdx < 0 || leafIdx >= len(c.leaves) {
		return errors.Errorf("leaf index %d out of range [0,%d)", leafIdx, len(c.leaves))
	}
	stmts, err := renderDataInserts(c.cat, insertData)
	if err != nil {
		return err
	}
	return c.execAll(leafIdx, insertData.TableID, stmts)
}

// Checkpoint commits the table's open transaction on every leaf.
func (c *Connector) Checkpoint(session *catalog.SessionInfo, tableID int) error {
	return c.finish(tableID, func(tx *sql.Tx) error { return tx.Commit() })
}

// Rollback discards the table's open transaction on every leaf.
func (c *Connector) Rollback(session *catalog.SessionInfo, tableID int) error {
	return c.finish(tableID, func(tx *sql.Tx) error { return tx.Rollback() })
}

func (c *Connector) finish(tableID int, op func(*sql.Tx) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for key, tx := range c.txs {
		if key.table != tableID {
			continue
		}
		if err := op(tx); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.txs, key)
	}
	return firstErr
}

// SingleNode is a one-leaf connector that stages rendered inserts in
// the table's journal instead of a live database. Checkpoint marks the
// staged frames durable; Rollback truncates them.
type SingleNode struct {
	dir string
	cat *catalog.Catalog

	mu       sync.Mutex
	journals map[int]*journal.Journal
}

func NewSingleNode(dir string, cat *catalog.Catalog) *SingleNode {
	return &SingleNode{
		dir:      dir,
		cat:      cat,
		journals: map[int]*journal.Journal{},
	}
}

func (s *SingleNode) LeafCount() int {
	return 1
}

func (s *SingleNode) journal(tableID int) (*journal.Journal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.journals[tableID]; ok {
		return j, nil
	}
	j, err := journal.New(s.dir, tableID)
	if err != nil {
		return nil, errors.Annotatef(err, "open journal for table %d", tableID)
	}
	s.journals[tableID] = j
	return j, nil
}

func (s *SingleNode) stage(tableID int, stmts []string) error {
	j, err := s.journal(tableID)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if err := j.Stage([]byte(stmt)); err != nil {
			return err
		}
	}
	return nil
}

func (s *SingleNode) InsertChunksToLeaf(session *catalog.SessionInfo, leafIdx int, insertChunks *loader.InsertChunks) error {
	stmts, err := renderChunkInserts(s.cat, insertChunks)
	if err != nil {
		return err
	}
	return s.stage(insertChunks.TableID, stmts)
}

func (s *SingleNode) InsertDataToLeaf(session *catalog.SessionInfo, leafIdx int, insertData *loader.InsertData) error {
	stmts, err := renderDataInserts(s.cat, insertData)
	if err != nil {
		return err
	}
	return s.stage(insertData.TableID, stmts)
}

func (s *SingleNode) Checkpoint(session *catalog.SessionInfo, tableID int) error {
	j, err := s.journal(tableID)
	if err != nil {
		return err
	}
	return j.Checkpoint()
}

func (s *SingleNode) Rollback(session *catalog.SessionInfo, tableID int) error {
	j, err := s.journal(tableID)
	if err != nil {
		return err
	}
	return j.Rollback()
}

// Staged returns the statements staged for a table, oldest first.
func (s *SingleNode) Staged(tableID int) ([]string, error) {
	j, err := s.journal(tableID)
	if err != nil {
		return nil, err
	}
	frames, err := j.Frames()
	if err != nil {
		return nil, err
	}
	stmts := make([]string, len(frames))
	for i, frame := range frames {
		stmts[i] = string(frame)
	}
	return stmts, nil
}

// State reports the journal state marker for a table.
func (s *SingleNode) State(tableID int) (int, error) {
	j, err := s.journal(tableID)
	if err != nil {
		return 0, err
	}
	return j.Load()
}

func (s *SingleNode) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for id, j := range s.journals {
		if err := j.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.journals, id)
	}
	return firstErr
}
