// Package loader routes committed insert payloads across the leaves of
// a distributed deployment. The loader owns nothing but a rotation
// cursor; physical writes, checkpoint and rollback belong to the
// injected DistributedConnector.
package loader

import (
	"sync"

	"github.com/ainilili/colstore/catalog"
	"github.com/ainilili/colstore/chunk"
)

// DataBlock is one column's worth of an InsertData payload. Exactly
// one slice is populated, selected by the column's type.
type DataBlock struct {
	Ints    []int64
	Reals   []float64
	Strings []string
}

// InsertData is a row-batch payload laid out by column.
type InsertData struct {
	DBID      int
	TableID   int
	ColumnIDs []int
	Data      []DataBlock
	NumRows   int
}

// InsertChunks is a whole-column-chunk payload.
type InsertChunks struct {
	DBID    int
	TableID int
	Chunks  map[chunk.Key]*chunk.Chunk
}

// DistributedConnector abstracts a leaf cluster. Implementations range
// from single-node staging to full network fan-out; test doubles
// satisfy it too.
type DistributedConnector interface {
	LeafCount() int
	InsertChunksToLeaf(session *catalog.SessionInfo, leafIdx int, insertChunks *InsertChunks) error
	InsertDataToLeaf(session *catalog.SessionInfo, leafIdx int, insertData *InsertData) error
	Checkpoint(session *catalog.SessionInfo, tableID int) error
	Rollback(session *catalog.SessionInfo, tableID int) error
}

type InsertDataLoader struct {
	leafCount        int
	currentLeafIndex int
	mu               sync.Mutex
	connector        DistributedConnector
}

func NewInsertDataLoader(connector DistributedConnector) *InsertDataLoader {
	return &InsertDataLoader{
		leafCount: connector.LeafCount(),
		connector: connector,
	}
}

// InsertData forwards a row-batch payload to the next leaf in
// rotation. Data becomes visible on the leaf only after the caller
// checkpoints; errors from the connector propagate unchanged.
func (l *InsertDataLoader) InsertData(session *catalog.SessionInfo, insertData *InsertData) error {
	if l.leafCount == 1 {
		return l.connector.InsertDataToLeaf(session, 0, insertData)
	}
	return l.connector.InsertDataToLeaf(session, l.moveToNextLeaf(), insertData)
}

// InsertChunks forwards a chunk payload to the next leaf in rotation.
func (l *InsertDataLoader) InsertChunks(session *catalog.SessionInfo, insertChunks *InsertChunks) error {
	if l.leafCount == 1 {
		return l.connector.InsertChunksToLeaf(session, 0, insertChunks)
	}
	return l.connector.InsertChunksToLeaf(session, l.moveToNextLeaf(), insertChunks)
}

// moveToNextLeaf returns the current rotation index and advances it.
// The lock covers only the read-and-increment, never the leaf insert,
// so concurrent inserts spread across leaves instead of serializing on
// one round-trip.
func (l *InsertDataLoader) moveToNextLeaf() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := l.currentLeafIndex
	l.currentLeafIndex = (l.currentLeafIndex + 1) % l.leafCount
	return idx
}
