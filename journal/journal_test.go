package journal

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"github.com/ainilili/colstore/file"
)

func newTestJournal(t *testing.T) *Journal {
	old := file.Fs()
	file.SetFs(afero.NewMemMapFs())
	t.Cleanup(func() { file.SetFs(old) })

	j, err := New("/staging", 1)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestStageAndFramesRoundTrip(t *testing.T) {
	j := newTestJournal(t)
	payloads := [][]byte{
		[]byte("INSERT INTO nyc.trips VALUES (1,'ny',1.5);"),
		[]byte("INSERT INTO nyc.trips VALUES (2,'sf',2.5);"),
	}
	for _, p := range payloads {
		assert.NoError(t, j.Stage(p))
	}
	frames, err := j.Frames()
	assert.NoError(t, err)
	assert.Equal(t, payloads, frames)
}

func TestFreshJournalIsStaged(t *testing.T) {
	j := newTestJournal(t)
	state, err := j.Load()
	assert.NoError(t, err)
	assert.Equal(t, StateStaged, state)
}

func TestCheckpointPersistsState(t *testing.T) {
	j := newTestJournal(t)
	assert.NoError(t, j.Stage([]byte("payload")))
	assert.NoError(t, j.Checkpoint())
	state, err := j.Load()
	assert.NoError(t, err)
	assert.Equal(t, StateCheckpointed, state)

	// Checkpointed frames survive.
	frames, err := j.Frames()
	assert.NoError(t, err)
	assert.Len(t, frames, 1)
}

func TestRollbackDiscardsFrames(t *testing.T) {
	j := newTestJournal(t)
	assert.NoError(t, j.Stage([]byte("payload")))
	assert.NoError(t, j.Rollback())

	frames, err := j.Frames()
	assert.NoError(t, err)
	assert.Empty(t, frames)

	state, err := j.Load()
	assert.NoError(t, err)
	assert.Equal(t, StateStaged, state)
}

func TestStageLargePayloadCompresses(t *testing.T) {
	j := newTestJournal(t)
	payload := make([]byte, 1<<16)
	for i := range payload {
		payload[i] = byte('a' + i%4)
	}
	assert.NoError(t, j.Stage(payload))
	assert.Less(t, j.frames.Size(), int64(len(payload)))

	frames, err := j.Frames()
	assert.NoError(t, err)
	assert.Equal(t, payload, frames[0])
}
