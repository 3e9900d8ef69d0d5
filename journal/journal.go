// Package journal persists staged writes for a table until they are
// checkpointed or rolled back. A journal is two files: a 4-byte
// big-endian state marker and a frame log of zstd-compressed payloads.
package journal

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/ainilili/colstore/consts"
	"github.com/ainilili/colstore/file"
	"github.com/ainilili/colstore/util"
)

const (
	StateStaged       = 0
	StateCheckpointed = 1
)

type Journal struct {
	state  *file.File
	frames *file.File
	enc    *zstd.Encoder
	dec    *zstd.Decoder
}

func New(dir string, tableID int) (*Journal, error) {
	if err := file.Fs().MkdirAll(dir, os.FileMode(0766)); err != nil {
		return nil, err
	}
	state, err := file.New(util.AssemblePath(dir, fmt.Sprintf("state%d", tableID)), os.O_CREATE|os.O_RDWR)
	if err != nil {
		return nil, err
	}
	frames, err := file.New(util.AssemblePath(dir, fmt.Sprintf("stage%d", tableID)), os.O_CREATE|os.O_RDWR|os.O_APPEND)
	if err != nil {
		_ = state.Close()
		return nil, err
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &Journal{state: state, frames: frames, enc: enc, dec: dec}, nil
}

// Stage appends one compressed payload frame.
func (j *Journal) Stage(payload []byte) error {
	if len(payload) > consts.StageFrameLimit {
		return fmt.Errorf("journal frame of %d bytes exceeds the %d byte limit", len(payload), consts.StageFrameLimit)
	}
	compressed := j.enc.EncodeAll(payload, nil)
	head := make([]byte, 4)
	binary.BigEndian.PutUint32(head, uint32(len(compressed)))
	if _, err := j.frames.Write(head); err != nil {
		return err
	}
	if _, err := j.frames.Write(compressed); err != nil {
		return err
	}
	return j.frames.Sync()
}

// Checkpoint marks every staged frame durable.
func (j *Journal) Checkpoint() error {
	return j.writeState(StateCheckpointed)
}

// Rollback discards staged, not-yet-checkpointed frames.
func (j *Journal) Rollback() error {
	if err := j.frames.Truncate(0); err != nil {
		return err
	}
	return j.writeState(StateStaged)
}

func (j *Journal) writeState(state int) error {
	data := make([]byte, 4)
	binary.BigEndian.PutUint32(data, uint32(state))
	if err := j.state.Truncate(0); err != nil {
		return err
	}
	if err := j.state.WriteAt(0, data); err != nil {
		return err
	}
	return j.state.Sync()
}

// Load reads the persisted state marker; a missing or empty marker
// means nothing has been checkpointed.
func (j *Journal) Load() (int, error) {
	bs, err := j.state.ReadAll()
	if err != nil {
		if err == io.EOF {
			return StateStaged, nil
		}
		return 0, err
	}
	if len(bs) < 4 {
		return StateStaged, nil
	}
	return int(binary.BigEndian.Uint32(bs[:4])), nil
}

// Frames decompresses and returns every staged payload in order.
func (j *Journal) Frames() ([][]byte, error) {
	bs, err := j.frames.ReadAll()
	if err != nil {
		return nil, err
	}
	var frames [][]byte
	for len(bs) >= 4 {
		n := int(binary.BigEndian.Uint32(bs[:4]))
		bs = bs[4:]
		if n > len(bs) {
			return nil, fmt.Errorf("truncated journal frame: want %d bytes, have %d", n, len(bs))
		}
		payload, err := j.dec.DecodeAll(bs[:n], nil)
		if err != nil {
			return nil, err
		}
		frames = append(frames, payload)
		bs = bs[n:]
	}
	return frames, nil
}

func (j *Journal) Close() error {
	j.enc.Close()
	j.dec.Close()
	_ = j.state.Close()
	return j.frames.Close()
}
