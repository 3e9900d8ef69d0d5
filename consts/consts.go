package consts

const (
	LF    = byte('\n')
	COMMA = byte(',')
	K     = 1024
	M     = 1024 * K
	G     = 1024 * M

	FileBufferSize    = 64 * K
	StageFrameLimit   = 16 * M
	InsertBatch       = 40 * K
	ImportParallelism = 4
)
