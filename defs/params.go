package defs

import (
	"time"
)

var (
	// AnalysisChunkSize defines the maximum numbers of log records dispatched to a worker slot as one unit of work
	//
	// Smaller chunks give more frequent progress updates; larger ones reduce per-chunk overhead in the event loop
	AnalysisChunkSize = 4000

	// TailRetryInterval defines how long a continuous session waits before checking the log source again when
	// no new records have been appended since the last pass
	TailRetryInterval = 50 * time.Millisecond

	// ControllerMailboxInitialSize defines the initial capacity of the unbounded mailbox of each controller loop
	//
	// The mailbox grows on demand. The value only avoids reallocations for typical bursts of chunk completions
	ControllerMailboxInitialSize = 64

	// WorkerInboxSize defines the size of the buffered channel of chunk tasks for each worker slot
	//
	// Continuation scheduling never queues more than one task per request on a slot, so the value only needs
	// to cover the numbers of concurrent requests
	WorkerInboxSize = 100

	// WorkerStopTimeout defines how long to wait for worker slots to finish their current chunk on shutdown
	WorkerStopTimeout = 60 * time.Second

	// CacheDefaultMaxBytes defines the default capacity of the message cache
	CacheDefaultMaxBytes int64 = 512 * 1024 * 1024

	// SourceMaxRecordBytes defines the maximum length of a single record read from file sources
	//
	// Longer lines are truncated before decoding. A longer length prefix fails the indexing of the file
	SourceMaxRecordBytes = 1 * 1024 * 1024

	// SourceFollowInterval defines the default interval to index records appended to file sources in continuous mode
	SourceFollowInterval = 1 * time.Second

	// IntermediateFlushInterval defines how often controller loops wake up to update their own metrics
	IntermediateFlushInterval = 1 * time.Second
)

// For testing and experiments
const (
	TestReadTimeout = 5 * time.Second
)

// EnableTestMode turns on test mode with minimal retry delay and short timeout
func EnableTestMode() {
	TailRetryInterval = 5 * time.Millisecond
	WorkerStopTimeout = 5 * time.Second
	SourceFollowInterval = 10 * time.Millisecond
}
