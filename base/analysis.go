package base

import (
	"math"
	"regexp"
)

// RequestID identifies an analysis request within the controller which issued it
type RequestID uint64

// InvalidRequestID is returned when a request is rejected
const InvalidRequestID RequestID = math.MaxUint64

// WorkerID identifies a worker slot for the lifetime of its pool
type WorkerID int

// ChunkCookie is the per-request ordering key of dispatched chunks
type ChunkCookie int

// RequestState is the state reported by progress notifications
type RequestState int

// States of analysis requests
const (
	RequestProgress RequestState = iota
	RequestSuccess
	RequestError
)

func (s RequestState) String() string {
	switch s {
	case RequestProgress:
		return "progress"
	case RequestSuccess:
		return "success"
	case RequestError:
		return "error"
	default:
		return "unknown"
	}
}

// RequestParameters contains everything needed to start an analysis over a log source
type RequestParameters struct {
	Source       LogSource         // Source to analyze
	From         int               // First index in source (filtered index if the source has a filter)
	Count        int               // Numbers of records from From, clamped to the source size on request
	Pattern      *regexp.Regexp    // Compiled pattern, nil is rejected
	PatternText  string            // Pattern as entered, for AnalysisObserver(s)
	ThreadCount  int               // Desired parallelism, clamped to [1, pool size]
	Continuous   bool              // Whether to keep analyzing newly appended records
	SearchFields []LogFieldLocator // Fields joined by space to form the searchable string of each record
	Aliases      []string          // Alias labels, for AnalysisObserver(s)
}

// ProgressNotification is the asynchronous message delivered to AnalysisConsumer
type ProgressNotification struct {
	RequestID         RequestID
	State             RequestState
	Progress          int // Percentage, 0 - 100
	Matches           MatchesPack
	UMLDuplicateFound bool
}

// AnalysisController accepts analysis requests and reports results to consumers asynchronously
//
// Implementations must be safe for concurrent use
type AnalysisController interface {
	// RequestAnalyze starts an analysis and returns its ID, or InvalidRequestID if rejected
	RequestAnalyze(client AnalysisConsumer, params RequestParameters, metadata *PatternMetadata) RequestID

	// CancelRequest stops further notifications of the request if the client is the one that issued it
	CancelRequest(client AnalysisConsumer, id RequestID)

	// MaximumThreads returns the maximum parallelism of a single request
	MaximumThreads() int
}

// AnalysisConsumer receives progress notifications
type AnalysisConsumer interface {
	// ProgressNotification delivers a notification; it must not block
	ProgressNotification(n ProgressNotification)

	// Alive returns false once the consumer is gone, after which requests of it are dropped
	Alive() bool
}

// AnalysisObserver is informed of the lifecycle of top-level analysis sessions
type AnalysisObserver interface {
	AnalysisStarted(id RequestID, patternText string, aliases []string)
	AnalysisFinished(id RequestID)
}

// AnalysisFeatures toggles the optional tag derivation in pattern workers
type AnalysisFeatures struct {
	UML  bool `yaml:"uml"`
	Plot bool `yaml:"plot"`
}
