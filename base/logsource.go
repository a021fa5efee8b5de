package base

// LogSource is an append-only sequence of raw log records
//
// Indexes passed to RawBytes and MsgIDFromIndex are filtered indexes (positions in the main table). Sources without
// filter treat filtered and unfiltered indexes the same.
//
// Implementations must be safe for concurrent use
type LogSource interface {
	// Size returns the current numbers of records
	Size() int

	// RawBytes returns the raw bytes of the record at index, or false if unavailable
	RawBytes(index int) ([]byte, bool)

	// MsgIDFromIndex translates a filtered index to the unfiltered message ID, or -1 if out of range
	MsgIDFromIndex(index int) int
}

// LogDecoder decodes raw bytes into structured records
//
// Implementations must be safe for concurrent use
type LogDecoder interface {
	Decode(raw []byte) (*LogRecord, error)
}
