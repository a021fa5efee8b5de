package base

import (
	"time"
)

// LogRecord defines the structure of a decoded log record, as staged in cache and consumed by pattern workers
//
// Records are shared between the cache and in-flight chunks and must not be modified after decoding
type LogRecord struct {
	Fields    LogFields // Structured fields, created by LogDecoder
	RawLength int       // Length of raw input, for statistics
	Timestamp time.Time // Timestamp, might be zero if the format carries none
}

// LogFields represents named fields in LogRecord, to be used with LogSchema
// Fields are by default empty strings and empty fields are the same as missing fields
type LogFields []string

// NewEmptyRecord creates a placeholder record with all fields empty
func NewEmptyRecord(numFields int) *LogRecord {
	return &LogRecord{
		Fields:    make(LogFields, numFields),
		RawLength: 0,
		Timestamp: time.Time{},
	}
}

// Size returns the numbers of bytes held by field values, as accounted by cache
func (record *LogRecord) Size() int {
	size := 0
	for _, value := range record.Fields {
		size += len(value)
	}
	return size
}
