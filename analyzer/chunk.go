package analyzer

import (
	"regexp"
	"strings"

	"github.com/relex/slog-analyzer/base"
)

// chunkTask is a contiguous range of records dispatched to a worker slot
type chunkTask struct {
	requestID    base.RequestID
	cookie       base.ChunkCookie
	from         int // first filtered index
	to           int // end filtered index, exclusive
	source       base.LogSource
	pattern      *regexp.Regexp
	metadata     *base.PatternMetadata
	searchFields []base.LogFieldLocator
}

func (task chunkTask) size() int {
	return task.to - task.from
}

// chunkResult is posted back to the dispatcher loop after a chunk is matched
type chunkResult struct {
	requestID base.RequestID
	cookie    base.ChunkCookie
	workerID  base.WorkerID
	portionResult
}

// recordFetcher returns decoded records by filtered index, never nil
type recordFetcher interface {
	Fetch(index int) *base.LogRecord
}

// assembleBatch builds the searchable string of each record in the chunk
//
// The selected fields are joined by space and the offsets of each field are kept in metadata. Records which cannot be
// fetched are represented by empty fields.
func assembleBatch(fetcher recordFetcher, task chunkTask) []batchItem {
	batch := make([]batchItem, 0, task.size())
	builder := &strings.Builder{}
	for index := task.from; index < task.to; index++ {
		record := fetcher.Fetch(index)
		builder.Reset()
		ranges := make(map[base.LogFieldLocator]base.IntRange, len(task.searchFields))
		for i, locator := range task.searchFields {
			if i > 0 {
				builder.WriteByte(' ')
			}
			value := locator.Get(record.Fields)
			start := builder.Len()
			builder.WriteString(value)
			ranges[locator] = base.IntRange{From: start, To: start + len(value) - 1}
		}
		text := builder.String()
		batch = append(batch, batchItem{
			metadata: base.ItemMetadata{
				MsgID:       task.source.MsgIDFromIndex(index),
				MsgIndex:    index,
				FieldRanges: ranges,
				StrSize:     len(text),
				MsgSize:     record.RawLength,
				Timestamp:   record.Timestamp,
			},
			text: text,
		})
	}
	return batch
}
