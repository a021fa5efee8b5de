// Package memsource provides an in-memory, append-only LogSource
package memsource

import (
	"github.com/puzpuzpuz/xsync"
)

// Source keeps raw records in memory, optionally with a filter deciding which records are visible in the main table
type Source struct {
	lock     *xsync.RBMutex
	records  [][]byte
	filter   func(raw []byte) bool
	filtered []int // filtered index => message ID, nil if no filter
}

// New creates an empty Source without filter
func New() *Source {
	return &Source{
		lock:     &xsync.RBMutex{},
		records:  make([][]byte, 0, 1000),
		filter:   nil,
		filtered: nil,
	}
}

// NewFiltered creates an empty Source where only records accepted by the filter are visible by index
func NewFiltered(filter func(raw []byte) bool) *Source {
	src := New()
	src.filter = filter
	src.filtered = make([]int, 0, 1000)
	return src
}

// Append adds records at the end
func (src *Source) Append(records ...[]byte) {
	src.lock.Lock()
	defer src.lock.Unlock()
	for _, raw := range records {
		id := len(src.records)
		src.records = append(src.records, raw)
		if src.filter != nil && src.filter(raw) {
			src.filtered = append(src.filtered, id)
		}
	}
}

// AppendStrings adds string records at the end
func (src *Source) AppendStrings(records ...string) {
	list := make([][]byte, len(records))
	for i, r := range records {
		list[i] = []byte(r)
	}
	src.Append(list...)
}

// Truncate drops all records from the given message ID
func (src *Source) Truncate(size int) {
	src.lock.Lock()
	defer src.lock.Unlock()
	if size >= len(src.records) {
		return
	}
	src.records = src.records[:size]
	if src.filter != nil {
		n := 0
		for n < len(src.filtered) && src.filtered[n] < size {
			n++
		}
		src.filtered = src.filtered[:n]
	}
}

// Size returns the numbers of visible records
func (src *Source) Size() int {
	tok := src.lock.RLock()
	defer src.lock.RUnlock(tok)
	if src.filter != nil {
		return len(src.filtered)
	}
	return len(src.records)
}

// TotalSize returns the numbers of all records regardless of filter
func (src *Source) TotalSize() int {
	tok := src.lock.RLock()
	defer src.lock.RUnlock(tok)
	return len(src.records)
}

// RawBytes returns the record at the filtered index
func (src *Source) RawBytes(index int) ([]byte, bool) {
	tok := src.lock.RLock()
	defer src.lock.RUnlock(tok)
	id := src.msgIDLocked(index)
	if id < 0 {
		return nil, false
	}
	return src.records[id], true
}

// MsgIDFromIndex translates the filtered index to message ID
func (src *Source) MsgIDFromIndex(index int) int {
	tok := src.lock.RLock()
	defer src.lock.RUnlock(tok)
	return src.msgIDLocked(index)
}

func (src *Source) msgIDLocked(index int) int {
	if src.filter != nil {
		if index < 0 || index >= len(src.filtered) {
			return -1
		}
		return src.filtered[index]
	}
	if index < 0 || index >= len(src.records) {
		return -1
	}
	return index
}
