// Package filesource provides a LogSource over a log file, either newline-delimited or length-prefixed
//
// Plain files are indexed incrementally by Refresh and read on demand. Gzip files (".gz") are decompressed and loaded
// into memory once at opening.
package filesource

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/puzpuzpuz/xsync"
	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/slog-analyzer/defs"
)

// Format defines how records are delimited in file
type Format string

// Supported formats
const (
	FormatLines          Format = "lines"           // records delimited by '\n'
	FormatLengthPrefixed Format = "length-prefixed" // records prefixed by 4-byte big-endian length
)

const lengthPrefixSize = 4

// ErrRecordTooLarge is returned when a length prefix exceeds defs.SourceMaxRecordBytes, usually due to corruption
var ErrRecordTooLarge = errors.New("record too large")

type span struct {
	offset int64
	length int
}

// Source is a LogSource backed by a file
type Source struct {
	logger      logger.Logger
	path        string
	format      Format
	lock        *xsync.RBMutex
	file        *os.File   // nil for compressed files
	spans       []span     // record locations in plain file
	memory      [][]byte   // records of compressed file
	scanned     int64      // bytes indexed in plain file
	refreshLock sync.Mutex // serializes Refresh
}

// Open opens and indexes a file
func Open(parentLogger logger.Logger, path string, format Format) (*Source, error) {
	if format != FormatLines && format != FormatLengthPrefixed {
		return nil, fmt.Errorf("unsupported format '%s'", format)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	src := &Source{
		logger: parentLogger.WithFields(logger.Fields{
			defs.LabelComponent: "FileSource",
			defs.LabelSource:    path,
		}),
		path:   path,
		format: format,
		lock:   &xsync.RBMutex{},
	}
	if strings.HasSuffix(path, ".gz") {
		defer file.Close()
		if err := src.loadCompressed(file); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		src.logger.Infof("loaded %d records", len(src.memory))
		return src, nil
	}
	src.file = file
	src.spans = make([]span, 0, 10000)
	if _, err := src.Refresh(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to index %s: %w", path, err)
	}
	src.logger.Infof("indexed %d records", len(src.spans))
	return src, nil
}

// Refresh indexes complete records appended since the last call and returns how many were added
//
// Compressed files are never refreshed
func (src *Source) Refresh() (int, error) {
	if src.file == nil {
		return 0, nil
	}
	src.refreshLock.Lock()
	defer src.refreshLock.Unlock()

	stat, err := src.file.Stat()
	if err != nil {
		return 0, err
	}
	if stat.Size() <= src.scanned {
		return 0, nil
	}
	section := io.NewSectionReader(src.file, src.scanned, stat.Size()-src.scanned)
	found := make([]span, 0, 100)
	consumed, err := scanRecords(section, src.format, false, false, func(offset int64, length int, _ []byte) {
		found = append(found, span{offset: src.scanned + offset, length: length})
	})
	if err != nil {
		return 0, err
	}
	src.lock.Lock()
	src.spans = append(src.spans, found...)
	src.scanned += consumed
	src.lock.Unlock()
	if len(found) > 0 {
		src.logger.Debugf("indexed %d new records", len(found))
	}
	return len(found), nil
}

// Follow launches a background loop calling Refresh in the given interval, until the returned signal is triggered
func (src *Source) Follow(interval time.Duration) *channels.SignalAwaitable {
	stop := channels.NewSignalAwaitable()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := src.Refresh(); err != nil {
					src.logger.Warn("failed to refresh: ", err)
				}
			case <-stop.Channel():
				return
			}
		}
	}()
	return stop
}

// Close closes the file
func (src *Source) Close() error {
	if src.file == nil {
		return nil
	}
	return src.file.Close()
}

// Size returns the numbers of indexed records
func (src *Source) Size() int {
	tok := src.lock.RLock()
	defer src.lock.RUnlock(tok)
	if src.file == nil {
		return len(src.memory)
	}
	return len(src.spans)
}

// RawBytes reads the record at index, truncated to defs.SourceMaxRecordBytes
func (src *Source) RawBytes(index int) ([]byte, bool) {
	tok := src.lock.RLock()
	if index < 0 || index >= src.sizeLocked() {
		src.lock.RUnlock(tok)
		return nil, false
	}
	if src.file == nil {
		raw := src.memory[index]
		src.lock.RUnlock(tok)
		return raw, true
	}
	sp := src.spans[index]
	src.lock.RUnlock(tok)

	length := sp.length
	if length > defs.SourceMaxRecordBytes {
		length = defs.SourceMaxRecordBytes
	}
	buf := make([]byte, length)
	if _, err := src.file.ReadAt(buf, sp.offset); err != nil {
		src.logger.Warnf("failed to read record %d at %d: %s", index, sp.offset, err.Error())
		return nil, false
	}
	return buf, true
}

// MsgIDFromIndex returns the index itself since files have no filter
func (src *Source) MsgIDFromIndex(index int) int {
	if index < 0 || index >= src.Size() {
		return -1
	}
	return index
}

func (src *Source) sizeLocked() int {
	if src.file == nil {
		return len(src.memory)
	}
	return len(src.spans)
}

func (src *Source) loadCompressed(file *os.File) error {
	reader, err := gzip.NewReader(file)
	if err != nil {
		return err
	}
	defer reader.Close()
	src.memory = make([][]byte, 0, 10000)
	_, err = scanRecords(reader, src.format, true, true, func(_ int64, _ int, payload []byte) {
		if len(payload) > defs.SourceMaxRecordBytes {
			payload = payload[:defs.SourceMaxRecordBytes]
		}
		src.memory = append(src.memory, payload)
	})
	return err
}

// scanRecords reads records from the reader and returns the bytes consumed by complete records
//
// Trailing partial records are left unconsumed, unless acceptPartial is true. Length-prefixed payloads are skipped
// without reading unless keepPayload is true, and emitted as nil.
func scanRecords(r io.Reader, format Format, acceptPartial bool, keepPayload bool,
	emit func(offset int64, length int, payload []byte)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	switch format {
	case FormatLines:
		for {
			line, err := reader.ReadBytes('\n')
			if errors.Is(err, io.EOF) {
				if acceptPartial && len(line) > 0 {
					emit(consumed, len(line), line)
					consumed += int64(len(line))
				}
				return consumed, nil
			}
			if err != nil {
				return consumed, err
			}
			emit(consumed, len(line)-1, line[:len(line)-1])
			consumed += int64(len(line))
		}
	case FormatLengthPrefixed:
		prefix := make([]byte, lengthPrefixSize)
		for {
			if _, err := io.ReadFull(reader, prefix); err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					return consumed, nil
				}
				return consumed, err
			}
			length := int(binary.BigEndian.Uint32(prefix))
			if length > defs.SourceMaxRecordBytes {
				return consumed, fmt.Errorf("%w: length %d at offset %d", ErrRecordTooLarge, length, consumed)
			}
			var payload []byte
			var err error
			if keepPayload {
				payload = make([]byte, length)
				_, err = io.ReadFull(reader, payload)
			} else {
				_, err = reader.Discard(length)
			}
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					return consumed, nil
				}
				return consumed, err
			}
			emit(consumed+lengthPrefixSize, length, payload)
			consumed += lengthPrefixSize + int64(length)
		}
	default:
		return 0, fmt.Errorf("unsupported format '%s'", format)
	}
}

// WriteLengthPrefixed writes a record with its length prefix
func WriteLengthPrefixed(w io.Writer, payload []byte) error {
	prefix := make([]byte, lengthPrefixSize)
	binary.BigEndian.PutUint32(prefix, uint32(len(payload)))
	if _, err := w.Write(prefix); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
