package filesource

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/relex/gotils/logger"
	"github.com/relex/slog-analyzer/defs"
	"github.com/stretchr/testify/assert"
)

func TestLinesSourceRefresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	assert.NoError(t, os.WriteFile(path, []byte("first\nsecond\nthi"), 0o644))

	src, err := Open(logger.WithField("test", t.Name()), path, FormatLines)
	if !assert.NoError(t, err) {
		return
	}
	defer src.Close()
	assert.Equal(t, 2, src.Size())
	raw, ok := src.RawBytes(1)
	assert.True(t, ok)
	assert.Equal(t, "second", string(raw))
	_, ok = src.RawBytes(2)
	assert.False(t, ok)

	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	assert.NoError(t, err)
	_, err = file.WriteString("rd\n\nfifth\n")
	assert.NoError(t, err)
	assert.NoError(t, file.Close())

	added, err := src.Refresh()
	assert.NoError(t, err)
	assert.Equal(t, 3, added)
	assert.Equal(t, 5, src.Size())
	raw, _ = src.RawBytes(2)
	assert.Equal(t, "third", string(raw))
	raw, ok = src.RawBytes(3)
	assert.True(t, ok)
	assert.Empty(t, raw)
	assert.Equal(t, 4, src.MsgIDFromIndex(4))
	assert.Equal(t, -1, src.MsgIDFromIndex(5))

	added, err = src.Refresh()
	assert.NoError(t, err)
	assert.Equal(t, 0, added)
}

func TestLinesSourceFollow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	assert.NoError(t, os.WriteFile(path, []byte("first\n"), 0o644))
	src, err := Open(logger.WithField("test", t.Name()), path, FormatLines)
	if !assert.NoError(t, err) {
		return
	}
	defer src.Close()

	stop := src.Follow(5 * time.Millisecond)
	defer stop.Signal()

	file, _ := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	_, _ = file.WriteString("second\n")
	file.Close()

	deadline := time.Now().Add(defs.TestReadTimeout)
	for src.Size() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 2, src.Size())
}

func TestLengthPrefixedSource(t *testing.T) {
	buf := &bytes.Buffer{}
	assert.NoError(t, WriteLengthPrefixed(buf, []byte("alpha")))
	assert.NoError(t, WriteLengthPrefixed(buf, []byte{}))
	assert.NoError(t, WriteLengthPrefixed(buf, []byte("gamma\nwith newline")))
	buf.Write([]byte{0, 0, 0, 9, 'p', 'a', 'r'}) // partial

	path := filepath.Join(t.TempDir(), "app.bin")
	assert.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	src, err := Open(logger.WithField("test", t.Name()), path, FormatLengthPrefixed)
	if !assert.NoError(t, err) {
		return
	}
	defer src.Close()
	assert.Equal(t, 3, src.Size())
	raw, _ := src.RawBytes(0)
	assert.Equal(t, "alpha", string(raw))
	raw, _ = src.RawBytes(2)
	assert.Equal(t, "gamma\nwith newline", string(raw))
}

func TestLengthPrefixedSourceCorrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupted.bin")
	assert.NoError(t, os.WriteFile(path, []byte{0xFF, 0xFF, 0xFF, 0xF0, 'x'}, 0o644))
	_, err := Open(logger.WithField("test", t.Name()), path, FormatLengthPrefixed)
	assert.ErrorIs(t, err, ErrRecordTooLarge)

	buf := &bytes.Buffer{}
	assert.NoError(t, WriteLengthPrefixed(buf, []byte("alpha")))
	path = filepath.Join(t.TempDir(), "app.bin")
	assert.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	src, err := Open(logger.WithField("test", t.Name()), path, FormatLengthPrefixed)
	if !assert.NoError(t, err) {
		return
	}
	defer src.Close()

	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	assert.NoError(t, err)
	_, _ = file.Write([]byte{0x7F, 0, 0, 0, 'y', 'z'})
	assert.NoError(t, file.Close())

	added, err := src.Refresh()
	assert.ErrorIs(t, err, ErrRecordTooLarge)
	assert.Equal(t, 0, added)
	assert.Equal(t, 1, src.Size())
	raw, ok := src.RawBytes(0)
	assert.True(t, ok)
	assert.Equal(t, "alpha", string(raw))
}

func TestCompressedSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log.gz")
	file, err := os.Create(path)
	assert.NoError(t, err)
	writer := gzip.NewWriter(file)
	_, _ = writer.Write([]byte("one\ntwo\nthree"))
	assert.NoError(t, writer.Close())
	assert.NoError(t, file.Close())

	src, err := Open(logger.WithField("test", t.Name()), path, FormatLines)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, 3, src.Size())
	raw, _ := src.RawBytes(2)
	assert.Equal(t, "three", string(raw))
	added, err := src.Refresh()
	assert.NoError(t, err)
	assert.Equal(t, 0, added)
	assert.NoError(t, src.Close())
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(logger.WithField("test", t.Name()), "/nonexistent/app.log", FormatLines)
	assert.Error(t, err)
	_, err = Open(logger.WithField("test", t.Name()), "/nonexistent/app.log", Format("csv"))
	assert.ErrorContains(t, err, "unsupported format 'csv'")
}
