package syslogdecoder

import (
	"testing"
	"time"

	"github.com/relex/slog-analyzer/base"
	"github.com/stretchr/testify/assert"
)

func TestSyslogDecoder(t *testing.T) {
	schema := base.MustNewLogSchema(FieldNames)
	decoder, err := NewDecoder(schema)
	assert.NoError(t, err)

	const line1 = "<163>1 2019-08-15T15:50:46.866915+03:00 local1 my-app1 123 fn1 - Something"
	const line2 = "<163>1 2020-09-17T16:51:47.867Z local2 my-app2 456 fn2 - Something else\n"
	{
		r1, err := decoder.Decode([]byte(line1))
		if assert.NoError(t, err) {
			assert.Equal(t, "my-app1", schema.MustCreateFieldLocator("app").Get(r1.Fields))
			assert.Equal(t, "123", schema.MustCreateFieldLocator("pid").Get(r1.Fields))
			assert.Equal(t, "fn1", schema.MustCreateFieldLocator("source").Get(r1.Fields))
			assert.Equal(t, "Something", schema.MustCreateFieldLocator("log").Get(r1.Fields))
			assert.Equal(t, len(line1), r1.RawLength)
			assert.Equal(t, 2019, r1.Timestamp.Year())
		}
	}
	{
		r2, err := decoder.Decode([]byte(line2))
		if assert.NoError(t, err) {
			assert.Equal(t, "local4", schema.MustCreateFieldLocator("facility").Get(r2.Fields))
			assert.Equal(t, "err", schema.MustCreateFieldLocator("level").Get(r2.Fields))
			assert.Equal(t, "my-app2", schema.MustCreateFieldLocator("app").Get(r2.Fields))
			assert.Equal(t, "Something else", schema.MustCreateFieldLocator("log").Get(r2.Fields))
			assert.Equal(t, time.Date(2020, 9, 17, 16, 51, 47, 867000000, time.UTC), r2.Timestamp.UTC())
		}
	}
}

func TestSyslogDecoderMalformed(t *testing.T) {
	schema := base.MustNewLogSchema(FieldNames)
	decoder, _ := NewDecoder(schema)

	for _, line := range []string{
		"hello",
		"163>1 2019-08-15T15:50:46.866915+03:00 local1 my-app1 123 fn1 - Something",
		"<163>2 2019-08-15T15:50:46.866915+03:00 local1 my-app1 123 fn1 - Something",
		"<9999>1 2019-08-15T15:50:46.866915+03:00 local1 my-app1 123 fn1 - Something",
		"<163>1 2019-08-15T15:50:46.866915+03:00 local1 my-app1-without-anything-else",
	} {
		_, err := decoder.Decode([]byte(line))
		assert.ErrorIs(t, err, ErrMalformed, line)
	}
}

func TestSyslogDecoderSchema(t *testing.T) {
	_, err := NewDecoder(base.MustNewLogSchema([]string{"facility", "level", "log"}))
	assert.ErrorContains(t, err, "field 'time' is not defined in schema")
}
