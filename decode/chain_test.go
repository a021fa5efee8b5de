package decode

import (
	"testing"

	"github.com/relex/slog-analyzer/base"
	"github.com/relex/slog-analyzer/decode/msgpackdecoder"
	"github.com/relex/slog-analyzer/decode/syslogdecoder"
	"github.com/stretchr/testify/assert"
	"github.com/vmihailenco/msgpack/v4"
)

func TestChain(t *testing.T) {
	schema := base.MustNewLogSchema(syslogdecoder.FieldNames)
	syslog, err := syslogdecoder.NewDecoder(schema)
	assert.NoError(t, err)
	chain := Chain{syslog, msgpackdecoder.NewDecoder(schema)}
	logLocator := schema.MustCreateFieldLocator("log")

	r1, err := chain.Decode([]byte("<14>1 2021-01-01T00:00:00Z host1 app1 1 src - from syslog"))
	if assert.NoError(t, err) {
		assert.Equal(t, "from syslog", logLocator.Get(r1.Fields))
	}

	packed, _ := msgpack.Marshal(map[string]string{"log": "from msgpack"})
	r2, err := chain.Decode(packed)
	if assert.NoError(t, err) {
		assert.Equal(t, "from msgpack", logLocator.Get(r2.Fields))
	}

	_, err = chain.Decode([]byte{0xc1})
	assert.ErrorContains(t, err, "all 2 decoder(s) failed")

	_, err = Chain{}.Decode(packed)
	assert.ErrorIs(t, err, ErrNoDecoder)
}
