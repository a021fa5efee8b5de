// Package msgpackdecoder provides a LogDecoder for msgpack maps of field names to string values
//
// An optional integer or float field "@timestamp" in Unix seconds sets the record timestamp. Keys not in schema are
// ignored.
package msgpackdecoder

import (
	"fmt"
	"math"
	"time"

	"github.com/relex/slog-analyzer/base"
	"github.com/vmihailenco/msgpack/v4"
)

// TimestampKey is the key of record timestamp in Unix seconds
const TimestampKey = "@timestamp"

type msgpackDecoder struct {
	schema base.LogSchema
	index  map[string]base.LogFieldLocator
}

// NewDecoder creates a msgpack decoder for the given schema
func NewDecoder(schema base.LogSchema) base.LogDecoder {
	index := make(map[string]base.LogFieldLocator, schema.GetMaxFields())
	for _, name := range schema.GetFieldNames() {
		index[name] = schema.MustCreateFieldLocator(name)
	}
	return &msgpackDecoder{
		schema: schema,
		index:  index,
	}
}

func (decoder *msgpackDecoder) Decode(raw []byte) (*base.LogRecord, error) {
	var values map[string]interface{}
	if err := msgpack.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("invalid msgpack record: %w", err)
	}
	record := decoder.schema.NewEmptyRecord()
	record.RawLength = len(raw)
	for key, value := range values {
		if key == TimestampKey {
			record.Timestamp = parseTimestamp(value)
			continue
		}
		locator, ok := decoder.index[key]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case string:
			locator.Set(record.Fields, v)
		case []byte:
			locator.Set(record.Fields, string(v))
		case nil:
		default:
			locator.Set(record.Fields, fmt.Sprint(v))
		}
	}
	return record, nil
}

func parseTimestamp(value interface{}) time.Time {
	switch v := value.(type) {
	case int64:
		return time.Unix(v, 0)
	case uint64:
		return time.Unix(int64(v), 0)
	case int8, int16, int32, uint8, uint16, uint32:
		return time.Unix(toInt64(v), 0)
	case float32:
		return parseTimestamp(float64(v))
	case float64:
		sec, frac := math.Modf(v)
		return time.Unix(int64(sec), int64(frac*1e9))
	case time.Time:
		return v
	default:
		return time.Time{}
	}
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	default:
		return 0
	}
}

// EncodeRecord encodes a record of the schema into a msgpack map, skipping empty fields
func EncodeRecord(schema base.LogSchema, record *base.LogRecord) ([]byte, error) {
	values := make(map[string]interface{}, len(record.Fields)+1)
	for i, name := range schema.GetFieldNames() {
		if i < len(record.Fields) && record.Fields[i] != "" {
			values[name] = record.Fields[i]
		}
	}
	if !record.Timestamp.IsZero() {
		values[TimestampKey] = record.Timestamp.Unix()
	}
	return msgpack.Marshal(values)
}
