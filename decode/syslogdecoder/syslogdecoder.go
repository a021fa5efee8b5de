// Package syslogdecoder provides a LogDecoder for Syslog lines (RFC 5424).
// Timestamps and the contents of "extradata" (metadata) are not parsed. No whitespace is allowed inside "extradata".
//
// Resulting records contain: facility, level, time, host, app, pid, source, extradata (metadata) and log (message)
package syslogdecoder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/relex/slog-analyzer/base"
	"github.com/relex/slog-analyzer/defs"
)

// FieldNames contains the fields decoded from each line, in the standard order
//
// Non-standard field name mapping:
//   - pri => facility and level (severity)
//   - appname => app
//   - msgid => source
//   - message => log
var FieldNames = []string{"facility", "level", "time", "host", "app", "pid", "source", "extradata", "log"}

// FacilityNames contains the mapping of facility numbers to readable names
var FacilityNames = []string{
	"kern", "user", "mail", "daemon", "auth", "syslog", "lpr", "news",
	"uucp", "cron", "authpriv", "ftp", "ntp", "audit", "alert", "clock",
	"local0", "local1", "local2", "local3", "local4", "local5", "local6", "local7",
}

// SeverityNames contains the mapping of severity (level) numbers to readable names
var SeverityNames = []string{"emerg", "alert", "crit", "err", "warn", "notice", "info", "debug"}

// ErrMalformed is wrapped by all decoding errors
var ErrMalformed = errors.New("malformed syslog")

const minLineLength = 32

// syslogDecoder decodes RFC 5424 lines to log records
//
// Stateless and safe for concurrent use
type syslogDecoder struct {
	schema               base.LogSchema
	fieldFacilityLocator base.LogFieldLocator
	fieldLevelLocator    base.LogFieldLocator
	fieldTimeLocator     base.LogFieldLocator
	fieldLogLocator      base.LogFieldLocator
	restFieldLocators    []base.LogFieldLocator
}

// NewDecoder creates a syslog decoder for a schema containing all of FieldNames
func NewDecoder(schema base.LogSchema) (base.LogDecoder, error) {
	locFacility, err := schema.CreateFieldLocator("facility")
	if err != nil {
		return nil, err
	}
	locLevel, err := schema.CreateFieldLocator("level")
	if err != nil {
		return nil, err
	}
	locTime, err := schema.CreateFieldLocator("time")
	if err != nil {
		return nil, err
	}
	locRest, err := schema.CreateFieldLocators([]string{"host", "app", "pid", "source", "extradata"})
	if err != nil {
		return nil, err
	}
	locLog, err := schema.CreateFieldLocator("log")
	if err != nil {
		return nil, err
	}
	return &syslogDecoder{
		schema:               schema,
		fieldFacilityLocator: locFacility,
		fieldLevelLocator:    locLevel,
		fieldTimeLocator:     locTime,
		fieldLogLocator:      locLog,
		restFieldLocators:    locRest,
	}, nil
}

// Decode decodes one line, without the trailing newline
func (decoder *syslogDecoder) Decode(input []byte) (*base.LogRecord, error) {
	// copy once since records are kept by cache while input buffers may be reused by sources
	remaining := string(input)
	if len(remaining) < minLineLength || remaining[0] != '<' {
		return nil, fmt.Errorf("%w: invalid line", ErrMalformed)
	}
	record := decoder.schema.NewEmptyRecord()
	record.RawLength = len(input)
	fields := record.Fields

	// parse the pri field, e.g. "<163>1"
	ok, val, next := nextFieldBySpace(remaining)
	if !ok {
		return nil, fmt.Errorf("%w: unfinished line", ErrMalformed)
	}
	if len(val) < 4 || val[len(val)-2:] != ">1" {
		return nil, fmt.Errorf("%w: invalid pri '%s'", ErrMalformed, val)
	}
	pri := val[1 : len(val)-2]
	priVal, err := strconv.Atoi(pri)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid pri value '%s'", ErrMalformed, pri)
	}

	facility := priVal >> 3
	if facility < 0 || facility >= len(FacilityNames) {
		return nil, fmt.Errorf("%w: invalid facility %d", ErrMalformed, facility)
	}
	decoder.fieldFacilityLocator.Set(fields, FacilityNames[facility])
	decoder.fieldLevelLocator.Set(fields, SeverityNames[priVal&0b111])
	remaining = next

	ok, val, next = nextFieldBySpace(remaining)
	if !ok {
		return nil, fmt.Errorf("%w: missing field 'time'", ErrMalformed)
	}
	decoder.fieldTimeLocator.Set(fields, val)
	if tm, terr := time.Parse(time.RFC3339Nano, val); terr == nil {
		record.Timestamp = tm
	}
	remaining = next

	// rest of header fields delimited by whitespace
	for _, locator := range decoder.restFieldLocators {
		ok, val, next := nextFieldBySpace(remaining)
		if !ok {
			return nil, fmt.Errorf("%w: missing field '%s'", ErrMalformed, locator.Name(decoder.schema))
		}
		locator.Set(fields, val)
		remaining = next
	}

	// all the rest goes to the "log" message field
	if len(remaining) > defs.SourceMaxRecordBytes {
		remaining = remaining[:defs.SourceMaxRecordBytes]
	}
	decoder.fieldLogLocator.Set(fields, strings.TrimRight(remaining, "\r\n"))
	return record, nil
}

// nextFieldBySpace takes next field value separated by space
// return (ok, value, remaining part not including space)
// Ex: "a b c" will return (true, "a", "b c")
func nextFieldBySpace(s string) (bool, string, string) {
	end := strings.IndexByte(s, ' ')
	if end == -1 {
		return false, "", ""
	}
	return true, s[:end], s[end+1:]
}
