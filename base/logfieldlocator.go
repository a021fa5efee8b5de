package base

// LogFieldLocator is used to locate a named field in LogRecord, bound to a LogSchema
type LogFieldLocator int

// MissingFieldLocator represents non-existing index to a log field
const MissingFieldLocator LogFieldLocator = -1

// Name returns the field name
func (loc LogFieldLocator) Name(schema LogSchema) string {
	return schema.fieldNames[loc]
}

// Get returns the field value or empty string if the record is shorter than schema
func (loc LogFieldLocator) Get(fields []string) string {
	if int(loc) >= len(fields) {
		return ""
	}
	return fields[loc]
}

// Set assigns the field value
func (loc LogFieldLocator) Set(fields []string, value string) {
	fields[loc] = value
}
