package base

import (
	"fmt"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/relex/gotils/logger"
	"golang.org/x/exp/slices"
)

// LogSchema defines the field names of decoded records
type LogSchema struct {
	fieldNames []string
}

// MustNewLogSchema creates a new LogSchema or panic
func MustNewLogSchema(fieldNames []string) LogSchema {
	schema, err := NewLogSchema(fieldNames)
	if err != nil {
		logger.Panic("failed to create schema: ", err)
	}
	return schema
}

// NewLogSchema creates a new LogSchema with field names
func NewLogSchema(fieldNames []string) (LogSchema, error) {
	if len(fieldNames) == 0 {
		return LogSchema{}, fmt.Errorf("no fields defined")
	}
	m := make(map[string]bool, len(fieldNames)*2)
	for i, name := range fieldNames {
		if len(name) == 0 {
			return LogSchema{}, fmt.Errorf("invalid %dth field '%s'", i, name)
		}
		_, exists := m[name]
		if exists {
			return LogSchema{}, fmt.Errorf("duplicated %dth field '%s'", i, name)
		}
		m[name] = true
	}
	return LogSchema{
		fieldNames: slices.Clone(fieldNames),
	}, nil
}

// NewRecord creates new record with initial field values, mainly for sources and tests
func (s *LogSchema) NewRecord(tm time.Time, fields LogFields) *LogRecord {
	if len(fields) != len(s.fieldNames) {
		logger.Panicf("wrong numbers of log fields: %s, should be %d", fields, len(s.fieldNames))
	}
	rawLength := 0
	for _, value := range fields {
		rawLength += len(value) + 1
	}
	return &LogRecord{
		Fields:    fields,
		RawLength: rawLength,
		Timestamp: tm,
	}
}

// NewEmptyRecord creates a placeholder record matching the schema
func (s *LogSchema) NewEmptyRecord() *LogRecord {
	return NewEmptyRecord(len(s.fieldNames))
}

// CreateFieldLocator creates a LogFieldLocator by field name
func (s *LogSchema) CreateFieldLocator(name string) (LogFieldLocator, error) {
	index := slices.Index(s.fieldNames, name)
	if index == -1 {
		return MissingFieldLocator, fmt.Errorf("field '%s' is not defined in schema", name)
	}
	return LogFieldLocator(index), nil
}

// CreateFieldLocators creates LogFieldLocator(s) for field names
func (s *LogSchema) CreateFieldLocators(names []string) ([]LogFieldLocator, error) {
	locators := make([]LogFieldLocator, len(names))
	for i, name := range names {
		loc, err := s.CreateFieldLocator(name)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		locators[i] = loc
	}
	return locators, nil
}

// CreateFieldLocatorsByGlob creates LogFieldLocator(s) for all fields matching any of the glob patterns
//
// Locators are returned in schema order without duplicates. Each pattern must match at least one field.
func (s *LogSchema) CreateFieldLocatorsByGlob(patterns []string) ([]LogFieldLocator, error) {
	selected := make([]bool, len(s.fieldNames))
	for i, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("[%d] invalid glob '%s': %w", i, pattern, err)
		}
		found := false
		for index, name := range s.fieldNames {
			if g.Match(name) {
				selected[index] = true
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("[%d] glob '%s' matches no field in schema", i, pattern)
		}
	}
	locators := make([]LogFieldLocator, 0, len(s.fieldNames))
	for index, ok := range selected {
		if ok {
			locators = append(locators, LogFieldLocator(index))
		}
	}
	return locators, nil
}

// GetFieldNames returns all the field names in the same order
func (s *LogSchema) GetFieldNames() []string {
	return s.fieldNames
}

// GetMaxFields returns the numbers of fields
func (s *LogSchema) GetMaxFields() int {
	return len(s.fieldNames)
}

// MustCreateFieldLocator creates LogFieldLocator by field name or panic (if field doesn't exist in schema)
func (s *LogSchema) MustCreateFieldLocator(name string) LogFieldLocator {
	loc, err := s.CreateFieldLocator(name)
	if err != nil {
		logger.Panicf("failed to create locator for field [%s]: %s", name, err.Error())
	}
	return loc
}

// MustCreateFieldLocators creates LogFieldLocators for field names or panic (if a field doesn't exist in schema)
func (s *LogSchema) MustCreateFieldLocators(names []string) []LogFieldLocator {
	locs, err := s.CreateFieldLocators(names)
	if err != nil {
		logger.Panicf("failed to create locators for fields [%s]: %s", strings.Join(names, ","), err.Error())
	}
	return locs
}
