package run

import (
	"fmt"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/relex/gotils/logger"
	"github.com/relex/slog-analyzer/base"
	"github.com/relex/slog-analyzer/decode"
	"github.com/relex/slog-analyzer/decode/msgpackdecoder"
	"github.com/relex/slog-analyzer/decode/syslogdecoder"
	"github.com/relex/slog-analyzer/defs"
	"github.com/relex/slog-analyzer/source/filesource"
	"github.com/relex/slog-analyzer/util"
)

// Config defines the root of slog-analyzer config file
type Config struct {
	Schema   SchemaConfig   `yaml:"schema"`
	Source   SourceConfig   `yaml:"source"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Cache    CacheConfig    `yaml:"cache"`
	Search   SearchConfig   `yaml:"search"`
}

// SchemaConfig defines the schema section in config file
type SchemaConfig struct {
	Fields []string `yaml:"fields"`
}

// SourceConfig defines the log file to analyze
type SourceConfig struct {
	Path           string        `yaml:"path"`           // plain or gzip-compressed (.gz) file
	Format         string        `yaml:"format"`         // syslog or msgpack
	Decoders       []string      `yaml:"decoders"`       // decoders tried in order, default to the one of format
	FollowInterval time.Duration `yaml:"followInterval"` // how often to check for appended records in continuous mode
}

// AnalyzerConfig defines the worker pool
type AnalyzerConfig struct {
	Threads  int                   `yaml:"threads"` // 0 for the numbers of CPUs
	Features base.AnalysisFeatures `yaml:"features"`
}

// CacheConfig defines the message cache
type CacheConfig struct {
	Enabled bool              `yaml:"enabled"`
	MaxSize datasize.ByteSize `yaml:"maxSize"`
}

// SearchConfig defines the default fields to search in
type SearchConfig struct {
	Fields []string `yaml:"fields"` // glob patterns of field names
}

// Source formats
const (
	FormatSyslog  = "syslog"
	FormatMsgpack = "msgpack"
)

// VerifyConfig checks configuration
func (cfg *SourceConfig) VerifyConfig() error {
	if len(cfg.Path) == 0 {
		return fmt.Errorf(".path is unspecified")
	}
	if _, err := fileFormatOf(cfg.Format); err != nil {
		return fmt.Errorf(".format: %w", err)
	}
	for i, name := range cfg.Decoders {
		if _, err := fileFormatOf(name); err != nil {
			return fmt.Errorf(".decoders[%d]: %w", i, err)
		}
	}
	if cfg.FollowInterval < 0 {
		return fmt.Errorf(".followInterval is negative: %s", cfg.FollowInterval)
	}
	return nil
}

// FileFormat returns the record delimiting format of source file
func (cfg *SourceConfig) FileFormat() filesource.Format {
	format, err := fileFormatOf(cfg.Format)
	if err != nil {
		logger.Panic(err)
	}
	return format
}

// NewDecoder creates the decoder chain for records in source file
func (cfg *SourceConfig) NewDecoder(schema base.LogSchema) (base.LogDecoder, error) {
	names := cfg.Decoders
	if len(names) == 0 {
		names = []string{cfg.Format}
	}
	chain := make(decode.Chain, 0, len(names))
	for i, name := range names {
		switch name {
		case FormatSyslog:
			decoder, err := syslogdecoder.NewDecoder(schema)
			if err != nil {
				return nil, fmt.Errorf("decoders[%d]: %w", i, err)
			}
			chain = append(chain, decoder)
		case FormatMsgpack:
			chain = append(chain, msgpackdecoder.NewDecoder(schema))
		default:
			return nil, fmt.Errorf("decoders[%d]: unsupported decoder '%s'", i, name)
		}
	}
	return chain, nil
}

// GetFollowInterval returns the refresh interval of source in continuous mode
func (cfg *SourceConfig) GetFollowInterval() time.Duration {
	if cfg.FollowInterval == 0 {
		return defs.SourceFollowInterval
	}
	return cfg.FollowInterval
}

func fileFormatOf(name string) (filesource.Format, error) {
	switch name {
	case FormatSyslog:
		return filesource.FormatLines, nil
	case FormatMsgpack:
		return filesource.FormatLengthPrefixed, nil
	default:
		return "", fmt.Errorf("unsupported format '%s'", name)
	}
}

// VerifyConfig checks configuration
func (cfg *AnalyzerConfig) VerifyConfig() error {
	if cfg.Threads < 0 {
		return fmt.Errorf(".threads is negative: %d", cfg.Threads)
	}
	return nil
}

// VerifyConfig checks configuration
func (cfg *CacheConfig) VerifyConfig() error {
	if cfg.MaxSize.Bytes() != 0 && cfg.MaxSize < datasize.MB {
		return fmt.Errorf(".maxSize is less than 1MB: %s", cfg.MaxSize.HR())
	}
	return nil
}

// GetMaxBytes returns the cache capacity in bytes
func (cfg *CacheConfig) GetMaxBytes() int64 {
	if cfg.MaxSize.Bytes() == 0 {
		return defs.CacheDefaultMaxBytes
	}
	return int64(cfg.MaxSize.Bytes())
}

// VerifyConfig checks configuration and creates field locators
func (cfg *SearchConfig) VerifyConfig(schema base.LogSchema) ([]base.LogFieldLocator, error) {
	if len(cfg.Fields) == 0 {
		return nil, fmt.Errorf(".fields is empty")
	}
	locators, err := schema.CreateFieldLocatorsByGlob(cfg.Fields)
	if err != nil {
		return nil, fmt.Errorf(".fields%w", err)
	}
	return locators, nil
}

// ConfigStats provides extra stats related to quality of config file
type ConfigStats struct {
	SearchFields []string
	UnusedFields []string // fields not searched by default
}

// Log logs important information or warnings if there is any
func (stats ConfigStats) Log(logger logger.Logger) {
	logger.Infof("default search fields: [%s]", strings.Join(stats.SearchFields, ", "))
	if len(stats.UnusedFields) > 0 {
		logger.Info("fields not searched by default: ", stats.UnusedFields)
	}
}

// LoadConfigFile loads config from the path, creates the schema and verifies all configurations
func LoadConfigFile(filepath string) (*Config, base.LogSchema, ConfigStats, error) {
	cref := &Config{}
	if err := util.UnmarshalYamlFile(filepath, cref); err != nil {
		return nil, base.LogSchema{}, ConfigStats{}, err
	}
	return verifyConfig(cref)
}

// ParseConfig parses config from YAML string, see LoadConfigFile
func ParseConfig(contents string) (*Config, base.LogSchema, ConfigStats, error) {
	cref := &Config{}
	if err := util.UnmarshalYamlString(contents, cref); err != nil {
		return nil, base.LogSchema{}, ConfigStats{}, err
	}
	return verifyConfig(cref)
}

func verifyConfig(cref *Config) (*Config, base.LogSchema, ConfigStats, error) {
	stats := ConfigStats{}
	if len(cref.Schema.Fields) == 0 {
		return nil, base.LogSchema{}, stats, fmt.Errorf("schema: no field defined")
	}
	logger.Infof("create schema with fields: [%s]", strings.Join(cref.Schema.Fields, ", "))
	schema, schemaErr := base.NewLogSchema(cref.Schema.Fields)
	if schemaErr != nil {
		return nil, schema, stats, fmt.Errorf("schema: %w", schemaErr)
	}
	if err := cref.Source.VerifyConfig(); err != nil {
		return nil, schema, stats, fmt.Errorf("source%w", err)
	}
	if _, err := cref.Source.NewDecoder(schema); err != nil {
		return nil, schema, stats, fmt.Errorf("source.%w", err)
	}
	if err := cref.Analyzer.VerifyConfig(); err != nil {
		return nil, schema, stats, fmt.Errorf("analyzer%w", err)
	}
	if err := cref.Cache.VerifyConfig(); err != nil {
		return nil, schema, stats, fmt.Errorf("cache%w", err)
	}
	locators, searchErr := cref.Search.VerifyConfig(schema)
	if searchErr != nil {
		return nil, schema, stats, fmt.Errorf("search%w", searchErr)
	}

	searched := make([]bool, schema.GetMaxFields())
	for _, loc := range locators {
		searched[loc] = true
		stats.SearchFields = append(stats.SearchFields, loc.Name(schema))
	}
	for i, name := range schema.GetFieldNames() {
		if !searched[i] {
			stats.UnusedFields = append(stats.UnusedFields, name)
		}
	}
	return cref, schema, stats, nil
}
