package run

import (
	"fmt"

	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/relex/slog-analyzer/analyzer"
	"github.com/relex/slog-analyzer/base"
	"github.com/relex/slog-analyzer/defs"
	"github.com/relex/slog-analyzer/msgcache"
	"github.com/relex/slog-analyzer/source/filesource"
)

// Loader loads configuration from file and prepares the environments to be launched
//
// Loader should take care of everything derived from the config file, but not trigger anything automatically
type Loader struct {
	Config
	Schema        base.LogSchema
	SearchFields  []base.LogFieldLocator // default fields to search in, may be overridden per search
	Stats         ConfigStats
	MetricCreator promreg.MetricCreator
}

// Analysis is a launched analysis stack over one log file
//
// The controllers are exposed in place of a simple main loop to allow customization, see Search()
type Analysis struct {
	logger     logger.Logger
	schema     base.LogSchema
	fields     []base.LogFieldLocator
	features   base.AnalysisFeatures
	Source     *filesource.Source
	Cache      *msgcache.Cache
	Dispatcher *analyzer.Dispatcher
	Controller *analyzer.ContinuousAnalyzer
	stopFollow *channels.SignalAwaitable // nil unless following
}

// NewLoaderFromConfigFile loads and verifies the config file
func NewLoaderFromConfigFile(filepath string, metricPrefix string) (*Loader, error) {
	config, schema, stats, err := LoadConfigFile(filepath)
	if err != nil {
		return nil, err
	}
	return NewLoader(config, schema, stats, promreg.NewMetricFactory(metricPrefix, nil, nil))
}

// NewLoader creates a Loader from verified config
func NewLoader(config *Config, schema base.LogSchema, stats ConfigStats, metricCreator promreg.MetricCreator) (*Loader, error) {
	fields, err := config.Search.VerifyConfig(schema)
	if err != nil {
		return nil, fmt.Errorf("search%w", err)
	}
	return &Loader{
		Config:        *config,
		Schema:        schema,
		SearchFields:  fields,
		Stats:         stats,
		MetricCreator: metricCreator,
	}, nil
}

// Launch opens the source file and starts all controllers in background
//
// If follow is true, the source file is re-indexed periodically to pick up appended records
func (loader *Loader) Launch(parentLogger logger.Logger, follow bool) (*Analysis, error) {
	alogger := parentLogger.WithField(defs.LabelComponent, "Analysis")
	loader.Stats.Log(alogger)

	decoder, err := loader.Source.NewDecoder(loader.Schema)
	if err != nil {
		return nil, fmt.Errorf("source.%w", err)
	}
	source, err := filesource.Open(parentLogger, loader.Source.Path, loader.Source.FileFormat())
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}

	cache := msgcache.NewCache(parentLogger, source, decoder, loader.Schema, loader.MetricCreator,
		loader.Cache.GetMaxBytes(), loader.Cache.Enabled)
	cache.AddListener(newCacheStatusLogger(alogger))

	dispatcher := analyzer.NewDispatcher(parentLogger, cache, loader.MetricCreator, analyzer.DispatcherOptions{
		Threads:  loader.Analyzer.Threads,
		Features: loader.Analyzer.Features,
	})
	controller := analyzer.NewContinuousAnalyzer(parentLogger, dispatcher, loader.MetricCreator)
	controller.AddObserver(newAnalysisLogger(alogger))

	a := &Analysis{
		logger:     alogger,
		schema:     loader.Schema,
		fields:     loader.SearchFields,
		features:   loader.Analyzer.Features,
		Source:     source,
		Cache:      cache,
		Dispatcher: dispatcher,
		Controller: controller,
		stopFollow: nil,
	}
	if follow {
		a.stopFollow = source.Follow(loader.Source.GetFollowInterval())
	}
	alogger.Infof("launched over %d records with %d threads", source.Size(), dispatcher.MaximumThreads())
	return a, nil
}

// Shutdown stops following the source, stops all controllers and closes the source
func (a *Analysis) Shutdown() {
	if a.stopFollow != nil {
		a.stopFollow.Signal()
	}
	a.Controller.Shutdown()
	a.Dispatcher.Shutdown()
	if err := a.Source.Close(); err != nil {
		a.logger.Warn("failed to close source: ", err)
	}
	a.logger.Info("cache: ", a.Cache.StatusString())
}
