package run

import (
	"strings"

	"github.com/relex/gotils/logger"
	"github.com/relex/slog-analyzer/base"
	"github.com/relex/slog-analyzer/defs"
)

// cacheStatusLogger logs changes of cache state which affect search performance
type cacheStatusLogger struct {
	logger logger.Logger
}

func newCacheStatusLogger(parentLogger logger.Logger) *cacheStatusLogger {
	return &cacheStatusLogger{
		logger: parentLogger.WithField(defs.LabelPart, "cache"),
	}
}

func (l *cacheStatusLogger) EnabledChanged(enabled bool) {
	l.logger.Infof("enabled=%t", enabled)
}

func (l *cacheStatusLogger) LoadChanged(percent int) {
	if percent%25 == 0 {
		l.logger.Debugf("load %d%%", percent)
	}
}

func (l *cacheStatusLogger) CurrentSizeMBChanged(sizeMB uint64) {}

func (l *cacheStatusLogger) MaxSizeMBChanged(sizeMB uint64) {
	l.logger.Infof("max size %d MB", sizeMB)
}

func (l *cacheStatusLogger) FullChanged(full bool) {
	if full {
		l.logger.Warn("full: further records are decoded on every search")
	} else {
		l.logger.Info("no longer full")
	}
}

// analysisLogger logs start and finish of top-level analysis sessions
type analysisLogger struct {
	logger logger.Logger
}

func newAnalysisLogger(parentLogger logger.Logger) *analysisLogger {
	return &analysisLogger{
		logger: parentLogger.WithField(defs.LabelPart, "observer"),
	}
}

func (l *analysisLogger) AnalysisStarted(id base.RequestID, patternText string, aliases []string) {
	if len(aliases) > 0 {
		l.logger.Infof("started %d: %s (aliases: %s)", id, patternText, strings.Join(aliases, ", "))
	} else {
		l.logger.Infof("started %d: %s", id, patternText)
	}
}

func (l *analysisLogger) AnalysisFinished(id base.RequestID) {
	l.logger.Infof("finished %d", id)
}
