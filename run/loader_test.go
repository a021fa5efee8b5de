package run

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promext"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/relex/slog-analyzer/base"
	"github.com/relex/slog-analyzer/defs"
	"github.com/relex/slog-analyzer/testdata"
	"github.com/stretchr/testify/assert"
)

func launchTestAnalysis(t *testing.T, path string, follow bool) (*Analysis, *promreg.MetricFactory) {
	defs.EnableTestMode()
	config, schema, stats, err := LoadConfigFile(testdata.GetConfigPath())
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	config.Source.Path = path
	config.Source.FollowInterval = 0
	mfactory := promreg.NewMetricFactory(strings.ToLower(t.Name())+"_", nil, nil)
	loader, err := NewLoader(config, schema, stats, mfactory)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	analysis, err := loader.Launch(logger.WithField("test", t.Name()), follow)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	return analysis, mfactory
}

// collectMatches runs a finite search and returns all matches in order of notifications
func collectMatches(t *testing.T, analysis *Analysis, req SearchRequest) base.MatchesPack {
	var matches base.MatchesPack
	var last base.ProgressNotification
	err := analysis.Search(req, channels.NewSignalAwaitable(), func(n base.ProgressNotification) {
		matches = append(matches, n.Matches...)
		last = n
	})
	assert.NoError(t, err)
	assert.Equal(t, base.RequestSuccess, last.State)
	assert.Equal(t, 100, last.Progress)
	return matches
}

func indexesOf(matches base.MatchesPack) []int {
	indexes := make([]int, len(matches))
	for i, m := range matches {
		indexes[i] = m.Metadata.MsgIndex
	}
	return indexes
}

func TestSearchSample(t *testing.T) {
	analysis, mfactory := launchTestAnalysis(t, testdata.GetSampleLogPath(), false)
	defer analysis.Shutdown()
	assert.Equal(t, 10, analysis.Source.Size())
	assert.Equal(t, 2, analysis.Controller.MaximumThreads())

	matches := collectMatches(t, analysis, SearchRequest{Pattern: `took (?P<PYData_latency>[\d.]+)ms`})
	assert.Equal(t, []int{2, 5, 7}, indexesOf(matches))
	if assert.Len(t, matches, 3) {
		assert.Equal(t, map[string]float64{"latency": 12.5}, matches[0].Metadata.Plot.YData)
		assert.Equal(t, "12.5", matches[0].Matches[0].Text)
	}

	// second search hits the cache
	matches = collectMatches(t, analysis, SearchRequest{Pattern: `user=(\w+)`, From: 3, Count: 5, Threads: 1})
	assert.Equal(t, []int{3, 5, 6, 7}, indexesOf(matches))
	assert.Greater(t, analysis.Cache.Stats().Hits, int64(0))

	metrics := promext.DumpMetrics("", true, false, mfactory)
	assert.Contains(t, metrics, `requests_total{result="success"} 2`)
	assert.Contains(t, metrics, "records_processed_total 15\n")
}

func TestSearchFields(t *testing.T) {
	analysis, _ := launchTestAnalysis(t, testdata.GetSampleLogPath(), false)
	defer analysis.Shutdown()

	matches := collectMatches(t, analysis, SearchRequest{Pattern: `^orders$`, Fields: []string{"app"}})
	assert.Equal(t, []int{4, 5}, indexesOf(matches))

	matches = collectMatches(t, analysis, SearchRequest{Pattern: `^orders`})
	assert.Equal(t, []int{4, 5}, indexesOf(matches))

	matches = collectMatches(t, analysis, SearchRequest{Pattern: `^main$`, Fields: []string{"s*"}})
	assert.Len(t, matches, 10)
}

func TestSearchInvalid(t *testing.T) {
	analysis, _ := launchTestAnalysis(t, testdata.GetSampleLogPath(), false)
	defer analysis.Shutdown()
	ignore := func(n base.ProgressNotification) { assert.Fail(t, "unexpected notification") }

	err := analysis.Search(SearchRequest{Pattern: `(`}, channels.NewSignalAwaitable(), ignore)
	assert.ErrorIs(t, err, base.ErrInvalidPattern)

	err = analysis.Search(SearchRequest{Pattern: `x`, From: 10}, channels.NewSignalAwaitable(), ignore)
	assert.ErrorIs(t, err, base.ErrEmptyRange)

	err = analysis.Search(SearchRequest{Pattern: `x`, From: -1}, channels.NewSignalAwaitable(), ignore)
	assert.ErrorIs(t, err, base.ErrEmptyRange)

	err = analysis.Search(SearchRequest{Pattern: `x`, Fields: []string{"nope*"}}, channels.NewSignalAwaitable(), ignore)
	assert.ErrorContains(t, err, "matches no field")
}

func TestSearchContinuous(t *testing.T) {
	lines := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		lines = append(lines, testdata.NewSyslogLine(i, "app", fmt.Sprintf("message %d", i)))
	}
	path := testdata.WriteSyslogFile(t, lines[:5])
	analysis, _ := launchTestAnalysis(t, path, true)
	defer analysis.Shutdown()

	notifications := make(chan base.ProgressNotification, 100)
	stop := channels.NewSignalAwaitable()
	searchErr := make(chan error, 1)
	go func() {
		searchErr <- analysis.Search(SearchRequest{Pattern: `message (\d+)`, Continuous: true}, stop,
			func(n base.ProgressNotification) { notifications <- n })
	}()

	readIndexes := func(until int) []int {
		var indexes []int
		for len(indexes) < until {
			select {
			case n := <-notifications:
				assert.Equal(t, base.RequestProgress, n.State)
				indexes = append(indexes, indexesOf(n.Matches)...)
			case <-time.After(defs.TestReadTimeout):
				assert.FailNow(t, "timeout waiting for notification")
			}
		}
		return indexes
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, readIndexes(5))

	testdata.AppendSyslogFile(t, path, lines[5:])
	assert.Equal(t, []int{5, 6, 7, 8, 9}, readIndexes(5))

	stop.Signal()
	select {
	case err := <-searchErr:
		assert.NoError(t, err)
	case <-time.After(defs.TestReadTimeout):
		assert.FailNow(t, "timeout waiting for search to stop")
	}
}

func TestLaunchMissingFile(t *testing.T) {
	config, schema, stats, err := LoadConfigFile(testdata.GetConfigPath())
	if !assert.NoError(t, err) {
		return
	}
	config.Source.Path = "/nonexistent/test.log"
	loader, err := NewLoader(config, schema, stats, promreg.NewMetricFactory("launchmissing_", nil, nil))
	if assert.NoError(t, err) {
		_, err = loader.Launch(logger.Root(), false)
		assert.ErrorContains(t, err, "no such file")
	}
}
