package analyzer

import (
	"math"
	"strings"
	"testing"

	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promext"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/relex/slog-analyzer/base"
	"github.com/relex/slog-analyzer/defs"
	"github.com/relex/slog-analyzer/source/memsource"
	"github.com/stretchr/testify/assert"
)

type testContinuousAnalyzer struct {
	*ContinuousAnalyzer
	inner       testDispatcher
	observer    *recordingObserver
	dumpMetrics func() string
}

func newTestContinuousAnalyzer(t *testing.T, source *memsource.Source) testContinuousAnalyzer {
	defs.EnableTestMode()
	inner := newTestDispatcher(t, source, 2, nil)
	mfactory := promreg.NewMetricFactory(strings.ToLower(t.Name())+"_decorator_", nil, nil)
	analyzer := NewContinuousAnalyzer(logger.WithField("test", t.Name()), inner, mfactory)
	observer := newRecordingObserver()
	analyzer.AddObserver(observer)
	return testContinuousAnalyzer{
		ContinuousAnalyzer: analyzer,
		inner:              inner,
		observer:           observer,
		dumpMetrics:        func() string { return promext.DumpMetrics("", true, false, mfactory) },
	}
}

func (c testContinuousAnalyzer) shutdown() {
	c.Shutdown()
	c.inner.Shutdown()
}

func newContinuousParams(source base.LogSource, from int, count int) base.RequestParameters {
	params := newTestParams(source, from, count, `message (\d+)`, 2)
	params.Continuous = true
	params.Aliases = []string{"number"}
	return params
}

func TestContinuousTailing(t *testing.T) {
	source := newTestSource(100)
	c := newTestContinuousAnalyzer(t, source)
	defer c.shutdown()
	consumer := NewChannelConsumer()
	defer consumer.Close()

	params := newContinuousParams(source, 0, 100)
	id := c.RequestAnalyze(consumer, params, newTestMetadata(params))
	assert.Equal(t, base.RequestID(0), id)
	assert.Equal(t, []base.RequestID{id}, c.observer.startedIDs())

	// the end of a full pass is reported as progress
	n := readNotification(t, consumer)
	assert.Equal(t, id, n.RequestID)
	assert.Equal(t, base.RequestProgress, n.State)
	assert.Equal(t, 100, n.Progress)
	assert.Equal(t, sequence(0, 100), matchedIndexes(n.Matches))
	assertNoNotification(t, consumer, testQuietPeriod)

	appendTestRecords(source, 100, 150)
	n = readNotification(t, consumer)
	assert.Equal(t, id, n.RequestID)
	assert.Equal(t, base.RequestProgress, n.State)
	assert.Equal(t, 100, n.Progress)
	assert.Equal(t, sequence(100, 150), matchedIndexes(n.Matches))

	// multi-chunk passes never show progress below 100 after the first pass
	appendTestRecords(source, 150, 10150)
	var indexes []int
	for len(indexes) < 10000 {
		n = readNotification(t, consumer)
		assert.Equal(t, base.RequestProgress, n.State)
		assert.Equal(t, 100, n.Progress)
		indexes = append(indexes, matchedIndexes(n.Matches)...)
	}
	assert.Equal(t, sequence(150, 10150), indexes)

	c.CancelRequest(consumer, id)
	assert.Equal(t, id, c.observer.waitFinished(t))
	appendTestRecords(source, 10150, 10200)
	assertNoNotification(t, consumer, testQuietPeriod)

	metrics := c.dumpMetrics()
	assert.Contains(t, metrics, "continuous_active_sessions 0\n")
	assert.Contains(t, metrics, "continuous_tail_passes_total 2\n")
}

func TestContinuousFirstPassProgress(t *testing.T) {
	source := newTestSource(10000)
	c := newTestContinuousAnalyzer(t, source)
	defer c.shutdown()
	consumer := NewChannelConsumer()
	defer consumer.Close()

	params := newContinuousParams(source, 0, 10000)
	id := c.RequestAnalyze(consumer, params, newTestMetadata(params))

	var progresses []int
	for {
		n := readNotification(t, consumer)
		assert.Equal(t, id, n.RequestID)
		assert.NotEqual(t, base.RequestSuccess, n.State)
		progresses = append(progresses, n.Progress)
		if len(progresses) == 3 {
			break
		}
	}
	assert.Less(t, progresses[0], 100)
	assert.Equal(t, 100, progresses[2])
	c.CancelRequest(consumer, id)
}

func TestContinuousSourceShrank(t *testing.T) {
	source := newTestSource(100)
	c := newTestContinuousAnalyzer(t, source)
	defer c.shutdown()
	consumer := NewChannelConsumer()
	defer consumer.Close()

	params := newContinuousParams(source, 0, 100)
	id := c.RequestAnalyze(consumer, params, newTestMetadata(params))
	n := readNotification(t, consumer)
	assert.Equal(t, base.RequestProgress, n.State)

	source.Truncate(50)
	n = readNotification(t, consumer)
	assert.Equal(t, id, n.RequestID)
	assert.Equal(t, base.RequestError, n.State)
	assert.Equal(t, id, c.observer.waitFinished(t))

	appendTestRecords(source, 50, 200)
	assertNoNotification(t, consumer, testQuietPeriod)
}

func TestContinuousPassThrough(t *testing.T) {
	source := newTestSource(100)
	c := newTestContinuousAnalyzer(t, source)
	defer c.shutdown()
	consumer := NewChannelConsumer()
	defer consumer.Close()

	// occupy an ID in the inner controller so that IDs differ
	direct := newTestParams(source, 0, 10, `message`, 1)
	assert.Equal(t, base.RequestID(0), c.inner.RequestAnalyze(consumer, direct, newTestMetadata(direct)))
	assert.Equal(t, base.RequestSuccess, readNotification(t, consumer).State)

	params := newTestParams(source, 50, 100, `message (\d+)`, 2)
	params.PatternText = "numbers"
	id := c.RequestAnalyze(consumer, params, newTestMetadata(params))
	assert.Equal(t, base.RequestID(0), id)

	n := readNotification(t, consumer)
	assert.Equal(t, id, n.RequestID)
	assert.Equal(t, base.RequestSuccess, n.State)
	assert.Equal(t, sequence(50, 100), matchedIndexes(n.Matches))
	assert.Equal(t, id, c.observer.waitFinished(t))
	assert.Equal(t, []string{"numbers"}, c.observer.patterns)

	appendTestRecords(source, 100, 200)
	assertNoNotification(t, consumer, testQuietPeriod)
	assert.Equal(t, 2, c.MaximumThreads())
}

func TestContinuousRejected(t *testing.T) {
	source := newTestSource(100)
	c := newTestContinuousAnalyzer(t, source)
	defer c.shutdown()
	consumer := NewChannelConsumer()
	defer consumer.Close()

	params := newContinuousParams(source, 100, 10)
	assert.Equal(t, base.InvalidRequestID, c.RequestAnalyze(consumer, params, newTestMetadata(params)))
	assert.Equal(t, base.InvalidRequestID, c.RequestAnalyze(nil, params, newTestMetadata(params)))
	assert.Empty(t, c.observer.startedIDs())

	params = newContinuousParams(source, 0, 100)
	assert.Equal(t, base.RequestID(0), c.RequestAnalyze(consumer, params, newTestMetadata(params)))
}

func TestContinuousCancelByOtherClient(t *testing.T) {
	source := newTestSource(100)
	c := newTestContinuousAnalyzer(t, source)
	defer c.shutdown()
	consumer := NewChannelConsumer()
	defer consumer.Close()
	other := NewChannelConsumer()
	defer other.Close()

	params := newContinuousParams(source, 0, 100)
	id := c.RequestAnalyze(consumer, params, newTestMetadata(params))
	readNotification(t, consumer)

	c.CancelRequest(other, id)
	c.CancelRequest(consumer, id+1)
	appendTestRecords(source, 100, 120)
	n := readNotification(t, consumer)
	assert.Equal(t, sequence(100, 120), matchedIndexes(n.Matches))
}

func TestContinuousClientGone(t *testing.T) {
	source := newTestSource(100)
	c := newTestContinuousAnalyzer(t, source)
	defer c.shutdown()
	consumer := NewChannelConsumer()

	params := newContinuousParams(source, 0, 100)
	id := c.RequestAnalyze(consumer, params, newTestMetadata(params))
	readNotification(t, consumer)

	consumer.Close()
	assert.Equal(t, id, c.observer.waitFinished(t))
	assert.Contains(t, c.dumpMetrics(), "continuous_active_sessions 0\n")
}

func TestContinuousShutdown(t *testing.T) {
	source := newTestSource(100)
	c := newTestContinuousAnalyzer(t, source)
	consumer := NewChannelConsumer()
	defer consumer.Close()

	params := newContinuousParams(source, 0, 100)
	id := c.RequestAnalyze(consumer, params, newTestMetadata(params))
	readNotification(t, consumer)

	c.Shutdown()
	assert.Equal(t, id, c.observer.waitFinished(t))
	assert.Equal(t, base.InvalidRequestID, c.RequestAnalyze(consumer, params, newTestMetadata(params)))

	// the inner controller keeps running
	direct := newTestParams(source, 0, 10, `message`, 1)
	assert.NotEqual(t, base.InvalidRequestID, c.inner.RequestAnalyze(consumer, direct, newTestMetadata(direct)))
	c.inner.Shutdown()
}

func TestContinuousMaximumCount(t *testing.T) {
	source := newTestSource(100)
	c := newTestContinuousAnalyzer(t, source)
	defer c.shutdown()
	consumer := NewChannelConsumer()
	defer consumer.Close()

	params := newContinuousParams(source, 20, math.MaxInt)
	id := c.RequestAnalyze(consumer, params, newTestMetadata(params))
	assert.NotEqual(t, base.InvalidRequestID, id)

	n := readNotification(t, consumer)
	assert.Equal(t, base.RequestProgress, n.State)
	assert.Equal(t, sequence(20, 100), matchedIndexes(n.Matches))

	appendTestRecords(source, 100, 130)
	n = readNotification(t, consumer)
	assert.Equal(t, id, n.RequestID)
	assert.Equal(t, sequence(100, 130), matchedIndexes(n.Matches))
	c.CancelRequest(consumer, id)
}
