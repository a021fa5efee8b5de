package analyzer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promext"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/relex/slog-analyzer/base"
	"github.com/relex/slog-analyzer/defs"
	"github.com/relex/slog-analyzer/msgcache"
	"github.com/relex/slog-analyzer/source/memsource"
	"github.com/stretchr/testify/assert"
)

var testSchema = base.MustNewLogSchema([]string{"app", "log"})

// pipeDecoder decodes "app|log"
type pipeDecoder struct{}

func (pipeDecoder) Decode(raw []byte) (*base.LogRecord, error) {
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return nil, errors.New("missing separator")
	}
	return testSchema.NewRecord(time.Time{}, base.LogFields{parts[0], parts[1]}), nil
}

func appendTestRecords(source *memsource.Source, from int, to int) {
	records := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		records = append(records, fmt.Sprintf("app|message %d", i))
	}
	source.AppendStrings(records...)
}

func newTestSource(numRecords int) *memsource.Source {
	source := memsource.New()
	appendTestRecords(source, 0, numRecords)
	return source
}

type testDispatcher struct {
	*Dispatcher
	dumpMetrics func() string
}

func newTestDispatcher(t *testing.T, source base.LogSource, threads int, gate *completionGate) testDispatcher {
	mfactory := promreg.NewMetricFactory(strings.ToLower(t.Name())+"_", nil, nil)
	cache := msgcache.NewCache(logger.WithField("test", t.Name()), source, pipeDecoder{}, testSchema, mfactory,
		defs.CacheDefaultMaxBytes, true)
	options := DispatcherOptions{Threads: threads}
	if gate != nil {
		options.completionHook = gate.hook
	}
	return testDispatcher{
		Dispatcher:  NewDispatcher(logger.WithField("test", t.Name()), cache, mfactory, options),
		dumpMetrics: func() string { return promext.DumpMetrics("", true, false, mfactory) },
	}
}

// sync waits for all previously posted events to be processed by the dispatcher loop
func (d testDispatcher) sync() {
	d.CancelRequest(nil, base.InvalidRequestID)
}

func newTestParams(source base.LogSource, from int, count int, pattern string, threads int) base.RequestParameters {
	return base.RequestParameters{
		Source:       source,
		From:         from,
		Count:        count,
		Pattern:      regexp.MustCompile(pattern),
		PatternText:  pattern,
		ThreadCount:  threads,
		Continuous:   false,
		SearchFields: testSchema.MustCreateFieldLocators([]string{"app", "log"}),
		Aliases:      nil,
	}
}

func newTestMetadata(params base.RequestParameters) *base.PatternMetadata {
	return base.NewPatternMetadata(params.Pattern, true)
}

type gatedCompletion struct {
	result chunkResult
	post   func(result chunkResult)
}

// completionGate holds chunk results from worker slots until the test posts them
type completionGate struct {
	completions chan gatedCompletion
}

func newCompletionGate() *completionGate {
	return &completionGate{
		completions: make(chan gatedCompletion, 1000),
	}
}

func (g *completionGate) hook(result chunkResult, post func(result chunkResult)) {
	g.completions <- gatedCompletion{result: result, post: post}
}

func (g *completionGate) next(t *testing.T) gatedCompletion {
	select {
	case c := <-g.completions:
		return c
	case <-time.After(defs.TestReadTimeout):
		assert.FailNow(t, "timeout waiting for chunk completion")
		return gatedCompletion{}
	}
}

// collect waits for the given numbers of completions and returns them by cookie
func (g *completionGate) collect(t *testing.T, count int) map[base.ChunkCookie]gatedCompletion {
	completions := make(map[base.ChunkCookie]gatedCompletion, count)
	for i := 0; i < count; i++ {
		c := g.next(t)
		completions[c.result.cookie] = c
	}
	return completions
}

func (g *completionGate) assertEmpty(t *testing.T, wait time.Duration) {
	select {
	case c := <-g.completions:
		assert.Failf(t, "unexpected chunk completion", "cookie=%d", c.result.cookie)
	case <-time.After(wait):
	}
}

func (c gatedCompletion) release() {
	c.post(c.result)
}

func readNotification(t *testing.T, consumer *ChannelConsumer) base.ProgressNotification {
	select {
	case n, ok := <-consumer.Notifications():
		if !ok {
			assert.FailNow(t, "notification channel closed")
		}
		return n
	case <-time.After(defs.TestReadTimeout):
		assert.FailNow(t, "timeout waiting for notification")
		return base.ProgressNotification{}
	}
}

func assertNoNotification(t *testing.T, consumer *ChannelConsumer, wait time.Duration) {
	select {
	case n := <-consumer.Notifications():
		assert.Failf(t, "unexpected notification", "%+v", n)
	case <-time.After(wait):
	}
}

func matchedIndexes(matches base.MatchesPack) []int {
	indexes := make([]int, len(matches))
	for i, m := range matches {
		indexes[i] = m.Metadata.MsgIndex
	}
	return indexes
}

func sequence(from int, to int) []int {
	list := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		list = append(list, i)
	}
	return list
}

type recordingObserver struct {
	mutex    sync.Mutex
	started  []base.RequestID
	patterns []string
	finished chan base.RequestID
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		finished: make(chan base.RequestID, 100),
	}
}

func (o *recordingObserver) AnalysisStarted(id base.RequestID, patternText string, aliases []string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.started = append(o.started, id)
	o.patterns = append(o.patterns, patternText)
}

func (o *recordingObserver) AnalysisFinished(id base.RequestID) {
	o.finished <- id
}

func (o *recordingObserver) startedIDs() []base.RequestID {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return append([]base.RequestID(nil), o.started...)
}

func (o *recordingObserver) waitFinished(t *testing.T) base.RequestID {
	select {
	case id := <-o.finished:
		return id
	case <-time.After(defs.TestReadTimeout):
		assert.FailNow(t, "timeout waiting for finish")
		return base.InvalidRequestID
	}
}
