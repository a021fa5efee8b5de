package analyzer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/relex/slog-analyzer/base"
	"github.com/relex/slog-analyzer/base/bsupport"
	"github.com/relex/slog-analyzer/defs"
	"github.com/relex/slog-analyzer/util"
)

// ContinuousAnalyzer decorates a base.AnalysisController to keep analyzing records appended to the source
//
// A continuous session issues a new sub-request to the inner controller for records appended since the previous
// pass. Its client never receives RequestSuccess; the end of each pass is reported as RequestProgress at 100.
// Non-continuous requests are passed through with their IDs translated.
type ContinuousAnalyzer struct {
	bsupport.WorkerBase[func()]
	inner     base.AnalysisController
	mailbox   *util.Mailbox[func()]
	observers []base.AnalysisObserver
	sessions  map[base.RequestID]*continuousSession
	nextID    base.RequestID
	metrics   continuousMetrics
	stopOnce  sync.Once
}

type continuousSession struct {
	topID                base.RequestID
	subID                base.RequestID // InvalidRequestID if no sub-request is outstanding
	client               base.AnalysisConsumer
	consumer             *sessionConsumer
	logger               logger.Logger
	params               base.RequestParameters
	metadata             *base.PatternMetadata
	watermark            int // end of the range already requested from the inner controller
	continuousModeActive bool
	retry                *time.Timer
}

// sessionConsumer receives notifications of sub-requests in the inner controller and forwards them to the loop
type sessionConsumer struct {
	owner  *ContinuousAnalyzer
	topID  base.RequestID
	client base.AnalysisConsumer
	alive  atomic.Bool
}

func (c *sessionConsumer) ProgressNotification(n base.ProgressNotification) {
	c.owner.mailbox.Push(func() { c.owner.onInnerNotification(c.topID, n) })
}

func (c *sessionConsumer) Alive() bool {
	return c.alive.Load() && c.client.Alive()
}

// NewContinuousAnalyzer creates a ContinuousAnalyzer over the inner controller and launches its loop
func NewContinuousAnalyzer(parentLogger logger.Logger, inner base.AnalysisController, metricCreator promreg.MetricCreator) *ContinuousAnalyzer {
	mailbox := util.NewMailbox[func()](defs.ControllerMailboxInitialSize)
	c := &ContinuousAnalyzer{
		WorkerBase: bsupport.NewWorkerBase(parentLogger.WithField(defs.LabelComponent, "ContinuousAnalyzer"), mailbox.Out()),
		inner:      inner,
		mailbox:    mailbox,
		observers:  nil,
		sessions:   make(map[base.RequestID]*continuousSession, 10),
		nextID:     0,
		metrics:    newContinuousMetrics(metricCreator),
	}
	c.InitInternal(c.onCommand, c.onTick, c.onStop)
	c.Launch()
	return c
}

// AddObserver registers an observer of session start and finish
func (c *ContinuousAnalyzer) AddObserver(observer base.AnalysisObserver) {
	c.call(func() { c.observers = append(c.observers, observer) })
}

// RequestAnalyze starts a session by issuing the first sub-request to the inner controller
func (c *ContinuousAnalyzer) RequestAnalyze(client base.AnalysisConsumer, params base.RequestParameters, metadata *base.PatternMetadata) base.RequestID {
	id := base.InvalidRequestID
	c.call(func() { id = c.onRequestAnalyze(client, params, metadata) })
	return id
}

// CancelRequest cancels the outstanding sub-request and finishes the session if it's started by the client
func (c *ContinuousAnalyzer) CancelRequest(client base.AnalysisConsumer, id base.RequestID) {
	c.call(func() { c.onCancelRequest(client, id) })
}

// MaximumThreads returns the maximum threads of the inner controller
func (c *ContinuousAnalyzer) MaximumThreads() int {
	return c.inner.MaximumThreads()
}

// Shutdown cancels all sessions and stops the loop. The inner controller is not stopped.
func (c *ContinuousAnalyzer) Shutdown() {
	c.stopOnce.Do(func() {
		c.mailbox.Close()
	})
	if !c.Stopped().Wait(defs.WorkerStopTimeout) {
		c.Logger().Errorf("failed to stop in %s", defs.WorkerStopTimeout)
	}
}

// call runs the function in loop and waits for it, or does nothing after shutdown
func (c *ContinuousAnalyzer) call(f func()) {
	done := make(chan struct{})
	if !c.mailbox.Push(func() { f(); close(done) }) {
		c.Logger().Warn("called after shutdown")
		return
	}
	<-done
}

func (c *ContinuousAnalyzer) onCommand(command func()) {
	command()
}

// onTick finishes sessions of dead clients, whose sub-requests are silently dropped by the inner controller
func (c *ContinuousAnalyzer) onTick() {
	for _, s := range c.sessions {
		if !s.client.Alive() {
			s.logger.Info("drop session: client is gone")
			c.cancelSession(s)
		}
	}
}

func (c *ContinuousAnalyzer) onStop() {
	for _, s := range c.sessions {
		c.cancelSession(s)
	}
	c.Logger().Info("stopped")
}

func (c *ContinuousAnalyzer) onRequestAnalyze(client base.AnalysisConsumer, params base.RequestParameters, metadata *base.PatternMetadata) base.RequestID {
	if client == nil || params.Source == nil {
		c.Logger().Warn("rejected request: nil client or source")
		return base.InvalidRequestID
	}
	topID := c.nextID
	consumer := &sessionConsumer{owner: c, topID: topID, client: client}
	consumer.alive.Store(true)

	// clamp first so that the watermark is exactly the end of the first sub-request
	subParams := params
	subParams.Count = util.RangeEnd(params.From, params.Count, params.Source.Size()) - params.From
	subID := c.inner.RequestAnalyze(consumer, subParams, metadata)
	if subID == base.InvalidRequestID {
		return base.InvalidRequestID
	}
	c.nextID++

	s := &continuousSession{
		topID:                topID,
		subID:                subID,
		client:               client,
		consumer:             consumer,
		logger:               c.Logger().WithField(defs.LabelRequest, topID),
		params:               params,
		metadata:             metadata,
		watermark:            params.From + subParams.Count,
		continuousModeActive: false,
		retry:                nil,
	}
	c.sessions[topID] = s
	c.metrics.activeSessions.Inc()
	s.logger.Infof("start session continuous=%t sub-request=%d watermark=%d", params.Continuous, subID, s.watermark)
	for _, observer := range c.observers {
		observer.AnalysisStarted(topID, params.PatternText, params.Aliases)
	}
	return topID
}

func (c *ContinuousAnalyzer) onCancelRequest(client base.AnalysisConsumer, topID base.RequestID) {
	s, ok := c.sessions[topID]
	if !ok {
		c.Logger().Debugf("cancel: %v: %d", base.ErrUnknownRequest, topID)
		return
	}
	if s.client != client {
		s.logger.Warn("cancel: requested by another client")
		return
	}
	s.logger.Info("cancelled")
	c.cancelSession(s)
}

func (c *ContinuousAnalyzer) onInnerNotification(topID base.RequestID, n base.ProgressNotification) {
	s, ok := c.sessions[topID]
	if !ok || n.RequestID != s.subID {
		c.Logger().Debugf("ignore notification of stale sub-request %d, session %d", n.RequestID, topID)
		return
	}
	out := n
	out.RequestID = s.topID

	if !s.params.Continuous {
		c.forward(s, out)
		if n.State != base.RequestProgress {
			c.finishSession(s)
		}
		return
	}

	switch n.State {
	case base.RequestProgress:
		if s.continuousModeActive {
			out.Progress = 100
		}
		c.forward(s, out)
	case base.RequestError:
		c.forward(s, out)
		c.finishSession(s)
	case base.RequestSuccess:
		out.State = base.RequestProgress
		out.Progress = 100
		if !c.forward(s, out) {
			return
		}
		s.continuousModeActive = true
		s.subID = base.InvalidRequestID
		c.tryExtend(s)
	default:
		s.logger.Panicf("unknown state %d", n.State)
	}
}

// tryExtend issues a sub-request for records after the watermark, or schedules a retry if there is none
func (c *ContinuousAnalyzer) tryExtend(s *continuousSession) {
	size := s.params.Source.Size()
	switch {
	case size > s.watermark:
		params := s.params
		params.From = s.watermark
		params.Count = size - s.watermark
		subID := c.inner.RequestAnalyze(s.consumer, params, s.metadata)
		if subID == base.InvalidRequestID {
			c.failSession(s, fmt.Errorf("sub-request of [%d, %d) rejected", s.watermark, size))
			return
		}
		s.logger.Debugf("extend to [%d, %d) by sub-request %d", s.watermark, size, subID)
		s.subID = subID
		s.watermark = size
		c.metrics.tailPasses.Inc()
	case size == s.watermark:
		c.metrics.tailRetries.Inc()
		s.retry = time.AfterFunc(defs.TailRetryInterval, func() {
			c.mailbox.Push(func() { c.onRetry(s) })
		})
	default:
		c.failSession(s, fmt.Errorf("%w: size %d < watermark %d", base.ErrSourceShrank, size, s.watermark))
	}
}

func (c *ContinuousAnalyzer) onRetry(s *continuousSession) {
	if c.sessions[s.topID] != s || s.retry == nil {
		return
	}
	s.retry = nil
	if !s.client.Alive() {
		s.logger.Info("drop session: client is gone")
		c.finishSession(s)
		return
	}
	c.tryExtend(s)
}

// forward delivers the notification to the client, or finishes the session and returns false if the client is gone
func (c *ContinuousAnalyzer) forward(s *continuousSession, n base.ProgressNotification) bool {
	if !s.client.Alive() {
		s.logger.Info("drop session: client is gone")
		c.cancelSession(s)
		return false
	}
	s.client.ProgressNotification(n)
	return true
}

func (c *ContinuousAnalyzer) failSession(s *continuousSession, err error) {
	s.logger.Errorf("session failed: %v", err)
	c.forward(s, base.ProgressNotification{
		RequestID: s.topID,
		State:     base.RequestError,
		Progress:  0,
		Matches:   nil,
	})
	c.finishSession(s)
}

func (c *ContinuousAnalyzer) cancelSession(s *continuousSession) {
	if s.subID != base.InvalidRequestID {
		c.inner.CancelRequest(s.consumer, s.subID)
		s.subID = base.InvalidRequestID
	}
	c.finishSession(s)
}

// finishSession deletes the session and informs observers, once
func (c *ContinuousAnalyzer) finishSession(s *continuousSession) {
	if c.sessions[s.topID] != s {
		return
	}
	delete(c.sessions, s.topID)
	s.consumer.alive.Store(false)
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
	c.metrics.activeSessions.Dec()
	s.logger.Info("finished session")
	for _, observer := range c.observers {
		observer.AnalysisFinished(s.topID)
	}
}
