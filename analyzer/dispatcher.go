package analyzer

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/relex/slog-analyzer/base"
	"github.com/relex/slog-analyzer/base/bsupport"
	"github.com/relex/slog-analyzer/defs"
	"github.com/relex/slog-analyzer/msgcache"
	"github.com/relex/slog-analyzer/util"
)

// DispatcherOptions configures a Dispatcher
type DispatcherOptions struct {
	Threads  int // Size of worker pool, 0 for runtime.NumCPU()
	Features base.AnalysisFeatures

	// completionHook intercepts chunk results from worker slots, which are only delivered to the loop by post()
	completionHook func(result chunkResult, post func(result chunkResult))
}

// Dispatcher is a base.AnalysisController running requests on a fixed pool of worker slots
//
// Each request is split into chunks of defs.AnalysisChunkSize records. Chunk results are delivered to the client in
// the order the chunks are issued, regardless of the order of completion. A worker slot which delivers a result is
// given the next chunk of the same request if any remains.
//
// All request state is owned by one event loop. Public methods post commands to it and wait for replies.
type Dispatcher struct {
	bsupport.WorkerBase[func()]
	cache    *msgcache.Cache
	mailbox  *util.Mailbox[func()]
	slots    []*workerSlot
	hook     func(result chunkResult, post func(result chunkResult))
	requests map[base.RequestID]*analysisRequest
	nextID   base.RequestID
	nextSlot int
	metrics  dispatcherMetrics
	stopOnce sync.Once
}

type analysisRequest struct {
	id             base.RequestID
	client         base.AnalysisConsumer
	logger         logger.Logger
	params         base.RequestParameters
	metadata       *base.PatternMetadata
	from           int
	to             int
	nextFrom       int // first record not yet dispatched
	threadCount    int
	requestedCount int
	processedCount int
	lastCookie     base.ChunkCookie
	pending        map[base.ChunkCookie]*pendingResult
	pendingOrder   []base.ChunkCookie // ascending
	umlWarned      bool
}

type pendingResult struct {
	available         bool
	matches           base.MatchesPack
	processed         int
	workerID          base.WorkerID
	umlDuplicateFound bool
}

// NewDispatcher creates a Dispatcher over records staged by the cache and launches its worker pool
func NewDispatcher(parentLogger logger.Logger, cache *msgcache.Cache, metricCreator promreg.MetricCreator,
	options DispatcherOptions,
) *Dispatcher {
	threads := options.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	dispatcherLogger := parentLogger.WithField(defs.LabelComponent, "Dispatcher")
	mailbox := util.NewMailbox[func()](defs.ControllerMailboxInitialSize)
	d := &Dispatcher{
		WorkerBase: bsupport.NewWorkerBase(dispatcherLogger, mailbox.Out()),
		cache:      cache,
		mailbox:    mailbox,
		slots:      make([]*workerSlot, threads),
		hook:       options.completionHook,
		requests:   make(map[base.RequestID]*analysisRequest, 10),
		nextID:     0,
		nextSlot:   0,
		metrics:    newDispatcherMetrics(metricCreator),
	}
	for i := range d.slots {
		d.slots[i] = newWorkerSlot(dispatcherLogger, base.WorkerID(i), options.Features, cache, d.postCompletion)
		d.slots[i].Launch()
	}
	d.InitInternal(d.onCommand, d.onTick, d.onStop)
	d.Launch()
	dispatcherLogger.Infof("launched with %d worker slot(s)", threads)
	return d
}

// RequestAnalyze validates the request and dispatches its first round of chunks
func (d *Dispatcher) RequestAnalyze(client base.AnalysisConsumer, params base.RequestParameters, metadata *base.PatternMetadata) base.RequestID {
	reply := make(chan base.RequestID, 1)
	if !d.mailbox.Push(func() { reply <- d.onRequestAnalyze(client, params, metadata) }) {
		d.Logger().Warn("rejected request after shutdown")
		return base.InvalidRequestID
	}
	return <-reply
}

// CancelRequest deletes the request if it's issued by the client. Chunks in progress are not interrupted but their
// results are discarded.
func (d *Dispatcher) CancelRequest(client base.AnalysisConsumer, id base.RequestID) {
	done := make(chan struct{})
	if !d.mailbox.Push(func() { d.onCancelRequest(client, id); close(done) }) {
		return
	}
	<-done
}

// MaximumThreads returns the size of worker pool
func (d *Dispatcher) MaximumThreads() int {
	return len(d.slots)
}

// Shutdown stops the event loop and waits for all worker slots to finish
//
// Requests still in progress receive no further notifications
func (d *Dispatcher) Shutdown() {
	d.stopOnce.Do(func() {
		d.mailbox.Close()
	})
	if !d.Stopped().Wait(defs.WorkerStopTimeout) {
		d.Logger().Errorf("failed to stop in %s", defs.WorkerStopTimeout)
	}
}

func (d *Dispatcher) onCommand(command func()) {
	command()
}

func (d *Dispatcher) onTick() {
	d.metrics.queuedEvents.Set(int64(d.mailbox.Len()))
	d.metrics.activeRequests.Set(int64(len(d.requests)))
}

func (d *Dispatcher) onStop() {
	for _, slot := range d.slots {
		slot.close()
	}
	for _, slot := range d.slots {
		if !slot.Stopped().Wait(defs.WorkerStopTimeout) {
			slot.Logger().Errorf("failed to stop in %s", defs.WorkerStopTimeout)
		}
	}
	if len(d.requests) > 0 {
		d.Logger().Warnf("stopped with %d request(s) in progress", len(d.requests))
	}
	d.Logger().Info("stopped")
}

// postCompletion is called by worker slots
func (d *Dispatcher) postCompletion(result chunkResult) {
	if d.hook != nil {
		d.hook(result, d.post)
	} else {
		d.post(result)
	}
}

func (d *Dispatcher) post(result chunkResult) {
	d.mailbox.Push(func() { d.onChunkComplete(result) })
}

func (d *Dispatcher) onRequestAnalyze(client base.AnalysisConsumer, params base.RequestParameters, metadata *base.PatternMetadata) base.RequestID {
	if err := d.validateRequest(client, params, metadata); err != nil {
		d.Logger().Warnf("rejected request: %v", err)
		d.metrics.requestsRejected.Inc()
		return base.InvalidRequestID
	}
	from := params.From
	to := util.RangeEnd(params.From, params.Count, params.Source.Size())
	if from < 0 || to <= from {
		d.Logger().Warnf("rejected request: %v: [%d, %d)", base.ErrEmptyRange, from, to)
		d.metrics.requestsRejected.Inc()
		return base.InvalidRequestID
	}

	id := d.nextID
	d.nextID++
	req := &analysisRequest{
		id:             id,
		client:         client,
		logger:         d.Logger().WithField(defs.LabelRequest, id),
		params:         params,
		metadata:       metadata,
		from:           from,
		to:             to,
		nextFrom:       from,
		threadCount:    util.ClampInt(params.ThreadCount, 1, len(d.slots)),
		requestedCount: 0,
		processedCount: 0,
		lastCookie:     -1,
		pending:        make(map[base.ChunkCookie]*pendingResult, len(d.slots)),
		pendingOrder:   make([]base.ChunkCookie, 0, len(d.slots)),
		umlWarned:      false,
	}
	d.requests[req.id] = req
	d.metrics.requestsStarted.Inc()
	d.metrics.activeRequests.Inc()
	req.logger.Infof("start analysis of [%d, %d) with %d thread(s), pattern=%q", from, to, req.threadCount, params.PatternText)

	for i := 0; i < req.threadCount && req.nextFrom < req.to; i++ {
		slot := d.slots[d.nextSlot]
		d.nextSlot = (d.nextSlot + 1) % len(d.slots)
		if err := d.dispatchNext(req, slot); err != nil {
			d.failRequest(req, err)
			// the request is reported through notification, the ID is still valid for the client
			break
		}
	}
	return req.id
}

func (d *Dispatcher) validateRequest(client base.AnalysisConsumer, params base.RequestParameters, metadata *base.PatternMetadata) error {
	switch {
	case client == nil:
		return fmt.Errorf("nil client")
	case !client.Alive():
		return base.ErrConsumerGone
	case params.Pattern == nil:
		return fmt.Errorf("%w: nil pattern", base.ErrInvalidPattern)
	case metadata == nil:
		return fmt.Errorf("%w: nil metadata", base.ErrInvalidPattern)
	case params.Source == nil:
		return fmt.Errorf("nil source")
	case params.Source != d.cache.Source():
		return fmt.Errorf("source is not staged by the cache of this dispatcher")
	case len(params.SearchFields) == 0:
		return fmt.Errorf("no search fields")
	}
	return nil
}

func (d *Dispatcher) onCancelRequest(client base.AnalysisConsumer, id base.RequestID) {
	req, ok := d.requests[id]
	if !ok {
		d.Logger().Debugf("cancel: %v: %d", base.ErrUnknownRequest, id)
		return
	}
	if req.client != client {
		req.logger.Warn("cancel: requested by another client")
		return
	}
	req.logger.Infof("cancelled at %d/%d", req.processedCount, req.to-req.from)
	d.metrics.requestsCancelled.Inc()
	d.deleteRequest(req)
}

func (d *Dispatcher) onChunkComplete(result chunkResult) {
	req, ok := d.requests[result.requestID]
	if !ok {
		d.Logger().Debugf("discard chunk cookie=%d: %v: %d", result.cookie, base.ErrUnknownRequest, result.requestID)
		d.metrics.chunksDiscardedTotal.Inc()
		return
	}
	pending, ok := req.pending[result.cookie]
	if !ok || pending.available {
		req.logger.Panicf("unexpected completion of chunk cookie=%d", result.cookie)
	}
	if result.state == portionError {
		d.failRequest(req, result.err)
		return
	}

	pending.available = true
	pending.matches = result.matches
	pending.processed = result.processed
	pending.umlDuplicateFound = result.umlDuplicateFound
	d.metrics.recordsProcessedTotal.Add(uint64(result.processed))
	d.metrics.matchedRecordsTotal.Add(uint64(len(result.matches)))
	d.drain(req)
}

// drain delivers available results from the earliest cookie and stops at the first unavailable one
func (d *Dispatcher) drain(req *analysisRequest) {
	total := req.to - req.from
	for len(req.pendingOrder) > 0 {
		cookie := req.pendingOrder[0]
		pending := req.pending[cookie]
		if !pending.available {
			break
		}
		req.pendingOrder = req.pendingOrder[1:]
		delete(req.pending, cookie)
		req.processedCount += pending.processed
		if req.processedCount > req.requestedCount {
			req.logger.Panicf("processed %d > requested %d", req.processedCount, req.requestedCount)
		}
		if pending.umlDuplicateFound && !req.umlWarned {
			req.logger.Warn("pattern captures more than one UML request, response or event in a record, only the first is used")
			d.metrics.umlDuplicatesTotal.Inc()
			req.umlWarned = true
		}

		state := base.RequestProgress
		if req.requestedCount == total && req.processedCount == req.requestedCount {
			state = base.RequestSuccess
		}
		if !d.notify(req, base.ProgressNotification{
			RequestID:         req.id,
			State:             state,
			Progress:          req.processedCount * 100 / req.requestedCount,
			Matches:           pending.matches,
			UMLDuplicateFound: pending.umlDuplicateFound,
		}) {
			return
		}
		if state == base.RequestSuccess {
			req.logger.Infof("finished analysis of %d record(s)", req.processedCount)
			d.metrics.requestsSucceeded.Inc()
			d.deleteRequest(req)
			return
		}

		if req.nextFrom < req.to {
			if err := d.dispatchNext(req, d.slots[pending.workerID]); err != nil {
				d.failRequest(req, err)
				return
			}
		}
	}
}

// dispatchNext sends the next chunk of the request to the slot
func (d *Dispatcher) dispatchNext(req *analysisRequest, slot *workerSlot) error {
	if req.params.Source.Size() == 0 {
		return fmt.Errorf("%w: source is empty", base.ErrSourceShrank)
	}
	size := util.MinInt(defs.AnalysisChunkSize, req.to-req.nextFrom)
	req.lastCookie++
	task := chunkTask{
		requestID:    req.id,
		cookie:       req.lastCookie,
		from:         req.nextFrom,
		to:           req.nextFrom + size,
		source:       req.params.Source,
		pattern:      req.params.Pattern,
		metadata:     req.metadata,
		searchFields: req.params.SearchFields,
	}
	req.pending[task.cookie] = &pendingResult{workerID: slot.id}
	req.pendingOrder = append(req.pendingOrder, task.cookie)
	req.nextFrom += size
	req.requestedCount += size
	req.logger.Debugf("dispatch cookie=%d range=[%d, %d) to worker %d", task.cookie, task.from, task.to, slot.id)
	d.metrics.chunksDispatchedTotal.Inc()
	slot.enqueue(task)
	return nil
}

func (d *Dispatcher) failRequest(req *analysisRequest, err error) {
	req.logger.Errorf("analysis failed: %v", err)
	d.metrics.requestsFailed.Inc()
	d.notify(req, base.ProgressNotification{
		RequestID: req.id,
		State:     base.RequestError,
		Progress:  0,
		Matches:   nil,
	})
	d.deleteRequest(req)
}

// notify delivers the notification if the client is alive, or drops the request and returns false
func (d *Dispatcher) notify(req *analysisRequest, n base.ProgressNotification) bool {
	if !req.client.Alive() {
		req.logger.Info("drop request: client is gone")
		d.metrics.requestsDropped.Inc()
		d.deleteRequest(req)
		return false
	}
	req.client.ProgressNotification(n)
	return true
}

func (d *Dispatcher) deleteRequest(req *analysisRequest) {
	if _, exists := d.requests[req.id]; !exists {
		return
	}
	delete(d.requests, req.id)
	d.metrics.activeRequests.Dec()
}
