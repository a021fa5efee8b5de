package analyzer

import (
	"github.com/relex/gotils/logger"
	"github.com/relex/slog-analyzer/base"
	"github.com/relex/slog-analyzer/base/bsupport"
	"github.com/relex/slog-analyzer/defs"
)

// workerSlot runs chunk tasks one by one in its own goroutine and hands each result to onComplete
type workerSlot struct {
	bsupport.WorkerBase[chunkTask]
	id         base.WorkerID
	inbox      chan chunkTask
	worker     patternWorker
	fetcher    recordFetcher
	onComplete func(result chunkResult)
}

func newWorkerSlot(parentLogger logger.Logger, id base.WorkerID, features base.AnalysisFeatures, fetcher recordFetcher,
	onComplete func(result chunkResult),
) *workerSlot {
	inbox := make(chan chunkTask, defs.WorkerInboxSize)
	slot := &workerSlot{
		WorkerBase: bsupport.NewWorkerBase[chunkTask](parentLogger.WithField(defs.LabelWorker, id), inbox),
		id:         id,
		inbox:      inbox,
		worker:     patternWorker{features: features},
		fetcher:    fetcher,
		onComplete: onComplete,
	}
	slot.InitInternal(slot.onInput, nil, nil)
	return slot
}

func (slot *workerSlot) enqueue(task chunkTask) {
	slot.inbox <- task
}

// close stops the slot after all queued tasks are done
func (slot *workerSlot) close() {
	close(slot.inbox)
}

func (slot *workerSlot) onInput(task chunkTask) {
	slot.Logger().Debugf("run chunk request=%d cookie=%d range=[%d, %d)", task.requestID, task.cookie, task.from, task.to)
	batch := assembleBatch(slot.fetcher, task)
	result := slot.worker.analyzeBatch(task.pattern, task.metadata, batch)
	if result.err != nil {
		slot.Logger().WithFields(logger.Fields{
			defs.LabelRequest: task.requestID,
			defs.LabelCookie:  task.cookie,
		}).Errorf("chunk failed: %v", result.err)
	}
	slot.onComplete(chunkResult{
		requestID:     task.requestID,
		cookie:        task.cookie,
		workerID:      slot.id,
		portionResult: result,
	})
}
