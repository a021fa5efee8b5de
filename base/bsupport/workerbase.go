package bsupport

import (
	"time"

	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/slog-analyzer/defs"
)

// WorkerBase is the base of event loops in analyzers and worker slots
//
// It contains an input channel, a handler for each of input values and "stop" signals which are triggered when the
// input channel is closed
//
// The input handler is the only thing required from its composite parent
type WorkerBase[T any] struct {
	_baseLogger  logger.Logger
	_baseInput   <-chan T
	_baseStopped *channels.SignalAwaitable
	_baseOnInput func(input T)
	_baseOnTick  func()
	_baseOnStop  func()
}

// NewWorkerBase creates a new WorkerBase for specified data type in channel
func NewWorkerBase[T any](logger logger.Logger, inputChannel <-chan T) WorkerBase[T] {
	return WorkerBase[T]{
		_baseLogger:  logger,
		_baseInput:   inputChannel,
		_baseStopped: channels.NewSignalAwaitable(),
	}
}

// InitInternal initializes the internal function references called in processing loops
//
// The tick handler is called every defs.IntermediateFlushInterval and once more before stop. Both it and the stop
// handler are optional.
func (worker *WorkerBase[T]) InitInternal(inputHandler func(input T), tickHandler func(), stopHandler func()) {
	if worker._baseOnInput != nil {
		worker._baseLogger.Panic("re-initialization called")
	}
	worker._baseOnInput = inputHandler
	worker._baseOnTick = tickHandler
	worker._baseOnStop = stopHandler
}

// Launch starts the main loop in background
func (worker *WorkerBase[T]) Launch() {
	if worker._baseOnInput == nil {
		worker._baseLogger.Panic("launch called before initialization")
	}
	go worker._baseRun()
}

// Logger returns the logger
func (worker *WorkerBase[T]) Logger() logger.Logger {
	return worker._baseLogger
}

// Stopped returns an Awaitable which is signaled when stopped
func (worker *WorkerBase[T]) Stopped() channels.Awaitable {
	return worker._baseStopped
}

func (worker *WorkerBase[T]) _baseRun() {
	worker._baseProcessMain()

	if worker._baseOnTick != nil {
		worker._baseOnTick()
	}
	if worker._baseOnStop != nil {
		worker._baseOnStop()
	}
	worker._baseStopped.Signal()
}

// _baseProcessMain waits and processes incoming input until the input channel is closed
func (worker *WorkerBase[T]) _baseProcessMain() {
	worker._baseLogger.Debug("start main loop")
	ticker := time.NewTicker(defs.IntermediateFlushInterval)
SELECT_LOOP:
	for {
		select {
		case value, ok := <-worker._baseInput:
			if !ok {
				worker._baseLogger.Debug("end main loop on input channel close")
				break SELECT_LOOP
			}
			worker._baseOnInput(value)
		case <-ticker.C:
			if worker._baseOnTick != nil {
				worker._baseOnTick()
			}
		}
	}
	ticker.Stop()
}
