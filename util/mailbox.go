package util

import (
	"sync"
)

// Mailbox is an unbounded FIFO queue with a channel as output
//
// Push never blocks, which allows two event loops to post to each other without deadlocks. Items are delivered through
// Out() in the same order as pushed, by a background pump goroutine.
//
// After Close(), the remaining items are still delivered and then Out() is closed. After Abort(), the remaining
// items are dropped and Out() is closed as soon as the pump notices.
type Mailbox[T any] struct {
	mutex   sync.Mutex
	queue   []T
	closed  bool
	wakeup  chan struct{}
	aborted chan struct{}
	abort   sync.Once
	out     chan T
}

// NewMailbox creates a Mailbox and launches its pump in background
func NewMailbox[T any](initialSize int) *Mailbox[T] {
	mb := &Mailbox[T]{
		queue:   make([]T, 0, initialSize),
		closed:  false,
		wakeup:  make(chan struct{}, 1),
		aborted: make(chan struct{}),
		out:     make(chan T),
	}
	go mb.pump(initialSize)
	return mb
}

// Push appends an item to the queue. Returns false if the mailbox has been closed.
func (mb *Mailbox[T]) Push(item T) bool {
	mb.mutex.Lock()
	if mb.closed {
		mb.mutex.Unlock()
		return false
	}
	mb.queue = append(mb.queue, item)
	mb.mutex.Unlock()
	mb.notify()
	return true
}

// Len returns the numbers of items waiting in queue, not including the one being delivered
func (mb *Mailbox[T]) Len() int {
	mb.mutex.Lock()
	defer mb.mutex.Unlock()
	return len(mb.queue)
}

// Out returns the output channel, which is closed after Close() or Abort()
func (mb *Mailbox[T]) Out() <-chan T {
	return mb.out
}

// Close stops accepting new items. Already queued items are still delivered.
func (mb *Mailbox[T]) Close() {
	mb.mutex.Lock()
	mb.closed = true
	mb.mutex.Unlock()
	mb.notify()
}

// Abort stops accepting new items and drops everything not yet delivered
func (mb *Mailbox[T]) Abort() {
	mb.Close()
	mb.abort.Do(func() {
		close(mb.aborted)
	})
}

func (mb *Mailbox[T]) notify() {
	select {
	case mb.wakeup <- struct{}{}:
	default:
	}
}

func (mb *Mailbox[T]) pump(initialSize int) {
	defer close(mb.out)
	batch := make([]T, 0, initialSize)
	var zero T
	for {
		mb.mutex.Lock()
		batch, mb.queue = mb.queue, batch[:0]
		closed := mb.closed
		mb.mutex.Unlock()

		for i, item := range batch {
			select {
			case mb.out <- item:
				batch[i] = zero
			case <-mb.aborted:
				return
			}
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		select {
		case <-mb.wakeup:
		case <-mb.aborted:
			return
		}
	}
}
