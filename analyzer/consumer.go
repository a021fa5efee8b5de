package analyzer

import (
	"sync/atomic"

	"github.com/relex/slog-analyzer/base"
	"github.com/relex/slog-analyzer/defs"
	"github.com/relex/slog-analyzer/util"
)

// ChannelConsumer is a base.AnalysisConsumer which queues notifications for reading from a channel
//
// Notifications are never blocked on the reader; they are queued without limit until read or Close() is called
type ChannelConsumer struct {
	alive   atomic.Bool
	mailbox *util.Mailbox[base.ProgressNotification]
}

// NewChannelConsumer creates a live ChannelConsumer
func NewChannelConsumer() *ChannelConsumer {
	c := &ChannelConsumer{
		mailbox: util.NewMailbox[base.ProgressNotification](defs.ControllerMailboxInitialSize),
	}
	c.alive.Store(true)
	return c
}

// ProgressNotification queues a notification unless the consumer is closed
func (c *ChannelConsumer) ProgressNotification(n base.ProgressNotification) {
	if !c.alive.Load() {
		return
	}
	c.mailbox.Push(n)
}

// Alive returns false after Close()
func (c *ChannelConsumer) Alive() bool {
	return c.alive.Load()
}

// Notifications returns the channel of received notifications in arrival order, closed after Close()
func (c *ChannelConsumer) Notifications() <-chan base.ProgressNotification {
	return c.mailbox.Out()
}

// Close marks the consumer as dead and drops unread notifications
func (c *ChannelConsumer) Close() {
	c.alive.Store(false)
	c.mailbox.Abort()
}
