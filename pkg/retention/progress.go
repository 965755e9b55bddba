package retention

import (
	"sync"

	"github.com/mediasweep/mediasweep/internal/logger"
)

// Status is the lifecycle state of one engine run.
type Status string

const (
	StatusRunning             Status = "running"
	StatusCompleted           Status = "completed"
	StatusCompletedWithErrors Status = "completedWithErrors"
	StatusCancelled           Status = "cancelled"
)

// Terminal reports whether the status will not change again.
func (s Status) Terminal() bool {
	return s != StatusRunning
}

// ItemError records a failure on a single record. Item failures never abort
// the run; they accumulate here and are reported with the final result.
type ItemError struct {
	RecordID string `json:"record_id"`
	Message  string `json:"message"`
}

// Event is a point-in-time snapshot of a run's progress. Events are
// self-contained values: subscribers may retain them without holding any
// reference into the engine.
type Event struct {
	// OperationID identifies the run across all events it emits.
	OperationID string `json:"operation_id"`

	// Policy is the name of the policy being executed.
	Policy string `json:"policy"`

	// Processed / Total count records, CurrentBatch / TotalBatches count
	// batches. Total and TotalBatches are fixed at selection time.
	Processed    int `json:"processed"`
	Total        int `json:"total"`
	CurrentBatch int `json:"current_batch"`
	TotalBatches int `json:"total_batches"`

	// Errors holds every item error recorded so far.
	Errors []ItemError `json:"errors,omitempty"`

	// Status transitions running -> completed | completedWithErrors |
	// cancelled, exactly once.
	Status Status `json:"status"`
}

// Subscriber receives progress events. Implementations must not block:
// events are delivered synchronously from the engine's loop.
type Subscriber interface {
	OnProgress(event Event)
}

// Broadcaster fans progress events out to any number of subscribers.
//
// Thread Safety: Subscribe, the returned unsubscribe func, and Publish are
// all safe for concurrent use.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[int]Subscriber
	nextID int
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]Subscriber)}
}

// Subscribe registers a subscriber and returns a func that removes it.
func (b *Broadcaster) Subscribe(sub Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs[id] = sub

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish delivers the event to every current subscriber.
func (b *Broadcaster) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		sub.OnProgress(event)
	}
}

// ConsoleSubscriber logs progress through the package logger. Useful for
// CLI runs where nothing else is watching.
type ConsoleSubscriber struct{}

// OnProgress implements Subscriber.
func (ConsoleSubscriber) OnProgress(event Event) {
	if event.Status.Terminal() {
		logger.Info("Run %s [%s] finished: status=%s processed=%d/%d errors=%d",
			event.OperationID, event.Policy, event.Status, event.Processed, event.Total, len(event.Errors))
		return
	}
	logger.Info("Run %s [%s] batch %d/%d: processed %d/%d (%d errors)",
		event.OperationID, event.Policy, event.CurrentBatch, event.TotalBatches,
		event.Processed, event.Total, len(event.Errors))
}

// ChannelSubscriber exposes progress events on a channel for UIs and tests.
// Delivery is lossy: when the buffer is full the oldest pending event is
// dropped so the engine never blocks on a slow consumer.
type ChannelSubscriber struct {
	ch chan Event
}

// NewChannelSubscriber creates a subscriber buffering up to size events.
func NewChannelSubscriber(size int) *ChannelSubscriber {
	if size <= 0 {
		size = 16
	}
	return &ChannelSubscriber{ch: make(chan Event, size)}
}

// Events returns the receive side of the subscription.
func (c *ChannelSubscriber) Events() <-chan Event {
	return c.ch
}

// OnProgress implements Subscriber.
func (c *ChannelSubscriber) OnProgress(event Event) {
	for {
		select {
		case c.ch <- event:
			return
		default:
			// Buffer full: drop the oldest event and retry.
			select {
			case <-c.ch:
			default:
			}
		}
	}
}

// Close closes the event channel. Call only after the run has finished.
func (c *ChannelSubscriber) Close() {
	close(c.ch)
}
