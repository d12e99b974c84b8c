// Package queue buffers outbound update notifications per recipient so that
// pull-based clients eventually observe every update a push client would
// have received live. State is process-lifetime only; clients request a full
// resync after any restart.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/beatwave/dashsync/internal/logger"
	"github.com/beatwave/dashsync/models"
)

// Config tunes the message queue. Zero fields fall back to the documented
// defaults.
type Config struct {
	// MessageTTL is how long a buffered item survives before the periodic
	// sweep purges it. Default 5 minutes.
	MessageTTL time.Duration
	// CleanupInterval is the sweep period. Default 60s.
	CleanupInterval time.Duration
	// MaxQueueLength is the hard cap per recipient queue; exceeding it
	// truncates the queue to the most recent RetainedLength items.
	// Default 1000.
	MaxQueueLength int
	// RetainedLength is the size a queue is truncated to after hitting the
	// cap. Default MaxQueueLength/2.
	RetainedLength int
}

func (c Config) withDefaults() Config {
	if c.MessageTTL <= 0 {
		c.MessageTTL = 5 * time.Minute
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 60 * time.Second
	}
	if c.MaxQueueLength <= 0 {
		c.MaxQueueLength = 1000
	}
	if c.RetainedLength <= 0 || c.RetainedLength > c.MaxQueueLength {
		c.RetainedLength = c.MaxQueueLength / 2
	}
	return c
}

// MessageQueue holds one buffer per recipient plus the reserved global
// buffer. The queue owns its map exclusively; no other component mutates it.
type MessageQueue struct {
	cfg    Config
	logger *logger.Logger

	mu     sync.Mutex
	queues map[string][]models.QueuedItem

	sweepMu     sync.Mutex
	sweepCancel context.CancelFunc
	sweepWG     sync.WaitGroup

	now func() time.Time
}

// New constructs a MessageQueue. The TTL sweep is idle until StartSweep is
// called.
func New(cfg Config, log *logger.Logger) *MessageQueue {
	return &MessageQueue{
		cfg:    cfg.withDefaults(),
		logger: log,
		queues: map[string][]models.QueuedItem{models.GlobalRecipient: nil},
		now:    time.Now,
	}
}

// Enqueue appends item to its recipient's queue, creating the queue on first
// use. An empty recipient is routed to the global queue. When the queue
// exceeds the hard cap it is truncated to the most recent RetainedLength
// items, oldest dropped first.
func (q *MessageQueue) Enqueue(item models.QueuedItem) {
	if item.Recipient == "" {
		item.Recipient = models.GlobalRecipient
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueueLocked(item.Recipient, item)
}

// Broadcast deposits item into the global queue and a fan-out copy into
// every currently known per-recipient queue. Each copy is independent
// thereafter.
func (q *MessageQueue) Broadcast(item models.QueuedItem) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for recipient := range q.queues {
		copied := item
		copied.Recipient = recipient
		q.enqueueLocked(recipient, copied)
	}
}

// DrainSince returns, in order, every buffered item for recipient with a
// timestamp strictly greater than since (Unix milliseconds). Items are not
// removed: pull clients poll repeatedly and deduplicate by item id on their
// side.
func (q *MessageQueue) DrainSince(recipient string, since int64) []models.QueuedItem {
	if recipient == "" {
		recipient = models.GlobalRecipient
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.queues[recipient]
	out := make([]models.QueuedItem, 0, len(items))
	for _, item := range items {
		if item.Timestamp > since {
			out = append(out, item)
		}
	}
	return out
}

// Clear drops recipient's queue entirely. Used on explicit resync or
// logout. Clearing the global recipient empties the global queue but keeps
// its key.
func (q *MessageQueue) Clear(recipient string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if recipient == models.GlobalRecipient {
		q.queues[models.GlobalRecipient] = nil
		return
	}
	delete(q.queues, recipient)
}

// Len reports how many items recipient's queue currently buffers.
func (q *MessageQueue) Len(recipient string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[recipient])
}

// Recipients returns the keys of all currently known queues.
func (q *MessageQueue) Recipients() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]string, 0, len(q.queues))
	for recipient := range q.queues {
		out = append(out, recipient)
	}
	return out
}

// StartSweep stops any previously running sweep, then launches a background
// goroutine purging expired items every CleanupInterval. The goroutine exits
// when ctx is cancelled or StopSweep is called.
func (q *MessageQueue) StartSweep(ctx context.Context) {
	q.StopSweep()

	q.sweepMu.Lock()
	sweepCtx, cancel := context.WithCancel(ctx)
	q.sweepCancel = cancel
	q.sweepWG.Add(1)
	q.sweepMu.Unlock()

	go func() {
		defer q.sweepWG.Done()
		t := time.NewTicker(q.cfg.CleanupInterval)
		defer t.Stop()

		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-t.C:
				q.RemoveExpired()
			}
		}
	}()
}

// StopSweep cancels the sweep goroutine and blocks until it has exited.
// Safe to call when no sweep is running.
func (q *MessageQueue) StopSweep() {
	q.sweepMu.Lock()
	cancel := q.sweepCancel
	q.sweepCancel = nil
	q.sweepMu.Unlock()

	if cancel != nil {
		cancel()
	}
	q.sweepWG.Wait()
}

// RemoveExpired purges items older than MessageTTL from every queue and
// deletes empty non-global queues to bound the key count. Returns the number
// of items dropped.
func (q *MessageQueue) RemoveExpired() int {
	cutoff := q.now().Add(-q.cfg.MessageTTL).UnixMilli()

	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for recipient, items := range q.queues {
		kept := items[:0]
		for _, item := range items {
			if item.Timestamp > cutoff {
				kept = append(kept, item)
			}
		}
		removed += len(items) - len(kept)

		if len(kept) == 0 && recipient != models.GlobalRecipient {
			delete(q.queues, recipient)
			continue
		}
		q.queues[recipient] = kept
	}

	if removed > 0 {
		q.logger.Debug().Int("removed", removed).Msg("message queue sweep purged expired items")
	}
	return removed
}

func (q *MessageQueue) enqueueLocked(recipient string, item models.QueuedItem) {
	items := append(q.queues[recipient], item)
	if len(items) > q.cfg.MaxQueueLength {
		// Keep the newest entries; a stalled consumer must not grow memory
		// without bound.
		items = append(items[:0:0], items[len(items)-q.cfg.RetainedLength:]...)
		q.logger.Warn().
			Str("recipient", recipient).
			Int("retained", len(items)).
			Msg("queue exceeded cap, truncated to most recent items")
	}
	q.queues[recipient] = items
}
