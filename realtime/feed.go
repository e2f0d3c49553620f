package realtime

import (
	"context"
	"sync"

	"github.com/JohnOrlandSudoy/backendbus/models"
)

// ChangeType identifies the row-level operation carried by a Change.
type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// Change is one row-level event on the notifications table. New carries the
// row after the operation (nil for deletes), Old the row before it (set for
// updates and deletes).
type Change struct {
	Type ChangeType           `json:"type"`
	New  *models.Notification `json:"new,omitempty"`
	Old  *models.Notification `json:"old,omitempty"`
}

// RecipientID returns the recipient the change belongs to.
func (c Change) RecipientID() uint {
	if c.New != nil {
		return c.New.RecipientID
	}
	if c.Old != nil {
		return c.Old.RecipientID
	}
	return 0
}

// Subscription represents an active per-recipient change stream.
type Subscription interface {
	Changes() <-chan Change
	Close()
}

// Feed fans notification row changes out to per-recipient subscribers.
// Publish is invoked by the notification service after each durable write;
// Subscribe registers a listener filtered to a single recipient.
type Feed interface {
	Subscribe(recipientID uint) (Subscription, error)
	Publish(ctx context.Context, change Change) error
}

// NewMemoryFeed initialises an in-process feed suitable for tests and
// single-process deployments.
func NewMemoryFeed(buffer int) *MemoryFeed {
	if buffer <= 0 {
		buffer = 32
	}
	return &MemoryFeed{
		subs:   make(map[uint]map[*memorySubscription]struct{}),
		buffer: buffer,
	}
}

type MemoryFeed struct {
	mu     sync.RWMutex
	subs   map[uint]map[*memorySubscription]struct{}
	buffer int
}

func (f *MemoryFeed) Publish(ctx context.Context, change Change) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for sub := range f.subs[change.RecipientID()] {
		select {
		case sub.ch <- change:
		case <-ctx.Done():
			return ctx.Err()
		default:
			// Drop instead of blocking to keep the write path
			// responsive. Consumers are expected to drain promptly.
		}
	}
	return nil
}

func (f *MemoryFeed) Subscribe(recipientID uint) (Subscription, error) {
	sub := &memorySubscription{
		feed:      f,
		recipient: recipientID,
		ch:        make(chan Change, f.buffer),
	}
	f.mu.Lock()
	if f.subs[recipientID] == nil {
		f.subs[recipientID] = make(map[*memorySubscription]struct{})
	}
	f.subs[recipientID][sub] = struct{}{}
	f.mu.Unlock()
	return sub, nil
}

// SubscriberCount reports the number of live subscriptions for a recipient.
func (f *MemoryFeed) SubscriberCount(recipientID uint) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[recipientID])
}

type memorySubscription struct {
	once      sync.Once
	feed      *MemoryFeed
	recipient uint
	ch        chan Change
}

func (s *memorySubscription) Changes() <-chan Change {
	return s.ch
}

func (s *memorySubscription) Close() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs[s.recipient], s)
		if len(s.feed.subs[s.recipient]) == 0 {
			delete(s.feed.subs, s.recipient)
		}
		s.feed.mu.Unlock()
		close(s.ch)
	})
}
