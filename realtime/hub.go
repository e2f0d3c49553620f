package realtime

import (
	"log"
	"sync"
	"time"

	"github.com/JohnOrlandSudoy/backendbus/models"
)

// Event types written to streaming connections.
const (
	EventReady              = "ready"
	EventNotificationInsert = "notification.insert"
	EventNotificationUpdate = "notification.update"
	EventNotificationDelete = "notification.delete"
)

// Event is one frame written to a streaming connection.
type Event struct {
	Type   string               `json:"type"`
	UserID uint                 `json:"userId,omitempty"`
	Data   *models.Notification `json:"data,omitempty"`
	Old    *models.Notification `json:"old,omitempty"`
}

func eventFromChange(change Change) Event {
	switch change.Type {
	case ChangeInsert:
		return Event{Type: EventNotificationInsert, Data: change.New}
	case ChangeUpdate:
		return Event{Type: EventNotificationUpdate, Data: change.New, Old: change.Old}
	default:
		return Event{Type: EventNotificationDelete, Data: change.Old}
	}
}

// Conn is one long-lived streaming connection registered for a recipient.
// Events are buffered; a full buffer counts as a delivery failure and the
// event is skipped for that connection.
type Conn struct {
	events chan Event
}

// NewConn allocates a connection with the given event buffer.
func NewConn(buffer int) *Conn {
	if buffer <= 0 {
		buffer = 16
	}
	return &Conn{events: make(chan Event, buffer)}
}

// Events exposes the connection's outbound event stream.
func (c *Conn) Events() <-chan Event {
	return c.events
}

// enqueue attempts a non-blocking delivery. The events channel is never
// closed, so an abandoned connection simply stops being drained.
func (c *Conn) enqueue(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

// HubConfig configures a notification fan-out Hub.
type HubConfig struct {
	Feed   Feed
	Logger *log.Logger
	// HeartbeatInterval controls how often streaming handlers emit
	// keep-alive comments. Defaults to 25 seconds.
	HeartbeatInterval time.Duration
	// GraceWindow bounds how long a channel created by EnsureChannel may
	// sit with no registered connection before it is torn down. A zero
	// value uses 30 seconds; negative disables the reaper.
	GraceWindow time.Duration
	// ResubscribeBackoff is the initial delay before re-establishing an
	// upstream subscription that dropped. Doubles per attempt, capped at
	// 30 seconds. Defaults to 1 second.
	ResubscribeBackoff time.Duration
	// Buffer sizes per-connection event queues.
	Buffer int
}

// Hub bridges notification row changes to live streaming connections. It
// holds at most one upstream feed subscription per actively-watched
// recipient and multiplexes its events to every open connection for that
// recipient.
type Hub struct {
	feed      Feed
	logger    *log.Logger
	heartbeat time.Duration
	grace     time.Duration
	backoff   time.Duration
	buffer    int

	mu       sync.Mutex
	channels map[uint]*channel
	closed   bool
}

// channel binds one recipient to its upstream subscription and the set of
// open connections. The reference count is the set cardinality.
type channel struct {
	sub        Subscription
	conns      map[*Conn]struct{}
	graceTimer *time.Timer
}

// NewHub initialises a hub using the provided configuration.
func NewHub(cfg HubConfig) *Hub {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	grace := cfg.GraceWindow
	if grace == 0 {
		grace = 30 * time.Second
	}
	backoff := cfg.ResubscribeBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	return &Hub{
		feed:      cfg.Feed,
		logger:    logger,
		heartbeat: heartbeat,
		grace:     grace,
		backoff:   backoff,
		buffer:    cfg.Buffer,
		channels:  make(map[uint]*channel),
	}
}

// EnsureChannel guarantees an upstream subscription exists for the
// recipient. Calling it while the subscription is live is a no-op. A
// subscription failure is logged, never surfaced: live updates degrade to
// silently missing until a later call re-establishes the channel.
func (h *Hub) EnsureChannel(recipientID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ensureChannelLocked(recipientID)
}

func (h *Hub) ensureChannelLocked(recipientID uint) *channel {
	if h.closed {
		return nil
	}
	if ch, ok := h.channels[recipientID]; ok {
		return ch
	}
	sub, err := h.feed.Subscribe(recipientID)
	if err != nil {
		h.logger.Printf("realtime: subscribe failed for recipient %d: %v", recipientID, err)
		return nil
	}
	ch := &channel{
		sub:   sub,
		conns: make(map[*Conn]struct{}),
	}
	h.channels[recipientID] = ch
	go h.pump(recipientID, sub)

	// A channel created ahead of any connection (a notification-send
	// warming the stream) must not leak its subscription forever.
	if h.grace > 0 {
		ch.graceTimer = time.AfterFunc(h.grace, func() {
			h.reapIdle(recipientID, ch)
		})
	}
	return ch
}

// Register attaches a streaming connection for the recipient, creating the
// channel if needed. The connection is handed its ready event before it
// becomes visible to fan-out, so ready always precedes any event triggered
// after registration.
func (h *Hub) Register(recipientID uint, conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn.enqueue(Event{Type: EventReady, UserID: recipientID})
	ch := h.ensureChannelLocked(recipientID)
	if ch == nil {
		return
	}
	ch.conns[conn] = struct{}{}
	if ch.graceTimer != nil {
		ch.graceTimer.Stop()
		ch.graceTimer = nil
	}
}

// Unregister detaches a connection. When the last connection for the
// recipient goes away the upstream subscription is cancelled and the
// channel entry discarded.
func (h *Hub) Unregister(recipientID uint, conn *Conn) {
	h.mu.Lock()
	ch, ok := h.channels[recipientID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(ch.conns, conn)
	if len(ch.conns) > 0 {
		h.mu.Unlock()
		return
	}
	delete(h.channels, recipientID)
	if ch.graceTimer != nil {
		ch.graceTimer.Stop()
	}
	sub := ch.sub
	h.mu.Unlock()
	sub.Close()
}

// Close tears down every remaining channel. Called on process shutdown so
// no upstream subscription outlives the server.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]Subscription, 0, len(h.channels))
	for recipientID, ch := range h.channels {
		if ch.graceTimer != nil {
			ch.graceTimer.Stop()
		}
		subs = append(subs, ch.sub)
		delete(h.channels, recipientID)
	}
	h.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
}

// pump translates upstream changes into typed events and fans them out.
// When the subscription's channel closes underneath a still-live channel it
// hands off to the resubscribe loop; a close caused by our own teardown
// just ends the goroutine.
func (h *Hub) pump(recipientID uint, sub Subscription) {
	for change := range sub.Changes() {
		h.deliver(recipientID, eventFromChange(change))
	}
	h.resubscribe(recipientID, sub)
}

// resubscribe re-establishes a dropped upstream subscription with doubling
// backoff, for as long as the channel that owned it still exists. Teardown
// (last unregister, grace reap, Close) swaps the entry out and stops the
// loop.
func (h *Hub) resubscribe(recipientID uint, dropped Subscription) {
	backoff := h.backoff
	for {
		h.mu.Lock()
		ch, ok := h.channels[recipientID]
		if !ok || ch.sub != dropped || h.closed {
			h.mu.Unlock()
			return
		}
		h.mu.Unlock()

		time.Sleep(backoff)
		if backoff < 30*time.Second {
			backoff *= 2
		}

		sub, err := h.feed.Subscribe(recipientID)
		if err != nil {
			h.logger.Printf("realtime: resubscribe failed for recipient %d: %v", recipientID, err)
			continue
		}

		h.mu.Lock()
		ch, ok = h.channels[recipientID]
		if !ok || ch.sub != dropped || h.closed {
			h.mu.Unlock()
			sub.Close()
			return
		}
		ch.sub = sub
		h.mu.Unlock()
		h.logger.Printf("realtime: resubscribed recipient %d after feed drop", recipientID)
		go h.pump(recipientID, sub)
		return
	}
}

// deliver writes the event to every connection registered for the
// recipient at this moment. A failed enqueue is skipped for this event;
// unregistration stays driven by the transport's disconnect signal.
func (h *Hub) deliver(recipientID uint, ev Event) {
	h.mu.Lock()
	ch, ok := h.channels[recipientID]
	if !ok {
		h.mu.Unlock()
		return
	}
	conns := make([]*Conn, 0, len(ch.conns))
	for conn := range ch.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		if !conn.enqueue(ev) {
			h.logger.Printf("realtime: dropping %s event for recipient %d: connection buffer full", ev.Type, recipientID)
		}
	}
}

// reapIdle tears down a channel that was warmed by a notification-send but
// never picked up a connection within the grace window.
func (h *Hub) reapIdle(recipientID uint, ch *channel) {
	h.mu.Lock()
	current, ok := h.channels[recipientID]
	if !ok || current != ch || len(ch.conns) > 0 {
		h.mu.Unlock()
		return
	}
	delete(h.channels, recipientID)
	sub := ch.sub
	h.mu.Unlock()
	sub.Close()
}
