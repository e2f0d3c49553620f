package realtime

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/JohnOrlandSudoy/backendbus/models"
)

// fakeFeed records subscription identity so tests can observe channel
// lifecycle from the outside.
type fakeFeed struct {
	mu     sync.Mutex
	nextID int
	active map[uint][]*fakeSub
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{active: make(map[uint][]*fakeSub)}
}

func (f *fakeFeed) Subscribe(recipientID uint) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	sub := &fakeSub{id: f.nextID, feed: f, recipient: recipientID, ch: make(chan Change, 32)}
	f.active[recipientID] = append(f.active[recipientID], sub)
	return sub, nil
}

func (f *fakeFeed) Publish(ctx context.Context, change Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.active[change.RecipientID()] {
		select {
		case sub.ch <- change:
		default:
		}
	}
	return nil
}

func (f *fakeFeed) activeCount(recipientID uint) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.active[recipientID])
}

func (f *fakeFeed) lastSub(recipientID uint) *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	subs := f.active[recipientID]
	if len(subs) == 0 {
		return nil
	}
	return subs[len(subs)-1]
}

func (f *fakeFeed) lastSubID(recipientID uint) int {
	if sub := f.lastSub(recipientID); sub != nil {
		return sub.id
	}
	return 0
}

type fakeSub struct {
	id        int
	feed      *fakeFeed
	recipient uint
	once      sync.Once
	ch        chan Change
}

func (s *fakeSub) Changes() <-chan Change { return s.ch }

func (s *fakeSub) Close() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		subs := s.feed.active[s.recipient]
		for i, sub := range subs {
			if sub == s {
				s.feed.active[s.recipient] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(s.feed.active[s.recipient]) == 0 {
			delete(s.feed.active, s.recipient)
		}
		s.feed.mu.Unlock()
		close(s.ch)
	})
}

func newTestHub(feed Feed) *Hub {
	return NewHub(HubConfig{Feed: feed, GraceWindow: -1})
}

func insertFor(recipientID uint) Change {
	return Change{Type: ChangeInsert, New: &models.Notification{
		NotificationID: 1,
		RecipientID:    recipientID,
		Type:           models.NotificationTypeGeneral,
		Message:        "hello",
		Priority:       models.PriorityNormal,
	}}
}

func waitEvent(t *testing.T, conn *Conn) Event {
	t.Helper()
	select {
	case ev := <-conn.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func expectNoEvent(t *testing.T, conn *Conn) {
	t.Helper()
	select {
	case ev := <-conn.Events():
		t.Fatalf("unexpected event %q", ev.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEnsureChannelIdempotent(t *testing.T) {
	feed := newFakeFeed()
	hub := newTestHub(feed)
	defer hub.Close()

	hub.EnsureChannel(7)
	hub.EnsureChannel(7)

	if got := feed.activeCount(7); got != 1 {
		t.Fatalf("expected 1 upstream subscription, got %d", got)
	}
}

func TestChannelLifecycleFollowsRegistrations(t *testing.T) {
	feed := newFakeFeed()
	hub := newTestHub(feed)
	defer hub.Close()

	conn1 := NewConn(0)
	conn2 := NewConn(0)

	hub.Register(9, conn1)
	hub.Register(9, conn2)
	if got := feed.activeCount(9); got != 1 {
		t.Fatalf("expected 1 subscription while connections exist, got %d", got)
	}
	firstID := feed.lastSubID(9)

	hub.Unregister(9, conn1)
	if got := feed.activeCount(9); got != 1 {
		t.Fatalf("subscription torn down while a connection remained")
	}

	hub.Unregister(9, conn2)
	if got := feed.activeCount(9); got != 0 {
		t.Fatalf("expected teardown after last unregister, got %d subscriptions", got)
	}

	// A later ensure creates a fresh subscription, not the old handle.
	hub.EnsureChannel(9)
	if got := feed.activeCount(9); got != 1 {
		t.Fatalf("expected fresh subscription, got %d", got)
	}
	if feed.lastSubID(9) == firstID {
		t.Fatal("expected a new subscription identity after teardown")
	}
}

func TestFanOutReachesEveryConnection(t *testing.T) {
	feed := newFakeFeed()
	hub := newTestHub(feed)
	defer hub.Close()

	conns := []*Conn{NewConn(0), NewConn(0), NewConn(0)}
	for _, conn := range conns {
		hub.Register(3, conn)
		if ev := waitEvent(t, conn); ev.Type != EventReady {
			t.Fatalf("expected ready, got %q", ev.Type)
		}
	}

	if err := feed.Publish(context.Background(), insertFor(3)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for i, conn := range conns {
		ev := waitEvent(t, conn)
		if ev.Type != EventNotificationInsert {
			t.Fatalf("conn %d: expected insert, got %q", i, ev.Type)
		}
		if ev.Data == nil || ev.Data.RecipientID != 3 {
			t.Fatalf("conn %d: wrong payload %+v", i, ev.Data)
		}
	}
}

func TestFanOutSkipsFullConnections(t *testing.T) {
	feed := newFakeFeed()
	hub := newTestHub(feed)
	defer hub.Close()

	full := NewConn(1)
	healthy := NewConn(0)
	hub.Register(4, full) // ready fills the 1-slot buffer
	hub.Register(4, healthy)
	waitEvent(t, healthy) // drain ready

	feed.Publish(context.Background(), insertFor(4))

	if ev := waitEvent(t, healthy); ev.Type != EventNotificationInsert {
		t.Fatalf("healthy connection missed event, got %q", ev.Type)
	}
}

func TestIsolationAcrossRecipients(t *testing.T) {
	feed := newFakeFeed()
	hub := newTestHub(feed)
	defer hub.Close()

	connA := NewConn(0)
	connB := NewConn(0)
	hub.Register(1, connA)
	hub.Register(2, connB)
	waitEvent(t, connA)
	waitEvent(t, connB)

	feed.Publish(context.Background(), insertFor(1))

	if ev := waitEvent(t, connA); ev.Type != EventNotificationInsert {
		t.Fatalf("expected insert for recipient 1, got %q", ev.Type)
	}
	expectNoEvent(t, connB)
}

func TestReadyPrecedesFanOut(t *testing.T) {
	feed := newFakeFeed()
	hub := newTestHub(feed)
	defer hub.Close()

	conn := NewConn(0)
	hub.Register(5, conn)
	feed.Publish(context.Background(), insertFor(5))

	first := waitEvent(t, conn)
	if first.Type != EventReady {
		t.Fatalf("expected ready first, got %q", first.Type)
	}
	if first.UserID != 5 {
		t.Fatalf("ready event carries wrong user %d", first.UserID)
	}
	second := waitEvent(t, conn)
	if second.Type != EventNotificationInsert {
		t.Fatalf("expected insert second, got %q", second.Type)
	}
}

func TestLateConnectionMissesEarlierEvents(t *testing.T) {
	feed := newFakeFeed()
	hub := newTestHub(feed)
	defer hub.Close()

	hub.EnsureChannel(6)
	feed.Publish(context.Background(), insertFor(6))
	time.Sleep(50 * time.Millisecond) // let the pump drop it on the floor

	conn := NewConn(0)
	hub.Register(6, conn)
	if ev := waitEvent(t, conn); ev.Type != EventReady {
		t.Fatalf("expected ready, got %q", ev.Type)
	}
	expectNoEvent(t, conn)
}

func TestRemainingConnectionSurvivesPeerDisconnect(t *testing.T) {
	feed := newFakeFeed()
	hub := newTestHub(feed)
	defer hub.Close()

	conn1 := NewConn(0)
	conn2 := NewConn(0)
	hub.Register(8, conn1)
	hub.Register(8, conn2)
	waitEvent(t, conn1)
	waitEvent(t, conn2)

	hub.Unregister(8, conn1)

	feed.Publish(context.Background(), insertFor(8))
	if ev := waitEvent(t, conn2); ev.Type != EventNotificationInsert {
		t.Fatalf("surviving connection missed event, got %q", ev.Type)
	}

	conn3 := NewConn(0)
	hub.Register(8, conn3)
	waitEvent(t, conn3)

	feed.Publish(context.Background(), insertFor(8))
	for i, conn := range []*Conn{conn2, conn3} {
		if ev := waitEvent(t, conn); ev.Type != EventNotificationInsert {
			t.Fatalf("conn %d missed second event, got %q", i, ev.Type)
		}
	}
}

func TestUpdateAndDeleteEventsCarryOldRow(t *testing.T) {
	feed := newFakeFeed()
	hub := newTestHub(feed)
	defer hub.Close()

	conn := NewConn(0)
	hub.Register(11, conn)
	waitEvent(t, conn)

	old := &models.Notification{NotificationID: 2, RecipientID: 11, Message: "m"}
	updated := &models.Notification{NotificationID: 2, RecipientID: 11, Message: "m", IsRead: true}

	feed.Publish(context.Background(), Change{Type: ChangeUpdate, New: updated, Old: old})
	ev := waitEvent(t, conn)
	if ev.Type != EventNotificationUpdate {
		t.Fatalf("expected update, got %q", ev.Type)
	}
	if ev.Data == nil || !ev.Data.IsRead || ev.Old == nil || ev.Old.IsRead {
		t.Fatalf("update event rows wrong: data=%+v old=%+v", ev.Data, ev.Old)
	}

	feed.Publish(context.Background(), Change{Type: ChangeDelete, Old: old})
	ev = waitEvent(t, conn)
	if ev.Type != EventNotificationDelete {
		t.Fatalf("expected delete, got %q", ev.Type)
	}
	if ev.Data == nil || ev.Data.NotificationID != 2 {
		t.Fatalf("delete event missing row: %+v", ev.Data)
	}
}

func TestGraceWindowReapsDanglingChannel(t *testing.T) {
	feed := newFakeFeed()
	hub := NewHub(HubConfig{Feed: feed, GraceWindow: 20 * time.Millisecond})
	defer hub.Close()

	hub.EnsureChannel(12)
	if got := feed.activeCount(12); got != 1 {
		t.Fatalf("expected warm channel, got %d subscriptions", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for feed.activeCount(12) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("dangling channel was never reaped")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRegistrationWithinGraceKeepsChannel(t *testing.T) {
	feed := newFakeFeed()
	hub := NewHub(HubConfig{Feed: feed, GraceWindow: 30 * time.Millisecond})
	defer hub.Close()

	hub.EnsureChannel(13)
	conn := NewConn(0)
	hub.Register(13, conn)

	time.Sleep(100 * time.Millisecond)
	if got := feed.activeCount(13); got != 1 {
		t.Fatalf("channel reaped despite live connection, %d subscriptions", got)
	}
}

func TestResubscribesAfterFeedDrop(t *testing.T) {
	feed := newFakeFeed()
	hub := NewHub(HubConfig{Feed: feed, GraceWindow: -1, ResubscribeBackoff: 5 * time.Millisecond})
	defer hub.Close()

	conn := NewConn(0)
	hub.Register(14, conn)
	waitEvent(t, conn)
	firstID := feed.lastSubID(14)

	// Simulate the upstream feed dying underneath the live channel.
	feed.lastSub(14).Close()

	deadline := time.Now().Add(2 * time.Second)
	for feed.activeCount(14) != 1 || feed.lastSubID(14) == firstID {
		if time.Now().After(deadline) {
			t.Fatal("hub never resubscribed after feed drop")
		}
		time.Sleep(5 * time.Millisecond)
	}

	feed.Publish(context.Background(), insertFor(14))
	if ev := waitEvent(t, conn); ev.Type != EventNotificationInsert {
		t.Fatalf("events lost after resubscribe, got %q", ev.Type)
	}
}

func TestNoResubscribeAfterTeardown(t *testing.T) {
	feed := newFakeFeed()
	hub := NewHub(HubConfig{Feed: feed, GraceWindow: -1, ResubscribeBackoff: 5 * time.Millisecond})
	defer hub.Close()

	conn := NewConn(0)
	hub.Register(15, conn)
	hub.Unregister(15, conn)

	time.Sleep(100 * time.Millisecond)
	if got := feed.activeCount(15); got != 0 {
		t.Fatalf("subscription resurrected after teardown: %d", got)
	}
}

func TestCloseTearsDownEverything(t *testing.T) {
	feed := newFakeFeed()
	hub := newTestHub(feed)

	for i := uint(1); i <= 3; i++ {
		conn := NewConn(0)
		hub.Register(i, conn)
	}

	hub.Close()

	for i := uint(1); i <= 3; i++ {
		if got := feed.activeCount(i); got != 0 {
			t.Fatalf("recipient %d still has %d subscriptions after Close", i, got)
		}
	}

	// The hub refuses new channels once closed.
	hub.EnsureChannel(99)
	if got := feed.activeCount(99); got != 0 {
		t.Fatal("closed hub created a subscription")
	}
}

func TestConcurrentRegisterUnregister(t *testing.T) {
	feed := newFakeFeed()
	hub := newTestHub(feed)
	defer hub.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			recipient := uint(i%4 + 1)
			conn := NewConn(0)
			hub.Register(recipient, conn)
			feed.Publish(context.Background(), insertFor(recipient))
			hub.Unregister(recipient, conn)
		}(i)
	}
	wg.Wait()

	for r := uint(1); r <= 4; r++ {
		if got := feed.activeCount(r); got != 0 {
			t.Fatalf("recipient %d leaked %d subscriptions", r, got)
		}
	}
}

func TestEventJSONShape(t *testing.T) {
	title := "t"
	ev := eventFromChange(Change{Type: ChangeInsert, New: &models.Notification{
		NotificationID: 10,
		RecipientID:    4,
		Type:           models.NotificationTypeDelay,
		Title:          &title,
		Message:        "late bus",
		Priority:       models.PriorityHigh,
	}})
	if ev.Type != EventNotificationInsert {
		t.Fatalf("wrong type %q", ev.Type)
	}
	if ev.Old != nil {
		t.Fatal("insert should not carry an old row")
	}
	if got := fmt.Sprintf("%s/%s", ev.Data.Type, ev.Data.Priority); got != "delay/high" {
		t.Fatalf("payload mismatch: %s", got)
	}
}
