package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/JohnOrlandSudoy/backendbus/models"
)

func receiveChange(t *testing.T, sub Subscription) Change {
	t.Helper()
	select {
	case change, ok := <-sub.Changes():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return change
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
		return Change{}
	}
}

func TestMemoryFeedFiltersByRecipient(t *testing.T) {
	feed := NewMemoryFeed(4)

	subA1, _ := feed.Subscribe(1)
	subA2, _ := feed.Subscribe(1)
	subB, _ := feed.Subscribe(2)
	defer subA1.Close()
	defer subA2.Close()
	defer subB.Close()

	if err := feed.Publish(context.Background(), insertFor(1)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for i, sub := range []Subscription{subA1, subA2} {
		change := receiveChange(t, sub)
		if change.Type != ChangeInsert || change.New.RecipientID != 1 {
			t.Fatalf("subscriber %d got wrong change %+v", i, change)
		}
	}

	select {
	case change := <-subB.Changes():
		t.Fatalf("recipient 2 received a change for recipient 1: %+v", change)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMemoryFeedDropsWhenBufferFull(t *testing.T) {
	feed := NewMemoryFeed(1)
	sub, _ := feed.Subscribe(3)
	defer sub.Close()

	ctx := context.Background()
	if err := feed.Publish(ctx, insertFor(3)); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	// Buffer now full; this must drop rather than block.
	done := make(chan error, 1)
	go func() { done <- feed.Publish(ctx, insertFor(3)) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("second publish: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestMemorySubscriptionCloseIsIdempotent(t *testing.T) {
	feed := NewMemoryFeed(4)
	sub, _ := feed.Subscribe(5)

	if got := feed.SubscriberCount(5); got != 1 {
		t.Fatalf("expected 1 subscriber, got %d", got)
	}

	sub.Close()
	sub.Close()

	if got := feed.SubscriberCount(5); got != 0 {
		t.Fatalf("expected 0 subscribers after close, got %d", got)
	}
	if _, ok := <-sub.Changes(); ok {
		t.Fatal("changes channel still open after close")
	}

	// Publishing after the last close is a no-op, not a panic.
	if err := feed.Publish(context.Background(), insertFor(5)); err != nil {
		t.Fatalf("publish after close: %v", err)
	}
}

func TestChangeRecipientID(t *testing.T) {
	row := &models.Notification{NotificationID: 1, RecipientID: 42}
	cases := []struct {
		name   string
		change Change
		want   uint
	}{
		{"insert", Change{Type: ChangeInsert, New: row}, 42},
		{"delete", Change{Type: ChangeDelete, Old: row}, 42},
		{"empty", Change{Type: ChangeDelete}, 0},
	}
	for _, tc := range cases {
		if got := tc.change.RecipientID(); got != tc.want {
			t.Errorf("%s: RecipientID() = %d, want %d", tc.name, got, tc.want)
		}
	}
}
