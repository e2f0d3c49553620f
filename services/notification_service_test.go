package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/JohnOrlandSudoy/backendbus/models"
	"github.com/JohnOrlandSudoy/backendbus/realtime"
)

type stepKind int

const (
	kindQuery stepKind = iota
	kindExec
)

// queryStep scripts one expected statement. A nil args slice skips argument
// matching, which queries carrying time.Now() values need.
type queryStep struct {
	kind    stepKind
	pattern *regexp.Regexp
	args    []driver.Value
	columns []string
	rows    [][]driver.Value
	err     error
	result  driver.Result
}

type scriptedDB struct {
	mu    sync.Mutex
	steps []*queryStep
}

func (db *scriptedDB) next(kind stepKind, query string, args []driver.NamedValue) (*queryStep, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.steps) == 0 {
		return nil, fmt.Errorf("unexpected query: %s", query)
	}
	step := db.steps[0]
	if step.kind != kind {
		return nil, fmt.Errorf("unexpected kind for query %s: got %v want %v", query, kind, step.kind)
	}
	if !step.pattern.MatchString(query) {
		return nil, fmt.Errorf("unexpected query: %s", query)
	}
	if step.args != nil {
		if len(step.args) != len(args) {
			return nil, fmt.Errorf("unexpected arg count for %s: got %d want %d", query, len(args), len(step.args))
		}
		for i := range args {
			if args[i].Value != step.args[i] {
				return nil, fmt.Errorf("unexpected arg %d for %s: got %v want %v", i, query, args[i].Value, step.args[i])
			}
		}
	}
	db.steps = db.steps[1:]
	return step, nil
}

func (db *scriptedDB) verifyComplete() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.steps) != 0 {
		return fmt.Errorf("unmet expectations: %d", len(db.steps))
	}
	return nil
}

type scriptedDriver struct {
	db *scriptedDB
}

func (d *scriptedDriver) Open(string) (driver.Conn, error) {
	return &scriptedConn{db: d.db}, nil
}

type scriptedConn struct {
	db *scriptedDB
}

func (c *scriptedConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (c *scriptedConn) Close() error { return nil }

func (c *scriptedConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

func (c *scriptedConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	step, err := c.db.next(kindQuery, query, args)
	if err != nil {
		return nil, err
	}
	if step.err != nil {
		return nil, step.err
	}
	return &scriptedRows{columns: step.columns, rows: step.rows}, nil
}

func (c *scriptedConn) Query(query string, args []driver.Value) (driver.Rows, error) {
	named := make([]driver.NamedValue, len(args))
	for i, v := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return c.QueryContext(context.Background(), query, named)
}

func (c *scriptedConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	step, err := c.db.next(kindExec, query, args)
	if err != nil {
		return nil, err
	}
	if step.err != nil {
		return nil, step.err
	}
	if step.result != nil {
		return step.result, nil
	}
	return scriptedResult{}, nil
}

func (c *scriptedConn) Exec(query string, args []driver.Value) (driver.Result, error) {
	named := make([]driver.NamedValue, len(args))
	for i, v := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return c.ExecContext(context.Background(), query, named)
}

type scriptedResult struct {
	lastInsertID int64
	rowsAffected int64
}

func (r scriptedResult) LastInsertId() (int64, error) { return r.lastInsertID, nil }

func (r scriptedResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

type scriptedRows struct {
	columns []string
	rows    [][]driver.Value
	idx     int
}

func (r *scriptedRows) Columns() []string { return r.columns }

func (r *scriptedRows) Close() error { return nil }

func (r *scriptedRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	row := r.rows[r.idx]
	for i := range dest {
		dest[i] = nil
	}
	for i := range row {
		dest[i] = row[i]
	}
	r.idx++
	return nil
}

func newScriptedGormDB(t *testing.T, steps []*queryStep) (*gorm.DB, *scriptedDB, func()) {
	t.Helper()
	state := &scriptedDB{steps: steps}
	driverName := fmt.Sprintf("scripted_%d", time.Now().UnixNano())
	sql.Register(driverName, &scriptedDriver{db: state})

	sqlDB, err := sql.Open(driverName, "")
	if err != nil {
		t.Fatalf("failed to open sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	// The scripted connection cannot begin transactions, so writes run
	// without the default per-statement transaction wrapper.
	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("failed to create gorm db: %v", err)
	}

	cleanup := func() {
		_ = sqlDB.Close()
	}
	return gormDB, state, cleanup
}

var notificationColumns = []string{
	"notification_id", "recipient_id", "type", "title", "message",
	"is_read", "priority", "read_at", "created_at",
}

func notificationRow(id, recipient int64, notificationType string, isRead bool) []driver.Value {
	return []driver.Value{
		id, recipient, notificationType, nil, "row message",
		isRead, models.PriorityNormal, nil, time.Now(),
	}
}

func receiveFeedChange(t *testing.T, sub realtime.Subscription) realtime.Change {
	t.Helper()
	select {
	case change, ok := <-sub.Changes():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return change
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for feed change")
		return realtime.Change{}
	}
}

func expectNoFeedChange(t *testing.T, sub realtime.Subscription) {
	t.Helper()
	select {
	case change := <-sub.Changes():
		t.Fatalf("unexpected feed change: %+v", change)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotifyRejectsInvalidInput(t *testing.T) {
	gormDB, state, cleanup := newScriptedGormDB(t, nil)
	defer cleanup()
	service := NewNotificationService(gormDB, realtime.NewMemoryFeed(0), nil, nil)

	if _, err := service.Notify(context.Background(), 1, "weather", "", "storm"); err == nil {
		t.Fatal("expected error for unknown notification type")
	}
	if _, err := service.Notify(context.Background(), 1, models.NotificationTypeGeneral, "", ""); err == nil {
		t.Fatal("expected error for empty message")
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatal(err)
	}
}

func TestNotifyPersistsPublishesAndWarmsChannel(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("INSERT INTO .notifications."),
			result:  scriptedResult{lastInsertID: 41, rowsAffected: 1},
		},
	}
	gormDB, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	feed := realtime.NewMemoryFeed(0)
	hub := realtime.NewHub(realtime.HubConfig{Feed: feed, GraceWindow: -1})
	defer hub.Close()
	sub, _ := feed.Subscribe(7)
	defer sub.Close()

	service := NewNotificationService(gormDB, feed, hub, nil)

	n, err := service.Notify(context.Background(), 7, models.NotificationTypeGeneral, "Booking confirmed", "Your seat is reserved")
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if n.NotificationID != 41 {
		t.Fatalf("expected assigned id 41, got %d", n.NotificationID)
	}
	if n.Priority != models.PriorityNormal {
		t.Fatalf("expected derived priority normal, got %q", n.Priority)
	}
	if n.Title == nil || *n.Title != "Booking confirmed" {
		t.Fatalf("title not set: %+v", n.Title)
	}

	change := receiveFeedChange(t, sub)
	if change.Type != realtime.ChangeInsert || change.New == nil || change.New.NotificationID != 41 {
		t.Fatalf("wrong feed change %+v", change)
	}

	// The insert warms the recipient's channel: hub subscription plus ours.
	if got := feed.SubscriberCount(7); got != 2 {
		t.Fatalf("expected warmed channel, %d subscriptions", got)
	}

	if err := state.verifyComplete(); err != nil {
		t.Fatal(err)
	}
}

func TestNotifyDerivesPriorityFromType(t *testing.T) {
	cases := []struct {
		notificationType string
		want             string
	}{
		{models.NotificationTypeMaintenance, models.PriorityHigh},
		{models.NotificationTypeDelay, models.PriorityHigh},
		{models.NotificationTypeTraffic, models.PriorityNormal},
		{models.NotificationTypeAnnouncement, models.PriorityNormal},
	}
	for _, tc := range cases {
		steps := []*queryStep{
			{
				kind:    kindExec,
				pattern: regexp.MustCompile("INSERT INTO .notifications."),
				result:  scriptedResult{lastInsertID: 1, rowsAffected: 1},
			},
		}
		gormDB, state, cleanup := newScriptedGormDB(t, steps)
		service := NewNotificationService(gormDB, realtime.NewMemoryFeed(0), nil, nil)

		n, err := service.Notify(context.Background(), 2, tc.notificationType, "", "heads up")
		if err != nil {
			t.Fatalf("%s: notify: %v", tc.notificationType, err)
		}
		if n.Priority != tc.want {
			t.Errorf("%s: priority = %q, want %q", tc.notificationType, n.Priority, tc.want)
		}
		if err := state.verifyComplete(); err != nil {
			t.Errorf("%s: %v", tc.notificationType, err)
		}
		cleanup()
	}
}

func TestNotifyManyReportsFirstErrorAndKeepsGoing(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("INSERT INTO .notifications."),
			err:     errors.New("insert failed"),
		},
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("INSERT INTO .notifications."),
			result:  scriptedResult{lastInsertID: 2, rowsAffected: 1},
		},
	}
	gormDB, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()
	service := NewNotificationService(gormDB, realtime.NewMemoryFeed(0), nil, nil)

	created, err := service.NotifyMany(context.Background(), []uint{1, 2}, models.NotificationTypeGeneral, "", "hello")
	if err == nil {
		t.Fatal("expected first insert error to surface")
	}
	if len(created) != 1 || created[0].RecipientID != 2 {
		t.Fatalf("expected the surviving row for recipient 2, got %+v", created)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatal(err)
	}
}

func TestMarkReadSetsReadAtAndEmitsUpdate(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM .notifications. WHERE notification_id = \\? AND recipient_id = \\?"),
			args:    []driver.Value{int64(10), int64(3)},
			columns: notificationColumns,
			rows:    [][]driver.Value{notificationRow(10, 3, models.NotificationTypeGeneral, false)},
		},
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("UPDATE .notifications. SET"),
			result:  scriptedResult{rowsAffected: 1},
		},
	}
	gormDB, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	feed := realtime.NewMemoryFeed(0)
	sub, _ := feed.Subscribe(3)
	defer sub.Close()
	hub := realtime.NewHub(realtime.HubConfig{Feed: feed, GraceWindow: -1})
	defer hub.Close()
	service := NewNotificationService(gormDB, feed, hub, nil)

	n, err := service.MarkRead(context.Background(), 3, 10)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !n.IsRead || n.ReadAt == nil {
		t.Fatalf("row not marked: %+v", n)
	}

	change := receiveFeedChange(t, sub)
	if change.Type != realtime.ChangeUpdate {
		t.Fatalf("expected update change, got %q", change.Type)
	}
	if change.Old == nil || change.Old.IsRead {
		t.Fatalf("old row should be unread: %+v", change.Old)
	}
	if change.New == nil || !change.New.IsRead || change.New.ReadAt == nil {
		t.Fatalf("new row should carry read_at: %+v", change.New)
	}

	// Read-marking must not warm a channel; only our own subscription exists.
	if got := feed.SubscriberCount(3); got != 1 {
		t.Fatalf("mark-read warmed a channel: %d subscriptions", got)
	}

	if err := state.verifyComplete(); err != nil {
		t.Fatal(err)
	}
}

func TestMarkReadAlreadyReadIsNoOp(t *testing.T) {
	readAt := time.Now().Add(-time.Hour)
	row := []driver.Value{
		int64(10), int64(3), models.NotificationTypeGeneral, nil, "row message",
		true, models.PriorityNormal, readAt, time.Now().Add(-2 * time.Hour),
	}
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM .notifications. WHERE notification_id = \\? AND recipient_id = \\?"),
			args:    []driver.Value{int64(10), int64(3)},
			columns: notificationColumns,
			rows:    [][]driver.Value{row},
		},
	}
	gormDB, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	feed := realtime.NewMemoryFeed(0)
	sub, _ := feed.Subscribe(3)
	defer sub.Close()
	service := NewNotificationService(gormDB, feed, nil, nil)

	n, err := service.MarkRead(context.Background(), 3, 10)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n.ReadAt == nil || !n.ReadAt.Equal(readAt) {
		t.Fatalf("read_at rewritten: %+v", n.ReadAt)
	}

	expectNoFeedChange(t, sub)
	if err := state.verifyComplete(); err != nil {
		t.Fatal(err)
	}
}

func TestMarkAllReadEmitsPerRowUpdates(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM .notifications. WHERE recipient_id = \\? AND is_read = \\?"),
			columns: notificationColumns,
			rows: [][]driver.Value{
				notificationRow(1, 5, models.NotificationTypeGeneral, false),
				notificationRow(2, 5, models.NotificationTypeDelay, false),
			},
		},
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("UPDATE .notifications. SET"),
			result:  scriptedResult{rowsAffected: 2},
		},
	}
	gormDB, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	feed := realtime.NewMemoryFeed(0)
	sub, _ := feed.Subscribe(5)
	defer sub.Close()
	service := NewNotificationService(gormDB, feed, nil, nil)

	count, err := service.MarkAllRead(context.Background(), 5)
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows affected, got %d", count)
	}

	for i := 0; i < 2; i++ {
		change := receiveFeedChange(t, sub)
		if change.Type != realtime.ChangeUpdate || change.New == nil || !change.New.IsRead {
			t.Fatalf("change %d malformed: %+v", i, change)
		}
	}

	if err := state.verifyComplete(); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteEmitsDeleteWithOldRow(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM .notifications. WHERE notification_id = \\? AND recipient_id = \\?"),
			args:    []driver.Value{int64(8), int64(4)},
			columns: notificationColumns,
			rows:    [][]driver.Value{notificationRow(8, 4, models.NotificationTypeGeneral, true)},
		},
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("DELETE FROM .notifications."),
			result:  scriptedResult{rowsAffected: 1},
		},
	}
	gormDB, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	feed := realtime.NewMemoryFeed(0)
	sub, _ := feed.Subscribe(4)
	defer sub.Close()
	service := NewNotificationService(gormDB, feed, nil, nil)

	if err := service.Delete(context.Background(), 4, 8); err != nil {
		t.Fatalf("delete: %v", err)
	}

	change := receiveFeedChange(t, sub)
	if change.Type != realtime.ChangeDelete {
		t.Fatalf("expected delete change, got %q", change.Type)
	}
	if change.Old == nil || change.Old.NotificationID != 8 {
		t.Fatalf("delete change missing old row: %+v", change.Old)
	}

	if err := state.verifyComplete(); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteMissingRowReturnsNotFound(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM .notifications."),
			args:    []driver.Value{int64(99), int64(4)},
			columns: notificationColumns,
			rows:    [][]driver.Value{},
		},
	}
	gormDB, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()
	service := NewNotificationService(gormDB, realtime.NewMemoryFeed(0), nil, nil)

	err := service.Delete(context.Background(), 4, 99)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatal(err)
	}
}
