package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/JohnOrlandSudoy/backendbus/models"
	"github.com/JohnOrlandSudoy/backendbus/realtime"
)

// NotificationService owns every write to the notifications table. After a
// durable write it publishes the row change to the feed and warms the
// recipient's hub channel so an already-open stream starts receiving live
// updates. Feed and hub failures never fail the request path.
type NotificationService struct {
	db     *gorm.DB
	feed   realtime.Feed
	hub    *realtime.Hub
	logger *log.Logger
}

func NewNotificationService(db *gorm.DB, feed realtime.Feed, hub *realtime.Hub, logger *log.Logger) *NotificationService {
	if logger == nil {
		logger = log.Default()
	}
	return &NotificationService{db: db, feed: feed, hub: hub, logger: logger}
}

func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}

// Notify inserts one notification for the recipient. Priority is derived
// from the type; title may be empty.
func (s *NotificationService) Notify(ctx context.Context, recipientID uint, notificationType, title, message string) (*models.Notification, error) {
	if !models.ValidNotificationType(notificationType) {
		return nil, fmt.Errorf("invalid notification type %q", notificationType)
	}
	if message == "" {
		return nil, fmt.Errorf("message is required")
	}

	n := models.Notification{
		RecipientID: recipientID,
		Type:        notificationType,
		Message:     message,
		Priority:    models.DerivePriority(notificationType),
		CreatedAt:   time.Now(),
	}
	if title != "" {
		n.Title = &title
	}

	if err := s.db.Create(&n).Error; err != nil {
		return nil, err
	}

	s.emit(ctx, realtime.Change{Type: realtime.ChangeInsert, New: &n})
	return &n, nil
}

// NotifyMany inserts one notification per recipient. Recipients that fail
// are skipped; the first error is returned alongside the rows that did
// insert.
func (s *NotificationService) NotifyMany(ctx context.Context, recipientIDs []uint, notificationType, title, message string) ([]models.Notification, error) {
	var firstErr error
	created := make([]models.Notification, 0, len(recipientIDs))
	for _, recipientID := range recipientIDs {
		n, err := s.Notify(ctx, recipientID, notificationType, title, message)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		created = append(created, *n)
	}
	return created, firstErr
}

// BroadcastToRole notifies every active, non-deleted user holding the role.
func (s *NotificationService) BroadcastToRole(ctx context.Context, roleID int, notificationType, title, message string) (int, error) {
	var recipientIDs []uint
	if err := s.db.Model(&models.User{}).
		Where("role_id = ? AND is_active = ? AND delete_at IS NULL", roleID, true).
		Pluck("user_id", &recipientIDs).Error; err != nil {
		return 0, err
	}

	created, err := s.NotifyMany(ctx, recipientIDs, notificationType, title, message)
	return len(created), err
}

// MarkRead flips is_read for a notification owned by the recipient. ReadAt
// is set exactly once, on the first false to true transition.
func (s *NotificationService) MarkRead(ctx context.Context, recipientID uint, notificationID uint) (*models.Notification, error) {
	var n models.Notification
	if err := s.db.Where("notification_id = ? AND recipient_id = ?", notificationID, recipientID).
		First(&n).Error; err != nil {
		return nil, err
	}
	if n.IsRead {
		return &n, nil
	}

	old := n
	now := time.Now()
	if err := s.db.Model(&models.Notification{}).
		Where("notification_id = ?", n.NotificationID).
		Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error; err != nil {
		return nil, err
	}
	n.IsRead = true
	n.ReadAt = &now

	s.emit(ctx, realtime.Change{Type: realtime.ChangeUpdate, New: &n, Old: &old})
	return &n, nil
}

// MarkAllRead marks every unread notification for the recipient.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID uint) (int64, error) {
	var unread []models.Notification
	if err := s.db.Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Find(&unread).Error; err != nil {
		return 0, err
	}
	if len(unread) == 0 {
		return 0, nil
	}

	now := time.Now()
	result := s.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	if result.Error != nil {
		return 0, result.Error
	}

	for i := range unread {
		old := unread[i]
		updated := old
		updated.IsRead = true
		updated.ReadAt = &now
		s.emit(ctx, realtime.Change{Type: realtime.ChangeUpdate, New: &updated, Old: &old})
	}
	return result.RowsAffected, nil
}

// Delete removes a notification owned by the recipient.
func (s *NotificationService) Delete(ctx context.Context, recipientID uint, notificationID uint) error {
	var n models.Notification
	if err := s.db.Where("notification_id = ? AND recipient_id = ?", notificationID, recipientID).
		First(&n).Error; err != nil {
		return err
	}
	if err := s.db.Delete(&models.Notification{}, n.NotificationID).Error; err != nil {
		return err
	}
	s.emit(ctx, realtime.Change{Type: realtime.ChangeDelete, Old: &n})
	return nil
}

// DeleteRead removes every already-read notification for the recipient.
func (s *NotificationService) DeleteRead(ctx context.Context, recipientID uint) (int64, error) {
	var read []models.Notification
	if err := s.db.Where("recipient_id = ? AND is_read = ?", recipientID, true).
		Find(&read).Error; err != nil {
		return 0, err
	}
	if len(read) == 0 {
		return 0, nil
	}

	result := s.db.Where("recipient_id = ? AND is_read = ?", recipientID, true).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, result.Error
	}

	for i := range read {
		old := read[i]
		s.emit(ctx, realtime.Change{Type: realtime.ChangeDelete, Old: &old})
	}
	return result.RowsAffected, nil
}

// AdminDelete removes any notification regardless of owner.
func (s *NotificationService) AdminDelete(ctx context.Context, notificationID uint) error {
	var n models.Notification
	if err := s.db.Where("notification_id = ?", notificationID).First(&n).Error; err != nil {
		return err
	}
	if err := s.db.Delete(&models.Notification{}, n.NotificationID).Error; err != nil {
		return err
	}
	s.emit(ctx, realtime.Change{Type: realtime.ChangeDelete, Old: &n})
	return nil
}

// emit pushes the change to the live layer. The notification row is the
// source of truth; a lost live event only degrades to the client polling.
func (s *NotificationService) emit(ctx context.Context, change realtime.Change) {
	if s.feed != nil {
		if err := s.feed.Publish(persistentContext(ctx), change); err != nil {
			s.logger.Printf("notification feed publish failed: %v", err)
		}
	}
	// Send operations warm the channel so an already-open stream picks up
	// live updates; read-marking and deletion ride existing channels only.
	if s.hub != nil && change.Type == realtime.ChangeInsert {
		s.hub.EnsureChannel(change.RecipientID())
	}
}
