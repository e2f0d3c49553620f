package models

import "time"

// Notification types
const (
	NotificationTypeDelay        = "delay"
	NotificationTypeRouteChange  = "route_change"
	NotificationTypeTraffic      = "traffic"
	NotificationTypeGeneral      = "general"
	NotificationTypeAnnouncement = "announcement"
	NotificationTypeMaintenance  = "maintenance"
)

// Notification priorities. The full set is accepted on direct inserts but
// DerivePriority only ever produces normal or high.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

type Notification struct {
	NotificationID uint       `gorm:"primaryKey;column:notification_id" json:"notification_id"`
	RecipientID    uint       `gorm:"column:recipient_id" json:"recipient_id"`
	Type           string     `gorm:"column:type" json:"type"` // delay|route_change|traffic|general|announcement|maintenance
	Title          *string    `gorm:"column:title" json:"title,omitempty"`
	Message        string     `gorm:"column:message" json:"message"`
	IsRead         bool       `gorm:"column:is_read" json:"is_read"`
	Priority       string     `gorm:"column:priority" json:"priority"` // low|normal|high|urgent
	ReadAt         *time.Time `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt      time.Time  `gorm:"column:created_at" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

// ValidNotificationType reports whether t is one of the accepted types.
func ValidNotificationType(t string) bool {
	switch t {
	case NotificationTypeDelay, NotificationTypeRouteChange, NotificationTypeTraffic,
		NotificationTypeGeneral, NotificationTypeAnnouncement, NotificationTypeMaintenance:
		return true
	}
	return false
}

// DerivePriority maps a notification type to its creation-time priority.
// Maintenance and delay notices go out high, everything else normal.
func DerivePriority(notificationType string) string {
	switch notificationType {
	case NotificationTypeMaintenance, NotificationTypeDelay:
		return PriorityHigh
	default:
		return PriorityNormal
	}
}
