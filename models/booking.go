package models

import "time"

// Booking status values
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
	BookingStatusCompleted = "completed"
)

// Booking payment status values
const (
	PaymentStatusUnpaid   = "unpaid"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
)

type Booking struct {
	BookingID     int        `gorm:"primaryKey;column:booking_id" json:"booking_id"`
	BookingRef    string     `gorm:"column:booking_ref;unique" json:"booking_ref"`
	UserID        int        `gorm:"column:user_id" json:"user_id"`
	TripID        int        `gorm:"column:trip_id" json:"trip_id"`
	SeatNumber    int        `gorm:"column:seat_number" json:"seat_number"`
	Fare          int64      `gorm:"column:fare" json:"fare"` // centavos
	Status        string     `gorm:"column:status" json:"status"`                 // pending|confirmed|cancelled|completed
	PaymentStatus string     `gorm:"column:payment_status" json:"payment_status"` // unpaid|paid|refunded
	CreateAt      time.Time  `gorm:"column:create_at" json:"create_at"`
	UpdateAt      *time.Time `gorm:"column:update_at" json:"update_at,omitempty"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Trip Trip `gorm:"foreignKey:TripID" json:"trip,omitempty"`
}

func (Booking) TableName() string { return "bookings" }
