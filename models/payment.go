package models

import "time"

// Payment status values
const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentFailed   = "failed"
	PaymentRefunded = "refunded"
)

type Payment struct {
	PaymentID         int        `gorm:"primaryKey;column:payment_id" json:"payment_id"`
	BookingID         int        `gorm:"column:booking_id" json:"booking_id"`
	ProviderSessionID string     `gorm:"column:provider_session_id" json:"provider_session_id"`
	CheckoutURL       string     `gorm:"column:checkout_url" json:"checkout_url"`
	Amount            int64      `gorm:"column:amount" json:"amount"` // centavos
	Currency          string     `gorm:"column:currency" json:"currency"`
	Status            string     `gorm:"column:status" json:"status"` // pending|paid|failed|refunded
	PaidAt            *time.Time `gorm:"column:paid_at" json:"paid_at,omitempty"`
	CreateAt          time.Time  `gorm:"column:create_at" json:"create_at"`
	UpdateAt          *time.Time `gorm:"column:update_at" json:"update_at,omitempty"`

	// Relations
	Booking Booking `gorm:"foreignKey:BookingID" json:"booking,omitempty"`
}

func (Payment) TableName() string { return "payments" }
