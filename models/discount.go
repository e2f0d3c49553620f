package models

import "time"

// Discount application values
const (
	DiscountTypeStudent = "student"
	DiscountTypeSenior  = "senior"
	DiscountTypePWD     = "pwd"

	DiscountStatusPending  = "pending"
	DiscountStatusApproved = "approved"
	DiscountStatusRejected = "rejected"
)

type DiscountApplication struct {
	DiscountID     int        `gorm:"primaryKey;column:discount_id" json:"discount_id"`
	UserID         int        `gorm:"column:user_id" json:"user_id"`
	DiscountType   string     `gorm:"column:discount_type" json:"discount_type"` // student|senior|pwd
	DocumentFileID *int       `gorm:"column:document_file_id" json:"document_file_id,omitempty"`
	Status         string     `gorm:"column:status" json:"status"` // pending|approved|rejected
	ReviewedBy     *int       `gorm:"column:reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
	Remarks        *string    `gorm:"column:remarks" json:"remarks,omitempty"`
	CreateAt       time.Time  `gorm:"column:create_at" json:"create_at"`
	UpdateAt       *time.Time `gorm:"column:update_at" json:"update_at,omitempty"`

	// Relations
	User     User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Document *FileUpload `gorm:"foreignKey:DocumentFileID" json:"document,omitempty"`
}

func (DiscountApplication) TableName() string { return "discount_applications" }
