package models

import "time"

type Terminal struct {
	TerminalID int        `gorm:"primaryKey;column:terminal_id" json:"terminal_id"`
	Name       string     `gorm:"column:name" json:"name"`
	City       string     `gorm:"column:city" json:"city"`
	Address    string     `gorm:"column:address" json:"address"`
	IsActive   bool       `gorm:"column:is_active" json:"is_active"`
	CreateAt   time.Time  `gorm:"column:create_at" json:"create_at"`
	UpdateAt   *time.Time `gorm:"column:update_at" json:"update_at,omitempty"`
}

func (Terminal) TableName() string { return "terminals" }
