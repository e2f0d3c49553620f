package models

import "time"

type Route struct {
	RouteID               int        `gorm:"primaryKey;column:route_id" json:"route_id"`
	OriginTerminalID      int        `gorm:"column:origin_terminal_id" json:"origin_terminal_id"`
	DestinationTerminalID int        `gorm:"column:destination_terminal_id" json:"destination_terminal_id"`
	DistanceKM            float64    `gorm:"column:distance_km" json:"distance_km"`
	BaseFare              int64      `gorm:"column:base_fare" json:"base_fare"` // centavos
	EstimatedMinutes      int        `gorm:"column:estimated_minutes" json:"estimated_minutes"`
	IsActive              bool       `gorm:"column:is_active" json:"is_active"`
	CreateAt              time.Time  `gorm:"column:create_at" json:"create_at"`
	UpdateAt              *time.Time `gorm:"column:update_at" json:"update_at,omitempty"`

	// Relations
	OriginTerminal      Terminal `gorm:"foreignKey:OriginTerminalID" json:"origin_terminal,omitempty"`
	DestinationTerminal Terminal `gorm:"foreignKey:DestinationTerminalID" json:"destination_terminal,omitempty"`
}

func (Route) TableName() string { return "routes" }
