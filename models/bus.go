package models

import "time"

// Bus status values
const (
	BusStatusActive      = "active"
	BusStatusMaintenance = "maintenance"
	BusStatusRetired     = "retired"
)

type Bus struct {
	BusID       int        `gorm:"primaryKey;column:bus_id" json:"bus_id"`
	PlateNumber string     `gorm:"column:plate_number;unique" json:"plate_number"`
	BusModel    string     `gorm:"column:bus_model" json:"bus_model"`
	Capacity    int        `gorm:"column:capacity" json:"capacity"`
	Status      string     `gorm:"column:status" json:"status"` // active|maintenance|retired
	DriverID    *int       `gorm:"column:driver_id" json:"driver_id,omitempty"`
	CreateAt    time.Time  `gorm:"column:create_at" json:"create_at"`
	UpdateAt    *time.Time `gorm:"column:update_at" json:"update_at,omitempty"`

	// Relations
	Driver *User `gorm:"foreignKey:DriverID" json:"driver,omitempty"`
}

func (Bus) TableName() string { return "buses" }
