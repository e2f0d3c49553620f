package models

import "time"

// Trip status values
const (
	TripStatusScheduled = "scheduled"
	TripStatusDeparted  = "departed"
	TripStatusArrived   = "arrived"
	TripStatusCancelled = "cancelled"
)

type Trip struct {
	TripID         int        `gorm:"primaryKey;column:trip_id" json:"trip_id"`
	RouteID        int        `gorm:"column:route_id" json:"route_id"`
	BusID          int        `gorm:"column:bus_id" json:"bus_id"`
	DepartureTime  time.Time  `gorm:"column:departure_time" json:"departure_time"`
	Fare           int64      `gorm:"column:fare" json:"fare"` // centavos
	AvailableSeats int        `gorm:"column:available_seats" json:"available_seats"`
	Status         string     `gorm:"column:status" json:"status"` // scheduled|departed|arrived|cancelled
	CreateAt       time.Time  `gorm:"column:create_at" json:"create_at"`
	UpdateAt       *time.Time `gorm:"column:update_at" json:"update_at,omitempty"`

	// Relations
	Route Route `gorm:"foreignKey:RouteID" json:"route,omitempty"`
	Bus   Bus   `gorm:"foreignKey:BusID" json:"bus,omitempty"`
}

func (Trip) TableName() string { return "trips" }
