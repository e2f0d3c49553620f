package controllers

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/JohnOrlandSudoy/backendbus/models"
)

type tripRequest struct {
	RouteID       int       `json:"route_id" binding:"required"`
	BusID         int       `json:"bus_id" binding:"required"`
	DepartureTime time.Time `json:"departure_time" binding:"required"`
	Fare          int64     `json:"fare"`
}

// GetTrips lists trips; supports ?origin=, ?destination=, ?date=YYYY-MM-DD
// and ?status= filters.
func GetTrips(c *gin.Context) {
	query := getDB().Model(&models.Trip{}).
		Preload("Route").
		Preload("Route.OriginTerminal").
		Preload("Route.DestinationTerminal").
		Preload("Bus")

	if status := c.Query("status"); status != "" {
		query = query.Where("trips.status = ?", status)
	} else {
		query = query.Where("trips.status = ?", models.TripStatusScheduled)
	}
	if origin := c.Query("origin"); origin != "" {
		query = query.Joins("JOIN routes ON routes.route_id = trips.route_id").
			Where("routes.origin_terminal_id = ?", origin)
		if destination := c.Query("destination"); destination != "" {
			query = query.Where("routes.destination_terminal_id = ?", destination)
		}
	} else if destination := c.Query("destination"); destination != "" {
		query = query.Joins("JOIN routes ON routes.route_id = trips.route_id").
			Where("routes.destination_terminal_id = ?", destination)
	}
	if date := c.Query("date"); date != "" {
		day, err := time.ParseInLocation("2006-01-02", date, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected YYYY-MM-DD"})
			return
		}
		query = query.Where("trips.departure_time >= ? AND trips.departure_time < ?", day, day.AddDate(0, 0, 1))
	}

	var trips []models.Trip
	if err := query.Order("trips.departure_time ASC").Find(&trips).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch trips"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"trips": trips, "total": len(trips)})
}

// GetTrip returns one trip by id.
func GetTrip(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trip ID"})
		return
	}

	var trip models.Trip
	if err := getDB().Preload("Route").Preload("Route.OriginTerminal").
		Preload("Route.DestinationTerminal").Preload("Bus").
		First(&trip, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Trip not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch trip"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"trip": trip})
}

// CreateTrip schedules a departure on a route with a bus (admin). Fare
// defaults to the route's base fare; seats default to the bus capacity.
func CreateTrip(c *gin.Context) {
	var req tripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var route models.Route
	if err := getDB().Where("route_id = ? AND is_active = ?", req.RouteID, true).First(&route).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Route not found or inactive"})
		return
	}

	var bus models.Bus
	if err := getDB().Where("bus_id = ? AND status = ?", req.BusID, models.BusStatusActive).First(&bus).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Bus not found or not active"})
		return
	}

	if req.DepartureTime.Before(time.Now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Departure time must be in the future"})
		return
	}

	fare := req.Fare
	if fare <= 0 {
		fare = route.BaseFare
	}

	trip := models.Trip{
		RouteID:        req.RouteID,
		BusID:          req.BusID,
		DepartureTime:  req.DepartureTime,
		Fare:           fare,
		AvailableSeats: bus.Capacity,
		Status:         models.TripStatusScheduled,
		CreateAt:       time.Now(),
	}
	if err := getDB().Create(&trip).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create trip"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"trip": trip, "message": "Trip scheduled"})
}

// UpdateTripStatus moves a trip through its lifecycle (admin).
func UpdateTripStatus(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trip ID"})
		return
	}

	type statusRequest struct {
		Status string `json:"status" binding:"required"`
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Status {
	case models.TripStatusDeparted, models.TripStatusArrived:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status must be departed or arrived; use the cancel endpoint to cancel"})
		return
	}

	var trip models.Trip
	if err := getDB().First(&trip, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Trip not found"})
		return
	}

	now := time.Now()
	trip.Status = req.Status
	trip.UpdateAt = &now
	if err := getDB().Save(&trip).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update trip"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"trip": trip, "message": "Trip updated"})
}

// CancelTrip cancels a scheduled trip and pushes a route_change
// notification to every passenger holding a live booking on it (admin).
func CancelTrip(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trip ID"})
		return
	}

	var trip models.Trip
	if err := getDB().Preload("Route.OriginTerminal").Preload("Route.DestinationTerminal").
		First(&trip, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Trip not found"})
		return
	}
	if trip.Status != models.TripStatusScheduled {
		c.JSON(http.StatusConflict, gin.H{"error": "Only scheduled trips can be cancelled"})
		return
	}

	now := time.Now()
	trip.Status = models.TripStatusCancelled
	trip.UpdateAt = &now
	if err := getDB().Save(&trip).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel trip"})
		return
	}

	notifyBookedPassengers(c, trip,
		models.NotificationTypeRouteChange,
		"Trip cancelled",
		fmt.Sprintf("Your trip from %s to %s on %s has been cancelled. Contact the terminal for rebooking or refund.",
			trip.Route.OriginTerminal.Name,
			trip.Route.DestinationTerminal.Name,
			trip.DepartureTime.Format("Jan 2, 3:04 PM")))

	c.JSON(http.StatusOK, gin.H{"trip": trip, "message": "Trip cancelled and passengers notified"})
}

// DelayTrip records a new departure time and pushes a delay notification
// (high priority by derivation) to booked passengers (admin).
func DelayTrip(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trip ID"})
		return
	}

	type delayRequest struct {
		NewDepartureTime time.Time `json:"new_departure_time" binding:"required"`
		Reason           string    `json:"reason"`
	}
	var req delayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var trip models.Trip
	if err := getDB().Preload("Route.OriginTerminal").Preload("Route.DestinationTerminal").
		First(&trip, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Trip not found"})
		return
	}
	if trip.Status != models.TripStatusScheduled {
		c.JSON(http.StatusConflict, gin.H{"error": "Only scheduled trips can be delayed"})
		return
	}
	if !req.NewDepartureTime.After(trip.DepartureTime) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "New departure time must be later than the current one"})
		return
	}

	now := time.Now()
	oldDeparture := trip.DepartureTime
	trip.DepartureTime = req.NewDepartureTime
	trip.UpdateAt = &now
	if err := getDB().Save(&trip).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delay trip"})
		return
	}

	message := fmt.Sprintf("Your trip from %s to %s is delayed from %s to %s.",
		trip.Route.OriginTerminal.Name,
		trip.Route.DestinationTerminal.Name,
		oldDeparture.Format("3:04 PM"),
		req.NewDepartureTime.Format("3:04 PM"))
	if req.Reason != "" {
		message += " Reason: " + req.Reason
	}

	notifyBookedPassengers(c, trip, models.NotificationTypeDelay, "Trip delayed", message)

	c.JSON(http.StatusOK, gin.H{"trip": trip, "message": "Trip delayed and passengers notified"})
}

func notifyBookedPassengers(c *gin.Context, trip models.Trip, notificationType, title, message string) {
	var passengerIDs []uint
	if err := getDB().Model(&models.Booking{}).
		Where("trip_id = ? AND status IN ?", trip.TripID, []string{models.BookingStatusPending, models.BookingStatusConfirmed}).
		Distinct().
		Pluck("user_id", &passengerIDs).Error; err != nil {
		log.Printf("Failed to load passengers for trip %d: %v", trip.TripID, err)
		return
	}
	if len(passengerIDs) == 0 {
		return
	}
	if _, err := notifier.NotifyMany(c.Request.Context(), passengerIDs, notificationType, title, message); err != nil {
		log.Printf("Failed to notify passengers for trip %d: %v", trip.TripID, err)
	}
}
