package controllers

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/JohnOrlandSudoy/backendbus/models"
)

type bookingRequest struct {
	TripID     int `json:"trip_id" binding:"required"`
	SeatNumber int `json:"seat_number" binding:"required,min=1"`
}

// CreateBooking reserves a seat on a scheduled trip and opens a hosted
// checkout session for it. The booking stays pending until the payment
// webhook confirms it.
func CreateBooking(c *gin.Context) {
	userID, ok := getCurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req bookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var booking models.Booking
	var payment models.Payment

	err := getDB().Transaction(func(tx *gorm.DB) error {
		var trip models.Trip
		if err := tx.Preload("Bus").First(&trip, req.TripID).Error; err != nil {
			return fmt.Errorf("trip not found")
		}
		if trip.Status != models.TripStatusScheduled {
			return fmt.Errorf("trip is not open for booking")
		}
		if trip.AvailableSeats <= 0 {
			return fmt.Errorf("trip is fully booked")
		}
		if req.SeatNumber > trip.Bus.Capacity {
			return fmt.Errorf("seat number exceeds bus capacity")
		}

		var taken int64
		if err := tx.Model(&models.Booking{}).
			Where("trip_id = ? AND seat_number = ? AND status IN ?",
				trip.TripID, req.SeatNumber,
				[]string{models.BookingStatusPending, models.BookingStatusConfirmed}).
			Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return fmt.Errorf("seat is already taken")
		}

		booking = models.Booking{
			BookingRef:    uuid.NewString(),
			UserID:        int(userID),
			TripID:        trip.TripID,
			SeatNumber:    req.SeatNumber,
			Fare:          trip.Fare,
			Status:        models.BookingStatusPending,
			PaymentStatus: models.PaymentStatusUnpaid,
			CreateAt:      time.Now(),
		}
		if err := tx.Create(&booking).Error; err != nil {
			return err
		}

		return tx.Model(&models.Trip{}).
			Where("trip_id = ?", trip.TripID).
			UpdateColumn("available_seats", gorm.Expr("available_seats - 1")).Error
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := gateway.CreateCheckoutSession(c.Request.Context(),
		booking.BookingRef, booking.Fare, "PHP",
		fmt.Sprintf("Bus booking %s seat %d", booking.BookingRef, booking.SeatNumber))
	if err != nil {
		// Booking stands; the client can re-issue a session later.
		log.Printf("Checkout session failed for booking %s: %v", booking.BookingRef, err)
		c.JSON(http.StatusCreated, gin.H{
			"booking": booking,
			"message": "Booking created, payment session unavailable — retry checkout",
		})
		return
	}

	payment = models.Payment{
		BookingID:         booking.BookingID,
		ProviderSessionID: session.SessionID,
		CheckoutURL:       session.CheckoutURL,
		Amount:            booking.Fare,
		Currency:          "PHP",
		Status:            models.PaymentPending,
		CreateAt:          time.Now(),
	}
	if err := getDB().Create(&payment).Error; err != nil {
		log.Printf("Failed to persist payment for booking %s: %v", booking.BookingRef, err)
	}

	c.JSON(http.StatusCreated, gin.H{
		"booking":      booking,
		"payment":      payment,
		"checkout_url": session.CheckoutURL,
		"message":      "Booking created, complete payment to confirm",
	})
}

// GetMyBookings lists the caller's bookings, newest first.
func GetMyBookings(c *gin.Context) {
	userID, ok := getCurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var bookings []models.Booking
	if err := getDB().Preload("Trip").Preload("Trip.Route").
		Preload("Trip.Route.OriginTerminal").Preload("Trip.Route.DestinationTerminal").
		Where("user_id = ?", userID).
		Order("create_at DESC").
		Find(&bookings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bookings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "total": len(bookings)})
}

// GetBooking returns one booking. Owners see their own; admins see any.
func GetBooking(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	userID, _ := getCurrentUserID(c)
	roleID, _ := getCurrentRoleID(c)

	var booking models.Booking
	query := getDB().Preload("Trip").Preload("Trip.Route").
		Preload("Trip.Route.OriginTerminal").Preload("Trip.Route.DestinationTerminal")
	if roleID != models.RoleAdmin {
		query = query.Where("user_id = ?", userID)
	}
	if err := query.First(&booking, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// CancelBooking releases the seat. Paid bookings are flagged for refund.
func CancelBooking(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	userID, ok := getCurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	err = getDB().Transaction(func(tx *gorm.DB) error {
		var booking models.Booking
		if err := tx.Where("booking_id = ? AND user_id = ?", id, userID).First(&booking).Error; err != nil {
			return fmt.Errorf("booking not found")
		}
		if booking.Status == models.BookingStatusCancelled || booking.Status == models.BookingStatusCompleted {
			return fmt.Errorf("booking can no longer be cancelled")
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":    models.BookingStatusCancelled,
			"update_at": now,
		}
		if booking.PaymentStatus == models.PaymentStatusPaid {
			updates["payment_status"] = models.PaymentStatusRefunded
		}
		if err := tx.Model(&models.Booking{}).
			Where("booking_id = ?", booking.BookingID).
			Updates(updates).Error; err != nil {
			return err
		}

		return tx.Model(&models.Trip{}).
			Where("trip_id = ?", booking.TripID).
			UpdateColumn("available_seats", gorm.Expr("available_seats + 1")).Error
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Booking cancelled"})
}
