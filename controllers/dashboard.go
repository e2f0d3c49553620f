package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JohnOrlandSudoy/backendbus/models"
)

// GetDashboardStats returns operational counters for the admin console.
func GetDashboardStats(c *gin.Context) {
	db := getDB()
	today := time.Now().Truncate(24 * time.Hour)

	var totalUsers, activeBuses, scheduledTrips, bookingsToday int64
	var revenueToday int64

	db.Model(&models.User{}).Where("delete_at IS NULL").Count(&totalUsers)
	db.Model(&models.Bus{}).Where("status = ?", models.BusStatusActive).Count(&activeBuses)
	db.Model(&models.Trip{}).Where("status = ?", models.TripStatusScheduled).Count(&scheduledTrips)
	db.Model(&models.Booking{}).Where("create_at >= ?", today).Count(&bookingsToday)
	db.Model(&models.Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("status = ? AND paid_at >= ?", models.PaymentPaid, today).
		Scan(&revenueToday)

	var pendingDiscounts int64
	db.Model(&models.DiscountApplication{}).
		Where("status = ?", models.DiscountStatusPending).
		Count(&pendingDiscounts)

	c.JSON(http.StatusOK, gin.H{
		"total_users":       totalUsers,
		"active_buses":      activeBuses,
		"scheduled_trips":   scheduledTrips,
		"bookings_today":    bookingsToday,
		"revenue_today":     revenueToday,
		"pending_discounts": pendingDiscounts,
	})
}
