package controllers

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JohnOrlandSudoy/backendbus/models"
	"github.com/JohnOrlandSudoy/backendbus/services"
)

// GetPayment returns the payment attached to one of the caller's bookings.
func GetPayment(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment ID"})
		return
	}

	userID, _ := getCurrentUserID(c)
	roleID, _ := getCurrentRoleID(c)

	var payment models.Payment
	query := getDB().Preload("Booking")
	if roleID != models.RoleAdmin {
		query = query.Joins("JOIN bookings ON bookings.booking_id = payments.booking_id").
			Where("bookings.user_id = ?", userID)
	}
	if err := query.First(&payment, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// RetryCheckout re-issues a checkout session for an unpaid booking the
// caller owns.
func RetryCheckout(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	userID, _ := getCurrentUserID(c)

	var booking models.Booking
	if err := getDB().Where("booking_id = ? AND user_id = ?", id, userID).First(&booking).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
		return
	}
	if booking.Status != models.BookingStatusPending || booking.PaymentStatus != models.PaymentStatusUnpaid {
		c.JSON(http.StatusConflict, gin.H{"error": "Booking is not awaiting payment"})
		return
	}

	session, err := gateway.CreateCheckoutSession(c.Request.Context(),
		booking.BookingRef, booking.Fare, "PHP",
		fmt.Sprintf("Bus booking %s seat %d", booking.BookingRef, booking.SeatNumber))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment gateway unavailable"})
		return
	}

	payment := models.Payment{
		BookingID:         booking.BookingID,
		ProviderSessionID: session.SessionID,
		CheckoutURL:       session.CheckoutURL,
		Amount:            booking.Fare,
		Currency:          "PHP",
		Status:            models.PaymentPending,
		CreateAt:          time.Now(),
	}
	if err := getDB().Create(&payment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to persist payment"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": payment, "checkout_url": session.CheckoutURL})
}

// PaymentWebhook receives signed gateway callbacks. A paid session
// confirms the booking, notifies the passenger over the live stream and
// sends the confirmation email.
func PaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable payload"})
		return
	}

	signature := c.GetHeader("X-Payment-Signature")
	if !services.VerifyWebhookSignature(payload, signature, os.Getenv("PAYMENT_WEBHOOK_SECRET")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook signature"})
		return
	}

	var event services.WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed webhook payload"})
		return
	}

	switch event.Type {
	case services.WebhookCheckoutPaid:
		if err := settlePaidCheckout(c, event); err != nil {
			log.Printf("Webhook settle failed for session %s: %v", event.SessionID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process payment"})
			return
		}
	case services.WebhookCheckoutFailed:
		now := time.Now()
		if err := getDB().Model(&models.Payment{}).
			Where("provider_session_id = ? AND status = ?", event.SessionID, models.PaymentPending).
			Updates(map[string]interface{}{"status": models.PaymentFailed, "update_at": now}).Error; err != nil {
			log.Printf("Webhook fail-mark failed for session %s: %v", event.SessionID, err)
		}
	default:
		// Unknown event types are acknowledged so the gateway stops retrying.
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func settlePaidCheckout(c *gin.Context, event services.WebhookEvent) error {
	var payment models.Payment
	if err := getDB().Where("provider_session_id = ?", event.SessionID).First(&payment).Error; err != nil {
		return err
	}
	if payment.Status == models.PaymentPaid {
		return nil // duplicate delivery
	}

	var booking models.Booking
	if err := getDB().Preload("Trip").Preload("User").First(&booking, payment.BookingID).Error; err != nil {
		return err
	}

	now := time.Now()
	if err := getDB().Model(&models.Payment{}).
		Where("payment_id = ?", payment.PaymentID).
		Updates(map[string]interface{}{"status": models.PaymentPaid, "paid_at": now, "update_at": now}).Error; err != nil {
		return err
	}
	if err := getDB().Model(&models.Booking{}).
		Where("booking_id = ?", booking.BookingID).
		Updates(map[string]interface{}{
			"status":         models.BookingStatusConfirmed,
			"payment_status": models.PaymentStatusPaid,
			"update_at":      now,
		}).Error; err != nil {
		return err
	}

	if _, err := notifier.Notify(c.Request.Context(), uint(booking.UserID),
		models.NotificationTypeGeneral,
		"Booking confirmed",
		fmt.Sprintf("Payment received. Booking %s (seat %d) is confirmed.", booking.BookingRef, booking.SeatNumber)); err != nil {
		log.Printf("Confirmation notification failed for booking %s: %v", booking.BookingRef, err)
	}

	if err := services.SendBookingConfirmationEmail(&booking.User, &booking,
		booking.Trip.DepartureTime, formatCentavos(booking.Fare)); err != nil {
		log.Printf("Confirmation email failed for booking %s: %v", booking.BookingRef, err)
	}

	return nil
}
