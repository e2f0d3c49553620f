package services

import (
	"bytes"
	"html/template"
	"time"

	"github.com/JohnOrlandSudoy/backendbus/config"
	"github.com/JohnOrlandSudoy/backendbus/models"
)

var otpEmailTemplate = template.Must(template.New("otp").Parse(`
<div style="font-family:Arial,sans-serif;max-width:480px;margin:0 auto">
  <h2>Password Reset Code</h2>
  <p>Hi {{.Name}},</p>
  <p>Use the code below to reset your password. It expires in {{.ExpiresMinutes}} minutes.</p>
  <p style="font-size:28px;letter-spacing:6px;font-weight:bold">{{.Code}}</p>
  <p>If you did not request a reset, you can ignore this email.</p>
</div>`))

var bookingEmailTemplate = template.Must(template.New("booking").Parse(`
<div style="font-family:Arial,sans-serif;max-width:480px;margin:0 auto">
  <h2>Booking Confirmed</h2>
  <p>Hi {{.Name}},</p>
  <p>Your booking <strong>{{.BookingRef}}</strong> is confirmed.</p>
  <ul>
    <li>Departure: {{.Departure}}</li>
    <li>Seat: {{.SeatNumber}}</li>
    <li>Fare: {{.Fare}}</li>
  </ul>
  <p>Show this reference at the terminal. Safe travels!</p>
</div>`))

// SendOTPEmail delivers a password-reset code to the user.
func SendOTPEmail(user *models.User, code string, expiresIn time.Duration) error {
	var body bytes.Buffer
	err := otpEmailTemplate.Execute(&body, map[string]interface{}{
		"Name":           user.FirstName,
		"Code":           code,
		"ExpiresMinutes": int(expiresIn.Minutes()),
	})
	if err != nil {
		return err
	}
	return config.SendMail([]string{user.Email}, "Your password reset code", body.String())
}

// SendBookingConfirmationEmail delivers the paid-booking receipt.
func SendBookingConfirmationEmail(user *models.User, booking *models.Booking, departure time.Time, fare string) error {
	var body bytes.Buffer
	err := bookingEmailTemplate.Execute(&body, map[string]interface{}{
		"Name":       user.FirstName,
		"BookingRef": booking.BookingRef,
		"Departure":  departure.Format("Mon, 02 Jan 2006 3:04 PM"),
		"SeatNumber": booking.SeatNumber,
		"Fare":       fare,
	})
	if err != nil {
		return err
	}
	return config.SendMail([]string{user.Email}, "Booking "+booking.BookingRef+" confirmed", body.String())
}
