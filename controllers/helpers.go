package controllers

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/JohnOrlandSudoy/backendbus/config"
	"github.com/JohnOrlandSudoy/backendbus/services"
)

var (
	notifier *services.NotificationService
	gateway  services.PaymentGateway
)

// Init wires the shared service dependencies. Called once from main.
func Init(n *services.NotificationService, g services.PaymentGateway) {
	notifier = n
	gateway = g
}

func getDB() *gorm.DB { return config.DB }

func getCurrentUserID(c *gin.Context) (uint, bool) {
	if v, ok := c.Get("userID"); ok {
		switch t := v.(type) {
		case int:
			return uint(t), true
		case int64:
			return uint(t), true
		case float64:
			return uint(t), true
		case uint:
			return t, true
		}
	}
	return 0, false
}

func getCurrentRoleID(c *gin.Context) (uint, bool) {
	if v, ok := c.Get("roleID"); ok {
		switch t := v.(type) {
		case int:
			return uint(t), true
		case int64:
			return uint(t), true
		case float64:
			return uint(t), true
		case uint:
			return t, true
		}
	}
	return 0, false
}

// formatCentavos renders an amount stored in centavos as pesos.
func formatCentavos(amount int64) string {
	return fmt.Sprintf("PHP %.2f", float64(amount)/100)
}
