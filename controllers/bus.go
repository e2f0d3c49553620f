package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/JohnOrlandSudoy/backendbus/models"
	"github.com/JohnOrlandSudoy/backendbus/utils"
)

type busRequest struct {
	PlateNumber string `json:"plate_number" binding:"required"`
	BusModel    string `json:"bus_model"`
	Capacity    int    `json:"capacity" binding:"required,min=1"`
	DriverID    *int   `json:"driver_id"`
}

func validBusStatus(status string) bool {
	switch status {
	case models.BusStatusActive, models.BusStatusMaintenance, models.BusStatusRetired:
		return true
	}
	return false
}

// GetBuses lists the fleet; ?status= filters.
func GetBuses(c *gin.Context) {
	query := getDB().Model(&models.Bus{}).Preload("Driver")
	if status := c.Query("status"); status != "" {
		if !validBusStatus(status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bus status"})
			return
		}
		query = query.Where("status = ?", status)
	}

	var buses []models.Bus
	if err := query.Order("plate_number ASC").Find(&buses).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch buses"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"buses": buses, "total": len(buses)})
}

// GetBus returns one bus by id.
func GetBus(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bus ID"})
		return
	}

	var bus models.Bus
	if err := getDB().Preload("Driver").First(&bus, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bus not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bus"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"bus": bus})
}

// CreateBus registers a new unit (admin).
func CreateBus(c *gin.Context) {
	var req busRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plate := strings.ToUpper(utils.SanitizeInput(req.PlateNumber))

	var existing models.Bus
	if err := getDB().Where("plate_number = ?", plate).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Plate number already registered"})
		return
	}

	if req.DriverID != nil && !driverExists(*req.DriverID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Driver not found"})
		return
	}

	bus := models.Bus{
		PlateNumber: plate,
		BusModel:    utils.SanitizeInput(req.BusModel),
		Capacity:    req.Capacity,
		Status:      models.BusStatusActive,
		DriverID:    req.DriverID,
		CreateAt:    time.Now(),
	}
	if err := getDB().Create(&bus).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create bus"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"bus": bus, "message": "Bus registered"})
}

// UpdateBus edits capacity, model, status or driver assignment (admin).
func UpdateBus(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bus ID"})
		return
	}

	var bus models.Bus
	if err := getDB().First(&bus, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Bus not found"})
		return
	}

	type updateRequest struct {
		BusModel *string `json:"bus_model"`
		Capacity *int    `json:"capacity"`
		Status   *string `json:"status"`
		DriverID *int    `json:"driver_id"`
	}
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Status != nil && !validBusStatus(*req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bus status"})
		return
	}
	if req.DriverID != nil && !driverExists(*req.DriverID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Driver not found"})
		return
	}

	now := time.Now()
	if req.BusModel != nil {
		bus.BusModel = utils.SanitizeInput(*req.BusModel)
	}
	if req.Capacity != nil && *req.Capacity > 0 {
		bus.Capacity = *req.Capacity
	}
	if req.Status != nil {
		bus.Status = *req.Status
	}
	if req.DriverID != nil {
		bus.DriverID = req.DriverID
	}
	bus.UpdateAt = &now

	if err := getDB().Save(&bus).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update bus"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"bus": bus, "message": "Bus updated"})
}

// DeleteBus retires a unit (admin). History stays intact.
func DeleteBus(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bus ID"})
		return
	}

	now := time.Now()
	result := getDB().Model(&models.Bus{}).
		Where("bus_id = ?", id).
		Updates(map[string]interface{}{"status": models.BusStatusRetired, "update_at": now})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retire bus"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Bus not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Bus retired"})
}

func driverExists(driverID int) bool {
	var count int64
	getDB().Model(&models.User{}).
		Where("user_id = ? AND role_id = ? AND is_active = ? AND delete_at IS NULL", driverID, models.RoleDriver, true).
		Count(&count)
	return count == 1
}
