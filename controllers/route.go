package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/JohnOrlandSudoy/backendbus/models"
)

type routeRequest struct {
	OriginTerminalID      int     `json:"origin_terminal_id" binding:"required"`
	DestinationTerminalID int     `json:"destination_terminal_id" binding:"required"`
	DistanceKM            float64 `json:"distance_km"`
	BaseFare              int64   `json:"base_fare" binding:"required"`
	EstimatedMinutes      int     `json:"estimated_minutes"`
}

// GetRoutes lists routes; ?origin= and ?destination= filter by terminal id.
func GetRoutes(c *gin.Context) {
	query := getDB().Model(&models.Route{}).
		Preload("OriginTerminal").
		Preload("DestinationTerminal")
	if c.Query("all") != "true" {
		query = query.Where("is_active = ?", true)
	}
	if origin := c.Query("origin"); origin != "" {
		query = query.Where("origin_terminal_id = ?", origin)
	}
	if destination := c.Query("destination"); destination != "" {
		query = query.Where("destination_terminal_id = ?", destination)
	}

	var routes []models.Route
	if err := query.Find(&routes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch routes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"routes": routes, "total": len(routes)})
}

// GetRoute returns one route by id.
func GetRoute(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid route ID"})
		return
	}

	var route models.Route
	if err := getDB().Preload("OriginTerminal").Preload("DestinationTerminal").
		First(&route, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch route"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"route": route})
}

// CreateRoute adds a route between two terminals (admin).
func CreateRoute(c *gin.Context) {
	var req routeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.OriginTerminalID == req.DestinationTerminalID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Origin and destination must differ"})
		return
	}

	var count int64
	if err := getDB().Model(&models.Terminal{}).
		Where("terminal_id IN ? AND is_active = ?", []int{req.OriginTerminalID, req.DestinationTerminalID}, true).
		Count(&count).Error; err != nil || count != 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Both terminals must exist and be active"})
		return
	}

	route := models.Route{
		OriginTerminalID:      req.OriginTerminalID,
		DestinationTerminalID: req.DestinationTerminalID,
		DistanceKM:            req.DistanceKM,
		BaseFare:              req.BaseFare,
		EstimatedMinutes:      req.EstimatedMinutes,
		IsActive:              true,
		CreateAt:              time.Now(),
	}
	if err := getDB().Create(&route).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create route"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"route": route, "message": "Route created"})
}

// UpdateRoute edits fare, distance, duration or active flag (admin).
func UpdateRoute(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid route ID"})
		return
	}

	var route models.Route
	if err := getDB().First(&route, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
		return
	}

	type updateRequest struct {
		DistanceKM       *float64 `json:"distance_km"`
		BaseFare         *int64   `json:"base_fare"`
		EstimatedMinutes *int     `json:"estimated_minutes"`
		IsActive         *bool    `json:"is_active"`
	}
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	if req.DistanceKM != nil {
		route.DistanceKM = *req.DistanceKM
	}
	if req.BaseFare != nil {
		route.BaseFare = *req.BaseFare
	}
	if req.EstimatedMinutes != nil {
		route.EstimatedMinutes = *req.EstimatedMinutes
	}
	if req.IsActive != nil {
		route.IsActive = *req.IsActive
	}
	route.UpdateAt = &now

	if err := getDB().Save(&route).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update route"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"route": route, "message": "Route updated"})
}

// DeleteRoute deactivates a route (admin).
func DeleteRoute(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid route ID"})
		return
	}

	now := time.Now()
	result := getDB().Model(&models.Route{}).
		Where("route_id = ?", id).
		Updates(map[string]interface{}{"is_active": false, "update_at": now})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete route"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Route deactivated"})
}
