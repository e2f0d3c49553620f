package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/JohnOrlandSudoy/backendbus/models"
	"github.com/JohnOrlandSudoy/backendbus/utils"
)

type terminalRequest struct {
	Name    string `json:"name" binding:"required"`
	City    string `json:"city" binding:"required"`
	Address string `json:"address"`
}

// GetTerminals lists terminals; ?city= filters, ?all=true includes inactive.
func GetTerminals(c *gin.Context) {
	query := getDB().Model(&models.Terminal{})
	if c.Query("all") != "true" {
		query = query.Where("is_active = ?", true)
	}
	if city := utils.SanitizeInput(c.Query("city")); city != "" {
		query = query.Where("city = ?", city)
	}

	var terminals []models.Terminal
	if err := query.Order("name ASC").Find(&terminals).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch terminals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"terminals": terminals, "total": len(terminals)})
}

// GetTerminal returns one terminal by id.
func GetTerminal(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid terminal ID"})
		return
	}

	var terminal models.Terminal
	if err := getDB().First(&terminal, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Terminal not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch terminal"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"terminal": terminal})
}

// CreateTerminal adds a terminal (admin).
func CreateTerminal(c *gin.Context) {
	var req terminalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	terminal := models.Terminal{
		Name:     utils.SanitizeInput(req.Name),
		City:     utils.SanitizeInput(req.City),
		Address:  utils.SanitizeInput(req.Address),
		IsActive: true,
		CreateAt: time.Now(),
	}
	if err := getDB().Create(&terminal).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create terminal"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"terminal": terminal, "message": "Terminal created"})
}

// UpdateTerminal edits a terminal (admin).
func UpdateTerminal(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid terminal ID"})
		return
	}

	var terminal models.Terminal
	if err := getDB().First(&terminal, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Terminal not found"})
		return
	}

	type updateRequest struct {
		Name     *string `json:"name"`
		City     *string `json:"city"`
		Address  *string `json:"address"`
		IsActive *bool   `json:"is_active"`
	}
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	if req.Name != nil {
		terminal.Name = utils.SanitizeInput(*req.Name)
	}
	if req.City != nil {
		terminal.City = utils.SanitizeInput(*req.City)
	}
	if req.Address != nil {
		terminal.Address = utils.SanitizeInput(*req.Address)
	}
	if req.IsActive != nil {
		terminal.IsActive = *req.IsActive
	}
	terminal.UpdateAt = &now

	if err := getDB().Save(&terminal).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update terminal"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"terminal": terminal, "message": "Terminal updated"})
}

// DeleteTerminal deactivates a terminal (admin). Routes referencing it keep
// their history, so this is a soft switch instead of a row delete.
func DeleteTerminal(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid terminal ID"})
		return
	}

	now := time.Now()
	result := getDB().Model(&models.Terminal{}).
		Where("terminal_id = ?", id).
		Updates(map[string]interface{}{"is_active": false, "update_at": now})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete terminal"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Terminal not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Terminal deactivated"})
}
