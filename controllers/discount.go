package controllers

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JohnOrlandSudoy/backendbus/models"
	"github.com/JohnOrlandSudoy/backendbus/utils"
)

func validDiscountType(t string) bool {
	switch t {
	case models.DiscountTypeStudent, models.DiscountTypeSenior, models.DiscountTypePWD:
		return true
	}
	return false
}

type discountRequest struct {
	DiscountType   string `json:"discount_type" binding:"required"`
	DocumentFileID *int   `json:"document_file_id"`
}

// ApplyDiscount files a discount-eligibility application backed by an
// uploaded proof document.
func ApplyDiscount(c *gin.Context) {
	userID, ok := getCurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req discountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !validDiscountType(req.DiscountType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid discount type"})
		return
	}

	var pending int64
	if err := getDB().Model(&models.DiscountApplication{}).
		Where("user_id = ? AND status = ?", userID, models.DiscountStatusPending).
		Count(&pending).Error; err == nil && pending > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "You already have a pending application"})
		return
	}

	if req.DocumentFileID != nil {
		var count int64
		if err := getDB().Model(&models.FileUpload{}).
			Where("file_id = ? AND uploaded_by = ? AND delete_at IS NULL", *req.DocumentFileID, userID).
			Count(&count).Error; err != nil || count == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Document upload not found"})
			return
		}
	}

	application := models.DiscountApplication{
		UserID:         int(userID),
		DiscountType:   req.DiscountType,
		DocumentFileID: req.DocumentFileID,
		Status:         models.DiscountStatusPending,
		CreateAt:       time.Now(),
	}
	if err := getDB().Create(&application).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to file application"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"application": application, "message": "Application filed"})
}

// GetMyDiscounts lists the caller's applications.
func GetMyDiscounts(c *gin.Context) {
	userID, ok := getCurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var applications []models.DiscountApplication
	if err := getDB().Preload("Document").
		Where("user_id = ?", userID).
		Order("create_at DESC").
		Find(&applications).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch applications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"applications": applications, "total": len(applications)})
}

// GetDiscountApplications lists applications for review (admin);
// ?status= filters, default pending.
func GetDiscountApplications(c *gin.Context) {
	status := c.DefaultQuery("status", models.DiscountStatusPending)

	var applications []models.DiscountApplication
	if err := getDB().Preload("User").Preload("Document").
		Where("status = ?", status).
		Order("create_at ASC").
		Find(&applications).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch applications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"applications": applications, "total": len(applications)})
}

// ApproveDiscount approves a pending application and notifies the
// applicant (admin).
func ApproveDiscount(c *gin.Context) {
	reviewDiscount(c, models.DiscountStatusApproved)
}

// RejectDiscount rejects a pending application and notifies the applicant
// (admin).
func RejectDiscount(c *gin.Context) {
	reviewDiscount(c, models.DiscountStatusRejected)
}

func reviewDiscount(c *gin.Context, decision string) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid application ID"})
		return
	}

	reviewerID, _ := getCurrentUserID(c)

	type reviewRequest struct {
		Remarks string `json:"remarks"`
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var application models.DiscountApplication
	if err := getDB().First(&application, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Application not found"})
		return
	}
	if application.Status != models.DiscountStatusPending {
		c.JSON(http.StatusConflict, gin.H{"error": "Application already reviewed"})
		return
	}

	now := time.Now()
	reviewer := int(reviewerID)
	application.Status = decision
	application.ReviewedBy = &reviewer
	application.ReviewedAt = &now
	if remarks := utils.SanitizeInput(req.Remarks); remarks != "" {
		application.Remarks = &remarks
	}
	application.UpdateAt = &now

	if err := getDB().Save(&application).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update application"})
		return
	}

	message := fmt.Sprintf("Your %s discount application was %s.", application.DiscountType, decision)
	if application.Remarks != nil {
		message += " Remarks: " + *application.Remarks
	}
	if _, err := notifier.Notify(c.Request.Context(), uint(application.UserID),
		models.NotificationTypeGeneral, "Discount application "+decision, message); err != nil {
		log.Printf("Discount decision notification failed for application %d: %v", application.DiscountID, err)
	}

	c.JSON(http.StatusOK, gin.H{"application": application, "message": "Application " + decision})
}
