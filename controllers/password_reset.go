package controllers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/JohnOrlandSudoy/backendbus/config"
	"github.com/JohnOrlandSudoy/backendbus/models"
	"github.com/JohnOrlandSudoy/backendbus/services"
	"github.com/JohnOrlandSudoy/backendbus/utils"
)

const otpLifetime = 10 * time.Minute

var (
	otpGenerator = services.GenerateOTP
	sendOTPFunc  = services.SendOTPEmail

	passwordResetRepo passwordResetRepository = &gormPasswordResetRepository{}
)

type passwordResetRepository interface {
	FindUserByEmail(email string) (*models.User, error)
	RevokePasswordResetTokens(userID int, now time.Time) error
	CreateUserToken(token *models.UserToken) error
	FindActiveResetToken(userID int, now time.Time) (*models.UserToken, error)
	IncrementAttempts(tokenID int) error
	UpdateUserPassword(userID int, hashedPassword string, now time.Time) error
	RevokeToken(tokenID int, now time.Time) error
}

type gormPasswordResetRepository struct{}

func (r *gormPasswordResetRepository) FindUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := config.DB.Where("email = ? AND delete_at IS NULL", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormPasswordResetRepository) RevokePasswordResetTokens(userID int, now time.Time) error {
	if userID == 0 {
		return nil
	}

	return config.DB.Model(&models.UserToken{}).
		Where("user_id = ? AND token_type = ? AND is_revoked = ?", userID, models.TokenTypePasswordReset, false).
		Updates(map[string]interface{}{
			"is_revoked": true,
			"updated_at": now,
			"expires_at": now,
		}).Error
}

func (r *gormPasswordResetRepository) CreateUserToken(token *models.UserToken) error {
	return config.DB.Create(token).Error
}

func (r *gormPasswordResetRepository) FindActiveResetToken(userID int, now time.Time) (*models.UserToken, error) {
	var token models.UserToken
	err := config.DB.Where("user_id = ? AND token_type = ? AND is_revoked = ? AND expires_at > ?",
		userID, models.TokenTypePasswordReset, false, now).
		Order("created_at DESC").
		First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *gormPasswordResetRepository) IncrementAttempts(tokenID int) error {
	return config.DB.Model(&models.UserToken{}).
		Where("token_id = ?", tokenID).
		UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error
}

func (r *gormPasswordResetRepository) UpdateUserPassword(userID int, hashedPassword string, now time.Time) error {
	return config.DB.Model(&models.User{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"password":  hashedPassword,
			"update_at": now,
		}).Error
}

func (r *gormPasswordResetRepository) RevokeToken(tokenID int, now time.Time) error {
	return config.DB.Model(&models.UserToken{}).
		Where("token_id = ?", tokenID).
		Updates(map[string]interface{}{
			"is_revoked": true,
			"updated_at": now,
			"expires_at": now,
		}).Error
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type resetPasswordRequest struct {
	Email           string `json:"email"`
	Code            string `json:"code"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ForgotPassword issues a one-time code and emails it to the account owner.
// Responds identically whether or not the email exists.
func ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request payload",
		})
		return
	}

	req.Email = utils.SanitizeInput(req.Email)
	if !utils.ValidateEmail(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid email format",
		})
		return
	}

	genericResponse := gin.H{
		"success": true,
		"message": "If the email is registered, a reset code has been sent",
	}

	user, err := passwordResetRepo.FindUserByEmail(req.Email)
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   "Failed to process request",
			})
			return
		}
		c.JSON(http.StatusOK, genericResponse)
		return
	}

	code, err := otpGenerator()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to generate reset code",
		})
		return
	}

	now := time.Now()
	if err := passwordResetRepo.RevokePasswordResetTokens(user.UserID, now); err != nil {
		log.Printf("Failed to revoke previous reset tokens for user %d: %v", user.UserID, err)
	}

	token := models.UserToken{
		UserID:    user.UserID,
		TokenType: models.TokenTypePasswordReset,
		TokenHash: services.HashToken(code),
		ExpiresAt: now.Add(otpLifetime),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := passwordResetRepo.CreateUserToken(&token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to store reset code",
		})
		return
	}

	if err := sendOTPFunc(user, code, otpLifetime); err != nil {
		log.Printf("Failed to send reset code to %s: %v", user.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to send reset email",
		})
		return
	}

	c.JSON(http.StatusOK, genericResponse)
}

// VerifyOTP checks a reset code without consuming it, so clients can gate
// the new-password form.
func VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request payload"})
		return
	}

	token, _, ok := lookupResetToken(c, req.Email, req.Code)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Code verified",
		"expires_at": token.ExpiresAt,
	})
}

// ResetPassword consumes a valid code and sets the new password.
func ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request payload"})
		return
	}

	if req.NewPassword != req.ConfirmPassword {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Passwords do not match"})
		return
	}
	if ok, msg := utils.ValidatePassword(req.NewPassword); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
		return
	}

	token, user, ok := lookupResetToken(c, req.Email, req.Code)
	if !ok {
		return
	}

	hashed, err := HashPassword(req.NewPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to process password"})
		return
	}

	now := time.Now()
	if err := passwordResetRepo.UpdateUserPassword(user.UserID, hashed, now); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to update password"})
		return
	}
	if err := passwordResetRepo.RevokeToken(token.TokenID, now); err != nil {
		log.Printf("Failed to revoke consumed reset token %d: %v", token.TokenID, err)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password has been reset"})
}

// lookupResetToken resolves email+code to an active token, writing the
// error response itself when validation fails.
func lookupResetToken(c *gin.Context, email, code string) (*models.UserToken, *models.User, bool) {
	email = utils.SanitizeInput(email)
	if !utils.ValidateEmail(email) || code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Email and code are required"})
		return nil, nil, false
	}

	invalid := gin.H{"success": false, "error": "Invalid or expired code"}

	user, err := passwordResetRepo.FindUserByEmail(email)
	if err != nil {
		c.JSON(http.StatusUnauthorized, invalid)
		return nil, nil, false
	}

	now := time.Now()
	token, err := passwordResetRepo.FindActiveResetToken(user.UserID, now)
	if err != nil {
		c.JSON(http.StatusUnauthorized, invalid)
		return nil, nil, false
	}

	if token.Attempts >= services.MaxOTPAttempts {
		if err := passwordResetRepo.RevokeToken(token.TokenID, now); err != nil {
			log.Printf("Failed to revoke exhausted reset token %d: %v", token.TokenID, err)
		}
		c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "Too many attempts, request a new code"})
		return nil, nil, false
	}

	if services.HashToken(code) != token.TokenHash {
		if err := passwordResetRepo.IncrementAttempts(token.TokenID); err != nil {
			log.Printf("Failed to record reset attempt for token %d: %v", token.TokenID, err)
		}
		c.JSON(http.StatusUnauthorized, invalid)
		return nil, nil, false
	}

	return token, user, true
}
