package controllers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/JohnOrlandSudoy/backendbus/models"
)

const maxUploadBytes = 10 << 20 // 10 MB

func uploadDir() string {
	dir := os.Getenv("UPLOAD_PATH")
	if dir == "" {
		dir = "./uploads"
	}
	return dir
}

// UploadFile stores a multipart file under UPLOAD_PATH and records a
// file_uploads row. Used for discount documents and similar attachments.
func UploadFile(c *gin.Context) {
	userID, ok := getCurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File exceeds 10MB limit"})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}
	defer src.Close()

	if err := os.MkdirAll(uploadDir(), os.ModePerm); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload storage unavailable"})
		return
	}

	storedName := uuid.NewString() + filepath.Ext(fileHeader.Filename)
	storedPath := filepath.Join(uploadDir(), storedName)

	dst, err := os.Create(storedPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store upload"})
		return
	}
	defer dst.Close()

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(dst, hasher), src)
	if err != nil {
		os.Remove(storedPath)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store upload"})
		return
	}

	now := time.Now()
	upload := models.FileUpload{
		OriginalName: fileHeader.Filename,
		StoredPath:   storedPath,
		FileSize:     written,
		MimeType:     fileHeader.Header.Get("Content-Type"),
		FileHash:     hex.EncodeToString(hasher.Sum(nil)),
		UploadedBy:   int(userID),
		UploadedAt:   now,
		CreateAt:     now,
		UpdateAt:     now,
	}
	if !upload.IsValidDocumentType() && !upload.IsValidImageType() {
		os.Remove(storedPath)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only PDF and image files are accepted"})
		return
	}

	if err := getDB().Create(&upload).Error; err != nil {
		os.Remove(storedPath)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record upload"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"file": upload, "message": "File uploaded"})
}

// DownloadFile streams a stored upload. Uploaders get their own files;
// admins get any.
func DownloadFile(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file ID"})
		return
	}

	userID, _ := getCurrentUserID(c)
	roleID, _ := getCurrentRoleID(c)

	var upload models.FileUpload
	query := getDB().Where("delete_at IS NULL")
	if roleID != models.RoleAdmin {
		query = query.Where("uploaded_by = ? OR is_public = ?", userID, true)
	}
	if err := query.First(&upload, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	if _, err := os.Stat(upload.StoredPath); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File missing from storage"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", upload.OriginalName))
	c.File(upload.StoredPath)
}
