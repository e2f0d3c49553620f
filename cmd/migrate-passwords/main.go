// Migration script to hash legacy plaintext passwords
package main

import (
	"log"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/JohnOrlandSudoy/backendbus/config"
	"github.com/JohnOrlandSudoy/backendbus/models"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize database
	config.InitDB()

	// Get all users
	var users []models.User
	if err := config.DB.Find(&users).Error; err != nil {
		log.Fatal("Failed to fetch users:", err)
	}

	migrated := 0
	for _, user := range users {
		// Skip if already hashed (bcrypt hashes start with $2)
		if strings.HasPrefix(user.Password, "$2") {
			continue
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("Failed to hash password for %s: %v", user.Email, err)
			continue
		}

		if err := config.DB.Model(&models.User{}).
			Where("user_id = ?", user.UserID).
			Update("password", string(hashed)).Error; err != nil {
			log.Printf("Failed to update password for %s: %v", user.Email, err)
			continue
		}
		migrated++
	}

	log.Printf("Migrated %d of %d users", migrated, len(users))
}
