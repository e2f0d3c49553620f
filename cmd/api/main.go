package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/JohnOrlandSudoy/backendbus/config"
	"github.com/JohnOrlandSudoy/backendbus/controllers"
	"github.com/JohnOrlandSudoy/backendbus/middleware"
	"github.com/JohnOrlandSudoy/backendbus/realtime"
	"github.com/JohnOrlandSudoy/backendbus/routes"
	"github.com/JohnOrlandSudoy/backendbus/services"
)

func envSeconds(key string, fallback time.Duration) time.Duration {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return time.Duration(v) * time.Second
	}
	return fallback
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logFile, _ := config.InitLogging()
	if logFile != nil {
		defer logFile.Close()
	}

	// Initialize database
	config.InitDB()

	// Change feed: Redis Pub/Sub when configured, in-process otherwise.
	var feed realtime.Feed
	if client := config.NewRedisClient(); client != nil {
		redisFeed, err := realtime.NewRedisFeed(realtime.RedisFeedConfig{Client: client})
		if err != nil {
			log.Fatal("Failed to initialise redis feed:", err)
		}
		feed = redisFeed
		log.Println("Notification feed backed by Redis")
	} else {
		feed = realtime.NewMemoryFeed(0)
		log.Println("Notification feed running in-process")
	}

	hub := realtime.NewHub(realtime.HubConfig{
		Feed:              feed,
		HeartbeatInterval: envSeconds("SSE_HEARTBEAT_SECONDS", 25*time.Second),
		GraceWindow:       envSeconds("SSE_CHANNEL_GRACE_SECONDS", 30*time.Second),
	})

	notifier := services.NewNotificationService(config.DB, feed, hub, log.Default())
	controllers.Init(notifier, services.NewHTTPGateway())

	// Set Gin mode
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()

	// Add logging middleware
	router.Use(gin.Logger())

	// Add recovery middleware
	router.Use(gin.Recovery())

	// Add security headers middleware
	router.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	// Add CORS middleware
	router.Use(middleware.CORSMiddleware())

	// Setup routes
	routes.SetupRoutes(router, hub)

	// Create upload directory if not exists
	uploadPath := os.Getenv("UPLOAD_PATH")
	if uploadPath == "" {
		uploadPath = "./uploads"
	}
	if err := os.MkdirAll(uploadPath, os.ModePerm); err != nil {
		log.Printf("Warning: Failed to create upload directory: %v", err)
	}

	// Start server
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	// Write timeouts stay disabled: the notification stream holds its
	// response open indefinitely.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Request contexts derive from ctx so open streams unwind when
		// the shutdown signal lands.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Printf("Server starting on port %s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}

	// Cancel every remaining upstream subscription before exit.
	hub.Close()
	log.Println("Server stopped")
}
