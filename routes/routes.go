package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/JohnOrlandSudoy/backendbus/controllers"
	"github.com/JohnOrlandSudoy/backendbus/middleware"
	"github.com/JohnOrlandSudoy/backendbus/models"
	"github.com/JohnOrlandSudoy/backendbus/realtime"
)

func SetupRoutes(router *gin.Engine, hub *realtime.Hub) {
	// Realtime stream lives outside the v1 group; authentication happens
	// at the transport layer and the connection is intentionally long-lived.
	router.GET("/api/rt/notifications/:userId", hub.StreamNotifications)

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			// Authentication
			public.POST("/register", controllers.Register)
			public.POST("/login", controllers.Login)
			public.POST("/forgot-password", controllers.ForgotPassword)
			public.POST("/verify-otp", controllers.VerifyOTP)
			public.POST("/reset-password", controllers.ResetPassword)

			// Public browse
			public.GET("/terminals", controllers.GetTerminals)
			public.GET("/terminals/:id", controllers.GetTerminal)
			public.GET("/routes", controllers.GetRoutes)
			public.GET("/routes/:id", controllers.GetRoute)
			public.GET("/trips", controllers.GetTrips)
			public.GET("/trips/:id", controllers.GetTrip)

			// Payment gateway callback (HMAC-verified, not JWT)
			public.POST("/payments/webhook", controllers.PaymentWebhook)

			// Health check
			public.GET("/health", func(c *gin.Context) {
				c.JSON(200, gin.H{
					"status":  "ok",
					"message": "Bus Transit API is running",
				})
			})
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			// User profile
			protected.GET("/profile", controllers.GetProfile)
			protected.PUT("/profile", controllers.UpdateProfile)
			protected.PUT("/change-password", controllers.ChangePassword)

			// Bookings
			bookings := protected.Group("/bookings")
			{
				bookings.POST("", controllers.CreateBooking)
				bookings.GET("", controllers.GetMyBookings)
				bookings.GET("/:id", controllers.GetBooking)
				bookings.POST("/:id/cancel", controllers.CancelBooking)
				bookings.POST("/:id/checkout", controllers.RetryCheckout)
			}

			// Payments
			protected.GET("/payments/:id", controllers.GetPayment)

			// Discount applications
			discounts := protected.Group("/discounts")
			{
				discounts.POST("", controllers.ApplyDiscount)
				discounts.GET("/mine", controllers.GetMyDiscounts)

				// Admin review
				discounts.GET("", middleware.RequireRole(models.RoleAdmin), controllers.GetDiscountApplications)
				discounts.POST("/:id/approve", middleware.RequireRole(models.RoleAdmin), controllers.ApproveDiscount)
				discounts.POST("/:id/reject", middleware.RequireRole(models.RoleAdmin), controllers.RejectDiscount)
			}

			// Notifications
			notifications := protected.Group("/notifications")
			{
				notifications.GET("", controllers.GetMyNotifications)
				notifications.GET("/unread-count", controllers.GetUnreadCount)
				notifications.PUT("/read-all", controllers.MarkAllNotificationsRead)
				notifications.PUT("/:id/read", controllers.MarkNotificationRead)
				notifications.DELETE("/read", controllers.DeleteReadNotifications)
				notifications.DELETE("/:id", controllers.DeleteNotification)
			}

			// File uploads
			files := protected.Group("/files")
			{
				files.POST("", controllers.UploadFile)
				files.GET("/:id/download", controllers.DownloadFile)
			}

			// Admin fleet and schedule management
			admin := protected.Group("")
			admin.Use(middleware.RequireRole(models.RoleAdmin))
			{
				admin.POST("/terminals", controllers.CreateTerminal)
				admin.PUT("/terminals/:id", controllers.UpdateTerminal)
				admin.DELETE("/terminals/:id", controllers.DeleteTerminal)

				admin.POST("/routes", controllers.CreateRoute)
				admin.PUT("/routes/:id", controllers.UpdateRoute)
				admin.DELETE("/routes/:id", controllers.DeleteRoute)

				admin.GET("/buses", controllers.GetBuses)
				admin.GET("/buses/:id", controllers.GetBus)
				admin.POST("/buses", controllers.CreateBus)
				admin.PUT("/buses/:id", controllers.UpdateBus)
				admin.DELETE("/buses/:id", controllers.DeleteBus)

				admin.POST("/trips", controllers.CreateTrip)
				admin.PUT("/trips/:id/status", controllers.UpdateTripStatus)
				admin.POST("/trips/:id/cancel", controllers.CancelTrip)
				admin.POST("/trips/:id/delay", controllers.DelayTrip)

				admin.POST("/admin/notifications", controllers.SendNotification)
				admin.POST("/admin/notifications/broadcast", controllers.BroadcastNotification)
				admin.DELETE("/admin/notifications/:id", controllers.AdminDeleteNotification)

				admin.GET("/dashboard/stats", controllers.GetDashboardStats)
			}
		}
	}
}
