package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/batchswap/batchswap/internal/app/controllers"
	"github.com/batchswap/batchswap/internal/middleware"
	"github.com/batchswap/batchswap/internal/pkg/websocket"
)

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	authController *controllers.AuthController,
	studentController *controllers.StudentController,
	swapController *controllers.SwapController,
	chatController *controllers.ChatController,
	wsHandler *websocket.Handler,
	authMiddleware *middleware.AuthMiddleware,
) {
	// API version group
	v1 := router.Group("/api/v1")

	// --- Public Auth routes ---
	auth := v1.Group("/auth")
	{
		auth.POST("/register", authController.Register)
		auth.POST("/login", authController.Login)
	}

	// --- Authenticated Routes Group ---
	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())

	// Student routes
	students := authenticated.Group("/students")
	{
		students.GET("", studentController.List)
		students.GET("/eligible", studentController.FindCandidates)
		students.GET("/me", studentController.GetMe)
		students.PUT("/me", studentController.UpdateMe)
		students.GET("/:id", studentController.GetByID)
	}

	// Swap request routes
	swapRequests := authenticated.Group("/swap-requests")
	{
		swapRequests.POST("", swapController.Create)
		swapRequests.GET("/sent", swapController.ListSent)
		swapRequests.GET("/received", swapController.ListReceived)
		swapRequests.GET("/:id", swapController.Get)
		swapRequests.POST("/:id/accept", swapController.Accept)
		swapRequests.POST("/:id/reject", swapController.Reject)
		swapRequests.DELETE("/:id", swapController.Cancel)

		// Negotiation channel
		swapRequests.GET("/:id/messages", chatController.History)
		swapRequests.POST("/:id/messages", chatController.Send)
		swapRequests.GET("/:id/chat/ws", wsHandler.HandleConnection)
	}
}
