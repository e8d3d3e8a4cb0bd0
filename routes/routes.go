package routes

import (
	"net/http"

	"supply-service/controllers"
	"supply-service/middleware"
	"supply-service/models"

	"github.com/gin-gonic/gin"
)

// Controllers bundles the handlers RegisterRoutes mounts.
type Controllers struct {
	Orders        *controllers.OrderController
	Discrepancies *controllers.DiscrepancyController
	Notifications *controllers.NotificationController
}

func RegisterRoutes(router *gin.Engine, c Controllers) {
	// Public
	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "OK", "service": "supply-service"})
	})

	franchiseOnly := middleware.RequireRoles(models.RoleFranchise, models.RoleFranchiseStaff)
	kitchenOnly := middleware.RequireRoles(models.RoleKitchen, models.RoleKitchenStaff)

	orders := router.Group("/orders", middleware.AuthMiddleware())
	{
		orders.GET("", c.Orders.ListOrders)
		orders.GET("/:id", c.Orders.GetOrder)
		orders.GET("/:id/discrepancies/check", c.Discrepancies.CheckOrder)

		orders.POST("", franchiseOnly, c.Orders.CreateOrder)
		orders.PUT("/:id", franchiseOnly, c.Orders.EditOrder)
		orders.DELETE("/:id", franchiseOnly, c.Orders.DeleteOrder)
		orders.POST("/:id/receive", franchiseOnly, c.Orders.ReceiveOrder)

		orders.POST("/:id/accept", kitchenOnly, c.Orders.AcceptOrder)
		orders.POST("/:id/dispatch", kitchenOnly, c.Orders.DispatchOrder)
	}

	discrepancies := router.Group("/discrepancies", middleware.AuthMiddleware())
	{
		discrepancies.GET("", c.Discrepancies.ListDiscrepancies)
		discrepancies.POST("", franchiseOnly, c.Discrepancies.ReportDiscrepancy)
		discrepancies.POST("/:id/resolve", middleware.AdminOnly(), c.Discrepancies.ResolveDiscrepancy)
	}

	notifications := router.Group("/notifications", middleware.AuthMiddleware())
	{
		notifications.GET("", c.Notifications.ListNotifications)
		notifications.GET("/unread-count", c.Notifications.UnreadCount)
		notifications.POST("/read-all", c.Notifications.MarkAllRead)
		notifications.POST("/:id/read", c.Notifications.MarkRead)
	}
}
