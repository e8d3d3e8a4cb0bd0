package controllers

import (
	"net/http"
	"strconv"

	"supply-service/models"
	"supply-service/services"

	"github.com/gin-gonic/gin"
)

type NotificationController struct {
	notificationService services.NotificationService
}

func NewNotificationController(svc services.NotificationService) *NotificationController {
	return &NotificationController{notificationService: svc}
}

// ListNotifications handles GET /notifications?unread_only=&limit=
func (nc *NotificationController) ListNotifications(ctx *gin.Context) {
	claim, ok := claimOf(ctx)
	if !ok {
		return
	}
	filter := models.NotificationFilter{}
	if raw := ctx.Query("unread_only"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(ctx, "Invalid unread_only flag", nil)
			return
		}
		filter.UnreadOnly = v
	}
	if raw := ctx.Query("limit"); raw != "" {
		if l, err := strconv.Atoi(raw); err == nil && l > 0 {
			filter.Limit = l
		}
	}

	list, err := nc.notificationService.List(ctx.Request.Context(), claim, filter)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, list)
}

// UnreadCount handles GET /notifications/unread-count
func (nc *NotificationController) UnreadCount(ctx *gin.Context) {
	claim, ok := claimOf(ctx)
	if !ok {
		return
	}
	n, err := nc.notificationService.UnreadCount(ctx.Request.Context(), claim)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"unreadCount": n})
}

// MarkRead handles POST /notifications/:id/read
func (nc *NotificationController) MarkRead(ctx *gin.Context) {
	claim, ok := claimOf(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	if err := nc.notificationService.MarkRead(ctx.Request.Context(), claim, id); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

// MarkAllRead handles POST /notifications/read-all
func (nc *NotificationController) MarkAllRead(ctx *gin.Context) {
	claim, ok := claimOf(ctx)
	if !ok {
		return
	}
	n, err := nc.notificationService.MarkAllRead(ctx.Request.Context(), claim)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"updated": n})
}
