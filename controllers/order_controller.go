package controllers

import (
	"net/http"
	"strings"

	"supply-service/models"
	"supply-service/services"

	"github.com/gin-gonic/gin"
)

// OrderController handles HTTP requests for the order lifecycle.
type OrderController struct {
	orderService services.OrderService
}

// NewOrderController creates a new OrderController.
func NewOrderController(svc services.OrderService) *OrderController {
	return &OrderController{orderService: svc}
}

// CreateOrder handles POST /orders
func (oc *OrderController) CreateOrder(ctx *gin.Context) {
	claim, ok := claimOf(ctx)
	if !ok {
		return
	}
	var req models.CreateOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "Invalid request", err)
		return
	}

	order, err := oc.orderService.Create(ctx.Request.Context(), claim, &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, order)
}

// ListOrders handles GET /orders
func (oc *OrderController) ListOrders(ctx *gin.Context) {
	claim, ok := claimOf(ctx)
	if !ok {
		return
	}
	page, limit := parsePaginationParams(ctx)
	filter := models.OrderFilter{
		FranchiseID: strings.TrimSpace(ctx.Query("franchise_id")),
		VendorID:    strings.TrimSpace(ctx.Query("vendor_id")),
		Page:        page,
		Limit:       limit,
	}
	if raw := ctx.Query("status"); raw != "" {
		status, ok := models.ParseOrderStatus(raw)
		if !ok {
			badRequest(ctx, "Invalid status "+raw, nil)
			return
		}
		filter.Status = status
	}

	list, err := oc.orderService.List(ctx.Request.Context(), claim, filter)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, list)
}

// GetOrder handles GET /orders/:id
func (oc *OrderController) GetOrder(ctx *gin.Context) {
	claim, ok := claimOf(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	order, err := oc.orderService.Get(ctx.Request.Context(), claim, id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, order)
}

// AcceptOrder handles POST /orders/:id/accept
func (oc *OrderController) AcceptOrder(ctx *gin.Context) {
	claim, ok := claimOf(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	order, err := oc.orderService.Accept(ctx.Request.Context(), claim, id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, order)
}

// DispatchOrder handles POST /orders/:id/dispatch
func (oc *OrderController) DispatchOrder(ctx *gin.Context) {
	claim, ok := claimOf(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req models.DispatchOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "Invalid request", err)
		return
	}
	order, err := oc.orderService.Dispatch(ctx.Request.Context(), claim, id, &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, order)
}

// ReceiveOrder handles POST /orders/:id/receive. The body is optional.
func (oc *OrderController) ReceiveOrder(ctx *gin.Context) {
	claim, ok := claimOf(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req models.ReceiveOrderRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			badRequest(ctx, "Invalid request", err)
			return
		}
	}
	order, err := oc.orderService.Receive(ctx.Request.Context(), claim, id, &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, order)
}

// EditOrder handles PUT /orders/:id
func (oc *OrderController) EditOrder(ctx *gin.Context) {
	claim, ok := claimOf(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req models.EditOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "Invalid request", err)
		return
	}
	order, err := oc.orderService.Edit(ctx.Request.Context(), claim, id, &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, order)
}

// DeleteOrder handles DELETE /orders/:id
func (oc *OrderController) DeleteOrder(ctx *gin.Context) {
	claim, ok := claimOf(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	if err := oc.orderService.Delete(ctx.Request.Context(), claim, id); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}
