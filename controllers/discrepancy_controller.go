package controllers

import (
	"net/http"
	"strconv"

	"supply-service/models"
	"supply-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type DiscrepancyController struct {
	discrepancyService services.DiscrepancyService
}

func NewDiscrepancyController(svc services.DiscrepancyService) *DiscrepancyController {
	return &DiscrepancyController{discrepancyService: svc}
}

// ReportDiscrepancy handles POST /discrepancies
func (dc *DiscrepancyController) ReportDiscrepancy(ctx *gin.Context) {
	claim, ok := claimOf(ctx)
	if !ok {
		return
	}
	var req models.ReportDiscrepancyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "Invalid request", err)
		return
	}
	result, err := dc.discrepancyService.Report(ctx.Request.Context(), claim, &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	status := http.StatusCreated
	if len(result.Discrepancies) == 0 {
		status = http.StatusOK
	}
	ctx.JSON(status, result)
}

// ListDiscrepancies handles GET /discrepancies?order_id=&resolved=
func (dc *DiscrepancyController) ListDiscrepancies(ctx *gin.Context) {
	claim, ok := claimOf(ctx)
	if !ok {
		return
	}
	var filter models.DiscrepancyFilter
	if raw := ctx.Query("order_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(ctx, "Invalid order_id", nil)
			return
		}
		filter.OrderID = &id
	}
	if raw := ctx.Query("resolved"); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(ctx, "Invalid resolved flag", nil)
			return
		}
		filter.Resolved = &resolved
	}

	items, err := dc.discrepancyService.List(ctx.Request.Context(), claim, filter)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"discrepancies": items})
}

// CheckOrder handles GET /orders/:id/discrepancies/check
func (dc *DiscrepancyController) CheckOrder(ctx *gin.Context) {
	claim, ok := claimOf(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	summary, err := dc.discrepancyService.CheckOrder(ctx.Request.Context(), claim, id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, summary)
}

// ResolveDiscrepancy handles POST /discrepancies/:id/resolve
func (dc *DiscrepancyController) ResolveDiscrepancy(ctx *gin.Context) {
	claim, ok := claimOf(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req models.ResolveDiscrepancyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "Invalid request", err)
		return
	}
	d, err := dc.discrepancyService.Resolve(ctx.Request.Context(), claim, id, &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, d)
}
