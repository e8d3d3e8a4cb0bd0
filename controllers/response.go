package controllers

import (
	"net/http"
	"strconv"

	apperrors "supply-service/common/errors"
	"supply-service/middleware"
	"supply-service/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// respondError renders err as {"error", "code"}. Map details are merged into
// the body; other details go under "details".
func respondError(ctx *gin.Context, err error) {
	appErr := apperrors.From(err)
	body := gin.H{"error": appErr.Message, "code": appErr.Kind}
	switch d := appErr.Details.(type) {
	case nil:
	case map[string]any:
		for k, v := range d {
			body[k] = v
		}
	default:
		body["details"] = d
	}
	if appErr.Kind == apperrors.KindUnavailable {
		ctx.Header("Retry-After", "1")
	}
	ctx.JSON(appErr.Code, body)
}

func badRequest(ctx *gin.Context, msg string, err error) {
	body := gin.H{"error": msg, "code": apperrors.KindValidation}
	if err != nil {
		body["details"] = err.Error()
	}
	ctx.JSON(http.StatusBadRequest, body)
}

// parseID reads a uuid path parameter, writing a 400 when it is malformed.
func parseID(ctx *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param(name))
	if err != nil {
		badRequest(ctx, "Invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}

func claimOf(ctx *gin.Context) (models.Claim, bool) {
	return middleware.MustClaim(ctx)
}

// parsePaginationParams extracts page/limit query params. Out-of-range
// values fall back to the defaults.
func parsePaginationParams(ctx *gin.Context) (int, int) {
	const maxLimit = 100
	pageInt, limitInt := 1, 10
	if p, err := strconv.Atoi(ctx.DefaultQuery("page", "1")); err == nil && p > 0 {
		pageInt = p
	}
	if l, err := strconv.Atoi(ctx.DefaultQuery("limit", "10")); err == nil && l > 0 {
		if l > maxLimit {
			l = maxLimit
		}
		limitInt = l
	}
	return pageInt, limitInt
}
