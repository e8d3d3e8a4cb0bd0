package middleware

import (
	"net/http"
	"strings"

	apperrors "supply-service/common/errors"
	"supply-service/common/logger"
	"supply-service/models"

	"github.com/gin-gonic/gin"
)

const (
	ClaimContextKey = "claim"

	HeaderUserID      = "X-User-ID"
	HeaderUserRole    = "X-User-Role"
	HeaderUserName    = "X-User-Name"
	HeaderFranchiseID = "X-Franchise-ID"
	HeaderVendorID    = "X-Vendor-ID"
)

func abortWith(c *gin.Context, err *apperrors.Error) {
	c.AbortWithStatusJSON(err.Code, gin.H{"error": err.Message, "code": err.Kind})
}

// AuthMiddleware builds the caller's claim from the headers the api-gateway
// sets after validating the token.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		roleHeader := c.GetHeader(HeaderUserRole)

		// Cookie fallback (only if behind api-gateway, never publicly exposed)
		if userID == "" {
			if v, err := c.Cookie("user_id"); err == nil {
				userID = strings.TrimSpace(v)
			}
		}
		if roleHeader == "" {
			if v, err := c.Cookie("user_role"); err == nil {
				roleHeader = v
			}
		}

		if userID == "" {
			abortWith(c, apperrors.New(apperrors.KindUnauthorized, "unauthorized", nil))
			return
		}
		role, ok := models.ParseRole(roleHeader)
		if !ok {
			abortWith(c, apperrors.New(apperrors.KindUnauthorized, "unknown role", nil))
			return
		}

		c.Set(logger.UserIDKey, userID)
		c.Set(ClaimContextKey, models.Claim{
			UserID:      userID,
			Name:        strings.TrimSpace(c.GetHeader(HeaderUserName)),
			Role:        role,
			FranchiseID: strings.TrimSpace(c.GetHeader(HeaderFranchiseID)),
			VendorID:    strings.TrimSpace(c.GetHeader(HeaderVendorID)),
		})
		c.Next()
	}
}

// RequireRoles rejects callers whose role is not listed.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claim, ok := GetClaim(c)
		if !ok {
			abortWith(c, apperrors.New(apperrors.KindUnauthorized, "unauthorized", nil))
			return
		}
		for _, r := range roles {
			if claim.Role == r {
				c.Next()
				return
			}
		}
		abortWith(c, apperrors.Forbidden("role %s may not perform this action", claim.Role))
	}
}

func AdminOnly() gin.HandlerFunc {
	return RequireRoles(models.RoleAdmin)
}

// Helper functions for controllers

func GetClaim(c *gin.Context) (models.Claim, bool) {
	if val, ok := c.Get(ClaimContextKey); ok {
		if claim, ok := val.(models.Claim); ok {
			return claim, true
		}
	}
	return models.Claim{}, false
}

// MustClaim returns the claim or aborts with 401. Handlers return when ok is
// false.
func MustClaim(c *gin.Context) (models.Claim, bool) {
	claim, ok := GetClaim(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": apperrors.KindUnauthorized})
	}
	return claim, ok
}
