package middlewares

import (
	"net/http"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/utils"
	"github.com/gin-gonic/gin"
)

// Session is what login stores in Redis under "Token:<token>".
type Session struct {
	TenantId string `json:"tenant_id"`
	UserId   int    `json:"user_id"`
	Phone    string `json:"phone"`
	IsAdmin  bool   `json:"is_admin"`
}

// SessionMiddleware resolves the token header into the tenant/user context
// every downstream query depends on. Requests without a token pass through
// untouched; route guards decide what needs one.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		var session Session
		exists, err := config.GetRedisObject("Token:"+token, &session)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetTenantIdInContext(ctx, session.TenantId)
		ctx = utils.SetUserIdInContext(ctx, session.UserId)
		ctx = utils.SetUserNameInContext(ctx, session.Phone)
		ctx = utils.SetIsAdminInContext(ctx, session.IsAdmin)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireSession rejects requests that did not carry a valid token.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tenantId, ok := utils.GetTenantIdFromContext(c.Request.Context()); !ok || tenantId == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin guards ops endpoints.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isAdmin, ok := utils.GetIsAdminFromContext(c.Request.Context()); !ok || !isAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			c.Abort()
			return
		}
		c.Next()
	}
}
