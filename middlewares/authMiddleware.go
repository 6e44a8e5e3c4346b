package middlewares

import (
	"net/http"

	"github.com/casahogar/cashbox_backend/models"
	"github.com/casahogar/cashbox_backend/utils"
	"github.com/gin-gonic/gin"
)

// RequireSession rejects anonymous requests.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := utils.GetUserIdFromContext(c.Request.Context()); !ok || id <= 0 {
			unauthorized(c)
			return
		}
		c.Next()
	}
}

// RequireAdmin lets only administrators through. Run it after RequireSession.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := utils.GetUserRoleFromContext(c.Request.Context())
		if !models.UserRole(role).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    utils.CodeForbidden,
				"message": "this action requires the admin role",
			})
			return
		}
		c.Next()
	}
}

// ActorFromContext builds the explicit issuer from the resolved session.
func ActorFromContext(c *gin.Context) models.Actor {
	ctx := c.Request.Context()
	userId, _ := utils.GetUserIdFromContext(ctx)
	name, _ := utils.GetUserNameFromContext(ctx)
	role, _ := utils.GetUserRoleFromContext(ctx)
	ip, ok := utils.GetClientIPFromContext(ctx)
	if !ok {
		ip = c.ClientIP()
	}
	return models.Actor{UserId: userId, Name: name, Role: models.UserRole(role), IP: ip}
}
