package middlewares

import (
	"net/http"
	"strings"

	"github.com/casahogar/cashbox_backend/config"
	"github.com/casahogar/cashbox_backend/models"
	"github.com/casahogar/cashbox_backend/utils"
	"github.com/gin-gonic/gin"
)

// bearerToken reads the session token from the "token" header the
// front-end sends, falling back to "Authorization: Bearer".
func bearerToken(c *gin.Context) string {
	if token := strings.TrimSpace(c.Request.Header.Get("token")); token != "" {
		return token
	}
	auth := c.Request.Header.Get("Authorization")
	const bearer = "Bearer "
	if len(auth) > len(bearer) && strings.EqualFold(auth[:len(bearer)], bearer) {
		return strings.TrimSpace(auth[len(bearer):])
	}
	return ""
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "unauthorized"})
}

// SessionMiddleware resolves the session user and puts it on the request
// context. Requests without a token pass through anonymous; RequireSession
// rejects them where a user is needed.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		validate, err := utils.JwtValidate(token)
		if err != nil || !validate.Valid {
			unauthorized(c)
			return
		}
		claims, ok := validate.Claims.(*utils.JwtCustomClaim)
		if !ok {
			unauthorized(c)
			return
		}

		// a logged out token is gone from Redis even if its signature is still valid
		if config.GetRedisDB() != nil {
			username, exists, err := config.GetRedisValue("Token:" + token)
			if err != nil {
				config.LogError(config.GetLogger(), "middlewares", "SessionMiddleware", "read session", nil, err)
				unauthorized(c)
				return
			}
			if !exists || username != claims.Username {
				unauthorized(c)
				return
			}
		}

		user, err := models.GetUserByUsername(c.Request.Context(), claims.Username)
		if err != nil || !user.Active() {
			unauthorized(c)
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUsernameInContext(ctx, user.Username)
		ctx = utils.SetUserIdInContext(ctx, user.ID)
		ctx = utils.SetUserNameInContext(ctx, user.Name)
		ctx = utils.SetUserRoleInContext(ctx, string(user.Role))
		ctx = utils.SetClientIPInContext(ctx, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
