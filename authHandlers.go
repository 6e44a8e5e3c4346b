package main

import (
	"net/http"

	"github.com/casahogar/cashbox_backend/middlewares"
	"github.com/casahogar/cashbox_backend/models"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if !bindJSON(c, &req) {
			return
		}
		info, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := models.Logout(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"logged_out": ok})
	}
}

func meHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := middlewares.ActorFromContext(c)
		user, err := models.GetUser(c.Request.Context(), actor.UserId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":             user.ID,
			"username":       user.Username,
			"name":           user.Name,
			"role":           user.Role,
			"formatted_name": user.FormattedName(),
		})
	}
}
