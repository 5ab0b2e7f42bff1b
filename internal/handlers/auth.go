package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/liteclass/liteclass/internal/auth"
	"github.com/liteclass/liteclass/internal/models"
)

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email   string `json:"email" binding:"required,email"`
	Name    string `json:"name" binding:"required"`
	Picture string `json:"picture"`
}

// LoginResponse represents the login response.
type LoginResponse struct {
	Token string          `json:"token"`
	User  models.Identity `json:"user"`
}

// Login issues the identity credential used by every other endpoint and
// by the websocket transport. The actual account verification lives in
// the external auth collaborator; this endpoint only mints the opaque
// signed identity the relay verifies at connect time.
func Login(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request body",
			})
			return
		}

		identity := models.Identity{
			ID:      req.Email,
			Name:    req.Name,
			Picture: req.Picture,
		}

		tokenString, err := auth.IssueToken(jwtSecret, identity)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to generate token",
			})
			return
		}

		c.SetCookie("token", tokenString, int((7 * 24 * 60 * 60)), "/", "", false, true)
		c.JSON(http.StatusOK, LoginResponse{
			Token: tokenString,
			User:  identity,
		})
	}
}
