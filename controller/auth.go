package controller

import (
	"net/http"

	"capstone/service"

	"github.com/gin-gonic/gin"
)

// AuthController ...
type AuthController struct {
	tokens *service.TokenService
}

func NewAuthController(tokens *service.TokenService) *AuthController {
	return &AuthController{tokens: tokens}
}

// TokenValid rejects the request unless it carries a valid bearer token, and
// stores the caller's id under "UserId".
func (a AuthController) TokenValid(c *gin.Context) {
	tokenAuth, err := a.tokens.ExtractTokenMetadata(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	c.Set("UserId", tokenAuth.UserID)
	c.Set("Email", tokenAuth.Email)
}

// Refresh ...
func (a AuthController) Refresh(c *gin.Context) {
	token, err := a.tokens.Refresh(c.Request)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
