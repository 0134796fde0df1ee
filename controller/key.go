package controller

import (
	"net/http"

	"capstone/service"

	"github.com/gin-gonic/gin"
)

type KeyController struct {
	keys *service.KeyService
}

func NewKeyController(keys *service.KeyService) *KeyController {
	return &KeyController{keys: keys}
}

// Validate reports whether the posted API key is accepted by the model provider.
func (ctrl KeyController) Validate(c *gin.Context) {
	var input struct {
		APIKey string `json:"apiKey"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": "Invalid input"})
		return
	}

	if err := ctrl.keys.Validate(c.Request.Context(), input.APIKey); err != nil {
		logger.Warnf("[%s] API key rejected: %s", c.GetString("requestId"), err)
		c.JSON(statusOf(service.KindOf(err)), gin.H{"valid": false, "error": service.MessageOf(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}
