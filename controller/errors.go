package controller

import (
	"net/http"

	"capstone/platform"
	"capstone/service"

	"github.com/gin-gonic/gin"
)

var logger = platform.Logger

func statusOf(kind service.Kind) int {
	switch kind {
	case service.Unauthorized:
		return http.StatusUnauthorized
	case service.BadRequest:
		return http.StatusBadRequest
	case service.NotFound:
		return http.StatusNotFound
	case service.Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError logs err and answers with its caller-facing message.
func abortWithError(c *gin.Context, err error) {
	status := statusOf(service.KindOf(err))
	if status >= http.StatusInternalServerError {
		logger.Errorf("[%s] %s %s failed: %s", c.GetString("requestId"), c.Request.Method, c.FullPath(), err)
	} else {
		logger.Warnf("[%s] %s %s rejected: %s", c.GetString("requestId"), c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": service.MessageOf(err)})
}
