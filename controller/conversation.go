package controller

import (
	"net/http"

	"capstone/service"

	"github.com/gin-gonic/gin"
)

type ConversationController struct {
	convs *service.ConversationService
}

func NewConversationController(convs *service.ConversationService) *ConversationController {
	return &ConversationController{convs: convs}
}

func (ctrl ConversationController) List(c *gin.Context) {
	convs, err := ctrl.convs.List(c.Request.Context(), c.GetString("UserId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, convs)
}

func (ctrl ConversationController) Create(c *gin.Context) {
	conv, err := ctrl.convs.Create(c.Request.Context(), c.GetString("UserId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (ctrl ConversationController) Get(c *gin.Context) {
	detail, err := ctrl.convs.Get(c.Request.Context(), c.GetString("UserId"), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (ctrl ConversationController) Delete(c *gin.Context) {
	if err := ctrl.convs.Delete(c.Request.Context(), c.GetString("UserId"), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	logger.Infof("[%s] Conversation %s deleted", c.GetString("requestId"), c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted successfully"})
}
