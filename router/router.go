// Package router wires the HTTP surface onto gin.
package router

import (
	"net/http"

	"capstone/controller"
	"capstone/service"

	"github.com/gin-gonic/gin"
)

type Deps struct {
	CORSOrigin     string
	MaxUploadBytes int64

	Tokens        *service.TokenService
	Users         *service.UserService
	Conversations *service.ConversationService
	Chat          *service.ChatService
	Keys          *service.KeyService
}

func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware(d.CORSOrigin))
	r.Use(RequestIDMiddleware())
	r.Use(LogMiddleware())

	auth := controller.NewAuthController(d.Tokens)
	user := controller.NewUserController(d.Users)
	conversation := controller.NewConversationController(d.Conversations)
	chat := controller.NewChatController(d.Chat, d.MaxUploadBytes)
	key := controller.NewKeyController(d.Keys)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/register", user.Register)
	r.POST("/login", user.Login)
	r.POST("/token/refresh", auth.Refresh)
	r.POST("/validate-key", key.Validate)

	authed := r.Group("/", auth.TokenValid)
	{
		authed.POST("/chat", chat.Chat)
		authed.GET("/conversations", conversation.List)
		authed.POST("/conversations", conversation.Create)
		authed.GET("/conversations/:id", conversation.Get)
		authed.DELETE("/conversations/:id", conversation.Delete)
	}

	return r
}
