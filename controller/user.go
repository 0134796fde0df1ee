package controller

import (
	"net/http"

	"capstone/service"

	"github.com/gin-gonic/gin"
)

// UserController ...
type UserController struct {
	users *service.UserService
}

func NewUserController(users *service.UserService) *UserController {
	return &UserController{users: users}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (ctrl UserController) Register(c *gin.Context) {
	logger.Infof("[%s] Handling user registration request", c.GetString("requestId"))

	var input credentials
	if err := c.ShouldBindJSON(&input); err != nil {
		logger.Warnf("[%s] Invalid input, %s", c.GetString("requestId"), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	user, err := ctrl.users.Register(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}

	logger.Infof("[%s] User %s registered successfully", c.GetString("requestId"), user.ID)
	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully!", "user": user})
}

func (ctrl UserController) Login(c *gin.Context) {
	logger.Infof("[%s] Handling user login request", c.GetString("requestId"))

	var input credentials
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	token, err := ctrl.users.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}

	logger.Infof("[%s] User %s login successfully", c.GetString("requestId"), input.Email)
	c.JSON(http.StatusOK, gin.H{"token": token})
}
