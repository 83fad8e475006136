package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"prepstock-system/internal/gateway/middleware"
	userhandler "prepstock-system/internal/services/user/handler"
	"prepstock-system/internal/utils"
)

type UserHTTPHandler struct {
	users  *userhandler.UserHandler
	secret []byte
}

func NewUserHTTPHandler(users *userhandler.UserHandler, secret []byte) *UserHTTPHandler {
	return &UserHTTPHandler{
		users:  users,
		secret: secret,
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
	RestaurantName  string `json:"restaurant_name" binding:"required"`
}

type ResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetConfirmRequest struct {
	Token           string `json:"token" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

func (h *UserHTTPHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	result, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(statusFromErr(err), errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse("Signed in", result))
}

func (h *UserHTTPHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	result, err := h.users.Register(c.Request.Context(), userhandler.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		RestaurantName:  req.RestaurantName,
	})
	if err != nil {
		c.JSON(statusFromErr(err), errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusCreated, successResponse("Account created", result))
}

func (h *UserHTTPHandler) Logout(c *gin.Context) {
	token := middleware.TokenFrom(c)
	claims, err := utils.ParseToken(token, h.secret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse("Invalid or expired token"))
		return
	}

	if err := h.users.Logout(c.Request.Context(), token, claims); err != nil {
		c.JSON(statusFromErr(err), errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse("Signed out", nil))
}

func (h *UserHTTPHandler) RequestPasswordReset(c *gin.Context) {
	var req ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	if err := h.users.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		c.JSON(statusFromErr(err), errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse("Check your email for a reset link", nil))
}

func (h *UserHTTPHandler) CompletePasswordReset(c *gin.Context) {
	var req ResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	err := h.users.CompletePasswordReset(c.Request.Context(), req.Token, req.Password, req.ConfirmPassword)
	if err != nil {
		c.JSON(statusFromErr(err), errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse("Password updated", nil))
}
