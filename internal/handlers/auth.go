// internal/handlers/auth.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/eshop-backend/internal/i18n"
	"github.com/javajoker/eshop-backend/internal/services"
	"github.com/javajoker/eshop-backend/internal/utils"
)

type AuthHandler struct {
	authService *services.AuthService
	origin      PublicOrigin
}

func NewAuthHandler(authService *services.AuthService, origin PublicOrigin) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		origin:      origin,
	}
}

// POST /api/register
func (h *AuthHandler) Register(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "user")
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyAuthRegisterSuccess),
		"user":    user,
	})
}

// POST /api/token
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	authResponse, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "user")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"user":       authResponse.User,
		"token":      authResponse.AccessToken,
		"token_type": authResponse.TokenType,
		"expires_in": authResponse.ExpiresIn,
	})
}

// POST /api/forgot_password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.ForgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authService.ForgotPassword(c.Request.Context(), &req, h.origin.resolve(c)); err != nil {
		respondError(c, err, "user")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"details": i18n.T(lang, i18n.KeyAuthResetEmailSent, req.Email),
	})
}

// POST /api/reset_password/:token
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), c.Param("token"), &req); err != nil {
		respondError(c, err, "user")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"details": i18n.T(lang, i18n.KeyAuthPasswordReset),
	})
}
