// internal/handlers/errors.go
package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/eshop-backend/internal/i18n"
	"github.com/javajoker/eshop-backend/internal/middleware"
	"github.com/javajoker/eshop-backend/internal/models"
	"github.com/javajoker/eshop-backend/internal/services"
	"github.com/javajoker/eshop-backend/internal/utils"
)

// respondError maps a service error to the response envelope. resource names
// the "<resource>.not_found" message used for ErrNotFound.
func respondError(c *gin.Context, err error, resource string) {
	lang := utils.GetLangFromContext(c)

	switch {
	case errors.Is(err, services.ErrValidation):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
	case errors.Is(err, services.ErrNotFound):
		utils.NotFoundResponse(c, resource)
	case errors.Is(err, services.ErrForbidden):
		utils.ForbiddenResponse(c, "")
	case errors.Is(err, services.ErrInvalidCredentials):
		utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidCredentials))
	case errors.Is(err, services.ErrUserExists):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyAuthUserExists), nil)
	case errors.Is(err, services.ErrTokenExpired):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyAuthTokenExpired), nil)
	case errors.Is(err, services.ErrPasswordMismatch):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyAuthPasswordMismatch), nil)
	case errors.Is(err, services.ErrRatingRange):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyReviewRatingRange), nil)
	case errors.Is(err, services.ErrEmptyCart):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyOrderEmptyCart), nil)
	case errors.Is(err, services.ErrInsufficientStock):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyOrderInsufficientStock), err.Error())
	case errors.Is(err, services.ErrInvalidStatus):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyOrderInvalidStatus), nil)
	case errors.Is(err, services.ErrInvalidImage):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyProductImageInvalid, err.Error()), nil)
	case errors.Is(err, services.ErrPaymentProvider):
		utils.BadGatewayResponse(c, "")
	default:
		logrus.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
		utils.InternalErrorResponse(c, "")
	}
}

// bindJSON decodes and validates the request body, writing the error
// response itself when it returns false.
func bindJSON(c *gin.Context, req interface{}) bool {
	lang := utils.GetLangFromContext(c)

	if err := c.ShouldBindJSON(req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}
	return true
}

// currentActor reads the caller set by middleware.AuthRequired.
func currentActor(c *gin.Context) (services.Actor, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return services.Actor{}, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.UnauthorizedResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyAuthInvalidToken))
		return services.Actor{}, false
	}

	role, _ := c.Get(middleware.ContextUserRole)
	roleStr, _ := role.(string)
	return services.Actor{UserID: userID, Role: models.UserRole(roleStr)}, true
}

// pathID parses a uuid path parameter. Malformed ids are reported as not found.
func pathID(c *gin.Context, param, resource string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		utils.NotFoundResponse(c, resource)
		return uuid.Nil, false
	}
	return id, true
}

// PublicOrigin is the "<scheme>://<host>/" prefix of links sent out of band,
// such as the password reset email.
type PublicOrigin struct {
	configured string
	trustHost  bool
}

// NewPublicOrigin uses base when set. Otherwise the request's own host is used,
// which only makes sense when trustHost is true (outside production).
func NewPublicOrigin(base string, trustHost bool) PublicOrigin {
	base = strings.TrimSpace(base)
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return PublicOrigin{configured: base, trustHost: trustHost}
}

func (o PublicOrigin) resolve(c *gin.Context) string {
	if o.configured != "" || !o.trustHost {
		return o.configured
	}
	return requestOrigin(c)
}

// requestOrigin returns "<scheme>://<host>/" as seen by the client.
func requestOrigin(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + c.Request.Host + "/"
}
