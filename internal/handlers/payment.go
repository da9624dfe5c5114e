// internal/handlers/payment.go
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/eshop-backend/internal/i18n"
	"github.com/javajoker/eshop-backend/internal/services"
	"github.com/javajoker/eshop-backend/internal/utils"
)

// Provider events are small; anything larger is not a real delivery.
const maxWebhookBodyBytes = 64 * 1024

type PaymentHandler struct {
	checkoutService *services.CheckoutService
	webhookService  *services.WebhookService
	userService     *services.UserService
}

func NewPaymentHandler(checkoutService *services.CheckoutService, webhookService *services.WebhookService, userService *services.UserService) *PaymentHandler {
	return &PaymentHandler{
		checkoutService: checkoutService,
		webhookService:  webhookService,
		userService:     userService,
	}
}

// POST /api/create_checkout_session
func (h *PaymentHandler) CreateCheckoutSession(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.OrderRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err, "user")
		return
	}

	session, err := h.checkoutService.CreateSession(c.Request.Context(), user, &req, requestOrigin(c))
	if err != nil {
		respondError(c, err, "product")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"session_id": session.SessionID,
		"url":        session.URL,
	})
}

// POST /api/order/webhook
//
// Rejected deliveries get 400. Events that can never be applied are
// acknowledged with 200 so the provider stops retrying; other failures
// return 500 so it retries.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes+1))
	if err != nil || len(payload) > maxWebhookBodyBytes {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyWebhookInvalidPayload), nil)
		return
	}

	result, err := h.webhookService.HandleEvent(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	switch {
	case err == nil:
	case errors.Is(err, services.ErrInvalidSignature):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyWebhookInvalidSignature), nil)
		return
	case errors.Is(err, services.ErrInvalidPayload):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyWebhookInvalidPayload), nil)
		return
	case errors.Is(err, services.ErrPermanentEvent):
		c.JSON(http.StatusOK, utils.APIResponse{
			Success: true,
			Data:    gin.H{"received": true, "outcome": result.Outcome},
		})
		return
	default:
		logrus.WithError(err).Error("Webhook processing failed")
		utils.InternalErrorResponse(c, "")
		return
	}

	data := gin.H{"received": true, "outcome": result.Outcome}
	if result.Outcome == services.OutcomeProcessed || result.Outcome == services.OutcomeDuplicate {
		data["details"] = "Payment successful"
	}
	utils.SuccessResponse(c, data)
}
