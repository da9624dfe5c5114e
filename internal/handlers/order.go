// internal/handlers/order.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/eshop-backend/internal/i18n"
	"github.com/javajoker/eshop-backend/internal/models"
	"github.com/javajoker/eshop-backend/internal/services"
	"github.com/javajoker/eshop-backend/internal/utils"
)

type OrderHandler struct {
	orderService *services.OrderService
	resPerPage   int
}

func NewOrderHandler(orderService *services.OrderService, resPerPage int) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		resPerPage:   resPerPage,
	}
}

// POST /api/orders/new
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.OrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), actor.UserID, &req)
	if err != nil {
		respondError(c, err, "product")
		return
	}

	utils.CreatedResponse(c, order)
}

// GET /api/orders
func (h *OrderHandler) GetOrders(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	params := services.OrderListParams{
		PaginationParams: utils.GetPaginationParams(c, h.resPerPage),
		Status:           models.OrderStatus(c.Query("status")),
	}

	orders, total, err := h.orderService.ListOrders(c.Request.Context(), actor, params)
	if err != nil {
		respondError(c, err, "order")
		return
	}

	utils.SetPaginationHeaders(c, total, params.PaginationParams)
	utils.SuccessResponse(c, utils.Page("orders", orders, total, params.PaginationParams))
}

// GET /api/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "order")
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err, "order")
		return
	}

	utils.SuccessResponse(c, order)
}

// PUT /api/orders/:id/process
func (h *OrderHandler) ProcessOrder(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := pathID(c, "id", "order")
	if !ok {
		return
	}

	var req services.ProcessOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	order, err := h.orderService.ProcessOrder(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err, "order")
		return
	}

	utils.SuccessResponse(c, order)
}

// DELETE /api/orders/:id
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := pathID(c, "id", "order")
	if !ok {
		return
	}

	if err := h.orderService.DeleteOrder(c.Request.Context(), id); err != nil {
		respondError(c, err, "order")
		return
	}

	utils.SuccessResponse(c, gin.H{"details": i18n.T(lang, i18n.KeyOrderDeleted)})
}
