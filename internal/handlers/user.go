// internal/handlers/user.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/eshop-backend/internal/services"
	"github.com/javajoker/eshop-backend/internal/utils"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// GET /api/current_user
func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err, "user")
		return
	}

	utils.SuccessResponse(c, user)
}

// PUT /api/current_user
func (h *UserHandler) UpdateCurrentUser(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.UpdateCurrentUser(c.Request.Context(), actor.UserID, &req)
	if err != nil {
		respondError(c, err, "user")
		return
	}

	utils.SuccessResponse(c, user)
}
