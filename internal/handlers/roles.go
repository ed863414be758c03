package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"onboarding-api/internal/middleware"
	"onboarding-api/internal/services"
)

// RoleHandler serves role assignment.
type RoleHandler struct {
	roles *services.RoleService
}

// NewRoleHandler creates a RoleHandler.
func NewRoleHandler(roles *services.RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

// AssignRole handles POST /assign-role.
func (h *RoleHandler) AssignRole(c *gin.Context) {
	var input services.AssignRoleInput
	if !bindJSON(c, &input) {
		return
	}
	if !middleware.CallerMatches(c, input.UID) {
		forbidden(c)
		return
	}

	msg, err := h.roles.AssignRole(c.Request.Context(), input)
	if err != nil {
		respondError(c, "assign_role", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}
