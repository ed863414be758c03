package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"onboarding-api/internal/middleware"
	"onboarding-api/internal/services"
)

// EmployeeHandler serves the token-authenticated employee endpoints.
type EmployeeHandler struct {
	onboarding *services.OnboardingService
}

// NewEmployeeHandler creates an EmployeeHandler.
func NewEmployeeHandler(onboarding *services.OnboardingService) *EmployeeHandler {
	return &EmployeeHandler{onboarding: onboarding}
}

// ResolveInvitation handles GET /employee-onboarding/:token.
func (h *EmployeeHandler) ResolveInvitation(c *gin.Context) {
	invitation, err := h.onboarding.ResolveForEmployee(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, "resolve_invitation", err)
		return
	}
	c.JSON(http.StatusOK, invitation)
}

// Signup handles POST /employee-signup.
func (h *EmployeeHandler) Signup(c *gin.Context) {
	var input services.ClaimInput
	if !bindJSON(c, &input) {
		return
	}
	if !middleware.CallerMatches(c, input.UID) {
		forbidden(c)
		return
	}

	session, err := h.onboarding.Claim(c.Request.Context(), input)
	if err != nil {
		respondError(c, "employee_signup", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Employee account created",
		"session": session,
	})
}
