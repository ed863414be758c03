package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"onboarding-api/internal/middleware"
	"onboarding-api/internal/models"
	"onboarding-api/internal/services"
)

// OnboardingHandler serves the admin onboarding-session endpoints.
type OnboardingHandler struct {
	onboarding *services.OnboardingService
}

// NewOnboardingHandler creates an OnboardingHandler.
func NewOnboardingHandler(onboarding *services.OnboardingService) *OnboardingHandler {
	return &OnboardingHandler{onboarding: onboarding}
}

type progressRequest struct {
	Progress *int `json:"progress"`
}

// Create handles POST /onboarding-sessions.
func (h *OnboardingHandler) Create(c *gin.Context) {
	var input services.CreateSessionInput
	if !bindJSON(c, &input) {
		return
	}
	if !middleware.CallerMatches(c, input.AdminID) {
		forbidden(c)
		return
	}

	session, err := h.onboarding.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, "create_onboarding_session", err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// List handles GET /onboarding-sessions/:adminId.
func (h *OnboardingHandler) List(c *gin.Context) {
	sessions, err := h.onboarding.List(c.Request.Context(), c.Param("adminId"))
	if err != nil {
		respondError(c, "list_onboarding_sessions", err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// Get handles GET /onboarding-sessions/:adminId/:sessionId.
func (h *OnboardingHandler) Get(c *gin.Context) {
	session, err := h.onboarding.Get(c.Request.Context(), c.Param("adminId"), c.Param("sessionId"))
	if err != nil {
		respondError(c, "get_onboarding_session", err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// UpdateProgress handles PUT /onboarding-sessions/:adminId/:sessionId/progress.
func (h *OnboardingHandler) UpdateProgress(c *gin.Context) {
	var req progressRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Progress == nil {
		respondError(c, "update_progress", fmt.Errorf("%w: progress is required", models.ErrValidation))
		return
	}

	session, err := h.onboarding.UpdateProgress(
		c.Request.Context(), c.Param("adminId"), c.Param("sessionId"), *req.Progress,
	)
	if err != nil {
		respondError(c, "update_progress", err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Delete handles DELETE /onboarding-sessions/:adminId/:sessionId.
func (h *OnboardingHandler) Delete(c *gin.Context) {
	if err := h.onboarding.Delete(c.Request.Context(), c.Param("adminId"), c.Param("sessionId")); err != nil {
		respondError(c, "delete_onboarding_session", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Onboarding session deleted"})
}
