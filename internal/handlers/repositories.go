package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"onboarding-api/internal/middleware"
	"onboarding-api/internal/services"
)

// RepositoryHandler serves the admin repository endpoints.
type RepositoryHandler struct {
	repositories *services.RepositoryService
}

// NewRepositoryHandler creates a RepositoryHandler.
func NewRepositoryHandler(repositories *services.RepositoryService) *RepositoryHandler {
	return &RepositoryHandler{repositories: repositories}
}

// Create handles POST /repositories.
func (h *RepositoryHandler) Create(c *gin.Context) {
	var input services.CreateRepositoryInput
	if !bindJSON(c, &input) {
		return
	}
	if !middleware.CallerMatches(c, input.AdminID) {
		forbidden(c)
		return
	}

	repo, err := h.repositories.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, "create_repository", err)
		return
	}
	c.JSON(http.StatusOK, repo)
}

// List handles GET /repositories/:adminId.
func (h *RepositoryHandler) List(c *gin.Context) {
	repos, err := h.repositories.List(c.Request.Context(), c.Param("adminId"))
	if err != nil {
		respondError(c, "list_repositories", err)
		return
	}
	c.JSON(http.StatusOK, repos)
}

// Delete handles DELETE /repositories/:adminId/:repoId.
func (h *RepositoryHandler) Delete(c *gin.Context) {
	if err := h.repositories.Delete(c.Request.Context(), c.Param("adminId"), c.Param("repoId")); err != nil {
		respondError(c, "delete_repository", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Repository deleted"})
}
