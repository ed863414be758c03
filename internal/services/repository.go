package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"onboarding-api/internal/log"
	"onboarding-api/internal/models"
)

// CreateRepositoryInput is the admin's request to track a repository.
type CreateRepositoryInput struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Language    string `json:"language"`
	Status      string `json:"status"`
	AdminID     string `json:"adminId"`
}

// RepositoryService manages the repositories an admin tracks.
type RepositoryService struct {
	store    RepositoryStore
	metadata RepositoryMetadataSource
	now      func() time.Time
}

// NewRepositoryService creates a RepositoryService. metadata may be nil, in
// which case repositories are stored exactly as submitted.
func NewRepositoryService(store RepositoryStore, metadata RepositoryMetadataSource) *RepositoryService {
	return &RepositoryService{
		store:    store,
		metadata: metadata,
		now:      time.Now,
	}
}

// Create stores a new repository under its admin.
func (s *RepositoryService) Create(ctx context.Context, input CreateRepositoryInput) (*models.Repository, error) {
	switch {
	case input.AdminID == "":
		return nil, fmt.Errorf("%w: adminId is required", models.ErrValidation)
	case strings.TrimSpace(input.Name) == "":
		return nil, fmt.Errorf("%w: name is required", models.ErrValidation)
	case strings.TrimSpace(input.URL) == "":
		return nil, fmt.Errorf("%w: url is required", models.ErrValidation)
	}

	now := s.now()
	repo := &models.Repository{
		Name:        input.Name,
		URL:         input.URL,
		Description: input.Description,
		Language:    input.Language,
		Status:      input.Status,
		LastSync:    now,
		AdminID:     input.AdminID,
		CreatedAt:   now,
	}
	if repo.Status == "" {
		repo.Status = models.RepositoryStatusSynced
	}

	s.enrich(ctx, repo)

	if err := s.store.CreateRepository(ctx, repo); err != nil {
		return nil, err
	}
	return repo, nil
}

// enrich fills a missing description or language from the metadata source.
func (s *RepositoryService) enrich(ctx context.Context, repo *models.Repository) {
	if s.metadata == nil || (repo.Description != "" && repo.Language != "") {
		return
	}

	meta, err := s.metadata.LookupRepository(ctx, repo.URL)
	if err != nil {
		log.Warn(ctx, "Repository metadata lookup failed",
			"error", err,
			"url", repo.URL,
		)
		return
	}
	if meta == nil {
		return
	}

	if repo.Description == "" {
		repo.Description = meta.Description
	}
	if repo.Language == "" {
		repo.Language = meta.Language
	}
}

// List returns every repository the admin tracks.
func (s *RepositoryService) List(ctx context.Context, adminID string) ([]*models.Repository, error) {
	return s.store.ListRepositories(ctx, adminID)
}

// Delete removes a repository. Sessions that reference it keep the ID.
func (s *RepositoryService) Delete(ctx context.Context, adminID, repoID string) error {
	return s.store.DeleteRepository(ctx, adminID, repoID)
}
