package services

import (
	"context"
	"fmt"

	"onboarding-api/internal/log"
	"onboarding-api/internal/models"
)

// AssignRoleInput is a signup request that grants a role to an identity.
type AssignRoleInput struct {
	UID   string `json:"uid"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// RoleService assigns identity roles and keeps the user mirror in step.
type RoleService struct {
	identity IdentityProvider
	users    UserStore
}

// NewRoleService creates a RoleService.
func NewRoleService(identity IdentityProvider, users UserStore) *RoleService {
	return &RoleService{identity: identity, users: users}
}

// AssignRole overwrites the identity's role claim and its user mirror. An
// empty role means admin. It returns a confirmation message.
func (s *RoleService) AssignRole(ctx context.Context, input AssignRoleInput) (string, error) {
	if input.UID == "" {
		return "", fmt.Errorf("%w: uid is required", models.ErrValidation)
	}
	if input.Role == "" {
		input.Role = models.RoleAdmin
	}

	if err := s.identity.SetCustomClaims(ctx, input.UID, map[string]interface{}{"role": input.Role}); err != nil {
		return "", fmt.Errorf("failed to set role claim: %w", err)
	}

	user := &models.User{
		ID:    input.UID,
		Name:  input.Name,
		Email: input.Email,
		Role:  input.Role,
	}
	if err := s.users.SaveUser(ctx, user); err != nil {
		return "", err
	}

	log.Info(ctx, "Role assigned", "user_id", input.UID, "role", input.Role)
	return fmt.Sprintf("Role %s assigned to %s", input.Role, input.Email), nil
}
