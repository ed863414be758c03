// Package services holds the onboarding business logic and its adapters to
// Firestore, Firebase Auth, SMTP, Cloud Tasks, Slack and GitHub.
package services

import (
	"context"

	"onboarding-api/internal/models"
)

// SessionStore persists onboarding sessions and resolves invitation tokens.
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.OnboardingSession) error
	ListSessions(ctx context.Context, adminID string) ([]*models.OnboardingSession, error)
	GetSession(ctx context.Context, adminID, sessionID string) (*models.OnboardingSession, error)
	FindSessionByToken(ctx context.Context, token string) (*models.OnboardingSession, error)
	UpdateSession(
		ctx context.Context,
		adminID, sessionID string,
		mutate func(*models.OnboardingSession) error,
	) (*models.OnboardingSession, error)
	DeleteSession(ctx context.Context, adminID, sessionID string) error
}

// RepositoryStore persists repositories under their admin.
type RepositoryStore interface {
	CreateRepository(ctx context.Context, repo *models.Repository) error
	ListRepositories(ctx context.Context, adminID string) ([]*models.Repository, error)
	GetRepositories(ctx context.Context, adminID string, ids []string) ([]*models.Repository, error)
	DeleteRepository(ctx context.Context, adminID, repoID string) error
}

// UserStore persists the local user mirror.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
}

// IdentityProvider writes role claims to the external identity service.
type IdentityProvider interface {
	SetCustomClaims(ctx context.Context, uid string, claims map[string]interface{}) error
}

// InvitationDispatcher delivers an invitation email, or hands it off for
// later delivery, and reports the outcome. It never returns an error.
type InvitationDispatcher interface {
	Dispatch(ctx context.Context, job *models.InvitationEmailJob) models.InvitationEmailStatus
}

// AdminNotifier tells administrators about employee activity.
type AdminNotifier interface {
	InvitationClaimed(ctx context.Context, session *models.OnboardingSession, employeeName string)
	OnboardingCompleted(ctx context.Context, session *models.OnboardingSession)
}

// RepositoryMetadataSource looks up descriptive metadata for a repository URL.
type RepositoryMetadataSource interface {
	LookupRepository(ctx context.Context, url string) (*RepositoryMetadata, error)
}

// RepositoryMetadata is what a metadata source knows about a repository.
type RepositoryMetadata struct {
	Description string
	Language    string
}

var (
	_ SessionStore    = (*FirestoreService)(nil)
	_ RepositoryStore = (*FirestoreService)(nil)
	_ UserStore       = (*FirestoreService)(nil)
)
