package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"onboarding-api/internal/log"
	"onboarding-api/internal/models"
)

// defaultAdminName is shown in invitations when the admin's mirror cannot be read.
const defaultAdminName = "Your administrator"

// CreateSessionInput is the admin's request to invite an employee.
type CreateSessionInput struct {
	Email              string   `json:"email"`
	Role               string   `json:"role"`
	RepositoryIDs      []string `json:"repositoryIds"`
	CustomInstructions string   `json:"customInstructions"`
	AdminID            string   `json:"adminId"`
}

// ClaimInput is an employee's signup against an invitation token.
type ClaimInput struct {
	Token string `json:"token"`
	UID   string `json:"uid"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// EmployeeInvitation is what an invited employee sees before signing up.
type EmployeeInvitation struct {
	Token              string                     `json:"token"`
	Email              string                     `json:"email"`
	Role               string                     `json:"role"`
	CustomInstructions string                     `json:"customInstructions"`
	AdminID            string                     `json:"adminId"`
	AdminName          string                     `json:"adminName"`
	AdminEmail         string                     `json:"adminEmail"`
	Status             models.SessionStatus       `json:"status"`
	Repositories       []models.RepositorySummary `json:"repositories"`
}

// OnboardingDeps wires the collaborators of an OnboardingService.
type OnboardingDeps struct {
	Sessions     SessionStore
	Repositories RepositoryStore
	Users        UserStore
	Identity     IdentityProvider
	Dispatcher   InvitationDispatcher
	Notifier     AdminNotifier
	// LinkForToken builds the employee-facing invitation URL.
	LinkForToken func(token string) string
}

// OnboardingService runs the onboarding session lifecycle.
type OnboardingService struct {
	sessions     SessionStore
	repositories RepositoryStore
	users        UserStore
	identity     IdentityProvider
	dispatcher   InvitationDispatcher
	notifier     AdminNotifier
	linkForToken func(string) string
	now          func() time.Time
}

// NewOnboardingService creates an OnboardingService. A nil Notifier disables
// admin notifications.
func NewOnboardingService(deps OnboardingDeps) *OnboardingService {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &OnboardingService{
		sessions:     deps.Sessions,
		repositories: deps.Repositories,
		users:        deps.Users,
		identity:     deps.Identity,
		dispatcher:   deps.Dispatcher,
		notifier:     notifier,
		linkForToken: deps.LinkForToken,
		now:          time.Now,
	}
}

// Create stores a pending session and sends the invitation. Email problems
// never fail the call; the outcome is recorded on the returned session.
func (s *OnboardingService) Create(ctx context.Context, input CreateSessionInput) (*models.OnboardingSession, error) {
	input.Email = strings.TrimSpace(input.Email)
	switch {
	case input.AdminID == "":
		return nil, fmt.Errorf("%w: adminId is required", models.ErrValidation)
	case input.Email == "":
		return nil, fmt.Errorf("%w: email is required", models.ErrValidation)
	case input.Role == "":
		return nil, fmt.Errorf("%w: role is required", models.ErrValidation)
	}

	repositoryIDs := input.RepositoryIDs
	if repositoryIDs == nil {
		repositoryIDs = []string{}
	}

	token := uuid.NewString()
	session := &models.OnboardingSession{
		ID:                 token,
		Email:              input.Email,
		Role:               input.Role,
		RepositoryIDs:      repositoryIDs,
		CustomInstructions: input.CustomInstructions,
		AdminID:            input.AdminID,
		Progress:           0,
		Status:             models.SessionStatusPending,
		CreatedAt:          s.now(),
		InvitationLink:     s.linkForToken(token),
		InvitationEmail:    models.InvitationEmailSkipped,
	}

	ctx = log.WithFields(ctx, log.LogFields{
		"admin_id":   input.AdminID,
		"session_id": token,
	})

	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	job := &models.InvitationEmailJob{
		ID:                 uuid.NewString(),
		TraceID:            log.TraceID(ctx),
		SessionID:          session.ID,
		AdminID:            session.AdminID,
		To:                 session.Email,
		AdminName:          s.adminName(ctx, session.AdminID),
		Role:               session.Role,
		InvitationLink:     session.InvitationLink,
		CustomInstructions: session.CustomInstructions,
	}
	outcome := s.dispatcher.Dispatch(ctx, job)

	// A queued job can be delivered before we get here; never downgrade "sent".
	updated, err := s.sessions.UpdateSession(ctx, session.AdminID, session.ID, func(stored *models.OnboardingSession) error {
		if stored.InvitationEmail != models.InvitationEmailSent {
			stored.InvitationEmail = outcome
		}
		return nil
	})
	if err != nil {
		log.Warn(ctx, "Failed to record invitation email outcome",
			"error", err,
			"invitation_email", outcome,
		)
		session.InvitationEmail = outcome
		return session, nil
	}

	log.Info(ctx, "Onboarding session created", "invitation_email", updated.InvitationEmail)
	return updated, nil
}

// List returns the admin's sessions, oldest first.
func (s *OnboardingService) List(ctx context.Context, adminID string) ([]*models.OnboardingSession, error) {
	return s.sessions.ListSessions(ctx, adminID)
}

// Get returns one of the admin's sessions.
func (s *OnboardingService) Get(ctx context.Context, adminID, sessionID string) (*models.OnboardingSession, error) {
	return s.sessions.GetSession(ctx, adminID, sessionID)
}

// GetByToken resolves an invitation token regardless of owning admin.
func (s *OnboardingService) GetByToken(ctx context.Context, token string) (*models.OnboardingSession, error) {
	return s.sessions.FindSessionByToken(ctx, token)
}

// UpdateProgress applies a progress value and the status transition it implies.
func (s *OnboardingService) UpdateProgress(
	ctx context.Context, adminID, sessionID string, progress int,
) (*models.OnboardingSession, error) {
	if progress < 0 {
		return nil, models.ErrNegativeProgress
	}

	var wasCompleted bool
	updated, err := s.sessions.UpdateSession(ctx, adminID, sessionID, func(session *models.OnboardingSession) error {
		wasCompleted = session.Status == models.SessionStatusCompleted
		return session.ApplyProgress(progress, s.now())
	})
	if err != nil {
		return nil, err
	}

	log.Info(ctx, "Onboarding progress updated",
		"admin_id", adminID,
		"session_id", sessionID,
		"progress", updated.Progress,
		"status", updated.Status,
	)

	if !wasCompleted && updated.Status == models.SessionStatusCompleted {
		s.notifier.OnboardingCompleted(ctx, updated)
	}
	return updated, nil
}

// Delete removes a session and its invitation token.
func (s *OnboardingService) Delete(ctx context.Context, adminID, sessionID string) error {
	return s.sessions.DeleteSession(ctx, adminID, sessionID)
}

// ResolveForEmployee returns the invitation details for a pending token.
func (s *OnboardingService) ResolveForEmployee(ctx context.Context, token string) (*EmployeeInvitation, error) {
	session, err := s.sessions.FindSessionByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusPending {
		return nil, models.ErrInvitationAlreadyUsed
	}

	invitation := &EmployeeInvitation{
		Token:              session.ID,
		Email:              session.Email,
		Role:               session.Role,
		CustomInstructions: session.CustomInstructions,
		AdminID:            session.AdminID,
		AdminName:          defaultAdminName,
		Status:             session.Status,
		Repositories:       []models.RepositorySummary{},
	}

	if admin, err := s.users.GetUser(ctx, session.AdminID); err == nil {
		if admin.Name != "" {
			invitation.AdminName = admin.Name
		}
		invitation.AdminEmail = admin.Email
	} else {
		log.Warn(ctx, "Failed to load inviting admin", "error", err, "admin_id", session.AdminID)
	}

	repos, err := s.repositories.GetRepositories(ctx, session.AdminID, session.RepositoryIDs)
	if err != nil {
		log.Warn(ctx, "Failed to load invitation repositories", "error", err, "admin_id", session.AdminID)
		return invitation, nil
	}
	for _, repo := range repos {
		invitation.Repositories = append(invitation.Repositories, repo.Summary())
	}
	return invitation, nil
}

// Claim binds an invitation to the signing-up employee, grants the employee
// role and starts the onboarding.
func (s *OnboardingService) Claim(ctx context.Context, input ClaimInput) (*models.OnboardingSession, error) {
	if input.Token == "" || input.UID == "" {
		return nil, fmt.Errorf("%w: token and uid are required", models.ErrValidation)
	}

	session, err := s.sessions.FindSessionByToken(ctx, input.Token)
	if err != nil {
		return nil, err
	}

	ctx = log.WithFields(ctx, log.LogFields{
		"admin_id":     session.AdminID,
		"session_id":   session.ID,
		"employee_uid": input.UID,
	})

	// Check on a copy first so a doomed claim never touches identity claims.
	attempt := *session
	if err := attempt.Claim(input.UID, input.Email, s.now()); err != nil {
		log.Warn(ctx, "Invitation claim rejected", "error", err)
		return nil, err
	}

	claims := map[string]interface{}{
		"role":    models.RoleEmployee,
		"jobRole": session.Role,
	}
	if err := s.identity.SetCustomClaims(ctx, input.UID, claims); err != nil {
		return nil, fmt.Errorf("failed to set employee claims: %w", err)
	}

	claimed, err := s.sessions.UpdateSession(ctx, session.AdminID, session.ID, func(stored *models.OnboardingSession) error {
		return stored.Claim(input.UID, input.Email, s.now())
	})
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			log.Warn(ctx, "Invitation claimed concurrently", "error", err)
		}
		return nil, err
	}

	// Only the winner of the claim gets a mirror pointing at the session.
	user := &models.User{
		ID:        input.UID,
		Name:      input.Name,
		Email:     input.Email,
		Role:      models.RoleEmployee,
		JobRole:   claimed.Role,
		AdminID:   claimed.AdminID,
		SessionID: claimed.ID,
	}
	if err := s.users.SaveUser(ctx, user); err != nil {
		log.Error(ctx, "Invitation claimed but user mirror not saved", "error", err)
		return nil, err
	}

	log.Info(ctx, "Invitation claimed")
	s.notifier.InvitationClaimed(ctx, claimed, input.Name)
	return claimed, nil
}

// adminName returns the admin's display name or a generic fallback.
func (s *OnboardingService) adminName(ctx context.Context, adminID string) string {
	admin, err := s.users.GetUser(ctx, adminID)
	if err != nil {
		log.Warn(ctx, "Failed to look up admin name", "error", err)
		return defaultAdminName
	}
	if admin.Name == "" {
		return defaultAdminName
	}
	return admin.Name
}

type noopNotifier struct{}

func (noopNotifier) InvitationClaimed(context.Context, *models.OnboardingSession, string) {}
func (noopNotifier) OnboardingCompleted(context.Context, *models.OnboardingSession)       {}
