package models

import (
	"errors"
	"time"
)

// Error classes surfaced at the HTTP edge. Stores and services wrap these with
// fmt.Errorf("%w: ...") so handlers can map them with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
)

var (
	ErrJobIDRequired         = errors.New("job ID is required")
	ErrSessionIDRequired     = errors.New("session ID is required")
	ErrAdminIDRequired       = errors.New("admin ID is required")
	ErrRecipientRequired     = errors.New("recipient email is required")
	ErrInvitationLinkMissing = errors.New("invitation link is required")
)

// Firestore layout. Repositories and sessions live under admins/{adminID}.
const (
	CollectionUsers        = "users"
	CollectionAdmins       = "admins"
	CollectionRepositories = "repositories"
	CollectionSessions     = "onboarding_sessions"
	CollectionTokens       = "onboarding_tokens"
)

// Roles written to identity claims and user mirrors.
const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

// User mirrors an identity-provider account locally.
type User struct {
	ID        string    `firestore:"id"                   json:"id"`
	Name      string    `firestore:"name"                 json:"name"`
	Email     string    `firestore:"email"                json:"email"`
	Role      string    `firestore:"role"                 json:"role"`
	JobRole   string    `firestore:"job_role,omitempty"   json:"jobRole,omitempty"`   // Role the employee was invited for
	AdminID   string    `firestore:"admin_id,omitempty"   json:"adminId,omitempty"`   // Inviting admin
	SessionID string    `firestore:"session_id,omitempty" json:"sessionId,omitempty"` // Originating onboarding session
	CreatedAt time.Time `firestore:"created_at"           json:"createdAt"`
	UpdatedAt time.Time `firestore:"updated_at"           json:"updatedAt"`
}

// Repository is an external code repository tracked under an admin.
type Repository struct {
	ID          string    `firestore:"id"          json:"id"`
	Name        string    `firestore:"name"        json:"name"`
	URL         string    `firestore:"url"         json:"url"`
	Description string    `firestore:"description" json:"description"`
	Language    string    `firestore:"language"    json:"language"`
	Status      string    `firestore:"status"      json:"status"` // Free-form, e.g. "syncing" or "synced"
	LastSync    time.Time `firestore:"last_sync"   json:"lastSync"`
	AdminID     string    `firestore:"admin_id"    json:"adminId"`
	CreatedAt   time.Time `firestore:"created_at"  json:"createdAt"`
}

// RepositoryStatusSynced is assigned when the caller does not supply a status.
const RepositoryStatusSynced = "synced"

// RepositorySummary is the employee-facing view of a repository.
type RepositorySummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Language    string `json:"language"`
}

// Summary returns the employee-facing view of r.
func (r *Repository) Summary() RepositorySummary {
	return RepositorySummary{
		ID:          r.ID,
		Name:        r.Name,
		URL:         r.URL,
		Description: r.Description,
		Language:    r.Language,
	}
}

// SessionStatus is the lifecycle state of an onboarding session.
type SessionStatus string

// Onboarding session states.
const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
)

// InvitationEmailStatus records what happened to the invitation email.
type InvitationEmailStatus string

// Invitation email outcomes.
const (
	InvitationEmailSent    InvitationEmailStatus = "sent"
	InvitationEmailQueued  InvitationEmailStatus = "queued"
	InvitationEmailFailed  InvitationEmailStatus = "failed"
	InvitationEmailSkipped InvitationEmailStatus = "skipped"
)

// MaxProgress is the progress value at which a session is complete.
const MaxProgress = 100

// OnboardingSession is an invitation for one employee. Its ID doubles as the
// invitation token.
type OnboardingSession struct {
	ID                 string                `firestore:"id"                     json:"id"`
	Email              string                `firestore:"email"                  json:"email"`
	Role               string                `firestore:"role"                   json:"role"`
	RepositoryIDs      []string              `firestore:"repository_ids"         json:"repositoryIds"`
	CustomInstructions string                `firestore:"custom_instructions"    json:"customInstructions,omitempty"`
	AdminID            string                `firestore:"admin_id"               json:"adminId"`
	Progress           int                   `firestore:"progress"               json:"progress"`
	Status             SessionStatus         `firestore:"status"                 json:"status"`
	CreatedAt          time.Time             `firestore:"created_at"             json:"createdAt"`
	StartedAt          *time.Time            `firestore:"started_at,omitempty"   json:"startedAt,omitempty"`
	CompletedAt        *time.Time            `firestore:"completed_at,omitempty" json:"completedAt,omitempty"`
	EmployeeUID        string                `firestore:"employee_uid,omitempty" json:"employeeUid,omitempty"`
	InvitationLink     string                `firestore:"invitation_link"        json:"invitationLink"`
	InvitationEmail    InvitationEmailStatus `firestore:"invitation_email"       json:"invitationEmail"`
}

// ApplyProgress records a progress update and moves the session along its
// lifecycle: >=100 completes it, 1..99 marks it in progress, 0 leaves the
// status alone. Values above MaxProgress are stored as MaxProgress.
func (s *OnboardingSession) ApplyProgress(progress int, now time.Time) error {
	if progress < 0 {
		return ErrNegativeProgress
	}
	if progress > MaxProgress {
		progress = MaxProgress
	}

	s.Progress = progress
	switch {
	case progress >= MaxProgress:
		s.Status = SessionStatusCompleted
		completedAt := now
		s.CompletedAt = &completedAt
	case progress > 0:
		s.Status = SessionStatusInProgress
		s.CompletedAt = nil
	}
	return nil
}

// Claim binds the session to the employee that accepted the invitation.
func (s *OnboardingSession) Claim(employeeUID, email string, now time.Time) error {
	if s.Email != email {
		return ErrInvitationEmailMismatch
	}
	if s.Status != SessionStatusPending {
		return ErrInvitationAlreadyUsed
	}

	startedAt := now
	s.EmployeeUID = employeeUID
	s.StartedAt = &startedAt
	s.Status = SessionStatusInProgress
	return nil
}

// Lifecycle failures. All of them are validation errors.
var (
	ErrNegativeProgress        = wrapValidation("progress must not be negative")
	ErrInvitationEmailMismatch = wrapValidation("email does not match invitation")
	ErrInvitationAlreadyUsed   = wrapValidation("invitation is no longer pending")
)

type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }
func (e *validationError) Unwrap() error { return ErrValidation }

func wrapValidation(msg string) error { return &validationError{msg: msg} }

// TokenIndexEntry maps an invitation token to the admin that owns the session.
type TokenIndexEntry struct {
	Token     string    `firestore:"token"`
	AdminID   string    `firestore:"admin_id"`
	SessionID string    `firestore:"session_id"`
	CreatedAt time.Time `firestore:"created_at"`
}

// InvitationEmailJob carries everything needed to render and send one invitation.
type InvitationEmailJob struct {
	ID                 string `json:"id"`
	TraceID            string `json:"trace_id"`
	SessionID          string `json:"session_id"`
	AdminID            string `json:"admin_id"`
	To                 string `json:"to"`
	AdminName          string `json:"admin_name"`
	Role               string `json:"role"`
	InvitationLink     string `json:"invitation_link"`
	CustomInstructions string `json:"custom_instructions,omitempty"`
}

// Validate validates required fields for InvitationEmailJob.
func (j *InvitationEmailJob) Validate() error {
	if j.ID == "" {
		return ErrJobIDRequired
	}
	if j.SessionID == "" {
		return ErrSessionIDRequired
	}
	if j.AdminID == "" {
		return ErrAdminIDRequired
	}
	if j.To == "" {
		return ErrRecipientRequired
	}
	if j.InvitationLink == "" {
		return ErrInvitationLinkMissing
	}
	return nil
}
