package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnboardingSession_ApplyProgress(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name              string
		startStatus       SessionStatus
		startCompletedAt  bool
		progress          int
		expectedStatus    SessionStatus
		expectedProgress  int
		expectCompletedAt bool
	}{
		{
			name:              "full progress completes a pending session",
			startStatus:       SessionStatusPending,
			progress:          100,
			expectedStatus:    SessionStatusCompleted,
			expectedProgress:  100,
			expectCompletedAt: true,
		},
		{
			name:              "partial progress moves pending to in progress",
			startStatus:       SessionStatusPending,
			progress:          45,
			expectedStatus:    SessionStatusInProgress,
			expectedProgress:  45,
			expectCompletedAt: false,
		},
		{
			name:              "zero progress leaves pending untouched",
			startStatus:       SessionStatusPending,
			progress:          0,
			expectedStatus:    SessionStatusPending,
			expectedProgress:  0,
			expectCompletedAt: false,
		},
		{
			name:              "zero progress leaves in progress untouched",
			startStatus:       SessionStatusInProgress,
			progress:          0,
			expectedStatus:    SessionStatusInProgress,
			expectedProgress:  0,
			expectCompletedAt: false,
		},
		{
			name:              "progress above the maximum is capped",
			startStatus:       SessionStatusInProgress,
			progress:          150,
			expectedStatus:    SessionStatusCompleted,
			expectedProgress:  100,
			expectCompletedAt: true,
		},
		{
			name:              "partial progress reopens a completed session",
			startStatus:       SessionStatusCompleted,
			startCompletedAt:  true,
			progress:          99,
			expectedStatus:    SessionStatusInProgress,
			expectedProgress:  99,
			expectCompletedAt: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &OnboardingSession{Status: tt.startStatus}
			if tt.startCompletedAt {
				earlier := now.Add(-time.Hour)
				session.CompletedAt = &earlier
			}

			err := session.ApplyProgress(tt.progress, now)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedStatus, session.Status)
			assert.Equal(t, tt.expectedProgress, session.Progress)
			if tt.expectCompletedAt {
				require.NotNil(t, session.CompletedAt)
				assert.Equal(t, now, *session.CompletedAt)
			} else {
				assert.Nil(t, session.CompletedAt)
			}
		})
	}
}

func TestOnboardingSession_ApplyProgressRejectsNegative(t *testing.T) {
	session := &OnboardingSession{Status: SessionStatusPending, Progress: 10}

	err := session.ApplyProgress(-1, time.Now())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, 10, session.Progress)
	assert.Equal(t, SessionStatusPending, session.Status)
}

func TestOnboardingSession_Claim(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		status      SessionStatus
		email       string
		expectedErr error
	}{
		{
			name:   "pending session with matching email",
			status: SessionStatusPending,
			email:  "alice@x.com",
		},
		{
			name:        "email differs only by case",
			status:      SessionStatusPending,
			email:       "Alice@x.com",
			expectedErr: ErrInvitationEmailMismatch,
		},
		{
			name:        "session already in progress",
			status:      SessionStatusInProgress,
			email:       "alice@x.com",
			expectedErr: ErrInvitationAlreadyUsed,
		},
		{
			name:        "session already completed",
			status:      SessionStatusCompleted,
			email:       "alice@x.com",
			expectedErr: ErrInvitationAlreadyUsed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &OnboardingSession{Email: "alice@x.com", Status: tt.status}

			err := session.Claim("uid-1", tt.email, now)

			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				assert.ErrorIs(t, err, ErrValidation)
				assert.Equal(t, tt.status, session.Status)
				assert.Empty(t, session.EmployeeUID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, SessionStatusInProgress, session.Status)
			assert.Equal(t, "uid-1", session.EmployeeUID)
			require.NotNil(t, session.StartedAt)
			assert.Equal(t, now, *session.StartedAt)
		})
	}
}

func TestInvitationEmailJob_Validate(t *testing.T) {
	valid := func() InvitationEmailJob {
		return InvitationEmailJob{
			ID:             "job-1",
			SessionID:      "token-1",
			AdminID:        "admin-1",
			To:             "alice@x.com",
			InvitationLink: "http://localhost:3000/employee-onboarding/token-1",
		}
	}

	tests := []struct {
		name        string
		mutate      func(*InvitationEmailJob)
		expectedErr error
	}{
		{name: "valid job", mutate: func(*InvitationEmailJob) {}},
		{name: "missing id", mutate: func(j *InvitationEmailJob) { j.ID = "" }, expectedErr: ErrJobIDRequired},
		{name: "missing session", mutate: func(j *InvitationEmailJob) { j.SessionID = "" }, expectedErr: ErrSessionIDRequired},
		{name: "missing admin", mutate: func(j *InvitationEmailJob) { j.AdminID = "" }, expectedErr: ErrAdminIDRequired},
		{name: "missing recipient", mutate: func(j *InvitationEmailJob) { j.To = "" }, expectedErr: ErrRecipientRequired},
		{name: "missing link", mutate: func(j *InvitationEmailJob) { j.InvitationLink = "" }, expectedErr: ErrInvitationLinkMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := valid()
			tt.mutate(&job)
			err := job.Validate()
			if tt.expectedErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}
