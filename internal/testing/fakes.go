package testing

import (
	"context"
	"sync"

	"onboarding-api/internal/models"
)

// FakeIdentity records custom claims instead of calling the identity service.
type FakeIdentity struct {
	mu     sync.Mutex
	claims map[string]map[string]interface{}

	// Err, when set, fails every SetCustomClaims call.
	Err error
	// OnSetClaims, when set, runs after claims are recorded.
	OnSetClaims func(uid string)
}

// NewFakeIdentity creates an empty FakeIdentity.
func NewFakeIdentity() *FakeIdentity {
	return &FakeIdentity{claims: make(map[string]map[string]interface{})}
}

// SetCustomClaims records claims for uid, replacing earlier ones.
func (f *FakeIdentity) SetCustomClaims(_ context.Context, uid string, claims map[string]interface{}) error {
	f.mu.Lock()
	if f.Err != nil {
		f.mu.Unlock()
		return f.Err
	}
	f.claims[uid] = claims
	hook := f.OnSetClaims
	f.mu.Unlock()

	if hook != nil {
		hook(uid)
	}
	return nil
}

// Claims returns the last claims recorded for uid.
func (f *FakeIdentity) Claims(uid string) map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claims[uid]
}

// FakeDispatcher records invitation jobs and answers with a fixed outcome.
type FakeDispatcher struct {
	mu   sync.Mutex
	jobs []models.InvitationEmailJob

	Outcome models.InvitationEmailStatus
	// OnDispatch, when set, runs before the outcome is returned.
	OnDispatch func(job *models.InvitationEmailJob)
}

// NewFakeDispatcher creates a FakeDispatcher that reports outcome.
func NewFakeDispatcher(outcome models.InvitationEmailStatus) *FakeDispatcher {
	return &FakeDispatcher{Outcome: outcome}
}

// Dispatch records job.
func (f *FakeDispatcher) Dispatch(_ context.Context, job *models.InvitationEmailJob) models.InvitationEmailStatus {
	f.mu.Lock()
	f.jobs = append(f.jobs, *job)
	hook := f.OnDispatch
	f.mu.Unlock()

	if hook != nil {
		hook(job)
	}
	return f.Outcome
}

// Jobs returns every dispatched job.
func (f *FakeDispatcher) Jobs() []models.InvitationEmailJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.InvitationEmailJob{}, f.jobs...)
}

// FakeNotifier records admin notifications.
type FakeNotifier struct {
	mu        sync.Mutex
	Claimed   []string
	Completed []string
}

// InvitationClaimed records the claimed session ID.
func (f *FakeNotifier) InvitationClaimed(_ context.Context, session *models.OnboardingSession, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Claimed = append(f.Claimed, session.ID)
}

// OnboardingCompleted records the completed session ID.
func (f *FakeNotifier) OnboardingCompleted(_ context.Context, session *models.OnboardingSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Completed = append(f.Completed, session.ID)
}
