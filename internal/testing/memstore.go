// Package testing provides test doubles for the onboarding stores and
// external services, plus a Firestore emulator harness.
package testing

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"onboarding-api/internal/models"
)

// MemoryStore is an in-memory stand-in for the Firestore-backed stores.
// Records are copied on the way in and out, like a real document store.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[string]models.User
	repos    map[string]map[string]models.Repository
	sessions map[string]map[string]models.OnboardingSession
	tokens   map[string]models.TokenIndexEntry
	nextRepo int

	// Err, when set, is returned by every call.
	Err error
	// TokenLookups counts calls to FindSessionByToken.
	TokenLookups int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]models.User),
		repos:    make(map[string]map[string]models.Repository),
		sessions: make(map[string]map[string]models.OnboardingSession),
		tokens:   make(map[string]models.TokenIndexEntry),
	}
}

func notFound(kind string) error {
	return fmt.Errorf("%s %w", kind, models.ErrNotFound)
}

// GetUser returns a copy of the stored user.
func (m *MemoryStore) GetUser(_ context.Context, userID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	user, ok := m.users[userID]
	if !ok {
		return nil, notFound("user")
	}
	return &user, nil
}

// SaveUser stores a copy of user.
func (m *MemoryStore) SaveUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	m.users[user.ID] = *user
	return nil
}

// CreateRepository stores repo under its admin with a generated ID.
func (m *MemoryStore) CreateRepository(_ context.Context, repo *models.Repository) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	m.nextRepo++
	repo.ID = "repo-" + strconv.Itoa(m.nextRepo)
	if m.repos[repo.AdminID] == nil {
		m.repos[repo.AdminID] = make(map[string]models.Repository)
	}
	m.repos[repo.AdminID][repo.ID] = *repo
	return nil
}

// ListRepositories returns the admin's repositories ordered by ID.
func (m *MemoryStore) ListRepositories(_ context.Context, adminID string) ([]*models.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	repos := []*models.Repository{}
	for _, repo := range m.repos[adminID] {
		repo := repo
		repos = append(repos, &repo)
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].ID < repos[j].ID })
	return repos, nil
}

// GetRepositories returns the listed repositories that exist, in order.
func (m *MemoryStore) GetRepositories(_ context.Context, adminID string, ids []string) ([]*models.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	repos := []*models.Repository{}
	for _, id := range ids {
		if repo, ok := m.repos[adminID][id]; ok {
			repos = append(repos, &repo)
		}
	}
	return repos, nil
}

// DeleteRepository removes a repository.
func (m *MemoryStore) DeleteRepository(_ context.Context, adminID, repoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	if _, ok := m.repos[adminID][repoID]; !ok {
		return notFound("repository")
	}
	delete(m.repos[adminID], repoID)
	return nil
}

// CreateSession checks repository references and stores the session with
// its token index entry, all under one lock.
func (m *MemoryStore) CreateSession(_ context.Context, session *models.OnboardingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	for _, id := range session.RepositoryIDs {
		if _, ok := m.repos[session.AdminID][id]; !ok {
			return fmt.Errorf("%w: repository %s not found for admin %s", models.ErrValidation, id, session.AdminID)
		}
	}
	if _, exists := m.sessions[session.AdminID][session.ID]; exists {
		return fmt.Errorf("session %s already exists", session.ID)
	}

	m.putSession(*session)
	m.tokens[session.ID] = models.TokenIndexEntry{
		Token:     session.ID,
		AdminID:   session.AdminID,
		SessionID: session.ID,
		CreatedAt: session.CreatedAt,
	}
	return nil
}

// PutSession stores a session without a token index entry, like a record
// written before the index existed.
func (m *MemoryStore) PutSession(session models.OnboardingSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putSession(session)
}

func (m *MemoryStore) putSession(session models.OnboardingSession) {
	if m.sessions[session.AdminID] == nil {
		m.sessions[session.AdminID] = make(map[string]models.OnboardingSession)
	}
	session.RepositoryIDs = append([]string{}, session.RepositoryIDs...)
	m.sessions[session.AdminID][session.ID] = session
}

// HasTokenEntry reports whether the token index holds token.
func (m *MemoryStore) HasTokenEntry(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tokens[token]
	return ok
}

// ListSessions returns the admin's sessions, oldest first.
func (m *MemoryStore) ListSessions(_ context.Context, adminID string) ([]*models.OnboardingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	sessions := []*models.OnboardingSession{}
	for _, session := range m.sessions[adminID] {
		session := session
		sessions = append(sessions, &session)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].CreatedAt.Before(sessions[j].CreatedAt) })
	return sessions, nil
}

// GetSession returns a copy of one session.
func (m *MemoryStore) GetSession(_ context.Context, adminID, sessionID string) (*models.OnboardingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.getSession(adminID, sessionID)
}

func (m *MemoryStore) getSession(adminID, sessionID string) (*models.OnboardingSession, error) {
	session, ok := m.sessions[adminID][sessionID]
	if !ok {
		return nil, notFound("onboarding session")
	}
	session.RepositoryIDs = append([]string{}, session.RepositoryIDs...)
	return &session, nil
}

// FindSessionByToken uses the token index, falling back to a scan of every
// admin that also repairs the index.
func (m *MemoryStore) FindSessionByToken(_ context.Context, token string) (*models.OnboardingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TokenLookups++
	if m.Err != nil {
		return nil, m.Err
	}

	if entry, ok := m.tokens[token]; ok {
		return m.getSession(entry.AdminID, entry.SessionID)
	}
	for adminID, sessions := range m.sessions {
		if session, ok := sessions[token]; ok {
			m.tokens[token] = models.TokenIndexEntry{
				Token:     token,
				AdminID:   adminID,
				SessionID: token,
				CreatedAt: session.CreatedAt,
			}
			return m.getSession(adminID, token)
		}
	}
	return nil, notFound("onboarding session")
}

// UpdateSession applies mutate to a copy and stores it only if mutate succeeds.
func (m *MemoryStore) UpdateSession(
	_ context.Context,
	adminID, sessionID string,
	mutate func(*models.OnboardingSession) error,
) (*models.OnboardingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	session, err := m.getSession(adminID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := mutate(session); err != nil {
		return nil, err
	}
	m.putSession(*session)
	return session, nil
}

// DeleteSession removes a session and its token index entry.
func (m *MemoryStore) DeleteSession(_ context.Context, adminID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	if _, ok := m.sessions[adminID][sessionID]; !ok {
		return notFound("onboarding session")
	}
	delete(m.sessions[adminID], sessionID)
	delete(m.tokens, sessionID)
	return nil
}
