package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboarding-api/internal/models"
	testutil "onboarding-api/internal/testing"
)

type stubMetadata struct {
	meta  *RepositoryMetadata
	err   error
	calls int
}

func (s *stubMetadata) LookupRepository(context.Context, string) (*RepositoryMetadata, error) {
	s.calls++
	return s.meta, s.err
}

func TestRepositoryService_RoundTrip(t *testing.T) {
	store := testutil.NewMemoryStore()
	service := NewRepositoryService(store, nil)
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }
	ctx := context.Background()

	created, err := service.Create(ctx, CreateRepositoryInput{
		Name:        "api",
		URL:         "https://github.com/acme/api",
		Description: "Public API",
		Language:    "Go",
		AdminID:     "admin-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.RepositoryStatusSynced, created.Status)
	assert.Equal(t, now, created.LastSync)

	repos, err := service.List(ctx, "admin-1")
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, created, repos[0])

	require.NoError(t, service.Delete(ctx, "admin-1", created.ID))

	repos, err = service.List(ctx, "admin-1")
	require.NoError(t, err)
	assert.Empty(t, repos)

	err = service.Delete(ctx, "admin-1", created.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRepositoryService_CreateKeepsSuppliedStatus(t *testing.T) {
	service := NewRepositoryService(testutil.NewMemoryStore(), nil)

	repo, err := service.Create(context.Background(), CreateRepositoryInput{
		Name: "web", URL: "https://example.com/web.git", Status: "syncing", AdminID: "admin-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "syncing", repo.Status)
}

func TestRepositoryService_CreateValidation(t *testing.T) {
	service := NewRepositoryService(testutil.NewMemoryStore(), nil)

	tests := []struct {
		name  string
		input CreateRepositoryInput
	}{
		{name: "missing admin", input: CreateRepositoryInput{Name: "api", URL: "https://github.com/acme/api"}},
		{name: "missing name", input: CreateRepositoryInput{URL: "https://github.com/acme/api", AdminID: "admin-1"}},
		{name: "missing url", input: CreateRepositoryInput{Name: "api", AdminID: "admin-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Create(context.Background(), tt.input)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

func TestRepositoryService_Enrichment(t *testing.T) {
	tests := []struct {
		name                string
		input               CreateRepositoryInput
		metadata            *stubMetadata
		expectedDescription string
		expectedLanguage    string
		expectedCalls       int
	}{
		{
			name:                "fills missing fields",
			input:               CreateRepositoryInput{Name: "api", URL: "https://github.com/acme/api", AdminID: "admin-1"},
			metadata:            &stubMetadata{meta: &RepositoryMetadata{Description: "From GitHub", Language: "Go"}},
			expectedDescription: "From GitHub",
			expectedLanguage:    "Go",
			expectedCalls:       1,
		},
		{
			name: "keeps supplied description",
			input: CreateRepositoryInput{
				Name: "api", URL: "https://github.com/acme/api", Description: "Mine", AdminID: "admin-1",
			},
			metadata:            &stubMetadata{meta: &RepositoryMetadata{Description: "From GitHub", Language: "Go"}},
			expectedDescription: "Mine",
			expectedLanguage:    "Go",
			expectedCalls:       1,
		},
		{
			name: "skips lookup when complete",
			input: CreateRepositoryInput{
				Name: "api", URL: "https://github.com/acme/api", Description: "Mine", Language: "Rust", AdminID: "admin-1",
			},
			metadata:            &stubMetadata{meta: &RepositoryMetadata{Description: "From GitHub", Language: "Go"}},
			expectedDescription: "Mine",
			expectedLanguage:    "Rust",
			expectedCalls:       0,
		},
		{
			name:          "lookup failure is ignored",
			input:         CreateRepositoryInput{Name: "api", URL: "https://github.com/acme/api", AdminID: "admin-1"},
			metadata:      &stubMetadata{err: errors.New("rate limited")},
			expectedCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewRepositoryService(testutil.NewMemoryStore(), tt.metadata)

			repo, err := service.Create(context.Background(), tt.input)

			require.NoError(t, err)
			assert.Equal(t, tt.expectedDescription, repo.Description)
			assert.Equal(t, tt.expectedLanguage, repo.Language)
			assert.Equal(t, tt.expectedCalls, tt.metadata.calls)
		})
	}
}
