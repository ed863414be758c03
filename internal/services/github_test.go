package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboarding-api/internal/config"
)

func TestGitHubService_LookupRepository(t *testing.T) {
	mock := httpmock.NewMockTransport()
	var user, password string
	mock.RegisterResponder(http.MethodGet, "https://api.github.com/repos/acme/api",
		func(req *http.Request) (*http.Response, error) {
			user, password, _ = req.BasicAuth()
			return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
				"name":        "api",
				"description": "Public API",
				"language":    "Go",
			})
		})
	mock.RegisterResponder(http.MethodGet, "https://api.github.com/repos/acme/gone",
		httpmock.NewJsonResponderOrPanic(http.StatusNotFound, map[string]string{"message": "Not Found"}))

	cfg := &config.Config{GitHubToken: "ghp_test", HTTPClientTimeout: time.Second}
	service, err := NewGitHubService(cfg, &http.Client{Transport: mock, Timeout: time.Second})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		meta, err := service.LookupRepository(ctx, "https://github.com/acme/api.git")
		require.NoError(t, err)
		assert.Equal(t, &RepositoryMetadata{Description: "Public API", Language: "Go"}, meta)
		assert.Equal(t, "x-access-token", user)
		assert.Equal(t, "ghp_test", password)
	})

	t.Run("missing repository", func(t *testing.T) {
		_, err := service.LookupRepository(ctx, "https://github.com/acme/gone")
		assert.Error(t, err)
	})

	t.Run("not a github url", func(t *testing.T) {
		calls := mock.GetTotalCallCount()
		_, err := service.LookupRepository(ctx, "https://gitlab.com/acme/api")
		assert.ErrorIs(t, err, ErrNotGitHubRepository)
		assert.Equal(t, calls, mock.GetTotalCallCount())
	})
}

func TestNewGitHubService_AppKeyMissing(t *testing.T) {
	cfg := &config.Config{
		GitHubAppID:          1,
		GitHubInstallationID: 2,
		GitHubPrivateKeyPath: "/nonexistent/key.pem",
		HTTPClientTimeout:    time.Second,
	}

	_, err := NewGitHubService(cfg, nil)

	assert.Error(t, err)
}
