package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v73/github"

	"onboarding-api/internal/config"
	"onboarding-api/internal/log"
	"onboarding-api/internal/utils"
)

// ErrNotGitHubRepository is returned for URLs that are not a github.com repository.
var ErrNotGitHubRepository = errors.New("not a github.com repository URL")

// GitHubService looks up repository metadata on GitHub.
type GitHubService struct {
	client *github.Client
}

// NewGitHubService creates a GitHubService. A GitHub App installation is
// preferred, then a personal token, then anonymous access.
func NewGitHubService(cfg *config.Config, base *http.Client) (*GitHubService, error) {
	if base == nil {
		base = &http.Client{Timeout: cfg.HTTPClientTimeout}
	}
	baseTransport := base.Transport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}

	httpClient := base
	switch {
	case cfg.GitHubAppID != 0:
		transport, err := ghinstallation.NewKeyFromFile(
			baseTransport, cfg.GitHubAppID, cfg.GitHubInstallationID, cfg.GitHubPrivateKeyPath,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub App transport: %w", err)
		}
		httpClient = &http.Client{Transport: transport, Timeout: base.Timeout}
	case cfg.GitHubToken != "":
		transport := &github.BasicAuthTransport{
			Username:  "x-access-token",
			Password:  cfg.GitHubToken,
			Transport: baseTransport,
		}
		httpClient = &http.Client{Transport: transport, Timeout: base.Timeout}
	}

	return &GitHubService{client: github.NewClient(httpClient)}, nil
}

// LookupRepository returns the description and primary language of a
// github.com repository.
func (s *GitHubService) LookupRepository(ctx context.Context, url string) (*RepositoryMetadata, error) {
	link, ok := utils.ParseRepositoryURL(url)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotGitHubRepository, url)
	}

	repo, _, err := s.client.Repositories.Get(ctx, link.Owner, link.Repo)
	if err != nil {
		log.Warn(ctx, "Failed to fetch GitHub repository",
			"error", err,
			"repo", link.FullRepoName,
			"operation", "get_github_repository",
		)
		return nil, fmt.Errorf("failed to fetch repository %s: %w", link.FullRepoName, err)
	}

	return &RepositoryMetadata{
		Description: repo.GetDescription(),
		Language:    repo.GetLanguage(),
	}, nil
}
