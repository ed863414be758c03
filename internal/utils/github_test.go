package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRepositoryURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected RepoLink
		ok       bool
	}{
		{
			name: "https repository root",
			url:  "https://github.com/owner/repo",
			expected: RepoLink{
				URL:          "https://github.com/owner/repo",
				Owner:        "owner",
				Repo:         "repo",
				FullRepoName: "owner/repo",
			},
			ok: true,
		},
		{
			name: "trailing slash and git suffix",
			url:  "https://github.com/acme/awesome-app.git/",
			expected: RepoLink{
				URL:          "https://github.com/acme/awesome-app.git/",
				Owner:        "acme",
				Repo:         "awesome-app",
				FullRepoName: "acme/awesome-app",
			},
			ok: true,
		},
		{
			name: "ssh form",
			url:  "git@github.com:acme/my_repo.v2.git",
			expected: RepoLink{
				URL:          "git@github.com:acme/my_repo.v2.git",
				Owner:        "acme",
				Repo:         "my_repo.v2",
				FullRepoName: "acme/my_repo.v2",
			},
			ok: true,
		},
		{
			name: "www host with surrounding whitespace",
			url:  "  https://www.github.com/Org/Repo  ",
			expected: RepoLink{
				URL:          "https://www.github.com/Org/Repo",
				Owner:        "Org",
				Repo:         "Repo",
				FullRepoName: "Org/Repo",
			},
			ok: true,
		},
		{
			name: "pull request link is not a repository root",
			url:  "https://github.com/owner/repo/pull/123",
		},
		{
			name: "other host",
			url:  "https://gitlab.com/owner/repo",
		},
		{
			name: "owner only",
			url:  "https://github.com/owner",
		},
		{
			name: "empty",
			url:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link, ok := ParseRepositoryURL(tt.url)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, link)
		})
	}
}
