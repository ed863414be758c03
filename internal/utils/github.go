package utils

import (
	"regexp"
	"strings"
)

// RepoLink is a parsed github.com repository URL.
type RepoLink struct {
	URL          string // URL as supplied, e.g. "https://github.com/owner/repo.git"
	Owner        string // Repository owner/organization name
	Repo         string // Repository name without a ".git" suffix
	FullRepoName string // Combined "owner/repo" format for convenience
}

var repoURLPattern = regexp.MustCompile(
	`^(?:https?://|git@)(?:www\.)?github\.com[/:]([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+?)(?:\.git)?/?(?:[?#].*)?$`,
)

// ParseRepositoryURL extracts owner and repository from a github.com URL.
// Both https and scp-style ssh forms are accepted. The second return value is
// false for anything that is not a github.com repository root, including
// links to a sub-page such as a pull request.
func ParseRepositoryURL(raw string) (RepoLink, bool) {
	raw = strings.TrimSpace(raw)
	match := repoURLPattern.FindStringSubmatch(raw)
	if match == nil {
		return RepoLink{}, false
	}

	owner, repo := match[1], match[2]
	if repo == "" || repo == "." || repo == ".." || owner == "." || owner == ".." {
		return RepoLink{}, false
	}

	return RepoLink{
		URL:          raw,
		Owner:        owner,
		Repo:         repo,
		FullRepoName: owner + "/" + repo,
	}, true
}
