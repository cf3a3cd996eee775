package estate

import (
	"net/url"
	"strings"
)

// ParseGitHubSlug extracts "owner/name" from a GitHub remote URL. It accepts
// SSH (git@github.com:owner/name.git), ssh:// and https:// forms. The second
// return value is false when the URL does not resolve to a GitHub repository.
func ParseGitHubSlug(repoURL string) (string, bool) {
	trimmed := strings.TrimSpace(repoURL)
	if trimmed == "" {
		return "", false
	}

	if rest, ok := strings.CutPrefix(trimmed, "git@github.com:"); ok {
		return normalizeSlug(rest)
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}
	host := parsed.Hostname()
	if host != "github.com" {
		return "", false
	}
	return normalizeSlug(strings.TrimPrefix(parsed.Path, "/"))
}

func normalizeSlug(path string) (string, bool) {
	slug := strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	parts := strings.Split(slug, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", false
	}
	return parts[0] + "/" + parts[1], true
}
