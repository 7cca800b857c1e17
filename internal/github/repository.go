package github

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidRepository is returned for strings that are not owner/repo slugs.
var ErrInvalidRepository = errors.New("invalid repository")

// GitHub owner and repository names: letters, digits, '-', '_' and '.'.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Repository identifies a GitHub repository.
type Repository struct {
	Owner string
	Name  string
}

func (r Repository) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepository parses "owner/repo" or a https://github.com/owner/repo URL.
func ParseRepository(s string) (Repository, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return Repository{}, fmt.Errorf("%w: %v", ErrInvalidRepository, err)
		}
		if u.Scheme != "https" {
			return Repository{}, fmt.Errorf("%w: URL must use HTTPS scheme, got: %s", ErrInvalidRepository, u.Scheme)
		}
		if u.Host != "github.com" {
			return Repository{}, fmt.Errorf("%w: URL must be from github.com, got: %s", ErrInvalidRepository, u.Host)
		}
		s = strings.TrimSuffix(strings.Trim(u.Path, "/"), ".git")
	}

	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return Repository{}, fmt.Errorf("%w: expected owner/repo, got: %q", ErrInvalidRepository, s)
	}

	repo := Repository{Owner: parts[0], Name: parts[1]}
	if !namePattern.MatchString(repo.Owner) {
		return Repository{}, fmt.Errorf("%w: invalid owner %q", ErrInvalidRepository, repo.Owner)
	}
	if !namePattern.MatchString(repo.Name) || repo.Name == "." || repo.Name == ".." {
		return Repository{}, fmt.Errorf("%w: invalid repository name %q", ErrInvalidRepository, repo.Name)
	}

	return repo, nil
}
