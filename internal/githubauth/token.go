package githubauth

import (
	"errors"
	"os"
	"strings"
)

// Environment variable names consulted when no explicit token is configured.
const (
	EnvGitHubCLIToken = "GH_TOKEN"
	EnvGitHubToken    = "GITHUB_TOKEN"
	EnvGitHubAPIToken = "GITHUB_API_TOKEN"
)

const tokenNotFoundMessageConstant = "github token not provided: pass --token, configure tools.manage.token_source, or export GH_TOKEN, GITHUB_TOKEN, or GITHUB_API_TOKEN"

// ErrTokenNotFound indicates that no token could be located in any source.
var ErrTokenNotFound = errors.New(tokenNotFoundMessageConstant)

var tokenPreference = []string{
	EnvGitHubCLIToken,
	EnvGitHubToken,
	EnvGitHubAPIToken,
}

// TokenRequest lists the places a token may come from, highest precedence first.
type TokenRequest struct {
	ExplicitToken       string
	SourceVariableName  string
	Environment         map[string]string
	IgnoreProcessLookup bool
}

// ResolveToken returns the first non-empty token: the explicit value, then the
// configured source variable, then the well-known GitHub variables. The
// Environment map is consulted before the process environment for each name.
func ResolveToken(request TokenRequest) (string, error) {
	if explicitToken := strings.TrimSpace(request.ExplicitToken); len(explicitToken) > 0 {
		return explicitToken, nil
	}

	candidateNames := make([]string, 0, len(tokenPreference)+1)
	if sourceName := strings.TrimSpace(request.SourceVariableName); len(sourceName) > 0 {
		candidateNames = append(candidateNames, sourceName)
	}
	candidateNames = append(candidateNames, tokenPreference...)

	for _, candidateName := range candidateNames {
		if value, found := lookup(request.Environment, candidateName); found {
			return value, nil
		}
		if request.IgnoreProcessLookup {
			continue
		}
		if value, found := os.LookupEnv(candidateName); found {
			value = strings.TrimSpace(value)
			if len(value) > 0 {
				return value, nil
			}
		}
	}

	return "", ErrTokenNotFound
}

func lookup(environment map[string]string, key string) (string, bool) {
	if environment == nil {
		return "", false
	}
	value, exists := environment[key]
	if !exists {
		return "", false
	}
	value = strings.TrimSpace(value)
	if len(value) == 0 {
		return "", false
	}
	return value, true
}
