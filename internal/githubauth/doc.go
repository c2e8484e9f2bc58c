// Package githubauth locates the GitHub token used for API calls and pushes.
package githubauth
