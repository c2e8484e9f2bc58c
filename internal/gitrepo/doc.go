// Package gitrepo builds and parses the git remote locations used when
// branches are pushed to the organization and templates are cloned from it.
package gitrepo
