// Package repositories reconciles organization repositories with their
// configured records: creation, team grants, collaborators, branches, and the
// default branch.
package repositories
