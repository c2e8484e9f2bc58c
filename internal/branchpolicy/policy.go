// Package branchpolicy decides which automated branch changes a repository accepts.
//
// Repositories that still follow the single-trunk convention (a master or main
// branch) and repositories flagged for manual branch management are never
// restructured by automation. Every function here is pure.
package branchpolicy

import (
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Frozen branch names.
const (
	FrozenBranchMaster = "master"
	FrozenBranchMain   = "main"
)

// FrozenBranches lists branch names automation must never restructure away from.
var FrozenBranches = []string{FrozenBranchMaster, FrozenBranchMain}

// Subject is the branch-related view of a repository the policy evaluates.
// DefaultBranchDeclared is false when the platform default is authoritative.
type Subject struct {
	Branches               []string
	DefaultBranch          string
	DefaultBranchDeclared  bool
	ManualBranchManagement bool
}

// IsFrozen reports whether branch is one of FrozenBranches.
func IsFrozen(branch string) bool {
	trimmedBranch := strings.TrimSpace(branch)
	for _, frozenBranch := range FrozenBranches {
		if trimmedBranch == frozenBranch {
			return true
		}
	}
	return false
}

// HasManualManagement reports whether branch operations are left to humans.
func HasManualManagement(subject Subject) bool {
	return subject.ManualBranchManagement
}

// CanAddBranch reports whether branch may be added to subject.
func CanAddBranch(branch string, subject Subject) bool {
	for _, existingBranch := range subject.Branches {
		if existingBranch == branch || IsFrozen(existingBranch) {
			return false
		}
	}
	return !IsFrozen(subject.DefaultBranch)
}

// CanChangeDefaultBranch reports whether the default branch of subject is under configuration control.
func CanChangeDefaultBranch(subject Subject) bool {
	if !subject.DefaultBranchDeclared {
		return false
	}
	return !IsFrozen(subject.DefaultBranch)
}

// SortBranches returns branches ordered for deterministic processing: names that
// parse as versions come first in ascending version order, the rest follow lexically.
func SortBranches(branches []string) []string {
	sortedBranches := make([]string, len(branches))
	copy(sortedBranches, branches)

	versions := make(map[string]*semver.Version, len(sortedBranches))
	for _, branch := range sortedBranches {
		if version, parseError := semver.NewVersion(branch); parseError == nil {
			versions[branch] = version
		}
	}

	sort.SliceStable(sortedBranches, func(leftIndex int, rightIndex int) bool {
		leftBranch := sortedBranches[leftIndex]
		rightBranch := sortedBranches[rightIndex]
		leftVersion, leftIsVersion := versions[leftBranch]
		rightVersion, rightIsVersion := versions[rightBranch]
		switch {
		case leftIsVersion && rightIsVersion:
			if comparison := leftVersion.Compare(rightVersion); comparison != 0 {
				return comparison < 0
			}
			return leftBranch < rightBranch
		case leftIsVersion != rightIsVersion:
			return leftIsVersion
		default:
			return leftBranch < rightBranch
		}
	})

	return sortedBranches
}
