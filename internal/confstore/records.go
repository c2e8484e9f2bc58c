package confstore

import (
	"fmt"
	"sort"

	"github.com/oca/repo-maintainer/internal/branchpolicy"
)

// GlobalConfig holds organization-wide settings. It is immutable once loaded.
type GlobalConfig struct {
	Owner           string   `yaml:"owner"`
	Template        string   `yaml:"template"`
	TeamMaintainers []string `yaml:"team_maintainers"`
	Maintainers     []string `yaml:"maintainers"`
}

// TeamRecord describes the desired roster of one team.
type TeamRecord struct {
	Slug            string   `yaml:"-"`
	Name            string   `yaml:"name"`
	Members         []string `yaml:"members"`
	Representatives []string `yaml:"representatives"`
}

// RepositoryRecord describes the desired state of one repository.
type RepositoryRecord struct {
	Slug                   string   `yaml:"-"`
	Name                   string   `yaml:"name"`
	Description            string   `yaml:"description"`
	PSC                    string   `yaml:"psc"`
	Maintainers            []string `yaml:"maintainers"`
	Branches               []string `yaml:"branches"`
	DefaultBranch          *string  `yaml:"default_branch,omitempty"`
	ManualBranchManagement bool     `yaml:"manual_branch_mgmt"`
}

// DeclaredDefaultBranch returns the configured default branch and whether the key was present.
func (record RepositoryRecord) DeclaredDefaultBranch() (string, bool) {
	if record.DefaultBranch == nil {
		return "", false
	}
	return *record.DefaultBranch, true
}

// decodedViolations reports problems the schema cannot see once YAML scalars are typed.
// A branch written both as 16.0 and "16.0" passes uniqueItems but decodes twice.
func (record RepositoryRecord) decodedViolations(slug string) []string {
	violations := make([]string, 0)
	seenBranches := make(map[string]struct{}, len(record.Branches))
	for _, branch := range record.Branches {
		if _, seen := seenBranches[branch]; seen {
			violations = append(violations, fmt.Sprintf(repeatedBranchTemplateConstant, slug, branch))
			continue
		}
		seenBranches[branch] = struct{}{}
	}
	return violations
}

// PolicySubject describes the record as written in configuration.
func (record RepositoryRecord) PolicySubject() branchpolicy.Subject {
	defaultBranch, declared := record.DeclaredDefaultBranch()
	return branchpolicy.Subject{
		Branches:               record.Branches,
		DefaultBranch:          defaultBranch,
		DefaultBranchDeclared:  declared,
		ManualBranchManagement: record.ManualBranchManagement,
	}
}

// SortedSlugs returns the keys of records in lexical order.
func SortedSlugs[Record any](records map[string]Record) []string {
	slugs := make([]string, 0, len(records))
	for slug := range records {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}
