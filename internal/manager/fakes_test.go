package manager_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oca/repo-maintainer/internal/execshell"
	"github.com/oca/repo-maintainer/internal/githubapi"
	"github.com/oca/repo-maintainer/internal/materialize"
)

const (
	testGlobalDocumentConstant = `owner: oca-admins
template: gh:OCA/oca-addons-repo-template
team_maintainers: []
maintainers:
  - gil
`
	testTeamDocumentConstant = `psc1:
  name: PSC 1
  members:
    - alice
`
	testRepositoryDocumentConstant = `test-repo-2:
  name: Test repo 2
  psc: psc1
  branches:
    - 16.0
  default_branch: 16.0
`
)

type fakeOrganization struct {
	mutex            sync.Mutex
	name             string
	host             string
	teams            map[string]githubapi.Team
	teamMembers      map[string][]string
	repositories     map[string]*githubapi.Repository
	branches         map[string][]string
	teamRepositories map[string][]string
	failCollaborator error
	mutations        []string
}

func newFakeOrganization() *fakeOrganization {
	return &fakeOrganization{
		name:             "OCA-devel",
		teams:            map[string]githubapi.Team{"oca-admins": {ID: 1, Slug: "oca-admins"}},
		teamMembers:      map[string][]string{},
		repositories:     map[string]*githubapi.Repository{},
		branches:         map[string][]string{},
		teamRepositories: map[string][]string{},
	}
}

func (organization *fakeOrganization) Organization() string {
	return organization.name
}

func (organization *fakeOrganization) Host() string {
	if len(organization.host) == 0 {
		return "github.com"
	}
	return organization.host
}

func (organization *fakeOrganization) mutate(format string, arguments ...any) {
	organization.mutations = append(organization.mutations, fmt.Sprintf(format, arguments...))
}

func (organization *fakeOrganization) GetTeam(_ context.Context, slug string) (githubapi.Team, error) {
	organization.mutex.Lock()
	defer organization.mutex.Unlock()
	team, found := organization.teams[slug]
	if !found {
		return githubapi.Team{}, githubapi.OperationError{Operation: "get team", Subject: slug, Cause: githubapi.ErrNotFound}
	}
	return team, nil
}

func (organization *fakeOrganization) CreateTeam(_ context.Context, specification githubapi.TeamSpecification) (githubapi.Team, error) {
	organization.mutate("create team %s", specification.Slug)
	team := githubapi.Team{ID: int64(len(organization.teams) + 1), Slug: specification.Slug}
	organization.teams[specification.Slug] = team
	return team, nil
}

func (organization *fakeOrganization) ListTeamMembers(_ context.Context, team githubapi.Team, role githubapi.TeamRole) ([]string, error) {
	if role != githubapi.TeamRoleMember {
		return nil, nil
	}
	return organization.teamMembers[team.Slug], nil
}

func (organization *fakeOrganization) AddTeamMembership(_ context.Context, team githubapi.Team, login string, role githubapi.TeamRole) error {
	organization.mutate("grant %s %s %s", team.Slug, role, login)
	organization.teamMembers[team.Slug] = append(organization.teamMembers[team.Slug], login)
	return nil
}

func (organization *fakeOrganization) RemoveTeamMembership(_ context.Context, team githubapi.Team, login string) error {
	organization.mutate("revoke %s %s", team.Slug, login)
	return nil
}

func (organization *fakeOrganization) ListOrganizationRepositories(context.Context) ([]string, error) {
	names := make([]string, 0, len(organization.repositories))
	for name := range organization.repositories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (organization *fakeOrganization) GetRepository(_ context.Context, name string) (githubapi.Repository, error) {
	return *organization.repositories[name], nil
}

func (organization *fakeOrganization) CreateRepository(_ context.Context, specification githubapi.RepositorySpecification) (githubapi.Repository, error) {
	organization.mutate("create repository %s", specification.Name)
	repository := &githubapi.Repository{Name: specification.Name}
	organization.repositories[specification.Name] = repository
	return *repository, nil
}

func (organization *fakeOrganization) ListBranches(_ context.Context, repository string) ([]string, error) {
	return organization.branches[repository], nil
}

func (organization *fakeOrganization) IsCollaborator(context.Context, string, string) (bool, error) {
	return false, nil
}

func (organization *fakeOrganization) AddCollaborator(_ context.Context, repository string, login string) error {
	organization.mutate("collaborate %s %s", repository, login)
	return organization.failCollaborator
}

func (organization *fakeOrganization) SetDefaultBranch(_ context.Context, repository string, branch string) error {
	organization.mutate("default %s %s", repository, branch)
	organization.repositories[repository].DefaultBranch = branch
	return nil
}

func (organization *fakeOrganization) ListTeamRepositories(_ context.Context, team githubapi.Team) ([]string, error) {
	return organization.teamRepositories[team.Slug], nil
}

func (organization *fakeOrganization) AddTeamRepository(_ context.Context, team githubapi.Team, repository string, permission githubapi.Permission) error {
	organization.mutate("grant %s %s %s", team.Slug, permission, repository)
	organization.teamRepositories[team.Slug] = append(organization.teamRepositories[team.Slug], repository)
	return nil
}

func (organization *fakeOrganization) AuthenticatedUser(context.Context) (githubapi.AuthenticatedUser, error) {
	return githubapi.AuthenticatedUser{Login: "oca-bot", Email: "bot@example.com"}, nil
}

type fakeBranchCreator struct {
	organization *fakeOrganization
	targets      []materialize.Target
}

func (creator *fakeBranchCreator) CreateBranch(_ context.Context, target materialize.Target) error {
	creator.targets = append(creator.targets, target)
	creator.organization.mutate("branch %s %s", target.Repository, target.Branch)
	creator.organization.branches[target.Repository] = append(creator.organization.branches[target.Repository], target.Branch)
	return nil
}

type recordingGitExecutor struct {
	calls []execshell.CommandDetails
}

func (executor *recordingGitExecutor) ExecuteGit(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.calls = append(executor.calls, details)
	return execshell.ExecutionResult{StandardOutput: "configured\n"}, nil
}

func writeConfigurationDirectory(testInstance *testing.T) string {
	testInstance.Helper()
	root := testInstance.TempDir()
	documents := map[string]string{
		"global.yml": testGlobalDocumentConstant,
		"psc.yml":    testTeamDocumentConstant,
		"repo.yml":   testRepositoryDocumentConstant,
	}
	for name, content := range documents {
		require.NoError(testInstance, os.WriteFile(filepath.Join(root, name), []byte(content), 0o600))
	}
	return root
}
