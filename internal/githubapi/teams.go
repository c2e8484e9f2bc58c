package githubapi

import (
	"context"

	"github.com/google/go-github/v62/github"
)

// TeamRole is a role inside a team.
type TeamRole string

// Team roles understood by GitHub.
const (
	TeamRoleMember     TeamRole = TeamRole("member")
	TeamRoleMaintainer TeamRole = TeamRole("maintainer")
)

// Permission is a repository permission granted to a team or collaborator.
type Permission string

// Repository permissions used by the reconcilers.
const (
	PermissionPush  Permission = Permission("push")
	PermissionAdmin Permission = Permission("admin")
)

const (
	teamPrivacyClosedConstant          = "closed"
	getTeamOperationConstant           = "get team"
	createTeamOperationConstant        = "create team"
	listTeamMembersOperationConstant   = "list team members"
	addTeamMemberOperationConstant     = "add team membership"
	removeTeamMemberOperationConstant  = "remove team membership"
	listTeamReposOperationConstant     = "list team repositories"
	addTeamRepositoryOperationConstant = "grant team repository"
)

// Team identifies an organization team.
type Team struct {
	ID   int64
	Slug string
	Name string
}

// TeamSpecification describes a team to create.
type TeamSpecification struct {
	Slug        string
	Description string
}

// GetTeam returns the team identified by slug or an error wrapping ErrNotFound.
func (client *Client) GetTeam(executionContext context.Context, slug string) (Team, error) {
	team, response, getError := client.restClient.Teams.GetTeamBySlug(executionContext, client.organization, slug)
	if getError != nil {
		return Team{}, wrapOperationError(getTeamOperationConstant, slug, response, getError)
	}
	return convertTeam(team), nil
}

// CreateTeam creates a closed team named after the slug.
func (client *Client) CreateTeam(executionContext context.Context, specification TeamSpecification) (Team, error) {
	newTeam := github.NewTeam{
		Name:        specification.Slug,
		Description: github.String(specification.Description),
		Privacy:     github.String(teamPrivacyClosedConstant),
	}
	team, response, createError := client.restClient.Teams.CreateTeam(executionContext, client.organization, newTeam)
	if createError != nil {
		return Team{}, wrapOperationError(createTeamOperationConstant, specification.Slug, response, createError)
	}
	return convertTeam(team), nil
}

// ListTeamMembers returns the logins holding role in the team.
func (client *Client) ListTeamMembers(executionContext context.Context, team Team, role TeamRole) ([]string, error) {
	users, response, listError := collectPages(executionContext, func(pageContext context.Context, listOptions github.ListOptions) ([]*github.User, *github.Response, error) {
		return client.restClient.Teams.ListTeamMembersBySlug(pageContext, client.organization, team.Slug, &github.TeamListTeamMembersOptions{
			Role:        string(role),
			ListOptions: listOptions,
		})
	})
	if listError != nil {
		return nil, wrapOperationError(listTeamMembersOperationConstant, team.Slug, response, listError)
	}

	logins := make([]string, 0, len(users))
	for _, user := range users {
		logins = append(logins, user.GetLogin())
	}
	return logins, nil
}

// AddTeamMembership adds or updates the membership of login with role.
func (client *Client) AddTeamMembership(executionContext context.Context, team Team, login string, role TeamRole) error {
	_, response, addError := client.restClient.Teams.AddTeamMembershipBySlug(executionContext, client.organization, team.Slug, login, &github.TeamAddTeamMembershipOptions{Role: string(role)})
	if addError != nil {
		return wrapOperationError(addTeamMemberOperationConstant, team.Slug+"/"+login, response, addError)
	}
	return nil
}

// RemoveTeamMembership revokes the membership of login.
func (client *Client) RemoveTeamMembership(executionContext context.Context, team Team, login string) error {
	response, removeError := client.restClient.Teams.RemoveTeamMembershipBySlug(executionContext, client.organization, team.Slug, login)
	if removeError != nil {
		return wrapOperationError(removeTeamMemberOperationConstant, team.Slug+"/"+login, response, removeError)
	}
	return nil
}

// ListTeamRepositories returns the names of repositories the team has access to.
func (client *Client) ListTeamRepositories(executionContext context.Context, team Team) ([]string, error) {
	repositories, response, listError := collectPages(executionContext, func(pageContext context.Context, listOptions github.ListOptions) ([]*github.Repository, *github.Response, error) {
		return client.restClient.Teams.ListTeamReposBySlug(pageContext, client.organization, team.Slug, &listOptions)
	})
	if listError != nil {
		return nil, wrapOperationError(listTeamReposOperationConstant, team.Slug, response, listError)
	}
	return repositoryNames(repositories), nil
}

// AddTeamRepository grants the team permission on an organization repository.
func (client *Client) AddTeamRepository(executionContext context.Context, team Team, repository string, permission Permission) error {
	response, addError := client.restClient.Teams.AddTeamRepoBySlug(executionContext, client.organization, team.Slug, client.organization, repository, &github.TeamAddTeamRepoOptions{Permission: string(permission)})
	if addError != nil {
		return wrapOperationError(addTeamRepositoryOperationConstant, team.Slug+"/"+repository, response, addError)
	}
	return nil
}

func convertTeam(team *github.Team) Team {
	return Team{ID: team.GetID(), Slug: team.GetSlug(), Name: team.GetName()}
}
