package githubapi

import (
	"context"

	"github.com/google/go-github/v62/github"
)

const (
	listOrganizationReposOperationConstant = "list organization repositories"
	getRepositoryOperationConstant         = "get repository"
	createRepositoryOperationConstant      = "create repository"
	listBranchesOperationConstant          = "list branches"
	isCollaboratorOperationConstant        = "check collaborator"
	addCollaboratorOperationConstant       = "add collaborator"
	setDefaultBranchOperationConstant      = "set default branch"
)

// Repository is the observed state of an organization repository.
type Repository struct {
	Name          string
	Description   string
	DefaultBranch string
	CloneURL      string
}

// RepositorySpecification describes a repository to create.
type RepositorySpecification struct {
	Name        string
	Description string
	AdminTeam   Team
}

// ListOrganizationRepositories returns the names of every repository in the organization.
func (client *Client) ListOrganizationRepositories(executionContext context.Context) ([]string, error) {
	repositories, response, listError := collectPages(executionContext, func(pageContext context.Context, listOptions github.ListOptions) ([]*github.Repository, *github.Response, error) {
		return client.restClient.Repositories.ListByOrg(pageContext, client.organization, &github.RepositoryListByOrgOptions{ListOptions: listOptions})
	})
	if listError != nil {
		return nil, wrapOperationError(listOrganizationReposOperationConstant, client.organization, response, listError)
	}
	return repositoryNames(repositories), nil
}

// GetRepository returns the repository or an error wrapping ErrNotFound.
func (client *Client) GetRepository(executionContext context.Context, name string) (Repository, error) {
	repository, response, getError := client.restClient.Repositories.Get(executionContext, client.organization, name)
	if getError != nil {
		return Repository{}, wrapOperationError(getRepositoryOperationConstant, name, response, getError)
	}
	return convertRepository(repository), nil
}

// CreateRepository creates an organization repository administered by the specification's team.
func (client *Client) CreateRepository(executionContext context.Context, specification RepositorySpecification) (Repository, error) {
	newRepository := &github.Repository{
		Name:        github.String(specification.Name),
		Description: github.String(specification.Description),
	}
	if specification.AdminTeam.ID != 0 {
		newRepository.TeamID = github.Int64(specification.AdminTeam.ID)
	}
	repository, response, createError := client.restClient.Repositories.Create(executionContext, client.organization, newRepository)
	if createError != nil {
		return Repository{}, wrapOperationError(createRepositoryOperationConstant, specification.Name, response, createError)
	}
	return convertRepository(repository), nil
}

// ListBranches returns the branch names of the repository.
func (client *Client) ListBranches(executionContext context.Context, repository string) ([]string, error) {
	branches, response, listError := collectPages(executionContext, func(pageContext context.Context, listOptions github.ListOptions) ([]*github.Branch, *github.Response, error) {
		return client.restClient.Repositories.ListBranches(pageContext, client.organization, repository, &github.BranchListOptions{ListOptions: listOptions})
	})
	if listError != nil {
		return nil, wrapOperationError(listBranchesOperationConstant, repository, response, listError)
	}

	names := make([]string, 0, len(branches))
	for _, branch := range branches {
		names = append(names, branch.GetName())
	}
	return names, nil
}

// IsCollaborator reports whether login already collaborates on the repository.
func (client *Client) IsCollaborator(executionContext context.Context, repository string, login string) (bool, error) {
	collaborator, response, checkError := client.restClient.Repositories.IsCollaborator(executionContext, client.organization, repository, login)
	if checkError != nil {
		return false, wrapOperationError(isCollaboratorOperationConstant, repository+"/"+login, response, checkError)
	}
	return collaborator, nil
}

// AddCollaborator invites login to the repository with GitHub's default permission.
func (client *Client) AddCollaborator(executionContext context.Context, repository string, login string) error {
	_, response, addError := client.restClient.Repositories.AddCollaborator(executionContext, client.organization, repository, login, nil)
	if addError != nil {
		return wrapOperationError(addCollaboratorOperationConstant, repository+"/"+login, response, addError)
	}
	return nil
}

// SetDefaultBranch points the repository default branch at branch.
func (client *Client) SetDefaultBranch(executionContext context.Context, repository string, branch string) error {
	edit := &github.Repository{
		Name:          github.String(repository),
		DefaultBranch: github.String(branch),
	}
	_, response, editError := client.restClient.Repositories.Edit(executionContext, client.organization, repository, edit)
	if editError != nil {
		return wrapOperationError(setDefaultBranchOperationConstant, repository, response, editError)
	}
	return nil
}

func convertRepository(repository *github.Repository) Repository {
	return Repository{
		Name:          repository.GetName(),
		Description:   repository.GetDescription(),
		DefaultBranch: repository.GetDefaultBranch(),
		CloneURL:      repository.GetCloneURL(),
	}
}

func repositoryNames(repositories []*github.Repository) []string {
	names := make([]string, 0, len(repositories))
	for _, repository := range repositories {
		names = append(names, repository.GetName())
	}
	return names
}
