package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oca/repo-maintainer/internal/branchpolicy"
	"github.com/oca/repo-maintainer/internal/confstore"
	"github.com/oca/repo-maintainer/internal/githubapi"
	"github.com/oca/repo-maintainer/internal/materialize"
)

const (
	noRepositoryLogMessageConstant         = "No repository to process"
	repositoryProcessingLogMessageConstant = "processing repository"
	repositoryCreatedLogMessageConstant    = "repository created"
	teamGrantedLogMessageConstant          = "granting team access"
	collaboratorAddedLogMessageConstant    = "adding collaborator"
	manualManagementLogMessageConstant     = "branches are managed manually: skipping branch changes"
	branchDeniedLogMessageConstant         = "branch policy prevents adding branch"
	branchCreatingLogMessageConstant       = "creating branch"
	defaultBranchSetLogMessageConstant     = "setting default branch"
	defaultBranchDeniedLogMessageConstant  = "branch policy prevents changing default branch"
	defaultBranchMissingLogMessageConstant = "declared default branch does not exist remotely"
	clientMissingMessageConstant           = "repository client not configured"
	branchCreatorMissingMessageConstant    = "branch creator not configured"
	listRepositoriesErrorTemplateConstant  = "unable to list organization repositories: %w"
	resolveTeamErrorTemplateConstant       = "unable to resolve team %s: %w"
	createRepositoryErrorTemplateConstant  = "unable to create repository %s: %w"
	inspectRepositoryErrorTemplateConstant = "unable to inspect repository %s: %w"
	grantTeamErrorTemplateConstant         = "unable to grant %s %s access to %s: %w"
	collaboratorErrorTemplateConstant      = "unable to add collaborator %s to %s: %w"
	createBranchErrorTemplateConstant      = "unable to create branch %s in %s: %w"
	defaultBranchErrorTemplateConstant     = "unable to set default branch of %s to %s: %w"
	logFieldRepositoryConstant             = "repository"
	logFieldTeamConstant                   = "team"
	logFieldPermissionConstant             = "permission"
	logFieldLoginConstant                  = "login"
	logFieldBranchConstant                 = "branch"
	logFieldCurrentDefaultBranchConstant   = "current_default_branch"
)

var (
	// ErrClientNotConfigured indicates a Reconciler built without a repository client.
	ErrClientNotConfigured = errors.New(clientMissingMessageConstant)
	// ErrBranchCreatorNotConfigured indicates a Reconciler built without a branch creator.
	ErrBranchCreatorNotConfigured = errors.New(branchCreatorMissingMessageConstant)
)

// RepositoryClient exposes the organization operations the reconciler performs.
type RepositoryClient interface {
	ListOrganizationRepositories(executionContext context.Context) ([]string, error)
	GetRepository(executionContext context.Context, name string) (githubapi.Repository, error)
	CreateRepository(executionContext context.Context, specification githubapi.RepositorySpecification) (githubapi.Repository, error)
	ListBranches(executionContext context.Context, repository string) ([]string, error)
	IsCollaborator(executionContext context.Context, repository string, login string) (bool, error)
	AddCollaborator(executionContext context.Context, repository string, login string) error
	SetDefaultBranch(executionContext context.Context, repository string, branch string) error
	GetTeam(executionContext context.Context, slug string) (githubapi.Team, error)
	ListTeamRepositories(executionContext context.Context, team githubapi.Team) ([]string, error)
	AddTeamRepository(executionContext context.Context, team githubapi.Team, repository string, permission githubapi.Permission) error
}

// BranchCreator materializes a branch in a remote repository.
type BranchCreator interface {
	CreateBranch(executionContext context.Context, target materialize.Target) error
}

// Dependencies groups collaborators required by the Reconciler.
type Dependencies struct {
	Client        RepositoryClient
	BranchCreator BranchCreator
	Logger        *zap.Logger
}

// Reconciler converges organization repositories toward the desired records.
type Reconciler struct {
	client        RepositoryClient
	branchCreator BranchCreator
	global        confstore.GlobalConfig
	logger        *zap.Logger
}

// observedRepository is the remote branch state of one repository during a pass.
type observedRepository struct {
	branches      []string
	defaultBranch string
}

// teamAccess caches a PSC team together with the repositories it can reach.
type teamAccess struct {
	team         githubapi.Team
	repositories map[string]struct{}
}

// pass holds the state resolved once per Reconcile call.
type pass struct {
	existing        map[string]struct{}
	ownerTeam       githubapi.Team
	maintainerTeams []githubapi.Team
	pscTeams        map[string]*teamAccess
}

// NewReconciler constructs a Reconciler bound to the organization-wide configuration.
func NewReconciler(dependencies Dependencies, global confstore.GlobalConfig) (*Reconciler, error) {
	if dependencies.Client == nil {
		return nil, ErrClientNotConfigured
	}
	if dependencies.BranchCreator == nil {
		return nil, ErrBranchCreatorNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		client:        dependencies.Client,
		branchCreator: dependencies.BranchCreator,
		global:        global,
		logger:        logger,
	}, nil
}

// Reconcile processes every desired repository in slug order. It stops at the first failure.
func (reconciler *Reconciler) Reconcile(executionContext context.Context, desired map[string]confstore.RepositoryRecord) error {
	if len(desired) == 0 {
		reconciler.logger.Info(noRepositoryLogMessageConstant)
		return nil
	}

	currentPass, passError := reconciler.preparePass(executionContext)
	if passError != nil {
		return passError
	}

	for _, slug := range confstore.SortedSlugs(desired) {
		record := desired[slug]
		if len(record.Slug) == 0 {
			record.Slug = slug
		}
		if reconcileError := reconciler.reconcileRepository(executionContext, currentPass, record); reconcileError != nil {
			return reconcileError
		}
	}
	return nil
}

func (reconciler *Reconciler) preparePass(executionContext context.Context) (*pass, error) {
	names, listError := reconciler.client.ListOrganizationRepositories(executionContext)
	if listError != nil {
		return nil, fmt.Errorf(listRepositoriesErrorTemplateConstant, listError)
	}
	existing := make(map[string]struct{}, len(names))
	for _, name := range names {
		existing[name] = struct{}{}
	}

	ownerTeam, ownerError := reconciler.client.GetTeam(executionContext, reconciler.global.Owner)
	if ownerError != nil {
		return nil, fmt.Errorf(resolveTeamErrorTemplateConstant, reconciler.global.Owner, ownerError)
	}

	maintainerTeams := make([]githubapi.Team, len(reconciler.global.TeamMaintainers))
	group, groupContext := errgroup.WithContext(executionContext)
	for index, slug := range reconciler.global.TeamMaintainers {
		group.Go(func() error {
			team, teamError := reconciler.client.GetTeam(groupContext, slug)
			if teamError != nil {
				return fmt.Errorf(resolveTeamErrorTemplateConstant, slug, teamError)
			}
			maintainerTeams[index] = team
			return nil
		})
	}
	if waitError := group.Wait(); waitError != nil {
		return nil, waitError
	}

	return &pass{
		existing:        existing,
		ownerTeam:       ownerTeam,
		maintainerTeams: maintainerTeams,
		pscTeams:        map[string]*teamAccess{},
	}, nil
}

func (reconciler *Reconciler) reconcileRepository(executionContext context.Context, currentPass *pass, record confstore.RepositoryRecord) error {
	repositoryLogger := reconciler.logger.With(zap.String(logFieldRepositoryConstant, record.Slug))
	repositoryLogger.Info(repositoryProcessingLogMessageConstant)

	observed, observeError := reconciler.ensureRepository(executionContext, currentPass, record, repositoryLogger)
	if observeError != nil {
		return observeError
	}

	if grantError := reconciler.ensurePSCAccess(executionContext, currentPass, record, repositoryLogger); grantError != nil {
		return grantError
	}

	for _, login := range record.Maintainers {
		if collaboratorError := reconciler.ensureCollaborator(executionContext, record.Slug, login, repositoryLogger); collaboratorError != nil {
			return collaboratorError
		}
	}

	if branchpolicy.HasManualManagement(record.PolicySubject()) {
		repositoryLogger.Info(manualManagementLogMessageConstant)
		return nil
	}

	if branchError := reconciler.ensureBranches(executionContext, record, observed, repositoryLogger); branchError != nil {
		return branchError
	}
	return reconciler.ensureDefaultBranch(executionContext, record, observed, repositoryLogger)
}

func (reconciler *Reconciler) ensureRepository(executionContext context.Context, currentPass *pass, record confstore.RepositoryRecord, repositoryLogger *zap.Logger) (*observedRepository, error) {
	if _, present := currentPass.existing[record.Slug]; present {
		repository, getError := reconciler.client.GetRepository(executionContext, record.Slug)
		if getError != nil {
			return nil, fmt.Errorf(inspectRepositoryErrorTemplateConstant, record.Slug, getError)
		}
		branches, branchesError := reconciler.client.ListBranches(executionContext, record.Slug)
		if branchesError != nil {
			return nil, fmt.Errorf(inspectRepositoryErrorTemplateConstant, record.Slug, branchesError)
		}
		observed := &observedRepository{branches: branches}
		// An empty repository reports a default branch that does not exist yet.
		if containsBranch(branches, repository.DefaultBranch) {
			observed.defaultBranch = repository.DefaultBranch
		}
		return observed, nil
	}

	_, createError := reconciler.client.CreateRepository(executionContext, githubapi.RepositorySpecification{
		Name:        record.Slug,
		Description: repositoryDescription(record),
		AdminTeam:   currentPass.ownerTeam,
	})
	if createError != nil {
		return nil, fmt.Errorf(createRepositoryErrorTemplateConstant, record.Slug, createError)
	}
	currentPass.existing[record.Slug] = struct{}{}
	repositoryLogger.Info(repositoryCreatedLogMessageConstant)

	for _, team := range currentPass.maintainerTeams {
		if grantError := reconciler.grantTeam(executionContext, team, record.Slug, githubapi.PermissionAdmin, repositoryLogger); grantError != nil {
			return nil, grantError
		}
	}
	return &observedRepository{}, nil
}

func (reconciler *Reconciler) ensurePSCAccess(executionContext context.Context, currentPass *pass, record confstore.RepositoryRecord, repositoryLogger *zap.Logger) error {
	pscSlug := strings.TrimSpace(record.PSC)
	if len(pscSlug) == 0 {
		return nil
	}

	access, cached := currentPass.pscTeams[pscSlug]
	if !cached {
		team, teamError := reconciler.client.GetTeam(executionContext, pscSlug)
		if teamError != nil {
			return fmt.Errorf(resolveTeamErrorTemplateConstant, pscSlug, teamError)
		}
		names, namesError := reconciler.client.ListTeamRepositories(executionContext, team)
		if namesError != nil {
			return fmt.Errorf(resolveTeamErrorTemplateConstant, pscSlug, namesError)
		}
		access = &teamAccess{team: team, repositories: make(map[string]struct{}, len(names))}
		for _, name := range names {
			access.repositories[name] = struct{}{}
		}
		currentPass.pscTeams[pscSlug] = access
	}

	if _, granted := access.repositories[record.Slug]; granted {
		return nil
	}
	if grantError := reconciler.grantTeam(executionContext, access.team, record.Slug, githubapi.PermissionPush, repositoryLogger); grantError != nil {
		return grantError
	}
	access.repositories[record.Slug] = struct{}{}
	return nil
}

func (reconciler *Reconciler) ensureCollaborator(executionContext context.Context, repository string, login string, repositoryLogger *zap.Logger) error {
	collaborator, checkError := reconciler.client.IsCollaborator(executionContext, repository, login)
	if checkError != nil {
		return fmt.Errorf(collaboratorErrorTemplateConstant, login, repository, checkError)
	}
	if collaborator {
		return nil
	}
	repositoryLogger.Info(collaboratorAddedLogMessageConstant, zap.String(logFieldLoginConstant, login))
	if addError := reconciler.client.AddCollaborator(executionContext, repository, login); addError != nil {
		return fmt.Errorf(collaboratorErrorTemplateConstant, login, repository, addError)
	}
	return nil
}

func (reconciler *Reconciler) ensureBranches(executionContext context.Context, record confstore.RepositoryRecord, observed *observedRepository, repositoryLogger *zap.Logger) error {
	for _, branch := range branchpolicy.SortBranches(record.Branches) {
		if containsBranch(observed.branches, branch) {
			continue
		}
		subject := branchpolicy.Subject{
			Branches:               observed.branches,
			DefaultBranch:          observed.defaultBranch,
			ManualBranchManagement: record.ManualBranchManagement,
		}
		if !branchpolicy.CanAddBranch(branch, subject) {
			repositoryLogger.Info(branchDeniedLogMessageConstant, zap.String(logFieldBranchConstant, branch))
			continue
		}

		repositoryLogger.Info(branchCreatingLogMessageConstant, zap.String(logFieldBranchConstant, branch))
		createError := reconciler.branchCreator.CreateBranch(executionContext, materialize.Target{
			Repository:  record.Slug,
			Name:        record.Name,
			Description: record.Description,
			Branch:      branch,
			Template:    reconciler.global.Template,
		})
		if createError != nil {
			return fmt.Errorf(createBranchErrorTemplateConstant, branch, record.Slug, createError)
		}
		observed.branches = append(observed.branches, branch)
	}
	return nil
}

func (reconciler *Reconciler) ensureDefaultBranch(executionContext context.Context, record confstore.RepositoryRecord, observed *observedRepository, repositoryLogger *zap.Logger) error {
	declaredDefault, declared := record.DeclaredDefaultBranch()
	if !declared || declaredDefault == observed.defaultBranch {
		return nil
	}
	defaultLogger := repositoryLogger.With(zap.String(logFieldBranchConstant, declaredDefault), zap.String(logFieldCurrentDefaultBranchConstant, observed.defaultBranch))
	if !containsBranch(observed.branches, declaredDefault) {
		defaultLogger.Warn(defaultBranchMissingLogMessageConstant)
		return nil
	}
	subject := branchpolicy.Subject{
		Branches:              observed.branches,
		DefaultBranch:         observed.defaultBranch,
		DefaultBranchDeclared: declared,
	}
	if !branchpolicy.CanChangeDefaultBranch(subject) {
		defaultLogger.Info(defaultBranchDeniedLogMessageConstant)
		return nil
	}

	defaultLogger.Info(defaultBranchSetLogMessageConstant)
	if setError := reconciler.client.SetDefaultBranch(executionContext, record.Slug, declaredDefault); setError != nil {
		return fmt.Errorf(defaultBranchErrorTemplateConstant, record.Slug, declaredDefault, setError)
	}
	observed.defaultBranch = declaredDefault
	return nil
}

func (reconciler *Reconciler) grantTeam(executionContext context.Context, team githubapi.Team, repository string, permission githubapi.Permission, repositoryLogger *zap.Logger) error {
	repositoryLogger.Info(teamGrantedLogMessageConstant, zap.String(logFieldTeamConstant, team.Slug), zap.String(logFieldPermissionConstant, string(permission)))
	if grantError := reconciler.client.AddTeamRepository(executionContext, team, repository, permission); grantError != nil {
		return fmt.Errorf(grantTeamErrorTemplateConstant, team.Slug, permission, repository, grantError)
	}
	return nil
}

func repositoryDescription(record confstore.RepositoryRecord) string {
	if description := strings.TrimSpace(record.Description); len(description) > 0 {
		return description
	}
	if name := strings.TrimSpace(record.Name); len(name) > 0 {
		return name
	}
	return record.Slug
}

func containsBranch(branches []string, branch string) bool {
	if len(branch) == 0 {
		return false
	}
	for _, candidate := range branches {
		if candidate == branch {
			return true
		}
	}
	return false
}
