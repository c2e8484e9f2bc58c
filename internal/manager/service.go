package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oca/repo-maintainer/internal/checksum"
	"github.com/oca/repo-maintainer/internal/confstore"
	"github.com/oca/repo-maintainer/internal/repositories"
	"github.com/oca/repo-maintainer/internal/teams"
)

const (
	clientMissingMessageConstant           = "organization client not configured"
	branchCreatorMissingMessageConstant    = "branch creator not configured"
	runStartedLogMessageConstant           = "reconciliation started"
	runCompletedLogMessageConstant         = "reconciliation completed"
	forceModeLogMessageConstant            = "force mode: every document is processed"
	globalChangedLogMessageConstant        = "global configuration changed: every document is processed"
	logFieldRunIdentifierConstant          = "run_id"
	logFieldConfigurationDirectoryConstant = "conf_dir"
	logFieldTeamCountConstant              = "teams"
	logFieldRepositoryCountConstant        = "repositories"
	storeErrorTemplateConstant             = "unable to open configuration: %w"
	trackerErrorTemplateConstant           = "unable to open fingerprint ledger: %w"
	globalLoadErrorTemplateConstant        = "unable to load global configuration: %w"
	teamsLoadErrorTemplateConstant         = "unable to load team configuration: %w"
	repositoriesLoadErrorTemplateConstant  = "unable to load repository configuration: %w"
	teamsReconcileErrorTemplateConstant    = "team reconciliation failed: %w"
	repositoriesErrorTemplateConstant      = "repository reconciliation failed: %w"
	ledgerSaveErrorTemplateConstant        = "unable to save fingerprint ledger: %w"
)

var (
	// ErrClientNotConfigured indicates a Service built without an organization client.
	ErrClientNotConfigured = errors.New(clientMissingMessageConstant)
	// ErrBranchCreatorNotConfigured indicates a Service built without a branch creator.
	ErrBranchCreatorNotConfigured = errors.New(branchCreatorMissingMessageConstant)
)

// OrganizationClient combines the remote operations of both reconcilers.
type OrganizationClient interface {
	teams.TeamClient
	repositories.RepositoryClient
}

// Dependencies groups collaborators required by the Service.
type Dependencies struct {
	Client        OrganizationClient
	BranchCreator repositories.BranchCreator
	Logger        *zap.Logger
}

// RunOptions configures a single reconciliation pass.
type RunOptions struct {
	ConfigurationDirectory string
	Force                  bool
	StrictSlugs            bool
}

// RunResult summarizes a completed pass.
type RunResult struct {
	RunIdentifier         string
	TrackingDisabled      bool
	TeamsProcessed        int
	RepositoriesProcessed int
	RecordedDocuments     int
}

// Service orchestrates configuration loading, both reconcilers, and the fingerprint ledger.
type Service struct {
	client        OrganizationClient
	branchCreator repositories.BranchCreator
	logger        *zap.Logger
}

// NewService validates dependencies and constructs a Service.
func NewService(dependencies Dependencies) (*Service, error) {
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
	return &Service{client: dependencies.Client, branchCreator: dependencies.BranchCreator, logger: logger}, nil
}

// Run executes one reconciliation pass. The ledger is saved only when every step succeeds.
func (service *Service) Run(executionContext context.Context, options RunOptions) (RunResult, error) {
	runIdentifier := uuid.NewString()
	runLogger := service.logger.With(zap.String(logFieldRunIdentifierConstant, runIdentifier))
	runLogger.Info(runStartedLogMessageConstant, zap.String(logFieldConfigurationDirectoryConstant, options.ConfigurationDirectory))

	store, storeError := confstore.NewStore(options.ConfigurationDirectory, confstore.Options{StrictSlugs: options.StrictSlugs}, runLogger)
	if storeError != nil {
		return RunResult{}, fmt.Errorf(storeErrorTemplateConstant, storeError)
	}
	tracker, trackerError := checksum.OpenTracker(store.Root(), runLogger)
	if trackerError != nil {
		return RunResult{}, fmt.Errorf(trackerErrorTemplateConstant, trackerError)
	}
	if options.Force {
		runLogger.Info(forceModeLogMessageConstant)
		tracker.Disable()
	}

	global, globalChanged, globalError := store.LoadGlobal(tracker)
	if globalError != nil {
		return RunResult{}, fmt.Errorf(globalLoadErrorTemplateConstant, globalError)
	}
	if globalChanged && !tracker.Disabled() {
		runLogger.Info(globalChangedLogMessageConstant)
		tracker.Disable()
	}

	desiredTeams, teamsError := store.LoadTeams(tracker)
	if teamsError != nil {
		return RunResult{}, fmt.Errorf(teamsLoadErrorTemplateConstant, teamsError)
	}
	desiredRepositories, repositoriesError := store.LoadRepositories(tracker)
	if repositoriesError != nil {
		return RunResult{}, fmt.Errorf(repositoriesLoadErrorTemplateConstant, repositoriesError)
	}

	teamReconciler, teamReconcilerError := teams.NewReconciler(teams.Dependencies{Client: service.client, Logger: runLogger}, global)
	if teamReconcilerError != nil {
		return RunResult{}, teamReconcilerError
	}
	if reconcileError := teamReconciler.Reconcile(executionContext, desiredTeams); reconcileError != nil {
		return RunResult{}, fmt.Errorf(teamsReconcileErrorTemplateConstant, reconcileError)
	}

	repositoryReconciler, repositoryReconcilerError := repositories.NewReconciler(repositories.Dependencies{
		Client:        service.client,
		BranchCreator: service.branchCreator,
		Logger:        runLogger,
	}, global)
	if repositoryReconcilerError != nil {
		return RunResult{}, repositoryReconcilerError
	}
	if reconcileError := repositoryReconciler.Reconcile(executionContext, desiredRepositories); reconcileError != nil {
		return RunResult{}, fmt.Errorf(repositoriesErrorTemplateConstant, reconcileError)
	}

	if saveError := tracker.Save(); saveError != nil {
		return RunResult{}, fmt.Errorf(ledgerSaveErrorTemplateConstant, saveError)
	}

	result := RunResult{
		RunIdentifier:         runIdentifier,
		TrackingDisabled:      tracker.Disabled(),
		TeamsProcessed:        len(desiredTeams),
		RepositoriesProcessed: len(desiredRepositories),
		RecordedDocuments:     len(tracker.Entries()),
	}
	runLogger.Info(runCompletedLogMessageConstant, zap.Int(logFieldTeamCountConstant, result.TeamsProcessed), zap.Int(logFieldRepositoryCountConstant, result.RepositoriesProcessed))
	return result, nil
}
