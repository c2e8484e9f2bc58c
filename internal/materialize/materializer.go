// Package materialize creates a branch in a remote repository from a template.
//
// Every call works in its own temporary directory, which is removed before the
// call returns whatever the outcome. The access token only ever reaches git
// inside the push URL and is redacted from every log line and error.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/oca/repo-maintainer/internal/execshell"
	"github.com/oca/repo-maintainer/internal/githubapi"
	"github.com/oca/repo-maintainer/internal/gitrepo"
)

// Substitution variables handed to the template renderer.
const (
	TemplateVariableRepositoryName        = "repo_name"
	TemplateVariableRepositorySlug        = "repo_slug"
	TemplateVariableRepositoryDescription = "repo_description"
	TemplateVariableBranch                = "odoo_version"
)

const (
	initialCommitMessageConstant          = "Initial commit"
	originRemoteNameConstant              = "origin"
	headReferenceConstant                 = "HEAD"
	userNameConfigKeyConstant             = "user.name"
	userEmailConfigKeyConstant            = "user.email"
	workingDirectoryPatternConstant       = "materialize-%s-%s-*"
	gitConfigUnsetExitCodeConstant        = 1
	executorMissingMessageConstant        = "git executor not configured"
	rendererMissingMessageConstant        = "template renderer not configured"
	identityMissingMessageConstant        = "identity provider not configured"
	targetIncompleteMessageConstant       = "repository, branch, and template are required"
	workingDirectoryErrorTemplateConstant = "failed to create working directory: %w"
	renderErrorTemplateConstant           = "failed to render template %s: %w"
	remoteErrorTemplateConstant           = "failed to build remote for %s: %w"
	identityErrorTemplateConstant         = "failed to resolve committer identity: %w"
	branchErrorTemplateConstant           = "failed to create branch %s in %s: %w"
	branchCreatedLogMessageConstant       = "branch created"
	branchPreparedLogMessageConstant      = "branch prepared, push skipped"
	branchFailedLogMessageConstant        = "something failed while the branch was being created"
	cleanupFailedLogMessageConstant       = "failed to remove working directory"
	identityConfiguredLogMessageConstant  = "committer identity configured from authenticated user"
	logFieldRepositoryConstant            = "repository"
	logFieldBranchConstant                = "branch"
	logFieldWorkingDirectoryConstant      = "working_directory"
	logFieldIdentityKeyConstant           = "key"
)

var (
	// ErrExecutorNotConfigured indicates a Materializer built without a git executor.
	ErrExecutorNotConfigured = errors.New(executorMissingMessageConstant)
	// ErrRendererNotConfigured indicates a Materializer built without a template renderer.
	ErrRendererNotConfigured = errors.New(rendererMissingMessageConstant)
	// ErrIdentityProviderNotConfigured indicates a Materializer built without an identity provider.
	ErrIdentityProviderNotConfigured = errors.New(identityMissingMessageConstant)
	// ErrIncompleteTarget indicates CreateBranch received a target missing required fields.
	ErrIncompleteTarget = errors.New(targetIncompleteMessageConstant)
)

// GitExecutor runs git commands.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// TemplateRenderer materializes a template into a directory.
type TemplateRenderer interface {
	Render(executionContext context.Context, templateLocator string, destination string, data map[string]string) error
}

// IdentityProvider returns the account that owns the access token.
type IdentityProvider interface {
	AuthenticatedUser(executionContext context.Context) (githubapi.AuthenticatedUser, error)
}

// Dependencies groups collaborators required by the Materializer.
type Dependencies struct {
	Executor GitExecutor
	Renderer TemplateRenderer
	Identity IdentityProvider
	Logger   *zap.Logger
}

// Options configures where branches are pushed.
type Options struct {
	Organization string
	Host         string
	Token        string
	SkipPush     bool
}

// Target names the branch to create.
type Target struct {
	Repository  string
	Name        string
	Description string
	Branch      string
	Template    string
}

// Materializer scaffolds branches and pushes them.
type Materializer struct {
	executor GitExecutor
	renderer TemplateRenderer
	identity IdentityProvider
	options  Options
	logger   *zap.Logger

	identityMutex  sync.Mutex
	cachedIdentity *githubapi.AuthenticatedUser
}

// NewMaterializer validates dependencies and constructs a Materializer.
func NewMaterializer(dependencies Dependencies, options Options) (*Materializer, error) {
	if dependencies.Executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	if dependencies.Renderer == nil {
		return nil, ErrRendererNotConfigured
	}
	if dependencies.Identity == nil {
		return nil, ErrIdentityProviderNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Materializer{
		executor: dependencies.Executor,
		renderer: dependencies.Renderer,
		identity: dependencies.Identity,
		options:  options,
		logger:   logger,
	}, nil
}

// CreateBranch renders the template for target, commits it as the first commit
// of target.Branch, and pushes it to the organization repository.
func (materializer *Materializer) CreateBranch(executionContext context.Context, target Target) (resultError error) {
	if len(strings.TrimSpace(target.Repository)) == 0 || len(strings.TrimSpace(target.Branch)) == 0 || len(strings.TrimSpace(target.Template)) == 0 {
		return ErrIncompleteTarget
	}

	branchLogger := materializer.logger.With(zap.String(logFieldRepositoryConstant, target.Repository), zap.String(logFieldBranchConstant, target.Branch))

	workingDirectory, temporaryError := os.MkdirTemp("", fmt.Sprintf(workingDirectoryPatternConstant, sanitizePatternComponent(target.Repository), sanitizePatternComponent(target.Branch)))
	if temporaryError != nil {
		return fmt.Errorf(workingDirectoryErrorTemplateConstant, temporaryError)
	}
	defer func() {
		if removeError := os.RemoveAll(workingDirectory); removeError != nil {
			branchLogger.Warn(cleanupFailedLogMessageConstant, zap.String(logFieldWorkingDirectoryConstant, workingDirectory), zap.Error(removeError))
		}
		if resultError != nil {
			branchLogger.Error(branchFailedLogMessageConstant, zap.Error(resultError))
			resultError = fmt.Errorf(branchErrorTemplateConstant, target.Branch, target.Repository, resultError)
		}
	}()

	if renderError := materializer.renderer.Render(executionContext, target.Template, workingDirectory, templateData(target)); renderError != nil {
		return fmt.Errorf(renderErrorTemplateConstant, target.Template, renderError)
	}

	remote := gitrepo.NewOrganizationRemote(materializer.options.Host, materializer.options.Organization, target.Repository)
	fetchURL, fetchURLError := gitrepo.FormatRemoteURL(remote)
	if fetchURLError != nil {
		return fmt.Errorf(remoteErrorTemplateConstant, target.Repository, fetchURLError)
	}
	pushURL, pushURLError := gitrepo.FormatAuthenticatedRemoteURL(remote, materializer.options.Token)
	if pushURLError != nil {
		return fmt.Errorf(remoteErrorTemplateConstant, target.Repository, pushURLError)
	}

	if initError := materializer.git(executionContext, workingDirectory, "init"); initError != nil {
		return initError
	}
	if identityError := materializer.ensureIdentity(executionContext, workingDirectory, branchLogger); identityError != nil {
		return fmt.Errorf(identityErrorTemplateConstant, identityError)
	}

	steps := [][]string{
		{"add", "-A"},
		{"commit", "-m", initialCommitMessageConstant},
		{"checkout", "-b", target.Branch},
		{"remote", "add", originRemoteNameConstant, fetchURL},
		{"remote", "set-url", "--push", originRemoteNameConstant, pushURL},
	}
	if !materializer.options.SkipPush {
		steps = append(steps, []string{"push", originRemoteNameConstant, headReferenceConstant})
	}
	for _, arguments := range steps {
		if stepError := materializer.git(executionContext, workingDirectory, arguments...); stepError != nil {
			return stepError
		}
	}

	if materializer.options.SkipPush {
		branchLogger.Info(branchPreparedLogMessageConstant)
		return nil
	}
	branchLogger.Info(branchCreatedLogMessageConstant)
	return nil
}

// ensureIdentity writes user.name and user.email only when git cannot already resolve them.
func (materializer *Materializer) ensureIdentity(executionContext context.Context, workingDirectory string, branchLogger *zap.Logger) error {
	identityKeys := []string{userNameConfigKeyConstant, userEmailConfigKeyConstant}
	for _, identityKey := range identityKeys {
		configured, readError := materializer.configValueSet(executionContext, workingDirectory, identityKey)
		if readError != nil {
			return readError
		}
		if configured {
			continue
		}

		user, userError := materializer.authenticatedUser(executionContext)
		if userError != nil {
			return userError
		}
		value := user.Email
		if identityKey == userNameConfigKeyConstant {
			value = user.DisplayName()
		}
		if writeError := materializer.git(executionContext, workingDirectory, "config", identityKey, value); writeError != nil {
			return writeError
		}
		branchLogger.Info(identityConfiguredLogMessageConstant, zap.String(logFieldIdentityKeyConstant, identityKey))
	}
	return nil
}

func (materializer *Materializer) configValueSet(executionContext context.Context, workingDirectory string, key string) (bool, error) {
	result, readError := materializer.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:         []string{"config", key},
		WorkingDirectory:  workingDirectory,
		RedactedValues:    []string{materializer.options.Token},
		ExpectedExitCodes: []int{gitConfigUnsetExitCodeConstant},
	})
	if readError != nil {
		var failedError execshell.CommandFailedError
		if errors.As(readError, &failedError) && failedError.Result.ExitCode == gitConfigUnsetExitCodeConstant {
			return false, nil
		}
		return false, readError
	}
	return len(strings.TrimSpace(result.StandardOutput)) > 0, nil
}

func (materializer *Materializer) authenticatedUser(executionContext context.Context) (githubapi.AuthenticatedUser, error) {
	materializer.identityMutex.Lock()
	defer materializer.identityMutex.Unlock()
	if materializer.cachedIdentity != nil {
		return *materializer.cachedIdentity, nil
	}
	user, userError := materializer.identity.AuthenticatedUser(executionContext)
	if userError != nil {
		return githubapi.AuthenticatedUser{}, userError
	}
	materializer.cachedIdentity = &user
	return user, nil
}

func (materializer *Materializer) git(executionContext context.Context, workingDirectory string, arguments ...string) error {
	_, executionError := materializer.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: workingDirectory,
		RedactedValues:   []string{materializer.options.Token},
	})
	return executionError
}

func templateData(target Target) map[string]string {
	name := strings.TrimSpace(target.Name)
	if len(name) == 0 {
		name = target.Repository
	}
	description := strings.TrimSpace(target.Description)
	if len(description) == 0 {
		description = name
	}
	return map[string]string{
		TemplateVariableRepositoryName:        name,
		TemplateVariableRepositorySlug:        target.Repository,
		TemplateVariableRepositoryDescription: description,
		TemplateVariableBranch:                target.Branch,
	}
}

func sanitizePatternComponent(value string) string {
	return strings.NewReplacer("/", "-", string(os.PathSeparator), "-", "*", "-").Replace(value)
}
