package manager

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oca/repo-maintainer/internal/execshell"
	"github.com/oca/repo-maintainer/internal/githubapi"
	"github.com/oca/repo-maintainer/internal/githubauth"
	"github.com/oca/repo-maintainer/internal/materialize"
	"github.com/oca/repo-maintainer/internal/scaffold"
	"github.com/oca/repo-maintainer/internal/ui"
	"github.com/oca/repo-maintainer/internal/utils"
)

const (
	commandUseConstant                           = "manage"
	commandShortDescriptionConstant              = "Set up and update teams and repositories"
	commandLongDescriptionConstant               = "manage reconciles the teams and repositories of a GitHub organization with the YAML documents stored in a configuration directory."
	commandExecutionErrorTemplateConstant        = "manage failed: %w"
	unexpectedArgumentsMessageConstant           = "manage does not accept positional arguments"
	missingConfigurationDirectoryMessageConstant = "configuration directory not provided: pass --conf-dir or set tools.manage.conf_dir"
	configurationDirectoryErrorTemplateConstant  = "unable to resolve configuration directory: %w"
	flagConfigurationDirectoryName               = "conf-dir"
	flagConfigurationDirectoryDescription        = "Folder where configuration is stored"
	flagOrganizationName                         = "org"
	flagOrganizationDescription                  = "The organization to reconcile"
	flagTokenName                                = "token"
	flagTokenDescription                         = "GitHub token (defaults to the configured token source, GH_TOKEN, GITHUB_TOKEN, or GITHUB_API_TOKEN)"
	flagGitHubHostName                           = "github-host"
	flagGitHubHostDescription                    = "GitHub Enterprise Server host name"
	flagForceName                                = "force"
	flagForceDescription                         = "Process every document even when its fingerprint did not change"
	flagSkipPushName                             = "skip-push"
	flagSkipPushDescription                      = "Prepare new branches without pushing them"
	flagStrictSlugsName                          = "strict-slugs"
	flagStrictSlugsDescription                   = "Fail when a slug is declared by more than one document"
	runResultLogMessageConstant                  = "manage finished"
	logFieldRunIdentifierResultConstant          = "run_id"
	logFieldTrackingDisabledConstant             = "tracking_disabled"
	logFieldRecordedDocumentsConstant            = "recorded_documents"
)

var (
	errUnexpectedArguments           = errors.New(unexpectedArgumentsMessageConstant)
	errMissingConfigurationDirectory = errors.New(missingConfigurationDirectoryMessageConstant)
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies persisted manage settings.
type ConfigurationProvider func() CommandConfiguration

// RemoteClient is the organization client plus the identity lookup used for commits.
// Organization and Host report where new branches are pushed.
type RemoteClient interface {
	OrganizationClient
	materialize.IdentityProvider
	Organization() string
	Host() string
}

// ClientFactory builds a RemoteClient for the resolved connection options.
type ClientFactory func(options githubapi.Options) (RemoteClient, error)

// CommandBuilder assembles the manage cobra command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	ConfigurationProvider        ConfigurationProvider
	HumanReadableLoggingProvider func() bool
	ClientFactory                ClientFactory
	GitExecutor                  materialize.GitExecutor
	Environment                  map[string]string
}

// Build constructs the manage command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}

	command.Flags().String(flagConfigurationDirectoryName, "", flagConfigurationDirectoryDescription)
	command.Flags().String(flagOrganizationName, "", flagOrganizationDescription)
	command.Flags().String(flagTokenName, "", flagTokenDescription)
	command.Flags().String(flagGitHubHostName, "", flagGitHubHostDescription)
	command.Flags().Bool(flagForceName, false, flagForceDescription)
	command.Flags().Bool(flagSkipPushName, false, flagSkipPushDescription)
	command.Flags().Bool(flagStrictSlugsName, false, flagStrictSlugsDescription)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errUnexpectedArguments
	}

	configuration, configurationError := builder.parseConfiguration(command)
	if configurationError != nil {
		return configurationError
	}

	token, tokenError := githubauth.ResolveToken(githubauth.TokenRequest{
		ExplicitToken:      builder.flagString(command, flagTokenName),
		SourceVariableName: configuration.TokenSource,
		Environment:        builder.Environment,
	})
	if tokenError != nil {
		return tokenError
	}

	logger := builder.resolveLogger()
	client, clientError := builder.resolveClientFactory()(githubapi.Options{
		Token:        token,
		Organization: configuration.Organization,
		Host:         configuration.GitHubHost,
		Logger:       logger,
	})
	if clientError != nil {
		return clientError
	}

	executor, executorError := builder.resolveGitExecutor(logger)
	if executorError != nil {
		return executorError
	}

	materializer, materializerError := materialize.NewMaterializer(materialize.Dependencies{
		Executor: executor,
		Renderer: scaffold.NewRenderer(executor, logger),
		Identity: client,
		Logger:   logger,
	}, materialize.Options{
		Organization: client.Organization(),
		Host:         client.Host(),
		Token:        token,
		SkipPush:     configuration.SkipPush,
	})
	if materializerError != nil {
		return materializerError
	}

	service, serviceError := NewService(Dependencies{Client: client, BranchCreator: materializer, Logger: logger})
	if serviceError != nil {
		return serviceError
	}

	result, runError := service.Run(command.Context(), RunOptions{
		ConfigurationDirectory: configuration.ConfigurationDirectory,
		Force:                  configuration.Force,
		StrictSlugs:            configuration.StrictSlugs,
	})
	if runError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, runError)
	}

	logger.Debug(runResultLogMessageConstant, zap.String(logFieldRunIdentifierResultConstant, result.RunIdentifier), zap.Bool(logFieldTrackingDisabledConstant, result.TrackingDisabled), zap.Int(logFieldRecordedDocumentsConstant, result.RecordedDocuments))
	return nil
}

func (builder *CommandBuilder) parseConfiguration(command *cobra.Command) (CommandConfiguration, error) {
	configuration := DefaultCommandConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}

	if command.Flags().Changed(flagConfigurationDirectoryName) {
		configuration.ConfigurationDirectory = builder.flagString(command, flagConfigurationDirectoryName)
	}
	if command.Flags().Changed(flagOrganizationName) {
		configuration.Organization = builder.flagString(command, flagOrganizationName)
	}
	if command.Flags().Changed(flagGitHubHostName) {
		configuration.GitHubHost = builder.flagString(command, flagGitHubHostName)
	}
	if command.Flags().Changed(flagForceName) {
		configuration.Force, _ = command.Flags().GetBool(flagForceName)
	}
	if command.Flags().Changed(flagSkipPushName) {
		configuration.SkipPush, _ = command.Flags().GetBool(flagSkipPushName)
	}
	if command.Flags().Changed(flagStrictSlugsName) {
		configuration.StrictSlugs, _ = command.Flags().GetBool(flagStrictSlugsName)
	}

	configuration = configuration.sanitize()
	if len(configuration.ConfigurationDirectory) == 0 {
		return CommandConfiguration{}, errMissingConfigurationDirectory
	}
	resolvedDirectory, resolveError := utils.ResolveDirectoryPath(configuration.ConfigurationDirectory, os.UserHomeDir)
	if resolveError != nil {
		return CommandConfiguration{}, fmt.Errorf(configurationDirectoryErrorTemplateConstant, resolveError)
	}
	configuration.ConfigurationDirectory = resolvedDirectory
	return configuration, nil
}

func (builder *CommandBuilder) flagString(command *cobra.Command, flagName string) string {
	value, _ := command.Flags().GetString(flagName)
	return value
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveClientFactory() ClientFactory {
	if builder.ClientFactory != nil {
		return builder.ClientFactory
	}
	return func(options githubapi.Options) (RemoteClient, error) {
		client, clientError := githubapi.NewClient(options)
		if clientError != nil {
			return nil, clientError
		}
		return client, nil
	}
}

func (builder *CommandBuilder) resolveGitExecutor(logger *zap.Logger) (materialize.GitExecutor, error) {
	if builder.GitExecutor != nil {
		return builder.GitExecutor, nil
	}
	executor, executorError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner())
	if executorError != nil {
		return nil, executorError
	}
	if builder.HumanReadableLoggingProvider != nil && builder.HumanReadableLoggingProvider() {
		executor.WithEventObserver(ui.NewConsoleCommandEventLogger(logger))
	}
	return executor, nil
}
