package conffile

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oca/repo-maintainer/internal/confstore"
	"github.com/oca/repo-maintainer/internal/utils"
)

const (
	commandUseConstant                           = "add-branch"
	commandShortDescriptionConstant              = "Add a branch to all repositories in the configuration"
	commandLongDescriptionConstant               = "add-branch appends a branch to the repository documents of a configuration directory and optionally makes it the default branch. Frozen and manually managed repositories are left untouched."
	commandExecutionErrorTemplateConstant        = "add-branch failed: %w"
	unexpectedArgumentsMessageConstant           = "add-branch does not accept positional arguments"
	missingConfigurationDirectoryMessageConstant = "configuration directory not provided: pass --conf-dir or set tools.add_branch.conf_dir"
	configurationDirectoryErrorTemplateConstant  = "unable to resolve configuration directory: %w"
	resultLogMessageConstant                     = "add-branch finished"
	logFieldBranchAddedCountConstant             = "branch_added"
	logFieldDefaultChangedCountConstant          = "default_changed"
	flagConfigurationDirectoryName               = "conf-dir"
	flagConfigurationDirectoryDescription        = "Folder where configuration is stored"
	flagBranchName                               = "branch"
	flagBranchDescription                        = "New branch name to add"
	flagDefaultName                              = "default"
	flagDefaultDescription                       = "Set the new branch as default branch"
	flagNoDefaultName                            = "no-default"
	flagNoDefaultDescription                     = "Keep the current default branch"
	flagRepositoryWhitelistName                  = "repo-whitelist"
	flagRepositoryWhitelistDescription           = "CSV list of repo names to update"
)

var (
	errUnexpectedArguments           = errors.New(unexpectedArgumentsMessageConstant)
	errMissingConfigurationDirectory = errors.New(missingConfigurationDirectoryMessageConstant)
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies persisted add-branch settings.
type ConfigurationProvider func() CommandConfiguration

// CommandBuilder assembles the add-branch cobra command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
}

// Build constructs the add-branch command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}

	command.Flags().String(flagConfigurationDirectoryName, "", flagConfigurationDirectoryDescription)
	command.Flags().String(flagBranchName, "", flagBranchDescription)
	command.Flags().Bool(flagDefaultName, true, flagDefaultDescription)
	command.Flags().Bool(flagNoDefaultName, false, flagNoDefaultDescription)
	command.Flags().StringSlice(flagRepositoryWhitelistName, nil, flagRepositoryWhitelistDescription)
	command.MarkFlagsMutuallyExclusive(flagDefaultName, flagNoDefaultName)
	if requiredError := command.MarkFlagRequired(flagBranchName); requiredError != nil {
		return nil, requiredError
	}

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
	branch, _ := command.Flags().GetString(flagBranchName)

	logger := builder.resolveLogger()
	store, storeError := confstore.NewStore(configuration.ConfigurationDirectory, confstore.Options{}, logger)
	if storeError != nil {
		return storeError
	}
	manager, managerError := NewManager(store, logger)
	if managerError != nil {
		return managerError
	}

	result, addError := manager.AddBranch(branch, configuration.MakeDefault, configuration.RepositoryWhitelist)
	if addError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, addError)
	}
	logger.Debug(resultLogMessageConstant, zap.Int(logFieldBranchAddedCountConstant, len(result.BranchAdded)), zap.Int(logFieldDefaultChangedCountConstant, len(result.DefaultChanged)))
	return nil
}

func (builder *CommandBuilder) parseConfiguration(command *cobra.Command) (CommandConfiguration, error) {
	configuration := DefaultCommandConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}

	if command.Flags().Changed(flagConfigurationDirectoryName) {
		configuration.ConfigurationDirectory, _ = command.Flags().GetString(flagConfigurationDirectoryName)
	}
	if command.Flags().Changed(flagDefaultName) {
		configuration.MakeDefault, _ = command.Flags().GetBool(flagDefaultName)
	}
	if command.Flags().Changed(flagNoDefaultName) {
		noDefault, _ := command.Flags().GetBool(flagNoDefaultName)
		configuration.MakeDefault = !noDefault
	}
	if command.Flags().Changed(flagRepositoryWhitelistName) {
		configuration.RepositoryWhitelist, _ = command.Flags().GetStringSlice(flagRepositoryWhitelistName)
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
