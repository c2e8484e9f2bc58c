package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
)

const (
	gitInitSubcommandNameConstant      = "init"
	gitCloneSubcommandNameConstant     = "clone"
	gitConfigSubcommandNameConstant    = "config"
	gitAddSubcommandNameConstant       = "add"
	gitCommitSubcommandNameConstant    = "commit"
	gitCheckoutSubcommandNameConstant  = "checkout"
	gitRemoteSubcommandNameConstant    = "remote"
	gitPushSubcommandNameConstant      = "push"
	gitRemoteAddSubcommandNameConstant = "add"
	gitRemoteSetURLSubcommandConstant  = "set-url"
	gitMessageFlagConstant             = "-m"
	gitNewBranchFlagConstant           = "-b"
	gitFlagPrefixConstant              = "-"
)

const (
	gitInitStartTemplateConstant                = "Initializing repository in %s"
	gitInitSuccessTemplateConstant              = "Initialized repository in %s"
	gitInitFailureTemplateConstant              = "Failed to initialize repository in %s (exit code %d%s)"
	gitInitExecutionFailureTemplateConstant     = "Unable to initialize repository in %s: %s"
	gitCloneStartTemplateConstant               = "Cloning %s"
	gitCloneSuccessTemplateConstant             = "Cloned %s"
	gitCloneFailureTemplateConstant             = "Failed to clone %s (exit code %d%s)"
	gitCloneExecutionFailureTemplateConstant    = "Unable to clone %s: %s"
	gitConfigReadStartTemplateConstant          = "Reading %s in %s"
	gitConfigReadSuccessTemplateConstant        = "Read %s in %s"
	gitConfigReadMissingTemplateConstant        = "%s is not configured in %s"
	gitConfigWriteStartTemplateConstant         = "Setting %s in %s"
	gitConfigWriteSuccessTemplateConstant       = "Set %s in %s"
	gitConfigWriteFailureTemplateConstant       = "Failed to set %s in %s (exit code %d%s)"
	gitConfigExecutionFailureTemplateConstant   = "Unable to configure %s in %s: %s"
	gitAddStartTemplateConstant                 = "Staging %s in %s"
	gitAddSuccessTemplateConstant               = "Staged %s in %s"
	gitAddFailureTemplateConstant               = "Failed to stage %s in %s (exit code %d%s)"
	gitAddExecutionFailureTemplateConstant      = "Unable to stage %s in %s: %s"
	gitCommitStartTemplateConstant              = "Creating commit in %s with message %q"
	gitCommitSuccessTemplateConstant            = "Created commit in %s with message %q"
	gitCommitFailureTemplateConstant            = "Failed to create commit in %s with message %q (exit code %d%s)"
	gitCommitExecutionFailureTemplateConstant   = "Unable to create commit in %s with message %q: %s"
	gitCheckoutStartTemplateConstant            = "Creating branch %s in %s"
	gitCheckoutSuccessTemplateConstant          = "%s now on branch %s"
	gitCheckoutFailureTemplateConstant          = "Failed to create branch %s in %s (exit code %d%s)"
	gitCheckoutExecutionFailureTemplateConstant = "Unable to create branch %s in %s: %s"
	gitRemoteStartTemplateConstant              = "Configuring %s remote in %s"
	gitRemoteSuccessTemplateConstant            = "Configured %s remote in %s"
	gitRemoteFailureTemplateConstant            = "Failed to configure %s remote in %s (exit code %d%s)"
	gitRemoteExecutionFailureTemplateConstant   = "Unable to configure %s remote in %s: %s"
	gitPushStartTemplateConstant                = "Pushing %s to %s from %s"
	gitPushSuccessTemplateConstant              = "Pushed %s to %s from %s"
	gitPushFailureTemplateConstant              = "Failed to push %s to %s from %s (exit code %d%s)"
	gitPushExecutionFailureTemplateConstant     = "Unable to push %s to %s from %s: %s"
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if command.Name != CommandGit || len(command.Details.Arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	switch strings.TrimSpace(command.Details.Arguments[0]) {
	case gitInitSubcommandNameConstant:
		workingDirectory := formatter.describeWorkingDirectory(command)
		return formatter.selectMessage(stage, result, failure,
			fmt.Sprintf(gitInitStartTemplateConstant, workingDirectory),
			fmt.Sprintf(gitInitSuccessTemplateConstant, workingDirectory),
			func(exitCode int, suffix string) string {
				return fmt.Sprintf(gitInitFailureTemplateConstant, workingDirectory, exitCode, suffix)
			},
			func(reason string) string {
				return fmt.Sprintf(gitInitExecutionFailureTemplateConstant, workingDirectory, reason)
			})
	case gitCloneSubcommandNameConstant:
		source := formatter.ensureValue(formatter.extractFirstNonFlagArgument(command.Details.Arguments[1:]))
		source = command.Details.redact(source)
		return formatter.selectMessage(stage, result, failure,
			fmt.Sprintf(gitCloneStartTemplateConstant, source),
			fmt.Sprintf(gitCloneSuccessTemplateConstant, source),
			func(exitCode int, suffix string) string {
				return fmt.Sprintf(gitCloneFailureTemplateConstant, source, exitCode, suffix)
			},
			func(reason string) string {
				return fmt.Sprintf(gitCloneExecutionFailureTemplateConstant, source, reason)
			})
	case gitConfigSubcommandNameConstant:
		return formatter.describeGitConfigMessage(command, result, failure, stage)
	case gitAddSubcommandNameConstant:
		workingDirectory := formatter.describeWorkingDirectory(command)
		target := formatter.ensureValue(formatter.extractFirstNonFlagArgument(command.Details.Arguments[1:]))
		if target == fallbackUnknownValueLabelConstant {
			target = "all changes"
		}
		return formatter.selectMessage(stage, result, failure,
			fmt.Sprintf(gitAddStartTemplateConstant, target, workingDirectory),
			fmt.Sprintf(gitAddSuccessTemplateConstant, target, workingDirectory),
			func(exitCode int, suffix string) string {
				return fmt.Sprintf(gitAddFailureTemplateConstant, target, workingDirectory, exitCode, suffix)
			},
			func(reason string) string {
				return fmt.Sprintf(gitAddExecutionFailureTemplateConstant, target, workingDirectory, reason)
			})
	case gitCommitSubcommandNameConstant:
		workingDirectory := formatter.describeWorkingDirectory(command)
		commitMessage := findFlagValue(command.Details.Arguments, gitMessageFlagConstant)
		return formatter.selectMessage(stage, result, failure,
			fmt.Sprintf(gitCommitStartTemplateConstant, workingDirectory, commitMessage),
			fmt.Sprintf(gitCommitSuccessTemplateConstant, workingDirectory, commitMessage),
			func(exitCode int, suffix string) string {
				return fmt.Sprintf(gitCommitFailureTemplateConstant, workingDirectory, commitMessage, exitCode, suffix)
			},
			func(reason string) string {
				return fmt.Sprintf(gitCommitExecutionFailureTemplateConstant, workingDirectory, commitMessage, reason)
			})
	case gitCheckoutSubcommandNameConstant:
		workingDirectory := formatter.describeWorkingDirectory(command)
		branchName := formatter.ensureValue(findFlagValue(command.Details.Arguments, gitNewBranchFlagConstant))
		return formatter.selectMessage(stage, result, failure,
			fmt.Sprintf(gitCheckoutStartTemplateConstant, branchName, workingDirectory),
			fmt.Sprintf(gitCheckoutSuccessTemplateConstant, workingDirectory, branchName),
			func(exitCode int, suffix string) string {
				return fmt.Sprintf(gitCheckoutFailureTemplateConstant, branchName, workingDirectory, exitCode, suffix)
			},
			func(reason string) string {
				return fmt.Sprintf(gitCheckoutExecutionFailureTemplateConstant, branchName, workingDirectory, reason)
			})
	case gitRemoteSubcommandNameConstant:
		workingDirectory := formatter.describeWorkingDirectory(command)
		remoteName := formatter.ensureValue(formatter.extractFirstNonFlagArgument(command.Details.Arguments[2:]))
		return formatter.selectMessage(stage, result, failure,
			fmt.Sprintf(gitRemoteStartTemplateConstant, remoteName, workingDirectory),
			fmt.Sprintf(gitRemoteSuccessTemplateConstant, remoteName, workingDirectory),
			func(exitCode int, suffix string) string {
				return fmt.Sprintf(gitRemoteFailureTemplateConstant, remoteName, workingDirectory, exitCode, suffix)
			},
			func(reason string) string {
				return fmt.Sprintf(gitRemoteExecutionFailureTemplateConstant, remoteName, workingDirectory, command.Details.redact(reason))
			})
	case gitPushSubcommandNameConstant:
		workingDirectory := formatter.describeWorkingDirectory(command)
		remoteName := formatter.ensureValue(formatter.argumentAtIndex(command.Details.Arguments, 1))
		reference := formatter.ensureValue(formatter.argumentAtIndex(command.Details.Arguments, 2))
		return formatter.selectMessage(stage, result, failure,
			fmt.Sprintf(gitPushStartTemplateConstant, reference, remoteName, workingDirectory),
			fmt.Sprintf(gitPushSuccessTemplateConstant, reference, remoteName, workingDirectory),
			func(exitCode int, suffix string) string {
				return fmt.Sprintf(gitPushFailureTemplateConstant, reference, remoteName, workingDirectory, exitCode, command.Details.redact(suffix))
			},
			func(reason string) string {
				return fmt.Sprintf(gitPushExecutionFailureTemplateConstant, reference, remoteName, workingDirectory, command.Details.redact(reason))
			})
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

// git config exits with code 1 when a key is unset, which is an expected outcome while reading.
func (formatter CommandMessageFormatter) describeGitConfigMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	arguments := command.Details.Arguments
	key := formatter.ensureValue(formatter.argumentAtIndex(arguments, 1))
	reading := len(arguments) <= 2

	switch stage {
	case messageStageStart:
		if reading {
			return fmt.Sprintf(gitConfigReadStartTemplateConstant, key, workingDirectory)
		}
		return fmt.Sprintf(gitConfigWriteStartTemplateConstant, key, workingDirectory)
	case messageStageSuccess:
		if reading {
			return fmt.Sprintf(gitConfigReadSuccessTemplateConstant, key, workingDirectory)
		}
		return fmt.Sprintf(gitConfigWriteSuccessTemplateConstant, key, workingDirectory)
	case messageStageFailure:
		if reading {
			return fmt.Sprintf(gitConfigReadMissingTemplateConstant, key, workingDirectory)
		}
		return fmt.Sprintf(gitConfigWriteFailureTemplateConstant, key, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitConfigExecutionFailureTemplateConstant, key, workingDirectory, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) selectMessage(stage messageStage, result ExecutionResult, failure error, started string, succeeded string, failed func(int, string) string, executionFailed func(string) string) string {
	switch stage {
	case messageStageStart:
		return started
	case messageStageSuccess:
		return succeeded
	case messageStageFailure:
		return failed(result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return executionFailed(formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, command.Details.redact(formatter.formatStandardErrorSuffix(result.StandardError)))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, command.Details.redact(formatter.describeFailure(failure)))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	return fmt.Sprintf(commandLabelTemplateConstant, describeCommand(command), formatter.formatWorkingDirectorySuffix(command))
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) argumentAtIndex(arguments []string, index int) string {
	if index < 0 || index >= len(arguments) {
		return emptyStringConstant
	}
	return strings.TrimSpace(arguments[index])
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmed
}

func (formatter CommandMessageFormatter) extractFirstNonFlagArgument(arguments []string) string {
	for _, argument := range arguments {
		trimmed := strings.TrimSpace(argument)
		if len(trimmed) == 0 || strings.HasPrefix(trimmed, gitFlagPrefixConstant) {
			continue
		}
		return trimmed
	}
	return emptyStringConstant
}

func findFlagValue(arguments []string, flag string) string {
	for index := 0; index < len(arguments)-1; index++ {
		if strings.TrimSpace(arguments[index]) == flag {
			return strings.TrimSpace(arguments[index+1])
		}
	}
	return emptyStringConstant
}
