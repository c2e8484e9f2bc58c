package execshell

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	loggerNotConfiguredMessageConstant        = "logger not configured"
	commandRunnerNotConfiguredMessageConstant = "command runner not configured"
	commandFailedTemplateConstant             = "%s failed with exit code %d"
	commandFailedWithOutputTemplateConstant   = "%s failed with exit code %d: %s"
	commandExecutionFailedTemplateConstant    = "%s execution failed: %s"
	redactedValuePlaceholderConstant          = "***"
	commandStartedLogMessageConstant          = "command started"
	commandCompletedLogMessageConstant        = "command completed"
	commandFailedLogMessageConstant           = "command failed"
	commandExecutionFailedLogMessageConstant  = "command execution failed"
	logFieldCommandNameConstant               = "command"
	logFieldArgumentsConstant                 = "arguments"
	logFieldWorkingDirectoryConstant          = "working_directory"
	logFieldExitCodeConstant                  = "exit_code"
	logFieldOutputConstant                    = "output"
)

// CommandName identifies an executable supported by ShellExecutor.
type CommandName string

// Supported executables.
const (
	CommandGit CommandName = CommandName("git")
)

// CommandDetails describes a single invocation of an executable.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
	// RedactedValues are replaced by a placeholder whenever the command is logged or reported.
	RedactedValues []string
	// ExpectedExitCodes are non-zero exit codes the caller treats as an answer rather than a failure.
	// Execute still returns CommandFailedError for them; observers report them without alarm.
	ExpectedExitCodes []int
}

// ExitCodeExpected reports whether exitCode is zero or listed in ExpectedExitCodes.
func (details CommandDetails) ExitCodeExpected(exitCode int) bool {
	if exitCode == 0 {
		return true
	}
	for _, expectedExitCode := range details.ExpectedExitCodes {
		if expectedExitCode == exitCode {
			return true
		}
	}
	return false
}

// ShellCommand pairs an executable with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures the observable outcome of a finished process.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CombinedOutput joins standard output and standard error for diagnostics.
func (result ExecutionResult) CombinedOutput() string {
	return strings.TrimSpace(strings.Join([]string{strings.TrimSpace(result.StandardOutput), strings.TrimSpace(result.StandardError)}, "\n"))
}

// CommandRunner executes shell commands.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

var (
	// ErrLoggerNotConfigured indicates the executor was built without a logger.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrCommandRunnerNotConfigured indicates the executor was built without a runner.
	ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)
)

// CommandFailedError reports a process that exited with a non-zero code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the failed command with its captured output.
func (failure CommandFailedError) Error() string {
	label := describeCommand(failure.Command)
	output := failure.Command.Details.redact(failure.Result.CombinedOutput())
	if len(output) == 0 {
		return fmt.Sprintf(commandFailedTemplateConstant, label, failure.Result.ExitCode)
	}
	return fmt.Sprintf(commandFailedWithOutputTemplateConstant, label, failure.Result.ExitCode, output)
}

// CommandExecutionError reports a process that could not be started or awaited.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the execution failure.
func (failure CommandExecutionError) Error() string {
	causeMessage := unknownFailureMessageConstant
	if failure.Cause != nil {
		causeMessage = failure.Command.Details.redact(failure.Cause.Error())
	}
	return fmt.Sprintf(commandExecutionFailedTemplateConstant, describeCommand(failure.Command), causeMessage)
}

// Unwrap exposes the underlying cause.
func (failure CommandExecutionError) Unwrap() error {
	return failure.Cause
}

// ShellExecutor runs commands through a CommandRunner and reports lifecycle events.
type ShellExecutor struct {
	runner   CommandRunner
	observer CommandEventObserver
}

// NewShellExecutor constructs a ShellExecutor that logs command lifecycle events as structured entries.
func NewShellExecutor(logger *zap.Logger, runner CommandRunner) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if runner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}
	return &ShellExecutor{
		runner:   runner,
		observer: newStructuredCommandEventLogger(logger),
	}, nil
}

// WithEventObserver replaces the lifecycle observer, for example with a human-readable console renderer.
func (executor *ShellExecutor) WithEventObserver(observer CommandEventObserver) *ShellExecutor {
	if observer == nil {
		observer = noopCommandEventObserver{}
	}
	executor.observer = observer
	return executor
}

// ExecuteGit runs git with the supplied details.
func (executor *ShellExecutor) ExecuteGit(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandGit, Details: details})
}

// Execute runs an arbitrary command and converts non-zero exit codes into CommandFailedError.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	executor.observer.CommandStarted(command)

	result, runError := executor.runner.Run(executionContext, command)
	if runError != nil {
		executor.observer.CommandExecutionFailed(command, runError)
		return ExecutionResult{}, CommandExecutionError{Command: command, Cause: runError}
	}

	executor.observer.CommandCompleted(command, result)
	if result.ExitCode != 0 {
		return ExecutionResult{}, CommandFailedError{Command: command, Result: result}
	}

	return result, nil
}

func (details CommandDetails) redactedArguments() []string {
	redacted := make([]string, 0, len(details.Arguments))
	for _, argument := range details.Arguments {
		redacted = append(redacted, details.redact(argument))
	}
	return redacted
}

func (details CommandDetails) redact(value string) string {
	for _, secret := range details.RedactedValues {
		if len(secret) == 0 {
			continue
		}
		value = strings.ReplaceAll(value, secret, redactedValuePlaceholderConstant)
	}
	return value
}

func describeCommand(command ShellCommand) string {
	parts := append([]string{string(command.Name)}, command.Details.redactedArguments()...)
	return strings.Join(parts, commandArgumentsJoinSeparatorConstant)
}

type structuredCommandEventLogger struct {
	logger *zap.Logger
}

func newStructuredCommandEventLogger(logger *zap.Logger) structuredCommandEventLogger {
	return structuredCommandEventLogger{logger: logger}
}

func (eventLogger structuredCommandEventLogger) CommandStarted(command ShellCommand) {
	eventLogger.logger.Debug(commandStartedLogMessageConstant, eventLogger.commandFields(command)...)
}

func (eventLogger structuredCommandEventLogger) CommandCompleted(command ShellCommand, result ExecutionResult) {
	fields := append(eventLogger.commandFields(command), zap.Int(logFieldExitCodeConstant, result.ExitCode))
	if command.Details.ExitCodeExpected(result.ExitCode) {
		eventLogger.logger.Debug(commandCompletedLogMessageConstant, fields...)
		return
	}
	fields = append(fields, zap.String(logFieldOutputConstant, command.Details.redact(result.CombinedOutput())))
	eventLogger.logger.Error(commandFailedLogMessageConstant, fields...)
}

func (eventLogger structuredCommandEventLogger) CommandExecutionFailed(command ShellCommand, failure error) {
	failureMessage := unknownFailureMessageConstant
	if failure != nil {
		failureMessage = command.Details.redact(failure.Error())
	}
	fields := append(eventLogger.commandFields(command), zap.String(logFieldOutputConstant, failureMessage))
	eventLogger.logger.Error(commandExecutionFailedLogMessageConstant, fields...)
}

func (eventLogger structuredCommandEventLogger) commandFields(command ShellCommand) []zap.Field {
	return []zap.Field{
		zap.String(logFieldCommandNameConstant, string(command.Name)),
		zap.Strings(logFieldArgumentsConstant, command.Details.redactedArguments()),
		zap.String(logFieldWorkingDirectoryConstant, command.Details.WorkingDirectory),
	}
}
