// Package execshell runs external version-control commands for the branch
// materializer.
//
// ShellExecutor wraps a CommandRunner with lifecycle events and typed
// failures, OSCommandRunner executes processes through os/exec, and
// CommandMessageFormatter renders git invocations as readable sentences.
// Secrets listed in CommandDetails.RedactedValues never reach logs or errors.
package execshell
