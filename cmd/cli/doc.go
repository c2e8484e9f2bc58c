// Package cli constructs the repo-maintainer command-line interface, wiring the
// Cobra command hierarchy, configuration loader, and structured logging.
package cli
