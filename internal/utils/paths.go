package utils

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	tildeSymbolConstant             = "~"
	tildeForwardSlashPrefixConstant = "~/"
)

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// ResolveDirectoryPath expands a leading tilde and returns a cleaned absolute path.
// An empty input stays empty so callers can report the missing value themselves.
func ResolveDirectoryPath(candidatePath string, homeDirectoryProvider HomeDirectoryProvider) (string, error) {
	trimmedPath := strings.TrimSpace(candidatePath)
	if len(trimmedPath) == 0 {
		return "", nil
	}

	if homeDirectoryProvider == nil {
		homeDirectoryProvider = os.UserHomeDir
	}

	if trimmedPath == tildeSymbolConstant || strings.HasPrefix(trimmedPath, tildeForwardSlashPrefixConstant) {
		homeDirectory, homeError := homeDirectoryProvider()
		if homeError != nil {
			return "", homeError
		}
		trimmedPath = filepath.Join(homeDirectory, strings.TrimPrefix(strings.TrimPrefix(trimmedPath, tildeSymbolConstant), "/"))
	}

	absolutePath, absoluteError := filepath.Abs(trimmedPath)
	if absoluteError != nil {
		return "", absoluteError
	}
	return filepath.Clean(absolutePath), nil
}
