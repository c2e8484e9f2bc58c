package scaffold

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"github.com/otiai10/copy"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/oca/repo-maintainer/internal/execshell"
	"github.com/oca/repo-maintainer/internal/gitrepo"
)

const (
	gitLocatorPrefixConstant                = "git+"
	githubShorthandPrefixConstant           = "gh:"
	githubShorthandBaseConstant             = "https://github.com/"
	httpsLocatorPrefixConstant              = "https://"
	sshLocatorPrefixConstant                = "ssh://"
	scpLocatorPrefixConstant                = "git@"
	gitDirectoryNameConstant                = ".git"
	templateMarkerConstant                  = "{{"
	cloneDirectoryPatternConstant           = "template-*"
	cloneDepthArgumentConstant              = "--depth=1"
	directoryPermissionsConstant            = 0o755
	missingKeyOptionConstant                = "missingkey=error"
	templateLocatorRequiredConstant         = "template locator required"
	executorRequiredMessageConstant         = "git executor required to clone remote templates"
	templateStatErrorTemplateConstant       = "template %s is not accessible: %w"
	templateNotDirectoryTemplateConstant    = "template %s is not a directory"
	cloneErrorTemplateConstant              = "failed to clone template %s: %w"
	locatorErrorTemplateConstant            = "invalid template locator %s: %w"
	copyErrorTemplateConstant               = "failed to copy template into %s: %w"
	renderErrorTemplateConstant             = "failed to render %s: %w"
	placeholderSyntaxErrorTemplateConstant  = "failed to render %s: placeholder {{ %s }} must be written as {{ .%s }}"
	temporaryDirectoryErrorTemplateConstant = "failed to create template clone directory: %w"
	configurationErrorTemplateConstant      = "failed to read template configuration %s: %w"
	templateRenderedLogMessageConstant      = "template rendered"
	logFieldTemplateConstant                = "template"
	logFieldDestinationConstant             = "destination"
	logFieldRenderedFilesConstant           = "rendered_files"
)

var (
	// ErrTemplateLocatorRequired indicates Render was called without a template.
	ErrTemplateLocatorRequired = errors.New(templateLocatorRequiredConstant)
	// ErrGitExecutorRequired indicates a remote template was requested from a renderer without git.
	ErrGitExecutorRequired = errors.New(executorRequiredMessageConstant)
)

var undefinedFunctionPattern = regexp.MustCompile(`function "([^"]+)" not defined`)

// PlaceholderSyntaxError reports a bare placeholder such as {{ repo_name }} in a template file.
type PlaceholderSyntaxError struct {
	Path        string
	Placeholder string
	Cause       error
}

// Error names the placeholder and its accepted spelling.
func (syntaxError PlaceholderSyntaxError) Error() string {
	return fmt.Sprintf(placeholderSyntaxErrorTemplateConstant, syntaxError.Path, syntaxError.Placeholder, syntaxError.Placeholder)
}

// Unwrap exposes the template parser error.
func (syntaxError PlaceholderSyntaxError) Unwrap() error {
	return syntaxError.Cause
}

var renderedSuffixes = []string{".jinja", ".tmpl"}

var templateConfigurationFiles = []string{"copier.yml", "copier.yaml"}

// GitExecutor runs git commands.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Renderer copies and renders templates.
type Renderer struct {
	executor GitExecutor
	logger   *zap.Logger
}

// NewRenderer constructs a Renderer. executor may be nil when only local templates are used.
func NewRenderer(executor GitExecutor, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{executor: executor, logger: logger}
}

type templateConfiguration struct {
	Subdirectory string `yaml:"_subdirectory"`
}

// Render materializes templateLocator into destination, substituting data.
func (renderer *Renderer) Render(executionContext context.Context, templateLocator string, destination string, data map[string]string) error {
	trimmedLocator := strings.TrimSpace(templateLocator)
	if len(trimmedLocator) == 0 {
		return ErrTemplateLocatorRequired
	}

	sourceDirectory := trimmedLocator
	cloneURL, remote, locatorError := RemoteTemplateURL(trimmedLocator)
	if locatorError != nil {
		return fmt.Errorf(locatorErrorTemplateConstant, trimmedLocator, locatorError)
	}
	if remote {
		clonedDirectory, cleanup, cloneError := renderer.cloneTemplate(executionContext, cloneURL)
		if cloneError != nil {
			return cloneError
		}
		defer cleanup()
		sourceDirectory = clonedDirectory
	}

	templateRoot, rootError := resolveTemplateRoot(sourceDirectory)
	if rootError != nil {
		return rootError
	}

	copyOptions := copy.Options{
		OnSymlink: func(string) copy.SymlinkAction {
			return copy.Skip
		},
	}
	if copyError := copy.Copy(templateRoot, destination, copyOptions); copyError != nil {
		return fmt.Errorf(copyErrorTemplateConstant, destination, copyError)
	}
	if removeError := removeTemplateMetadata(destination); removeError != nil {
		return fmt.Errorf(copyErrorTemplateConstant, destination, removeError)
	}

	renderedFiles, renderError := renderTree(destination, data)
	if renderError != nil {
		return renderError
	}

	renderer.logger.Debug(templateRenderedLogMessageConstant,
		zap.String(logFieldTemplateConstant, trimmedLocator),
		zap.String(logFieldDestinationConstant, destination),
		zap.Int(logFieldRenderedFilesConstant, renderedFiles))
	return nil
}

// RemoteTemplateURL reports whether locator names a git repository and returns the URL to clone.
// GitHub shorthand and ssh locators must name exactly owner/repository and are normalized.
func RemoteTemplateURL(locator string) (string, bool, error) {
	trimmedLocator := strings.TrimSpace(locator)
	switch {
	case strings.HasPrefix(trimmedLocator, gitLocatorPrefixConstant):
		return strings.TrimPrefix(trimmedLocator, gitLocatorPrefixConstant), true, nil
	case strings.HasPrefix(trimmedLocator, githubShorthandPrefixConstant):
		repositoryPath := strings.TrimPrefix(trimmedLocator, githubShorthandPrefixConstant)
		return normalizeRemoteLocator(githubShorthandBaseConstant + repositoryPath)
	case strings.HasPrefix(trimmedLocator, sshLocatorPrefixConstant),
		strings.HasPrefix(trimmedLocator, scpLocatorPrefixConstant):
		return normalizeRemoteLocator(trimmedLocator)
	case strings.HasPrefix(trimmedLocator, httpsLocatorPrefixConstant):
		return trimmedLocator, true, nil
	default:
		return "", false, nil
	}
}

func normalizeRemoteLocator(locator string) (string, bool, error) {
	remote, parseError := gitrepo.ParseRemoteURL(locator)
	if parseError != nil {
		return "", true, parseError
	}
	cloneURL, formatError := gitrepo.FormatRemoteURL(remote)
	if formatError != nil {
		return "", true, formatError
	}
	return cloneURL, true, nil
}

func (renderer *Renderer) cloneTemplate(executionContext context.Context, cloneURL string) (string, func(), error) {
	if renderer.executor == nil {
		return "", nil, ErrGitExecutorRequired
	}

	cloneDirectory, temporaryError := os.MkdirTemp("", cloneDirectoryPatternConstant)
	if temporaryError != nil {
		return "", nil, fmt.Errorf(temporaryDirectoryErrorTemplateConstant, temporaryError)
	}
	cleanup := func() {
		_ = os.RemoveAll(cloneDirectory)
	}

	_, cloneError := renderer.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments: []string{"clone", cloneDepthArgumentConstant, cloneURL, cloneDirectory},
	})
	if cloneError != nil {
		cleanup()
		return "", nil, fmt.Errorf(cloneErrorTemplateConstant, cloneURL, cloneError)
	}
	return cloneDirectory, cleanup, nil
}

func resolveTemplateRoot(sourceDirectory string) (string, error) {
	info, statError := os.Stat(sourceDirectory)
	if statError != nil {
		return "", fmt.Errorf(templateStatErrorTemplateConstant, sourceDirectory, statError)
	}
	if !info.IsDir() {
		return "", fmt.Errorf(templateNotDirectoryTemplateConstant, sourceDirectory)
	}

	for _, configurationName := range templateConfigurationFiles {
		configurationPath := filepath.Join(sourceDirectory, configurationName)
		content, readError := os.ReadFile(configurationPath)
		if errors.Is(readError, fs.ErrNotExist) {
			continue
		}
		if readError != nil {
			return "", fmt.Errorf(configurationErrorTemplateConstant, configurationPath, readError)
		}
		configuration := templateConfiguration{}
		if unmarshalError := yaml.Unmarshal(content, &configuration); unmarshalError != nil {
			return "", fmt.Errorf(configurationErrorTemplateConstant, configurationPath, unmarshalError)
		}
		if subdirectory := strings.TrimSpace(configuration.Subdirectory); len(subdirectory) > 0 {
			return resolveTemplateRoot(filepath.Join(sourceDirectory, filepath.FromSlash(subdirectory)))
		}
	}
	return sourceDirectory, nil
}

func removeTemplateMetadata(destination string) error {
	metadataNames := append([]string{gitDirectoryNameConstant}, templateConfigurationFiles...)
	for _, metadataName := range metadataNames {
		if removeError := os.RemoveAll(filepath.Join(destination, metadataName)); removeError != nil {
			return removeError
		}
	}
	return nil
}

// renderTree renders templated file contents and names below root and returns the number of rendered entries.
func renderTree(root string, data map[string]string) (int, error) {
	paths := make([]string, 0)
	walkError := filepath.WalkDir(root, func(path string, entry fs.DirEntry, entryError error) error {
		if entryError != nil {
			return entryError
		}
		if path != root {
			paths = append(paths, path)
		}
		return nil
	})
	if walkError != nil {
		return 0, fmt.Errorf(renderErrorTemplateConstant, root, walkError)
	}

	// Deepest paths first so renaming a directory never invalidates a pending path.
	sort.Slice(paths, func(leftIndex int, rightIndex int) bool {
		return len(paths[leftIndex]) > len(paths[rightIndex])
	})

	renderedCount := 0
	for _, path := range paths {
		info, statError := os.Stat(path)
		if statError != nil {
			return renderedCount, fmt.Errorf(renderErrorTemplateConstant, path, statError)
		}

		targetPath := path
		if !info.IsDir() {
			if trimmedPath, templated := trimRenderedSuffix(path); templated {
				if renderError := renderFile(path, trimmedPath, info.Mode().Perm(), data); renderError != nil {
					return renderedCount, renderError
				}
				targetPath = trimmedPath
				renderedCount++
			}
		}

		baseName := filepath.Base(targetPath)
		if !strings.Contains(baseName, templateMarkerConstant) {
			continue
		}
		renderedName, nameError := renderString(baseName, baseName, data)
		if nameError != nil {
			return renderedCount, nameError
		}
		if len(strings.TrimSpace(renderedName)) == 0 {
			if removeError := os.RemoveAll(targetPath); removeError != nil {
				return renderedCount, fmt.Errorf(renderErrorTemplateConstant, targetPath, removeError)
			}
			continue
		}
		if renameError := os.Rename(targetPath, filepath.Join(filepath.Dir(targetPath), renderedName)); renameError != nil {
			return renderedCount, fmt.Errorf(renderErrorTemplateConstant, targetPath, renameError)
		}
		renderedCount++
	}
	return renderedCount, nil
}

func trimRenderedSuffix(path string) (string, bool) {
	for _, suffix := range renderedSuffixes {
		if strings.HasSuffix(path, suffix) {
			return strings.TrimSuffix(path, suffix), true
		}
	}
	return path, false
}

func renderFile(sourcePath string, targetPath string, permissions fs.FileMode, data map[string]string) error {
	content, readError := os.ReadFile(sourcePath)
	if readError != nil {
		return fmt.Errorf(renderErrorTemplateConstant, sourcePath, readError)
	}
	renderedContent, renderError := renderString(sourcePath, string(content), data)
	if renderError != nil {
		return renderError
	}
	if mkdirError := os.MkdirAll(filepath.Dir(targetPath), directoryPermissionsConstant); mkdirError != nil {
		return fmt.Errorf(renderErrorTemplateConstant, targetPath, mkdirError)
	}
	if writeError := os.WriteFile(targetPath, []byte(renderedContent), permissions); writeError != nil {
		return fmt.Errorf(renderErrorTemplateConstant, targetPath, writeError)
	}
	if removeError := os.Remove(sourcePath); removeError != nil {
		return fmt.Errorf(renderErrorTemplateConstant, sourcePath, removeError)
	}
	return nil
}

func renderString(name string, text string, data map[string]string) (string, error) {
	parsedTemplate, parseError := template.New(filepath.Base(name)).Option(missingKeyOptionConstant).Parse(text)
	if parseError != nil {
		if match := undefinedFunctionPattern.FindStringSubmatch(parseError.Error()); match != nil {
			return "", PlaceholderSyntaxError{Path: name, Placeholder: match[1], Cause: parseError}
		}
		return "", fmt.Errorf(renderErrorTemplateConstant, name, parseError)
	}
	var rendered bytes.Buffer
	if executeError := parsedTemplate.Execute(&rendered, data); executeError != nil {
		return "", fmt.Errorf(renderErrorTemplateConstant, name, executeError)
	}
	return rendered.String(), nil
}
