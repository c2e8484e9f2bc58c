package scaffold_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oca/repo-maintainer/internal/execshell"
	"github.com/oca/repo-maintainer/internal/gitrepo"
	"github.com/oca/repo-maintainer/internal/scaffold"
)

type cloningExecutor struct {
	templateFiles map[string]string
	failure       error
	calls         [][]string
}

func (executor *cloningExecutor) ExecuteGit(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.calls = append(executor.calls, details.Arguments)
	if executor.failure != nil {
		return execshell.ExecutionResult{}, executor.failure
	}
	cloneDirectory := details.Arguments[len(details.Arguments)-1]
	for relativePath, content := range executor.templateFiles {
		absolutePath := filepath.Join(cloneDirectory, filepath.FromSlash(relativePath))
		if mkdirError := os.MkdirAll(filepath.Dir(absolutePath), 0o755); mkdirError != nil {
			return execshell.ExecutionResult{}, mkdirError
		}
		if writeError := os.WriteFile(absolutePath, []byte(content), 0o644); writeError != nil {
			return execshell.ExecutionResult{}, writeError
		}
	}
	return execshell.ExecutionResult{}, nil
}

func writeTemplate(testInstance *testing.T, files map[string]string) string {
	testInstance.Helper()
	root := testInstance.TempDir()
	for relativePath, content := range files {
		absolutePath := filepath.Join(root, filepath.FromSlash(relativePath))
		require.NoError(testInstance, os.MkdirAll(filepath.Dir(absolutePath), 0o755))
		require.NoError(testInstance, os.WriteFile(absolutePath, []byte(content), 0o644))
	}
	return root
}

func readTree(testInstance *testing.T, root string) map[string]string {
	testInstance.Helper()
	contents := map[string]string{}
	require.NoError(testInstance, filepath.Walk(root, func(path string, info os.FileInfo, walkError error) error {
		if walkError != nil || info.IsDir() {
			return walkError
		}
		content, readError := os.ReadFile(path)
		if readError != nil {
			return readError
		}
		relativePath, relativeError := filepath.Rel(root, path)
		if relativeError != nil {
			return relativeError
		}
		contents[filepath.ToSlash(relativePath)] = string(content)
		return nil
	}))
	return contents
}

var testTemplateData = map[string]string{
	"repo_name":        "Test repo 2",
	"repo_slug":        "test_repo_2",
	"repo_description": "Second test repository",
	"odoo_version":     "17.0",
}

func TestRenderLocalTemplate(testInstance *testing.T) {
	templateRoot := writeTemplate(testInstance, map[string]string{
		"copier.yml":                       "_subdirectory: src\n",
		"src/README.md.jinja":              "# {{ .repo_name }} for {{ .odoo_version }}\n",
		"src/LICENSE":                      "AGPL-3\n",
		"src/{{ .repo_slug }}/__init__.py": "",
		"src/setup/{{ .repo_slug }}.tmpl":  "{{ .repo_description }}\n",
	})
	destination := testInstance.TempDir()

	renderError := scaffold.NewRenderer(nil, nil).Render(context.Background(), templateRoot, destination, testTemplateData)
	require.NoError(testInstance, renderError)
	require.Equal(testInstance, map[string]string{
		"README.md":               "# Test repo 2 for 17.0\n",
		"LICENSE":                 "AGPL-3\n",
		"test_repo_2/__init__.py": "",
		"setup/test_repo_2":       "Second test repository\n",
	}, readTree(testInstance, destination))
}

func TestRenderRejectsUnknownVariables(testInstance *testing.T) {
	templateRoot := writeTemplate(testInstance, map[string]string{"README.md.jinja": "{{ .unknown }}"})

	renderError := scaffold.NewRenderer(nil, nil).Render(context.Background(), templateRoot, testInstance.TempDir(), testTemplateData)
	require.Error(testInstance, renderError)
}

func TestRenderExplainsBarePlaceholders(testInstance *testing.T) {
	testCases := []struct {
		name                string
		files               map[string]string
		expectedPlaceholder string
	}{
		{
			name:                "file content",
			files:               map[string]string{"README.md.jinja": "# {{ repo_name }}\n"},
			expectedPlaceholder: "repo_name",
		},
		{
			name:                "file name",
			files:               map[string]string{"{{ repo_slug }}/__init__.py": ""},
			expectedPlaceholder: "repo_slug",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			templateRoot := writeTemplate(testInstance, testCase.files)

			renderError := scaffold.NewRenderer(nil, nil).Render(context.Background(), templateRoot, testInstance.TempDir(), testTemplateData)
			var syntaxError scaffold.PlaceholderSyntaxError
			require.ErrorAs(testInstance, renderError, &syntaxError)
			require.Equal(testInstance, testCase.expectedPlaceholder, syntaxError.Placeholder)
			require.ErrorContains(testInstance, renderError, "{{ ."+testCase.expectedPlaceholder+" }}")
		})
	}
}

func TestRenderRemoteTemplate(testInstance *testing.T) {
	executor := &cloningExecutor{templateFiles: map[string]string{
		".git/HEAD":       "ref: refs/heads/master\n",
		"README.md.jinja": "{{ .repo_slug }}",
	}}
	destination := testInstance.TempDir()

	renderError := scaffold.NewRenderer(executor, nil).Render(context.Background(), "gh:OCA/oca-addons-repo-template", destination, testTemplateData)
	require.NoError(testInstance, renderError)
	require.Equal(testInstance, map[string]string{"README.md": "test_repo_2"}, readTree(testInstance, destination))
	require.Len(testInstance, executor.calls, 1)
	require.Equal(testInstance, []string{"clone", "--depth=1", "https://github.com/OCA/oca-addons-repo-template.git"}, executor.calls[0][:3])
	_, statError := os.Stat(executor.calls[0][3])
	require.True(testInstance, os.IsNotExist(statError))
}

func TestRenderErrors(testInstance *testing.T) {
	testCases := []struct {
		name          string
		renderer      *scaffold.Renderer
		locator       string
		expectedError error
	}{
		{name: "empty locator", renderer: scaffold.NewRenderer(nil, nil), locator: " ", expectedError: scaffold.ErrTemplateLocatorRequired},
		{name: "remote without executor", renderer: scaffold.NewRenderer(nil, nil), locator: "git@github.com:OCA/template.git", expectedError: scaffold.ErrGitExecutorRequired},
		{name: "clone failure", renderer: scaffold.NewRenderer(&cloningExecutor{failure: errors.New("network down")}, nil), locator: "git+https://example.com/template.git"},
		{name: "malformed shorthand", renderer: scaffold.NewRenderer(&cloningExecutor{}, nil), locator: "gh:OCA/addons/extra"},
		{name: "missing local template", renderer: scaffold.NewRenderer(nil, nil), locator: filepath.Join(testInstance.TempDir(), "absent")},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			renderError := testCase.renderer.Render(context.Background(), testCase.locator, testInstance.TempDir(), testTemplateData)
			require.Error(testInstance, renderError)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, renderError, testCase.expectedError)
			}
		})
	}
}

func TestRemoteTemplateURL(testInstance *testing.T) {
	testCases := []struct {
		locator       string
		expectedURL   string
		remote        bool
		expectedError bool
	}{
		{locator: "git+https://github.com/OCA/template", expectedURL: "https://github.com/OCA/template", remote: true},
		{locator: "gh:OCA/oca-addons-repo-template", expectedURL: "https://github.com/OCA/oca-addons-repo-template.git", remote: true},
		{locator: "gh:OCA/oca-addons-repo-template.git", expectedURL: "https://github.com/OCA/oca-addons-repo-template.git", remote: true},
		{locator: "git@github.com:OCA/template.git", expectedURL: "git@github.com:OCA/template.git", remote: true},
		{locator: "ssh://git@github.com/OCA/template", expectedURL: "git@github.com:OCA/template.git", remote: true},
		{locator: "https://gitlab.example.com/group/sub/template.git", expectedURL: "https://gitlab.example.com/group/sub/template.git", remote: true},
		{locator: "gh:OCA", remote: true, expectedError: true},
		{locator: "git@github.com:OCA", remote: true, expectedError: true},
		{locator: "/srv/templates/addons", remote: false},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.locator, func(testInstance *testing.T) {
			cloneURL, remote, locatorError := scaffold.RemoteTemplateURL(testCase.locator)
			require.Equal(testInstance, testCase.remote, remote)
			if testCase.expectedError {
				var parseError gitrepo.RemoteURLParseError
				require.ErrorAs(testInstance, locatorError, &parseError)
				return
			}
			require.NoError(testInstance, locatorError)
			require.Equal(testInstance, testCase.expectedURL, cloneURL)
		})
	}
}
