package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const (
	testConfigurationFileNameConstant = "config.yaml"
	testConfigurationContentConstant  = `common:
  log_level: error
  log_format: console
tools:
  manage:
    org: OCA-devel
    token_source: ORG_BOT_TOKEN
  add_branch:
    default: false
    repo_whitelist:
      - server-tools
`
	testRepositoryDocumentConstant = `server-tools:
  name: Server tools
  psc: tools
  branches:
    - "17.0"
  default_branch: "17.0"
web:
  name: Web
  psc: web
  branches:
    - "17.0"
`
	testOrganizationEnvironmentNameConstant = "REPOMAINTAINER_TOOLS_MANAGE_ORG"
)

func writeTestConfiguration(testInstance *testing.T) string {
	testInstance.Helper()
	configurationPath := filepath.Join(testInstance.TempDir(), testConfigurationFileNameConstant)
	require.NoError(testInstance, os.WriteFile(configurationPath, []byte(testConfigurationContentConstant), 0o600))
	return configurationPath
}

func findSubcommand(testInstance *testing.T, application *Application, name string) *cobra.Command {
	testInstance.Helper()
	for _, subcommand := range application.rootCommand.Commands() {
		if subcommand.Name() == name {
			return subcommand
		}
	}
	testInstance.Fatalf("subcommand %s not registered", name)
	return nil
}

func TestInitializeConfigurationMergesSources(testInstance *testing.T) {
	testCases := []struct {
		name                 string
		useConfigurationFile bool
		organizationEnv      string
		logLevelFlag         string
		expectedLogLevel     string
		expectedLogFormat    string
		expectedOrganization string
		expectedTokenSource  string
		expectedMakeDefault  bool
		expectedWhitelist    []string
	}{
		{
			name:                 "embedded_defaults",
			expectedLogLevel:     "info",
			expectedLogFormat:    "structured",
			expectedOrganization: "OCA",
			expectedMakeDefault:  true,
			expectedWhitelist:    []string{},
		},
		{
			name:                 "configuration_file",
			useConfigurationFile: true,
			expectedLogLevel:     "error",
			expectedLogFormat:    "console",
			expectedOrganization: "OCA-devel",
			expectedTokenSource:  "ORG_BOT_TOKEN",
			expectedMakeDefault:  false,
			expectedWhitelist:    []string{"server-tools"},
		},
		{
			name:                 "environment_overrides_file",
			useConfigurationFile: true,
			organizationEnv:      "OCA-staging",
			expectedLogLevel:     "error",
			expectedLogFormat:    "console",
			expectedOrganization: "OCA-staging",
			expectedTokenSource:  "ORG_BOT_TOKEN",
			expectedMakeDefault:  false,
			expectedWhitelist:    []string{"server-tools"},
		},
		{
			name:                 "flag_overrides_file",
			useConfigurationFile: true,
			logLevelFlag:         "DEBUG",
			expectedLogLevel:     "debug",
			expectedLogFormat:    "console",
			expectedOrganization: "OCA-devel",
			expectedTokenSource:  "ORG_BOT_TOKEN",
			expectedMakeDefault:  false,
			expectedWhitelist:    []string{"server-tools"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			if len(testCase.organizationEnv) > 0 {
				subTest.Setenv(testOrganizationEnvironmentNameConstant, testCase.organizationEnv)
			}

			application := NewApplication()
			expectedConfigurationFile := ""
			if testCase.useConfigurationFile {
				expectedConfigurationFile = writeTestConfiguration(subTest)
				application.configurationFilePath = expectedConfigurationFile
			}
			if len(testCase.logLevelFlag) > 0 {
				require.NoError(subTest, application.rootCommand.PersistentFlags().Set(logLevelFlagNameConstant, testCase.logLevelFlag))
			}

			require.NoError(subTest, application.initializeConfiguration(application.rootCommand))

			require.Equal(subTest, testCase.expectedLogLevel, application.configuration.Common.LogLevel)
			require.Equal(subTest, testCase.expectedLogFormat, application.configuration.Common.LogFormat)
			require.Equal(subTest, testCase.expectedOrganization, application.configuration.Tools.Manage.Organization)
			require.Equal(subTest, testCase.expectedTokenSource, application.configuration.Tools.Manage.TokenSource)
			require.Equal(subTest, testCase.expectedMakeDefault, application.configuration.Tools.AddBranch.MakeDefault)
			require.ElementsMatch(subTest, testCase.expectedWhitelist, application.configuration.Tools.AddBranch.RepositoryWhitelist)

			configurationFilePath, found := application.commandContextAccessor.ConfigurationFilePath(application.rootCommand.Context())
			require.True(subTest, found)
			require.Equal(subTest, expectedConfigurationFile, configurationFilePath)
			logLevel, logLevelFound := application.commandContextAccessor.LogLevel(application.rootCommand.Context())
			require.True(subTest, logLevelFound)
			require.Equal(subTest, testCase.expectedLogLevel, logLevel)
			if len(testCase.organizationEnv) > 0 {
				require.Contains(subTest, application.configurationMetadata.EnvironmentOverrides, application.configurationLoader.EnvironmentVariableName(manageConfigurationKeyConstant+".org"))
			}
		})
	}
}

func TestInitializeConfigurationRejectsUnknownLogLevel(testInstance *testing.T) {
	application := NewApplication()
	require.NoError(testInstance, application.rootCommand.PersistentFlags().Set(logLevelFlagNameConstant, "verbose"))

	initializationError := application.initializeConfiguration(application.rootCommand)

	require.Error(testInstance, initializationError)
	require.ErrorContains(testInstance, initializationError, "unable to create logger")
}

func TestHumanReadableLoggingEnabled(testInstance *testing.T) {
	testCases := []struct {
		name      string
		logFormat string
		expected  bool
	}{
		{name: "console", logFormat: "console", expected: true},
		{name: "console_mixed_case", logFormat: " Console ", expected: true},
		{name: "structured", logFormat: "structured", expected: false},
		{name: "empty", logFormat: "", expected: false},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			application := &Application{}
			application.configuration.Common.LogFormat = testCase.logFormat
			require.Equal(subTest, testCase.expected, application.humanReadableLoggingEnabled())
		})
	}
}

func TestApplicationRegistersSubcommands(testInstance *testing.T) {
	application := NewApplication()

	manageCommand := findSubcommand(testInstance, application, "manage")
	require.NotNil(testInstance, manageCommand.Flags().Lookup("conf-dir"))
	require.NotNil(testInstance, manageCommand.Flags().Lookup("force"))

	addBranchCommand := findSubcommand(testInstance, application, "add-branch")
	require.NotNil(testInstance, addBranchCommand.Flags().Lookup("branch"))
	require.NotNil(testInstance, addBranchCommand.Flags().Lookup("repo-whitelist"))
}

func TestApplicationExecutesAddBranch(testInstance *testing.T) {
	configurationDirectory := testInstance.TempDir()
	repositoryDirectory := filepath.Join(configurationDirectory, "repo")
	require.NoError(testInstance, os.MkdirAll(repositoryDirectory, 0o755))
	documentPath := filepath.Join(repositoryDirectory, "addons.yml")
	require.NoError(testInstance, os.WriteFile(documentPath, []byte(testRepositoryDocumentConstant), 0o600))

	application := NewApplication()
	application.rootCommand.SetArgs([]string{
		"add-branch",
		"--log-level", "error",
		"--conf-dir", configurationDirectory,
		"--branch", "18.0",
		"--repo-whitelist", "server-tools",
	})

	require.NoError(testInstance, application.Execute())

	content, readError := os.ReadFile(documentPath)
	require.NoError(testInstance, readError)
	decoded := map[string]struct {
		Branches      []string `yaml:"branches"`
		DefaultBranch string   `yaml:"default_branch"`
	}{}
	require.NoError(testInstance, yaml.Unmarshal(content, &decoded))

	require.Equal(testInstance, []string{"17.0", "18.0"}, decoded["server-tools"].Branches)
	require.Equal(testInstance, "18.0", decoded["server-tools"].DefaultBranch)
	require.Equal(testInstance, []string{"17.0"}, decoded["web"].Branches)
}
