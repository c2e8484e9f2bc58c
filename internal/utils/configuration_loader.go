package utils

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	configurationKeySeparatorConstant               = "."
	configurationWordSeparatorConstant              = "-"
	environmentNameSeparatorConstant                = "_"
	listValueSeparatorConstant                      = ","
	configurationReadErrorTemplateConstant          = "failed to read configuration: %w"
	configurationUnmarshalErrorTemplateConstant     = "failed to parse configuration: %w"
	embeddedConfigurationMergeErrorTemplateConstant = "failed to merge embedded configuration: %w"
)

// ConfigurationLoader layers defaults, an embedded document, a configuration file, and
// prefixed environment variables, in that order of increasing precedence.
type ConfigurationLoader struct {
	configurationName         string
	configurationType         string
	environmentPrefix         string
	searchPaths               []string
	environmentKeyReplacer    *strings.Replacer
	embeddedConfiguration     []byte
	embeddedConfigurationType string
}

// LoadedConfiguration surfaces metadata about the resolved configuration.
type LoadedConfiguration struct {
	ConfigFileUsed string
	// EnvironmentOverrides names the set environment variables that map onto a defaulted key, sorted.
	EnvironmentOverrides []string
}

// NewConfigurationLoader creates a loader that searches known paths and respects an environment prefix.
// The prefix is upper-cased, so "repomaintainer" and "REPOMAINTAINER" select the same variables.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	duplicatedSearchPaths := make([]string, len(searchPaths))
	copy(duplicatedSearchPaths, searchPaths)

	return &ConfigurationLoader{
		configurationName: configurationName,
		configurationType: configurationType,
		environmentPrefix: strings.ToUpper(strings.TrimSpace(environmentPrefix)),
		searchPaths:       duplicatedSearchPaths,
		environmentKeyReplacer: strings.NewReplacer(
			configurationKeySeparatorConstant, environmentNameSeparatorConstant,
			configurationWordSeparatorConstant, environmentNameSeparatorConstant,
		),
	}
}

// EnvironmentVariableName returns the variable that overrides configurationKey,
// e.g. tools.add_branch.repo_whitelist becomes REPOMAINTAINER_TOOLS_ADD_BRANCH_REPO_WHITELIST.
func (loader *ConfigurationLoader) EnvironmentVariableName(configurationKey string) string {
	variableName := strings.ToUpper(loader.environmentKeyReplacer.Replace(strings.TrimSpace(configurationKey)))
	if len(loader.environmentPrefix) == 0 {
		return variableName
	}
	return loader.environmentPrefix + environmentNameSeparatorConstant + variableName
}

// SetEmbeddedConfiguration stores embedded configuration data merged before user-provided configuration files.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(configurationData []byte, configurationType string) {
	if loader == nil {
		return
	}

	loader.embeddedConfiguration = nil
	loader.embeddedConfigurationType = strings.TrimSpace(configurationType)

	if len(configurationData) == 0 {
		return
	}

	duplicatedData := make([]byte, len(configurationData))
	copy(duplicatedData, configurationData)
	loader.embeddedConfiguration = duplicatedData
}

// LoadConfiguration populates targetConfiguration using configuration files, defaults, and environment variables.
// Comma-separated strings decode into string slices, so REPOMAINTAINER_TOOLS_ADD_BRANCH_REPO_WHITELIST=a,b works.
// A missing configuration file in the search paths is not an error; an unreadable explicit file is.
func (loader *ConfigurationLoader) LoadConfiguration(configurationFilePath string, defaultValues map[string]any, targetConfiguration any) (LoadedConfiguration, error) {
	viperInstance := viper.New()
	viperInstance.SetConfigName(loader.configurationName)
	viperInstance.SetConfigType(loader.configurationType)

	if mergeError := loader.mergeEmbeddedConfiguration(viperInstance); mergeError != nil {
		return LoadedConfiguration{}, mergeError
	}

	for _, searchPath := range loader.searchPaths {
		viperInstance.AddConfigPath(searchPath)
	}

	viperInstance.SetEnvPrefix(loader.environmentPrefix)
	viperInstance.SetEnvKeyReplacer(loader.environmentKeyReplacer)
	viperInstance.AutomaticEnv()

	for defaultKey, defaultValue := range defaultValues {
		viperInstance.SetDefault(defaultKey, defaultValue)
	}

	if len(configurationFilePath) > 0 {
		viperInstance.SetConfigFile(configurationFilePath)
	}

	readError := viperInstance.MergeInConfig()
	if readError != nil {
		var notFoundError viper.ConfigFileNotFoundError
		if !errors.As(readError, &notFoundError) {
			return LoadedConfiguration{}, fmt.Errorf(configurationReadErrorTemplateConstant, readError)
		}
	}

	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(listValueSeparatorConstant),
	))
	if unmarshalError := viperInstance.Unmarshal(targetConfiguration, decodeHook); unmarshalError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationUnmarshalErrorTemplateConstant, unmarshalError)
	}

	return LoadedConfiguration{
		ConfigFileUsed:       viperInstance.ConfigFileUsed(),
		EnvironmentOverrides: loader.environmentOverrides(defaultValues),
	}, nil
}

func (loader *ConfigurationLoader) mergeEmbeddedConfiguration(viperInstance *viper.Viper) error {
	if len(loader.embeddedConfiguration) == 0 {
		return nil
	}

	configurationType := loader.configurationType
	if len(loader.embeddedConfigurationType) > 0 {
		configurationType = loader.embeddedConfigurationType
	}

	viperInstance.SetConfigType(configurationType)
	defer viperInstance.SetConfigType(loader.configurationType)
	if mergeError := viperInstance.MergeConfig(bytes.NewReader(loader.embeddedConfiguration)); mergeError != nil {
		return fmt.Errorf(embeddedConfigurationMergeErrorTemplateConstant, mergeError)
	}
	return nil
}

func (loader *ConfigurationLoader) environmentOverrides(defaultValues map[string]any) []string {
	overrides := make([]string, 0)
	for defaultKey := range defaultValues {
		variableName := loader.EnvironmentVariableName(defaultKey)
		if _, present := os.LookupEnv(variableName); present {
			overrides = append(overrides, variableName)
		}
	}
	sort.Strings(overrides)
	return overrides
}
