package conffile

import "strings"

// CommandConfiguration captures persistent settings for the add-branch command.
type CommandConfiguration struct {
	ConfigurationDirectory string   `mapstructure:"conf_dir"`
	MakeDefault            bool     `mapstructure:"default"`
	RepositoryWhitelist    []string `mapstructure:"repo_whitelist"`
}

// DefaultCommandConfiguration returns baseline configuration values for add-branch.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		MakeDefault: true,
	}
}

// DefaultConfigurationValues returns viper defaults keyed under prefix.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		prefix + ".conf_dir":       defaults.ConfigurationDirectory,
		prefix + ".default":        defaults.MakeDefault,
		prefix + ".repo_whitelist": defaults.RepositoryWhitelist,
	}
}

func (configuration CommandConfiguration) sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.ConfigurationDirectory = strings.TrimSpace(configuration.ConfigurationDirectory)
	sanitized.RepositoryWhitelist = splitWhitelist(configuration.RepositoryWhitelist)
	return sanitized
}

// splitWhitelist accepts both list entries and comma-separated values.
func splitWhitelist(raw []string) []string {
	sanitized := make([]string, 0, len(raw))
	for _, entry := range raw {
		for _, candidate := range strings.Split(entry, ",") {
			trimmed := strings.TrimSpace(candidate)
			if len(trimmed) == 0 {
				continue
			}
			sanitized = append(sanitized, trimmed)
		}
	}
	return sanitized
}
