package manager

import "strings"

const (
	defaultOrganizationConstant = "OCA"
)

// CommandConfiguration captures persistent settings for the manage command.
type CommandConfiguration struct {
	ConfigurationDirectory string `mapstructure:"conf_dir"`
	Organization           string `mapstructure:"org"`
	TokenSource            string `mapstructure:"token_source"`
	GitHubHost             string `mapstructure:"github_host"`
	Force                  bool   `mapstructure:"force"`
	SkipPush               bool   `mapstructure:"skip_push"`
	StrictSlugs            bool   `mapstructure:"strict_slugs"`
}

// DefaultCommandConfiguration returns baseline configuration values for the manage command.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		Organization: defaultOrganizationConstant,
	}
}

// DefaultConfigurationValues returns viper defaults keyed under prefix.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		prefix + ".conf_dir":     defaults.ConfigurationDirectory,
		prefix + ".org":          defaults.Organization,
		prefix + ".token_source": defaults.TokenSource,
		prefix + ".github_host":  defaults.GitHubHost,
		prefix + ".force":        defaults.Force,
		prefix + ".skip_push":    defaults.SkipPush,
		prefix + ".strict_slugs": defaults.StrictSlugs,
	}
}

func (configuration CommandConfiguration) sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.ConfigurationDirectory = strings.TrimSpace(configuration.ConfigurationDirectory)
	sanitized.Organization = strings.TrimSpace(configuration.Organization)
	if len(sanitized.Organization) == 0 {
		sanitized.Organization = defaultOrganizationConstant
	}
	sanitized.TokenSource = strings.TrimSpace(configuration.TokenSource)
	sanitized.GitHubHost = strings.TrimSpace(configuration.GitHubHost)
	return sanitized
}
