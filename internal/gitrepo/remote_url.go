package gitrepo

import (
	"fmt"
	"strings"
)

const (
	sshProtocolPrefixConstant           = "ssh://"
	sshUserDelimiterConstant            = "@"
	sshPathDelimiterConstant            = ":"
	httpsProtocolPrefixConstant         = "https://"
	gitUserPrefixConstant               = "git@"
	pathSeparatorConstant               = "/"
	gitSuffixConstant                   = ".git"
	defaultHostConstant                 = "github.com"
	remoteURLParseErrorTemplateConstant = "%s: %s"
	sshRemoteTemplateConstant           = "git@%s:%s/%s.git"
	httpsRemoteTemplateConstant         = "https://%s/%s/%s.git"
	authenticatedRemoteTemplateConstant = "https://%s@%s/%s/%s"
	invalidRemoteURLMessageConstant     = "invalid remote url"
	unknownProtocolMessageConstant      = "unsupported remote protocol"
	requiredValueMessageConstant        = "value required"
	tokenRequiredMessageConstant        = "token required for authenticated remote"
)

// RemoteProtocol enumerates supported git remote protocols.
type RemoteProtocol string

// Supported remote protocols.
const (
	RemoteProtocolSSH   RemoteProtocol = RemoteProtocol("ssh")
	RemoteProtocolHTTPS RemoteProtocol = RemoteProtocol("https")
)

// RemoteURL identifies a repository on a git hosting service.
type RemoteURL struct {
	Protocol   RemoteProtocol
	Host       string
	Owner      string
	Repository string
}

// NewOrganizationRemote describes repository inside organization on host, defaulting to github.com.
func NewOrganizationRemote(host string, organization string, repository string) RemoteURL {
	trimmedHost := strings.TrimSpace(host)
	if len(trimmedHost) == 0 {
		trimmedHost = defaultHostConstant
	}
	return RemoteURL{
		Protocol:   RemoteProtocolHTTPS,
		Host:       trimmedHost,
		Owner:      strings.TrimSpace(organization),
		Repository: strings.TrimSpace(repository),
	}
}

// RemoteURLParseError indicates a remote string could not be parsed or formatted.
type RemoteURLParseError struct {
	Input   string
	Message string
}

// Error describes the parse failure.
func (parseError RemoteURLParseError) Error() string {
	return fmt.Sprintf(remoteURLParseErrorTemplateConstant, parseError.Input, parseError.Message)
}

// UnsupportedProtocolError indicates the provided protocol cannot be formatted.
type UnsupportedProtocolError struct {
	Protocol RemoteProtocol
}

// Error describes the unsupported protocol.
func (protocolError UnsupportedProtocolError) Error() string {
	return fmt.Sprintf(remoteURLParseErrorTemplateConstant, protocolError.Protocol, unknownProtocolMessageConstant)
}

// ParseRemoteURL converts a textual remote URL into a structured representation.
// Credentials embedded in https remotes are discarded.
func ParseRemoteURL(remote string) (RemoteURL, error) {
	trimmedRemote := strings.TrimSpace(remote)
	switch {
	case len(trimmedRemote) == 0:
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: requiredValueMessageConstant}
	case strings.HasPrefix(trimmedRemote, sshProtocolPrefixConstant):
		return parseSSHRemote(strings.TrimPrefix(trimmedRemote, sshProtocolPrefixConstant))
	case strings.HasPrefix(trimmedRemote, gitUserPrefixConstant):
		return parseSSHRemote(trimmedRemote)
	case strings.HasPrefix(trimmedRemote, httpsProtocolPrefixConstant):
		return parseHTTPSRemote(strings.TrimPrefix(trimmedRemote, httpsProtocolPrefixConstant))
	default:
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}
}

func parseSSHRemote(remote string) (RemoteURL, error) {
	userSplitIndex := strings.Index(remote, sshUserDelimiterConstant)
	if userSplitIndex == -1 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}
	hostAndPath := remote[userSplitIndex+1:]

	separatorIndex := strings.IndexAny(hostAndPath, sshPathDelimiterConstant+pathSeparatorConstant)
	if separatorIndex <= 0 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}

	owner, repository, splitError := splitOwnerAndRepository(hostAndPath[separatorIndex+1:])
	if splitError != nil {
		return RemoteURL{}, splitError
	}
	return RemoteURL{Protocol: RemoteProtocolSSH, Host: hostAndPath[:separatorIndex], Owner: owner, Repository: repository}, nil
}

func parseHTTPSRemote(remote string) (RemoteURL, error) {
	if credentialIndex := strings.Index(remote, sshUserDelimiterConstant); credentialIndex != -1 && credentialIndex < strings.Index(remote+pathSeparatorConstant, pathSeparatorConstant) {
		remote = remote[credentialIndex+1:]
	}

	hostSplitIndex := strings.Index(remote, pathSeparatorConstant)
	if hostSplitIndex <= 0 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}

	owner, repository, splitError := splitOwnerAndRepository(remote[hostSplitIndex+1:])
	if splitError != nil {
		return RemoteURL{}, splitError
	}
	return RemoteURL{Protocol: RemoteProtocolHTTPS, Host: remote[:hostSplitIndex], Owner: owner, Repository: repository}, nil
}

func splitOwnerAndRepository(path string) (string, string, error) {
	segments := strings.Split(strings.Trim(path, pathSeparatorConstant), pathSeparatorConstant)
	if len(segments) != 2 || len(segments[0]) == 0 {
		return "", "", RemoteURLParseError{Input: path, Message: invalidRemoteURLMessageConstant}
	}
	repository := strings.TrimSuffix(segments[1], gitSuffixConstant)
	if len(repository) == 0 {
		return "", "", RemoteURLParseError{Input: path, Message: invalidRemoteURLMessageConstant}
	}
	return segments[0], repository, nil
}

// FormatRemoteURL renders the canonical fetch location of remote.
func FormatRemoteURL(remote RemoteURL) (string, error) {
	if validationError := remote.validate(); validationError != nil {
		return "", validationError
	}

	switch remote.Protocol {
	case RemoteProtocolSSH:
		return fmt.Sprintf(sshRemoteTemplateConstant, remote.Host, remote.Owner, remote.Repository), nil
	case RemoteProtocolHTTPS:
		return fmt.Sprintf(httpsRemoteTemplateConstant, remote.Host, remote.Owner, remote.Repository), nil
	default:
		return "", UnsupportedProtocolError{Protocol: remote.Protocol}
	}
}

// FormatAuthenticatedRemoteURL renders an https push location carrying token as credentials.
// The result is a secret and must only reach git through redacted command details.
func FormatAuthenticatedRemoteURL(remote RemoteURL, token string) (string, error) {
	if validationError := remote.validate(); validationError != nil {
		return "", validationError
	}
	trimmedToken := strings.TrimSpace(token)
	if len(trimmedToken) == 0 {
		return "", RemoteURLParseError{Input: remote.Repository, Message: tokenRequiredMessageConstant}
	}
	return fmt.Sprintf(authenticatedRemoteTemplateConstant, trimmedToken, remote.Host, remote.Owner, remote.Repository), nil
}

func (remote RemoteURL) validate() error {
	requiredValues := []string{remote.Host, remote.Owner, remote.Repository}
	for _, requiredValue := range requiredValues {
		if len(strings.TrimSpace(requiredValue)) == 0 {
			return RemoteURLParseError{Input: requiredValue, Message: requiredValueMessageConstant}
		}
	}
	return nil
}
