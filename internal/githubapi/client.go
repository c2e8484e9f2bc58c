package githubapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	defaultHostConstant                  = "github.com"
	enterpriseAPIBaseTemplateConstant    = "https://%s/api/v3/"
	enterpriseUploadBaseTemplateConstant = "https://%s/api/uploads/"
	enterpriseGraphQLTemplateConstant    = "https://%s/api/graphql"
	defaultPageSizeConstant              = 100
	secondaryRateLimitSleepLimitConstant = time.Hour
	tokenRequiredMessageConstant         = "github token required"
	organizationRequiredMessageConstant  = "organization required"
	notFoundMessageConstant              = "github resource not found"
	rateLimitWaiterErrorTemplateConstant = "failed to create rate limit waiter: %w"
	baseURLErrorTemplateConstant         = "invalid github api base url %s: %w"
	enterpriseURLErrorTemplateConstant   = "failed to configure github host %s: %w"
	operationErrorTemplateConstant       = "%s %s: %v"
	rateLimitedLogMessageConstant        = "secondary rate limit reached, waiting"
	logFieldSleepUntilConstant           = "sleep_until"
	logFieldURLConstant                  = "url"
)

var (
	// ErrNotFound indicates the requested team, repository, or membership does not exist.
	ErrNotFound = errors.New(notFoundMessageConstant)
	// ErrTokenRequired indicates the client was configured without credentials.
	ErrTokenRequired = errors.New(tokenRequiredMessageConstant)
	// ErrOrganizationRequired indicates the client was configured without an organization.
	ErrOrganizationRequired = errors.New(organizationRequiredMessageConstant)
)

// OperationError wraps a failed API call with the operation and its subject.
type OperationError struct {
	Operation string
	Subject   string
	Cause     error
}

// Error describes the failed operation.
func (operationError OperationError) Error() string {
	return fmt.Sprintf(operationErrorTemplateConstant, operationError.Operation, operationError.Subject, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// Options configures a Client. Host selects a GitHub Enterprise Server instance
// and defaults to github.com; APIBaseURL and GraphQLURL override the endpoints
// derived from it.
type Options struct {
	Token         string
	Organization  string
	Host          string
	APIBaseURL    string
	GraphQLURL    string
	BaseTransport http.RoundTripper
	Logger        *zap.Logger
}

// Client performs the organization operations used by the reconcilers.
type Client struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	organization  string
	host          string
	logger        *zap.Logger
}

// NewClient builds a Client whose transport authenticates with the token and waits out secondary rate limits.
func NewClient(options Options) (*Client, error) {
	token := strings.TrimSpace(options.Token)
	if len(token) == 0 {
		return nil, ErrTokenRequired
	}
	organization := strings.TrimSpace(options.Organization)
	if len(organization) == 0 {
		return nil, ErrOrganizationRequired
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	host := strings.TrimSpace(options.Host)
	if len(host) == 0 {
		host = defaultHostConstant
	}

	rateLimitWaiter, waiterError := github_ratelimit.NewRateLimitWaiter(options.BaseTransport,
		github_ratelimit.WithSingleSleepLimit(secondaryRateLimitSleepLimitConstant, nil),
		github_ratelimit.WithLimitDetectedCallback(func(callbackContext *github_ratelimit.CallbackContext) {
			fields := []zap.Field{zap.Timep(logFieldSleepUntilConstant, callbackContext.SleepUntil)}
			if callbackContext.Request != nil {
				fields = append(fields, zap.String(logFieldURLConstant, callbackContext.Request.URL.Path))
			}
			logger.Warn(rateLimitedLogMessageConstant, fields...)
		}),
	)
	if waiterError != nil {
		return nil, fmt.Errorf(rateLimitWaiterErrorTemplateConstant, waiterError)
	}

	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		},
	}

	restClient := github.NewClient(httpClient)
	graphqlURL := strings.TrimSpace(options.GraphQLURL)
	if host != defaultHostConstant {
		enterpriseClient, enterpriseError := restClient.WithEnterpriseURLs(fmt.Sprintf(enterpriseAPIBaseTemplateConstant, host), fmt.Sprintf(enterpriseUploadBaseTemplateConstant, host))
		if enterpriseError != nil {
			return nil, fmt.Errorf(enterpriseURLErrorTemplateConstant, host, enterpriseError)
		}
		restClient = enterpriseClient
		if len(graphqlURL) == 0 {
			graphqlURL = fmt.Sprintf(enterpriseGraphQLTemplateConstant, host)
		}
	}
	if apiBaseURL := strings.TrimSpace(options.APIBaseURL); len(apiBaseURL) > 0 {
		if !strings.HasSuffix(apiBaseURL, "/") {
			apiBaseURL += "/"
		}
		parsedURL, parseError := url.Parse(apiBaseURL)
		if parseError != nil {
			return nil, fmt.Errorf(baseURLErrorTemplateConstant, apiBaseURL, parseError)
		}
		restClient.BaseURL = parsedURL
	}

	graphqlClient := githubv4.NewClient(httpClient)
	if len(graphqlURL) > 0 {
		graphqlClient = githubv4.NewEnterpriseClient(graphqlURL, httpClient)
	}

	return &Client{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		organization:  organization,
		host:          host,
		logger:        logger,
	}, nil
}

// Organization returns the organization the client operates on.
func (client *Client) Organization() string {
	return client.organization
}

// Host returns the git host serving the organization.
func (client *Client) Host() string {
	return client.host
}

func wrapOperationError(operation string, subject string, response *github.Response, cause error) error {
	if isNotFound(response, cause) {
		return OperationError{Operation: operation, Subject: subject, Cause: ErrNotFound}
	}
	return OperationError{Operation: operation, Subject: subject, Cause: cause}
}

func isNotFound(response *github.Response, cause error) bool {
	if response != nil && response.Response != nil && response.StatusCode == http.StatusNotFound {
		return true
	}
	var errorResponse *github.ErrorResponse
	return errors.As(cause, &errorResponse) && errorResponse.Response != nil && errorResponse.Response.StatusCode == http.StatusNotFound
}

// collectPages follows pagination until the last page.
func collectPages[Item any](executionContext context.Context, fetch func(context.Context, github.ListOptions) ([]Item, *github.Response, error)) ([]Item, *github.Response, error) {
	listOptions := github.ListOptions{PerPage: defaultPageSizeConstant}
	collected := make([]Item, 0)
	for {
		page, response, fetchError := fetch(executionContext, listOptions)
		if fetchError != nil {
			return nil, response, fetchError
		}
		collected = append(collected, page...)
		if response == nil || response.NextPage == 0 {
			return collected, response, nil
		}
		listOptions.Page = response.NextPage
	}
}
