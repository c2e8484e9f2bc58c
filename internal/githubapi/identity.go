package githubapi

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
)

const (
	viewerQueryOperationConstant = "query viewer"
	listEmailsOperationConstant  = "list emails"
	noreplyEmailTemplateConstant = "%d+%s@users.noreply.%s"
	emailLookupFailedLogConstant = "verified email unavailable, using noreply address"
	logFieldLoginConstant        = "login"
)

// AuthenticatedUser is the identity used to author commits.
type AuthenticatedUser struct {
	Login string
	Name  string
	Email string
}

// DisplayName returns the profile name, or the login when no name is set.
func (user AuthenticatedUser) DisplayName() string {
	if trimmedName := strings.TrimSpace(user.Name); len(trimmedName) > 0 {
		return trimmedName
	}
	return user.Login
}

type viewerQuery struct {
	Viewer struct {
		Login      githubv4.String
		Name       githubv4.String
		DatabaseID githubv4.Int `graphql:"databaseId"`
	}
}

// AuthenticatedUser returns the token owner with its primary verified email.
// Tokens without the user:email scope fall back to the noreply address.
func (client *Client) AuthenticatedUser(executionContext context.Context) (AuthenticatedUser, error) {
	var query viewerQuery
	if queryError := client.graphqlClient.Query(executionContext, &query, nil); queryError != nil {
		return AuthenticatedUser{}, OperationError{Operation: viewerQueryOperationConstant, Subject: client.host, Cause: queryError}
	}

	user := AuthenticatedUser{
		Login: string(query.Viewer.Login),
		Name:  string(query.Viewer.Name),
	}

	email, emailError := client.primaryVerifiedEmail(executionContext)
	if emailError != nil || len(email) == 0 {
		if emailError != nil {
			client.logger.Debug(emailLookupFailedLogConstant, zap.String(logFieldLoginConstant, user.Login), zap.Error(emailError))
		}
		email = fmt.Sprintf(noreplyEmailTemplateConstant, int64(query.Viewer.DatabaseID), user.Login, client.host)
	}
	user.Email = email
	return user, nil
}

func (client *Client) primaryVerifiedEmail(executionContext context.Context) (string, error) {
	emails, response, listError := collectPages(executionContext, func(pageContext context.Context, listOptions github.ListOptions) ([]*github.UserEmail, *github.Response, error) {
		return client.restClient.Users.ListEmails(pageContext, &listOptions)
	})
	if listError != nil {
		return "", wrapOperationError(listEmailsOperationConstant, client.host, response, listError)
	}
	for _, email := range emails {
		if email.GetPrimary() && email.GetVerified() {
			return email.GetEmail(), nil
		}
	}
	return "", nil
}
