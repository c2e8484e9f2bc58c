package githubapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oca/repo-maintainer/internal/githubapi"
)

const (
	testOrganizationConstant = "OCA-devel"
	testTokenConstant        = "ghp_fake_test_token"
)

func newTestClient(testInstance *testing.T, mux *http.ServeMux) *githubapi.Client {
	testInstance.Helper()
	server := httptest.NewServer(mux)
	testInstance.Cleanup(server.Close)

	client, clientError := githubapi.NewClient(githubapi.Options{
		Token:        testTokenConstant,
		Organization: testOrganizationConstant,
		APIBaseURL:   server.URL,
		GraphQLURL:   server.URL + "/graphql",
	})
	require.NoError(testInstance, clientError)
	return client
}

func decodeBody(testInstance *testing.T, request *http.Request) map[string]any {
	testInstance.Helper()
	content, readError := io.ReadAll(request.Body)
	require.NoError(testInstance, readError)
	decoded := map[string]any{}
	require.NoError(testInstance, json.Unmarshal(content, &decoded))
	return decoded
}

func TestNewClientValidatesOptions(testInstance *testing.T) {
	testCases := []struct {
		name          string
		options       githubapi.Options
		expectedError error
	}{
		{name: "missing token", options: githubapi.Options{Organization: testOrganizationConstant}, expectedError: githubapi.ErrTokenRequired},
		{name: "missing organization", options: githubapi.Options{Token: testTokenConstant}, expectedError: githubapi.ErrOrganizationRequired},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			_, clientError := githubapi.NewClient(testCase.options)
			require.ErrorIs(testInstance, clientError, testCase.expectedError)
		})
	}
}

func TestNewClientForEnterpriseHost(testInstance *testing.T) {
	client, clientError := githubapi.NewClient(githubapi.Options{Token: testTokenConstant, Organization: testOrganizationConstant, Host: "github.example.com"})
	require.NoError(testInstance, clientError)
	require.Equal(testInstance, "github.example.com", client.Host())
	require.Equal(testInstance, testOrganizationConstant, client.Organization())
}

func TestOperationErrorMessage(testInstance *testing.T) {
	cause := errors.New("boom")
	testCases := []struct {
		name            string
		operationError  githubapi.OperationError
		expectedMessage string
	}{
		{
			name:            "api failure",
			operationError:  githubapi.OperationError{Operation: "get team", Subject: "psc1", Cause: cause},
			expectedMessage: "get team psc1: boom",
		},
		{
			name:            "missing resource",
			operationError:  githubapi.OperationError{Operation: "get repository", Subject: "server-tools", Cause: githubapi.ErrNotFound},
			expectedMessage: "get repository server-tools: " + githubapi.ErrNotFound.Error(),
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expectedMessage, testCase.operationError.Error())
			require.ErrorIs(testInstance, testCase.operationError, testCase.operationError.Cause)
		})
	}
}

func TestGetTeam(testInstance *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orgs/OCA-devel/teams/psc1", func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(testInstance, "Bearer "+testTokenConstant, request.Header.Get("Authorization"))
		fmt.Fprint(writer, `{"id": 42, "slug": "psc1", "name": "psc1"}`)
	})
	mux.HandleFunc("/orgs/OCA-devel/teams/missing", func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusNotFound)
		fmt.Fprint(writer, `{"message": "Not Found"}`)
	})
	client := newTestClient(testInstance, mux)

	team, getError := client.GetTeam(context.Background(), "psc1")
	require.NoError(testInstance, getError)
	require.Equal(testInstance, githubapi.Team{ID: 42, Slug: "psc1", Name: "psc1"}, team)

	_, missingError := client.GetTeam(context.Background(), "missing")
	require.ErrorIs(testInstance, missingError, githubapi.ErrNotFound)
	var operationError githubapi.OperationError
	require.ErrorAs(testInstance, missingError, &operationError)
	require.Equal(testInstance, "missing", operationError.Subject)
}

func TestCreateTeamIsClosed(testInstance *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orgs/OCA-devel/teams", func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(testInstance, http.MethodPost, request.Method)
		body := decodeBody(testInstance, request)
		assert.Equal(testInstance, "psc1", body["name"])
		assert.Equal(testInstance, "PSC 1", body["description"])
		assert.Equal(testInstance, "closed", body["privacy"])
		writer.WriteHeader(http.StatusCreated)
		fmt.Fprint(writer, `{"id": 7, "slug": "psc1", "name": "psc1"}`)
	})
	client := newTestClient(testInstance, mux)

	team, createError := client.CreateTeam(context.Background(), githubapi.TeamSpecification{Slug: "psc1", Description: "PSC 1"})
	require.NoError(testInstance, createError)
	require.Equal(testInstance, int64(7), team.ID)
}

func TestListTeamMembersFollowsPagination(testInstance *testing.T) {
	var serverURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/orgs/OCA-devel/teams/psc1/members", func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(testInstance, "maintainer", request.URL.Query().Get("role"))
		if request.URL.Query().Get("page") == "2" {
			fmt.Fprint(writer, `[{"login": "carol"}]`)
			return
		}
		writer.Header().Set("Link", fmt.Sprintf(`<%s/orgs/OCA-devel/teams/psc1/members?page=2&role=maintainer>; rel="next"`, serverURL))
		fmt.Fprint(writer, `[{"login": "alice"}, {"login": "bob"}]`)
	})
	server := httptest.NewServer(mux)
	testInstance.Cleanup(server.Close)
	serverURL = server.URL

	client, clientError := githubapi.NewClient(githubapi.Options{Token: testTokenConstant, Organization: testOrganizationConstant, APIBaseURL: server.URL + "/", GraphQLURL: server.URL + "/graphql"})
	require.NoError(testInstance, clientError)

	logins, listError := client.ListTeamMembers(context.Background(), githubapi.Team{Slug: "psc1"}, githubapi.TeamRoleMaintainer)
	require.NoError(testInstance, listError)
	require.Equal(testInstance, []string{"alice", "bob", "carol"}, logins)
}

func TestTeamMutations(testInstance *testing.T) {
	requests := make(map[string]map[string]any)
	mux := http.NewServeMux()
	mux.HandleFunc("/orgs/OCA-devel/teams/psc1/memberships/dora", func(writer http.ResponseWriter, request *http.Request) {
		switch request.Method {
		case http.MethodPut:
			requests["membership"] = decodeBody(testInstance, request)
			fmt.Fprint(writer, `{"state": "active", "role": "maintainer"}`)
		case http.MethodDelete:
			requests["revoke"] = map[string]any{}
			writer.WriteHeader(http.StatusNoContent)
		}
	})
	mux.HandleFunc("/orgs/OCA-devel/teams/psc1/repos/OCA-devel/test-repo-2", func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(testInstance, http.MethodPut, request.Method)
		requests["grant"] = decodeBody(testInstance, request)
		writer.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/orgs/OCA-devel/teams/psc1/repos", func(writer http.ResponseWriter, request *http.Request) {
		fmt.Fprint(writer, `[{"name": "test-repo-1"}]`)
	})
	client := newTestClient(testInstance, mux)
	team := githubapi.Team{ID: 1, Slug: "psc1"}

	require.NoError(testInstance, client.AddTeamMembership(context.Background(), team, "dora", githubapi.TeamRoleMaintainer))
	require.NoError(testInstance, client.RemoveTeamMembership(context.Background(), team, "dora"))
	require.NoError(testInstance, client.AddTeamRepository(context.Background(), team, "test-repo-2", githubapi.PermissionPush))
	repositories, listError := client.ListTeamRepositories(context.Background(), team)
	require.NoError(testInstance, listError)

	require.Equal(testInstance, "maintainer", requests["membership"]["role"])
	require.Contains(testInstance, requests, "revoke")
	require.Equal(testInstance, "push", requests["grant"]["permission"])
	require.Equal(testInstance, []string{"test-repo-1"}, repositories)
}

func TestRepositoryOperations(testInstance *testing.T) {
	requests := make(map[string]map[string]any)
	mux := http.NewServeMux()
	mux.HandleFunc("/orgs/OCA-devel/repos", func(writer http.ResponseWriter, request *http.Request) {
		if request.Method == http.MethodPost {
			requests["create"] = decodeBody(testInstance, request)
			writer.WriteHeader(http.StatusCreated)
			fmt.Fprint(writer, `{"name": "test-repo-2", "clone_url": "https://github.com/OCA-devel/test-repo-2.git"}`)
			return
		}
		fmt.Fprint(writer, `[{"name": "test-repo-1"}]`)
	})
	mux.HandleFunc("/repos/OCA-devel/test-repo-1", func(writer http.ResponseWriter, request *http.Request) {
		if request.Method == http.MethodPatch {
			requests["edit"] = decodeBody(testInstance, request)
		}
		fmt.Fprint(writer, `{"name": "test-repo-1", "description": "first", "default_branch": "16.0"}`)
	})
	mux.HandleFunc("/repos/OCA-devel/test-repo-1/branches", func(writer http.ResponseWriter, request *http.Request) {
		fmt.Fprint(writer, `[{"name": "15.0"}, {"name": "16.0"}]`)
	})
	mux.HandleFunc("/repos/OCA-devel/test-repo-1/collaborators/bob", func(writer http.ResponseWriter, request *http.Request) {
		if request.Method == http.MethodPut {
			requests["collaborator"] = map[string]any{}
			writer.WriteHeader(http.StatusCreated)
			fmt.Fprint(writer, `{"id": 1}`)
			return
		}
		writer.WriteHeader(http.StatusNotFound)
	})
	client := newTestClient(testInstance, mux)
	executionContext := context.Background()

	names, listError := client.ListOrganizationRepositories(executionContext)
	require.NoError(testInstance, listError)
	require.Equal(testInstance, []string{"test-repo-1"}, names)

	created, createError := client.CreateRepository(executionContext, githubapi.RepositorySpecification{Name: "test-repo-2", Description: "second", AdminTeam: githubapi.Team{ID: 99}})
	require.NoError(testInstance, createError)
	require.Equal(testInstance, "https://github.com/OCA-devel/test-repo-2.git", created.CloneURL)
	require.Equal(testInstance, "test-repo-2", requests["create"]["name"])
	require.Equal(testInstance, float64(99), requests["create"]["team_id"])

	repository, getError := client.GetRepository(executionContext, "test-repo-1")
	require.NoError(testInstance, getError)
	require.Equal(testInstance, "16.0", repository.DefaultBranch)

	branches, branchesError := client.ListBranches(executionContext, "test-repo-1")
	require.NoError(testInstance, branchesError)
	require.Equal(testInstance, []string{"15.0", "16.0"}, branches)

	collaborator, collaboratorError := client.IsCollaborator(executionContext, "test-repo-1", "bob")
	require.NoError(testInstance, collaboratorError)
	require.False(testInstance, collaborator)
	require.NoError(testInstance, client.AddCollaborator(executionContext, "test-repo-1", "bob"))
	require.Contains(testInstance, requests, "collaborator")

	require.NoError(testInstance, client.SetDefaultBranch(executionContext, "test-repo-1", "17.0"))
	require.Equal(testInstance, map[string]any{"name": "test-repo-1", "default_branch": "17.0"}, requests["edit"])
}

func TestAuthenticatedUser(testInstance *testing.T) {
	testCases := []struct {
		name          string
		emailsStatus  int
		emailsBody    string
		viewerName    string
		expectedUser  githubapi.AuthenticatedUser
		expectedShown string
	}{
		{
			name:          "primary verified email",
			emailsStatus:  http.StatusOK,
			emailsBody:    `[{"email": "old@example.com", "primary": false, "verified": true}, {"email": "bot@example.com", "primary": true, "verified": true}]`,
			viewerName:    "OCA Bot",
			expectedUser:  githubapi.AuthenticatedUser{Login: "oca-bot", Name: "OCA Bot", Email: "bot@example.com"},
			expectedShown: "OCA Bot",
		},
		{
			name:          "missing scope falls back to noreply",
			emailsStatus:  http.StatusForbidden,
			emailsBody:    `{"message": "Resource not accessible by integration"}`,
			expectedUser:  githubapi.AuthenticatedUser{Login: "oca-bot", Email: "1234+oca-bot@users.noreply.github.com"},
			expectedShown: "oca-bot",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/graphql", func(writer http.ResponseWriter, request *http.Request) {
				fmt.Fprintf(writer, `{"data": {"viewer": {"login": "oca-bot", "name": %q, "databaseId": 1234}}}`, testCase.viewerName)
			})
			mux.HandleFunc("/user/emails", func(writer http.ResponseWriter, request *http.Request) {
				writer.WriteHeader(testCase.emailsStatus)
				fmt.Fprint(writer, testCase.emailsBody)
			})
			client := newTestClient(testInstance, mux)

			user, userError := client.AuthenticatedUser(context.Background())
			require.NoError(testInstance, userError)
			require.Equal(testInstance, testCase.expectedUser, user)
			require.Equal(testInstance, testCase.expectedShown, user.DisplayName())
		})
	}
}
