package teams

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/oca/repo-maintainer/internal/confstore"
	"github.com/oca/repo-maintainer/internal/githubapi"
)

const (
	noTeamLogMessageConstant              = "No team to process"
	teamProcessingLogMessageConstant      = "processing team"
	teamCreatedLogMessageConstant         = "team created"
	membershipRevokedLogMessageConstant   = "revoking membership"
	membershipGrantedLogMessageConstant   = "adding membership"
	clientMissingMessageConstant          = "team client not configured"
	resolveTeamErrorTemplateConstant      = "unable to resolve team %s: %w"
	listRosterErrorTemplateConstant       = "unable to list %s roster of team %s: %w"
	revokeMembershipErrorTemplateConstant = "unable to revoke %s from team %s: %w"
	grantMembershipErrorTemplateConstant  = "unable to grant %s role %s in team %s: %w"
	logFieldTeamConstant                  = "team"
	logFieldLoginConstant                 = "login"
	logFieldRoleConstant                  = "role"
)

// ErrClientNotConfigured indicates a Reconciler built without a team client.
var ErrClientNotConfigured = errors.New(clientMissingMessageConstant)

// TeamClient exposes the team operations the reconciler performs.
type TeamClient interface {
	GetTeam(executionContext context.Context, slug string) (githubapi.Team, error)
	CreateTeam(executionContext context.Context, specification githubapi.TeamSpecification) (githubapi.Team, error)
	ListTeamMembers(executionContext context.Context, team githubapi.Team, role githubapi.TeamRole) ([]string, error)
	AddTeamMembership(executionContext context.Context, team githubapi.Team, login string, role githubapi.TeamRole) error
	RemoveTeamMembership(executionContext context.Context, team githubapi.Team, login string) error
}

// Dependencies groups collaborators required by the Reconciler.
type Dependencies struct {
	Client TeamClient
	Logger *zap.Logger
}

// Reconciler converges remote team rosters toward the desired records.
type Reconciler struct {
	client TeamClient
	global confstore.GlobalConfig
	logger *zap.Logger
}

// NewReconciler constructs a Reconciler bound to the organization-wide configuration.
func NewReconciler(dependencies Dependencies, global confstore.GlobalConfig) (*Reconciler, error) {
	if dependencies.Client == nil {
		return nil, ErrClientNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{client: dependencies.Client, global: global, logger: logger}, nil
}

// Reconcile processes every desired team in slug order. It stops at the first remote failure.
func (reconciler *Reconciler) Reconcile(executionContext context.Context, desired map[string]confstore.TeamRecord) error {
	if len(desired) == 0 {
		reconciler.logger.Info(noTeamLogMessageConstant)
		return nil
	}

	for _, slug := range confstore.SortedSlugs(desired) {
		record := desired[slug]
		if len(record.Slug) == 0 {
			record.Slug = slug
		}
		if reconcileError := reconciler.reconcileTeam(executionContext, record); reconcileError != nil {
			return reconcileError
		}
	}
	return nil
}

func (reconciler *Reconciler) reconcileTeam(executionContext context.Context, record confstore.TeamRecord) error {
	teamLogger := reconciler.logger.With(zap.String(logFieldTeamConstant, record.Slug))
	teamLogger.Info(teamProcessingLogMessageConstant)

	team, resolveError := reconciler.resolveTeam(executionContext, record, teamLogger)
	if resolveError != nil {
		return fmt.Errorf(resolveTeamErrorTemplateConstant, record.Slug, resolveError)
	}

	desiredMembers := newLoginSet(record.Members, reconciler.global.Maintainers)
	desiredRepresentatives := newLoginSet(record.Representatives)

	remoteMembers, membersError := reconciler.client.ListTeamMembers(executionContext, team, githubapi.TeamRoleMember)
	if membersError != nil {
		return fmt.Errorf(listRosterErrorTemplateConstant, githubapi.TeamRoleMember, record.Slug, membersError)
	}
	remoteMaintainers, maintainersError := reconciler.client.ListTeamMembers(executionContext, team, githubapi.TeamRoleMaintainer)
	if maintainersError != nil {
		return fmt.Errorf(listRosterErrorTemplateConstant, githubapi.TeamRoleMaintainer, record.Slug, maintainersError)
	}

	confirmedMembers := newLoginSet()
	for _, login := range remoteMembers {
		if desiredMembers.contains(login) {
			confirmedMembers.add(login)
			continue
		}
		if desiredRepresentatives.contains(login) {
			continue
		}
		if revokeError := reconciler.revoke(executionContext, team, login, teamLogger); revokeError != nil {
			return revokeError
		}
	}

	confirmedRepresentatives := newLoginSet()
	for _, login := range remoteMaintainers {
		if desiredRepresentatives.contains(login) {
			confirmedRepresentatives.add(login)
			continue
		}
		if desiredMembers.contains(login) {
			continue
		}
		if revokeError := reconciler.revoke(executionContext, team, login, teamLogger); revokeError != nil {
			return revokeError
		}
	}

	for _, login := range desiredMembers.ordered {
		if confirmedMembers.contains(login) || desiredRepresentatives.contains(login) {
			continue
		}
		if grantError := reconciler.grant(executionContext, team, login, githubapi.TeamRoleMember, teamLogger); grantError != nil {
			return grantError
		}
	}
	for _, login := range desiredRepresentatives.ordered {
		if confirmedRepresentatives.contains(login) {
			continue
		}
		if grantError := reconciler.grant(executionContext, team, login, githubapi.TeamRoleMaintainer, teamLogger); grantError != nil {
			return grantError
		}
	}
	return nil
}

func (reconciler *Reconciler) resolveTeam(executionContext context.Context, record confstore.TeamRecord, teamLogger *zap.Logger) (githubapi.Team, error) {
	team, getError := reconciler.client.GetTeam(executionContext, record.Slug)
	if getError == nil {
		return team, nil
	}
	if !errors.Is(getError, githubapi.ErrNotFound) {
		return githubapi.Team{}, getError
	}

	created, createError := reconciler.client.CreateTeam(executionContext, githubapi.TeamSpecification{Slug: record.Slug, Description: record.Name})
	if createError != nil {
		return githubapi.Team{}, createError
	}
	teamLogger.Info(teamCreatedLogMessageConstant)
	return created, nil
}

func (reconciler *Reconciler) revoke(executionContext context.Context, team githubapi.Team, login string, teamLogger *zap.Logger) error {
	teamLogger.Info(membershipRevokedLogMessageConstant, zap.String(logFieldLoginConstant, login))
	if removeError := reconciler.client.RemoveTeamMembership(executionContext, team, login); removeError != nil {
		return fmt.Errorf(revokeMembershipErrorTemplateConstant, login, team.Slug, removeError)
	}
	return nil
}

func (reconciler *Reconciler) grant(executionContext context.Context, team githubapi.Team, login string, role githubapi.TeamRole, teamLogger *zap.Logger) error {
	teamLogger.Info(membershipGrantedLogMessageConstant, zap.String(logFieldLoginConstant, login), zap.String(logFieldRoleConstant, string(role)))
	if addError := reconciler.client.AddTeamMembership(executionContext, team, login, role); addError != nil {
		return fmt.Errorf(grantMembershipErrorTemplateConstant, login, role, team.Slug, addError)
	}
	return nil
}

// loginSet keeps first-seen order so grants are issued deterministically.
type loginSet struct {
	ordered []string
	members map[string]struct{}
}

func newLoginSet(groups ...[]string) *loginSet {
	set := &loginSet{members: map[string]struct{}{}}
	for _, group := range groups {
		for _, login := range group {
			set.add(login)
		}
	}
	return set
}

func (set *loginSet) add(login string) {
	if len(login) == 0 || set.contains(login) {
		return
	}
	set.members[login] = struct{}{}
	set.ordered = append(set.ordered, login)
}

func (set *loginSet) contains(login string) bool {
	_, present := set.members[login]
	return present
}
