package manager_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/oca/repo-maintainer/internal/checksum"
	"github.com/oca/repo-maintainer/internal/manager"
)

func newTestService(testInstance *testing.T, organization *fakeOrganization, logger *zap.Logger) (*manager.Service, *fakeBranchCreator) {
	testInstance.Helper()
	creator := &fakeBranchCreator{organization: organization}
	service, serviceError := manager.NewService(manager.Dependencies{Client: organization, BranchCreator: creator, Logger: logger})
	require.NoError(testInstance, serviceError)
	return service, creator
}

func TestRunReconcilesAndSavesLedger(testInstance *testing.T) {
	root := writeConfigurationDirectory(testInstance)
	organization := newFakeOrganization()
	service, creator := newTestService(testInstance, organization, nil)

	result, runError := service.Run(context.Background(), manager.RunOptions{ConfigurationDirectory: root})
	require.NoError(testInstance, runError)
	require.True(testInstance, result.TrackingDisabled)
	require.Equal(testInstance, 1, result.TeamsProcessed)
	require.Equal(testInstance, 1, result.RepositoriesProcessed)
	_, parseError := uuid.Parse(result.RunIdentifier)
	require.NoError(testInstance, parseError)

	require.Equal(testInstance, []string{
		"create team psc1",
		"grant psc1 member alice",
		"grant psc1 member gil",
		"create repository test-repo-2",
		"grant psc1 push test-repo-2",
		"branch test-repo-2 16.0",
		"default test-repo-2 16.0",
	}, organization.mutations)
	require.Len(testInstance, creator.targets, 1)
	require.Equal(testInstance, "gh:OCA/oca-addons-repo-template", creator.targets[0].Template)

	require.Equal(testInstance, 3, result.RecordedDocuments)
	tracker, trackerError := checksum.OpenTracker(root, nil)
	require.NoError(testInstance, trackerError)
	require.False(testInstance, tracker.Changed("global.yml", []byte(testGlobalDocumentConstant)))
}

func TestRunSkipsUnchangedDocuments(testInstance *testing.T) {
	root := writeConfigurationDirectory(testInstance)
	organization := newFakeOrganization()
	firstService, _ := newTestService(testInstance, organization, nil)
	_, firstRunError := firstService.Run(context.Background(), manager.RunOptions{ConfigurationDirectory: root})
	require.NoError(testInstance, firstRunError)
	organization.mutations = nil

	observerCore, observedLogs := observer.New(zapcore.InfoLevel)
	secondService, creator := newTestService(testInstance, organization, zap.New(observerCore))
	result, secondRunError := secondService.Run(context.Background(), manager.RunOptions{ConfigurationDirectory: root})
	require.NoError(testInstance, secondRunError)

	require.False(testInstance, result.TrackingDisabled)
	require.Zero(testInstance, result.TeamsProcessed)
	require.Zero(testInstance, result.RepositoriesProcessed)
	require.Empty(testInstance, organization.mutations)
	require.Empty(testInstance, creator.targets)
	require.Equal(testInstance, 1, observedLogs.FilterMessage("psc.yml not changed: skipping").Len())
	require.Equal(testInstance, 1, observedLogs.FilterMessage("repo.yml not changed: skipping").Len())
	require.Equal(testInstance, 1, observedLogs.FilterMessage("No team to process").Len())
}

func TestRunReprocessesEverythingWhenGlobalChanges(testInstance *testing.T) {
	root := writeConfigurationDirectory(testInstance)
	organization := newFakeOrganization()
	firstService, _ := newTestService(testInstance, organization, nil)
	_, firstRunError := firstService.Run(context.Background(), manager.RunOptions{ConfigurationDirectory: root})
	require.NoError(testInstance, firstRunError)

	require.NoError(testInstance, os.WriteFile(filepath.Join(root, "global.yml"), []byte(testGlobalDocumentConstant+"  - hana\n"), 0o600))

	secondService, _ := newTestService(testInstance, organization, nil)
	result, secondRunError := secondService.Run(context.Background(), manager.RunOptions{ConfigurationDirectory: root})
	require.NoError(testInstance, secondRunError)
	require.True(testInstance, result.TrackingDisabled)
	require.Equal(testInstance, 1, result.TeamsProcessed)
	require.Contains(testInstance, organization.mutations, "grant psc1 member hana")
}

func TestRunForceProcessesUnchangedDocuments(testInstance *testing.T) {
	root := writeConfigurationDirectory(testInstance)
	organization := newFakeOrganization()
	service, _ := newTestService(testInstance, organization, nil)
	_, firstRunError := service.Run(context.Background(), manager.RunOptions{ConfigurationDirectory: root})
	require.NoError(testInstance, firstRunError)

	result, forcedRunError := service.Run(context.Background(), manager.RunOptions{ConfigurationDirectory: root, Force: true})
	require.NoError(testInstance, forcedRunError)
	require.True(testInstance, result.TrackingDisabled)
	require.Equal(testInstance, 1, result.TeamsProcessed)
	require.Equal(testInstance, 1, result.RepositoriesProcessed)
}

func TestRunFailureKeepsLedgerUntouched(testInstance *testing.T) {
	root := writeConfigurationDirectory(testInstance)
	require.NoError(testInstance, os.WriteFile(filepath.Join(root, "repo.yml"), []byte(testRepositoryDocumentConstant+"  maintainers:\n    - bob\n"), 0o600))
	organization := newFakeOrganization()
	organization.failCollaborator = errors.New("forbidden")
	service, _ := newTestService(testInstance, organization, nil)

	_, runError := service.Run(context.Background(), manager.RunOptions{ConfigurationDirectory: root})
	require.ErrorContains(testInstance, runError, "repository reconciliation failed")

	_, statError := os.Stat(filepath.Join(root, checksum.LedgerFileName))
	require.True(testInstance, os.IsNotExist(statError))
}

func TestRunMissingConfiguration(testInstance *testing.T) {
	service, _ := newTestService(testInstance, newFakeOrganization(), nil)
	_, runError := service.Run(context.Background(), manager.RunOptions{ConfigurationDirectory: testInstance.TempDir()})
	require.ErrorContains(testInstance, runError, "unable to load global configuration")
}

func TestNewServiceValidatesDependencies(testInstance *testing.T) {
	_, clientError := manager.NewService(manager.Dependencies{})
	require.ErrorIs(testInstance, clientError, manager.ErrClientNotConfigured)

	_, creatorError := manager.NewService(manager.Dependencies{Client: newFakeOrganization()})
	require.ErrorIs(testInstance, creatorError, manager.ErrBranchCreatorNotConfigured)
}
