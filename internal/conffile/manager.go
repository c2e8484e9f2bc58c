package conffile

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/oca/repo-maintainer/internal/branchpolicy"
	"github.com/oca/repo-maintainer/internal/confstore"
)

const (
	branchesKeyConstant                = "branches"
	defaultBranchKeyConstant           = "default_branch"
	yamlStringTagConstant              = "!!str"
	branchRequiredMessageConstant      = "branch name is required"
	storeMissingMessageConstant        = "configuration store not configured"
	loadDocumentsErrorTemplateConstant = "unable to load repository documents: %w"
	saveDocumentErrorTemplateConstant  = "unable to save %s: %w"
	entryMissingErrorTemplateConstant  = "repository %s not found in %s"
	branchesMalformedTemplateConstant  = "branches of %s in %s is not a list"
	branchAddedLogMessageConstant      = "Branch %s added to %s."
	manualManagementLogMessageConstant = "branches are managed manually: skipping"
	branchDeniedLogMessageConstant     = "branch policy prevents adding branch"
	defaultDeniedLogMessageConstant    = "branch policy prevents changing default branch"
	logFieldRepositoryConstant         = "repository"
	logFieldBranchConstant             = "branch"
	logFieldDocumentConstant           = "document"
)

var (
	// ErrBranchRequired indicates AddBranch received an empty branch name.
	ErrBranchRequired = errors.New(branchRequiredMessageConstant)
	// ErrStoreNotConfigured indicates a Manager built without a configuration store.
	ErrStoreNotConfigured = errors.New(storeMissingMessageConstant)
)

// DocumentStore reads and rewrites repository documents.
type DocumentStore interface {
	LoadRepositoryDocuments() ([]confstore.RepositoryDocument, error)
	SaveRepositoryDocument(document confstore.RepositoryDocument) error
}

// AddBranchResult lists the repositories whose records changed.
type AddBranchResult struct {
	BranchAdded      []string
	DefaultChanged   []string
	UpdatedDocuments []string
}

// Manager edits repository documents in place.
type Manager struct {
	store  DocumentStore
	logger *zap.Logger
}

// NewManager constructs a Manager over store.
func NewManager(store DocumentStore, logger *zap.Logger) (*Manager, error) {
	if store == nil {
		return nil, ErrStoreNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, logger: logger}, nil
}

// AddBranch appends branch to every allowed repository and, when makeDefault is
// set, points default_branch at it where the record already controls the default.
// A non-empty whitelist restricts the update to the named repositories.
func (manager *Manager) AddBranch(branch string, makeDefault bool, whitelist []string) (AddBranchResult, error) {
	trimmedBranch := strings.TrimSpace(branch)
	if len(trimmedBranch) == 0 {
		return AddBranchResult{}, ErrBranchRequired
	}
	allowed := whitelistSet(whitelist)

	documents, loadError := manager.store.LoadRepositoryDocuments()
	if loadError != nil {
		return AddBranchResult{}, fmt.Errorf(loadDocumentsErrorTemplateConstant, loadError)
	}

	result := AddBranchResult{}
	for _, document := range documents {
		documentChanged := false
		for _, record := range document.Records {
			if len(allowed) > 0 {
				if _, listed := allowed[record.Slug]; !listed {
					continue
				}
			}
			branchAdded, defaultChanged, updateError := manager.updateRecord(document, record, trimmedBranch, makeDefault)
			if updateError != nil {
				return AddBranchResult{}, updateError
			}
			if branchAdded {
				result.BranchAdded = append(result.BranchAdded, record.Slug)
			}
			if defaultChanged {
				result.DefaultChanged = append(result.DefaultChanged, record.Slug)
			}
			documentChanged = documentChanged || branchAdded || defaultChanged
		}
		if !documentChanged {
			continue
		}
		if saveError := manager.store.SaveRepositoryDocument(document); saveError != nil {
			return AddBranchResult{}, fmt.Errorf(saveDocumentErrorTemplateConstant, document.RelativePath, saveError)
		}
		result.UpdatedDocuments = append(result.UpdatedDocuments, document.RelativePath)
		manager.logger.Info(fmt.Sprintf(branchAddedLogMessageConstant, trimmedBranch, document.RelativePath))
	}
	return result, nil
}

func (manager *Manager) updateRecord(document confstore.RepositoryDocument, record confstore.RepositoryRecord, branch string, makeDefault bool) (bool, bool, error) {
	recordLogger := manager.logger.With(
		zap.String(logFieldRepositoryConstant, record.Slug),
		zap.String(logFieldBranchConstant, branch),
		zap.String(logFieldDocumentConstant, document.RelativePath),
	)
	subject := record.PolicySubject()
	if branchpolicy.HasManualManagement(subject) {
		recordLogger.Info(manualManagementLogMessageConstant)
		return false, false, nil
	}

	entry, found := document.Entry(record.Slug)
	if !found {
		return false, false, fmt.Errorf(entryMissingErrorTemplateConstant, record.Slug, document.RelativePath)
	}

	branchAdded := false
	branchPresent := containsBranch(record.Branches, branch)
	if !branchPresent {
		if !branchpolicy.CanAddBranch(branch, subject) {
			recordLogger.Info(branchDeniedLogMessageConstant)
			return false, false, nil
		}
		branchesNode := mappingValue(entry, branchesKeyConstant)
		if branchesNode == nil || branchesNode.Kind != yaml.SequenceNode {
			return false, false, fmt.Errorf(branchesMalformedTemplateConstant, record.Slug, document.RelativePath)
		}
		branchesNode.Content = append(branchesNode.Content, stringNode(branch))
		branchAdded = true
	}

	if !makeDefault || subject.DefaultBranch == branch {
		return branchAdded, false, nil
	}
	if !branchpolicy.CanChangeDefaultBranch(subject) {
		recordLogger.Info(defaultDeniedLogMessageConstant)
		return branchAdded, false, nil
	}
	defaultNode := mappingValue(entry, defaultBranchKeyConstant)
	if defaultNode == nil {
		return branchAdded, false, nil
	}
	defaultNode.Kind = yaml.ScalarNode
	defaultNode.Tag = yamlStringTagConstant
	defaultNode.Style = 0
	defaultNode.Value = branch
	return branchAdded, true, nil
}

func mappingValue(mapping *yaml.Node, key string) *yaml.Node {
	if mapping == nil || mapping.Kind != yaml.MappingNode {
		return nil
	}
	for index := 0; index+1 < len(mapping.Content); index += 2 {
		if mapping.Content[index].Value == key {
			return mapping.Content[index+1]
		}
	}
	return nil
}

func stringNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: yamlStringTagConstant, Value: value}
}

func containsBranch(branches []string, branch string) bool {
	for _, candidate := range branches {
		if candidate == branch {
			return true
		}
	}
	return false
}

func whitelistSet(whitelist []string) map[string]struct{} {
	allowed := map[string]struct{}{}
	for _, slug := range whitelist {
		trimmedSlug := strings.TrimSpace(slug)
		if len(trimmedSlug) == 0 {
			continue
		}
		allowed[trimmedSlug] = struct{}{}
	}
	return allowed
}
