package confstore

import (
	"bytes"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	documentSkippedTemplateConstant  = "%s not changed: skipping"
	duplicateSlugLogMessageConstant  = "slug declared by more than one document, later document wins"
	documentLoadedLogMessageConstant = "configuration document loaded"
	logFieldSlugConstant             = "slug"
	logFieldDocumentConstant         = "document"
	logFieldPreviousDocumentConstant = "previous_document"
	logFieldRecordCountConstant      = "records"
	logFieldCollectionConstant       = "collection"
)

// ChangeTracker decides whether a document must be processed and remembers processed content.
type ChangeTracker interface {
	Changed(relativePath string, content []byte) bool
	Record(relativePath string, content []byte)
}

// Options tunes Store behavior.
type Options struct {
	// StrictSlugs turns slugs declared by more than one document into DuplicateSlugError.
	StrictSlugs bool
}

// Store loads configuration collections from one root directory.
type Store struct {
	root    string
	options Options
	logger  *zap.Logger
}

// NewStore constructs a Store rooted at configurationRoot.
func NewStore(configurationRoot string, options Options, logger *zap.Logger) (*Store, error) {
	trimmedRoot := strings.TrimSpace(configurationRoot)
	if len(trimmedRoot) == 0 {
		return nil, ErrConfigurationRootNotProvided
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{root: trimmedRoot, options: options, logger: logger}, nil
}

// Root returns the configuration root directory.
func (store *Store) Root() string {
	return store.root
}

// LoadGlobal reads the global document. The document is never skipped; changed
// reports whether tracker considers its content new, and the content is recorded.
func (store *Store) LoadGlobal(tracker ChangeTracker) (GlobalConfig, bool, error) {
	documents, loadError := store.loadDocuments(DocumentKindGlobal)
	if loadError != nil {
		return GlobalConfig{}, false, loadError
	}

	globalConfig := GlobalConfig{}
	changed := tracker == nil
	for _, document := range documents {
		if tracker != nil && tracker.Changed(document.RelativePath, document.Content) {
			changed = true
		}

		generic, parseError := parseGeneric(document)
		if parseError != nil {
			return GlobalConfig{}, false, parseError
		}
		if generic == nil {
			continue
		}
		if validationError := validateDocument(DocumentKindGlobal, document.RelativePath, generic); validationError != nil {
			return GlobalConfig{}, false, validationError
		}
		if decodeError := yaml.Unmarshal(document.Content, &globalConfig); decodeError != nil {
			return GlobalConfig{}, false, fmt.Errorf(documentParseErrorTemplateConstant, document.RelativePath, decodeError)
		}
		if tracker != nil {
			tracker.Record(document.RelativePath, document.Content)
		}
	}

	return globalConfig, changed, nil
}

// LoadTeams reads the psc collection keyed by team slug.
func (store *Store) LoadTeams(tracker ChangeTracker) (map[string]TeamRecord, error) {
	return loadRecords(store, DocumentKindTeams, tracker, func(slug string, record *TeamRecord) {
		record.Slug = slug
	})
}

// LoadRepositories reads the repo collection keyed by repository slug.
func (store *Store) LoadRepositories(tracker ChangeTracker) (map[string]RepositoryRecord, error) {
	return loadRecords(store, DocumentKindRepository, tracker, func(slug string, record *RepositoryRecord) {
		record.Slug = slug
	})
}

func loadRecords[Record any](store *Store, kind string, tracker ChangeTracker, assignSlug func(string, *Record)) (map[string]Record, error) {
	documents, loadError := store.loadDocuments(kind)
	if loadError != nil {
		return nil, loadError
	}

	records := make(map[string]Record)
	origins := make(map[string]string)
	for _, document := range documents {
		if tracker != nil && !tracker.Changed(document.RelativePath, document.Content) {
			store.logger.Info(fmt.Sprintf(documentSkippedTemplateConstant, document.RelativePath))
			continue
		}

		documentRecords, slugOrder, decodeError := decodeRecords[Record](kind, document)
		if decodeError != nil {
			return nil, decodeError
		}

		for _, slug := range slugOrder {
			if previousDocument, exists := origins[slug]; exists {
				if store.options.StrictSlugs {
					return nil, DuplicateSlugError{Slug: slug, FirstDocument: previousDocument, LaterDocument: document.RelativePath}
				}
				store.logger.Warn(duplicateSlugLogMessageConstant,
					zap.String(logFieldSlugConstant, slug),
					zap.String(logFieldPreviousDocumentConstant, previousDocument),
					zap.String(logFieldDocumentConstant, document.RelativePath))
			}
			record := documentRecords[slug]
			assignSlug(slug, &record)
			records[slug] = record
			origins[slug] = document.RelativePath
		}

		if tracker != nil {
			tracker.Record(document.RelativePath, document.Content)
		}
		store.logger.Debug(documentLoadedLogMessageConstant,
			zap.String(logFieldCollectionConstant, kind),
			zap.String(logFieldDocumentConstant, document.RelativePath),
			zap.Int(logFieldRecordCountConstant, len(slugOrder)))
	}

	return records, nil
}

// decodeRecords validates one collection document and decodes it, returning slugs in document order.
type decodedRecord interface {
	decodedViolations(slug string) []string
}

func decodeRecords[Record any](kind string, document Document) (map[string]Record, []string, error) {
	generic, parseError := parseGeneric(document)
	if parseError != nil {
		return nil, nil, parseError
	}
	if generic == nil {
		return map[string]Record{}, nil, nil
	}
	if validationError := validateDocument(kind, document.RelativePath, generic); validationError != nil {
		return nil, nil, validationError
	}

	rootNode, nodeError := parseNode(document)
	if nodeError != nil {
		return nil, nil, nodeError
	}

	records := make(map[string]Record)
	slugOrder := make([]string, 0, len(rootNode.Content)/2)
	for index := 0; index+1 < len(rootNode.Content); index += 2 {
		slug := rootNode.Content[index].Value
		var record Record
		if decodeError := rootNode.Content[index+1].Decode(&record); decodeError != nil {
			return nil, nil, fmt.Errorf(documentDecodeErrorTemplateConstant, kind, slug, document.RelativePath, decodeError)
		}
		if checked, checkable := any(record).(decodedRecord); checkable {
			if violations := checked.decodedViolations(slug); len(violations) > 0 {
				return nil, nil, SchemaValidationError{Document: document.RelativePath, Kind: kind, Violations: violations}
			}
		}
		records[slug] = record
		slugOrder = append(slugOrder, slug)
	}
	return records, slugOrder, nil
}

func (store *Store) loadDocuments(kind string) ([]Document, error) {
	loader, selectError := SelectLoader(store.root, kind)
	if selectError != nil {
		return nil, selectError
	}
	return loader.LoadDocuments()
}

// parseGeneric decodes a document into plain maps for schema validation. Empty documents yield nil.
func parseGeneric(document Document) (any, error) {
	if len(bytes.TrimSpace(document.Content)) == 0 {
		return nil, nil
	}
	var generic any
	if unmarshalError := yaml.Unmarshal(document.Content, &generic); unmarshalError != nil {
		return nil, fmt.Errorf(documentParseErrorTemplateConstant, document.RelativePath, unmarshalError)
	}
	return generic, nil
}

// parseNode returns the top-level mapping node of a non-empty document.
func parseNode(document Document) (*yaml.Node, error) {
	var documentNode yaml.Node
	if unmarshalError := yaml.Unmarshal(document.Content, &documentNode); unmarshalError != nil {
		return nil, fmt.Errorf(documentParseErrorTemplateConstant, document.RelativePath, unmarshalError)
	}
	if documentNode.Kind != yaml.DocumentNode || len(documentNode.Content) == 0 || documentNode.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf(documentNotMappingTemplateConstant, document.RelativePath)
	}
	return documentNode.Content[0], nil
}
