package confstore

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	documentIndentationConstant     = 2
	documentFilePermissionsConstant = 0o644
)

// RepositoryDocument is one repo document kept as a YAML node tree so it can be
// edited and written back with its slug order and comments intact.
type RepositoryDocument struct {
	Document
	Root    *yaml.Node
	Records []RepositoryRecord
}

// Entry returns the mapping node holding the record for slug.
func (document RepositoryDocument) Entry(slug string) (*yaml.Node, bool) {
	if document.Root == nil {
		return nil, false
	}
	for index := 0; index+1 < len(document.Root.Content); index += 2 {
		if document.Root.Content[index].Value == slug {
			return document.Root.Content[index+1], true
		}
	}
	return nil, false
}

// LoadRepositoryDocuments reads every repo document without change tracking, grouped by file.
func (store *Store) LoadRepositoryDocuments() ([]RepositoryDocument, error) {
	documents, loadError := store.loadDocuments(DocumentKindRepository)
	if loadError != nil {
		return nil, loadError
	}

	repositoryDocuments := make([]RepositoryDocument, 0, len(documents))
	for _, document := range documents {
		records, slugOrder, decodeError := decodeRecords[RepositoryRecord](DocumentKindRepository, document)
		if decodeError != nil {
			return nil, decodeError
		}
		if len(slugOrder) == 0 {
			continue
		}
		rootNode, nodeError := parseNode(document)
		if nodeError != nil {
			return nil, nodeError
		}

		orderedRecords := make([]RepositoryRecord, 0, len(slugOrder))
		for _, slug := range slugOrder {
			record := records[slug]
			record.Slug = slug
			orderedRecords = append(orderedRecords, record)
		}
		repositoryDocuments = append(repositoryDocuments, RepositoryDocument{Document: document, Root: rootNode, Records: orderedRecords})
	}
	return repositoryDocuments, nil
}

// SaveRepositoryDocument writes the node tree of document back to its file.
func (store *Store) SaveRepositoryDocument(document RepositoryDocument) error {
	var encoded bytes.Buffer
	encoder := yaml.NewEncoder(&encoded)
	encoder.SetIndent(documentIndentationConstant)
	if encodeError := encoder.Encode(document.Root); encodeError != nil {
		return fmt.Errorf(documentEncodeErrorTemplateConstant, document.RelativePath, encodeError)
	}
	if closeError := encoder.Close(); closeError != nil {
		return fmt.Errorf(documentEncodeErrorTemplateConstant, document.RelativePath, closeError)
	}
	if writeError := os.WriteFile(document.AbsolutePath, encoded.Bytes(), documentFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(documentWriteErrorTemplateConstant, document.RelativePath, writeError)
	}
	return nil
}
