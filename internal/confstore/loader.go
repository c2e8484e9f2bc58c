package confstore

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var documentExtensions = []string{".yml", ".yaml"}

// Document is the raw content of one configuration file.
type Document struct {
	// RelativePath is slash separated and relative to the configuration root; it keys the checksum ledger.
	RelativePath string
	AbsolutePath string
	Content      []byte
}

// DocumentLoader yields the documents making up one named collection.
type DocumentLoader interface {
	LoadDocuments() ([]Document, error)
}

// SingleDocumentLoader reads <root>/<name>.yml or <root>/<name>.yaml.
type SingleDocumentLoader struct {
	Root string
	Path string
}

// LoadDocuments reads the single document.
func (loader SingleDocumentLoader) LoadDocuments() ([]Document, error) {
	document, readError := readDocument(loader.Root, loader.Path)
	if readError != nil {
		return nil, readError
	}
	return []Document{document}, nil
}

// DocumentCollectionLoader reads every YAML document below <root>/<name>/ in lexical path order.
type DocumentCollectionLoader struct {
	Root      string
	Directory string
}

// LoadDocuments walks the collection directory.
func (loader DocumentCollectionLoader) LoadDocuments() ([]Document, error) {
	documentPaths := make([]string, 0)
	walkError := filepath.WalkDir(loader.Directory, func(path string, entry fs.DirEntry, entryError error) error {
		if entryError != nil {
			return entryError
		}
		if entry.IsDir() || !hasDocumentExtension(path) {
			return nil
		}
		documentPaths = append(documentPaths, path)
		return nil
	})
	if walkError != nil {
		return nil, fmt.Errorf(documentListErrorTemplateConstant, loader.Directory, walkError)
	}
	sort.Strings(documentPaths)

	documents := make([]Document, 0, len(documentPaths))
	for _, documentPath := range documentPaths {
		document, readError := readDocument(loader.Root, documentPath)
		if readError != nil {
			return nil, readError
		}
		documents = append(documents, document)
	}
	return documents, nil
}

// SelectLoader inspects root and picks the loader strategy for the named collection.
func SelectLoader(root string, name string) (DocumentLoader, error) {
	for _, extension := range documentExtensions {
		candidatePath := filepath.Join(root, name+extension)
		if info, statError := os.Stat(candidatePath); statError == nil && !info.IsDir() {
			return SingleDocumentLoader{Root: root, Path: candidatePath}, nil
		}
	}

	collectionDirectory := filepath.Join(root, name)
	if info, statError := os.Stat(collectionDirectory); statError == nil && info.IsDir() {
		return DocumentCollectionLoader{Root: root, Directory: collectionDirectory}, nil
	}

	return nil, DocumentNotFoundError{Name: name, Root: root}
}

func readDocument(root string, path string) (Document, error) {
	content, readError := os.ReadFile(path)
	if readError != nil {
		return Document{}, fmt.Errorf(documentReadErrorTemplateConstant, path, readError)
	}
	relativePath, relativeError := filepath.Rel(root, path)
	if relativeError != nil {
		relativePath = filepath.Base(path)
	}
	return Document{RelativePath: filepath.ToSlash(relativePath), AbsolutePath: path, Content: content}, nil
}

func hasDocumentExtension(path string) bool {
	extension := strings.ToLower(filepath.Ext(path))
	for _, documentExtension := range documentExtensions {
		if extension == documentExtension {
			return true
		}
	}
	return false
}
