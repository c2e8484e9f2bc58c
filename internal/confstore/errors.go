package confstore

import (
	"errors"
	"fmt"
	"strings"
)

const (
	documentNotFoundMessageConstant         = "configuration document not found"
	documentNotFoundTemplateConstant        = "%s: neither %s.yml nor a %s directory exists in %s"
	duplicateSlugTemplateConstant           = "slug %q declared in both %s and %s"
	schemaValidationTemplateConstant        = "%s does not match the %s schema: %s"
	schemaViolationsSeparatorConstant       = "; "
	documentParseErrorTemplateConstant      = "failed to parse %s: %w"
	documentReadErrorTemplateConstant       = "failed to read %s: %w"
	documentDecodeErrorTemplateConstant     = "failed to decode %s entry %q in %s: %w"
	documentListErrorTemplateConstant       = "failed to list %s documents: %w"
	documentWriteErrorTemplateConstant      = "failed to write %s: %w"
	documentEncodeErrorTemplateConstant     = "failed to encode %s: %w"
	documentNotMappingTemplateConstant      = "%s must contain a mapping at the top level"
	configurationRootMissingMessageConstant = "configuration root not provided"
	repeatedBranchTemplateConstant          = "%s.branches: %s is listed more than once"
)

// ErrDocumentNotFound indicates that neither a single document nor a document directory exists.
var ErrDocumentNotFound = errors.New(documentNotFoundMessageConstant)

// ErrConfigurationRootNotProvided indicates a Store was built without a root directory.
var ErrConfigurationRootNotProvided = errors.New(configurationRootMissingMessageConstant)

// DocumentNotFoundError names the missing collection.
type DocumentNotFoundError struct {
	Name string
	Root string
}

// Error describes the missing document.
func (notFound DocumentNotFoundError) Error() string {
	return fmt.Sprintf(documentNotFoundTemplateConstant, documentNotFoundMessageConstant, notFound.Name, notFound.Name, notFound.Root)
}

// Unwrap allows errors.Is(err, ErrDocumentNotFound).
func (notFound DocumentNotFoundError) Unwrap() error {
	return ErrDocumentNotFound
}

// DuplicateSlugError reports a slug declared by two documents while strict slugs are enforced.
type DuplicateSlugError struct {
	Slug          string
	FirstDocument string
	LaterDocument string
}

// Error describes the collision.
func (duplicate DuplicateSlugError) Error() string {
	return fmt.Sprintf(duplicateSlugTemplateConstant, duplicate.Slug, duplicate.FirstDocument, duplicate.LaterDocument)
}

// SchemaValidationError lists every schema violation found in one document.
type SchemaValidationError struct {
	Document   string
	Kind       string
	Violations []string
}

// Error describes the violations.
func (validation SchemaValidationError) Error() string {
	return fmt.Sprintf(schemaValidationTemplateConstant, validation.Document, validation.Kind, strings.Join(validation.Violations, schemaViolationsSeparatorConstant))
}
