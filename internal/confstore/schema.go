package confstore

import (
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Document kinds known to the store.
const (
	DocumentKindGlobal     = "global"
	DocumentKindTeams      = "psc"
	DocumentKindRepository = "repo"
)

const (
	schemaCompileErrorTemplateConstant  = "failed to compile %s schema: %w"
	schemaValidateErrorTemplateConstant = "failed to validate %s: %w"
	unknownSchemaKindTemplateConstant   = "no schema registered for %s documents"
)

// Branch names are accepted as numbers because unquoted versions such as 16.0 are YAML floats.
const (
	globalDocumentSchemaConstant = `{
  "type": "object",
  "required": ["owner"],
  "properties": {
    "owner": {"type": "string", "minLength": 1},
    "template": {"type": "string"},
    "team_maintainers": {"type": ["array", "null"], "items": {"type": "string"}},
    "maintainers": {"type": ["array", "null"], "items": {"type": "string"}}
  }
}`

	teamDocumentSchemaConstant = `{
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "required": ["name"],
    "properties": {
      "name": {"type": "string", "minLength": 1},
      "members": {"type": ["array", "null"], "items": {"type": "string"}},
      "representatives": {"type": ["array", "null"], "items": {"type": "string"}}
    }
  }
}`

	repositoryDocumentSchemaConstant = `{
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "required": ["name", "psc", "branches"],
    "properties": {
      "name": {"type": "string", "minLength": 1},
      "description": {"type": ["string", "null"]},
      "psc": {"type": "string", "minLength": 1},
      "maintainers": {"type": ["array", "null"], "items": {"type": "string"}},
      "branches": {"type": "array", "uniqueItems": true, "items": {"type": ["string", "number"]}},
      "default_branch": {"type": ["string", "number", "null"]},
      "manual_branch_mgmt": {"type": ["boolean", "null"]}
    }
  }
}`
)

var documentSchemaSources = map[string]string{
	DocumentKindGlobal:     globalDocumentSchemaConstant,
	DocumentKindTeams:      teamDocumentSchemaConstant,
	DocumentKindRepository: repositoryDocumentSchemaConstant,
}

var (
	compiledSchemasOnce  sync.Once
	compiledSchemas      map[string]*gojsonschema.Schema
	compiledSchemasError error
)

func schemaForKind(kind string) (*gojsonschema.Schema, error) {
	compiledSchemasOnce.Do(func() {
		compiledSchemas = make(map[string]*gojsonschema.Schema, len(documentSchemaSources))
		for schemaKind, schemaSource := range documentSchemaSources {
			schema, compileError := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaSource))
			if compileError != nil {
				compiledSchemasError = fmt.Errorf(schemaCompileErrorTemplateConstant, schemaKind, compileError)
				return
			}
			compiledSchemas[schemaKind] = schema
		}
	})
	if compiledSchemasError != nil {
		return nil, compiledSchemasError
	}
	schema, exists := compiledSchemas[kind]
	if !exists {
		return nil, fmt.Errorf(unknownSchemaKindTemplateConstant, kind)
	}
	return schema, nil
}

// validateDocument checks a generically decoded document against the schema for kind.
func validateDocument(kind string, relativePath string, document any) error {
	schema, schemaError := schemaForKind(kind)
	if schemaError != nil {
		return schemaError
	}

	result, validateError := schema.Validate(gojsonschema.NewGoLoader(document))
	if validateError != nil {
		return fmt.Errorf(schemaValidateErrorTemplateConstant, relativePath, validateError)
	}
	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, violation := range result.Errors() {
		violations = append(violations, violation.String())
	}
	return SchemaValidationError{Document: relativePath, Kind: kind, Violations: violations}
}
