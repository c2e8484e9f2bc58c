// Package confstore reads the declarative organization configuration.
//
// A configuration root holds a global document plus the psc (team) and repo
// collections. Each collection is either a single <name>.yml document or a
// <name>/ directory of documents merged by slug. Documents are validated
// against a JSON schema before they are decoded into typed records, and a
// change tracker may be supplied so that unchanged documents are skipped.
package confstore
