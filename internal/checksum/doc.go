// Package checksum keeps the fingerprint ledger that lets a run skip
// configuration documents which did not change since the last successful run.
//
// The ledger lives in checksum.yml next to the configuration documents and maps
// each document's slash-separated path, relative to the configuration root, to
// the MD5 hex digest of its content.
package checksum
