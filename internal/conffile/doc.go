// Package conffile edits repository documents in a configuration directory.
// Its add-branch command appends a branch to every repository the branch
// policy allows and can make that branch the configured default.
package conffile
