// Package manager runs one reconciliation pass of an organization against its
// configuration directory and exposes the manage command.
//
// A pass loads the global document, the team rosters, and the repository
// records, reconciles teams before repositories, and persists the fingerprint
// ledger only when both reconcilers succeed. Documents whose fingerprint did
// not change since the last successful pass are skipped unless the global
// document changed or the pass is forced.
package manager
