// Package teams reconciles organization team rosters with the configured
// members and representatives.
package teams
