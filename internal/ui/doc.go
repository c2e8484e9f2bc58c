// Package ui renders command lifecycle events for people watching a run.
//
// The structured logger stays the source of record; ConsoleCommandEventLogger
// only replaces it for git activity when the console log format is selected.
package ui
