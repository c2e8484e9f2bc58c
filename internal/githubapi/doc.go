// Package githubapi talks to the GitHub organization being reconciled.
//
// Client wraps the go-github REST client and the githubv4 GraphQL client
// behind one authenticated, rate-limit aware transport. Reconcilers depend on
// small interfaces they declare themselves; Client satisfies all of them.
package githubapi
