// Package common holds helpers shared by several services.
//
// It provides an HTTP client wrapper for the alert server with call
// timeouts, the store factory used by every binary that talks to a backend
// directly, and a utility to detect the current responder identity.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
