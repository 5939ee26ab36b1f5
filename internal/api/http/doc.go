// Package http exposes the alert coordination core over HTTP: raise and
// look up alerts, submit responder decisions, health and metrics, plus the
// WebSocket endpoint for live responder sessions.
package http
