// Package server runs the alert coordination server: the configured store
// behind the HTTP and WebSocket API, with metrics and graceful shutdown.
package server
