// Package session composes the per-responder coordination pieces: a live
// alert subscription, the escalation cadence and the response resolver.
// One session serves one responder client for its whole lifetime.
package session
