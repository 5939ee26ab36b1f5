// Package store defines the alert store contract the coordination core is
// built on: creation and point lookup of alert records, a single-document
// compare-and-set transition, and a live per-responder subscription over the
// set of active alerts.
//
// Backends live in the subpackages memory, mongostore and redisstore. The
// compare-and-set transition is the only concurrency-control primitive in
// the whole protocol; no caller ever performs a read-then-unconditional-write
// on an alert's status.
package store
