// Package subscriber maintains one responder's continuously correct local
// view of "alerts needing my attention right now".
//
// It wraps the store's live subscription, orders every emission for display
// (severity first, oldest first), suppresses emissions that would not change
// the rendered view, and survives connection loss with capped exponential
// backoff while keeping the last known view on screen: stale-but-present is
// preferred to an alarming false "all clear".
package subscriber
