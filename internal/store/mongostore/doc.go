// Package mongostore implements the alert store on MongoDB.
//
// The compare-and-set transition maps to a single conditional UpdateOne with
// the expected status in the filter, and the live per-responder subscription
// maps to a collection change stream that triggers a filtered re-query, so
// every emission carries the full current active set.
package mongostore
