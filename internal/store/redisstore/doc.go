// Package redisstore implements the alert store on Redis.
//
// Wire layout: each alert keeps its record JSON and a separate status key,
// every responder keeps a set of their active alert ids, and every responder
// has a pub/sub channel that is pinged on any relevant change. The
// compare-and-set transition runs as an optimistic WATCH/MULTI transaction
// on the status key; the subscription re-queries the responder's active set
// on every channel message.
package redisstore
