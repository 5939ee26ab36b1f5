// Package resolver turns one responder's decision on an alert into a store
// mutation and reports whether that responder was the one who actually
// settled it.
//
// Losing the race is an expected, successful-looking outcome: someone else
// handled the emergency. The resolver never retries a conditional write; a
// timed-out write has an unknown outcome and is reconciled with a fresh
// read instead.
package resolver
