// Package memory implements the alert store in process memory.
//
// It backs tests and single-server deployments: the compare-and-set
// transition runs under one mutex and subscriptions are fed directly from
// the mutating operations, so behaviour matches the distributed backends
// without external infrastructure.
package memory
