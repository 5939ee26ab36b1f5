// Package config defines settings shared by the alert binaries and provides
// helpers to load, validate and save them in YAML format.
//
// The Config type holds the server HTTP address, the alert store backend
// selection, subscription reconnect tuning and the escalation cadence.
package config
